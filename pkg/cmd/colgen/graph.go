package main

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/signed-graph-colgen/pkg/colgen"
	"github.com/gilchrisn/signed-graph-colgen/pkg/signed"
)

// graphSpec is the graph section of the config file. Either edges, given as
// [u, v, sign] triples, or a dense signed adjacency matrix must be present.
type graphSpec struct {
	NumNodes int         `mapstructure:"num_nodes"`
	Edges    [][]int     `mapstructure:"edges"`
	Matrix   [][]float64 `mapstructure:"matrix"`
}

func loadGraph(cfg *colgen.Config) (*signed.Graph, error) {
	var spec graphSpec
	if err := cfg.Viper().UnmarshalKey("graph", &spec); err != nil {
		return nil, fmt.Errorf("failed to decode graph section: %w", err)
	}

	switch {
	case len(spec.Matrix) > 0:
		n := len(spec.Matrix)
		data := make([]float64, 0, n*n)
		for i, row := range spec.Matrix {
			if len(row) != n {
				return nil, fmt.Errorf("graph.matrix row %d has %d entries, want %d", i, len(row), n)
			}
			data = append(data, row...)
		}
		return signed.FromMatrix(mat.NewDense(n, n, data))

	case spec.NumNodes > 0:
		edges := make([]signed.Edge, len(spec.Edges))
		for i, e := range spec.Edges {
			if len(e) != 3 {
				return nil, fmt.Errorf("graph.edges[%d] must be [u, v, sign], got %v", i, e)
			}
			edges[i] = signed.Edge{U: e[0], V: e[1], Sign: signed.Sign(e[2])}
		}
		return signed.FromEdges(spec.NumNodes, edges)

	default:
		return nil, fmt.Errorf("config has no graph: set graph.num_nodes with graph.edges, or graph.matrix")
	}
}
