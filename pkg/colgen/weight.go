package colgen

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/gilchrisn/signed-graph-colgen/pkg/signed"
)

// Weight scores a candidate community:
//
//	w(C) = [2ΣA+(C,C) - 2(1-λ)ΣD+(C) - 2ΣA-(C,C) + 2λΣD-(C)] / |C|
//
// where the adjacency sums run over ordered pairs of members, so every
// undirected edge inside C is counted twice.
func Weight(g *signed.Graph, c Community, lambda float64) (float64, error) {
	if c.IsZero() {
		return 0, fmt.Errorf("%w: community must not be empty", ErrInvalidInput)
	}
	if c.NumVertices() != g.NumNodes {
		return 0, fmt.Errorf("%w: community over %d vertices, graph has %d",
			ErrInvalidInput, c.NumVertices(), g.NumNodes)
	}
	if lambda < 0 || lambda > 1 {
		return 0, fmt.Errorf("%w: lambda must be in [0, 1], got %g", ErrInvalidInput, lambda)
	}

	members := c.Members()

	var sumPos, sumNeg float64
	for _, u := range members {
		for _, v := range members {
			sumPos += g.Positive.At(u, v)
			sumNeg += g.Negative.At(u, v)
		}
	}

	dPos := make([]float64, len(members))
	dNeg := make([]float64, len(members))
	for i, u := range members {
		dPos[i] = g.PosDegree[u]
		dNeg[i] = g.NegDegree[u]
	}

	plus := 2*sumPos - 2*(1-lambda)*floats.Sum(dPos)
	minus := 2*sumNeg - 2*lambda*floats.Sum(dNeg)

	return (plus - minus) / float64(len(members)), nil
}

// IsolationValue is the weight of the singleton {u}: -2(1-λ)D+(u) + 2λD-(u)
func IsolationValue(g *signed.Graph, u int, lambda float64) float64 {
	return -2*(1-lambda)*g.PosDegree[u] + 2*lambda*g.NegDegree[u]
}
