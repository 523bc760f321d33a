package signed

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"
)

// Sign labels an undirected edge as positive, negative or absent
type Sign int8

const (
	Absent   Sign = 0
	Positive Sign = 1
	Negative Sign = -1
)

func (s Sign) String() string {
	switch s {
	case Positive:
		return "+"
	case Negative:
		return "-"
	default:
		return "0"
	}
}

// Edge is an undirected signed edge with U < V
type Edge struct {
	U    int  `json:"u"`
	V    int  `json:"v"`
	Sign Sign `json:"sign"`
}

// Graph holds the vertex set 0..NumNodes-1 and the positive/negative adjacency
// and degree data derived from it.
type Graph struct {
	NumNodes  int           `json:"num_nodes"`
	Positive  *mat.SymDense `json:"-"` // A+ (binary, zero diagonal)
	Negative  *mat.SymDense `json:"-"` // A- (binary, zero diagonal)
	PosDegree []float64     `json:"pos_degree"`
	NegDegree []float64     `json:"neg_degree"`

	topology *simple.WeightedUndirectedGraph
}

// NewGraph creates an edgeless signed graph with n vertices
func NewGraph(numNodes int) (*Graph, error) {
	if numNodes <= 0 {
		return nil, fmt.Errorf("graph must have positive number of nodes, got %d", numNodes)
	}

	g := &Graph{
		NumNodes:  numNodes,
		Positive:  mat.NewSymDense(numNodes, nil),
		Negative:  mat.NewSymDense(numNodes, nil),
		PosDegree: make([]float64, numNodes),
		NegDegree: make([]float64, numNodes),
		topology:  simple.NewWeightedUndirectedGraph(0, 0),
	}
	for i := 0; i < numNodes; i++ {
		g.topology.AddNode(simple.Node(i))
	}
	return g, nil
}

// FromMatrix derives A+ = (A > 0) and A- = (A < 0) from a square signed matrix.
// Only the upper triangle is read; the diagonal is ignored.
func FromMatrix(a mat.Matrix) (*Graph, error) {
	r, c := a.Dims()
	if r != c {
		return nil, fmt.Errorf("adjacency matrix must be square, got %dx%d", r, c)
	}

	g, err := NewGraph(r)
	if err != nil {
		return nil, err
	}
	for i := 0; i < r; i++ {
		for j := i + 1; j < r; j++ {
			v := a.At(i, j)
			if a.At(j, i) != v {
				return nil, fmt.Errorf("adjacency matrix is not symmetric at (%d,%d)", i, j)
			}
			switch {
			case v > 0:
				err = g.AddEdge(i, j, Positive)
			case v < 0:
				err = g.AddEdge(i, j, Negative)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// FromEdges builds a graph with n vertices from an edge list
func FromEdges(numNodes int, edges []Edge) (*Graph, error) {
	g, err := NewGraph(numNodes)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		if err := g.AddEdge(e.U, e.V, e.Sign); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddEdge adds an undirected signed edge between u and v
func (g *Graph) AddEdge(u, v int, sign Sign) error {
	if u < 0 || u >= g.NumNodes || v < 0 || v >= g.NumNodes {
		return fmt.Errorf("node index out of range: u=%d, v=%d, numNodes=%d", u, v, g.NumNodes)
	}
	if u == v {
		return fmt.Errorf("self-loop on node %d is not allowed", u)
	}
	if sign != Positive && sign != Negative {
		return fmt.Errorf("edge %d-%d must be positive or negative, got %v", u, v, sign)
	}

	existing := g.Sign(u, v)
	if existing == sign {
		return nil
	}
	if existing != Absent {
		return fmt.Errorf("edge %d-%d already present with sign %v", u, v, existing)
	}

	if sign == Positive {
		g.Positive.SetSym(u, v, 1)
		g.PosDegree[u]++
		g.PosDegree[v]++
	} else {
		g.Negative.SetSym(u, v, 1)
		g.NegDegree[u]++
		g.NegDegree[v]++
	}
	if g.topology != nil {
		g.topology.SetWeightedEdge(g.topology.NewWeightedEdge(simple.Node(u), simple.Node(v), float64(sign)))
	}
	return nil
}

// Sign returns the sign of the edge between u and v
func (g *Graph) Sign(u, v int) Sign {
	if u < 0 || u >= g.NumNodes || v < 0 || v >= g.NumNodes || u == v {
		return Absent
	}
	if g.topology == nil {
		return g.matrixSign(u, v)
	}
	e := g.topology.WeightedEdge(int64(u), int64(v))
	if e == nil {
		return Absent
	}
	if e.Weight() > 0 {
		return Positive
	}
	return Negative
}

// Neighbors returns the sorted neighbors of u regardless of sign
func (g *Graph) Neighbors(u int) []int {
	if u < 0 || u >= g.NumNodes {
		return nil
	}
	if g.topology == nil {
		var out []int
		for v := 0; v < g.NumNodes; v++ {
			if g.matrixSign(u, v) != Absent {
				out = append(out, v)
			}
		}
		return out
	}
	nodes := g.topology.From(int64(u))
	out := make([]int, 0, nodes.Len())
	for nodes.Next() {
		out = append(out, int(nodes.Node().ID()))
	}
	sort.Ints(out)
	return out
}

// Edges returns every edge with U < V, ordered by (U, V)
func (g *Graph) Edges() []Edge {
	if g.topology == nil {
		return g.matrixEdges()
	}
	it := g.topology.WeightedEdges()
	edges := make([]Edge, 0, it.Len())
	for it.Next() {
		e := it.WeightedEdge()
		u, v := int(e.From().ID()), int(e.To().ID())
		if u > v {
			u, v = v, u
		}
		sign := Positive
		if e.Weight() < 0 {
			sign = Negative
		}
		edges = append(edges, Edge{U: u, V: v, Sign: sign})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].U != edges[j].U {
			return edges[i].U < edges[j].U
		}
		return edges[i].V < edges[j].V
	})
	return edges
}

// matrixSign reads the sign of u-v from the adjacency matrices
func (g *Graph) matrixSign(u, v int) Sign {
	switch {
	case u == v || g.Positive == nil || g.Negative == nil:
		return Absent
	case g.Positive.At(u, v) != 0:
		return Positive
	case g.Negative.At(u, v) != 0:
		return Negative
	default:
		return Absent
	}
}

func (g *Graph) matrixEdges() []Edge {
	var edges []Edge
	for u := 0; u < g.NumNodes; u++ {
		for v := u + 1; v < g.NumNodes; v++ {
			if sign := g.matrixSign(u, v); sign != Absent {
				edges = append(edges, Edge{U: u, V: v, Sign: sign})
			}
		}
	}
	return edges
}

// PositiveEdges returns the edges labeled positive, ordered by (U, V)
func (g *Graph) PositiveEdges() []Edge { return g.edgesWithSign(Positive) }

// NegativeEdges returns the edges labeled negative, ordered by (U, V)
func (g *Graph) NegativeEdges() []Edge { return g.edgesWithSign(Negative) }

func (g *Graph) edgesWithSign(sign Sign) []Edge {
	var out []Edge
	for _, e := range g.Edges() {
		if e.Sign == sign {
			out = append(out, e)
		}
	}
	return out
}

// NumEdges returns the number of positive and negative edges
func (g *Graph) NumEdges() (positive, negative int) {
	for _, e := range g.Edges() {
		if e.Sign == Positive {
			positive++
		} else {
			negative++
		}
	}
	return positive, negative
}

// Clone creates a deep copy of the graph
func (g *Graph) Clone() *Graph {
	clone, _ := NewGraph(g.NumNodes)
	for _, e := range g.Edges() {
		_ = clone.AddEdge(e.U, e.V, e.Sign)
	}
	return clone
}

// Validate checks symmetry, zero diagonal, sign exclusivity and degree
// consistency. A graph assembled from its exported fields gets its edge index
// built here; an existing index must agree with the matrices.
func (g *Graph) Validate() error {
	if g.NumNodes <= 0 {
		return fmt.Errorf("graph must have positive number of nodes")
	}
	if g.Positive == nil || g.Negative == nil {
		return fmt.Errorf("adjacency matrices are not initialised")
	}
	if g.Positive.SymmetricDim() != g.NumNodes || g.Negative.SymmetricDim() != g.NumNodes {
		return fmt.Errorf("adjacency dimension does not match %d nodes", g.NumNodes)
	}
	if len(g.PosDegree) != g.NumNodes || len(g.NegDegree) != g.NumNodes {
		return fmt.Errorf("degree vectors do not match %d nodes", g.NumNodes)
	}

	for i := 0; i < g.NumNodes; i++ {
		if g.Positive.At(i, i) != 0 || g.Negative.At(i, i) != 0 {
			return fmt.Errorf("non-zero diagonal at node %d", i)
		}

		var dp, dn float64
		for j := 0; j < g.NumNodes; j++ {
			p, n := g.Positive.At(i, j), g.Negative.At(i, j)
			if (p != 0 && p != 1) || (n != 0 && n != 1) {
				return fmt.Errorf("non-binary adjacency entry at (%d,%d)", i, j)
			}
			if p == 1 && n == 1 {
				return fmt.Errorf("edge %d-%d is both positive and negative", i, j)
			}
			dp += p
			dn += n
		}
		if dp != g.PosDegree[i] || dn != g.NegDegree[i] {
			return fmt.Errorf("degree mismatch at node %d: D+=%v (rows %v), D-=%v (rows %v)",
				i, g.PosDegree[i], dp, g.NegDegree[i], dn)
		}
	}

	edges := g.matrixEdges()
	if g.topology == nil {
		g.topology = simple.NewWeightedUndirectedGraph(0, 0)
		for i := 0; i < g.NumNodes; i++ {
			g.topology.AddNode(simple.Node(i))
		}
		for _, e := range edges {
			g.topology.SetWeightedEdge(g.topology.NewWeightedEdge(simple.Node(e.U), simple.Node(e.V), float64(e.Sign)))
		}
		return nil
	}
	if got := g.topology.WeightedEdges().Len(); got != len(edges) {
		return fmt.Errorf("edge index holds %d edges, adjacency matrices %d", got, len(edges))
	}
	for _, e := range edges {
		w := g.topology.WeightedEdge(int64(e.U), int64(e.V))
		if w == nil || Sign(w.Weight()) != e.Sign {
			return fmt.Errorf("edge index disagrees with adjacency matrices on %d-%d", e.U, e.V)
		}
	}
	return nil
}
