package colgen

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/signed-graph-colgen/pkg/signed"
	"github.com/gilchrisn/signed-graph-colgen/pkg/solver"
)

// PricingResult is an optimal solution of the pricing problem
type PricingResult struct {
	ReducedCost float64   // optimal value: w(C) - Σ_{u∈C} y_u
	Community   Community // {u : x_u >= 1 - ε}
	Weight      float64   // w(C) recomputed from the graph
	Membership  []float64 // x_u
	Alpha       []float64 // α_u = s·x_u
	Scale       float64   // s = 1/|C|
	Pairs       []float64 // w_uv = s·x_u·x_v, parallel to the oracle's edge list
	Cardinality int       // imposed |C|, 0 when unconstrained
	Nodes       int       // branch-and-bound nodes explored
}

// PricingOracle finds the community of maximum reduced cost under the current
// master duals by solving a mixed-binary program. The program is built once;
// only the dual term of the objective and the optional cardinality row change
// between solves.
//
// With s = 1/|C|, α_u = s·x_u and w_uv = s·x_u·x_v, the objective
//
//	4Σ_{E+} w_uv - 2(1-λ)Σ D+_u α_u - 4Σ_{E-} w_uv + 2λΣ D-_u α_u - Σ y_u x_u
//
// equals w(C) - Σ_{u∈C} y_u at every integral point.
type PricingOracle struct {
	graph   *signed.Graph
	lambda  float64
	backend solver.Backend
	logger  zerolog.Logger

	// Tolerance is the ε used to read x_u as a member
	Tolerance float64

	model *solver.Model
	x     []int
	alpha []int
	s     int
	edges []signed.Edge
	w     []int

	cardRow     int
	cardinality int
	fresh       bool
}

// NewPricingOracle builds the pricing program for g
func NewPricingOracle(g *signed.Graph, lambda float64, backend solver.Backend, logger zerolog.Logger) (*PricingOracle, error) {
	if lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("%w: lambda must be in [0, 1], got %g", ErrInvalidInput, lambda)
	}
	if g.NumNodes <= 0 {
		return nil, fmt.Errorf("%w: graph must have at least one vertex", ErrInvalidInput)
	}

	o := &PricingOracle{
		graph:     g,
		lambda:    lambda,
		backend:   backend,
		logger:    logger.With().Str("component", "pricing").Logger(),
		Tolerance: DefaultTolerance,
		model:     solver.NewModel(true),
		x:         make([]int, g.NumNodes),
		alpha:     make([]int, g.NumNodes),
		edges:     g.Edges(),
		cardRow:   -1,
	}
	if err := o.build(); err != nil {
		return nil, fmt.Errorf("failed to build pricing model: %w", err)
	}
	return o, nil
}

func (o *PricingOracle) build() error {
	m := o.model
	n := o.graph.NumNodes

	for u := 0; u < n; u++ {
		o.x[u] = m.AddVar("x_"+strconv.Itoa(u), solver.Binary, 0, 1, 0)
	}
	for u := 0; u < n; u++ {
		cost := IsolationValue(o.graph, u, o.lambda)
		o.alpha[u] = m.AddVar("alpha_"+strconv.Itoa(u), solver.Continuous, 0, 1, cost)
	}
	o.s = m.AddVar("s", solver.Continuous, 0, 1, 0)

	o.w = make([]int, len(o.edges))
	for i, e := range o.edges {
		cost := 4.0
		if e.Sign == signed.Negative {
			cost = -4.0
		}
		o.w[i] = m.AddVar(fmt.Sprintf("w_%d_%d", e.U, e.V), solver.Continuous, 0, 1, cost)
	}

	// α_u = s·x_u
	for u := 0; u < n; u++ {
		a, x := o.alpha[u], o.x[u]
		suffix := "_" + strconv.Itoa(u)
		if _, err := m.AddRow("alpha_le_s"+suffix, []solver.Term{{Var: a, Coef: 1}, {Var: o.s, Coef: -1}}, solver.LessEqual, 0); err != nil {
			return err
		}
		if _, err := m.AddRow("alpha_le_x"+suffix, []solver.Term{{Var: a, Coef: 1}, {Var: x, Coef: -1}}, solver.LessEqual, 0); err != nil {
			return err
		}
		if _, err := m.AddRow("alpha_ge"+suffix, []solver.Term{{Var: o.s, Coef: 1}, {Var: x, Coef: 1}, {Var: a, Coef: -1}}, solver.LessEqual, 1); err != nil {
			return err
		}
	}

	// Σα_u = 1 fixes s = 1/|C| and forces a non-empty community
	sum := make([]solver.Term, n)
	for u := 0; u < n; u++ {
		sum[u] = solver.Term{Var: o.alpha[u], Coef: 1}
	}
	if _, err := m.AddRow("alpha_sum", sum, solver.Equal, 1); err != nil {
		return err
	}

	// w_uv = α_u·x_v = α_v·x_u
	for i, e := range o.edges {
		w := o.w[i]
		au, av := o.alpha[e.U], o.alpha[e.V]
		xu, xv := o.x[e.U], o.x[e.V]
		suffix := fmt.Sprintf("_%d_%d", e.U, e.V)
		rows := []struct {
			name  string
			terms []solver.Term
			rhs   float64
		}{
			{"w_le_alpha_u" + suffix, []solver.Term{{Var: w, Coef: 1}, {Var: au, Coef: -1}}, 0},
			{"w_le_alpha_v" + suffix, []solver.Term{{Var: w, Coef: 1}, {Var: av, Coef: -1}}, 0},
			{"w_ge_u" + suffix, []solver.Term{{Var: au, Coef: 1}, {Var: xu, Coef: 1}, {Var: xv, Coef: 1}, {Var: w, Coef: -1}}, 2},
			{"w_ge_v" + suffix, []solver.Term{{Var: av, Coef: 1}, {Var: xu, Coef: 1}, {Var: xv, Coef: 1}, {Var: w, Coef: -1}}, 2},
		}
		for _, r := range rows {
			if _, err := m.AddRow(r.name, r.terms, solver.LessEqual, r.rhs); err != nil {
				return err
			}
		}
	}

	o.logger.Debug().
		Int("variables", m.NumVars()).
		Int("rows", m.NumRows()).
		Int("edges", len(o.edges)).
		Msg("Pricing model built")

	return nil
}

// SetDuals installs the master prices as the -y_u objective coefficients of x_u
func (o *PricingOracle) SetDuals(y DualPrices) error {
	if len(y) != o.graph.NumNodes {
		return fmt.Errorf("%w: got %d duals for %d vertices", ErrInvalidInput, len(y), o.graph.NumNodes)
	}
	for u, yu := range y {
		if math.IsNaN(yu) || math.IsInf(yu, 0) {
			return fmt.Errorf("%w: dual of vertex %d is %g", ErrInvalidInput, u, yu)
		}
		if err := o.model.SetCost(o.x[u], -yu); err != nil {
			return err
		}
	}
	o.fresh = true
	return nil
}

// Invalidate marks the installed duals as stale; Solve fails until SetDuals
func (o *PricingOracle) Invalidate() { o.fresh = false }

// SetCardinality restricts the search to communities of exactly k vertices,
// replacing any previous restriction. The row is added once and re-targeted
// on later calls.
func (o *PricingOracle) SetCardinality(k int) error {
	n := o.graph.NumNodes
	if k < 1 || k > n {
		return fmt.Errorf("%w: cardinality %d outside [1, %d]", ErrInvalidInput, k, n)
	}
	if o.cardRow >= 0 {
		if err := o.model.SetRHS(o.cardRow, float64(k)); err != nil {
			return err
		}
		o.cardinality = k
		return nil
	}

	terms := make([]solver.Term, n)
	for u := 0; u < n; u++ {
		terms[u] = solver.Term{Var: o.x[u], Coef: 1}
	}
	r, err := o.model.AddRow("cardinality", terms, solver.Equal, float64(k))
	if err != nil {
		return err
	}
	o.cardRow, o.cardinality = r, k
	return nil
}

// ClearCardinality removes the cardinality restriction, if any
func (o *PricingOracle) ClearCardinality() error {
	if o.cardRow < 0 {
		return nil
	}
	if err := o.model.RemoveRow(o.cardRow); err != nil {
		return err
	}
	o.cardRow, o.cardinality = -1, 0
	return nil
}

// Cardinality returns the imposed community size, 0 when unconstrained
func (o *PricingOracle) Cardinality() int { return o.cardinality }

// Edges returns the edge list the Pairs of a result are indexed by
func (o *PricingOracle) Edges() []signed.Edge { return o.edges }

// Solve finds the community of maximum reduced cost under the installed duals
func (o *PricingOracle) Solve() (*PricingResult, error) {
	if !o.fresh {
		return nil, fmt.Errorf("%w: pricing duals are stale, call SetDuals first", ErrState)
	}

	sol, err := o.backend.Solve(o.model)
	if err != nil {
		return nil, fmt.Errorf("%w: pricing (cardinality %d): %w", ErrSolver, o.cardinality, err)
	}

	res := &PricingResult{
		ReducedCost: sol.Objective,
		Membership:  pick(sol.X, o.x),
		Alpha:       pick(sol.X, o.alpha),
		Scale:       sol.X[o.s],
		Pairs:       pick(sol.X, o.w),
		Cardinality: o.cardinality,
		Nodes:       sol.Nodes,
	}

	res.Community, err = communityFromIndicator(res.Membership, o.Tolerance)
	if err != nil {
		return nil, fmt.Errorf("%w: pricing selected no vertex: %w", ErrSolver, err)
	}
	if res.Weight, err = Weight(o.graph, res.Community, o.lambda); err != nil {
		return nil, err
	}

	o.logger.Debug().
		Float64("reduced_cost", res.ReducedCost).
		Str("community", res.Community.String()).
		Int("cardinality", o.cardinality).
		Int("nodes", res.Nodes).
		Msg("Pricing solved")

	return res, nil
}

func pick(x []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

// LinearizationGap returns the largest deviation of the linearised products
// from their exact values s·x_u and s·x_u·x_v at res. It is 0 for an exact solve.
func (o *PricingOracle) LinearizationGap(res *PricingResult) float64 {
	gap := 0.0
	for u := range res.Alpha {
		want := 0.0
		if res.Community.Contains(u) {
			want = res.Scale
		}
		gap = math.Max(gap, math.Abs(res.Alpha[u]-want))
	}
	for i, e := range o.edges {
		want := 0.0
		if res.Community.Contains(e.U) && res.Community.Contains(e.V) {
			want = res.Scale
		}
		gap = math.Max(gap, math.Abs(res.Pairs[i]-want))
	}
	if size := res.Community.Size(); size > 0 {
		gap = math.Max(gap, math.Abs(res.Scale-1/float64(size)))
	}
	return gap
}
