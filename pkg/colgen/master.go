package colgen

import (
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/gilchrisn/signed-graph-colgen/pkg/signed"
	"github.com/gilchrisn/signed-graph-colgen/pkg/solver"
)

type masterState int

const (
	masterBuilt masterState = iota
	masterSolved
	masterExtended
)

func (s masterState) String() string {
	switch s {
	case masterBuilt:
		return "built"
	case masterSolved:
		return "solved"
	default:
		return "extended"
	}
}

// MasterSolution is an optimal solution of the restricted master LP
type MasterSolution struct {
	Objective float64
	Columns   []Column  // columns of the master at solve time
	Primal    []float64 // z value per column, parallel to Columns
	Duals     DualPrices
}

// Value returns z_C for c, or 0 when c is not a column
func (s *MasterSolution) Value(c Community) float64 {
	for i, col := range s.Columns {
		if col.Community.Equal(c) {
			return s.Primal[i]
		}
	}
	return 0
}

// Support returns the columns with z > eps in column order
func (s *MasterSolution) Support(eps float64) []PrimalEntry {
	var out []PrimalEntry
	for i, col := range s.Columns {
		if s.Primal[i] > eps {
			out = append(out, PrimalEntry{Community: col.Community, Weight: col.Weight, Value: s.Primal[i]})
		}
	}
	return out
}

// ReducedCost returns w(C) - Σ_{u∈C} y_u under the solution's duals
func (s *MasterSolution) ReducedCost(col Column) float64 {
	return col.Weight - s.Duals.Sum(col.Community)
}

// Sum returns Σ_{u∈C} y_u
func (d DualPrices) Sum(c Community) float64 {
	members := c.Members()
	y := make([]float64, len(members))
	for i, u := range members {
		y[i] = d[u]
	}
	return floats.Sum(y)
}

// Coverage returns Σ_{C∋u} z_C for every vertex u
func (s *MasterSolution) Coverage(n int) []float64 {
	cover := make([]float64, n)
	for i, col := range s.Columns {
		for _, u := range col.Community.Members() {
			cover[u] += s.Primal[i]
		}
	}
	return cover
}

// MasterLP is the restricted master of the set-partitioning formulation:
//
//	maximize Σ w(C) z_C  s.t.  Σ_{C∋u} z_C = 1 for every vertex u,  z ≥ 0
//
// It owns one solver model that grows by one variable per Extend.
type MasterLP struct {
	graph   *signed.Graph
	backend solver.Backend
	logger  zerolog.Logger

	model   *solver.Model
	rows    []int // vertex -> model row
	columns []Column
	index   map[string]int

	state masterState
	last  *MasterSolution
}

// NewMasterLP builds the master over every column of pool
func NewMasterLP(g *signed.Graph, pool *ColumnPool, backend solver.Backend, logger zerolog.Logger) (*MasterLP, error) {
	if pool.Len() == 0 {
		return nil, fmt.Errorf("%w: master needs at least one column", ErrInvalidInput)
	}

	m := &MasterLP{
		graph:   g,
		backend: backend,
		logger:  logger.With().Str("component", "master").Logger(),
		model:   solver.NewModel(true),
		rows:    make([]int, g.NumNodes),
		index:   make(map[string]int),
	}

	for u := 0; u < g.NumNodes; u++ {
		r, err := m.model.AddRow("cover_"+strconv.Itoa(u), nil, solver.Equal, 1)
		if err != nil {
			return nil, err
		}
		m.rows[u] = r
	}

	for _, col := range pool.Columns() {
		if err := m.addColumn(col); err != nil {
			return nil, err
		}
	}

	m.logger.Debug().
		Int("rows", g.NumNodes).
		Int("columns", len(m.columns)).
		Msg("Master LP built")

	return m, nil
}

func (m *MasterLP) addColumn(col Column) error {
	if col.Community.NumVertices() != m.graph.NumNodes {
		return fmt.Errorf("%w: column over %d vertices, graph has %d",
			ErrInvalidInput, col.Community.NumVertices(), m.graph.NumNodes)
	}

	members := col.Community.Members()
	entries := make([]solver.Entry, len(members))
	for i, u := range members {
		entries[i] = solver.Entry{Row: m.rows[u], Coef: 1}
	}

	if _, err := m.model.AddColumn("z_"+col.Community.String(), solver.Continuous, 0, math.Inf(1), col.Weight, entries); err != nil {
		return err
	}
	m.index[col.Community.Key()] = len(m.columns)
	m.columns = append(m.columns, col)
	return nil
}

// Solve optimises the master and caches the solution until the next Extend
func (m *MasterLP) Solve() (*MasterSolution, error) {
	sol, err := m.backend.Solve(m.model)
	if err != nil {
		return nil, fmt.Errorf("%w: master LP with %d columns: %w", ErrSolver, len(m.columns), err)
	}
	if len(sol.Duals) != m.model.NumRows() {
		return nil, fmt.Errorf("%w: master LP returned %d duals for %d rows", ErrSolver, len(sol.Duals), m.model.NumRows())
	}

	duals := make(DualPrices, m.graph.NumNodes)
	for u, r := range m.rows {
		duals[u] = sol.Duals[r]
	}

	primal := make([]float64, len(m.columns))
	copy(primal, sol.X)

	columns := make([]Column, len(m.columns))
	copy(columns, m.columns)

	m.last = &MasterSolution{
		Objective: sol.Objective,
		Columns:   columns,
		Primal:    primal,
		Duals:     duals,
	}
	m.state = masterSolved

	m.logger.Debug().
		Float64("objective", sol.Objective).
		Int("columns", len(m.columns)).
		Msg("Master LP solved")

	return m.last, nil
}

// Extend appends col to the master. It reports false and leaves the master
// untouched when a column for the same community already exists.
func (m *MasterLP) Extend(col Column) (bool, error) {
	if _, exists := m.index[col.Community.Key()]; exists {
		return false, nil
	}
	if err := m.addColumn(col); err != nil {
		return false, err
	}
	m.state = masterExtended
	m.last = nil
	return true, nil
}

// Solution returns the cached solution of the current master
func (m *MasterLP) Solution() (*MasterSolution, error) {
	if m.state != masterSolved {
		return nil, fmt.Errorf("%w: master is %v, solve it first", ErrState, m.state)
	}
	return m.last, nil
}

// Duals returns the prices of the current master's optimal solution
func (m *MasterLP) Duals() (DualPrices, error) {
	sol, err := m.Solution()
	if err != nil {
		return nil, err
	}
	return sol.Duals, nil
}

// Objective returns the optimal value of the current master
func (m *MasterLP) Objective() (float64, error) {
	sol, err := m.Solution()
	if err != nil {
		return math.NaN(), err
	}
	return sol.Objective, nil
}

// NumColumns returns the number of columns in the master
func (m *MasterLP) NumColumns() int { return len(m.columns) }

// Contains reports whether the master has a column for c
func (m *MasterLP) Contains(c Community) bool {
	_, exists := m.index[c.Key()]
	return exists
}
