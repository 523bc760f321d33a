package solver

import (
	"fmt"
	"math"
)

// VarType distinguishes continuous from binary decision variables
type VarType int

const (
	Continuous VarType = iota
	Binary
)

func (t VarType) String() string {
	if t == Binary {
		return "binary"
	}
	return "continuous"
}

// Sense is the relation of a linear constraint to its right-hand side
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return "="
	}
}

// Term is one coefficient of a row, addressed by variable index
type Term struct {
	Var  int
	Coef float64
}

// Entry is one coefficient of a column, addressed by row index
type Entry struct {
	Row  int
	Coef float64
}

type variable struct {
	name    string
	kind    VarType
	lower   float64
	upper   float64
	cost    float64
	entries []Entry
}

type constraint struct {
	name    string
	sense   Sense
	rhs     float64
	removed bool
}

// Model is a mutable linear or mixed-binary program. Variables and rows are
// addressed by the index returned when they are added and are never renumbered;
// removed rows keep their index and are skipped when the model is solved.
type Model struct {
	Maximize bool

	vars []variable
	rows []constraint
}

// NewModel creates an empty model with the given objective direction
func NewModel(maximize bool) *Model {
	return &Model{Maximize: maximize}
}

// AddVar adds a variable that appears in no row yet
func (m *Model) AddVar(name string, kind VarType, lower, upper, cost float64) int {
	if kind == Binary {
		lower, upper = math.Max(lower, 0), math.Min(upper, 1)
	}
	m.vars = append(m.vars, variable{name: name, kind: kind, lower: lower, upper: upper, cost: cost})
	return len(m.vars) - 1
}

// AddColumn adds a variable together with its coefficients in existing rows.
// Existing rows and variables are left untouched.
func (m *Model) AddColumn(name string, kind VarType, lower, upper, cost float64, entries []Entry) (int, error) {
	for _, e := range entries {
		if e.Row < 0 || e.Row >= len(m.rows) {
			return -1, fmt.Errorf("%w: column %q references unknown row %d", ErrInvalidModel, name, e.Row)
		}
		if m.rows[e.Row].removed {
			return -1, fmt.Errorf("%w: column %q references removed row %d", ErrInvalidModel, name, e.Row)
		}
	}
	j := m.AddVar(name, kind, lower, upper, cost)
	m.vars[j].entries = append(m.vars[j].entries, entries...)
	return j, nil
}

// AddRow adds the constraint sum(terms) <sense> rhs and returns its index
func (m *Model) AddRow(name string, terms []Term, sense Sense, rhs float64) (int, error) {
	for _, t := range terms {
		if t.Var < 0 || t.Var >= len(m.vars) {
			return -1, fmt.Errorf("%w: row %q references unknown variable %d", ErrInvalidModel, name, t.Var)
		}
	}
	m.rows = append(m.rows, constraint{name: name, sense: sense, rhs: rhs})
	r := len(m.rows) - 1
	for _, t := range terms {
		if t.Coef == 0 {
			continue
		}
		m.vars[t.Var].entries = append(m.vars[t.Var].entries, Entry{Row: r, Coef: t.Coef})
	}
	return r, nil
}

// RemoveRow drops a row from the model. Its index is not reused.
func (m *Model) RemoveRow(r int) error {
	if r < 0 || r >= len(m.rows) {
		return fmt.Errorf("%w: unknown row %d", ErrInvalidModel, r)
	}
	if m.rows[r].removed {
		return fmt.Errorf("%w: row %d already removed", ErrInvalidModel, r)
	}
	m.rows[r].removed = true
	for j := range m.vars {
		entries := m.vars[j].entries[:0]
		for _, e := range m.vars[j].entries {
			if e.Row != r {
				entries = append(entries, e)
			}
		}
		m.vars[j].entries = entries
	}
	return nil
}

// SetCost replaces the objective coefficient of variable j
func (m *Model) SetCost(j int, cost float64) error {
	if j < 0 || j >= len(m.vars) {
		return fmt.Errorf("%w: unknown variable %d", ErrInvalidModel, j)
	}
	m.vars[j].cost = cost
	return nil
}

// SetRHS replaces the right-hand side of row r
func (m *Model) SetRHS(r int, rhs float64) error {
	if r < 0 || r >= len(m.rows) || m.rows[r].removed {
		return fmt.Errorf("%w: unknown row %d", ErrInvalidModel, r)
	}
	m.rows[r].rhs = rhs
	return nil
}

// NumVars returns the number of variables
func (m *Model) NumVars() int { return len(m.vars) }

// NumRows returns the number of row indices handed out, including removed rows
func (m *Model) NumRows() int { return len(m.rows) }

// ActiveRows returns the number of rows that take part in a solve
func (m *Model) ActiveRows() int {
	n := 0
	for _, r := range m.rows {
		if !r.removed {
			n++
		}
	}
	return n
}

// Removed reports whether row r has been removed
func (m *Model) Removed(r int) bool {
	return r >= 0 && r < len(m.rows) && m.rows[r].removed
}

// Cost returns the objective coefficient of variable j
func (m *Model) Cost(j int) float64 { return m.vars[j].cost }

// Bounds returns the bounds of variable j
func (m *Model) Bounds(j int) (lower, upper float64) { return m.vars[j].lower, m.vars[j].upper }

// Kind returns the type of variable j
func (m *Model) Kind(j int) VarType { return m.vars[j].kind }

// VarName returns the name of variable j
func (m *Model) VarName(j int) string { return m.vars[j].name }

// HasIntegers reports whether any variable is binary
func (m *Model) HasIntegers() bool {
	for _, v := range m.vars {
		if v.kind == Binary {
			return true
		}
	}
	return false
}

// Evaluate returns the objective value of x
func (m *Model) Evaluate(x []float64) float64 {
	obj := 0.0
	for j, v := range m.vars {
		obj += v.cost * x[j]
	}
	return obj
}

// Activity returns the left-hand side of every row at x; removed rows read 0
func (m *Model) Activity(x []float64) []float64 {
	act := make([]float64, len(m.rows))
	for j, v := range m.vars {
		for _, e := range v.entries {
			act[e.Row] += e.Coef * x[j]
		}
	}
	return act
}

// CheckFeasible verifies bounds, integrality and every active row at x within tol
func (m *Model) CheckFeasible(x []float64, tol float64) error {
	if len(x) != len(m.vars) {
		return fmt.Errorf("solution has %d values, model has %d variables", len(x), len(m.vars))
	}
	for j, v := range m.vars {
		if x[j] < v.lower-tol || x[j] > v.upper+tol {
			return fmt.Errorf("variable %s=%g outside [%g, %g]", v.name, x[j], v.lower, v.upper)
		}
		if v.kind == Binary && math.Abs(x[j]-math.Round(x[j])) > tol {
			return fmt.Errorf("binary variable %s=%g is fractional", v.name, x[j])
		}
	}
	act := m.Activity(x)
	for r, c := range m.rows {
		if c.removed {
			continue
		}
		var ok bool
		switch c.sense {
		case LessEqual:
			ok = act[r] <= c.rhs+tol
		case GreaterEqual:
			ok = act[r] >= c.rhs-tol
		default:
			ok = math.Abs(act[r]-c.rhs) <= tol
		}
		if !ok {
			return fmt.Errorf("row %s violated: %g %v %g", c.name, act[r], c.sense, c.rhs)
		}
	}
	return nil
}
