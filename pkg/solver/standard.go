package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// standardForm is a model rewritten as
//
//	minimize c^T x  s.t.  A x = b, x >= 0
//
// with every variable shifted by its lower bound, one slack per inequality row
// and one bound row per finite upper bound.
type standardForm struct {
	c      []float64
	A      *mat.Dense
	b      []float64
	offset float64 // constant objective term from the lower-bound shift, min sense

	colOf []int     // model variable -> standard column, -1 when fixed at its lower bound
	rowOf []int     // model row -> standard row, -1 when removed or dropped
	lower []float64 // lower bounds used for the shift
}

// toStandardForm compiles m under the given bound overrides. The returned
// objective is always in minimisation sense.
func toStandardForm(m *Model, lower, upper []float64, tol float64) (*standardForm, error) {
	n := len(m.vars)
	sf := &standardForm{
		colOf: make([]int, n),
		rowOf: make([]int, len(m.rows)),
		lower: lower,
	}

	sign := 1.0
	if m.Maximize {
		sign = -1.0
	}

	// Row right-hand sides after shifting every variable by its lower bound
	rhs := make([]float64, len(m.rows))
	hasTerms := make([]bool, len(m.rows))
	for r, row := range m.rows {
		rhs[r] = row.rhs
	}

	var cols []int
	for j, v := range m.vars {
		l, u := lower[j], upper[j]
		if math.IsInf(l, -1) || math.IsNaN(l) {
			return nil, fmt.Errorf("%w: variable %s has no finite lower bound", ErrInvalidModel, v.name)
		}
		if u < l-tol {
			return nil, fmt.Errorf("%w: variable %s has empty domain [%g, %g]", ErrInfeasible, v.name, l, u)
		}

		cost := sign * v.cost
		sf.offset += cost * l
		for _, e := range v.entries {
			rhs[e.Row] -= e.Coef * l
		}

		occurs := false
		for _, e := range v.entries {
			if e.Coef != 0 && !m.rows[e.Row].removed {
				occurs = true
				break
			}
		}

		switch {
		case u-l <= tol:
			sf.colOf[j] = -1
		case !occurs && math.IsInf(u, 1):
			if cost < 0 {
				return nil, fmt.Errorf("%w: variable %s is unconstrained and improving", ErrUnbounded, v.name)
			}
			sf.colOf[j] = -1
		default:
			sf.colOf[j] = len(cols)
			cols = append(cols, j)
			for _, e := range v.entries {
				if e.Coef != 0 {
					hasTerms[e.Row] = true
				}
			}
		}
	}

	// Decide which model rows survive; rows without free columns are checked and dropped
	var keptRows []int
	for r, row := range m.rows {
		sf.rowOf[r] = -1
		if row.removed {
			continue
		}
		if !hasTerms[r] {
			var ok bool
			switch row.sense {
			case LessEqual:
				ok = rhs[r] >= -tol
			case GreaterEqual:
				ok = rhs[r] <= tol
			default:
				ok = math.Abs(rhs[r]) <= tol
			}
			if !ok {
				return nil, fmt.Errorf("%w: row %s cannot be satisfied by fixed variables", ErrInfeasible, row.name)
			}
			continue
		}
		sf.rowOf[r] = len(keptRows)
		keptRows = append(keptRows, r)
	}

	var boundCols []int
	for _, j := range cols {
		if !math.IsInf(upper[j], 1) {
			boundCols = append(boundCols, j)
		}
	}

	numSlacks := len(boundCols)
	for _, r := range keptRows {
		if m.rows[r].sense != Equal {
			numSlacks++
		}
	}

	numRows := len(keptRows) + len(boundCols)
	numCols := len(cols) + numSlacks
	if numRows == 0 {
		return sf, nil
	}
	if numRows > numCols {
		return nil, fmt.Errorf("%w: %d rows exceed %d columns after compilation", ErrInvalidModel, numRows, numCols)
	}

	sf.c = make([]float64, numCols)
	sf.b = make([]float64, numRows)
	sf.A = mat.NewDense(numRows, numCols, nil)

	for k, j := range cols {
		sf.c[k] = sign * m.vars[j].cost
		for _, e := range m.vars[j].entries {
			if i := sf.rowOf[e.Row]; i >= 0 {
				sf.A.Set(i, k, sf.A.At(i, k)+e.Coef)
			}
		}
	}

	slack := len(cols)
	for i, r := range keptRows {
		sf.b[i] = rhs[r]
		switch m.rows[r].sense {
		case LessEqual:
			sf.A.Set(i, slack, 1)
			slack++
		case GreaterEqual:
			sf.A.Set(i, slack, -1)
			slack++
		}
	}

	for k, j := range boundCols {
		i := len(keptRows) + k
		sf.A.Set(i, sf.colOf[j], 1)
		sf.A.Set(i, slack, 1)
		sf.b[i] = upper[j] - lower[j]
		slack++
	}

	return sf, nil
}

// toModel maps a standard-form point back to model variables
func (sf *standardForm) toModel(x []float64) []float64 {
	out := make([]float64, len(sf.colOf))
	for j, k := range sf.colOf {
		out[j] = sf.lower[j]
		if k >= 0 && x != nil {
			out[j] += x[k]
		}
	}
	return out
}
