package solver

import (
	"fmt"
	"math"
)

const (
	pivotTol      = 1e-9
	optimalityTol = 1e-9
	phaseOneTol   = 1e-7
	// degenerate pivots in a row before switching to Bland's rule
	degenerateRun = 50
)

// boundedProgram is a model compiled once for repeated relaxation solves under
// changing variable bounds. Bounds are enforced by the simplex itself, so
// they cost no rows.
type boundedProgram struct {
	varNames []string
	cost     []float64 // minimisation sense
	rows     [][]Term  // structural coefficients of every active row
	sense    []Sense
	rhs      []float64
}

func compileBounded(m *Model) *boundedProgram {
	p := &boundedProgram{
		varNames: make([]string, len(m.vars)),
		cost:     make([]float64, len(m.vars)),
	}
	sign := 1.0
	if m.Maximize {
		sign = -1.0
	}

	index := make([]int, len(m.rows))
	for r, row := range m.rows {
		index[r] = -1
		if row.removed {
			continue
		}
		index[r] = len(p.rows)
		p.rows = append(p.rows, nil)
		p.sense = append(p.sense, row.sense)
		p.rhs = append(p.rhs, row.rhs)
	}
	for j, v := range m.vars {
		p.varNames[j] = v.name
		p.cost[j] = sign * v.cost
		for _, e := range v.entries {
			if i := index[e.Row]; i >= 0 && e.Coef != 0 {
				p.rows[i] = append(p.rows[i], Term{Var: j, Coef: e.Coef})
			}
		}
	}
	return p
}

// tableau is a dense bounded-variable simplex tableau. Every column is
// shifted so its lower bound is 0; nonbasic columns sit at 0 or at their
// upper bound.
type tableau struct {
	t       [][]float64 // B^-1 A
	basis   []int       // basic column of each row
	row     []int       // row of a basic column, -1 when nonbasic
	upper   []float64
	value   []float64
	atUpper []bool
}

// solveBounded solves the LP relaxation of p with variables in [lower, upper]
// and returns one value per model variable.
func (s *Simplex) solveBounded(p *boundedProgram, lower, upper []float64) ([]float64, error) {
	n := len(p.cost)
	m := len(p.rows)

	ub := make([]float64, n)
	for j := 0; j < n; j++ {
		l, u := lower[j], upper[j]
		if math.IsInf(l, -1) || math.IsNaN(l) {
			return nil, fmt.Errorf("%w: variable %s has no finite lower bound", ErrInvalidModel, p.varNames[j])
		}
		if u < l-s.Integrality {
			return nil, fmt.Errorf("%w: variable %s has empty domain [%g, %g]", ErrInfeasible, p.varNames[j], l, u)
		}
		ub[j] = math.Max(u-l, 0)
		if ub[j] <= s.Integrality {
			ub[j] = 0
		}
	}

	// Row i becomes mult_i·(a_i x) + slackCoef_i·s_i + art_i = beta_i >= 0
	beta := make([]float64, m)
	mult := make([]float64, m)
	slackOf := make([]int, m)
	artOf := make([]int, m)
	cols := n
	for i, row := range p.rows {
		b := p.rhs[i]
		for _, t := range row {
			b -= t.Coef * lower[t.Var]
		}

		sigma := 1.0
		if p.sense[i] == GreaterEqual {
			sigma = -1.0
		}
		slackOf[i], artOf[i] = -1, -1
		if p.sense[i] != Equal {
			slackOf[i] = cols
			cols++
		}
		mult[i] = sigma
		if sigma*b < 0 {
			mult[i] = -sigma
		}
		beta[i] = mult[i] * b
		if p.sense[i] == Equal || mult[i] != sigma {
			artOf[i] = -2
		}
	}
	var arts []int
	for i := range artOf {
		if artOf[i] == -2 {
			artOf[i] = cols
			arts = append(arts, cols)
			cols++
		}
	}

	tb := &tableau{
		t:       make([][]float64, m),
		basis:   make([]int, m),
		row:     make([]int, cols),
		upper:   make([]float64, cols),
		value:   make([]float64, cols),
		atUpper: make([]bool, cols),
	}
	copy(tb.upper, ub)
	for j := n; j < cols; j++ {
		tb.upper[j] = math.Inf(1)
	}
	for j := range tb.row {
		tb.row[j] = -1
	}
	for i, row := range p.rows {
		r := make([]float64, cols)
		for _, t := range row {
			r[t.Var] += mult[i] * t.Coef
		}
		basic := artOf[i]
		if sl := slackOf[i]; sl >= 0 {
			sigma := 1.0
			if p.sense[i] == GreaterEqual {
				sigma = -1.0
			}
			r[sl] = mult[i] * sigma
			if basic < 0 {
				basic = sl
			}
		}
		if a := artOf[i]; a >= 0 {
			r[a] = 1
		}
		tb.t[i] = r
		tb.basis[i] = basic
		tb.row[basic] = i
		tb.value[basic] = beta[i]
	}

	if len(arts) > 0 {
		c := make([]float64, cols)
		for _, a := range arts {
			c[a] = 1
		}
		if err := tb.optimize(c); err != nil {
			return nil, fmt.Errorf("phase one: %w", err)
		}

		scale := 1.0
		for _, b := range beta {
			scale = math.Max(scale, b)
		}
		infeasibility := 0.0
		for _, a := range arts {
			infeasibility += tb.value[a]
		}
		if infeasibility > phaseOneTol*scale {
			return nil, ErrInfeasible
		}
		for _, a := range arts {
			tb.upper[a] = 0
			tb.value[a] = 0
			tb.atUpper[a] = false
		}
	}

	c := make([]float64, cols)
	copy(c, p.cost)
	if err := tb.optimize(c); err != nil {
		return nil, err
	}

	x := make([]float64, n)
	for j := range x {
		v := math.Min(math.Max(tb.value[j], 0), ub[j])
		x[j] = lower[j] + v
	}
	return x, nil
}

// optimize runs primal simplex iterations minimising c from the current
// feasible basis.
func (tb *tableau) optimize(c []float64) error {
	m, cols := len(tb.t), len(tb.value)

	d := make([]float64, cols)
	copy(d, c)
	for i, r := range tb.t {
		cb := c[tb.basis[i]]
		if cb == 0 {
			continue
		}
		for j, v := range r {
			d[j] -= cb * v
		}
	}

	bland := false
	degenerate := 0
	limit := 50*(m+cols) + 1000
	for iter := 0; iter < limit; iter++ {
		// Entering column: most violated reduced cost, or the first one under Bland
		q, dir, best := -1, 0.0, 0.0
		for j := 0; j < cols; j++ {
			if tb.row[j] >= 0 || tb.upper[j] <= 0 {
				continue
			}
			var score, sdir float64
			switch {
			case !tb.atUpper[j] && d[j] < -optimalityTol:
				score, sdir = -d[j], 1
			case tb.atUpper[j] && d[j] > optimalityTol:
				score, sdir = d[j], -1
			default:
				continue
			}
			if bland {
				q, dir = j, sdir
				break
			}
			if score > best {
				q, dir, best = j, sdir, score
			}
		}
		if q < 0 {
			return nil
		}

		// Ratio test, starting from the entering column's own bound
		theta, leave, leaveUpper := tb.upper[q], -1, false
		for i := 0; i < m; i++ {
			a := dir * tb.t[i][q]
			if math.Abs(a) <= pivotTol {
				continue
			}
			bv := tb.basis[i]
			var lim float64
			toUpper := false
			if a > 0 {
				lim = tb.value[bv] / a
			} else {
				if math.IsInf(tb.upper[bv], 1) {
					continue
				}
				lim = (tb.upper[bv] - tb.value[bv]) / -a
				toUpper = true
			}
			lim = math.Max(lim, 0)

			take := lim < theta-1e-12
			if !take && leave >= 0 && lim <= theta+1e-12 {
				if bland {
					take = bv < tb.basis[leave]
				} else {
					take = math.Abs(a) > math.Abs(tb.t[leave][q])
				}
			}
			if take {
				theta, leave, leaveUpper = lim, i, toUpper
			}
		}
		if math.IsInf(theta, 1) {
			return ErrUnbounded
		}

		step := dir * theta
		if step != 0 {
			for i, r := range tb.t {
				if r[q] != 0 {
					tb.value[tb.basis[i]] -= r[q] * step
				}
			}
		}
		tb.value[q] += step

		if theta <= 1e-12 {
			degenerate++
			bland = bland || degenerate > degenerateRun
		} else {
			degenerate, bland = 0, false
		}

		if leave < 0 {
			// Bound flip, the basis is unchanged
			tb.atUpper[q] = dir > 0
			if tb.atUpper[q] {
				tb.value[q] = tb.upper[q]
			} else {
				tb.value[q] = 0
			}
			continue
		}

		lv := tb.basis[leave]
		if leaveUpper {
			tb.value[lv] = tb.upper[lv]
		} else {
			tb.value[lv] = 0
		}
		tb.atUpper[lv] = leaveUpper
		tb.row[lv] = -1

		tb.pivot(leave, q)
		tb.basis[leave] = q
		tb.row[q] = leave
		tb.atUpper[q] = false

		if f := d[q]; f != 0 {
			for j, v := range tb.t[leave] {
				if v != 0 {
					d[j] -= f * v
				}
			}
		}
		d[q] = 0
	}
	return fmt.Errorf("%w: simplex iteration limit %d reached", ErrNumerical, limit)
}

func (tb *tableau) pivot(r, q int) {
	pr := tb.t[r]
	inv := 1 / pr[q]
	for j := range pr {
		pr[j] *= inv
	}
	pr[q] = 1
	for i, ri := range tb.t {
		if i == r {
			continue
		}
		f := ri[q]
		if f == 0 {
			continue
		}
		for j, v := range pr {
			if v != 0 {
				ri[j] -= f * v
			}
		}
		ri[q] = 0
	}
}
