package solver

import (
	"errors"
	"fmt"
	"math"
)

// bnbNode is a subproblem of the branch-and-bound tree: the root model
// under tightened bounds on some binary variables.
type bnbNode struct {
	lower []float64
	upper []float64
	depth int
}

func (n bnbNode) child(j int, lower, upper float64) bnbNode {
	c := bnbNode{
		lower: append([]float64(nil), n.lower...),
		upper: append([]float64(nil), n.upper...),
		depth: n.depth + 1,
	}
	c.lower[j], c.upper[j] = lower, upper
	return c
}

// branchAndBound solves a model with binary variables exactly. The model is
// compiled once and every node re-solves it under its own bounds. Nodes are
// explored depth first; a node is pruned when its LP relaxation cannot beat
// the incumbent.
func (s *Simplex) branchAndBound(m *Model) (*Solution, error) {
	program := compileBounded(m)
	lower, upper := modelBounds(m)
	stack := []bnbNode{{lower: lower, upper: upper}}

	var incumbent *Solution
	nodes := 0

	// better reports whether a is strictly better than b in the model's sense
	better := func(a, b float64) bool {
		if m.Maximize {
			return a > b+1e-9
		}
		return a < b-1e-9
	}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		nodes++
		if s.MaxNodes > 0 && nodes > s.MaxNodes {
			return nil, fmt.Errorf("%w: %d nodes explored", ErrNodeLimit, s.MaxNodes)
		}

		x, err := s.solveBounded(program, node.lower, node.upper)
		if err != nil {
			if errors.Is(err, ErrInfeasible) {
				continue
			}
			if errors.Is(err, ErrUnbounded) && node.depth > 0 {
				return nil, fmt.Errorf("%w: relaxation unbounded at depth %d", ErrNumerical, node.depth)
			}
			return nil, err
		}
		relax := &Solution{X: x, Objective: m.Evaluate(x)}

		if incumbent != nil && !better(relax.Objective, incumbent.Objective) {
			continue
		}

		// Most fractional binary variable
		branchVar, frac := -1, 0.0
		for j, v := range m.vars {
			if v.kind != Binary {
				continue
			}
			f := math.Abs(relax.X[j] - math.Round(relax.X[j]))
			if f > s.Integrality && f > frac {
				branchVar, frac = j, f
			}
		}

		if branchVar < 0 {
			for j, v := range m.vars {
				if v.kind == Binary {
					relax.X[j] = math.Round(relax.X[j])
				}
			}
			relax.Objective = m.Evaluate(relax.X)
			if incumbent == nil || better(relax.Objective, incumbent.Objective) {
				incumbent = relax
				s.Logger.Trace().
					Int("node", nodes).
					Int("depth", node.depth).
					Float64("objective", relax.Objective).
					Msg("New incumbent")
			}
			continue
		}

		down := node.child(branchVar, node.lower[branchVar], 0)
		up := node.child(branchVar, 1, node.upper[branchVar])
		// The child nearer to the relaxation value is explored first
		if relax.X[branchVar] >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if incumbent == nil {
		return nil, ErrInfeasible
	}
	incumbent.Nodes = nodes

	s.Logger.Debug().
		Int("nodes", nodes).
		Float64("objective", incumbent.Objective).
		Msg("Branch and bound finished")

	return incumbent, nil
}
