package colgen

import (
	"context"
	"math"
	"time"

	"github.com/gilchrisn/signed-graph-colgen/pkg/partition"
	"github.com/gilchrisn/signed-graph-colgen/pkg/signed"
)

// RunPartitioned is column generation with a cardinality sweep: after every
// master solve the pricing program is solved once per community size
// k = partition.k_min .. partition.k_max, and every improving community found
// in the sweep enters the master before it is solved again. The run stops when
// a whole sweep finds nothing.
func (c *Controller) RunPartitioned(ctx context.Context, initial partition.Partition) (*Result, error) {
	s, err := c.newSession(VariantPartitioned, initial)
	if err != nil {
		return nil, err
	}
	return s.finish(s.partitioned(ctx))
}

func (s *session) partitioned(ctx context.Context) error {
	kMin, kMax := s.c.config.KRange(s.c.graph.NumNodes)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		masterTime, err := s.solveMaster()
		if err != nil {
			return err
		}
		if s.capped() {
			return nil
		}

		start := time.Now()
		if err := s.oracle.SetDuals(s.current.Duals); err != nil {
			return err
		}

		sweep := Sweep{Iteration: s.iteration}
		best := math.Inf(-1)
		var improving []*PricingResult
		for k := kMin; k <= kMax; k++ {
			if err := s.oracle.SetCardinality(k); err != nil {
				return err
			}
			res, err := s.price()
			if err != nil {
				return err
			}
			sweep.Points = append(sweep.Points, SweepPoint{K: k, ReducedCost: res.ReducedCost, Community: res.Community})
			best = math.Max(best, res.ReducedCost)
			if res.ReducedCost > s.eps {
				improving = append(improving, res)
			}
		}
		pricingTime := time.Since(start)

		if len(improving) == 0 {
			s.result.Sweeps = append(s.result.Sweeps, sweep)
			s.result.Converged = true
			s.observe(masterTime, pricingTime, best, 0)
			s.logger.Debug().
				Int("iteration", s.iteration).
				Float64("best_reduced_cost", best).
				Msg("Converged: sweep found no improving community")
			return nil
		}

		added, err := s.admit(improving)
		if err != nil {
			return err
		}
		sweep.Added = added
		s.result.Sweeps = append(s.result.Sweeps, sweep)
		s.observe(masterTime, pricingTime, best, added)
		s.progress(best, added)
		s.iteration++
	}
}

// RunPartitioned executes the cardinality-sweep variant with default options
func RunPartitioned(ctx context.Context, g *signed.Graph, config *Config) (*Result, error) {
	c, err := NewController(g, config)
	if err != nil {
		return nil, err
	}
	return c.RunPartitioned(ctx, nil)
}
