package colgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/signed-graph-colgen/pkg/partition"
	"github.com/gilchrisn/signed-graph-colgen/pkg/signed"
	"github.com/gilchrisn/signed-graph-colgen/pkg/solver"
)

type recordingObserver struct {
	events  []IterationEvent
	results []*Result
	errs    []error
}

func (r *recordingObserver) ObserveIteration(ev IterationEvent) { r.events = append(r.events, ev) }

func (r *recordingObserver) ObserveRun(res *Result, err error) {
	r.results = append(r.results, res)
	r.errs = append(r.errs, err)
}

// failingBackend fails every solve
type failingBackend struct{}

func (failingBackend) Solve(*solver.Model) (*solver.Solution, error) {
	return nil, solver.ErrNumerical
}

// stallingBackend solves LPs but claims vertex 0 alone improves every pricing problem
type stallingBackend struct{ lp *solver.Simplex }

func (b stallingBackend) Solve(m *solver.Model) (*solver.Solution, error) {
	if !m.HasIntegers() {
		return b.lp.Solve(m)
	}
	x := make([]float64, m.NumVars())
	x[0] = 1
	return &solver.Solution{Objective: 5, X: x}, nil
}

func assertLPOptimal(t *testing.T, res *Result) {
	t.Helper()
	require.True(t, res.Converged)

	for i := 1; i < len(res.Trajectory); i++ {
		assert.GreaterOrEqual(t, res.Trajectory[i], res.Trajectory[i-1]-1e-7, "trajectory step %d", i)
	}
	assert.InDelta(t, res.Objective, res.Trajectory[len(res.Trajectory)-1], 1e-9)

	cover := make([]float64, res.NumNodes)
	primal := 0.0
	for _, e := range res.Primal {
		primal += e.Weight * e.Value
		for _, u := range e.Community.Members() {
			cover[u] += e.Value
		}
	}
	for u, c := range cover {
		assert.InDelta(t, 1.0, c, 1e-6, "coverage of vertex %d", u)
	}
	assert.InDelta(t, res.Objective, primal, 1e-6)

	dual := 0.0
	for _, y := range res.Duals {
		dual += y
	}
	assert.InDelta(t, res.Objective, dual, 1e-6, "strong duality")
	assert.Equal(t, res.Statistics.InitialColumns+res.Statistics.ColumnsAdded, len(res.Columns))
}

func TestControllerRun(t *testing.T) {
	t.Run("Triangle", func(t *testing.T) {
		c := newTestController(t, triangle(t), testConfig())
		res, err := c.Run(context.Background(), nil)
		require.NoError(t, err)

		assertLPOptimal(t, res)
		assert.InDelta(t, 4.0, res.Objective, 1e-6)
		assert.InDeltaSlice(t, []float64{2, 4}, res.Trajectory, 1e-6)
		assert.Equal(t, 1, res.Iterations)
		assert.Equal(t, 1, res.Statistics.ColumnsAdded)
		assert.Equal(t, partition.Partition{{0, 2}, {1}}, sortedPartition(res.Partition))
		assert.NotEmpty(t, res.RunID)
		assert.Equal(t, VariantClassic, res.Variant)
	})

	t.Run("LPOptimumOnRandomGraphs", func(t *testing.T) {
		for seed := int64(1); seed <= 5; seed++ {
			g := randomGraph(t, 5, seed)
			cfg := testConfig()
			cfg.Set("algorithm.lambda", 0.4)
			res, err := newTestController(t, g, cfg).Run(context.Background(), nil)
			require.NoError(t, err, "seed %d", seed)
			assertLPOptimal(t, res)

			// No community prices out at the final duals
			best := bestReducedCost(t, g, 0.4, res.Duals, nil)
			assert.LessOrEqual(t, best, 1e-5, "seed %d", seed)
		}
	})

	t.Run("InitialPartitionsReachSameBound", func(t *testing.T) {
		g := randomGraph(t, 5, 9)

		base, err := newTestController(t, g, testConfig()).Run(context.Background(), nil)
		require.NoError(t, err)

		for _, kind := range []string{InitialRoundRobin, InitialRandom} {
			cfg := testConfig()
			cfg.Set("algorithm.initial_partition", kind)
			cfg.Set("algorithm.initial_parts", 2)
			res, err := newTestController(t, g, cfg).Run(context.Background(), nil)
			require.NoError(t, err, kind)
			assert.InDelta(t, base.Objective, res.Objective, 1e-5, kind)
		}

		res, err := newTestController(t, g, testConfig()).Run(context.Background(), partition.Partition{{0, 1, 2, 3, 4}})
		require.NoError(t, err)
		assert.InDelta(t, base.Objective, res.Objective, 1e-5)
		assert.Equal(t, 6, res.Statistics.InitialColumns)
	})

	t.Run("IterationCap", func(t *testing.T) {
		cfg := testConfig()
		cfg.Set("algorithm.max_iterations", 1)
		res, err := newTestController(t, triangle(t), cfg).Run(context.Background(), nil)
		require.NoError(t, err)
		assert.False(t, res.Converged)
		assert.Equal(t, 1, res.Iterations)
		assert.Len(t, res.Trajectory, 2)
		assert.InDelta(t, 4.0, res.Objective, 1e-6)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestController(t, triangle(t), testConfig()).Run(ctx, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)

		var runErr *RunError
		require.True(t, errors.As(err, &runErr))
		assert.Equal(t, 0, runErr.Iteration)
		assert.Equal(t, VariantClassic, runErr.Variant)
		assert.True(t, math.IsNaN(runErr.LastObjective))

		_, err = newTestController(t, triangle(t), testConfig()).RunPartitioned(ctx, nil)
		require.True(t, errors.As(err, &runErr))
		assert.Equal(t, VariantPartitioned, runErr.Variant)
	})

	t.Run("SolverFailureIsFatal", func(t *testing.T) {
		obs := &recordingObserver{}
		c := newTestController(t, triangle(t), testConfig(), WithBackend(failingBackend{}), WithObserver(obs))
		_, err := c.Run(context.Background(), nil)
		assert.ErrorIs(t, err, ErrSolver)
		assert.ErrorIs(t, err, solver.ErrNumerical)
		require.Len(t, obs.errs, 1)
		assert.Error(t, obs.errs[0])
	})

	t.Run("PooledColumnWithPositiveReducedCost", func(t *testing.T) {
		c := newTestController(t, triangle(t), testConfig(), WithBackend(stallingBackend{lp: solver.NewSimplex()}))
		_, err := c.Run(context.Background(), nil)
		assert.ErrorIs(t, err, ErrSolver)

		var runErr *RunError
		require.True(t, errors.As(err, &runErr))
		assert.InDelta(t, 2.0, runErr.LastObjective, 1e-6)
		assert.Len(t, runErr.Duals, 3)
	})

	t.Run("PooledCommunityRejectsWholeBatch", func(t *testing.T) {
		s, err := newTestController(t, triangle(t), testConfig()).newSession(VariantPartitioned, nil)
		require.NoError(t, err)
		_, err = s.solveMaster()
		require.NoError(t, err)

		fresh := &PricingResult{Community: community(t, 3, 0, 2), ReducedCost: 2}
		pooled := &PricingResult{Community: community(t, 3, 1), ReducedCost: 1}
		added, err := s.admit([]*PricingResult{fresh, pooled})
		assert.ErrorIs(t, err, ErrSolver)
		assert.Zero(t, added)
		assert.Equal(t, 3, s.pool.Len())
		assert.Equal(t, 3, s.master.NumColumns())
		assert.Zero(t, s.result.Statistics.ColumnsAdded)

		added, err = s.admit([]*PricingResult{fresh})
		require.NoError(t, err)
		assert.Equal(t, 1, added)
		assert.Equal(t, 4, s.master.NumColumns())
		assert.Equal(t, 1, s.result.Statistics.ColumnsAdded)
	})

	t.Run("GraphFromExportedFields", func(t *testing.T) {
		src := triangle(t)
		g := &signed.Graph{
			NumNodes:  3,
			Positive:  src.Positive,
			Negative:  src.Negative,
			PosDegree: src.PosDegree,
			NegDegree: src.NegDegree,
		}
		res, err := newTestController(t, g, testConfig()).Run(context.Background(), nil)
		require.NoError(t, err)
		assert.InDelta(t, 4.0, res.Objective, 1e-6)
		assert.Equal(t, partition.Partition{{0, 2}, {1}}, sortedPartition(res.Partition))
	})

	t.Run("TenVertices", func(t *testing.T) {
		if testing.Short() {
			t.Skip("pricing ten vertices takes a few seconds")
		}
		res, err := newTestController(t, randomGraph(t, 10, 1), testConfig()).Run(context.Background(), nil)
		require.NoError(t, err)
		assertLPOptimal(t, res)
	})

	t.Run("ObserverSeesEveryIteration", func(t *testing.T) {
		obs := &recordingObserver{}
		res, err := newTestController(t, triangle(t), testConfig(), WithObserver(obs)).Run(context.Background(), nil)
		require.NoError(t, err)

		require.Len(t, obs.events, 2)
		assert.Equal(t, 1, obs.events[0].ColumnsAdded)
		assert.InDelta(t, 2.0, obs.events[0].ReducedCost, 1e-6)
		assert.Equal(t, 0, obs.events[1].ColumnsAdded)
		require.Len(t, obs.results, 1)
		assert.Same(t, res, obs.results[0])
	})

	t.Run("InvalidInput", func(t *testing.T) {
		_, err := NewController(nil, testConfig())
		assert.ErrorIs(t, err, ErrInvalidInput)

		cfg := testConfig()
		cfg.Set("algorithm.lambda", 1.2)
		_, err = NewController(triangle(t), cfg)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = newTestController(t, triangle(t), testConfig()).Run(context.Background(), partition.Partition{{0, 1}})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("JSONOutput", func(t *testing.T) {
		res, err := newTestController(t, triangle(t), testConfig()).Run(context.Background(), nil)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, WriteJSON(&buf, res))

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, res.RunID, decoded["run_id"])
		assert.Equal(t, "classic", decoded["variant"])
		assert.Len(t, decoded["columns"], 4)
	})
}

func TestRunPartitioned(t *testing.T) {
	t.Run("Triangle", func(t *testing.T) {
		res, err := newTestController(t, triangle(t), testConfig()).RunPartitioned(context.Background(), nil)
		require.NoError(t, err)

		assertLPOptimal(t, res)
		assert.Equal(t, VariantPartitioned, res.Variant)
		assert.InDelta(t, 4.0, res.Objective, 1e-6)
		require.Len(t, res.Sweeps, 2)
		assert.Equal(t, 1, res.Sweeps[0].Added)
		require.Len(t, res.Sweeps[0].Points, 2)
		assert.Equal(t, 2, res.Sweeps[0].Points[0].K)
		assert.Equal(t, "{0,2}", res.Sweeps[0].Points[0].Community.String())
		assert.InDelta(t, 2.0, res.Sweeps[0].Points[0].ReducedCost, 1e-6)
		assert.Equal(t, 3, res.Sweeps[0].Points[1].K)
		assert.Equal(t, 0, res.Sweeps[1].Added)
	})

	t.Run("MatchesClassicBound", func(t *testing.T) {
		for seed := int64(20); seed <= 23; seed++ {
			g := randomGraph(t, 5, seed)
			classic, err := newTestController(t, g, testConfig()).Run(context.Background(), nil)
			require.NoError(t, err)
			swept, err := newTestController(t, g, testConfig()).RunPartitioned(context.Background(), nil)
			require.NoError(t, err)

			assertLPOptimal(t, swept)
			assert.InDelta(t, classic.Objective, swept.Objective, 1e-5, "seed %d", seed)
			assert.GreaterOrEqual(t, swept.Statistics.ColumnsAdded, swept.Iterations, "seed %d", seed)
		}
	})

	t.Run("RestrictedRange", func(t *testing.T) {
		cfg := testConfig()
		cfg.Set("partition.k_min", 2)
		cfg.Set("partition.k_max", 2)
		res, err := newTestController(t, randomGraph(t, 5, 4), cfg).RunPartitioned(context.Background(), nil)
		require.NoError(t, err)
		for _, sweep := range res.Sweeps {
			require.Len(t, sweep.Points, 1)
			assert.Equal(t, 2, sweep.Points[0].K)
		}
		for _, col := range res.Columns {
			assert.LessOrEqual(t, col.Community.Size(), 2)
		}
	})
}

func sortedPartition(p partition.Partition) partition.Partition {
	out := append(partition.Partition(nil), p...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j][0] < out[j-1][0]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func BenchmarkRun(b *testing.B) {
	for _, n := range []int{6, 8, 10} {
		g := randomGraph(b, n, 1)
		b.Run(fmt.Sprintf("nodes=%d", n), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				c, err := NewController(g, testConfig(), WithLogger(zerolog.Nop()))
				require.NoError(b, err)
				_, err = c.Run(context.Background(), nil)
				require.NoError(b, err)
			}
		})
	}
}
