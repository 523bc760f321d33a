package colgen

import (
	"math"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/signed-graph-colgen/pkg/signed"
	"github.com/gilchrisn/signed-graph-colgen/pkg/solver"
)

// triangle is the 3-vertex graph with (0,1) negative, (0,2) positive, (1,2) negative
func triangle(t *testing.T) *signed.Graph {
	t.Helper()
	g, err := signed.FromEdges(3, []signed.Edge{
		{U: 0, V: 1, Sign: signed.Negative},
		{U: 0, V: 2, Sign: signed.Positive},
		{U: 1, V: 2, Sign: signed.Negative},
	})
	require.NoError(t, err)
	return g
}

// randomGraph draws every pair as positive, negative or absent with equal odds
func randomGraph(t testing.TB, n int, seed int64) *signed.Graph {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	g, err := signed.NewGraph(n)
	require.NoError(t, err)
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			switch rng.Intn(3) {
			case 0:
				require.NoError(t, g.AddEdge(u, v, signed.Positive))
			case 1:
				require.NoError(t, g.AddEdge(u, v, signed.Negative))
			}
		}
	}
	return g
}

func community(t *testing.T, n int, members ...int) Community {
	t.Helper()
	c, err := NewCommunity(n, members...)
	require.NoError(t, err)
	return c
}

// allCommunities enumerates every non-empty subset of 0..n-1
func allCommunities(t *testing.T, n int) []Community {
	t.Helper()
	var out []Community
	for mask := 1; mask < 1<<n; mask++ {
		var members []int
		for u := 0; u < n; u++ {
			if mask&(1<<u) != 0 {
				members = append(members, u)
			}
		}
		out = append(out, community(t, n, members...))
	}
	return out
}

// bestReducedCost returns max (w(C) - Σ y_u) over communities accepted by keep
func bestReducedCost(t *testing.T, g *signed.Graph, lambda float64, y DualPrices, keep func(Community) bool) float64 {
	t.Helper()
	best := math.Inf(-1)
	for _, c := range allCommunities(t, g.NumNodes) {
		if keep != nil && !keep(c) {
			continue
		}
		w, err := Weight(g, c, lambda)
		require.NoError(t, err)
		best = math.Max(best, w-y.Sum(c))
	}
	return best
}

func testConfig() *Config {
	cfg := NewConfig()
	cfg.Set("algorithm.random_seed", 1)
	cfg.Set("logging.enable_progress", false)
	return cfg
}

func newTestController(t *testing.T, g *signed.Graph, cfg *Config, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop()), WithBackend(solver.NewSimplex())}, opts...)
	c, err := NewController(g, cfg, opts...)
	require.NoError(t, err)
	return c
}
