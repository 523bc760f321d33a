package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/signed-graph-colgen/pkg/colgen"
	"github.com/gilchrisn/signed-graph-colgen/pkg/signed"
)

func TestObserveIteration(t *testing.T) {
	r := NewRegistry()
	r.ObserveIteration(colgen.IterationEvent{
		Variant:      colgen.VariantClassic,
		Objective:    4,
		ReducedCost:  2,
		ColumnsAdded: 1,
		PoolSize:     4,
		MasterTime:   time.Millisecond,
		PricingTime:  10 * time.Millisecond,
	})
	r.ObserveIteration(colgen.IterationEvent{Variant: colgen.VariantClassic, Objective: 5, PoolSize: 4})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.IterationsTotal.WithLabelValues("classic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ColumnsAdded.WithLabelValues("classic")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.Objective.WithLabelValues("classic")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.PoolSize.WithLabelValues("classic")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.MasterDuration)+testutil.CollectAndCount(r.PricingDuration))
}

func TestObserveRun(t *testing.T) {
	r := NewRegistry()
	r.ObserveRun(&colgen.Result{Variant: colgen.VariantPartitioned, Converged: true}, nil)
	r.ObserveRun(&colgen.Result{Variant: colgen.VariantClassic}, nil)
	r.ObserveRun(nil, errors.New("boom"))
	r.ObserveRun(nil, &colgen.RunError{Variant: colgen.VariantPartitioned, Err: errors.New("stalled")})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("partitioned", "converged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("classic", "capped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("unknown", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RunsTotal.WithLabelValues("partitioned", "failed")))
}

func TestRegistryAsObserver(t *testing.T) {
	g, err := signed.FromEdges(3, []signed.Edge{
		{U: 0, V: 1, Sign: signed.Negative},
		{U: 0, V: 2, Sign: signed.Positive},
		{U: 1, V: 2, Sign: signed.Negative},
	})
	require.NoError(t, err)

	r := NewRegistry()
	c, err := colgen.NewController(g, colgen.NewConfig(), colgen.WithLogger(zerolog.Nop()), colgen.WithObserver(r))
	require.NoError(t, err)
	res, err := c.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, float64(res.Iterations+1), testutil.ToFloat64(r.IterationsTotal.WithLabelValues("classic")))
	assert.Equal(t, float64(res.Statistics.ColumnsAdded), testutil.ToFloat64(r.ColumnsAdded.WithLabelValues("classic")))
	assert.InDelta(t, res.Objective, testutil.ToFloat64(r.Objective.WithLabelValues("classic")), 1e-9)

	path := filepath.Join(t.TempDir(), "colgen.prom")
	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "colgen_runs_total"))
}
