// Package metrics exports column generation progress as Prometheus metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gilchrisn/signed-graph-colgen/pkg/colgen"
)

// Registry holds the column generation collectors and implements colgen.Observer
type Registry struct {
	registry *prometheus.Registry

	IterationsTotal   *prometheus.CounterVec
	ColumnsAdded      *prometheus.CounterVec
	MasterDuration    *prometheus.HistogramVec
	PricingDuration   *prometheus.HistogramVec
	Objective         *prometheus.GaugeVec
	ReducedCost       *prometheus.GaugeVec
	PoolSize          *prometheus.GaugeVec
	RunsTotal         *prometheus.CounterVec
}

// NewRegistry creates collectors on a fresh Prometheus registry
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	factory := promauto.With(r.registry)

	r.IterationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colgen_iterations_total",
			Help: "Total number of outer column generation iterations",
		},
		[]string{"variant"},
	)

	r.ColumnsAdded = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colgen_columns_added_total",
			Help: "Total number of communities added to the master",
		},
		[]string{"variant"},
	)

	r.MasterDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "colgen_master_solve_duration_seconds",
			Help:    "Master LP solve duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"variant"},
	)

	r.PricingDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "colgen_pricing_duration_seconds",
			Help:    "Pricing duration per iteration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 1.0, 10.0, 60.0},
		},
		[]string{"variant"},
	)

	r.Objective = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "colgen_master_objective",
			Help: "Objective of the latest master LP solve",
		},
		[]string{"variant"},
	)

	r.ReducedCost = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "colgen_best_reduced_cost",
			Help: "Best reduced cost found by the latest pricing",
		},
		[]string{"variant"},
	)

	r.PoolSize = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "colgen_pool_size",
			Help: "Number of communities in the column pool",
		},
		[]string{"variant"},
	)

	r.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "colgen_runs_total",
			Help: "Total number of finished runs",
		},
		[]string{"variant", "status"},
	)

	return r
}

// GetPrometheusRegistry returns the underlying registry for export
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// ObserveIteration implements colgen.Observer
func (r *Registry) ObserveIteration(ev colgen.IterationEvent) {
	variant := string(ev.Variant)
	r.IterationsTotal.WithLabelValues(variant).Inc()
	r.ColumnsAdded.WithLabelValues(variant).Add(float64(ev.ColumnsAdded))
	r.MasterDuration.WithLabelValues(variant).Observe(ev.MasterTime.Seconds())
	r.PricingDuration.WithLabelValues(variant).Observe(ev.PricingTime.Seconds())
	r.Objective.WithLabelValues(variant).Set(ev.Objective)
	r.ReducedCost.WithLabelValues(variant).Set(ev.ReducedCost)
	r.PoolSize.WithLabelValues(variant).Set(float64(ev.PoolSize))
}

// ObserveRun implements colgen.Observer
func (r *Registry) ObserveRun(res *colgen.Result, err error) {
	var runErr *colgen.RunError
	switch {
	case errors.As(err, &runErr):
		r.RunsTotal.WithLabelValues(string(runErr.Variant), "failed").Inc()
	case err != nil:
		r.RunsTotal.WithLabelValues("unknown", "failed").Inc()
	case res.Converged:
		r.RunsTotal.WithLabelValues(string(res.Variant), "converged").Inc()
	default:
		r.RunsTotal.WithLabelValues(string(res.Variant), "capped").Inc()
	}
}

// WriteTextfile writes the current metric values in the text exposition format,
// for the node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
