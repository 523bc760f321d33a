package colgen

import (
	"time"

	"github.com/gilchrisn/signed-graph-colgen/pkg/partition"
)

// DualPrices holds one dual price per vertex, indexed by vertex
type DualPrices []float64

// Variant names the column generation scheme a Result came from
type Variant string

const (
	VariantClassic     Variant = "classic"
	VariantPartitioned Variant = "partitioned"
)

// PrimalEntry is one column of the master LP with a positive value
type PrimalEntry struct {
	Community Community `json:"members"`
	Weight    float64   `json:"weight"`
	Value     float64   `json:"value"`
}

// Result contains the complete outcome of a column generation run
type Result struct {
	RunID      string              `json:"run_id"`
	Variant    Variant             `json:"variant"`
	Lambda     float64             `json:"lambda"`
	NumNodes   int                 `json:"num_nodes"`
	Objective  float64             `json:"objective"`
	Primal     []PrimalEntry       `json:"primal"`
	Duals      DualPrices          `json:"duals"`
	Trajectory []float64           `json:"trajectory"`
	Columns    []Column            `json:"columns"`
	Iterations int                 `json:"iterations"`
	Converged  bool                `json:"converged"`
	Partition  partition.Partition `json:"partition,omitempty"` // set when the LP optimum is integral
	Sweeps     []Sweep             `json:"sweeps,omitempty"`
	Statistics Statistics          `json:"statistics"`
}

// Sweep records one pass over the cardinalities of the partitioned variant
type Sweep struct {
	Iteration int          `json:"iteration"`
	Points    []SweepPoint `json:"points"`
	Added     int          `json:"added"`
}

// SweepPoint is the pricing outcome for one cardinality
type SweepPoint struct {
	K           int       `json:"k"`
	ReducedCost float64   `json:"reduced_cost"`
	Community   Community `json:"members"`
}

// Statistics contains timing and counting information about a run
type Statistics struct {
	InitialColumns int   `json:"initial_columns"`
	ColumnsAdded   int   `json:"columns_added"`
	MasterSolves   int   `json:"master_solves"`
	PricingSolves  int   `json:"pricing_solves"`
	PricingNodes   int   `json:"pricing_nodes"`
	MasterTimeMS   int64 `json:"master_time_ms"`
	PricingTimeMS  int64 `json:"pricing_time_ms"`
	RuntimeMS      int64 `json:"runtime_ms"`
}

// IterationEvent is emitted after every outer iteration
type IterationEvent struct {
	RunID        string
	Variant      Variant
	Iteration    int
	Objective    float64
	ReducedCost  float64 // best reduced cost found by pricing in this iteration
	ColumnsAdded int
	PoolSize     int
	MasterTime   time.Duration
	PricingTime  time.Duration
}

// Observer receives progress of column generation runs
type Observer interface {
	ObserveIteration(ev IterationEvent)
	ObserveRun(res *Result, err error)
}
