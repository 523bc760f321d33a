package colgen

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/signed-graph-colgen/pkg/partition"
	"github.com/gilchrisn/signed-graph-colgen/pkg/signed"
	"github.com/gilchrisn/signed-graph-colgen/pkg/solver"
)

// Controller drives column generation on one graph. Every Run owns its own
// pool, master and pricing program, so a Controller may be reused.
type Controller struct {
	graph     *signed.Graph
	config    *Config
	backend   solver.Backend
	logger    zerolog.Logger
	observers []Observer
}

// Option customises a Controller
type Option func(*Controller)

// WithBackend replaces the LP/MILP backend built from the solver config section
func WithBackend(b solver.Backend) Option {
	return func(c *Controller) { c.backend = b }
}

// WithLogger replaces the logger built from the logging config section
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithObserver registers an observer of iterations and finished runs
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// NewController validates the graph and config and prepares a controller
func NewController(g *signed.Graph, config *Config, opts ...Option) (*Controller, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: graph is nil", ErrInvalidInput)
	}
	if config == nil {
		config = NewConfig()
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := config.Validate(g.NumNodes); err != nil {
		return nil, err
	}

	c := &Controller{graph: g, config: config}
	c.logger = config.CreateLogger()
	for _, opt := range opts {
		opt(c)
	}
	if c.backend == nil {
		c.backend = config.NewBackend(c.logger)
	}
	return c, nil
}

// Run executes column generation with the given configuration and default
// options. A nil initial partition uses algorithm.initial_partition.
func Run(ctx context.Context, g *signed.Graph, config *Config) (*Result, error) {
	c, err := NewController(g, config)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, nil)
}

// Run alternates master solves and pricing until no community has a reduced
// cost above the tolerance. The returned objective is the LP optimum over all
// communities, an upper bound on the best partition.
func (c *Controller) Run(ctx context.Context, initial partition.Partition) (*Result, error) {
	s, err := c.newSession(VariantClassic, initial)
	if err != nil {
		return nil, err
	}
	return s.finish(s.classic(ctx))
}

// session holds the state of one run
type session struct {
	c       *Controller
	logger  zerolog.Logger
	eps     float64
	maxIter int

	pool   *ColumnPool
	master *MasterLP
	oracle *PricingOracle

	result    *Result
	current   *MasterSolution
	iteration int
	startTime time.Time
}

func (c *Controller) newSession(variant Variant, initial partition.Partition) (*session, error) {
	n := c.graph.NumNodes
	if initial == nil {
		var err error
		if initial, err = c.config.InitialPartition(n); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	if err := initial.Validate(n); err != nil {
		return nil, fmt.Errorf("%w: initial partition: %w", ErrInvalidInput, err)
	}

	runID := uuid.New().String()
	s := &session{
		c:         c,
		logger:    c.logger.With().Str("run_id", runID).Str("variant", string(variant)).Logger(),
		eps:       c.config.Tolerance(),
		maxIter:   c.config.MaxIterations(),
		startTime: time.Now(),
		result: &Result{
			RunID:     runID,
			Variant:   variant,
			Lambda:    c.config.Lambda(),
			NumNodes:  n,
			Objective: math.NaN(),
		},
	}

	pool, err := NewColumnPool(c.graph, c.config.Lambda())
	if err != nil {
		return nil, err
	}
	for _, group := range initial {
		if err := s.seed(pool, group...); err != nil {
			return nil, err
		}
	}
	// Singletons keep the master feasible for any seed and give it full row rank
	for u := 0; u < n; u++ {
		if err := s.seed(pool, u); err != nil {
			return nil, err
		}
	}
	s.pool = pool
	s.result.Statistics.InitialColumns = pool.Len()

	if s.master, err = NewMasterLP(c.graph, pool, c.backend, s.logger); err != nil {
		return nil, err
	}
	if s.oracle, err = NewPricingOracle(c.graph, c.config.Lambda(), c.backend, s.logger); err != nil {
		return nil, err
	}
	s.oracle.Tolerance = s.eps

	s.logger.Info().
		Int("nodes", n).
		Float64("lambda", c.config.Lambda()).
		Int("initial_columns", pool.Len()).
		Msg("Starting column generation")

	return s, nil
}

func (s *session) seed(pool *ColumnPool, members ...int) error {
	com, err := NewCommunity(s.c.graph.NumNodes, members...)
	if err != nil {
		return err
	}
	if pool.Contains(com) {
		return nil
	}
	_, err = pool.Add(com)
	return err
}

// classic adds the single best column per iteration
func (s *session) classic(ctx context.Context) error {
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
		res, err := s.price()
		if err != nil {
			return err
		}
		pricingTime := time.Since(start)

		if res.ReducedCost <= s.eps {
			s.result.Converged = true
			s.observe(masterTime, pricingTime, res.ReducedCost, 0)
			s.logger.Debug().
				Int("iteration", s.iteration).
				Float64("reduced_cost", res.ReducedCost).
				Msg("Converged: no improving community")
			return nil
		}

		added, err := s.admit([]*PricingResult{res})
		if err != nil {
			return err
		}
		s.observe(masterTime, pricingTime, res.ReducedCost, added)
		s.progress(res.ReducedCost, added)
		s.iteration++
	}
}

func (s *session) solveMaster() (time.Duration, error) {
	start := time.Now()
	sol, err := s.master.Solve()
	elapsed := time.Since(start)
	s.result.Statistics.MasterSolves++
	s.result.Statistics.MasterTimeMS += elapsed.Milliseconds()
	if err != nil {
		return elapsed, err
	}
	s.current = sol
	s.result.Trajectory = append(s.result.Trajectory, sol.Objective)
	return elapsed, nil
}

func (s *session) price() (*PricingResult, error) {
	start := time.Now()
	res, err := s.oracle.Solve()
	s.result.Statistics.PricingSolves++
	s.result.Statistics.PricingTimeMS += time.Since(start).Milliseconds()
	if err != nil {
		return nil, err
	}
	s.result.Statistics.PricingNodes += res.Nodes
	return res, nil
}

func (s *session) capped() bool {
	if s.maxIter > 0 && s.iteration >= s.maxIter {
		s.logger.Warn().Int("max_iterations", s.maxIter).Msg("Iteration limit reached before convergence")
		return true
	}
	return false
}

// admit adds the communities of improving pricing results to the pool and the
// master. A community that is already a column cannot have a positive reduced
// cost at an optimal dual, so one showing up means the solves disagree and
// nothing from the batch is added.
func (s *session) admit(results []*PricingResult) (int, error) {
	for _, res := range results {
		if col, exists := s.pool.Get(res.Community); exists {
			return 0, fmt.Errorf("%w: pooled community %v priced at %g (master reduced cost %g)",
				ErrSolver, res.Community, res.ReducedCost, s.current.ReducedCost(col))
		}
	}

	added := 0
	for _, res := range results {
		col, err := s.pool.Add(res.Community)
		if err != nil {
			return added, err
		}
		if _, err := s.master.Extend(col); err != nil {
			return added, err
		}
		added++
		s.logger.Debug().
			Str("community", col.Community.String()).
			Float64("weight", col.Weight).
			Float64("reduced_cost", res.ReducedCost).
			Msg("Column added")
	}

	s.result.Statistics.ColumnsAdded += added
	s.oracle.Invalidate()
	return added, nil
}

func (s *session) observe(masterTime, pricingTime time.Duration, reducedCost float64, added int) {
	ev := IterationEvent{
		RunID:        s.result.RunID,
		Variant:      s.result.Variant,
		Iteration:    s.iteration,
		Objective:    s.current.Objective,
		ReducedCost:  reducedCost,
		ColumnsAdded: added,
		PoolSize:     s.pool.Len(),
		MasterTime:   masterTime,
		PricingTime:  pricingTime,
	}
	for _, o := range s.c.observers {
		o.ObserveIteration(ev)
	}
}

func (s *session) progress(reducedCost float64, added int) {
	if !s.c.config.EnableProgress() {
		return
	}
	s.logger.Info().
		Int("iteration", s.iteration).
		Float64("objective", s.current.Objective).
		Float64("reduced_cost", reducedCost).
		Int("added", added).
		Int("columns", s.pool.Len()).
		Msg("Column generation progress")
}

// finish assembles the result, or wraps runErr into a RunError
func (s *session) finish(runErr error) (*Result, error) {
	if s.oracle != nil {
		if err := s.oracle.ClearCardinality(); err != nil && runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		err := &RunError{Variant: s.result.Variant, Iteration: s.iteration, LastObjective: math.NaN(), Err: runErr}
		if s.current != nil {
			err.LastObjective = s.current.Objective
			err.Duals = s.current.Duals
		}
		s.logger.Error().Err(runErr).Int("iteration", s.iteration).Msg("Column generation failed")
		for _, o := range s.c.observers {
			o.ObserveRun(nil, err)
		}
		return nil, err
	}

	res := s.result
	res.Objective = s.current.Objective
	res.Duals = s.current.Duals
	res.Primal = s.current.Support(s.eps)
	res.Columns = s.pool.Columns()
	res.Iterations = s.iteration
	res.Partition = integralPartition(res.Primal, res.NumNodes, s.eps)
	res.Statistics.RuntimeMS = time.Since(s.startTime).Milliseconds()

	s.logger.Info().
		Float64("objective", res.Objective).
		Int("iterations", res.Iterations).
		Int("columns", len(res.Columns)).
		Bool("converged", res.Converged).
		Bool("integral", res.Partition != nil).
		Int64("runtime_ms", res.Statistics.RuntimeMS).
		Msg("Column generation completed")

	for _, o := range s.c.observers {
		o.ObserveRun(res, nil)
	}
	return res, nil
}

// integralPartition reads a partition off the support when every z_C is 1
func integralPartition(support []PrimalEntry, n int, eps float64) partition.Partition {
	var p partition.Partition
	for _, e := range support {
		if math.Abs(e.Value-1) > eps {
			return nil
		}
		p = append(p, e.Community.Members())
	}
	if p.Validate(n) != nil {
		return nil
	}
	return p
}
