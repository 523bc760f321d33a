package colgen

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/gilchrisn/signed-graph-colgen/pkg/partition"
	"github.com/gilchrisn/signed-graph-colgen/pkg/solver"
)

// DefaultTolerance is the ε used for termination, membership and support tests
const DefaultTolerance = 1e-6

// Initial partition strategies
const (
	InitialSingletons = "singletons"
	InitialRoundRobin = "round_robin"
	InitialRandom     = "random"
)

// Config manages algorithm configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Algorithm parameters
	v.SetDefault("algorithm.lambda", 0.5)
	v.SetDefault("algorithm.tolerance", DefaultTolerance)
	v.SetDefault("algorithm.max_iterations", 0)
	v.SetDefault("algorithm.initial_partition", InitialSingletons)
	v.SetDefault("algorithm.initial_parts", 2)
	v.SetDefault("algorithm.random_seed", time.Now().UnixNano())

	// Partitioned variant
	v.SetDefault("partition.k_min", 2)
	v.SetDefault("partition.k_max", 0)

	// Solver parameters
	v.SetDefault("solver.simplex_tolerance", 1e-10)
	v.SetDefault("solver.max_nodes", 200000)

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.enable_progress", true)

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Viper exposes the underlying store, e.g. for binding command line flags
func (c *Config) Viper() *viper.Viper { return c.v }

// Getters for algorithm parameters
func (c *Config) Lambda() float64 { return c.v.GetFloat64("algorithm.lambda") }
func (c *Config) Tolerance() float64 { return c.v.GetFloat64("algorithm.tolerance") }
func (c *Config) MaxIterations() int { return c.v.GetInt("algorithm.max_iterations") }
func (c *Config) InitialPartitionKind() string { return c.v.GetString("algorithm.initial_partition") }
func (c *Config) InitialParts() int { return c.v.GetInt("algorithm.initial_parts") }
func (c *Config) RandomSeed() int64 { return c.v.GetInt64("algorithm.random_seed") }

func (c *Config) KMin() int { return c.v.GetInt("partition.k_min") }
func (c *Config) KMax() int { return c.v.GetInt("partition.k_max") }

func (c *Config) SimplexTolerance() float64 { return c.v.GetFloat64("solver.simplex_tolerance") }
func (c *Config) MaxNodes() int { return c.v.GetInt("solver.max_nodes") }

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Config) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// KRange returns the cardinalities swept by the partitioned variant for n vertices
func (c *Config) KRange(n int) (kMin, kMax int) {
	kMin, kMax = c.KMin(), c.KMax()
	if kMax <= 0 || kMax > n {
		kMax = n
	}
	return kMin, kMax
}

// Validate checks the configuration against a graph with n vertices
func (c *Config) Validate(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: graph must have at least one vertex", ErrInvalidInput)
	}
	if l := c.Lambda(); l < 0 || l > 1 {
		return fmt.Errorf("%w: algorithm.lambda must be in [0, 1], got %g", ErrInvalidInput, l)
	}
	if eps := c.Tolerance(); eps <= 0 || eps >= 0.5 {
		return fmt.Errorf("%w: algorithm.tolerance must be in (0, 0.5), got %g", ErrInvalidInput, eps)
	}
	if c.MaxIterations() < 0 {
		return fmt.Errorf("%w: algorithm.max_iterations must not be negative", ErrInvalidInput)
	}
	switch kind := c.InitialPartitionKind(); kind {
	case InitialSingletons:
	case InitialRoundRobin, InitialRandom:
		if k := c.InitialParts(); k < 1 || k > n {
			return fmt.Errorf("%w: algorithm.initial_parts must be in [1, %d], got %d", ErrInvalidInput, n, k)
		}
	default:
		return fmt.Errorf("%w: unknown algorithm.initial_partition %q", ErrInvalidInput, kind)
	}
	if kMin, kMax := c.KRange(n); kMin < 1 || (n > 1 && kMin > kMax) {
		return fmt.Errorf("%w: partition.k_min %d outside [1, %d]", ErrInvalidInput, kMin, kMax)
	}
	if c.MaxNodes() < 0 {
		return fmt.Errorf("%w: solver.max_nodes must not be negative", ErrInvalidInput)
	}
	return nil
}

// InitialPartition builds the configured seed partition of n vertices
func (c *Config) InitialPartition(n int) (partition.Partition, error) {
	switch c.InitialPartitionKind() {
	case InitialRoundRobin:
		return partition.RoundRobin(n, c.InitialParts())
	case InitialRandom:
		return partition.Random(n, c.InitialParts(), rand.New(rand.NewSource(c.RandomSeed())))
	default:
		return partition.Singletons(n), nil
	}
}

// NewBackend creates the LP/MILP backend described by the solver section
func (c *Config) NewBackend(logger zerolog.Logger) solver.Backend {
	s := solver.NewSimplex()
	s.Tol = c.SimplexTolerance()
	s.Integrality = c.Tolerance()
	s.MaxNodes = c.MaxNodes()
	s.Logger = logger.With().Str("component", "solver").Logger()
	return s
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	return c.CreateLoggerTo(os.Stderr)
}

// CreateLoggerTo is CreateLogger writing to w
func (c *Config) CreateLoggerTo(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "colgen").Logger()
}
