package colgen

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/signed-graph-colgen/pkg/solver"
)

func TestConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, 0.5, cfg.Lambda())
		assert.Equal(t, DefaultTolerance, cfg.Tolerance())
		assert.Equal(t, 0, cfg.MaxIterations())
		assert.Equal(t, InitialSingletons, cfg.InitialPartitionKind())
		require.NoError(t, cfg.Validate(4))

		kMin, kMax := cfg.KRange(4)
		assert.Equal(t, 2, kMin)
		assert.Equal(t, 4, kMax)
	})

	t.Run("LoadFromFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "colgen.yaml")
		content := "algorithm:\n  lambda: 0.25\n  initial_partition: round_robin\n  initial_parts: 3\npartition:\n  k_max: 3\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg := NewConfig()
		require.NoError(t, cfg.LoadFromFile(path))
		assert.Equal(t, 0.25, cfg.Lambda())
		assert.Equal(t, 3, cfg.KMax())
		assert.Equal(t, DefaultTolerance, cfg.Tolerance())

		p, err := cfg.InitialPartition(6)
		require.NoError(t, err)
		assert.Len(t, p, 3)
		require.NoError(t, p.Validate(6))
	})

	t.Run("Validate", func(t *testing.T) {
		cases := map[string]func(*Config){
			"lambda":    func(c *Config) { c.Set("algorithm.lambda", -0.5) },
			"tolerance": func(c *Config) { c.Set("algorithm.tolerance", 0) },
			"strategy":  func(c *Config) { c.Set("algorithm.initial_partition", "louvain") },
			"parts":     func(c *Config) { c.Set("algorithm.initial_partition", InitialRandom); c.Set("algorithm.initial_parts", 9) },
			"k_min":     func(c *Config) { c.Set("partition.k_min", 0) },
			"max_iter":  func(c *Config) { c.Set("algorithm.max_iterations", -1) },
		}
		for name, mutate := range cases {
			cfg := NewConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(4), ErrInvalidInput, name)
		}
		assert.ErrorIs(t, NewConfig().Validate(0), ErrInvalidInput)
	})

	t.Run("Backend", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Set("solver.max_nodes", 17)
		s, ok := cfg.NewBackend(cfg.CreateLogger()).(*solver.Simplex)
		require.True(t, ok)
		assert.Equal(t, 17, s.MaxNodes)
		assert.Equal(t, DefaultTolerance, s.Integrality)
	})

	t.Run("Logger", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Set("logging.level", "warn")
		var buf bytes.Buffer
		logger := cfg.CreateLoggerTo(&buf)
		logger.Info().Msg("hidden")
		logger.Warn().Msg("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
		assert.Contains(t, buf.String(), "colgen")
	})
}
