package partition

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingletons(t *testing.T) {
	p := Singletons(4)
	assert.Equal(t, Partition{{0}, {1}, {2}, {3}}, p)
	require.NoError(t, p.Validate(4))
	assert.Equal(t, []int{0, 1, 2, 3}, p.Labels(4))
}

func TestRoundRobin(t *testing.T) {
	t.Run("DealsInOrder", func(t *testing.T) {
		p, err := RoundRobin(7, 3)
		require.NoError(t, err)
		assert.Equal(t, Partition{{0, 3, 6}, {1, 4}, {2, 5}}, p)
		require.NoError(t, p.Validate(7))
	})

	t.Run("RejectsBadK", func(t *testing.T) {
		_, err := RoundRobin(3, 4)
		assert.Error(t, err)
		_, err = RoundRobin(3, 0)
		assert.Error(t, err)
	})
}

func TestRandom(t *testing.T) {
	t.Run("IsPartitionAndDeterministicPerSeed", func(t *testing.T) {
		a, err := Random(10, 3, rand.New(rand.NewSource(7)))
		require.NoError(t, err)
		b, err := Random(10, 3, rand.New(rand.NewSource(7)))
		require.NoError(t, err)

		require.NoError(t, a.Validate(10))
		assert.Equal(t, a, b)
		assert.Len(t, a, 3)
	})

	t.Run("RejectsBadK", func(t *testing.T) {
		_, err := Random(2, 3, rand.New(rand.NewSource(1)))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	assert.Error(t, Partition{{0}, {0, 1}}.Validate(2), "duplicate vertex")
	assert.Error(t, Partition{{0}}.Validate(2), "missing vertex")
	assert.Error(t, Partition{{0, 1}, {}}.Validate(2), "empty group")
	assert.Error(t, Partition{{0, 2}}.Validate(2), "out of range")
}
