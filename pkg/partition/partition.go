package partition

import (
	"fmt"
	"math/rand"
	"sort"
)

// Partition is a list of disjoint vertex groups covering 0..n-1
type Partition [][]int

// Singletons puts every vertex in its own group
func Singletons(n int) Partition {
	p := make(Partition, n)
	for v := 0; v < n; v++ {
		p[v] = []int{v}
	}
	return p
}

// RoundRobin deals vertices 0..n-1 into k groups in order: vertex v goes to group v mod k
func RoundRobin(n, k int) (Partition, error) {
	if k < 1 || k > n {
		return nil, fmt.Errorf("number of groups must be in [1, %d], got %d", n, k)
	}
	p := make(Partition, k)
	for v := 0; v < n; v++ {
		p[v%k] = append(p[v%k], v)
	}
	return p, nil
}

// Random shuffles vertices with rng and deals them into k groups
func Random(n, k int, rng *rand.Rand) (Partition, error) {
	if k < 1 || k > n {
		return nil, fmt.Errorf("number of groups must be in [1, %d], got %d", n, k)
	}
	order := rng.Perm(n)
	p := make(Partition, k)
	for i, v := range order {
		p[i%k] = append(p[i%k], v)
	}
	for _, group := range p {
		sort.Ints(group)
	}
	return p, nil
}

// Validate checks that p is a partition of 0..n-1 into non-empty groups
func (p Partition) Validate(n int) error {
	seen := make([]bool, n)
	count := 0
	for i, group := range p {
		if len(group) == 0 {
			return fmt.Errorf("group %d is empty", i)
		}
		for _, v := range group {
			if v < 0 || v >= n {
				return fmt.Errorf("group %d contains vertex %d outside [0, %d)", i, v, n)
			}
			if seen[v] {
				return fmt.Errorf("vertex %d appears in more than one group", v)
			}
			seen[v] = true
			count++
		}
	}
	if count != n {
		return fmt.Errorf("partition covers %d of %d vertices", count, n)
	}
	return nil
}

// Labels returns the group index of every vertex
func (p Partition) Labels(n int) []int {
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	for i, group := range p {
		for _, v := range group {
			if v >= 0 && v < n {
				labels[v] = i
			}
		}
	}
	return labels
}
