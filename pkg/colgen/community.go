package colgen

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

// Community is an immutable, non-empty vertex subset stored as a packed bitset.
// Two communities over the same vertices have the same Key regardless of the
// order or multiplicity the members were given in.
type Community struct {
	n     int
	words []uint64
	key   string
}

// NewCommunity builds the community {members} over vertices 0..n-1
func NewCommunity(n int, members ...int) (Community, error) {
	if n <= 0 {
		return Community{}, fmt.Errorf("%w: vertex count must be positive, got %d", ErrInvalidInput, n)
	}
	if len(members) == 0 {
		return Community{}, fmt.Errorf("%w: community must not be empty", ErrInvalidInput)
	}

	words := make([]uint64, (n+63)>>6)
	for _, u := range members {
		if u < 0 || u >= n {
			return Community{}, fmt.Errorf("%w: vertex %d outside [0, %d)", ErrInvalidInput, u, n)
		}
		words[u>>6] |= 1 << (uint(u) & 63)
	}
	return newCommunityFromWords(n, words), nil
}

// communityFromIndicator selects every u with x[u] >= 1 - eps
func communityFromIndicator(x []float64, eps float64) (Community, error) {
	var members []int
	for u, v := range x {
		if v >= 1-eps {
			members = append(members, u)
		}
	}
	return NewCommunity(len(x), members...)
}

func newCommunityFromWords(n int, words []uint64) Community {
	buf := make([]byte, 0, 8*len(words))
	for _, w := range words {
		buf = binary.LittleEndian.AppendUint64(buf, w)
	}
	return Community{n: n, words: words, key: string(buf)}
}

// Key is a comparable identity of the vertex set, usable as a map key
func (c Community) Key() string { return c.key }

// NumVertices returns the size of the vertex universe the community lives in
func (c Community) NumVertices() int { return c.n }

// Contains reports whether u belongs to the community
func (c Community) Contains(u int) bool {
	if u < 0 || u >= c.n {
		return false
	}
	return c.words[u>>6]&(1<<(uint(u)&63)) != 0
}

// Size returns |C|
func (c Community) Size() int {
	size := 0
	for _, w := range c.words {
		size += bits.OnesCount64(w)
	}
	return size
}

// Members returns the vertices in ascending order
func (c Community) Members() []int {
	out := make([]int, 0, c.Size())
	for i, w := range c.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, i<<6 + b)
			w &= w - 1
		}
	}
	return out
}

// Equal reports whether c and o hold the same vertex set
func (c Community) Equal(o Community) bool { return c.n == o.n && c.key == o.key }

// IsZero reports whether c is the zero value
func (c Community) IsZero() bool { return c.n == 0 }

func (c Community) String() string {
	members := c.Members()
	parts := make([]string, len(members))
	for i, u := range members {
		parts[i] = strconv.Itoa(u)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// MarshalJSON encodes the community as its sorted member list
func (c Community) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Members())
}
