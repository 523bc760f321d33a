package colgen

import (
	"fmt"

	"github.com/gilchrisn/signed-graph-colgen/pkg/signed"
)

// Column is a community in the pool together with its cached weight
type Column struct {
	Community Community `json:"members"`
	Weight    float64   `json:"weight"`
}

// ColumnPool is the growing set of distinct communities discovered so far.
// Columns are never removed; each weight is computed once on insertion.
type ColumnPool struct {
	graph   *signed.Graph
	lambda  float64
	index   map[string]int
	columns []Column
}

// NewColumnPool creates an empty pool scoring communities of g with lambda
func NewColumnPool(g *signed.Graph, lambda float64) (*ColumnPool, error) {
	if lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("%w: lambda must be in [0, 1], got %g", ErrInvalidInput, lambda)
	}
	return &ColumnPool{
		graph:  g,
		lambda: lambda,
		index:  make(map[string]int),
	}, nil
}

// Add scores c and inserts it. Inserting a community that is already present
// fails with ErrDuplicateColumn; callers that want set semantics check Contains first.
func (p *ColumnPool) Add(c Community) (Column, error) {
	if _, exists := p.index[c.Key()]; exists {
		return Column{}, fmt.Errorf("%w: %v", ErrDuplicateColumn, c)
	}

	w, err := Weight(p.graph, c, p.lambda)
	if err != nil {
		return Column{}, err
	}

	col := Column{Community: c, Weight: w}
	p.index[c.Key()] = len(p.columns)
	p.columns = append(p.columns, col)
	return col, nil
}

// Contains reports whether c is already in the pool
func (p *ColumnPool) Contains(c Community) bool {
	_, exists := p.index[c.Key()]
	return exists
}

// Get returns the pooled column for c
func (p *ColumnPool) Get(c Community) (Column, bool) {
	i, exists := p.index[c.Key()]
	if !exists {
		return Column{}, false
	}
	return p.columns[i], true
}

// Len returns the number of columns
func (p *ColumnPool) Len() int { return len(p.columns) }

// Columns returns a copy of the pool in insertion order
func (p *ColumnPool) Columns() []Column {
	out := make([]Column, len(p.columns))
	copy(out, p.columns)
	return out
}

// Lambda returns the resolution parameter used for scoring
func (p *ColumnPool) Lambda() float64 { return p.lambda }
