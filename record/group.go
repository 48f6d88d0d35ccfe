package record

import (
	"iter"

	"github.com/zclconf/go-cty/cty"
)

// Group is a set of records sharing a key, as produced by a grouping stage
// and consumed by a reduce-role function.
type Group struct {
	keyField string
	key      cty.Value
	records  []*Record
}

// NewGroup builds a group over already-grouped records.
func NewGroup(keyField string, key cty.Value, records []*Record) *Group {
	return &Group{keyField: keyField, key: key, records: records}
}

// KeyField returns the name of the grouping field.
func (g *Group) KeyField() string { return g.keyField }

// Key returns the shared key value.
func (g *Group) Key() cty.Value { return g.key }

// Len returns the number of records in the group.
func (g *Group) Len() int { return len(g.records) }

// Records returns an iterator over the group's records in arrival order.
// This is the iterator handed to reduce functions.
func (g *Group) Records() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		for _, r := range g.records {
			if !yield(r) {
				return
			}
		}
	}
}
