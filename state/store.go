// Package state implements the symbolic state (spec.md §3.2-3.6, §4.D)
// and the chunk model (spec.md §3.3, §4.E): the store, heap, path
// conditions, reserve heaps, function recorder, and the State bundle
// that the producer and consumer thread through every rule.
package state

import (
	"github.com/benbjohnson/immutable"

	"github.com/WissenIstNacht/silicon/term"
)

// stringComparer orders keys lexically. Implements immutable.Comparer,
// grounded on execution_state.go's uint64Comparer.
type stringComparer struct{}

func (stringComparer) Compare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Store is an immutable, ordered mapping from program variable names to
// their current symbolic value (spec.md §3.2). Extension produces a new
// Store; the zero value is not usable, use NewStore.
type Store struct {
	vars *immutable.SortedMap[string, term.Term]
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{vars: immutable.NewSortedMap[string, term.Term](stringComparer{})}
}

// Get returns the term bound to name, and whether it was bound at all.
func (s *Store) Get(name string) (term.Term, bool) {
	v, ok := s.vars.Get(name)
	if !ok {
		return nil, false
	}
	return v, true
}

// Extend returns a new Store binding name to t, leaving s unmodified.
func (s *Store) Extend(name string, t term.Term) *Store {
	return &Store{vars: s.vars.Set(name, t)}
}

// Len reports the number of bound variables.
func (s *Store) Len() int { return s.vars.Len() }

// ForEach visits every binding in name order.
func (s *Store) ForEach(fn func(name string, t term.Term)) {
	itr := s.vars.Iterator()
	for !itr.Done() {
		k, v, _ := itr.Next()
		fn(k, v)
	}
}
