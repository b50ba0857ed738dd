package state

import (
	"github.com/benbjohnson/immutable"

	"github.com/WissenIstNacht/silicon/term"
)

// sortedTermSet is a persistent set of Terms keyed by their string
// rendering, backed by immutable.SortedMap for the copy-on-extend
// sharing spec.md's scope stack needs.
type sortedTermSet struct {
	m *immutable.SortedMap[string, term.Term]
}

func newSortedTermSet() *sortedTermSet {
	return &sortedTermSet{m: immutable.NewSortedMap[string, term.Term](stringComparer{})}
}

func (s *sortedTermSet) add(t term.Term) *sortedTermSet {
	return &sortedTermSet{m: s.m.Set(t.String(), t)}
}

func (s *sortedTermSet) has(key string) bool {
	_, ok := s.m.Get(key)
	return ok
}

func (s *sortedTermSet) values() []term.Term {
	out := make([]term.Term, 0, s.m.Len())
	itr := s.m.Iterator()
	for !itr.Done() {
		_, v, _ := itr.Next()
		out = append(out, v)
	}
	return out
}
