package state

import "github.com/WissenIstNacht/silicon/term"

// PathConditions is a stack of scopes, each scope a set of assumed
// Boolean terms (spec.md §3.4). PushScope/PopScope delimit scopes in
// lock-step with the SMT solver's push/pop. It structurally satisfies
// decider.PathConditions without importing package decider.
type PathConditions struct {
	scopes []*immutableSet
}

// NewPathConditions returns a PathConditions with a single, empty
// top-level scope.
func NewPathConditions() *PathConditions {
	return &PathConditions{scopes: []*immutableSet{newImmutableSet()}}
}

// PushScope opens a new, empty scope.
func (p *PathConditions) PushScope() {
	p.scopes = append(p.scopes, newImmutableSet())
}

// PopScope discards the innermost scope. Panics if called with only the
// root scope remaining -- a programmer error per spec.md §7.
func (p *PathConditions) PopScope() {
	if len(p.scopes) <= 1 {
		panic("state: PopScope: no scope to pop")
	}
	p.scopes = p.scopes[:len(p.scopes)-1]
}

// Assume adds t to the innermost scope.
func (p *PathConditions) Assume(t term.Term) {
	top := len(p.scopes) - 1
	p.scopes[top] = p.scopes[top].add(t)
}

// Contains reports whether t is a member of any scope on the stack --
// the "t ∈ π" trivial-assertion shortcut of spec.md §3.4.
func (p *PathConditions) Contains(t term.Term) bool {
	key := t.String()
	for _, scope := range p.scopes {
		if scope.has(key) {
			return true
		}
	}
	return false
}

// Depth reports the number of scopes currently on the stack, used to
// check spec.md §8 invariant 1 against the SMT driver's own push depth.
func (p *PathConditions) Depth() int { return len(p.scopes) }

// All returns every assumed term across all scopes, innermost first.
// Used by tests and by debug dumps.
func (p *PathConditions) All() []term.Term {
	var out []term.Term
	for i := len(p.scopes) - 1; i >= 0; i-- {
		out = append(out, p.scopes[i].values()...)
	}
	return out
}

// immutableSet is a minimal persistent set of terms keyed by their
// string rendering, backed by an immutable.SortedMap for structural
// sharing across scope pushes -- the same role glee's heap map plays
// for the teacher's execution state.
type immutableSet struct {
	m *sortedTermSet
}

func newImmutableSet() *immutableSet { return &immutableSet{m: newSortedTermSet()} }

func (s *immutableSet) add(t term.Term) *immutableSet {
	return &immutableSet{m: s.m.add(t)}
}

func (s *immutableSet) has(key string) bool { return s.m.has(key) }

func (s *immutableSet) values() []term.Term { return s.m.values() }
