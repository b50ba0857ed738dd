// Package branch implements the two-way branch join a producer/
// consumer traversal needs at every conditional assertion, plus a
// depth-first scheduler for any sibling branches a caller wants to
// defer rather than run immediately.
//
// Grounded on glee/executor.go's Searcher/MultiSearcher interfaces
// (SelectState/AddState over a LIFO queue), narrowed here to the
// single-purpose two-way join spec.md §4.G/§4.H's branching invariant
// needs, and on executeIfInstr's pattern of checking each side's
// feasibility with the solver before forking a state for it.
package branch

import (
	"github.com/WissenIstNacht/silicon/state"
	"github.com/WissenIstNacht/silicon/term"
)

// Solver is the slice of decider.Decider the branch join needs. Kept
// as an interface so branch never imports package decider.
type Solver interface {
	IsSat(t term.Term, timeoutMS int) (bool, error)
	Assume(ts ...term.Term) error
	InScope(fn func() error) error
}

// TwoWay runs then under guard and els under guard's negation, each in
// its own solver scope and each starting from a forked copy of s's
// pre-branch heap (spec.md §4.G/§4.H: "each branch must restore the
// heap state to the pre-branch snapshot of chunks before starting the
// sibling branch"). Only feasible sides run; an infeasible side
// contributes term.Unit to the join. Returns the combined snapshot
// Ite(guard, thenSnap, elseSnap).
func TwoWay(solver Solver, s *state.State, guard term.Term, timeoutMS int, then, els func(*state.State) (term.Term, error)) (term.Term, error) {
	preHeap := s.Heap
	thenSnap, elseSnap := term.Unit, term.Unit

	thenFeasible, err := solver.IsSat(guard, timeoutMS)
	if err != nil {
		return nil, err
	}
	if thenFeasible {
		if err := solver.InScope(func() error {
			if err := solver.Assume(guard); err != nil {
				return err
			}
			branchState := s.Fork()
			branchState.Heap = preHeap
			snap, err := then(branchState)
			if err != nil {
				return err
			}
			thenSnap = snap
			return nil
		}); err != nil {
			return nil, err
		}
		s.Heap = preHeap
	}

	notGuard := term.NewNot(guard)
	elseFeasible, err := solver.IsSat(notGuard, timeoutMS)
	if err != nil {
		return nil, err
	}
	if elseFeasible {
		if err := solver.InScope(func() error {
			if err := solver.Assume(notGuard); err != nil {
				return err
			}
			branchState := s.Fork()
			branchState.Heap = preHeap
			snap, err := els(branchState)
			if err != nil {
				return err
			}
			elseSnap = snap
			return nil
		}); err != nil {
			return nil, err
		}
		s.Heap = preHeap
	}

	return term.NewIte(guard, thenSnap, elseSnap), nil
}

// Scheduler is a LIFO queue of deferred branch continuations, narrowed
// from glee's Searcher/MultiSearcher to the single producer/consumer
// use case: defer a sibling branch, then drain the queue depth-first.
type Scheduler struct {
	pending []func() error
}

// Defer enqueues fn to run on a later Drain call.
func (s *Scheduler) Defer(fn func() error) {
	s.pending = append(s.pending, fn)
}

// Drain runs every deferred continuation depth-first (most recently
// deferred first), stopping at the first error.
func (s *Scheduler) Drain() error {
	for len(s.pending) > 0 {
		n := len(s.pending) - 1
		fn := s.pending[n]
		s.pending = s.pending[:n]
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports how many continuations are still queued.
func (s *Scheduler) Pending() int { return len(s.pending) }
