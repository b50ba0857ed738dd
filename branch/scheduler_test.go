package branch_test

import (
	"errors"
	"testing"

	"github.com/WissenIstNacht/silicon/branch"
	"github.com/WissenIstNacht/silicon/state"
	"github.com/WissenIstNacht/silicon/term"
)

type fakeSolver struct {
	feasible map[string]bool
	assumed  []term.Term
}

func (f *fakeSolver) IsSat(t term.Term, timeoutMS int) (bool, error) {
	if ok, known := f.feasible[t.String()]; known {
		return ok, nil
	}
	return true, nil
}
func (f *fakeSolver) Assume(ts ...term.Term) error {
	f.assumed = append(f.assumed, ts...)
	return nil
}
func (f *fakeSolver) InScope(fn func() error) error { return fn() }

func TestTwoWayRunsBothFeasibleSides(t *testing.T) {
	solver := &fakeSolver{feasible: map[string]bool{}}
	s := state.New()
	guard := term.NewVar("cond", term.Bool)

	var thenRan, elseRan bool
	result, err := branch.TwoWay(solver, s, guard, 0,
		func(bs *state.State) (term.Term, error) { thenRan = true; return term.IntLit(1), nil },
		func(bs *state.State) (term.Term, error) { elseRan = true; return term.IntLit(2), nil },
	)
	if err != nil {
		t.Fatalf("TwoWay: %v", err)
	}
	if !thenRan || !elseRan {
		t.Fatalf("both sides should run when both are feasible: then=%v else=%v", thenRan, elseRan)
	}
	if !term.TermsEqual(result, term.NewIte(guard, term.IntLit(1), term.IntLit(2))) {
		t.Fatalf("unexpected join result: %v", result)
	}
}

func TestTwoWaySkipsInfeasibleSide(t *testing.T) {
	guard := term.NewVar("cond", term.Bool)
	notGuard := term.NewNot(guard)
	solver := &fakeSolver{feasible: map[string]bool{notGuard.String(): false}}
	s := state.New()

	var elseRan bool
	_, err := branch.TwoWay(solver, s, guard, 0,
		func(bs *state.State) (term.Term, error) { return term.IntLit(1), nil },
		func(bs *state.State) (term.Term, error) { elseRan = true; return term.IntLit(2), nil },
	)
	if err != nil {
		t.Fatalf("TwoWay: %v", err)
	}
	if elseRan {
		t.Fatalf("infeasible else branch should not run")
	}
}

func TestTwoWayRestoresHeapBetweenBranches(t *testing.T) {
	solver := &fakeSolver{feasible: map[string]bool{}}
	s := state.New()
	preHeap := s.Heap

	_, err := branch.TwoWay(solver, s, term.NewVar("cond", term.Bool), 0,
		func(bs *state.State) (term.Term, error) {
			bs.Heap = bs.Heap.Add(state.NewFieldChunk(term.NewVar("x", term.Ref), "f", term.IntLit(1), term.FullPerm()))
			return term.Unit, nil
		},
		func(bs *state.State) (term.Term, error) {
			if len(bs.Heap.Chunks()) != 0 {
				t.Fatalf("else branch should see the pre-branch heap, not the then branch's mutation")
			}
			return term.Unit, nil
		},
	)
	if err != nil {
		t.Fatalf("TwoWay: %v", err)
	}
	if s.Heap != preHeap {
		t.Fatalf("outer state's heap should be restored to the pre-branch snapshot")
	}
}

func TestSchedulerDrainsDepthFirst(t *testing.T) {
	var order []int
	var sched branch.Scheduler
	sched.Defer(func() error { order = append(order, 1); return nil })
	sched.Defer(func() error { order = append(order, 2); return nil })
	sched.Defer(func() error { order = append(order, 3); return nil })

	if sched.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3", sched.Pending())
	}
	if err := sched.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Fatalf("Drain should run continuations LIFO, got %v", order)
	}
}

func TestSchedulerStopsAtFirstError(t *testing.T) {
	wantErr := errors.New("boom")
	var sched branch.Scheduler
	var secondRan bool
	sched.Defer(func() error { secondRan = true; return nil })
	sched.Defer(func() error { return wantErr })

	if err := sched.Drain(); err != wantErr {
		t.Fatalf("Drain() error = %v, want %v", err, wantErr)
	}
	if secondRan {
		t.Fatalf("Drain should stop at the first error")
	}
	if sched.Pending() != 1 {
		t.Fatalf("Pending() = %d, want the un-run continuation left queued", sched.Pending())
	}
}
