package state_test

import (
	"testing"

	"github.com/WissenIstNacht/silicon/state"
	"github.com/WissenIstNacht/silicon/term"
)

func TestStoreExtendIsPersistent(t *testing.T) {
	s0 := state.NewStore()
	s1 := s0.Extend("x", term.IntLit(1))
	s2 := s1.Extend("y", term.IntLit(2))

	if _, ok := s0.Get("x"); ok {
		t.Fatalf("s0 should not see x extended onto s1")
	}
	if v, ok := s1.Get("x"); !ok || !term.TermsEqual(v, term.IntLit(1)) {
		t.Fatalf("s1.Get(x) = %v, %v", v, ok)
	}
	if _, ok := s1.Get("y"); ok {
		t.Fatalf("s1 should not see y extended onto s2")
	}
	if v, ok := s2.Get("y"); !ok || !term.TermsEqual(v, term.IntLit(2)) {
		t.Fatalf("s2.Get(y) = %v, %v", v, ok)
	}
}

func TestHeapAddWithoutReplacedArePersistent(t *testing.T) {
	h0 := state.EmptyHeap()
	c1 := state.NewFieldChunk(term.NewVar("x", term.Ref), "f", term.IntLit(1), term.FullPerm())
	c2 := state.NewFieldChunk(term.NewVar("y", term.Ref), "f", term.IntLit(2), term.FullPerm())

	h1 := h0.Add(c1)
	h2 := h1.Add(c2)

	if len(h0.Chunks()) != 0 {
		t.Fatalf("h0 mutated: %d chunks", len(h0.Chunks()))
	}
	if len(h1.Chunks()) != 1 {
		t.Fatalf("h1 mutated by h2's Add: %d chunks", len(h1.Chunks()))
	}
	if len(h2.Chunks()) != 2 {
		t.Fatalf("h2 should have 2 chunks, got %d", len(h2.Chunks()))
	}

	h3 := h2.Without(0)
	if len(h3.Chunks()) != 1 || h3.Chunks()[0] != c2 {
		t.Fatalf("Without(0) should leave only c2, got %v", h3.Chunks())
	}
	if len(h2.Chunks()) != 2 {
		t.Fatalf("h2 mutated by Without: %d chunks", len(h2.Chunks()))
	}

	c1Half := c1.WithPerm(term.FractionPerm(term.IntLit(1), term.IntLit(2))).(*state.FieldChunk)
	h4 := h2.Replaced(0, c1Half)
	if h4.Chunks()[0].PermAt().String() == c1.PermAt().String() {
		t.Fatalf("Replaced should have swapped in the half-permission chunk")
	}
	if h2.Chunks()[0] != c1 {
		t.Fatalf("h2 mutated by Replaced")
	}
}

func TestHeapFieldAndPredicateIndices(t *testing.T) {
	recv := term.NewVar("x", term.Ref)
	h := state.EmptyHeap().
		Add(state.NewFieldChunk(recv, "f", term.IntLit(1), term.FullPerm())).
		Add(state.NewPredicateChunk("P", []term.Term{recv}, term.Unit, term.FullPerm())).
		Add(&state.QuantifiedFieldChunk{Field: "f", Perm: term.NoPerm()})

	if idxs := h.FieldChunksFor("f"); len(idxs) != 2 {
		t.Fatalf("FieldChunksFor(f) = %v, want 2 entries", idxs)
	}
	if idxs := h.PredicateChunksFor("P"); len(idxs) != 1 {
		t.Fatalf("PredicateChunksFor(P) = %v, want 1 entry", idxs)
	}
	if idxs := h.WandChunks(); len(idxs) != 0 {
		t.Fatalf("WandChunks() = %v, want none", idxs)
	}
}

func TestPathConditionsScopesAndContains(t *testing.T) {
	pc := state.NewPathConditions()
	x := term.NewVar("x", term.Bool)

	pc.Assume(x)
	if !pc.Contains(x) {
		t.Fatalf("expected root scope to contain x")
	}
	if pc.Depth() != 1 {
		t.Fatalf("Depth() = %d, want 1", pc.Depth())
	}

	pc.PushScope()
	y := term.NewVar("y", term.Bool)
	pc.Assume(y)
	if pc.Depth() != 2 {
		t.Fatalf("Depth() = %d, want 2", pc.Depth())
	}
	if !pc.Contains(x) || !pc.Contains(y) {
		t.Fatalf("nested scope should still see outer assumptions")
	}

	pc.PopScope()
	if pc.Contains(y) {
		t.Fatalf("popped scope's assumption should no longer be visible")
	}
	if !pc.Contains(x) {
		t.Fatalf("root assumption should survive PopScope")
	}
}

func TestPathConditionsPopScopePanicsAtRoot(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected PopScope on the root scope to panic")
		}
	}()
	state.NewPathConditions().PopScope()
}

func TestStateForkIsolatesHeapMutation(t *testing.T) {
	s0 := state.New()
	recv := term.NewVar("x", term.Ref)
	s0.Heap = s0.Heap.Add(state.NewFieldChunk(recv, "f", term.IntLit(1), term.FullPerm()))

	s1 := s0.Fork()
	s1.Heap = s1.Heap.Add(state.NewFieldChunk(recv, "g", term.IntLit(2), term.FullPerm()))

	if len(s0.Heap.Chunks()) != 1 {
		t.Fatalf("forking a sibling mutated the parent's heap: %d chunks", len(s0.Heap.Chunks()))
	}
	if len(s1.Heap.Chunks()) != 2 {
		t.Fatalf("sibling should see both chunks, got %d", len(s1.Heap.Chunks()))
	}
}

func TestStateReserveHeapStack(t *testing.T) {
	s := state.New()
	s.Heap = s.Heap.Add(state.NewFieldChunk(term.NewVar("x", term.Ref), "f", term.IntLit(1), term.FullPerm()))

	if s.ActiveHeap() != s.Heap {
		t.Fatalf("ActiveHeap should be the main heap before any PushReserveHeap")
	}

	s.PushReserveHeap()
	if !s.ExhaleExt {
		t.Fatalf("PushReserveHeap should set ExhaleExt")
	}
	if len(s.ActiveHeap().Chunks()) != 0 {
		t.Fatalf("fresh reserve heap should start empty")
	}

	recv := term.NewVar("y", term.Ref)
	s.SetActiveHeap(s.ActiveHeap().Add(state.NewFieldChunk(recv, "g", term.IntLit(3), term.FullPerm())))

	reserve := s.PopReserveHeap()
	if len(reserve.Chunks()) != 1 {
		t.Fatalf("popped reserve heap should carry the one chunk added, got %d", len(reserve.Chunks()))
	}
	if s.ExhaleExt {
		t.Fatalf("ExhaleExt should clear once the reserve stack is empty")
	}
	if len(s.Heap.Chunks()) != 1 {
		t.Fatalf("main heap should be untouched by reserve-heap bookkeeping")
	}
}

func TestFunctionRecorderAppendOnly(t *testing.T) {
	r0 := state.NewFunctionRecorder()
	r1 := r0.Record("inverse", term.NewVar("inv", term.FuncSort{Args: []term.Sort{term.Ref}, Result: term.Ref}))

	if len(r0.Axioms()) != 0 {
		t.Fatalf("r0 mutated by Record: %d axioms", len(r0.Axioms()))
	}
	if len(r1.Axioms()) != 1 || r1.Axioms()[0].Kind != "inverse" {
		t.Fatalf("r1.Axioms() = %v", r1.Axioms())
	}
}
