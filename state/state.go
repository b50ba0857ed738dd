package state

import "github.com/WissenIstNacht/silicon/term"

// State bundles everything a symbolic-execution branch carries: the
// variable store, the current heap, path conditions, a stack of
// "reserve" heaps used while under a magic-wand's exhale-ext regime, a
// permission-scaling factor for fractional predicate unfoldings, a
// function recorder, and a partial-verification indicator. Grounded on
// glee/execution_state.go's ExecutionState, which bundles the register
// file, memory, and path constraints the same way; its Clone() becomes
// State.Fork here.
type State struct {
	Store *Store
	Heap  *Heap

	PathConditions *PathConditions

	// ReserveHeaps holds heaps set aside while producing/consuming the
	// left side of a magic wand (spec.md §4's exhale-ext regime); the
	// top of the stack is the currently active reserve heap.
	ReserveHeaps []*Heap

	// ExhaleExt is true while exhaling into a reserve heap rather than
	// the main heap, per the exhale-ext regime.
	ExhaleExt bool

	// Retrying is true during TryOrFail's second attempt when the
	// caller's SetRetrying hook sets it; producer and consumer do not
	// read it.
	Retrying bool

	// PermissionScaleFactor multiplies every permission amount produced
	// or consumed while unfolding a fractional predicate instance.
	PermissionScaleFactor term.Term

	Recorder *FunctionRecorder

	// PartialVerification, when non-nil, is a Boolean guard term under
	// which the current branch's result is only conditionally valid
	// (spec.md's `Some(guard)`/`None` result shape feeds off this).
	PartialVerification term.Term
}

// New returns a fresh State: empty store and heap, one path-condition
// scope, full permission scale, and no reserve heaps.
func New() *State {
	return &State{
		Store:                 NewStore(),
		Heap:                  EmptyHeap(),
		PathConditions:        NewPathConditions(),
		PermissionScaleFactor: term.FullPerm(),
		Recorder:              NewFunctionRecorder(),
	}
}

// Fork returns a shallow copy of s suitable as the starting point for a
// sibling branch (spec.md §4.B / §8 invariant on heap isolation).
// Store, Heap and Recorder are persistent structures already, so copying
// the struct gives the sibling its own copies of them: any subsequent
// update on one side produces a new value rather than aliasing the
// other's. PathConditions is not copied: the fork shares the parent's
// *PathConditions, whose scopes PushScope/PopScope/Assume change in
// place for both. Grounded on
// glee/execution_state.go's Clone(), which likewise copies the struct
// and relies on its Array fields being copy-on-write.
func (s *State) Fork() *State {
	if s == nil {
		return nil
	}
	next := *s
	if len(s.ReserveHeaps) > 0 {
		next.ReserveHeaps = make([]*Heap, len(s.ReserveHeaps))
		copy(next.ReserveHeaps, s.ReserveHeaps)
	}
	return &next
}

// PushReserveHeap starts a nested exhale-ext regime with a fresh empty
// reserve heap on top of the stack.
func (s *State) PushReserveHeap() {
	s.ReserveHeaps = append(s.ReserveHeaps, EmptyHeap())
	s.ExhaleExt = true
}

// PopReserveHeap discards the top reserve heap, returning it to the
// caller so it can be merged back into the main heap. Panics if there
// is no reserve heap to pop.
func (s *State) PopReserveHeap() *Heap {
	n := len(s.ReserveHeaps)
	if n == 0 {
		panic("state: PopReserveHeap: no reserve heap on the stack")
	}
	top := s.ReserveHeaps[n-1]
	s.ReserveHeaps = s.ReserveHeaps[:n-1]
	s.ExhaleExt = len(s.ReserveHeaps) > 0
	return top
}

// ActiveHeap returns the heap that producers/consumers should currently
// operate against: the innermost reserve heap while ExhaleExt is set,
// otherwise the main heap.
func (s *State) ActiveHeap() *Heap {
	if s.ExhaleExt && len(s.ReserveHeaps) > 0 {
		return s.ReserveHeaps[len(s.ReserveHeaps)-1]
	}
	return s.Heap
}

// SetActiveHeap replaces whichever heap ActiveHeap currently designates.
func (s *State) SetActiveHeap(h *Heap) {
	if s.ExhaleExt && len(s.ReserveHeaps) > 0 {
		s.ReserveHeaps[len(s.ReserveHeaps)-1] = h
		return
	}
	s.Heap = h
}

// ScaledPermission multiplies p by the current permission scale factor,
// per spec.md's fractional-predicate-unfolding rule.
func (s *State) ScaledPermission(p term.Term) term.Term {
	if s.PermissionScaleFactor == nil || term.TermsEqual(s.PermissionScaleFactor, term.FullPerm()) {
		return p
	}
	return term.NewPermBinOp(term.PermTimes, s.PermissionScaleFactor, p)
}
