package decider

// TryOrFailHooks lets TryOrFail manipulate whatever "heap" the caller
// is working with without decider importing package state.
type TryOrFailHooks struct {
	// Snapshot captures enough state to restore it later.
	Snapshot func() interface{}
	// Restore reinstates a snapshot captured by Snapshot.
	Restore func(snapshot interface{})
	// Consolidate merges/normalises chunks (the "heap compressor",
	// an external collaborator per spec.md §4.C) between the first
	// failed attempt and the retry.
	Consolidate func()
	// SetRetrying flips state.State.Retrying for the duration of the
	// second attempt.
	SetRetrying func(bool)
}

// TryOrFail runs block once; if it fails, consolidates the heap and
// retries exactly once with retrying=true, per spec.md §4.C. If the
// second attempt also fails, the original snapshot is restored before
// returning failure, "to avoid polluting the sibling branch of a
// subsequent branching step" (spec.md §4.C) -- this is exactly
// testable property 3 of spec.md §8.
func (d *Decider) TryOrFail(hooks TryOrFailHooks, block func() (bool, error)) (bool, error) {
	snapshot := hooks.Snapshot()

	ok, err := block()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	hooks.Consolidate()
	hooks.SetRetrying(true)
	ok, err = block()
	hooks.SetRetrying(false)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	hooks.Restore(snapshot)
	return false, nil
}
