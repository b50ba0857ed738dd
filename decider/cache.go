package decider

import "github.com/WissenIstNacht/silicon/term"

// IsTrivial reports whether t can be shown true purely structurally,
// without consulting the solver: either t is literally True, or t is a
// member of the current path-condition stack. This backs spec.md §8
// invariant 6 and is exposed separately from Assert so callers that
// only want the free check (e.g. WithChunk's equal-permission test)
// don't pay for a solver round trip.
func (d *Decider) IsTrivial(t term.Term) bool {
	return term.IsTrue(t) || d.pcs.Contains(t)
}
