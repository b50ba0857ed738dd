package decider

import "github.com/WissenIstNacht/silicon/term"

// Chunk is the minimal contract WithChunk needs from a heap chunk. The
// concrete chunk types live in package state; this interface exists so
// decider never imports state.
type Chunk interface {
	// PermAt returns the chunk's current permission term.
	PermAt() term.Term
	// MatchesArgs returns a Boolean term asserting this chunk's
	// identifying arguments equal args -- literally True/False when
	// the comparison can be decided structurally, otherwise an
	// Equals term to hand to the solver.
	MatchesArgs(args []term.Term) term.Term
}

// WithChunk finds a chunk among candidates whose identifying arguments
// match args and whose permission is enough to cover needed, per
// spec.md §4.C `withChunk(...)`: first by literal structural argument
// equality, then -- if none matches structurally -- by asking the
// solver to prove argument equality for a candidate whose permission
// would otherwise suffice.
//
// Returns the index into candidates of the chunk to use, or -1 if none
// qualifies.
func (d *Decider) WithChunk(candidates []Chunk, args []term.Term, needed term.Term, timeoutMS int) (int, error) {
	// Pass 1: structural argument equality, cheapest first.
	for i, c := range candidates {
		if term.IsTrue(c.MatchesArgs(args)) {
			if ok, err := d.Assert(term.NewPermLess(needed, c.PermAt()), timeoutMS); err != nil {
				return -1, err
			} else if ok || d.IsTrivial(term.NewEquals(needed, c.PermAt())) {
				return i, nil
			}
			// Structurally the right chunk, but permission is
			// short: spec.md's InsufficientPermission is decided
			// by the caller once no chunk qualifies at all.
		}
	}
	// Pass 2: let the solver prove argument equality.
	for i, c := range candidates {
		match := c.MatchesArgs(args)
		if term.IsFalse(match) {
			continue
		}
		matched, err := d.Assert(match, timeoutMS)
		if err != nil {
			return -1, err
		}
		if !matched {
			continue
		}
		enough, err := d.Assert(term.NewOr(term.NewEquals(needed, c.PermAt()), term.NewPermLess(needed, c.PermAt())), timeoutMS)
		if err != nil {
			return -1, err
		}
		if enough {
			return i, nil
		}
	}
	return -1, nil
}
