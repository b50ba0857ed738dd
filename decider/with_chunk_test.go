package decider_test

import (
	"testing"

	"github.com/WissenIstNacht/silicon/decider"
	"github.com/WissenIstNacht/silicon/term"
)

type fakeChunk struct {
	recv term.Term
	perm term.Term
}

func (c *fakeChunk) PermAt() term.Term { return c.perm }

// MatchesArgs models a receiver comparison that is always decidable
// structurally (distinct named references never alias), so this test
// exercises WithChunk's pass 1 without depending on solver semantics.
func (c *fakeChunk) MatchesArgs(args []term.Term) term.Term {
	if term.TermsEqual(c.recv, args[0]) {
		return term.True
	}
	return term.False
}

func TestWithChunk_StructuralMatch(t *testing.T) {
	dec, _ := newDecider(t)

	x := term.NewVar("x", term.Ref)
	chunks := []decider.Chunk{
		&fakeChunk{recv: term.NewVar("other", term.Ref), perm: term.FullPerm()},
		&fakeChunk{recv: x, perm: term.FullPerm()},
	}

	idx, err := dec.WithChunk(chunks, []term.Term{x}, term.FullPerm(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 1 {
		t.Fatalf("got index %d, want 1", idx)
	}
}

func TestWithChunk_NoMatch(t *testing.T) {
	dec, _ := newDecider(t)

	x := term.NewVar("x", term.Ref)
	chunks := []decider.Chunk{
		&fakeChunk{recv: term.NewVar("other", term.Ref), perm: term.FullPerm()},
	}

	idx, err := dec.WithChunk(chunks, []term.Term{x}, term.FullPerm(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if idx != -1 {
		t.Fatalf("got index %d, want -1", idx)
	}
}
