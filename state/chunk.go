package state

import (
	"fmt"
	"strings"

	"github.com/WissenIstNacht/silicon/term"
)

// Chunk is one fractional-permission record in the heap: a basic field
// or predicate chunk, a quantified field or predicate chunk, or a
// magic-wand chunk (spec.md §3.3). Chunks are immutable; heap mutation
// is copy-on-write over a list, grounded on glee/array.go's
// Array.Store (`other := a.Clone()`, return new value).
type Chunk interface {
	// ID returns a stable identity string used for hint-based
	// ordering and debug output: name plus arg tuple.
	ID() string
	// PermAt returns the chunk's current permission term.
	PermAt() term.Term
	// MatchesArgs asserts (structurally when decidable) that this
	// chunk's identifying arguments equal args. Implements
	// decider.Chunk.
	MatchesArgs(args []term.Term) term.Term
	// WithPerm returns a copy of the chunk with a new permission term.
	WithPerm(p term.Term) Chunk
}

// FieldChunk is a basic field chunk: (receiver, field, value, perm).
type FieldChunk struct {
	Receiver term.Term
	Field    string
	Value    term.Term // the snapshot/value term
	Perm     term.Term
}

func NewFieldChunk(receiver term.Term, field string, value, perm term.Term) *FieldChunk {
	return &FieldChunk{Receiver: receiver, Field: field, Value: value, Perm: perm}
}

func (c *FieldChunk) ID() string      { return fmt.Sprintf("%s.%s", c.Receiver, c.Field) }
func (c *FieldChunk) PermAt() term.Term { return c.Perm }
func (c *FieldChunk) WithPerm(p term.Term) Chunk {
	other := *c
	other.Perm = p
	return &other
}
func (c *FieldChunk) MatchesArgs(args []term.Term) term.Term {
	if len(args) != 1 {
		panic("state: FieldChunk.MatchesArgs: expected exactly one receiver argument")
	}
	if term.TermsEqual(c.Receiver, args[0]) {
		return term.True
	}
	return term.NewEquals(c.Receiver, args[0])
}

// PredicateChunk is a basic predicate chunk: (name, args, snap, perm).
type PredicateChunk struct {
	Name string
	Args []term.Term
	Snap term.Term
	Perm term.Term
}

func NewPredicateChunk(name string, args []term.Term, snap, perm term.Term) *PredicateChunk {
	return &PredicateChunk{Name: name, Args: args, Snap: snap, Perm: perm}
}

func (c *PredicateChunk) ID() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(parts, ", "))
}
func (c *PredicateChunk) PermAt() term.Term { return c.Perm }
func (c *PredicateChunk) WithPerm(p term.Term) Chunk {
	other := *c
	other.Perm = p
	return &other
}
func (c *PredicateChunk) MatchesArgs(args []term.Term) term.Term {
	if len(args) != len(c.Args) {
		return term.False
	}
	conj := make([]term.Term, len(args))
	allStructural := true
	for i := range args {
		if term.TermsEqual(c.Args[i], args[i]) {
			conj[i] = term.True
		} else {
			conj[i] = term.NewEquals(c.Args[i], args[i])
			allStructural = false
		}
	}
	if allStructural {
		return term.True
	}
	return term.NewAnd(conj...)
}

// QuantifiedFieldChunk is a quantified field chunk (spec.md §3.3):
// (field, fvf, perm(r), optional inverse function, optional singleton
// receiver, hints). Perm is parameterised by term.ImplicitCodomain
// (spelled "?r" in the source this system generalizes).
type QuantifiedFieldChunk struct {
	Field     string
	FVF       term.Term // the field-value function term
	Perm      term.Term // mentions term.ImplicitCodomain
	Inverse   term.Term // optional: nil if none was minted
	Singleton term.Term // optional: non-nil if this chunk covers one receiver
	Hints     []term.Term
}

func (c *QuantifiedFieldChunk) ID() string {
	if c.Singleton != nil {
		return fmt.Sprintf("QA %s.%s", c.Singleton, c.Field)
	}
	return fmt.Sprintf("QA *.%s", c.Field)
}
func (c *QuantifiedFieldChunk) PermAt() term.Term { return c.Perm }
func (c *QuantifiedFieldChunk) WithPerm(p term.Term) Chunk {
	other := *c
	other.Perm = p
	return &other
}

// PermAtReceiver evaluates the chunk's permission at a concrete
// receiver: perm[?r := t] (spec.md §3.3).
func (c *QuantifiedFieldChunk) PermAtReceiver(receiver term.Term) term.Term {
	return term.ReplaceImplicit(c.Perm, receiver)
}

// ValueAt looks up the chunk's field-value function at a receiver.
func (c *QuantifiedFieldChunk) ValueAt(receiver term.Term, result term.Sort) term.Term {
	return term.NewLookup(c.FVF, result, receiver)
}

func (c *QuantifiedFieldChunk) MatchesArgs(args []term.Term) term.Term {
	if len(args) != 1 {
		panic("state: QuantifiedFieldChunk.MatchesArgs: expected exactly one receiver argument")
	}
	positive := term.NewIsPositive(c.PermAtReceiver(args[0]))
	return positive
}

// QuantifiedPredicateChunk is the predicate analogue of
// QuantifiedFieldChunk, parameterised by a tuple of codomain variables
// instead of a single "?r".
type QuantifiedPredicateChunk struct {
	Name      string
	Codomain  []*term.Var
	PSF       term.Term
	Perm      term.Term // mentions the codomain vars directly, not ?r
	Inverse   term.Term
	Hints     []term.Term
}

func (c *QuantifiedPredicateChunk) ID() string { return fmt.Sprintf("QA %s(*)", c.Name) }
func (c *QuantifiedPredicateChunk) PermAt() term.Term { return c.Perm }
func (c *QuantifiedPredicateChunk) WithPerm(p term.Term) Chunk {
	other := *c
	other.Perm = p
	return &other
}
func (c *QuantifiedPredicateChunk) MatchesArgs(args []term.Term) term.Term {
	if len(args) != len(c.Codomain) {
		panic("state: QuantifiedPredicateChunk.MatchesArgs: codomain arity mismatch")
	}
	perm := c.Perm
	for i, v := range c.Codomain {
		perm = term.Substitute(perm, v, args[i])
	}
	return term.NewIsPositive(perm)
}

// WandChunk is a magic-wand chunk: (ghost-free-wand, bindings, snapshot).
type WandChunk struct {
	WandID   string // a structural key identifying the wand's syntax
	Bindings map[string]term.Term
	Snap     term.Term
}

func (c *WandChunk) ID() string           { return "wand:" + c.WandID }
func (c *WandChunk) PermAt() term.Term    { return term.FullPerm() }
func (c *WandChunk) WithPerm(term.Term) Chunk { return c }
// MatchesArgs compares wand identity by structural key; the caller is
// expected to have already restricted the candidate set by WandID.
func (c *WandChunk) MatchesArgs(args []term.Term) term.Term {
	if len(args) != 1 {
		panic("state: WandChunk.MatchesArgs: expected exactly one wand-id argument")
	}
	return term.True
}
