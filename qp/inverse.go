// Package qp implements the quantified-chunk supporter: minting inverse
// functions and their defining/injectivity/non-null axioms, and the
// heap-split algorithm used to consume quantified permissions out of a
// heap of quantified chunks (spec.md §3.6, §4.F).
package qp

import (
	"github.com/WissenIstNacht/silicon/term"
)

// FuncMinter mints a fresh, solver-declared uninterpreted function
// symbol and returns a zero-arity handle to it (its Name field is what
// matters here). Matches decider.Decider.FreshFunc's shape so the
// supporter never needs to import package decider directly.
type FuncMinter func(prefix string, args []term.Sort, result term.Sort) (term.Term, error)

// TriggerGenerator produces instantiation-pattern triggers for a
// quantification over bound, whose body is body. Trigger generation is
// treated as an external black box (spec.md §1: "triggering ...
// rewriter are used as black boxes") -- this is the seam.
type TriggerGenerator func(bound []*term.Var, body term.Term) []term.Trigger

// NoTriggers mints no triggers, leaving instantiation to the solver's
// own heuristics. Used by tests and as a safe default.
func NoTriggers([]*term.Var, term.Term) []term.Trigger { return nil }

// ReceiverBinder is the shape common to every quantified permission the
// supporter deals with: a bound variable x ranging over some domain,
// its receiver expression e(x), guard condition c(x), permission
// amount p(x), and any outer variables the receiver/condition close
// over (spec.md §4.F).
type ReceiverBinder struct {
	Bound     *term.Var
	Receiver  term.Term
	Condition term.Term
	Perm      term.Term
	ExtraArgs []*term.Var
}

// Inverse is a freshly minted inverse function together with its two
// defining quantifications (spec.md §4.F "Inverse-function
// construction").
type Inverse struct {
	Name string
	Sort term.Sort

	// Defining holds exactly two quantifications:
	//   forall x. c(x) ∧ 0<p(x) ⇒ inv(ā, e(x)) = x
	//   forall r. c(inv(ā,r)) ∧ 0<p(inv(ā,r)) ⇒ e(inv(ā,r), ā) = r
	Defining []term.Term
}

// Apply builds a term applying the inverse function to a receiver value
// r plus the extra closed-over arguments.
func (inv *Inverse) Apply(r term.Term, extra ...term.Term) term.Term {
	args := make([]term.Term, 0, len(extra)+1)
	args = append(args, extra...)
	args = append(args, r)
	return term.NewFuncApp(inv.Name, inv.Sort, args...)
}

// MintInverse mints a fresh, solver-declared inverse function for b and
// its two defining axioms via mint (typically decider.Decider.FreshFunc).
func MintInverse(b ReceiverBinder, mint FuncMinter, gen TriggerGenerator) (*Inverse, error) {
	if gen == nil {
		gen = NoTriggers
	}
	sort := b.Bound.SortOf()

	argSorts := make([]term.Sort, 0, len(b.ExtraArgs)+1)
	for _, v := range b.ExtraArgs {
		argSorts = append(argSorts, v.SortOf())
	}
	argSorts = append(argSorts, b.Receiver.SortOf())

	handle, err := mint("inv", argSorts, sort)
	if err != nil {
		return nil, err
	}
	fn, ok := handle.(*term.FuncApp)
	if !ok {
		panic("qp: FuncMinter returned a non-function-shaped term")
	}
	name := fn.Name

	extraTerms := make([]term.Term, len(b.ExtraArgs))
	for i, v := range b.ExtraArgs {
		extraTerms[i] = v
	}

	inv := &Inverse{Name: name, Sort: sort}

	// forall x. c(x) ∧ 0<p(x) ⇒ inv(ā, e(x)) = x
	forwardGuard := term.NewAnd(b.Condition, term.NewIsPositive(b.Perm))
	forwardBody := term.NewImplies(forwardGuard, term.NewEquals(inv.Apply(b.Receiver, extraTerms...), b.Bound))
	forwardBound := append(append([]*term.Var{}, b.ExtraArgs...), b.Bound)
	forward := term.NewForall(forwardBound, forwardBody, gen(forwardBound, forwardBody), name+"#forward")

	// forall r. c[x:=inv(r)](r) ∧ 0<p[x:=inv(r)](r) ⇒ e[x:=inv(r)](r) = r
	r := term.NewVar("r", b.Receiver.SortOf())
	invAtR := inv.Apply(r, extraTerms...)
	condAtR := term.Substitute(b.Condition, b.Bound, invAtR)
	permAtR := term.Substitute(b.Perm, b.Bound, invAtR)
	receiverAtR := term.Substitute(b.Receiver, b.Bound, invAtR)
	backwardGuard := term.NewAnd(condAtR, term.NewIsPositive(permAtR))
	backwardBody := term.NewImplies(backwardGuard, term.NewEquals(receiverAtR, r))
	backwardBound := append(append([]*term.Var{}, b.ExtraArgs...), r)
	backward := term.NewForall(backwardBound, backwardBody, gen(backwardBound, backwardBody), name+"#backward")

	inv.Defining = []term.Term{forward, backward}
	return inv, nil
}

// InjectivityAxiom builds the axiom the consumer must assert before
// trusting an inverse function (spec.md §4.F): distinct bound values
// with positive permission never share a receiver. A solver-reported
// violation should surface as ReceiverNotInjective.
func InjectivityAxiom(b ReceiverBinder, gen TriggerGenerator) term.Term {
	if gen == nil {
		gen = NoTriggers
	}
	x1 := term.NewVar(b.Bound.Name+"$1", b.Bound.SortOf())
	x2 := term.NewVar(b.Bound.Name+"$2", b.Bound.SortOf())

	cond1 := term.Substitute(b.Condition, b.Bound, x1)
	cond2 := term.Substitute(b.Condition, b.Bound, x2)
	perm1 := term.Substitute(b.Perm, b.Bound, x1)
	perm2 := term.Substitute(b.Perm, b.Bound, x2)
	recv1 := term.Substitute(b.Receiver, b.Bound, x1)
	recv2 := term.Substitute(b.Receiver, b.Bound, x2)

	guard := term.NewAnd(cond1, term.NewIsPositive(perm1), cond2, term.NewIsPositive(perm2), term.NewEquals(recv1, recv2))
	body := term.NewImplies(guard, term.NewEquals(x1, x2))
	bound := []*term.Var{x1, x2}
	return term.NewForall(bound, body, gen(bound, body), "injectivity")
}

// NonNullAxiom builds the axiom the producer assumes for every
// quantified permission it produces: a receiver with positive
// permission is never null (spec.md §4.F).
func NonNullAxiom(b ReceiverBinder, gen TriggerGenerator) term.Term {
	if gen == nil {
		gen = NoTriggers
	}
	guard := term.NewAnd(b.Condition, term.NewIsPositive(b.Perm))
	body := term.NewImplies(guard, term.NewNot(term.NewEquals(b.Receiver, term.NullLit())))
	bound := []*term.Var{b.Bound}
	return term.NewForall(bound, body, gen(bound, body), "non-null")
}
