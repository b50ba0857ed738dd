package qp

import (
	"sort"

	"github.com/WissenIstNacht/silicon/state"
	"github.com/WissenIstNacht/silicon/term"
)

// Mode selects how the split algorithm verifies each candidate chunk's
// remaining permission (spec.md §4.F step 6).
type Mode int

const (
	// Constrain assumes the needed bound rather than proving it,
	// used when consuming an abstract read permission.
	Constrain Mode = iota
	// Exact checks, with a timeout, whether a candidate is fully
	// depleted after this split.
	Exact
)

// Solver is the slice of decider.Decider the split algorithm needs.
// Kept as an interface so qp never imports package decider, matching
// decider.Decider's method set structurally.
type Solver interface {
	Check(t term.Term, timeoutMS int) (bool, error)
	Assume(ts ...term.Term) error
	FreshFunc(prefix string, args []term.Sort, result term.Sort) (term.Term, error)
}

// Request describes one quantified-permission consumption: `forall x ::
// c(x) ⇒ acc(e(x).f, p(x))` plus the field's value sort and the hints
// gathered from the receiver/condition (spec.md §4.F).
type Request struct {
	Binder    ReceiverBinder
	Field     string
	ValueSort term.Sort
	Hints     []term.Term
	Mode      Mode
	TimeoutMS int
}

// Result is what the split algorithm hands back to the consumer.
type Result struct {
	Heap    *state.Heap
	FVF     term.Term
	Inverse *Inverse
	Axioms  []term.Term
	Success bool
}

// Split implements the heap-split algorithm (spec.md §4.F): partition
// the heap's quantified field chunks for req.Field, order by hints,
// walk them taking permission until req.Binder's demand is met, and
// emit the resulting FVF-definition bundle.
func Split(s Solver, heap *state.Heap, req Request, gen TriggerGenerator) (*Result, error) {
	if gen == nil {
		gen = NoTriggers
	}
	b := req.Binder
	r := term.ImplicitCodomain

	if recv, ok := singletonReceiver(b.Perm); ok {
		return splitSingleton(s, heap, req, recv, gen)
	}

	candidateIdx := orderByHints(heap, heap.FieldChunksFor(req.Field), req.Hints)

	inv, err := MintInverse(b, s.FreshFunc, gen)
	if err != nil {
		return nil, err
	}
	invAtR := inv.Apply(r)

	condInv := term.Substitute(b.Condition, b.Bound, invAtR)
	permInit := term.Substitute(b.Perm, b.Bound, invAtR)
	needed := term.NewIte(condInv, permInit, term.NoPerm())

	fvf, err := s.FreshFunc("fvf", nil, term.FVFSort{Codomain: req.ValueSort})
	if err != nil {
		return nil, err
	}

	type outcome struct {
		drop  bool
		chunk *state.QuantifiedFieldChunk
	}
	outcomes := make(map[int]outcome, len(candidateIdx))
	var survivors []*state.QuantifiedFieldChunk
	success := false

	for _, idx := range candidateIdx {
		ch, ok := heap.Chunks()[idx].(*state.QuantifiedFieldChunk)
		if !ok {
			continue
		}
		chPerm := ch.Perm
		taken := term.NewIte(condInv, term.NewPermBinOp(term.PermMin, chPerm, needed), term.NoPerm())
		needed = term.NewPermBinOp(term.PermMinus, needed, taken)
		remaining := term.NewPermBinOp(term.PermMinus, chPerm, taken)

		switch req.Mode {
		case Constrain:
			guard := term.NewIsPositive(chPerm)
			bound := term.NewPermLess(permInit, chPerm)
			if err := s.Assume(term.NewForall([]*term.Var{r}, term.NewImplies(guard, bound), gen([]*term.Var{r}, bound), "")); err != nil {
				return nil, err
			}
			updated := ch.WithPerm(remaining).(*state.QuantifiedFieldChunk)
			outcomes[idx] = outcome{chunk: updated}
			survivors = append(survivors, updated)
		case Exact:
			depletedFormula := term.NewForall([]*term.Var{r}, term.NewEquals(remaining, term.NoPerm()), nil, "")
			depleted, err := s.Check(depletedFormula, req.TimeoutMS)
			if err != nil {
				return nil, err
			}
			if depleted {
				outcomes[idx] = outcome{drop: true}
			} else {
				updated := ch.WithPerm(remaining).(*state.QuantifiedFieldChunk)
				outcomes[idx] = outcome{chunk: updated}
				survivors = append(survivors, updated)
			}
		}

		if term.TermsEqual(needed, term.NoPerm()) {
			success = true
			break
		}
	}

	if !success {
		finalFormula := term.NewForall([]*term.Var{r}, term.NewNot(term.NewIsPositive(needed)), nil, "")
		proved, err := s.Check(finalFormula, 0)
		if err != nil {
			return nil, err
		}
		success = proved
	}
	if !success {
		return &Result{Success: false}, nil
	}

	chunks := heap.Chunks()
	next := make([]state.Chunk, 0, len(chunks))
	for i, c := range chunks {
		out, touched := outcomes[i]
		switch {
		case !touched:
			next = append(next, c)
		case out.drop:
			// dropped: chunk fully depleted, omitted from next.
		default:
			next = append(next, out.chunk)
		}
	}

	axioms := make([]term.Term, 0, len(survivors)+1)
	for _, ch := range survivors {
		guard := term.NewAnd(condInv, term.NewIsPositive(ch.Perm))
		eq := term.NewEquals(term.NewLookup(fvf, req.ValueSort, r), ch.ValueAt(r, req.ValueSort))
		axioms = append(axioms, term.NewForall([]*term.Var{r}, term.NewImplies(guard, eq), nil, "fvf-value"))
	}
	domain := domainAxiom(fvf, req.ValueSort, r, condInv, gen)
	axioms = append(axioms, domain)

	return &Result{
		Heap:    state.WithChunks(next),
		FVF:     fvf,
		Inverse: inv,
		Axioms:  axioms,
		Success: true,
	}, nil
}

// domainAxiom emits `forall r. r ∈ dom(fvf) ⇔ cond(r)` as a dom
// predicate application, per spec.md §4.F step 9. dom is represented as
// an uninterpreted Boolean function keyed by the FVF's own name, since
// the term algebra has no first-class domain-membership operator.
func domainAxiom(fvf term.Term, valueSort term.Sort, r *term.Var, cond term.Term, gen TriggerGenerator) term.Term {
	dom := term.NewFuncApp("dom$"+fvf.String(), term.Bool, r)
	body := term.NewEquals(dom, cond)
	bound := []*term.Var{r}
	return term.NewForall(bound, body, gen(bound, body), "fvf-domain")
}

// singletonReceiver recognises the shape `(r == t ? p0 : 0) - p1 - ...`
// spec.md §4.F calls out as the singleton optimisation, returning the
// single receiver t if perm has that shape.
func singletonReceiver(perm term.Term) (term.Term, bool) {
	switch p := perm.(type) {
	case *term.PermBinOp:
		if p.Op == term.PermMinus || p.Op == term.PermPlus {
			if t, ok := singletonReceiver(p.X); ok {
				return t, ok
			}
		}
		return nil, false
	case *term.Ite:
		if eq, ok := p.Cond.(*term.Equals); ok {
			if term.TermsEqual(eq.X, term.ImplicitCodomain) {
				return eq.Y, true
			}
			if term.TermsEqual(eq.Y, term.ImplicitCodomain) {
				return eq.X, true
			}
		}
	}
	return nil, false
}

// splitSingleton instantiates the axioms at the one concrete receiver
// instead of quantifying over r, per spec.md §4.F's singleton
// optimisation. It reuses the general per-chunk permission walk but
// substitutes the receiver everywhere a quantifier would otherwise
// appear.
func splitSingleton(s Solver, heap *state.Heap, req Request, recv term.Term, gen TriggerGenerator) (*Result, error) {
	b := req.Binder
	condAtRecv := term.ReplaceImplicit(b.Condition, recv)
	permAtRecv := term.ReplaceImplicit(b.Perm, recv)
	needed := term.NewIte(condAtRecv, permAtRecv, term.NoPerm())

	candidateIdx := orderByHints(heap, heap.FieldChunksFor(req.Field), req.Hints)

	fvf, err := s.FreshFunc("fvf", nil, term.FVFSort{Codomain: req.ValueSort})
	if err != nil {
		return nil, err
	}

	outcomes := make(map[int]*state.QuantifiedFieldChunk, len(candidateIdx))
	var value term.Term
	success := false

	for _, idx := range candidateIdx {
		ch, ok := heap.Chunks()[idx].(*state.QuantifiedFieldChunk)
		if !ok {
			continue
		}
		chPermAtRecv := ch.PermAtReceiver(recv)
		taken := term.NewIte(condAtRecv, term.NewPermBinOp(term.PermMin, chPermAtRecv, needed), term.NoPerm())
		needed = term.NewPermBinOp(term.PermMinus, needed, taken)
		remaining := term.NewPermBinOp(term.PermMinus, chPermAtRecv, taken)

		if value == nil {
			value = ch.ValueAt(recv, req.ValueSort)
		}

		singletonPerm := term.NewIte(term.NewEquals(term.ImplicitCodomain, recv), remaining, ch.Perm)
		outcomes[idx] = ch.WithPerm(singletonPerm).(*state.QuantifiedFieldChunk)

		if term.TermsEqual(needed, term.NoPerm()) {
			success = true
			break
		}
	}
	if !success {
		return &Result{Success: false}, nil
	}

	chunks := heap.Chunks()
	next := make([]state.Chunk, 0, len(chunks))
	for i, c := range chunks {
		if updated, touched := outcomes[i]; touched {
			next = append(next, updated)
			continue
		}
		next = append(next, c)
	}

	eq := term.NewEquals(term.NewLookup(fvf, req.ValueSort, recv), value)
	return &Result{
		Heap:    state.WithChunks(next),
		FVF:     fvf,
		Axioms:  []term.Term{eq},
		Success: true,
	}, nil
}

// orderByHints sorts candidate indices so chunks whose hint set equals
// the consumer's hint set come first, per spec.md §4.F step 2.
func orderByHints(heap *state.Heap, candidateIdx []int, hints []term.Term) []int {
	wanted := hintKey(hints)
	ordered := make([]int, len(candidateIdx))
	copy(ordered, candidateIdx)
	sort.SliceStable(ordered, func(i, j int) bool {
		return hintMatches(heap, ordered[i], wanted) && !hintMatches(heap, ordered[j], wanted)
	})
	return ordered
}

func hintMatches(heap *state.Heap, idx int, wanted string) bool {
	ch, ok := heap.Chunks()[idx].(*state.QuantifiedFieldChunk)
	if !ok {
		return false
	}
	return hintKey(ch.Hints) == wanted
}

func hintKey(hints []term.Term) string {
	key := ""
	for _, h := range hints {
		key += h.String() + ";"
	}
	return key
}
