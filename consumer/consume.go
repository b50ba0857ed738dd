// Package consumer implements the exhale traversal: consuming a
// permission assertion out of the symbolic state (spec.md §4.H). It is
// producer's dual and shares its dispatch shape, grounded on the same
// glee/executor.go instruction-dispatch switch.
package consumer

import (
	"errors"
	"fmt"

	"github.com/WissenIstNacht/silicon/ast"
	"github.com/WissenIstNacht/silicon/branch"
	"github.com/WissenIstNacht/silicon/decider"
	"github.com/WissenIstNacht/silicon/qp"
	"github.com/WissenIstNacht/silicon/state"
	"github.com/WissenIstNacht/silicon/term"
	"github.com/WissenIstNacht/silicon/translate"
)

// ErrInsufficientPermission is returned when no chunk (or split of
// quantified chunks) can cover a consumed assertion's permission
// demand, per spec.md §4.H.
var ErrInsufficientPermission = errors.New("consumer: insufficient permission")

// ErrReceiverNotInjective is returned when a quantified assertion's
// injectivity axiom is refuted by the solver, per spec.md §4.F.
var ErrReceiverNotInjective = errors.New("consumer: receiver expression is not injective")

// ErrNegativePermission is returned when a consumed permission amount
// cannot be proved non-negative, per spec.md §4.H: "negativity is
// asserted (0 <= p) before transfer" -- unlike produce, which only
// assumes it.
var ErrNegativePermission = errors.New("consumer: permission amount is not provably non-negative")

// ErrAssertionFalse is returned when a pure boolean assertion cannot be
// proved from the current path condition.
var ErrAssertionFalse = errors.New("consumer: assertion does not hold")

// Solver is the slice of decider.Decider the consumer needs. Includes
// WithChunk (basic-chunk matching) alongside the Assert/Assume/Check/
// IsSat/FreshFunc surface qp and branch already use -- Check for qp's
// split-loop provability probe, IsSat for branch.TwoWay's feasibility
// check, both genuinely distinct questions (see decider.Decider).
type Solver interface {
	Assert(t term.Term, timeoutMS int) (bool, error)
	Assume(ts ...term.Term) error
	Check(t term.Term, timeoutMS int) (bool, error)
	IsSat(t term.Term, timeoutMS int) (bool, error)
	FreshFunc(prefix string, args []term.Sort, result term.Sort) (term.Term, error)
	InScope(fn func() error) error
	WithChunk(candidates []decider.Chunk, args []term.Term, needed term.Term, timeoutMS int) (int, error)
}

// PredicateBody resolves a predicate name to its optimal snapshot sort.
type PredicateBody func(name string) term.Sort

// Consumer mirrors producer.Producer's configuration, exhaling instead
// of inhaling.
type Consumer struct {
	Solver     Solver
	Predicates PredicateBody
	Triggers   qp.TriggerGenerator
	TimeoutMS  int

	QuantifiedFields map[string]bool
	VarSorts         map[string]term.Sort
	FuncSorts        map[string]term.Sort
	FieldSorts       map[string]term.Sort

	// ExhaleExt, when true, routes consumed magic-wand chunks into the
	// state's reserve heap instead of dropping them, per spec.md §4.H.
	ExhaleExt bool
}

// Consume exhales a from s, returning the snapshot term the consumed
// chunks carried.
func (c *Consumer) Consume(s *state.State, a ast.Assertion) (term.Term, error) {
	conjuncts := ast.TopLevelConjuncts(a)
	if len(conjuncts) == 1 {
		return c.consumeOne(s, conjuncts[0])
	}
	result := term.Term(term.Unit)
	for _, conjunct := range conjuncts {
		snap, err := c.consumeOne(s, conjunct)
		if err != nil {
			return nil, err
		}
		result = term.NewCombine(result, snap)
	}
	return result, nil
}

func (c *Consumer) consumeOne(s *state.State, a ast.Assertion) (term.Term, error) {
	switch a := a.(type) {
	case *ast.Implies:
		cond := translate.Expr(c.env(s), a.Cond)
		return branch.TwoWay(c.Solver, s, cond, c.TimeoutMS,
			func(bs *state.State) (term.Term, error) { return c.Consume(bs, a.Then) },
			func(bs *state.State) (term.Term, error) { return term.Unit, nil },
		)

	case *ast.CondAssertion:
		cond := translate.Expr(c.env(s), a.Cond)
		return branch.TwoWay(c.Solver, s, cond, c.TimeoutMS,
			func(bs *state.State) (term.Term, error) { return c.Consume(bs, a.Then) },
			func(bs *state.State) (term.Term, error) { return c.Consume(bs, a.Else) },
		)

	case *ast.LetAssertion:
		v := translate.Expr(c.env(s), a.Value)
		s.Store = s.Store.Extend(a.Name, v)
		return c.Consume(s, a.Body)

	case *ast.FieldAccessPredicate:
		return c.consumeFieldAccess(s, a)

	case *ast.PredicateAccessPredicate:
		return c.consumePredicateAccess(s, a)

	case *ast.QuantifiedPermissionAssertion:
		return c.consumeQuantified(s, a)

	case *ast.MagicWand:
		return c.consumeWand(s, a)

	case *ast.InhaleExhaleAssertion:
		return c.Consume(s, ast.WhenExhaling(a))

	case *ast.ExprAssertion:
		t := translate.Expr(c.env(s), a.X)
		ok, err := c.Solver.Assert(t, c.TimeoutMS)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAssertionFalse, t)
		}
		return term.Unit, nil

	default:
		return nil, fmt.Errorf("consumer: unhandled assertion type %T", a)
	}
}

func (c *Consumer) consumeFieldAccess(s *state.State, a *ast.FieldAccessPredicate) (term.Term, error) {
	e := c.env(s)
	recv := translate.Expr(e, a.Recv)
	loss := s.ScaledPermission(translate.Expr(e, a.Perm))

	nonNeg := term.NewNot(term.NewPermLess(loss, term.NoPerm()))
	ok, err := c.Solver.Assert(nonNeg, c.TimeoutMS)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNegativePermission
	}

	valueSort := c.fieldSort(a.Field)

	if c.QuantifiedFields[a.Field] {
		return c.consumeSingletonField(s, a.Field, recv, loss, valueSort)
	}

	heap := s.ActiveHeap()
	var candidates []decider.Chunk
	var fieldIdxs []int
	for _, i := range heap.FieldChunksFor(a.Field) {
		if fc, ok := heap.Chunks()[i].(*state.FieldChunk); ok {
			candidates = append(candidates, fc)
			fieldIdxs = append(fieldIdxs, i)
		}
	}

	found, err := c.Solver.WithChunk(candidates, []term.Term{recv}, loss, c.TimeoutMS)
	if err != nil {
		return nil, err
	}
	if found < 0 {
		return nil, ErrInsufficientPermission
	}
	idx := fieldIdxs[found]
	chunk := heap.Chunks()[idx].(*state.FieldChunk)
	s.SetActiveHeap(replaceOrDrop(heap, idx, chunk, chunk.Perm, loss))
	return chunk.Value, nil
}

func (c *Consumer) consumeSingletonField(s *state.State, field string, recv, loss term.Term, valueSort term.Sort) (term.Term, error) {
	permShape := term.NewIte(term.NewEquals(term.ImplicitCodomain, recv), loss, term.NoPerm())
	binder := qp.ReceiverBinder{Bound: term.ImplicitCodomain, Receiver: recv, Condition: term.True, Perm: permShape}
	req := qp.Request{Binder: binder, Field: field, ValueSort: valueSort, Mode: qp.Exact, TimeoutMS: c.TimeoutMS}
	result, err := qp.Split(c.Solver, s.ActiveHeap(), req, c.triggerGen())
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, ErrInsufficientPermission
	}
	s.SetActiveHeap(result.Heap)
	if err := c.Solver.Assume(result.Axioms...); err != nil {
		return nil, err
	}
	return term.NewLookup(result.FVF, valueSort, recv), nil
}

func (c *Consumer) consumePredicateAccess(s *state.State, a *ast.PredicateAccessPredicate) (term.Term, error) {
	e := c.env(s)
	args := make([]term.Term, len(a.Args))
	for i, arg := range a.Args {
		args[i] = translate.Expr(e, arg)
	}
	loss := s.ScaledPermission(translate.Expr(e, a.Perm))
	nonNeg := term.NewNot(term.NewPermLess(loss, term.NoPerm()))
	ok, err := c.Solver.Assert(nonNeg, c.TimeoutMS)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNegativePermission
	}

	heap := s.ActiveHeap()
	var candidates []decider.Chunk
	var predIdxs []int
	for _, i := range heap.PredicateChunksFor(a.Name) {
		if pc, ok := heap.Chunks()[i].(*state.PredicateChunk); ok {
			candidates = append(candidates, pc)
			predIdxs = append(predIdxs, i)
		}
	}

	found, err := c.Solver.WithChunk(candidates, args, loss, c.TimeoutMS)
	if err != nil {
		return nil, err
	}
	if found < 0 {
		return nil, ErrInsufficientPermission
	}
	idx := predIdxs[found]
	chunk := heap.Chunks()[idx].(*state.PredicateChunk)
	s.SetActiveHeap(replaceOrDrop(heap, idx, chunk, chunk.Perm, loss))
	return chunk.Snap, nil
}

func (c *Consumer) consumeQuantified(s *state.State, a *ast.QuantifiedPermissionAssertion) (term.Term, error) {
	if a.Field == "" {
		return nil, fmt.Errorf("consumer: quantified predicate permissions are not yet supported")
	}
	boundVar := term.NewVar(a.Bound.Name, translate.Sort(a.Bound.Type))
	e := c.env(s)
	e.Lookup = withBound(e.Lookup, a.Bound.Name, boundVar)

	cond := translate.Expr(e, a.Condition)
	receiver := translate.Expr(e, a.Receiver)
	perm := s.ScaledPermission(translate.Expr(e, a.Perm))

	nonNegBody := term.NewImplies(cond, term.NewNot(term.NewPermLess(perm, term.NoPerm())))
	nonNeg := term.NewForall([]*term.Var{boundVar}, nonNegBody, c.triggers(boundVar, nonNegBody), "")
	ok, err := c.Solver.Assert(nonNeg, c.TimeoutMS)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNegativePermission
	}

	binder := qp.ReceiverBinder{Bound: boundVar, Receiver: receiver, Condition: cond, Perm: perm}

	injectivity := qp.InjectivityAxiom(binder, c.triggerGen())
	ok, err = c.Solver.Assert(injectivity, c.TimeoutMS)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrReceiverNotInjective
	}

	valueSort := c.fieldSort(a.Field)
	req := qp.Request{Binder: binder, Field: a.Field, ValueSort: valueSort, Mode: qp.Exact, TimeoutMS: c.TimeoutMS}
	result, err := qp.Split(c.Solver, s.ActiveHeap(), req, c.triggerGen())
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, ErrInsufficientPermission
	}
	s.SetActiveHeap(result.Heap)
	if err := c.Solver.Assume(result.Axioms...); err != nil {
		return nil, err
	}
	return result.FVF, nil
}

func (c *Consumer) consumeWand(s *state.State, a *ast.MagicWand) (term.Term, error) {
	wandID := fmt.Sprintf("%p", a)
	for _, i := range s.ActiveHeap().WandChunks() {
		wc := s.ActiveHeap().Chunks()[i].(*state.WandChunk)
		if wc.WandID != wandID {
			continue
		}
		heap := s.ActiveHeap().Without(i)
		if c.ExhaleExt {
			reserve := state.EmptyHeap().Add(wc)
			s.ReserveHeaps = append(s.ReserveHeaps, reserve)
		}
		s.SetActiveHeap(heap)
		return wc.Snap, nil
	}
	return nil, ErrInsufficientPermission
}

func (c *Consumer) env(s *state.State) translate.Env {
	return translate.Env{
		Lookup: s.Store.Get,
		Sort: func(name string) term.Sort {
			if sort, ok := c.VarSorts[name]; ok {
				return sort
			}
			return term.Ref
		},
		FuncResultSort: func(name string) term.Sort {
			if sort, ok := c.FuncSorts[name]; ok {
				return sort
			}
			return term.Int
		},
	}
}

func (c *Consumer) fieldSort(field string) term.Sort {
	if sort, ok := c.FieldSorts[field]; ok {
		return sort
	}
	return term.Int
}

func (c *Consumer) triggerGen() qp.TriggerGenerator {
	if c.Triggers == nil {
		return qp.NoTriggers
	}
	return c.Triggers
}

func (c *Consumer) triggers(bound *term.Var, body term.Term) []term.Trigger {
	if c.Triggers == nil {
		return nil
	}
	return c.Triggers([]*term.Var{bound}, body)
}

func withBound(lookup func(string) (term.Term, bool), name string, v term.Term) func(string) (term.Term, bool) {
	return func(n string) (term.Term, bool) {
		if n == name {
			return v, true
		}
		return lookup(n)
	}
}

// replaceOrDrop returns h with the chunk at idx reduced by loss, or
// dropped entirely when the reduction is syntactically zero, per
// spec.md §4.F step 6's exact-mode depletion check.
func replaceOrDrop(h *state.Heap, idx int, chunk state.Chunk, current, loss term.Term) *state.Heap {
	next := term.NewPermBinOp(term.PermMinus, current, loss)
	if term.TermsEqual(current, loss) || term.TermsEqual(next, term.NoPerm()) {
		return h.Without(idx)
	}
	return h.Replaced(idx, chunk.WithPerm(next))
}
