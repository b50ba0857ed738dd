// Package producer implements the inhale traversal: producing a
// permission assertion into the symbolic state (spec.md §4.G).
//
// Grounded on glee/executor.go's instruction-dispatch switch
// (executeNextInstruction's `switch instr.(type)`) as the template for
// dispatching on assertion shape, and on its Fork-then-recurse
// branching pattern for the then/else contract implemented here via
// package branch.
package producer

import (
	"fmt"

	"github.com/WissenIstNacht/silicon/ast"
	"github.com/WissenIstNacht/silicon/branch"
	"github.com/WissenIstNacht/silicon/qp"
	"github.com/WissenIstNacht/silicon/state"
	"github.com/WissenIstNacht/silicon/term"
	"github.com/WissenIstNacht/silicon/translate"
)

// Solver is the slice of decider.Decider the producer needs.
type Solver interface {
	Assume(ts ...term.Term) error
	FreshFunc(prefix string, args []term.Sort, result term.Sort) (term.Term, error)
	IsSat(t term.Term, timeoutMS int) (bool, error)
	InScope(fn func() error) error
}

// PredicateBody resolves a predicate name to its optimal snapshot sort,
// per spec.md §4.G's "the snapshot's sort is the optimal snapshot sort
// of P's body." Producing a predicate never needs the body itself,
// only the sort its consumer will eventually unfold into.
type PredicateBody func(name string) term.Sort

// Producer threads solver access, field/function sort declarations,
// and the set of fields ever seen under a quantifier across one
// produce call tree.
type Producer struct {
	Solver     Solver
	Predicates PredicateBody
	Triggers   qp.TriggerGenerator
	TimeoutMS  int

	// QuantifiedFields marks fields that have ever appeared under a
	// forall permission, per spec.md §4.G's "if f has ever been
	// quantified, add a singleton quantified chunk instead."
	QuantifiedFields map[string]bool

	VarSorts   map[string]term.Sort
	FuncSorts  map[string]term.Sort
	FieldSorts map[string]term.Sort
}

// Produce inhales a into s, returning the snapshot term that
// underlies the produced chunks. snapshotFn, given a sort, yields the
// snapshot term that should back any newly produced chunk.
func (p *Producer) Produce(s *state.State, snapshotFn func(term.Sort) term.Term, a ast.Assertion) (term.Term, error) {
	conjuncts := ast.TopLevelConjuncts(a)
	if len(conjuncts) == 1 {
		return p.produceOne(s, snapshotFn, conjuncts[0])
	}
	result := term.Term(term.Unit)
	for _, c := range conjuncts {
		snap, err := p.produceOne(s, snapshotFn, c)
		if err != nil {
			return nil, err
		}
		result = term.NewCombine(result, snap)
	}
	return result, nil
}

func (p *Producer) produceOne(s *state.State, snapshotFn func(term.Sort) term.Term, a ast.Assertion) (term.Term, error) {
	switch a := a.(type) {
	case *ast.Implies:
		cond := translate.Expr(p.env(s), a.Cond)
		return branch.TwoWay(p.Solver, s, cond, p.TimeoutMS,
			func(bs *state.State) (term.Term, error) { return p.Produce(bs, snapshotFn, a.Then) },
			func(bs *state.State) (term.Term, error) { return term.Unit, nil },
		)

	case *ast.CondAssertion:
		cond := translate.Expr(p.env(s), a.Cond)
		return branch.TwoWay(p.Solver, s, cond, p.TimeoutMS,
			func(bs *state.State) (term.Term, error) { return p.Produce(bs, snapshotFn, a.Then) },
			func(bs *state.State) (term.Term, error) { return p.Produce(bs, snapshotFn, a.Else) },
		)

	case *ast.LetAssertion:
		v := translate.Expr(p.env(s), a.Value)
		s.Store = s.Store.Extend(a.Name, v)
		return p.Produce(s, snapshotFn, a.Body)

	case *ast.FieldAccessPredicate:
		return p.produceFieldAccess(s, snapshotFn, a)

	case *ast.PredicateAccessPredicate:
		return p.producePredicateAccess(s, snapshotFn, a)

	case *ast.QuantifiedPermissionAssertion:
		return p.produceQuantified(s, a)

	case *ast.MagicWand:
		return p.produceWand(s, a)

	case *ast.InhaleExhaleAssertion:
		return p.Produce(s, snapshotFn, ast.WhenInhaling(a))

	case *ast.ExprAssertion:
		t := translate.Expr(p.env(s), a.X)
		if err := p.Solver.Assume(t); err != nil {
			return nil, err
		}
		return term.Unit, nil

	default:
		return nil, fmt.Errorf("producer: unhandled assertion type %T", a)
	}
}

func (p *Producer) produceFieldAccess(s *state.State, snapshotFn func(term.Sort) term.Term, a *ast.FieldAccessPredicate) (term.Term, error) {
	e := p.env(s)
	recv := translate.Expr(e, a.Recv)
	perm := s.ScaledPermission(translate.Expr(e, a.Perm))

	nonNeg := term.NewNot(term.NewPermLess(perm, term.NoPerm()))
	nullGuard := term.NewImplies(term.NewIsPositive(perm), term.NewNot(term.NewEquals(recv, term.NullLit())))
	if err := p.Solver.Assume(nonNeg, nullGuard); err != nil {
		return nil, err
	}

	valueSort := p.fieldSort(a.Field)
	value := snapshotFn(valueSort)

	if p.QuantifiedFields[a.Field] {
		fvf, err := p.Solver.FreshFunc("fvf", nil, term.FVFSort{Codomain: valueSort})
		if err != nil {
			return nil, err
		}
		if err := p.Solver.Assume(term.NewEquals(term.NewLookup(fvf, valueSort, recv), value)); err != nil {
			return nil, err
		}
		chunkPerm := term.NewIte(term.NewEquals(term.ImplicitCodomain, recv), perm, term.NoPerm())
		chunk := &state.QuantifiedFieldChunk{Field: a.Field, FVF: fvf, Perm: chunkPerm, Singleton: recv}
		s.SetActiveHeap(s.ActiveHeap().Add(chunk))
		return value, nil
	}

	chunk := state.NewFieldChunk(recv, a.Field, value, perm)
	s.SetActiveHeap(s.ActiveHeap().Add(chunk))
	return value, nil
}

func (p *Producer) producePredicateAccess(s *state.State, snapshotFn func(term.Sort) term.Term, a *ast.PredicateAccessPredicate) (term.Term, error) {
	e := p.env(s)
	args := make([]term.Term, len(a.Args))
	for i, arg := range a.Args {
		args[i] = translate.Expr(e, arg)
	}
	perm := s.ScaledPermission(translate.Expr(e, a.Perm))
	nonNeg := term.NewNot(term.NewPermLess(perm, term.NoPerm()))
	if err := p.Solver.Assume(nonNeg); err != nil {
		return nil, err
	}

	snapSort := p.Predicates(a.Name)
	snap := snapshotFn(snapSort)
	chunk := state.NewPredicateChunk(a.Name, args, snap, perm)
	s.SetActiveHeap(s.ActiveHeap().Add(chunk))
	return snap, nil
}

func (p *Producer) produceQuantified(s *state.State, a *ast.QuantifiedPermissionAssertion) (term.Term, error) {
	if a.Field == "" {
		return nil, fmt.Errorf("producer: quantified predicate permissions are not yet supported")
	}
	boundVar := term.NewVar(a.Bound.Name, translate.Sort(a.Bound.Type))
	e := p.env(s)
	e.Lookup = withBound(e.Lookup, a.Bound.Name, boundVar)

	cond := translate.Expr(e, a.Condition)
	receiver := translate.Expr(e, a.Receiver)
	perm := s.ScaledPermission(translate.Expr(e, a.Perm))

	binder := qp.ReceiverBinder{Bound: boundVar, Receiver: receiver, Condition: cond, Perm: perm}
	inv, err := qp.MintInverse(binder, p.Solver.FreshFunc, p.Triggers)
	if err != nil {
		return nil, err
	}

	fieldSort := p.fieldSort(a.Field)
	fvf, err := p.Solver.FreshFunc("fvf", nil, term.FVFSort{Codomain: fieldSort})
	if err != nil {
		return nil, err
	}

	invAtR := inv.Apply(term.ImplicitCodomain)
	permAtR := term.Substitute(perm, boundVar, invAtR)
	condAtR := term.Substitute(cond, boundVar, invAtR)
	chunkPerm := term.NewIte(condAtR, permAtR, term.NoPerm())

	chunk := &state.QuantifiedFieldChunk{Field: a.Field, FVF: fvf, Perm: chunkPerm, Inverse: term.NewFuncApp(inv.Name, inv.Sort)}
	s.SetActiveHeap(s.ActiveHeap().Add(chunk))

	for _, ax := range inv.Defining {
		if err := p.Solver.Assume(ax); err != nil {
			return nil, err
		}
	}
	if err := p.Solver.Assume(qp.NonNullAxiom(binder, p.Triggers)); err != nil {
		return nil, err
	}
	nonNegBody := term.NewImplies(cond, term.NewNot(term.NewPermLess(perm, term.NoPerm())))
	nonNeg := term.NewForall([]*term.Var{boundVar}, nonNegBody, p.triggers(boundVar, nonNegBody), "")
	if err := p.Solver.Assume(nonNeg); err != nil {
		return nil, err
	}

	s.Recorder = s.Recorder.Record("inverse", term.NewFuncApp(inv.Name, inv.Sort))

	return term.Unit, nil
}

func (p *Producer) produceWand(s *state.State, a *ast.MagicWand) (term.Term, error) {
	bindings := make(map[string]term.Term)
	s.Store.ForEach(func(name string, t term.Term) { bindings[name] = t })
	// Two occurrences of the same wand syntax in one method share the
	// same *ast.MagicWand node, so its pointer is a stable identity key
	// for the produce/consume round trip.
	chunk := &state.WandChunk{WandID: fmt.Sprintf("%p", a), Bindings: bindings, Snap: term.Unit}
	s.SetActiveHeap(s.ActiveHeap().Add(chunk))
	return term.Unit, nil
}

func (p *Producer) env(s *state.State) translate.Env {
	return translate.Env{
		Lookup: s.Store.Get,
		Sort: func(name string) term.Sort {
			if sort, ok := p.VarSorts[name]; ok {
				return sort
			}
			return term.Ref
		},
		FuncResultSort: func(name string) term.Sort {
			if sort, ok := p.FuncSorts[name]; ok {
				return sort
			}
			return term.Int
		},
	}
}

func (p *Producer) fieldSort(field string) term.Sort {
	if sort, ok := p.FieldSorts[field]; ok {
		return sort
	}
	return term.Int
}

func (p *Producer) triggers(bound *term.Var, body term.Term) []term.Trigger {
	if p.Triggers == nil {
		return nil
	}
	return p.Triggers([]*term.Var{bound}, body)
}

func withBound(lookup func(string) (term.Term, bool), name string, v term.Term) func(string) (term.Term, bool) {
	return func(n string) (term.Term, bool) {
		if n == name {
			return v, true
		}
		return lookup(n)
	}
}
