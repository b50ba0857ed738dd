package verifier

import (
	"errors"
	"fmt"

	"github.com/WissenIstNacht/silicon/ast"
	"github.com/WissenIstNacht/silicon/consumer"
	"github.com/WissenIstNacht/silicon/state"
	"github.com/WissenIstNacht/silicon/term"
	"github.com/WissenIstNacht/silicon/translate"
)

// execStmts walks stmts against s, dispatching branching statements
// (If, While) specially since they need the *remaining* statement
// suffix as their continuation. Grounded on glee/executor.go's
// dispatch loop, generalized from a flat instruction stream to this
// grammar's structured control flow.
func (mv *methodVerifier) execStmts(s *state.State, stmts []ast.Stmt) (VerificationResult, error) {
	if len(stmts) == 0 {
		return Success(), nil
	}
	head, rest := stmts[0], stmts[1:]

	if ifStmt, ok := head.(*ast.If); ok {
		return mv.execIf(s, ifStmt, rest)
	}

	if whileStmt, ok := head.(*ast.While); ok {
		res, err := mv.execWhile(s, whileStmt)
		if err != nil || res.Kind != ResultSuccess {
			return res, err
		}
		return mv.execStmts(s, rest)
	}

	res, err := mv.execStmt(s, head)
	if err != nil || res.Kind != ResultSuccess {
		return res, err
	}
	return mv.execStmts(s, rest)
}

func (mv *methodVerifier) execStmt(s *state.State, st ast.Stmt) (VerificationResult, error) {
	switch st := st.(type) {
	case *ast.Inhale:
		if _, err := mv.producer().Produce(s, mv.snapshot, st.A); err != nil {
			return VerificationResult{}, err
		}
		return Success(), nil

	case *ast.Exhale:
		if _, err := mv.consumer().Consume(s, st.A); err != nil {
			return mv.classifyConsumeFailure(st.A, err)
		}
		return Success(), nil

	case *ast.Assign:
		value := translate.Expr(mv.env(s), st.Value)
		s.Store = s.Store.Extend(st.Name, value)
		return Success(), nil

	case *ast.FieldAssign:
		return mv.execFieldAssign(s, st)

	case *ast.Fold:
		return mv.execFold(s, st)

	case *ast.Unfold:
		return mv.execUnfold(s, st)

	case *ast.Assert:
		return mv.execAssert(s, st)

	case *ast.Assume:
		if _, err := mv.producer().Produce(s, mv.snapshot, st.A); err != nil {
			return VerificationResult{}, err
		}
		return Success(), nil

	case *ast.Call:
		return mv.execCall(s, st)

	default:
		return VerificationResult{}, fmt.Errorf("verifier: unhandled statement type %T", st)
	}
}

// execFieldAssign models x.f := v the standard way: exhale full
// permission to x.f (checking the write is licensed and dropping the
// old chunk), then inhale it back with v as the new snapshot.
func (mv *methodVerifier) execFieldAssign(s *state.State, st *ast.FieldAssign) (VerificationResult, error) {
	value := translate.Expr(mv.env(s), st.Value)
	full := &ast.FieldAccessPredicate{Recv: st.Recv, Field: st.Field, Perm: &ast.FullPermLit{}}

	if _, err := mv.consumer().Consume(s, full); err != nil {
		return mv.classifyConsumeFailure(full, err)
	}
	fixedSnapshot := func(term.Sort) term.Term { return value }
	if _, err := mv.producer().Produce(s, fixedSnapshot, full); err != nil {
		return VerificationResult{}, err
	}
	return Success(), nil
}

// execAssert checks st.A holds without retaining any permission it
// exhales along the way: the heap is rolled back to what it was before
// the check regardless of outcome, since `assert` never transfers
// permission per spec.md §2.
func (mv *methodVerifier) execAssert(s *state.State, st *ast.Assert) (VerificationResult, error) {
	preHeap := s.ActiveHeap()
	_, err := mv.consumer().Consume(s, st.A)
	s.SetActiveHeap(preHeap)
	if err != nil {
		return mv.classifyConsumeFailure(st.A, err)
	}
	return Success(), nil
}

// execIf verifies both arms independently, each carrying the full
// statement suffix (rest) as its own continuation and its own forked
// heap, per spec.md §9's "every continuation is invoked at most once
// per path" -- there is no merge-back afterward because there is no
// "afterward" left to run once a branch has consumed rest itself.
func (mv *methodVerifier) execIf(s *state.State, st *ast.If, rest []ast.Stmt) (VerificationResult, error) {
	cond := translate.Expr(mv.env(s), st.Cond)
	notCond := term.NewNot(cond)
	preHeap := s.Heap

	arms := []struct {
		guard term.Term
		body  []ast.Stmt
	}{
		{cond, st.Then},
		{notCond, st.Else},
	}

	combined := Unreachable()
	anyFeasible := false

	for _, arm := range arms {
		feasible, err := mv.dec.IsSat(arm.guard, mv.v.Config.Z3Timeout)
		if err != nil {
			return VerificationResult{}, err
		}
		if !feasible {
			continue
		}
		anyFeasible = true

		var branchResult VerificationResult
		err = mv.dec.InScope(func() error {
			if err := mv.dec.Assume(arm.guard); err != nil {
				return err
			}
			branchState := s.Fork()
			branchState.Heap = preHeap
			r, err := mv.execStmts(branchState, append(append([]ast.Stmt{}, arm.body...), rest...))
			if err != nil {
				return err
			}
			branchResult = r
			return nil
		})
		if err != nil {
			return VerificationResult{}, err
		}
		combined = combined.And(branchResult)
	}

	if !anyFeasible {
		return Unreachable(), nil
	}
	return combined, nil
}

// execWhile verifies a while loop the way spec.md's Non-goal ("loops
// are handled by specification-carrying invariants supplied by the
// user") calls for: consume the invariant, havoc every variable the
// body assigns, re-produce the invariant to get fresh chunks for the
// havoced state, check the body preserves it in an isolated scope, then
// continue past the loop under the negated guard.
func (mv *methodVerifier) execWhile(s *state.State, st *ast.While) (VerificationResult, error) {
	inv := combineInvariants(st.Invariants)

	if _, err := mv.consumer().Consume(s, inv); err != nil {
		return mv.classifyConsumeFailure(inv, err)
	}

	if err := mv.havoc(s, assignedVars(st.Body)); err != nil {
		return VerificationResult{}, err
	}

	if _, err := mv.producer().Produce(s, mv.snapshot, inv); err != nil {
		return VerificationResult{}, err
	}

	cond := translate.Expr(mv.env(s), st.Cond)

	var bodyResult VerificationResult
	err := mv.dec.InScope(func() error {
		feasible, err := mv.dec.IsSat(cond, mv.v.Config.Z3Timeout)
		if err != nil {
			return err
		}
		if !feasible {
			bodyResult = Unreachable()
			return nil
		}
		if err := mv.dec.Assume(cond); err != nil {
			return err
		}
		bodyState := s.Fork()
		bodyState.Heap = s.Heap
		r, err := mv.execStmts(bodyState, st.Body)
		if err != nil {
			return err
		}
		if r.Kind != ResultSuccess {
			bodyResult = r
			return nil
		}
		if _, err := mv.consumer().Consume(bodyState, inv); err != nil {
			classified, classifyErr := mv.classifyConsumeFailure(inv, err)
			if classifyErr != nil {
				return classifyErr
			}
			bodyResult = classified
			return nil
		}
		bodyResult = Success()
		return nil
	})
	if err != nil {
		return VerificationResult{}, err
	}
	if bodyResult.Kind == ResultFailure {
		return bodyResult, nil
	}

	notCond := term.NewNot(cond)
	feasible, err := mv.dec.IsSat(notCond, mv.v.Config.Z3Timeout)
	if err != nil {
		return VerificationResult{}, err
	}
	if !feasible {
		return Unreachable(), nil
	}
	if err := mv.dec.Assume(notCond); err != nil {
		return VerificationResult{}, err
	}
	return Success(), nil
}

// execFold consumes a predicate's body and folds the result into a
// single predicate chunk holding the body's combined snapshot.
func (mv *methodVerifier) execFold(s *state.State, st *ast.Fold) (VerificationResult, error) {
	body := mv.predicateBody(st.P.Name)
	if body == nil {
		return VerificationResult{}, fmt.Errorf("verifier: fold of unknown predicate %q", st.P.Name)
	}
	boundBody, err := mv.bindPredicateArgs(st.P.Name, st.P.Args, body)
	if err != nil {
		return VerificationResult{}, err
	}

	snap, err := mv.consumer().Consume(s, boundBody)
	if err != nil {
		return mv.classifyConsumeFailure(boundBody, err)
	}

	fixedSnapshot := func(term.Sort) term.Term { return snap }
	if _, err := mv.producer().Produce(s, fixedSnapshot, &st.P); err != nil {
		return VerificationResult{}, err
	}
	return Success(), nil
}

// execUnfold consumes a predicate chunk and re-produces its body,
// redistributing the consumed chunk's combined snapshot back into the
// individual chunks the body's Produce call creates -- inverting
// producer's left-associative Combine fold over the body's top-level
// conjuncts.
func (mv *methodVerifier) execUnfold(s *state.State, st *ast.Unfold) (VerificationResult, error) {
	body := mv.predicateBody(st.P.Name)
	if body == nil {
		return VerificationResult{}, fmt.Errorf("verifier: unfold of unknown predicate %q", st.P.Name)
	}
	boundBody, err := mv.bindPredicateArgs(st.P.Name, st.P.Args, body)
	if err != nil {
		return VerificationResult{}, err
	}

	snap, err := mv.consumer().Consume(s, &st.P)
	if err != nil {
		return mv.classifyConsumeFailure(&st.P, err)
	}

	conjuncts := ast.TopLevelConjuncts(boundBody)
	leaves := splitSnapshot(len(conjuncts), snap)
	i := 0
	fixedSnapshot := func(sort term.Sort) term.Term {
		if i < len(leaves) {
			v := leaves[i]
			i++
			return v
		}
		return mv.snapshot(sort)
	}
	if _, err := mv.producer().Produce(s, fixedSnapshot, boundBody); err != nil {
		return VerificationResult{}, err
	}
	return Success(), nil
}

// execCall binds actuals to the callee's formals in a fresh scratch
// store, consumes its preconditions, mints a fresh result symbol,
// produces its postconditions, and splices the result back into the
// caller's store.
func (mv *methodVerifier) execCall(s *state.State, st *ast.Call) (VerificationResult, error) {
	callee, ok := mv.v.methodsByName[st.Method]
	if !ok {
		return VerificationResult{}, fmt.Errorf("verifier: call to unknown method %q", st.Method)
	}

	callerEnv := mv.env(s)
	calleeStore := s.Store
	for i, param := range callee.Params {
		if i >= len(st.Args) {
			return VerificationResult{}, fmt.Errorf("verifier: call to %q missing argument %d", st.Method, i)
		}
		actual := translate.Expr(callerEnv, st.Args[i])
		calleeStore = calleeStore.Extend(param.Name, actual)
	}

	calleeState := s.Fork()
	calleeState.Store = calleeStore

	for _, pre := range callee.Preconds {
		if _, err := mv.consumer().Consume(calleeState, pre); err != nil {
			return mv.classifyConsumeFailure(pre, err)
		}
	}
	s.Heap = calleeState.Heap

	if callee.Result != nil && st.Result != "" {
		resultSort := translate.Sort(callee.Result.Type)
		resVar := mv.snapshot(resultSort)
		mv.varSorts("result", resultSort)
		calleeState.Store = calleeState.Store.Extend("result", resVar)
	}

	postState := calleeState.Fork()
	for _, post := range callee.Postconds {
		if _, err := mv.producer().Produce(postState, mv.snapshot, post); err != nil {
			return VerificationResult{}, err
		}
	}
	s.Heap = postState.Heap

	if st.Result != "" {
		if callee.Result == nil {
			return VerificationResult{}, fmt.Errorf("verifier: call to %q assigns a result but declares none", st.Method)
		}
		resultVal, _ := postState.Store.Get("result")
		s.Store = s.Store.Extend(st.Result, resultVal)
	}
	return Success(), nil
}

func (mv *methodVerifier) classifyConsumeFailure(node ast.Assertion, err error) (VerificationResult, error) {
	var kind FailureKind
	switch {
	case errors.Is(err, consumer.ErrNegativePermission):
		kind = NegativePermission
	case errors.Is(err, consumer.ErrReceiverNotInjective):
		kind = ReceiverNotInjective
	case errors.Is(err, consumer.ErrAssertionFalse):
		kind = AssertionFalse
	case errors.Is(err, consumer.ErrInsufficientPermission):
		// The AST has no distinct node for a *named* magic wand (every
		// wand is anonymous, keyed by its ast.MagicWand pointer), so
		// NamedMagicWandChunkNotFound never arises from this dispatch.
		if _, ok := node.(*ast.MagicWand); ok {
			kind = MagicWandChunkNotFound
		} else {
			kind = InsufficientPermission
		}
	default:
		return VerificationResult{}, err
	}
	model := ""
	if mv.v.Config.IdeModeAdvanced {
		model = mv.dec.Driver().LastModel()
	}
	return failureResult(mv.method.Name, kind, node, err.Error(), model), nil
}

// predicateBody looks up a predicate's declared body by name.
func (mv *methodVerifier) predicateBody(name string) ast.Assertion {
	for i := range mv.v.Program.Predicates {
		if mv.v.Program.Predicates[i].Name == name {
			return mv.v.Program.Predicates[i].Body
		}
	}
	return nil
}

// bindPredicateArgs substitutes a predicate's formal parameters for
// args's translated actuals inside body, threading through a
// LetAssertion chain so producer/consumer's existing LetAssertion
// handling does the substitution.
func (mv *methodVerifier) bindPredicateArgs(name string, args []ast.Expr, body ast.Assertion) (ast.Assertion, error) {
	var params []ast.BoundVar
	for i := range mv.v.Program.Predicates {
		if mv.v.Program.Predicates[i].Name == name {
			params = mv.v.Program.Predicates[i].Params
		}
	}
	if len(params) != len(args) {
		return nil, fmt.Errorf("verifier: predicate %q applied to %d arguments, wants %d", name, len(args), len(params))
	}
	bound := body
	for i := len(params) - 1; i >= 0; i-- {
		bound = &ast.LetAssertion{Name: params[i].Name, Value: args[i], Body: bound}
	}
	return bound, nil
}

// splitSnapshot inverts Produce's left-associative Combine fold over n
// top-level conjuncts, recovering the n leaf snapshots that went into
// building snap. Mirrors producer.Produce's own n==1 special case
// (which skips Combine entirely) and its n>1 fold
// (`result = Combine(result, snap_i)`, left to right).
func splitSnapshot(n int, snap term.Term) []term.Term {
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []term.Term{snap}
	}
	combine, ok := snap.(*term.Combine)
	if !ok {
		// A vacuous or already-collapsed snapshot (e.g. term.Unit):
		// there is nothing to split, so every leaf shares it.
		leaves := make([]term.Term, n)
		for i := range leaves {
			leaves[i] = snap
		}
		return leaves
	}
	leaves := splitSnapshot(n-1, combine.Left)
	return append(leaves, combine.Right)
}

// assignedVars collects every variable name a statement list directly
// assigns (Assign, Call with a non-discarded result), recursing into
// If/While bodies but not into called methods.
func assignedVars(stmts []ast.Stmt) map[string]bool {
	names := make(map[string]bool)
	var walk func([]ast.Stmt)
	walk = func(stmts []ast.Stmt) {
		for _, st := range stmts {
			switch st := st.(type) {
			case *ast.Assign:
				names[st.Name] = true
			case *ast.Call:
				if st.Result != "" {
					names[st.Result] = true
				}
			case *ast.If:
				walk(st.Then)
				walk(st.Else)
			case *ast.While:
				walk(st.Body)
			}
		}
	}
	walk(stmts)
	return names
}

// havoc rebinds every name in names to a fresh symbol of its declared
// sort, forgetting whatever value symbolic execution had derived for it
// before the loop.
func (mv *methodVerifier) havoc(s *state.State, names map[string]bool) error {
	for _, name := range sortedNames(names) {
		var sort term.Sort = term.Ref
		if declared, ok := mv.varSortsMap[name]; ok {
			sort = declared
		}
		fresh, err := mv.dec.Fresh(name, sort)
		if err != nil {
			return err
		}
		s.Store = s.Store.Extend(name, fresh)
	}
	return nil
}

// combineInvariants folds a while loop's invariant clauses into a
// single assertion via nested conjunction.
func combineInvariants(invariants []ast.Assertion) ast.Assertion {
	if len(invariants) == 0 {
		return &ast.ExprAssertion{X: &ast.BoolLit{Value: true}}
	}
	result := invariants[0]
	for _, inv := range invariants[1:] {
		result = &ast.And{Left: result, Right: inv}
	}
	return result
}
