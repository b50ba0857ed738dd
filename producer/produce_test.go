package producer_test

import (
	"testing"

	"github.com/WissenIstNacht/silicon/ast"
	"github.com/WissenIstNacht/silicon/producer"
	"github.com/WissenIstNacht/silicon/qp"
	"github.com/WissenIstNacht/silicon/state"
	"github.com/WissenIstNacht/silicon/term"
)

// fakeSolver records every Assume call and answers InScope/IsSat/
// FreshFunc the way decider.Decider would, without a real SMT process.
type fakeSolver struct {
	assumed     []term.Term
	freshSeq    int
	satResult bool
}

func (f *fakeSolver) Assume(ts ...term.Term) error {
	f.assumed = append(f.assumed, ts...)
	return nil
}
func (f *fakeSolver) FreshFunc(prefix string, args []term.Sort, result term.Sort) (term.Term, error) {
	f.freshSeq++
	if len(args) == 0 {
		return term.NewVar(prefix, result), nil
	}
	return term.NewFuncApp(prefix, result), nil
}
func (f *fakeSolver) IsSat(t term.Term, timeoutMS int) (bool, error) { return f.satResult, nil }
func (f *fakeSolver) InScope(fn func() error) error                  { return fn() }

func freshSnapshotFn() func(term.Sort) term.Term {
	n := 0
	return func(s term.Sort) term.Term {
		n++
		return term.NewVar("snap", s)
	}
}

func TestProduceFieldAccessAddsChunkAndAssumesGuards(t *testing.T) {
	solver := &fakeSolver{satResult: true}
	p := &producer.Producer{Solver: solver, FieldSorts: map[string]term.Sort{"f": term.Int}}
	s := state.New()
	s.Store = s.Store.Extend("x", term.NewVar("x", term.Ref))

	a := &ast.FieldAccessPredicate{
		Recv:  &ast.VarRef{Name: "x"},
		Field: "f",
		Perm:  &ast.FullPermLit{},
	}
	if _, err := p.Produce(s, freshSnapshotFn(), a); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(s.Heap.Chunks()) != 1 {
		t.Fatalf("expected one field chunk, got %d", len(s.Heap.Chunks()))
	}
	if len(solver.assumed) != 2 {
		t.Fatalf("expected the non-negativity and null guards to be assumed, got %d assumptions", len(solver.assumed))
	}
}

func TestProduceAndCombinesBothSnapshots(t *testing.T) {
	solver := &fakeSolver{satResult: true}
	p := &producer.Producer{Solver: solver, FieldSorts: map[string]term.Sort{"f": term.Int, "g": term.Int}}
	s := state.New()
	s.Store = s.Store.Extend("x", term.NewVar("x", term.Ref))

	a := &ast.And{
		Left:  &ast.FieldAccessPredicate{Recv: &ast.VarRef{Name: "x"}, Field: "f", Perm: &ast.FullPermLit{}},
		Right: &ast.FieldAccessPredicate{Recv: &ast.VarRef{Name: "x"}, Field: "g", Perm: &ast.FullPermLit{}},
	}
	if _, err := p.Produce(s, freshSnapshotFn(), a); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(s.Heap.Chunks()) != 2 {
		t.Fatalf("expected both field chunks to be produced, got %d", len(s.Heap.Chunks()))
	}
}

func TestProduceImpliesSkipsInfeasibleThenBranch(t *testing.T) {
	solver := &fakeSolver{satResult: false}
	p := &producer.Producer{Solver: solver, FieldSorts: map[string]term.Sort{"f": term.Int}}
	s := state.New()
	s.Store = s.Store.Extend("x", term.NewVar("x", term.Ref))

	a := &ast.Implies{
		Cond: &ast.BoolLit{Value: true},
		Then: &ast.FieldAccessPredicate{Recv: &ast.VarRef{Name: "x"}, Field: "f", Perm: &ast.FullPermLit{}},
	}
	if _, err := p.Produce(s, freshSnapshotFn(), a); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(s.Heap.Chunks()) != 0 {
		t.Fatalf("infeasible branch should not have produced any chunk, got %d", len(s.Heap.Chunks()))
	}
}

func TestProduceImpliesElseBranchSnapshotIsUnit(t *testing.T) {
	// Both arms of an unconstrained-guard Implies are feasible, so the
	// join result carries the else branch's snapshot for the untaken
	// side -- an Ite over an Ite branch, not just the then-branch value.
	solver := &fakeSolver{satResult: true}
	p := &producer.Producer{Solver: solver, FieldSorts: map[string]term.Sort{"f": term.Int}}
	s := state.New()
	s.Store = s.Store.Extend("x", term.NewVar("x", term.Ref))
	b := term.NewVar("b", term.Bool)

	a := &ast.Implies{
		Cond: &ast.VarRef{Name: "b"},
		Then: &ast.FieldAccessPredicate{Recv: &ast.VarRef{Name: "x"}, Field: "f", Perm: &ast.FullPermLit{}},
	}
	s.Store = s.Store.Extend("b", b)
	snap, err := p.Produce(s, freshSnapshotFn(), a)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if !term.TermsEqual(snap, term.NewIte(b, snap.(*term.Ite).Then, term.Unit)) {
		t.Fatalf("expected the else arm's snapshot to be Unit, got %v", snap)
	}
	if len(s.Heap.Chunks()) != 1 {
		t.Fatalf("the feasible then arm should still have produced its chunk, got %d", len(s.Heap.Chunks()))
	}
}

func TestProduceLetExtendsStoreForBody(t *testing.T) {
	solver := &fakeSolver{satResult: true}
	p := &producer.Producer{Solver: solver, FieldSorts: map[string]term.Sort{"f": term.Int}}
	s := state.New()

	a := &ast.LetAssertion{
		Name:  "y",
		Value: &ast.IntLit{Value: 3},
		Body:  &ast.ExprAssertion{X: &ast.BinOp{Op: ast.OpEq, X: &ast.VarRef{Name: "y"}, Y: &ast.IntLit{Value: 3}}},
	}
	if _, err := p.Produce(s, freshSnapshotFn(), a); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(solver.assumed) != 1 {
		t.Fatalf("expected the pure body to be assumed once, got %d", len(solver.assumed))
	}
}

func TestProducePredicateAccessUsesDeclaredSnapshotSort(t *testing.T) {
	solver := &fakeSolver{satResult: true}
	p := &producer.Producer{
		Solver:     solver,
		Predicates: func(name string) term.Sort { return term.Bool },
	}
	s := state.New()
	s.Store = s.Store.Extend("x", term.NewVar("x", term.Ref))

	a := &ast.PredicateAccessPredicate{Name: "P", Args: []ast.Expr{&ast.VarRef{Name: "x"}}, Perm: &ast.FullPermLit{}}
	snap, err := p.Produce(s, freshSnapshotFn(), a)
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if snap.SortOf() != term.Bool {
		t.Fatalf("predicate snapshot should carry the declared body sort, got %v", snap.SortOf())
	}
	if len(s.Heap.Chunks()) != 1 {
		t.Fatalf("expected one predicate chunk, got %d", len(s.Heap.Chunks()))
	}
}

func TestProduceQuantifiedFieldPermissionMintsInverseAndChunk(t *testing.T) {
	solver := &fakeSolver{satResult: true}
	p := &producer.Producer{Solver: solver, FieldSorts: map[string]term.Sort{"f": term.Int}, Triggers: qp.NoTriggers}
	s := state.New()

	a := &ast.QuantifiedPermissionAssertion{
		Bound:     ast.BoundVar{Name: "x", Type: ast.TypeRef},
		Condition: &ast.BoolLit{Value: true},
		Receiver:  &ast.VarRef{Name: "x"},
		Field:     "f",
		Perm:      &ast.FullPermLit{},
	}
	if _, err := p.Produce(s, freshSnapshotFn(), a); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if len(s.Heap.Chunks()) != 1 {
		t.Fatalf("expected one quantified field chunk, got %d", len(s.Heap.Chunks()))
	}
	if _, ok := s.Heap.Chunks()[0].(*state.QuantifiedFieldChunk); !ok {
		t.Fatalf("expected a *state.QuantifiedFieldChunk, got %T", s.Heap.Chunks()[0])
	}
	if len(s.Recorder.Axioms()) != 1 {
		t.Fatalf("expected the minted inverse function to be recorded, got %d axioms", len(s.Recorder.Axioms()))
	}
	// two inverse-defining axioms, a non-null axiom, a non-negativity axiom
	if len(solver.assumed) != 4 {
		t.Fatalf("expected 4 assumed axioms, got %d", len(solver.assumed))
	}
}

func TestProduceMagicWandAddsWandChunkKeyedByIdentity(t *testing.T) {
	solver := &fakeSolver{satResult: true}
	p := &producer.Producer{Solver: solver}
	s := state.New()

	a := &ast.MagicWand{
		Left:  &ast.ExprAssertion{X: &ast.BoolLit{Value: true}},
		Right: &ast.ExprAssertion{X: &ast.BoolLit{Value: true}},
	}
	if _, err := p.Produce(s, freshSnapshotFn(), a); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	chunks := s.Heap.Chunks()
	if len(chunks) != 1 {
		t.Fatalf("expected one wand chunk, got %d", len(chunks))
	}
	wc, ok := chunks[0].(*state.WandChunk)
	if !ok {
		t.Fatalf("expected a *state.WandChunk, got %T", chunks[0])
	}
	if wc.WandID == "" {
		t.Fatalf("wand chunk should carry a non-empty identity key")
	}
}
