// Package translate implements the pure expression-to-term translator
// (spec.md §4.I): direct structural recursion over ast.Expr producing a
// term.Term, with no access to the heap. Grounded on Dr-Deep-hl's
// convExpr (a structural switch over an AST producing solver-facing
// text), generalized from string-building to term-building, keeping its
// panic-on-unsupported-shape discipline.
package translate

import (
	"fmt"

	"github.com/WissenIstNacht/silicon/ast"
	"github.com/WissenIstNacht/silicon/term"
)

// Env resolves the free names an expression may mention: bound program
// variables, the current method's declared parameter/result sorts, and
// domain functions' result sorts. Producer/consumer build one per
// traversal step from the symbolic store.
type Env struct {
	// Lookup returns the term currently bound to a variable name.
	Lookup func(name string) (term.Term, bool)
	// Sort returns the declared sort of a variable name (used when a
	// bound variable has no term yet, e.g. inside a quantifier body).
	Sort func(name string) term.Sort
	// FuncResultSort returns a domain function's declared result sort.
	FuncResultSort func(name string) term.Sort
}

// Sort maps an ast.Type to its term.Sort. Seq/Set/Multiset carry no
// element type at the ast.Type level (BoundVar and FuncCall args are
// typed via the surrounding declaration instead), so callers needing a
// composite sort build it directly; this covers the scalar cases.
func Sort(t ast.Type) term.Sort {
	switch t {
	case ast.TypeInt:
		return term.Int
	case ast.TypeBool:
		return term.Bool
	case ast.TypeRef:
		return term.Ref
	case ast.TypePerm:
		return term.Perm
	default:
		panic(fmt.Sprintf("translate: Sort: unsupported scalar type %v", t))
	}
}

// Expr translates a pure expression to a term. Encountering a
// heap-referencing expression (FieldAccess, Old, Unfolding, PermExpr,
// Wildcard, InhaleExhale) is a programmer error and panics, per
// spec.md §4.I.
func Expr(env Env, e ast.Expr) term.Term {
	switch e := e.(type) {
	case *ast.IntLit:
		return term.IntLit(e.Value)
	case *ast.BoolLit:
		return term.BoolLit(e.Value)
	case *ast.NullLit:
		return term.NullLit()
	case *ast.FullPermLit:
		return term.FullPerm()
	case *ast.NoPermLit:
		return term.NoPerm()
	case *ast.FracPermLit:
		return term.FractionPerm(term.IntLit(e.Num), term.IntLit(e.Denom))
	case *ast.VarRef:
		if t, ok := env.Lookup(e.Name); ok {
			return t
		}
		return term.NewVar(e.Name, env.Sort(e.Name))
	case *ast.Result:
		if t, ok := env.Lookup("result"); ok {
			return t
		}
		return term.NewVar("result", env.Sort("result"))
	case *ast.BinOp:
		return binOp(env, e)
	case *ast.UnOp:
		return unOp(env, e)
	case *ast.CondExp:
		return term.NewIte(Expr(env, e.Cond), Expr(env, e.Then), Expr(env, e.Else))
	case *ast.Let:
		value := Expr(env, e.Value)
		bound := term.NewVar(e.Name, value.SortOf())
		nested := withBinding(env, e.Name, value)
		return term.NewLet(bound, value, Expr(nested, e.Body))
	case *ast.FuncCall:
		args := make([]term.Term, len(e.Args))
		for i, a := range e.Args {
			args[i] = Expr(env, a)
		}
		return term.NewFuncApp(e.Name, env.FuncResultSort(e.Name), args...)
	case *ast.Quantification:
		return quantification(env, e)
	case *ast.SeqExpr:
		return seqOp(env, e)
	case *ast.SetExpr:
		return setOp(env, e)
	case *ast.MultisetExpr:
		return multisetOp(env, e)
	case *ast.FieldAccess:
		panic("translate: Expr: field access is not a pure expression")
	case *ast.Old:
		panic("translate: Expr: old(...) is not a pure expression")
	case *ast.Unfolding:
		panic("translate: Expr: unfolding is not a pure expression")
	case *ast.PermExpr:
		panic("translate: Expr: perm(...) is not a pure expression")
	case *ast.Wildcard:
		panic("translate: Expr: wildcard is not a pure expression")
	case *ast.InhaleExhale:
		panic("translate: Expr: inhale-exhale expression reached the translator")
	default:
		panic(fmt.Sprintf("translate: Expr: unhandled expression type %T", e))
	}
}

func withBinding(env Env, name string, value term.Term) Env {
	next := env
	next.Lookup = func(n string) (term.Term, bool) {
		if n == name {
			return value, true
		}
		return env.Lookup(n)
	}
	return next
}

func binOp(env Env, e *ast.BinOp) term.Term {
	x, y := Expr(env, e.X), Expr(env, e.Y)
	switch e.Op {
	case ast.OpAdd:
		return term.NewArith(term.OpAdd, x, y)
	case ast.OpSub:
		return term.NewArith(term.OpSub, x, y)
	case ast.OpMul:
		return term.NewArith(term.OpMul, x, y)
	case ast.OpDiv:
		return term.NewArith(term.OpDiv, x, y)
	case ast.OpMod:
		return term.NewArith(term.OpMod, x, y)
	case ast.OpLess:
		return term.NewArith(term.OpLess, x, y)
	case ast.OpLessEq:
		return term.NewArith(term.OpLessEq, x, y)
	case ast.OpGreater:
		return term.NewArith(term.OpGreater, x, y)
	case ast.OpGreaterEq:
		return term.NewArith(term.OpGreaterEq, x, y)
	case ast.OpEq:
		return term.NewEquals(x, y)
	case ast.OpNeq:
		return term.NewNot(term.NewEquals(x, y))
	case ast.OpAnd:
		return term.NewAnd(x, y)
	case ast.OpOr:
		return term.NewOr(x, y)
	case ast.OpImplies:
		return term.NewImplies(x, y)
	case ast.OpPermAdd:
		return term.NewPermBinOp(term.PermPlus, x, y)
	case ast.OpPermSub:
		return term.NewPermBinOp(term.PermMinus, x, y)
	case ast.OpPermMul:
		return term.NewPermBinOp(term.PermTimes, x, y)
	case ast.OpPermMin:
		return term.NewPermBinOp(term.PermMin, x, y)
	default:
		panic(fmt.Sprintf("translate: binOp: unhandled operator %v", e.Op))
	}
}

func unOp(env Env, e *ast.UnOp) term.Term {
	x := Expr(env, e.X)
	switch e.Op {
	case ast.OpNot:
		return term.NewNot(x)
	case ast.OpNeg:
		return term.NewArith(term.OpSub, term.IntLit(0), x)
	default:
		panic(fmt.Sprintf("translate: unOp: unhandled operator %v", e.Op))
	}
}

func quantification(env Env, e *ast.Quantification) term.Term {
	bound := make([]*term.Var, len(e.Bound))
	nested := env
	for i, bv := range e.Bound {
		v := term.NewVar(bv.Name, Sort(bv.Type))
		bound[i] = v
		nested = withBinding(nested, bv.Name, v)
	}
	body := Expr(nested, e.Body)
	triggers := make([]term.Trigger, len(e.Triggers))
	for i, trig := range e.Triggers {
		terms := make([]term.Term, len(trig))
		for j, te := range trig {
			terms[j] = Expr(nested, te)
		}
		triggers[i] = term.Trigger{Terms: terms}
	}
	switch e.Kind {
	case ast.Forall:
		return term.NewForall(bound, body, triggers, "")
	case ast.Exists:
		return term.NewExists(bound, body, triggers, "")
	default:
		panic(fmt.Sprintf("translate: quantification: unhandled kind %v", e.Kind))
	}
}

func seqOp(env Env, e *ast.SeqExpr) term.Term {
	args := make([]term.Term, len(e.Args))
	for i, a := range e.Args {
		args[i] = Expr(env, a)
	}
	elem := Sort(e.Elem)
	switch e.Op {
	case ast.SeqEmpty:
		return term.NewSeqOp(term.SeqEmpty, elem, args...)
	case ast.SeqSingleton:
		return term.NewSeqOp(term.SeqSingleton, elem, args...)
	case ast.SeqAppend:
		return term.NewSeqOp(term.SeqAppend, elem, args...)
	case ast.SeqLength:
		return term.NewSeqOp(term.SeqLength, elem, args...)
	case ast.SeqIndex:
		return term.NewSeqOp(term.SeqIndex, elem, args...)
	case ast.SeqTake:
		return term.NewSeqOp(term.SeqTake, elem, args...)
	case ast.SeqDrop:
		return term.NewSeqOp(term.SeqDrop, elem, args...)
	case ast.SeqIn:
		return term.NewSeqOp(term.SeqIn, elem, args...)
	case ast.SeqUpdate:
		return term.NewSeqOp(term.SeqUpdate, elem, args...)
	default:
		panic(fmt.Sprintf("translate: seqOp: unhandled operator %v", e.Op))
	}
}

func setOp(env Env, e *ast.SetExpr) term.Term {
	args := make([]term.Term, len(e.Args))
	for i, a := range e.Args {
		args[i] = Expr(env, a)
	}
	return term.NewSetOp(setOpKind(e.Op), Sort(e.Elem), args...)
}

func multisetOp(env Env, e *ast.MultisetExpr) term.Term {
	args := make([]term.Term, len(e.Args))
	for i, a := range e.Args {
		args[i] = Expr(env, a)
	}
	return term.NewMultisetOp(multisetOpKind(e.Op), Sort(e.Elem), args...)
}

func setOpKind(k ast.SetOpKind) term.SetOpKind {
	switch k {
	case ast.SetEmpty:
		return term.SetEmpty
	case ast.SetSingleton:
		return term.SetSingleton
	case ast.SetUnion:
		return term.SetUnion
	case ast.SetIntersection:
		return term.SetIntersection
	case ast.SetDifference:
		return term.SetDifference
	case ast.SetIn:
		return term.SetIn
	case ast.SetSubset:
		return term.SetSubset
	case ast.SetCard:
		return term.SetCard
	default:
		panic(fmt.Sprintf("translate: setOpKind: unhandled operator %v", k))
	}
}

func multisetOpKind(k ast.SetOpKind) term.MultisetOpKind {
	switch k {
	case ast.SetEmpty:
		return term.MultisetEmpty
	case ast.SetSingleton:
		return term.MultisetSingleton
	case ast.SetUnion:
		return term.MultisetUnion
	case ast.SetCard:
		return term.MultisetCard
	default:
		panic(fmt.Sprintf("translate: multisetOpKind: unhandled operator %v", k))
	}
}
