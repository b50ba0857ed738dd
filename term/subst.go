package term

// Substitute performs the capture-avoiding substitution t[x := u]. Bound
// variables of nested Quantification/Let nodes shadow x and stop the
// substitution from descending into their body when their bound names
// collide with x, mirroring the discipline glee's expression rewriting
// helpers use when walking nested expressions.
func Substitute(t Term, x *Var, u Term) Term {
	if t == nil {
		return nil
	}
	switch t := t.(type) {
	case *Lit:
		return t
	case *Var:
		if t.Name == x.Name {
			return u
		}
		return t
	case *Not:
		return NewNot(Substitute(t.X, x, u))
	case *And:
		xs := make([]Term, len(t.Xs))
		for i, e := range t.Xs {
			xs[i] = Substitute(e, x, u)
		}
		return NewAnd(xs...)
	case *Or:
		xs := make([]Term, len(t.Xs))
		for i, e := range t.Xs {
			xs[i] = Substitute(e, x, u)
		}
		return NewOr(xs...)
	case *Implies:
		return NewImplies(Substitute(t.Cond, x, u), Substitute(t.Then, x, u))
	case *Ite:
		return NewIte(Substitute(t.Cond, x, u), Substitute(t.Then, x, u), Substitute(t.Else, x, u))
	case *Equals:
		return NewEquals(Substitute(t.X, x, u), Substitute(t.Y, x, u))
	case *Arith:
		return NewArith(t.Op, Substitute(t.X, x, u), Substitute(t.Y, x, u))
	case *PermLit:
		if t.Kind != PermFraction {
			return t
		}
		return FractionPerm(Substitute(t.Numer, x, u), Substitute(t.Denom, x, u))
	case *PermBinOp:
		return NewPermBinOp(t.Op, Substitute(t.X, x, u), Substitute(t.Y, x, u))
	case *IsPositive:
		return NewIsPositive(Substitute(t.P, x, u))
	case *PermLess:
		return NewPermLess(Substitute(t.X, x, u), Substitute(t.Y, x, u))
	case *Quantification:
		if shadows(t.Bound, x.Name) {
			return t
		}
		triggers := make([]Trigger, len(t.Triggers))
		for i, tr := range t.Triggers {
			terms := make([]Term, len(tr.Terms))
			for j, tt := range tr.Terms {
				terms[j] = Substitute(tt, x, u)
			}
			triggers[i] = Trigger{Terms: terms}
		}
		body := Substitute(t.Body, x, u)
		return &Quantification{Kind: t.Kind, Bound: t.Bound, Body: body, Triggers: triggers, ID: t.ID}
	case *FuncApp:
		args := make([]Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = Substitute(a, x, u)
		}
		return NewFuncApp(t.Name, t.Result, args...)
	case *SetOp:
		args := make([]Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = Substitute(a, x, u)
		}
		return NewSetOp(t.Op, t.Elem, args...)
	case *SeqOp:
		args := make([]Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = Substitute(a, x, u)
		}
		return NewSeqOp(t.Op, t.Elem, args...)
	case *MultisetOp:
		args := make([]Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = Substitute(a, x, u)
		}
		return NewMultisetOp(t.Op, t.Elem, args...)
	case *Lookup:
		args := make([]Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = Substitute(a, x, u)
		}
		return NewLookup(Substitute(t.Fn, x, u), t.Result, args...)
	case *Update:
		args := make([]Term, len(t.Args))
		for i, a := range t.Args {
			args[i] = Substitute(a, x, u)
		}
		return NewUpdate(Substitute(t.Fn, x, u), Substitute(t.Value, x, u), args...)
	case *Combine:
		return NewCombine(Substitute(t.Left, x, u), Substitute(t.Right, x, u))
	case *Let:
		value := Substitute(t.Value, x, u)
		if t.Bound.Name == x.Name {
			return NewLet(t.Bound, value, t.Body)
		}
		return NewLet(t.Bound, value, Substitute(t.Body, x, u))
	default:
		panic("term: Substitute: unhandled term kind")
	}
}

func shadows(bound []*Var, name string) bool {
	for _, v := range bound {
		if v.Name == name {
			return true
		}
	}
	return false
}

// ReplaceImplicit rewrites every occurrence of the implicit codomain
// variable ?r (term.ImplicitCodomain) by the given receiver term. This is
// the operation quantified-chunk evaluation performs to turn a
// receiver-parametric permission term into a concrete one: perm[?r := t].
func ReplaceImplicit(t Term, receiver Term) Term {
	return Substitute(t, ImplicitCodomain, receiver)
}

// Visit calls fn for every subterm of t, including t itself, in a
// pre-order traversal. fn returning false prunes descent into that
// subterm's children (but Visit still visits siblings).
func Visit(t Term, fn func(Term) bool) {
	if t == nil || !fn(t) {
		return
	}
	for _, c := range children(t) {
		Visit(c, fn)
	}
}

// Collect returns every subterm of t (including t) for which pred
// returns true. Used e.g. to gather all Quantifications within an
// assertion's translated pure part.
func Collect(t Term, pred func(Term) bool) []Term {
	var out []Term
	Visit(t, func(x Term) bool {
		if pred(x) {
			out = append(out, x)
		}
		return true
	})
	return out
}

func children(t Term) []Term {
	switch t := t.(type) {
	case *Not:
		return []Term{t.X}
	case *And:
		return t.Xs
	case *Or:
		return t.Xs
	case *Implies:
		return []Term{t.Cond, t.Then}
	case *Ite:
		return []Term{t.Cond, t.Then, t.Else}
	case *Equals:
		return []Term{t.X, t.Y}
	case *Arith:
		return []Term{t.X, t.Y}
	case *PermLit:
		if t.Kind == PermFraction {
			return []Term{t.Numer, t.Denom}
		}
		return nil
	case *PermBinOp:
		return []Term{t.X, t.Y}
	case *IsPositive:
		return []Term{t.P}
	case *PermLess:
		return []Term{t.X, t.Y}
	case *Quantification:
		return []Term{t.Body}
	case *FuncApp:
		return t.Args
	case *SetOp:
		return t.Args
	case *SeqOp:
		return t.Args
	case *MultisetOp:
		return t.Args
	case *Lookup:
		out := append([]Term{t.Fn}, t.Args...)
		return out
	case *Update:
		out := append([]Term{t.Fn}, t.Args...)
		return append(out, t.Value)
	case *Combine:
		return []Term{t.Left, t.Right}
	case *Let:
		return []Term{t.Value, t.Body}
	default:
		return nil
	}
}
