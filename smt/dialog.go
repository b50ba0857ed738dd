package smt

import (
	"fmt"
	"strings"

	"github.com/WissenIstNacht/silicon/term"
)

// smtSort renders a term.Sort as an SMT-LIB2 sort expression.
func smtSort(s term.Sort) string {
	switch s {
	case term.Bool:
		return "Bool"
	case term.Int:
		return "Int"
	case term.Ref:
		return "$Ref"
	case term.Perm:
		return "$Perm"
	case term.Snap:
		return "$Snap"
	}
	switch s := s.(type) {
	case term.SeqSort:
		return fmt.Sprintf("$Seq<%s>", smtSort(s.Elem))
	case term.SetSort:
		return fmt.Sprintf("$Set<%s>", smtSort(s.Elem))
	case term.MultisetSort:
		return fmt.Sprintf("$Multiset<%s>", smtSort(s.Elem))
	case term.FVFSort:
		return fmt.Sprintf("$FVF<%s>", smtSort(s.Codomain))
	case term.PSFSort:
		return "$PSF"
	case term.FuncSort:
		args := make([]string, len(s.Args))
		for i, a := range s.Args {
			args[i] = smtSort(a)
		}
		return fmt.Sprintf("(%s) %s", strings.Join(args, " "), smtSort(s.Result))
	default:
		panic(fmt.Sprintf("smt: unrenderable sort %v", s))
	}
}

// declareFun renders a `declare-fun` (or `declare-const` for a zero-ary
// symbol) command.
func declareFun(name string, args []term.Sort, result term.Sort) string {
	if len(args) == 0 {
		return fmt.Sprintf("(declare-const %s %s)", name, smtSort(result))
	}
	argSorts := make([]string, len(args))
	for i, a := range args {
		argSorts[i] = smtSort(a)
	}
	return fmt.Sprintf("(declare-fun %s (%s) %s)", name, strings.Join(argSorts, " "), smtSort(result))
}

// cmdAssert renders `(assert t)`.
func cmdAssert(t term.Term) string { return fmt.Sprintf("(assert %s)", t.String()) }

// cmdPush renders `(push n)`.
func cmdPush(n int) string { return fmt.Sprintf("(push %d)", n) }

// cmdPop renders `(pop n)`.
func cmdPop(n int) string { return fmt.Sprintf("(pop %d)", n) }

// cmdCheckSat renders `(check-sat)` or, with assumptions, `(check-sat a1 a2 ...)`.
func cmdCheckSat(assumptions ...string) string {
	if len(assumptions) == 0 {
		return "(check-sat)"
	}
	return fmt.Sprintf("(check-sat %s)", strings.Join(assumptions, " "))
}

// cmdSetOption renders `(set-option :key value)`.
func cmdSetOption(key, value string) string { return fmt.Sprintf("(set-option :%s %s)", key, value) }

// cmdGetInfo renders `(get-info :key)`.
func cmdGetInfo(key string) string { return fmt.Sprintf("(get-info :%s)", key) }

// cmdComment renders a verbatim log comment line, never sent to the solver.
func cmdComment(s string) string { return "; " + s }

const cmdGetModel = "(get-model)"

// requiredOptions are the SMT-LIB2 solver options spec.md §6 mandates.
var requiredOptions = []struct{ Key, Value string }{
	{"print-success", "true"},
	{"global-declarations", "true"},
	{"smtlib2_compliant", "true"},
}
