package ast_test

import (
	"testing"

	"github.com/WissenIstNacht/silicon/ast"
)

func TestDecodeProgram_FieldsPredicatesAndTrivialMethod(t *testing.T) {
	doc := []byte(`{
		"fields": [{"name": "f", "type": "int"}],
		"predicates": [{
			"name": "P",
			"params": [{"name": "x", "type": "ref"}],
			"body": {"kind": "acc-field", "recv": {"kind": "var", "name": "x"}, "field": "f", "perm": {"kind": "fullperm"}}
		}],
		"methods": [{
			"name": "m",
			"params": [{"name": "x", "type": "ref"}],
			"result": {"name": "r", "type": "int"},
			"preconds": [{"kind": "expr", "x": {"kind": "bool", "bool": true}}],
			"postconds": [],
			"body": []
		}]
	}`)

	p, err := ast.DecodeProgram(doc)
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}
	if len(p.Fields) != 1 || p.Fields[0].Name != "f" || p.Fields[0].Type != ast.TypeInt {
		t.Fatalf("fields = %+v", p.Fields)
	}
	if len(p.Predicates) != 1 || p.Predicates[0].Name != "P" {
		t.Fatalf("predicates = %+v", p.Predicates)
	}
	fap, ok := p.Predicates[0].Body.(*ast.FieldAccessPredicate)
	if !ok {
		t.Fatalf("predicate body = %T, want *FieldAccessPredicate", p.Predicates[0].Body)
	}
	if fap.Field != "f" {
		t.Fatalf("predicate body field = %q, want f", fap.Field)
	}
	if len(p.Methods) != 1 {
		t.Fatalf("methods = %+v", p.Methods)
	}
	m := p.Methods[0]
	if m.Name != "m" || m.Result == nil || m.Result.Name != "r" || m.Result.Type != ast.TypeInt {
		t.Fatalf("method = %+v", m)
	}
	if len(m.Preconds) != 1 {
		t.Fatalf("preconds = %+v", m.Preconds)
	}
}

func TestDecodeProgram_ArithmeticAndComparisonExpr(t *testing.T) {
	doc := []byte(`{"methods": [{
		"name": "arith",
		"postconds": [{
			"kind": "expr",
			"x": {
				"kind": "binop", "op": "==",
				"x": {"kind": "binop", "op": "+", "x": {"kind": "int", "value": 1}, "y": {"kind": "int", "value": 2}},
				"y": {"kind": "int", "value": 3}
			}
		}]
	}]}`)

	p, err := ast.DecodeProgram(doc)
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}
	ea, ok := p.Methods[0].Postconds[0].(*ast.ExprAssertion)
	if !ok {
		t.Fatalf("postcond = %T, want *ExprAssertion", p.Methods[0].Postconds[0])
	}
	eq, ok := ea.X.(*ast.BinOp)
	if !ok || eq.Op != ast.OpEq {
		t.Fatalf("expr = %+v, want top-level OpEq BinOp", ea.X)
	}
	sum, ok := eq.X.(*ast.BinOp)
	if !ok || sum.Op != ast.OpAdd {
		t.Fatalf("lhs = %+v, want OpAdd BinOp", eq.X)
	}
}

func TestDecodeProgram_QuantifiedFieldPermission(t *testing.T) {
	doc := []byte(`{"fields": [{"name": "f", "type": "int"}], "methods": [{
		"name": "qp",
		"params": [{"name": "xs", "type": "set"}],
		"preconds": [{
			"kind": "qp",
			"bound": {"name": "x", "type": "ref"},
			"cond": {"kind": "bool", "bool": true},
			"receiver": {"kind": "var", "name": "x"},
			"field": "f",
			"perm": {"kind": "fullperm"},
			"triggers": [[{"kind": "field", "recv": {"kind": "var", "name": "x"}, "field": "f"}]]
		}]
	}]}`)

	p, err := ast.DecodeProgram(doc)
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}
	qpa, ok := p.Methods[0].Preconds[0].(*ast.QuantifiedPermissionAssertion)
	if !ok {
		t.Fatalf("precond = %T, want *QuantifiedPermissionAssertion", p.Methods[0].Preconds[0])
	}
	if qpa.Bound.Name != "x" || qpa.Field != "f" || qpa.Predicate != "" {
		t.Fatalf("qpa = %+v", qpa)
	}
	if len(qpa.Triggers) != 1 || len(qpa.Triggers[0]) != 1 {
		t.Fatalf("triggers = %+v", qpa.Triggers)
	}
}

func TestDecodeProgram_QuantifiedPredicatePermission(t *testing.T) {
	doc := []byte(`{"predicates": [{"name": "P", "params": [{"name": "x", "type": "ref"}]}], "methods": [{
		"name": "qpp",
		"preconds": [{
			"kind": "qp",
			"bound": {"name": "x", "type": "ref"},
			"cond": {"kind": "bool", "bool": true},
			"predicate": "P",
			"args": [{"kind": "var", "name": "x"}],
			"perm": {"kind": "fullperm"}
		}]
	}]}`)

	p, err := ast.DecodeProgram(doc)
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}
	qpa, ok := p.Methods[0].Preconds[0].(*ast.QuantifiedPermissionAssertion)
	if !ok {
		t.Fatalf("precond = %T, want *QuantifiedPermissionAssertion", p.Methods[0].Preconds[0])
	}
	if qpa.Predicate != "P" || qpa.Field != "" || len(qpa.Args) != 1 {
		t.Fatalf("qpa = %+v", qpa)
	}
}

func TestDecodeProgram_ControlFlowStatements(t *testing.T) {
	doc := []byte(`{"fields": [{"name": "f", "type": "int"}], "predicates": [{"name": "P", "params": [{"name": "x", "type": "ref"}]}], "methods": [{
		"name": "s",
		"params": [{"name": "x", "type": "ref"}],
		"body": [
			{"kind": "if",
			 "cond": {"kind": "bool", "bool": true},
			 "thenStmts": [{"kind": "assert", "x": {"kind": "expr", "x": {"kind": "bool", "bool": true}}}],
			 "elseStmts": []},
			{"kind": "while",
			 "cond": {"kind": "bool", "bool": false},
			 "invariants": [{"kind": "expr", "x": {"kind": "bool", "bool": true}}],
			 "stmts": []},
			{"kind": "fold", "x": {"kind": "acc-pred", "name": "P", "args": [{"kind": "var", "name": "x"}], "perm": {"kind": "fullperm"}}},
			{"kind": "unfold", "x": {"kind": "acc-pred", "name": "P", "args": [{"kind": "var", "name": "x"}], "perm": {"kind": "fullperm"}}},
			{"kind": "call", "method": "other", "args": [{"kind": "var", "name": "x"}], "result": "y"}
		]
	}]}`)

	p, err := ast.DecodeProgram(doc)
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}
	body := p.Methods[0].Body
	if len(body) != 5 {
		t.Fatalf("got %d statements, want 5", len(body))
	}
	ifs, ok := body[0].(*ast.If)
	if !ok || len(ifs.Then) != 1 || len(ifs.Else) != 0 {
		t.Fatalf("stmt 0 = %+v, want If with one then-stmt", body[0])
	}
	wh, ok := body[1].(*ast.While)
	if !ok || len(wh.Invariants) != 1 {
		t.Fatalf("stmt 1 = %+v, want While with one invariant", body[1])
	}
	if _, ok := body[2].(*ast.Fold); !ok {
		t.Fatalf("stmt 2 = %T, want *Fold", body[2])
	}
	if _, ok := body[3].(*ast.Unfold); !ok {
		t.Fatalf("stmt 3 = %T, want *Unfold", body[3])
	}
	call, ok := body[4].(*ast.Call)
	if !ok || call.Method != "other" || call.Result != "y" || len(call.Args) != 1 {
		t.Fatalf("stmt 4 = %+v, want Call(other, [x], y)", body[4])
	}
}

func TestDecodeProgram_UnfoldingExpr(t *testing.T) {
	doc := []byte(`{"predicates": [{"name": "P", "params": [{"name": "x", "type": "ref"}]}], "methods": [{
		"name": "u",
		"params": [{"name": "x", "type": "ref"}],
		"postconds": [{
			"kind": "expr",
			"x": {
				"kind": "unfolding",
				"pred": {"kind": "acc-pred", "name": "P", "args": [{"kind": "var", "name": "x"}], "perm": {"kind": "fullperm"}},
				"body": {"kind": "bool", "bool": true}
			}
		}]
	}]}`)

	p, err := ast.DecodeProgram(doc)
	if err != nil {
		t.Fatalf("DecodeProgram: %v", err)
	}
	ea := p.Methods[0].Postconds[0].(*ast.ExprAssertion)
	uf, ok := ea.X.(*ast.Unfolding)
	if !ok {
		t.Fatalf("expr = %T, want *Unfolding", ea.X)
	}
	if uf.Pred.Name != "P" {
		t.Fatalf("unfolding pred = %+v", uf.Pred)
	}
}

func TestDecodeProgram_UnknownKindIsAnError(t *testing.T) {
	doc := []byte(`{"methods": [{"name": "m", "postconds": [{"kind": "expr", "x": {"kind": "bogus"}}]}]}`)
	if _, err := ast.DecodeProgram(doc); err == nil {
		t.Fatal("expected an error for an unknown expr kind")
	}
}
