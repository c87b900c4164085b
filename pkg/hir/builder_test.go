package hir

import (
	"testing"

	"unlisp/pkg/lexer"
	"unlisp/pkg/reader"
)

func buildOne(t *testing.T, src string) Node {
	t.Helper()
	forms, err := reader.ReadAll(lexer.NewLexer(src))
	if err != nil {
		t.Fatalf("unexpected syntax error: %s", err.Error())
	}
	nodes, buildErr := BuildHIRs(forms)
	if buildErr != nil {
		t.Fatalf("unexpected build error: %s", buildErr.Error())
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	return nodes[0]
}

func TestBuildIntLit(t *testing.T) {
	n, ok := buildOne(t, "42").(*IntLit)
	if !ok || n.Value != 42 {
		t.Fatalf("got %#v", n)
	}
}

func TestBuildNilLit(t *testing.T) {
	if _, ok := buildOne(t, "()").(*NilLit); !ok {
		t.Fatalf("expected NilLit")
	}
	if _, ok := buildOne(t, "nil").(*NilLit); !ok {
		t.Fatalf("expected NilLit for nil symbol")
	}
}

func TestBuildCall(t *testing.T) {
	n, ok := buildOne(t, "(+ 1 2)").(*Call)
	if !ok {
		t.Fatalf("expected Call, got %#v", n)
	}
	callee, ok := n.Callee.(*SymbolRef)
	if !ok || callee.Name != "+" {
		t.Fatalf("expected callee SymbolRef{+}, got %#v", n.Callee)
	}
	if len(n.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(n.Args))
	}
}

func TestBuildIf(t *testing.T) {
	n, ok := buildOne(t, "(if 1 2 3)").(*If)
	if !ok {
		t.Fatalf("expected If, got %#v", n)
	}
	if _, ok := n.Cond.(*IntLit); !ok {
		t.Fatalf("expected IntLit cond")
	}
	if _, ok := n.Else.(*IntLit); !ok {
		t.Fatalf("expected IntLit else")
	}
}

func TestBuildIfWithoutElseDefaultsToNil(t *testing.T) {
	n := buildOne(t, "(if 1 2)").(*If)
	if _, ok := n.Else.(*NilLit); !ok {
		t.Fatalf("expected default else to be NilLit, got %#v", n.Else)
	}
}

func TestBuildDef(t *testing.T) {
	n, ok := buildOne(t, "(def square (lambda (x) (* x x)))").(*Def)
	if !ok || n.Name != "square" {
		t.Fatalf("got %#v", n)
	}
	if _, ok := n.Value.(*Lambda); !ok {
		t.Fatalf("expected lambda value, got %#v", n.Value)
	}
}

func TestBuildLambdaNoFreeVars(t *testing.T) {
	n := buildOne(t, "(lambda (x y) (+ x y))").(*Lambda)
	if len(n.Params) != 2 || n.Params[0] != "x" || n.Params[1] != "y" {
		t.Fatalf("unexpected params: %#v", n.Params)
	}
	if n.Rest != "" {
		t.Fatalf("expected no rest param, got %q", n.Rest)
	}
	if len(n.FreeVars) != 0 {
		t.Fatalf("expected no free vars, got %#v", n.FreeVars)
	}
}

func TestBuildLambdaWithRest(t *testing.T) {
	n := buildOne(t, "(lambda (x &rest ys) x)").(*Lambda)
	if len(n.Params) != 1 || n.Params[0] != "x" {
		t.Fatalf("unexpected params: %#v", n.Params)
	}
	if n.Rest != "ys" {
		t.Fatalf("expected rest param ys, got %q", n.Rest)
	}
}

func TestBuildLambdaCapturesFreeVar(t *testing.T) {
	// The inner lambda reads `x`, bound by the outer lambda, not by
	// itself: `x` must show up as a free variable of the inner lambda
	// but not of the outer one.
	outer := buildOne(t, "(lambda (x) (lambda (y) (+ x y)))").(*Lambda)
	if len(outer.FreeVars) != 0 {
		t.Fatalf("expected outer lambda to have no free vars, got %#v", outer.FreeVars)
	}
	inner, ok := outer.Body[0].(*Lambda)
	if !ok {
		t.Fatalf("expected inner lambda, got %#v", outer.Body[0])
	}
	if len(inner.FreeVars) != 1 || inner.FreeVars[0] != "x" {
		t.Fatalf("expected inner free vars [x], got %#v", inner.FreeVars)
	}
}

func TestBuildLambdaPropagatesFreeVarThroughTwoLevels(t *testing.T) {
	// z is bound by the outermost lambda; the innermost lambda reads
	// it, so it must propagate as a free variable of the MIDDLE lambda
	// too, even though the middle lambda never mentions z itself.
	outer := buildOne(t, "(lambda (z) (lambda (x) (lambda (y) (+ x (+ y z)))))").(*Lambda)
	middle := outer.Body[0].(*Lambda)
	if len(middle.FreeVars) != 1 || middle.FreeVars[0] != "z" {
		t.Fatalf("expected middle free vars [z], got %#v", middle.FreeVars)
	}
	inner := middle.Body[0].(*Lambda)
	if len(inner.FreeVars) != 2 {
		t.Fatalf("expected inner to capture both x and z, got %#v", inner.FreeVars)
	}
}

func TestBuildLambdaGlobalReferenceIsNotFreeVar(t *testing.T) {
	// `+` is never bound by any enclosing lambda; it resolves through
	// the symbol table at call time and must not appear as a capture.
	n := buildOne(t, "(lambda (x) (+ x 1))").(*Lambda)
	if len(n.FreeVars) != 0 {
		t.Fatalf("expected no free vars (global + is not captured), got %#v", n.FreeVars)
	}
}

func TestBuildIfRequiresTwoOrThreeArgs(t *testing.T) {
	_, err := BuildHIRs(mustRead(t, "(if 1)"))
	if err == nil {
		t.Fatalf("expected error for (if 1)")
	}
}

func mustRead(t *testing.T, src string) []reader.Form {
	t.Helper()
	forms, err := reader.ReadAll(lexer.NewLexer(src))
	if err != nil {
		t.Fatalf("unexpected syntax error: %s", err.Error())
	}
	return forms
}
