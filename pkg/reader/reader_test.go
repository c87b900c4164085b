package reader

import (
	"testing"

	"unlisp/pkg/lexer"
)

func readString(t *testing.T, src string) []Form {
	t.Helper()
	forms, err := ReadAll(lexer.NewLexer(src))
	if err != nil {
		t.Fatalf("unexpected syntax error: %s", err.Error())
	}
	return forms
}

func TestReadAtoms(t *testing.T) {
	forms := readString(t, `42 -7 foo`)
	if len(forms) != 3 {
		t.Fatalf("expected 3 forms, got %d", len(forms))
	}
	if i, ok := forms[0].(*IntForm); !ok || i.Value != 42 {
		t.Fatalf("forms[0] = %#v, want IntForm{42}", forms[0])
	}
	if i, ok := forms[1].(*IntForm); !ok || i.Value != -7 {
		t.Fatalf("forms[1] = %#v, want IntForm{-7}", forms[1])
	}
	if s, ok := forms[2].(*SymbolForm); !ok || s.Name != "foo" {
		t.Fatalf("forms[2] = %#v, want SymbolForm{foo}", forms[2])
	}
}

func TestReadNestedList(t *testing.T) {
	forms := readString(t, `(+ 1 (- 2 3))`)
	list, ok := forms[0].(*ListForm)
	if !ok || len(list.Elements) != 3 {
		t.Fatalf("expected 3-element list, got %#v", forms[0])
	}
	inner, ok := list.Elements[2].(*ListForm)
	if !ok || len(inner.Elements) != 3 {
		t.Fatalf("expected nested 3-element list, got %#v", list.Elements[2])
	}
}

func TestEmptyListIsNil(t *testing.T) {
	forms := readString(t, `()`)
	list, ok := forms[0].(*ListForm)
	if !ok || !list.IsNil() {
		t.Fatalf("expected empty ListForm, got %#v", forms[0])
	}
}

func TestNilSymbolReadsAsEmptyList(t *testing.T) {
	forms := readString(t, `(cons 1 (cons 2 nil))`)
	list, ok := forms[0].(*ListForm)
	if !ok || len(list.Elements) != 3 {
		t.Fatalf("expected 3-element list, got %#v", forms[0])
	}
	inner, ok := list.Elements[2].(*ListForm)
	if !ok || len(inner.Elements) != 3 {
		t.Fatalf("expected nested cons, got %#v", list.Elements[2])
	}
	nilForm, ok := inner.Elements[2].(*ListForm)
	if !ok || !nilForm.IsNil() {
		t.Fatalf("expected trailing 'nil' to read as an empty ListForm, got %#v", inner.Elements[2])
	}
}

func TestUnterminatedListIsSyntaxError(t *testing.T) {
	_, err := ReadAll(lexer.NewLexer(`(+ 1 2`))
	if err == nil {
		t.Fatalf("expected syntax error for unterminated list")
	}
}

func TestUnexpectedCloseParenIsSyntaxError(t *testing.T) {
	_, err := ReadAll(lexer.NewLexer(`)`))
	if err == nil {
		t.Fatalf("expected syntax error for stray ')'")
	}
}
