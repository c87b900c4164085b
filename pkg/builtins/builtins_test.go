package builtins

import (
	"testing"

	"unlisp/pkg/runtime"
)

func TestMain_Install(t *testing.T) {
	Install()
}

func lookup(t *testing.T, name string) *runtime.FunctionDescriptor {
	t.Helper()
	fn := runtime.LookupFunction(runtime.Intern(name))
	if fn == nil {
		t.Fatalf("builtin %q not installed", name)
	}
	return fn
}

func TestAdd(t *testing.T) {
	Install()
	fn := lookup(t, "+")
	got := fn.InvokeFptr(runtime.FromInt(1), runtime.FromInt(2), runtime.FromInt(3))
	if runtime.UnpackInt(got) != 6 {
		t.Fatalf("got %v", got)
	}
	if runtime.UnpackInt(fn.InvokeFptr()) != 0 {
		t.Fatalf("expected 0 for no args")
	}
}

func TestSub(t *testing.T) {
	Install()
	fn := lookup(t, "-")
	if runtime.UnpackInt(fn.InvokeFptr(runtime.FromInt(5))) != -5 {
		t.Fatalf("expected negation with one arg")
	}
	if runtime.UnpackInt(fn.InvokeFptr(runtime.FromInt(10), runtime.FromInt(3), runtime.FromInt(2))) != 5 {
		t.Fatalf("expected 10-3-2=5")
	}
}

func TestEqual(t *testing.T) {
	Install()
	fn := lookup(t, "equal")
	got := fn.InvokeFptr(runtime.FromInt(7), runtime.FromInt(7))
	if runtime.UnpackInt(got) != 7 {
		t.Fatalf("expected equal ints to return x, got %v", got)
	}
	got = fn.InvokeFptr(runtime.FromInt(7), runtime.FromInt(8))
	if !runtime.IsNil(got) {
		t.Fatalf("expected unequal ints to return nil, got %v", got)
	}
}

func TestConsFirstRest(t *testing.T) {
	Install()
	cons := lookup(t, "cons")
	first := lookup(t, "first")
	rest := lookup(t, "rest")

	l := cons.InvokeFptr(runtime.FromInt(1), cons.InvokeFptr(runtime.FromInt(2), runtime.NilObject()))
	if runtime.UnpackInt(first.InvokeFptr(l)) != 1 {
		t.Fatalf("expected first = 1")
	}
	tail := rest.InvokeFptr(l)
	if runtime.UnpackInt(first.InvokeFptr(tail)) != 2 {
		t.Fatalf("expected second element = 2")
	}
	if !runtime.IsNil(rest.InvokeFptr(tail)) {
		t.Fatalf("expected rest of single-element list to be nil")
	}
}

func TestFirstOnEmptyListRaises(t *testing.T) {
	Install()
	first := lookup(t, "first")
	_, msg, ok := runtime.InstallHandler(func() runtime.Object {
		return first.InvokeFptr(runtime.NilObject())
	})
	if ok {
		t.Fatalf("expected first on empty list to raise")
	}
	if msg != "cannot do first on empty list" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestSetFnAndSymbolFunction(t *testing.T) {
	Install()
	setFn := lookup(t, "set-fn")
	symFn := lookup(t, "symbol-function")

	target := runtime.Intern("my-fn")
	descriptor := &runtime.FunctionDescriptor{Name: "my-fn"}
	setFn.InvokeFptr(runtime.FromSymbol(target), runtime.FromFunction(descriptor))

	got := symFn.InvokeFptr(runtime.FromSymbol(target))
	if runtime.UnpackFunction(got) != descriptor {
		t.Fatalf("expected symbol-function to return the bound descriptor")
	}
}

func TestSymbolFunctionUnboundRaises(t *testing.T) {
	Install()
	symFn := lookup(t, "symbol-function")
	sym := runtime.Intern("never-bound-xyz")
	_, msg, ok := runtime.InstallHandler(func() runtime.Object {
		return symFn.InvokeFptr(runtime.FromSymbol(sym))
	})
	if ok {
		t.Fatalf("expected raise for unbound symbol")
	}
	if msg != "undefined function never-bound-xyz" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestSetMacroMarksDescriptor(t *testing.T) {
	Install()
	setMacro := lookup(t, "set-macro")
	descriptor := &runtime.FunctionDescriptor{Name: "m"}
	setMacro.InvokeFptr(runtime.FromFunction(descriptor))
	if !descriptor.IsMacro {
		t.Fatalf("expected set-macro to mark IsMacro")
	}
}

func TestApplyFlattensTrailingListAndChecksArity(t *testing.T) {
	Install()
	apply := lookup(t, "apply")
	add := lookup(t, "+")

	trailing := runtime.SliceToList([]runtime.Object{runtime.FromInt(2), runtime.FromInt(3)})
	got := apply.InvokeFptr(runtime.FromFunction(add), runtime.FromInt(1), runtime.FromList(trailing))
	if runtime.UnpackInt(got) != 6 {
		t.Fatalf("expected apply to flatten args to (+ 1 2 3) = 6, got %v", got)
	}
}

func TestApplyArityMismatchRaises(t *testing.T) {
	Install()
	apply := lookup(t, "apply")
	sub := lookup(t, "-") // requires at least 1 arg

	_, msg, ok := runtime.InstallHandler(func() runtime.Object {
		return apply.InvokeFptr(runtime.FromFunction(sub), runtime.FromList(&runtime.List{}))
	})
	if ok {
		t.Fatalf("expected arity error")
	}
	if msg == "" {
		t.Fatalf("expected a message")
	}
}
