// Package builtins implements the predefined native functions, each
// exposing both an invoke entry point (flat arguments) and an apply
// entry point (a single argument list), expressed as Go closures over
// pkg/runtime's Object ABI.
package builtins

import (
	"unlisp/pkg/abi"
	"unlisp/pkg/runtime"
)

// def is one built-in's registration metadata: name, arglist (for
// descriptor introspection and error messages), whether it takes a
// rest argument, and the core logic shared between its invoke and
// apply entry points.
type def struct {
	name       string
	arglist    []string
	hasRestarg bool
	core       func(args []runtime.Object) runtime.Object
}

// Install interns and binds all ten built-ins into the symbol table.
// It runs before the REPL or any file does.
func Install() {
	for _, d := range defs() {
		d := d
		argCount := uint64(len(d.arglist))
		fn := &runtime.FunctionDescriptor{
			Kind:       abi.FunctionKindPlain,
			Name:       d.name,
			Arglist:    d.arglist,
			ArgCount:   argCount,
			HasRestarg: d.hasRestarg,
			InvokeFptr: func(args ...runtime.Object) runtime.Object {
				return d.core(args)
			},
			ApplyFptr: func(args *runtime.List) runtime.Object {
				return d.core(runtime.ListToSlice(args))
			},
		}
		runtime.Bind(runtime.Intern(d.name), fn)
	}
}

func defs() []def {
	return []def{
		{name: "+", arglist: nil, hasRestarg: true, core: nativeAdd},
		{name: "-", arglist: []string{"x"}, hasRestarg: true, core: nativeSub},
		{name: "equal", arglist: []string{"x", "y"}, core: nativeEqual},
		{name: "set-fn", arglist: []string{"sym", "func"}, core: nativeSetFn},
		{name: "symbol-function", arglist: []string{"sym"}, core: nativeSymbolFunction},
		{name: "cons", arglist: []string{"x", "list"}, core: nativeCons},
		{name: "rest", arglist: []string{"list"}, core: nativeRest},
		{name: "first", arglist: []string{"list"}, core: nativeFirst},
		{name: "apply", arglist: []string{"f"}, hasRestarg: true, core: nativeApply},
		{name: "set-macro", arglist: []string{"f"}, core: nativeSetMacro},
	}
}

// nativeAdd: (+ ...) sums every argument as an int, 0 with no
// arguments.
func nativeAdd(args []runtime.Object) runtime.Object {
	var sum int64
	for _, a := range args {
		sum += runtime.UnpackInt(a)
	}
	return runtime.FromInt(sum)
}

// nativeSub: (- x) negates x; (- x y z ...) subtracts every remaining
// argument from x.
func nativeSub(args []runtime.Object) runtime.Object {
	x := runtime.UnpackInt(args[0])
	if len(args) == 1 {
		return runtime.FromInt(-x)
	}
	for _, a := range args[1:] {
		x -= runtime.UnpackInt(a)
	}
	return runtime.FromInt(x)
}

// nativeEqual: (equal x y) returns x if x and y are structurally
// equal, nil otherwise.
func nativeEqual(args []runtime.Object) runtime.Object {
	x, y := args[0], args[1]
	if objectsEqual(x, y) {
		return x
	}
	return runtime.NilObject()
}

func objectsEqual(a, b runtime.Object) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind.String() {
	case "int":
		return runtime.UnpackInt(a) == runtime.UnpackInt(b)
	case "symbol":
		return runtime.UnpackSymbol(a) == runtime.UnpackSymbol(b)
	case "function":
		return runtime.UnpackFunction(a) == runtime.UnpackFunction(b)
	case "list":
		la, lb := runtime.UnpackList(a), runtime.UnpackList(b)
		if la.Length != lb.Length {
			return false
		}
		na, nb := la.Node, lb.Node
		for na != nil {
			if !objectsEqual(*na.Value, *nb.Value) {
				return false
			}
			na, nb = na.Next.Node, nb.Next.Node
		}
		return true
	default:
		return false
	}
}

// nativeSetFn: (set-fn sym func) binds sym's function slot to func.
func nativeSetFn(args []runtime.Object) runtime.Object {
	sym := runtime.UnpackSymbol(args[0])
	fn := runtime.UnpackFunction(args[1])
	runtime.Bind(sym, fn)
	return runtime.NilObject()
}

// nativeSymbolFunction: (symbol-function sym) returns sym's bound
// function, raising an undefined-function error if unbound.
func nativeSymbolFunction(args []runtime.Object) runtime.Object {
	sym := runtime.UnpackSymbol(args[0])
	fn := runtime.LookupFunction(sym)
	if fn == nil {
		runtime.RaiseUndefFnError(sym.Name)
	}
	return runtime.FromFunction(fn)
}

// nativeCons: (cons x list) prepends x onto list.
func nativeCons(args []runtime.Object) runtime.Object {
	x := args[0]
	list := runtime.UnpackList(args[1])
	node := &runtime.ListNode{Value: &x, Next: list}
	return runtime.FromList(&runtime.List{Node: node, Length: list.Length + 1})
}

// nativeRest: (rest list) returns every element but the first; nil on
// an empty list.
func nativeRest(args []runtime.Object) runtime.Object {
	list := runtime.UnpackList(args[0])
	if list.Length == 0 {
		return runtime.NilObject()
	}
	return runtime.FromList(list.Node.Next)
}

// nativeFirst: (first list) returns the head element; raises on an
// empty list.
func nativeFirst(args []runtime.Object) runtime.Object {
	list := runtime.UnpackList(args[0])
	if list.Length == 0 {
		runtime.RaiseError("cannot do first on empty list")
	}
	return *list.Node.Value
}

// nativeApply: (apply f a b ... list) calls f with a, b, ... followed
// by every element of the trailing list, checking arity itself since
// the call site can't know f's arity statically.
func nativeApply(args []runtime.Object) runtime.Object {
	f := runtime.UnpackFunction(args[0])
	rest := args[1:]

	var callArgs []runtime.Object
	if len(rest) == 0 {
		callArgs = nil
	} else {
		trailing := runtime.UnpackList(rest[len(rest)-1])
		callArgs = append(callArgs, rest[:len(rest)-1]...)
		callArgs = append(callArgs, runtime.ListToSlice(trailing)...)
	}

	if !runtime.CheckArity(f, uint64(len(callArgs))) {
		runtime.RaiseArityError(f.Name, int(f.ArgCount), len(callArgs))
	}
	return f.ApplyFptr(runtime.SliceToList(callArgs))
}

// nativeSetMacro: (set-macro f) marks f as a macro.
func nativeSetMacro(args []runtime.Object) runtime.Object {
	f := runtime.UnpackFunction(args[0])
	f.IsMacro = true
	return runtime.NilObject()
}
