// Package eval is the tree-walking evaluator behind the repl and eval
// driver modes: it walks pkg/hir nodes directly and produces
// runtime.Object values using the same ABI types the closure compiler
// targets, so interactive execution needs no clang round trip per
// form. AOT compilation always goes through pkg/codegen instead.
package eval

import (
	"unlisp/pkg/abi"
	"unlisp/pkg/hir"
	"unlisp/pkg/runtime"
)

// Env is a chain of lexical frames mapping a bound name to its value.
// A lambda's body runs in a single flat frame holding free variables
// and parameters together, mirroring the raw function's parameter
// list (free vars ++ params ++ restarg); the parent link exists only
// so top-level evaluation and nested evaluation can share one type.
type Env struct {
	vars   map[string]runtime.Object
	parent *Env
}

// NewEnv creates an empty frame chained to parent (nil for the
// outermost frame).
func NewEnv(parent *Env) *Env {
	return &Env{vars: make(map[string]runtime.Object), parent: parent}
}

// Get looks up name through the frame chain.
func (e *Env) Get(name string) (runtime.Object, bool) {
	for f := e; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return runtime.Object{}, false
}

// Set binds name in this frame.
func (e *Env) Set(name string, v runtime.Object) {
	e.vars[name] = v
}

// Eval evaluates a single HIR node in env and returns the resulting
// Object. Runtime errors (arity, undefined function, type cast)
// propagate through the exception channel; callers install a handler
// with runtime.InstallHandler around each top-level form.
func Eval(n hir.Node, env *Env) runtime.Object {
	switch v := n.(type) {
	case *hir.IntLit:
		return runtime.FromInt(v.Value)
	case *hir.NilLit:
		return runtime.NilObject()
	case *hir.SymbolRef:
		return evalSymbolRef(v, env)
	case *hir.Call:
		return evalCall(v, env)
	case *hir.If:
		return evalIf(v, env)
	case *hir.Def:
		return evalDef(v, env)
	case *hir.Lambda:
		return evalLambda(v, env)
	default:
		panic("eval: unhandled hir node")
	}
}

// EvalAll evaluates every node in order as one top-level sequence and
// returns the last one's value. An empty sequence evaluates to nil.
func EvalAll(nodes []hir.Node, env *Env) runtime.Object {
	result := runtime.NilObject()
	for _, n := range nodes {
		result = Eval(n, env)
	}
	return result
}

// evalSymbolRef resolves a bound local directly out of env; anything
// else is a global function reference resolved through the symbol
// table, the same resolution order compiled code uses.
func evalSymbolRef(v *hir.SymbolRef, env *Env) runtime.Object {
	if val, ok := env.Get(v.Name); ok {
		return val
	}
	fn := runtime.LookupFunction(runtime.Intern(v.Name))
	if fn == nil {
		runtime.RaiseUndefFnError(v.Name)
	}
	return runtime.FromFunction(fn)
}

// evalCall evaluates the callee to a Function-kind Object, evaluates
// each argument, checks arity against the resolved descriptor, and
// invokes through its invoke entry point.
func evalCall(v *hir.Call, env *Env) runtime.Object {
	callee := Eval(v.Callee, env)
	fn := runtime.UnpackFunction(callee)

	args := make([]runtime.Object, len(v.Args))
	for i, a := range v.Args {
		args[i] = Eval(a, env)
	}

	if !runtime.CheckArity(fn, uint64(len(args))) {
		runtime.RaiseArityError(fn.Name, int(fn.ArgCount), len(args))
	}
	return fn.InvokeFptr(args...)
}

// evalIf evaluates cond and branches; any non-nil object is truthy,
// false only for an empty list.
func evalIf(v *hir.If, env *Env) runtime.Object {
	cond := Eval(v.Cond, env)
	if !runtime.IsNil(cond) {
		return Eval(v.Then, env)
	}
	return Eval(v.Else, env)
}

// evalDef evaluates expr and binds it under name in the process-wide
// symbol table.
func evalDef(v *hir.Def, env *Env) runtime.Object {
	val := Eval(v.Value, env)
	runtime.Bind(runtime.Intern(v.Name), runtime.UnpackFunction(val))
	return val
}

// evalLambda materializes a closure: capture l.FreeVars's current
// values, in the builder's fixed first-occurrence order, into a
// snapshot slice, then build a FunctionDescriptor whose
// InvokeFptr/ApplyFptr feed that snapshot to the body. Captured
// values come from the environment active at creation, regardless of
// later mutation to the enclosing frame.
func evalLambda(l *hir.Lambda, env *Env) runtime.Object {
	captured := make([]runtime.Object, len(l.FreeVars))
	for i, fv := range l.FreeVars {
		val, ok := env.Get(fv)
		if !ok {
			panic("eval: free variable " + fv + " unbound at closure creation")
		}
		captured[i] = val
	}

	name := l.Name
	if name == "" {
		name = "lambda"
	}

	descr := &runtime.FunctionDescriptor{
		Kind:       abi.FunctionKindClosure,
		Name:       name,
		Arglist:    append([]string(nil), l.Params...),
		ArgCount:   uint64(len(l.Params)),
		HasRestarg: l.Rest != "",
		FreeVars:   captured,
	}
	descr.InvokeFptr = func(args ...runtime.Object) runtime.Object {
		return callLambda(l, descr.FreeVars, args)
	}
	descr.ApplyFptr = func(args *runtime.List) runtime.Object {
		return callLambda(l, descr.FreeVars, runtime.ListToSlice(args))
	}

	return runtime.FromFunction(descr)
}

// callLambda builds the flat frame (free vars, then positional
// params, then the gathered rest list if any -- exactly the raw
// function's parameter order) and evaluates the body in it.
func callLambda(l *hir.Lambda, captured, args []runtime.Object) runtime.Object {
	frame := NewEnv(nil)
	for i, fv := range l.FreeVars {
		frame.Set(fv, captured[i])
	}
	for i, p := range l.Params {
		frame.Set(p, args[i])
	}
	if l.Rest != "" {
		frame.Set(l.Rest, runtime.FromList(runtime.SliceToList(args[len(l.Params):])))
	}
	return EvalAll(l.Body, frame)
}
