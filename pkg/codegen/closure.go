package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"unlisp/pkg/abi"
	"unlisp/pkg/hir"
)

// env maps a name visible in the current function body to the SSA
// value holding it: a raw function's own parameter, or a value loaded
// from a free-variable slot at function entry.
type env map[string]value.Value

// compiledLambda is everything call-site materialization needs about
// a lambda compiled by compileLambda: its free-variable names in the
// order the descriptor's capture slots expect them, the per-closure
// descriptor struct type, and the trampolines a heap descriptor's
// invoke_fptr/apply_fptr fields point at.
type compiledLambda struct {
	name           string
	freeVars       []string
	descriptorType *types.StructType
	raw            *ir.Func
	invoke         *ir.Func
	apply          *ir.Func
	paramCount     int
	hasRestarg     bool
}

// compileLambda runs the three function-emitting stages for one
// lambda: the raw function over (free vars ++ params ++ optional
// restarg), the per-closure descriptor type (via Types.withFreeVars),
// and the invoke/apply trampolines that load free variables out of a
// heap descriptor and delegate to the raw function. The final stage
// (heap-allocating and populating a concrete descriptor at a
// capturing call site) is a property of the ENCLOSING function's
// body, not of the lambda itself, so it lives in compileExpr's Lambda
// case instead.
func (c *Context) compileLambda(l *hir.Lambda) *compiledLambda {
	name := l.Name
	if name == "" {
		name = c.nextClosureName()
	}

	descriptorType := c.Types.withFreeVars(c.Module, name, len(l.FreeVars))
	raw := c.compileRawFunction(name, l)

	return &compiledLambda{
		name:           name,
		freeVars:       l.FreeVars,
		descriptorType: descriptorType,
		raw:            raw,
		invoke:         c.compileInvokeTrampoline(name, l, raw, descriptorType),
		apply:          c.compileApplyTrampoline(name, descriptorType),
		paramCount:     len(l.Params),
		hasRestarg:     l.Rest != "",
	}
}

// compileRawFunction emits the raw function: a function over exactly
// freeVars ++ params ++ (restarg list, if any), all Object-typed, with
// no notion of a descriptor at all. It is the only place the lambda's
// body is actually lowered to instructions.
func (c *Context) compileRawFunction(name string, l *hir.Lambda) *ir.Func {
	object := c.Types.Object

	var params []*ir.Param
	for _, fv := range l.FreeVars {
		params = append(params, ir.NewParam("fv."+fv, object))
	}
	for _, p := range l.Params {
		params = append(params, ir.NewParam(p, object))
	}
	if l.Rest != "" {
		params = append(params, ir.NewParam(l.Rest, object))
	}

	raw := c.Module.NewFunc(name+".raw", object, params...)
	entry := raw.NewBlock("entry")

	e := env{}
	for i, fv := range l.FreeVars {
		e[fv] = raw.Params[i]
	}
	for i, p := range l.Params {
		e[p] = raw.Params[len(l.FreeVars)+i]
	}
	if l.Rest != "" {
		e[l.Rest] = raw.Params[len(l.FreeVars)+len(l.Params)]
	}

	fc := &funcCompiler{ctx: c, fn: raw, block: entry, env: e}
	var last value.Value = fc.compileNil()
	for _, n := range l.Body {
		last = fc.compileExpr(n)
	}
	fc.block.NewRet(last)
	return raw
}

// compileInvokeTrampoline emits the invoke entry point
// (abi.FieldInvokeFptr), one fixed positional signature per lambda:
// (descriptor-ptr, arg_1, ..., arg_n, restarg?) -> Object, every
// argument an Object by value and the rest argument (when present) an
// already-gathered list. The body loads each free-variable slot out
// of the descriptor in capture order and forwards captures followed
// by the explicit parameters to the raw function.
func (c *Context) compileInvokeTrampoline(name string, l *hir.Lambda, raw *ir.Func, descriptorType *types.StructType) *ir.Func {
	object := c.Types.Object
	descrPtrType := types.NewPointer(descriptorType)

	params := []*ir.Param{ir.NewParam("descr", descrPtrType)}
	for _, p := range l.Params {
		params = append(params, ir.NewParam(p, object))
	}
	if l.Rest != "" {
		params = append(params, ir.NewParam(l.Rest, object))
	}
	fn := c.Module.NewFunc(name+".invoke", object, params...)
	entry := fn.NewBlock("entry")

	descr := fn.Params[0]
	var callArgs []value.Value
	for i := range l.FreeVars {
		slot := entry.NewGetElementPtr(descriptorType, descr,
			constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(abi.BaseFieldCount+i)))
		callArgs = append(callArgs, entry.NewLoad(object, slot))
	}
	for _, p := range fn.Params[1:] {
		callArgs = append(callArgs, p)
	}
	result := entry.NewCall(raw, callArgs...)
	entry.NewRet(result)
	return fn
}

// compileApplyTrampoline emits the "apply a list of arguments" entry
// point (abi.FieldApplyFptr): (descriptor-ptr, list) -> Object.
// Unpacking a runtime-length list into positional arguments is the
// same marshalling the runtime's apply helper already performs for
// built-ins, so the trampoline delegates to it; the helper reads
// arg_count and has_restarg out of the descriptor prefix, validates
// arity, gathers any overflow into the rest list, and re-enters the
// invoke trampoline positionally.
func (c *Context) compileApplyTrampoline(name string, descriptorType *types.StructType) *ir.Func {
	object := c.Types.Object
	descrPtrType := types.NewPointer(descriptorType)

	descrParam := ir.NewParam("descr", descrPtrType)
	listParam := ir.NewParam("args", object)
	fn := c.Module.NewFunc(name+".apply", object, descrParam, listParam)
	entry := fn.NewBlock("entry")

	generic := entry.NewBitCast(descrParam, types.NewPointer(c.Types.FunctionDescriptor))
	result := entry.NewCall(c.Runtime.ApplyViaList, generic, listParam)
	entry.NewRet(result)
	return fn
}
