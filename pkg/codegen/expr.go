package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"unlisp/pkg/abi"
	"unlisp/pkg/hir"
)

// funcCompiler lowers a lambda or top-level body's HIR nodes into
// instructions appended to the function currently being built.
// block tracks the current insertion point; branches (If) redirect it
// to a join block once both arms are emitted.
type funcCompiler struct {
	ctx       *Context
	fn        *ir.Func
	block     *ir.Block
	env       env
	stringSeq int
}

func (fc *funcCompiler) compileNil() value.Value {
	return fc.block.NewCall(fc.ctx.Runtime.NilObject)
}

// compileExpr lowers one HIR node and returns the Object value it
// produces, possibly after moving fc.block forward (If).
func (fc *funcCompiler) compileExpr(n hir.Node) value.Value {
	switch v := n.(type) {
	case *hir.IntLit:
		return fc.block.NewCall(fc.ctx.Runtime.ObjectFromInt, constant.NewInt(types.I64, v.Value))
	case *hir.NilLit:
		return fc.compileNil()
	case *hir.SymbolRef:
		return fc.compileSymbolRef(v)
	case *hir.Call:
		return fc.compileCall(v)
	case *hir.If:
		return fc.compileIf(v)
	case *hir.Def:
		return fc.compileDef(v)
	case *hir.Lambda:
		return fc.compileLambdaValue(v)
	default:
		panic(fmt.Sprintf("codegen: unhandled hir node %T", n))
	}
}

// compileSymbolRef resolves a bound local (parameter or free variable)
// directly out of the environment; anything else is a global function
// reference resolved through the symbol table at the point of use.
// Function lookup is always dynamic, never cached by name.
func (fc *funcCompiler) compileSymbolRef(v *hir.SymbolRef) value.Value {
	if val, ok := fc.env[v.Name]; ok {
		return val
	}
	return fc.block.NewCall(fc.ctx.Runtime.LookupFunction, fc.cStringPtr(v.Name))
}

// compileCall lowers (callee arg...) generically: evaluate the callee
// to a Function-kind Object, evaluate each argument, and hand both to
// emitInvoke, which checks arity against the resolved descriptor and
// dispatches through its invoke_fptr (or its apply_fptr, for a callee
// with a rest parameter). This is the one path every call goes
// through, whether the callee is
// a built-in, a top-level `def`-bound function, or a freshly
// materialized closure.
func (fc *funcCompiler) compileCall(v *hir.Call) value.Value {
	callee := fc.compileExpr(v.Callee)
	args := make([]value.Value, len(v.Args))
	for i, a := range v.Args {
		args[i] = fc.compileExpr(a)
	}
	return fc.emitInvoke(callee, args)
}

// emitInvoke is the generic "call this Function-kind Object with
// these Objects" sequence: extract the descriptor pointer out of the
// tagged payload, check arity (raising on mismatch), then dispatch.
// A callee without a rest parameter must have exactly len(args)
// positional parameters once the arity check passes, so its
// invoke_fptr is cast to that fixed positional signature and called
// directly. A callee WITH a rest parameter splits its arguments at
// arg_count, which is only known at runtime, so the arguments are
// marshalled into a list and dispatched through apply_fptr instead.
func (fc *funcCompiler) emitInvoke(callee value.Value, args []value.Value) value.Value {
	object := fc.ctx.Types.Object
	descrType := fc.ctx.Types.FunctionDescriptor
	descrPtrType := types.NewPointer(descrType)
	rawPtrType := types.NewPointer(types.I8)

	payload := fc.block.NewExtractValue(callee, 1)
	descr := fc.block.NewIntToPtr(payload, descrPtrType)

	n := int64(len(args))
	okCall := fc.block.NewCall(fc.ctx.Runtime.CheckArity, descr, constant.NewInt(types.I64, n))

	okBlock := fc.fn.NewBlock("")
	failBlock := fc.fn.NewBlock("")
	fc.block.NewCondBr(okCall, okBlock, failBlock)

	// name/argCount are loaded in failBlock itself (not okBlock) since
	// okBlock and failBlock are mutually exclusive successors of the
	// CondBr above. RaiseArityError never returns; it unwinds via the
	// exception channel.
	nameSlot := failBlock.NewGetElementPtr(descrType, descr,
		constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(abi.FieldName)))
	namePtr := failBlock.NewLoad(types.NewPointer(types.I8), nameSlot)
	argCountSlot := failBlock.NewGetElementPtr(descrType, descr,
		constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(abi.FieldArgCount)))
	argCount := failBlock.NewLoad(types.I64, argCountSlot)
	failBlock.NewCall(fc.ctx.Runtime.RaiseArityError, namePtr, argCount, constant.NewInt(types.I64, n))
	failBlock.NewUnreachable()

	directBlock := fc.fn.NewBlock("")
	applyBlock := fc.fn.NewBlock("")
	joinBlock := fc.fn.NewBlock("")

	restSlot := okBlock.NewGetElementPtr(descrType, descr,
		constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(abi.FieldHasRestarg)))
	hasRest := okBlock.NewLoad(types.I1, restSlot)
	okBlock.NewCondBr(hasRest, applyBlock, directBlock)

	invokeSlot := directBlock.NewGetElementPtr(descrType, descr,
		constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(abi.FieldInvokeFptr)))
	invokeRaw := directBlock.NewLoad(rawPtrType, invokeSlot)
	sigParams := []types.Type{descrPtrType}
	for range args {
		sigParams = append(sigParams, object)
	}
	invokeFn := directBlock.NewBitCast(invokeRaw, types.NewPointer(types.NewFunc(object, sigParams...)))
	directResult := directBlock.NewCall(invokeFn, append([]value.Value{descr}, args...)...)
	directBlock.NewBr(joinBlock)

	// The argument count is static, so the list is a straight cons
	// chain, built back to front.
	var list value.Value = applyBlock.NewCall(fc.ctx.Runtime.NilObject)
	for i := len(args) - 1; i >= 0; i-- {
		list = applyBlock.NewCall(fc.ctx.Runtime.Cons, args[i], list)
	}
	applySlot := applyBlock.NewGetElementPtr(descrType, descr,
		constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(abi.FieldApplyFptr)))
	applyRaw := applyBlock.NewLoad(rawPtrType, applySlot)
	applyFn := applyBlock.NewBitCast(applyRaw, types.NewPointer(types.NewFunc(object, descrPtrType, object)))
	applyResult := applyBlock.NewCall(applyFn, descr, list)
	applyBlock.NewBr(joinBlock)

	phi := ir.NewPhi(ir.NewIncoming(directResult, directBlock), ir.NewIncoming(applyResult, applyBlock))
	joinBlock.Insts = append(joinBlock.Insts, phi)
	fc.block = joinBlock
	return phi
}

// compileIf lowers (if cond then else) with real control flow: a nil
// test (nil is the only falsy value), two arms, and a join block
// whose phi carries whichever arm ran.
func (fc *funcCompiler) compileIf(v *hir.If) value.Value {
	cond := fc.compileExpr(v.Cond)
	isNil := fc.block.NewCall(fc.ctx.Runtime.ObjectIsNil, cond)

	thenBlock := fc.fn.NewBlock("")
	elseBlock := fc.fn.NewBlock("")
	joinBlock := fc.fn.NewBlock("")
	fc.block.NewCondBr(isNil, elseBlock, thenBlock)

	fc.block = thenBlock
	thenVal := fc.compileExpr(v.Then)
	thenEnd := fc.block
	thenEnd.NewBr(joinBlock)

	fc.block = elseBlock
	elseVal := fc.compileExpr(v.Else)
	elseEnd := fc.block
	elseEnd.NewBr(joinBlock)

	phi := ir.NewPhi(ir.NewIncoming(thenVal, thenEnd), ir.NewIncoming(elseVal, elseEnd))
	joinBlock.Insts = append(joinBlock.Insts, phi)
	fc.block = joinBlock
	return phi
}

// compileDef lowers (def name expr): evaluate expr, then bind it under
// name in the symbol table. name is known at build time from the
// surface syntax (hir.Def.Name), so this needs no symbol-literal value
// at all, let alone quote syntax.
func (fc *funcCompiler) compileDef(v *hir.Def) value.Value {
	val := fc.compileExpr(v.Value)
	fc.block.NewCall(fc.ctx.Runtime.BindFunction, fc.cStringPtr(v.Name), val)
	return val
}

// compileLambdaValue materializes a closure at its call site:
// heap-allocate a descriptor sized for this lambda's captures,
// populate its fixed fields and invoke/apply
// trampoline pointers, populate each free-variable slot from the
// enclosing environment, and wrap the result as a Function-kind
// Object.
func (fc *funcCompiler) compileLambdaValue(l *hir.Lambda) value.Value {
	compiled := fc.ctx.compileLambda(l)
	descriptorType := compiled.descriptorType
	descrPtrType := types.NewPointer(descriptorType)

	// sizeof via address arithmetic on a null pointer of the struct
	// type, kept at pointer width so large descriptors never wrap.
	end := fc.block.NewGetElementPtr(descriptorType, constant.NewNull(descrPtrType), constant.NewInt(types.I64, 1))
	size := fc.block.NewPtrToInt(end, types.I64)
	raw := fc.block.NewCall(fc.ctx.Runtime.Malloc, size)
	descr := fc.block.NewBitCast(raw, descrPtrType)

	fieldPtr := func(field abi.FuncField) value.Value {
		return fc.block.NewGetElementPtr(descriptorType, descr,
			constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(field)))
	}

	fc.block.NewStore(constant.NewInt(types.I32, int64(abi.FunctionKindClosure)), fieldPtr(abi.FieldKind))
	fc.block.NewStore(fc.cStringPtr(compiled.name), fieldPtr(abi.FieldName))
	fc.block.NewStore(constant.NewNull(types.NewPointer(types.I8)), fieldPtr(abi.FieldArglist))
	fc.block.NewStore(constant.NewInt(types.I64, int64(compiled.paramCount)), fieldPtr(abi.FieldArgCount))
	fc.block.NewStore(constant.False, fieldPtr(abi.FieldIsMacro))
	fc.block.NewStore(fc.bitcastFnPtr(compiled.invoke, descriptorType.Fields[abi.FieldInvokeFptr]), fieldPtr(abi.FieldInvokeFptr))
	fc.block.NewStore(fc.bitcastFnPtr(compiled.apply, descriptorType.Fields[abi.FieldApplyFptr]), fieldPtr(abi.FieldApplyFptr))
	fc.block.NewStore(boolConst(compiled.hasRestarg), fieldPtr(abi.FieldHasRestarg))

	for i, fv := range compiled.freeVars {
		slot := fc.block.NewGetElementPtr(descriptorType, descr,
			constant.NewInt(types.I32, 0), constant.NewInt(types.I32, int64(abi.BaseFieldCount+i)))
		fc.block.NewStore(fc.env[fv], slot)
	}

	generic := fc.block.NewBitCast(descr, types.NewPointer(fc.ctx.Types.FunctionDescriptor))
	return fc.block.NewCall(fc.ctx.Runtime.ObjectFromFunction, generic)
}

func boolConst(b bool) *constant.Int {
	if b {
		return constant.True
	}
	return constant.False
}

func (fc *funcCompiler) bitcastFnPtr(f *ir.Func, target types.Type) value.Value {
	return fc.block.NewBitCast(f, target)
}

// cStringPtr emits a Go string as a new immutable global byte array
// (one per call; equal strings are not shared) and returns an i8* to
// its first element, the shape every runtime helper taking a symbol
// name expects.
func (fc *funcCompiler) cStringPtr(s string) value.Value {
	fc.stringSeq++
	name := fmt.Sprintf(".str.%s.%d", fc.fn.GlobalName, fc.stringSeq)
	data := constant.NewCharArrayFromString(s + "\x00")
	g := fc.ctx.Module.NewGlobalDef(name, data)
	g.Immutable = true
	zero := constant.NewInt(types.I64, 0)
	return fc.block.NewGetElementPtr(data.Typ, g, zero, zero)
}
