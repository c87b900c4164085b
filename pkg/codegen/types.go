// Package codegen is the closure compiler: it lowers pkg/hir nodes to
// LLVM IR built with github.com/llir/llvm/ir. Every lambda compiles in
// four stages (raw function, per-closure struct type, invocation
// trampoline, call-site materialization); everything else is
// straight-line lowering.
package codegen

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"unlisp/pkg/abi"
)

// abiTypes are the named LLVM struct types mirroring pkg/abi's
// layouts, declared once per module so every function in the module
// shares identical type identity.
type abiTypes struct {
	Object             *types.StructType
	ListNode           *types.StructType
	List               *types.StructType
	Symbol             *types.StructType
	FunctionDescriptor *types.StructType // zero free-var slots; closures build their own via withFreeVars
}

// newABITypes declares the shared ABI types as named types in m, the
// way a real frontend emits `%Object = type {...}` once and reuses it
// rather than re-declaring an anonymous struct at every use site.
func newABITypes(m *ir.Module) *abiTypes {
	object := types.NewStruct(types.I32, types.I64)
	m.NewTypeDef("Object", object)

	listNode := types.NewStruct()
	list := types.NewStruct(types.NewPointer(listNode), types.I64)
	listNode.Fields = []types.Type{
		types.NewPointer(object),
		types.NewPointer(list),
	}
	m.NewTypeDef("ListNode", listNode)
	m.NewTypeDef("List", list)

	fnDescr := functionDescriptorFields(object, 0)
	fnDescrType := types.NewStruct(fnDescr...)
	m.NewTypeDef("FunctionDescriptor", fnDescrType)

	symbol := types.NewStruct(types.NewPointer(types.I8), types.NewPointer(fnDescrType))
	m.NewTypeDef("Symbol", symbol)

	return &abiTypes{
		Object:             object,
		ListNode:           listNode,
		List:               list,
		Symbol:             symbol,
		FunctionDescriptor: fnDescrType,
	}
}

// functionDescriptorFields returns the function-descriptor field
// list: the eight fixed fields abi.FuncField indexes, in declaration
// order, followed by freeVarCount Object-typed capture slots starting
// at abi.FreeVarBase.
func functionDescriptorFields(object *types.StructType, freeVarCount int) []types.Type {
	// invoke_fptr and apply_fptr are raw pointers: each closure's
	// invoke trampoline has its own fixed positional signature, so
	// call sites cast to the concrete function type they expect.
	rawPtr := types.NewPointer(types.I8)

	fields := []types.Type{
		types.I32,                  // kind (abi.FieldKind)
		types.NewPointer(types.I8), // name (abi.FieldName)
		types.NewPointer(types.I8), // arglist, NUL-separated (abi.FieldArglist)
		types.I64,                  // arg_count (abi.FieldArgCount)
		types.I1,                   // is_macro (abi.FieldIsMacro)
		rawPtr,                     // invoke_fptr (abi.FieldInvokeFptr)
		rawPtr,                     // apply_fptr (abi.FieldApplyFptr)
		types.I1,                   // has_restarg (abi.FieldHasRestarg)
	}
	if len(fields) != abi.BaseFieldCount {
		panic("functionDescriptorFields: base field count drifted from pkg/abi")
	}
	for i := 0; i < freeVarCount; i++ {
		fields = append(fields, object)
	}
	return fields
}

// withFreeVars builds (and names) the per-closure function-descriptor
// struct type: the shared prefix plus one Object-typed slot per
// captured free variable.
func (t *abiTypes) withFreeVars(m *ir.Module, closureName string, freeVarCount int) *types.StructType {
	fields := functionDescriptorFields(t.Object, freeVarCount)
	st := types.NewStruct(fields...)
	m.NewTypeDef(closureName+".descriptor", st)
	return st
}
