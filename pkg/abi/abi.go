// Package abi is the single source of truth for the tagged-object and
// function-descriptor layouts. Both pkg/runtime (the Go-side mirror
// used by the interpreter path and by tests) and pkg/codegen (the LLVM
// struct-type declarations emitted for compiled code) build from the
// constants in this package, so the two representations cannot
// silently drift apart.
package abi

// Kind is the Object discriminator. The values are part of the binary
// contract between compiled code and the runtime and must not change.
type Kind int32

const (
	KindInt      Kind = 1
	KindList     Kind = 2
	KindSymbol   Kind = 3
	KindFunction Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindList:
		return "list"
	case KindSymbol:
		return "symbol"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// FunctionKind distinguishes a plain built-in function descriptor from
// one produced by the closure compiler.
type FunctionKind int32

const (
	FunctionKindPlain   FunctionKind = 0
	FunctionKindClosure FunctionKind = 1
)

// FuncField indexes the fields of the shared function-descriptor
// struct layout, in declaration order. Free-variable slots start at
// FreeVarBase: slot i of a closure's captures lives at FreeVarBase + i.
type FuncField int

const (
	FieldKind FuncField = iota
	FieldName
	FieldArglist
	FieldArgCount
	FieldIsMacro
	FieldInvokeFptr
	FieldApplyFptr
	FieldHasRestarg
	FreeVarBase // first free-variable slot index
)

// BaseFieldCount is the number of fields in the shared prefix,
// before any free-variable slots.
const BaseFieldCount = int(FreeVarBase)
