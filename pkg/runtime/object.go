// Package runtime implements the Go-side mirror of the tagged-object
// ABI, the symbol table, and the exception channel, used by the
// in-process evaluator and the built-ins. It does not define the
// external-linkage runtime symbols compiled code declares
// (unlisp_rt_object_from_int and friends); compiled output links
// against a separately supplied runtime archive for those.
package runtime

import (
	"fmt"
	"unsafe"

	"unlisp/pkg/abi"
)

// Object is a fixed-size tagged value: a kind discriminator plus an
// untagged payload word. Both compiled code and this runtime read and
// write it by the same two fields; Payload carries an int64 value
// directly, or the bit pattern of a pointer to a List, Symbol, or
// FunctionDescriptor.
type Object struct {
	Kind    abi.Kind
	Payload uint64
}

// ListNode is one cell's node: a pointer to the element and a pointer
// to the next cell.
type ListNode struct {
	Value *Object
	Next  *List
}

// List is a list cell: a pointer to a node, and a 64-bit length. A nil
// Node with Length 0 is the empty list ("nil"). Emptiness is decided
// by Length, never by object identity.
type List struct {
	Node   *ListNode
	Length int64
}

// Symbol is an interned name plus an optional function binding.
// Symbol pointers are stable for the process lifetime (see symbols.go).
type Symbol struct {
	Name     string
	Function *FunctionDescriptor
}

// InvokeFunc is the shape of a raw/trampoline invocation entry point.
type InvokeFunc func(args ...Object) Object

// ApplyFunc is the "apply a list of arguments" entry point every
// built-in and closure also exposes.
type ApplyFunc func(args *List) Object

// FunctionDescriptor is the function/closure descriptor: eight fixed
// fields, with FreeVars holding the capture slots.
type FunctionDescriptor struct {
	Kind       abi.FunctionKind
	Name       string
	Arglist    []string
	ArgCount   uint64
	IsMacro    bool
	InvokeFptr InvokeFunc
	ApplyFptr  ApplyFunc
	HasRestarg bool
	FreeVars   []Object
}

// --- Object ABI: constructors ---

// live holds every pointer packed into a Payload. Payload is a plain
// integer the garbage collector does not trace, so this slice is what
// keeps the pointee alive. Entries are never removed: list cells and
// descriptors are not reclaimed.
var live []unsafe.Pointer

func pack(p unsafe.Pointer) uint64 {
	live = append(live, p)
	return uint64(uintptr(p))
}

func FromInt(i int64) Object {
	return Object{Kind: abi.KindInt, Payload: uint64(i)}
}

func FromList(l *List) Object {
	return Object{Kind: abi.KindList, Payload: pack(unsafe.Pointer(l))}
}

func FromSymbol(s *Symbol) Object {
	return Object{Kind: abi.KindSymbol, Payload: pack(unsafe.Pointer(s))}
}

func FromFunction(f *FunctionDescriptor) Object {
	return Object{Kind: abi.KindFunction, Payload: pack(unsafe.Pointer(f))}
}

// NilObject allocates a fresh empty list and wraps it as a tagged
// object.
func NilObject() Object {
	return FromList(&List{})
}

// --- Object ABI: unpackers ---
//
// Each unpacker raises a cast error through the exception channel
// (exception.go) on a kind mismatch, and never returns in that case.

func UnpackInt(o Object) int64 {
	if o.Kind != abi.KindInt {
		RaiseCastError(o.Kind.String(), "int")
	}
	return int64(o.Payload)
}

func UnpackList(o Object) *List {
	if o.Kind != abi.KindList {
		RaiseCastError(o.Kind.String(), "list")
	}
	return (*List)(unsafe.Pointer(uintptr(o.Payload)))
}

func UnpackSymbol(o Object) *Symbol {
	if o.Kind != abi.KindSymbol {
		RaiseCastError(o.Kind.String(), "symbol")
	}
	return (*Symbol)(unsafe.Pointer(uintptr(o.Payload)))
}

func UnpackFunction(o Object) *FunctionDescriptor {
	if o.Kind != abi.KindFunction {
		RaiseCastError(o.Kind.String(), "function")
	}
	return (*FunctionDescriptor)(unsafe.Pointer(uintptr(o.Payload)))
}

// IsNil reports whether o is a List-kind object of length 0.
func IsNil(o Object) bool {
	return o.Kind == abi.KindList && UnpackList(o).Length == 0
}

// CheckArity reports whether calling f with n arguments is legal:
// n >= f.ArgCount, and either f has a rest parameter or n == f.ArgCount.
func CheckArity(f *FunctionDescriptor, n uint64) bool {
	if n < f.ArgCount {
		return false
	}
	return f.HasRestarg || n == f.ArgCount
}

// ListToSlice flattens a list cell into a Go slice, head first. Used
// anywhere a list needs to be walked as an ordinary sequence: the
// apply path (pkg/builtins) and the rest-argument gathering every
// closure invocation needs (pkg/eval).
func ListToSlice(l *List) []Object {
	out := make([]Object, 0, l.Length)
	for n := l.Node; n != nil; n = n.Next.Node {
		out = append(out, *n.Value)
	}
	return out
}

// SliceToList builds a list cell out of a Go slice, in order. The
// inverse of ListToSlice.
func SliceToList(objs []Object) *List {
	list := &List{}
	for i := len(objs) - 1; i >= 0; i-- {
		v := objs[i]
		list = &List{Node: &ListNode{Value: &v, Next: list}, Length: list.Length + 1}
	}
	return list
}

// Inspect renders an Object the way the driver prints results:
// "Object[kind, value]".
func Inspect(o Object) string {
	switch o.Kind {
	case abi.KindInt:
		return fmt.Sprintf("Object[int64, %d]", int64(o.Payload))
	case abi.KindList:
		return fmt.Sprintf("Object[list, len=%d]", UnpackList(o).Length)
	case abi.KindSymbol:
		return fmt.Sprintf("Object[symbol, %s]", UnpackSymbol(o).Name)
	case abi.KindFunction:
		return fmt.Sprintf("Object[function, %s]", UnpackFunction(o).Name)
	default:
		return "Object[unknown]"
	}
}
