package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
)

// runtimeDecls are the external, C-ABI functions compiled code calls
// into the runtime for: object construction and unpacking, symbol
// interning, arity checks, the exception channel's raise entry
// points, and the host allocator closures are materialized with.
// Declared with no body ("declare"), the way a compiler emits forward
// references to a linked-in library. raise_arity_error,
// raise_undef_fn_error, and malloc carry no "unlisp_rt_" prefix; the
// rest do.
//
// Cons, ApplyViaList, LookupFunction, and BindFunction back list
// construction for rest-argument gathering, the generic apply path,
// dynamic symbol-function lookup, and top-level binding; they keep
// descriptive names of their own.
type runtimeDecls struct {
	ObjectFromInt      *ir.Func // (i64) -> Object
	IntFromObject      *ir.Func // (Object) -> i64; raises on kind mismatch
	ObjectFromSymbol   *ir.Func // (Symbol*) -> Object
	ObjectFromFunction *ir.Func // (FunctionDescriptor*) -> Object
	ObjectIsNil        *ir.Func // (Object) -> i1
	NilObject          *ir.Func // () -> Object
	Cons               *ir.Func // (Object, Object) -> Object
	InternSym          *ir.Func // (i8*) -> Object
	CheckArity         *ir.Func // (FunctionDescriptor*, i64) -> i1
	RaiseArityError    *ir.Func // (i8*, i64, i64) -> void, never returns
	RaiseUndefFnError  *ir.Func // (i8*) -> void, never returns
	Malloc             *ir.Func // (i64) -> i8*
	ApplyViaList       *ir.Func // (FunctionDescriptor*, Object) -> Object; walks a list and re-enters invoke positionally
	LookupFunction     *ir.Func // (i8*) -> Object; raises undef-function on a miss
	BindFunction       *ir.Func // (i8*, Object) -> void
}

// Context holds everything codegen threads through a whole
// compilation unit: the module under construction, the shared ABI
// types, the runtime function declarations, and a counter for naming
// anonymous closures uniquely.
type Context struct {
	Module   *ir.Module
	Types    *abiTypes
	Runtime  *runtimeDecls
	closureN int
}

// NewContext creates an empty module with the ABI types and runtime
// declarations already in place, ready for lambdas and top-level
// forms to be compiled into it.
func NewContext() *Context {
	m := ir.NewModule()
	t := newABITypes(m)
	return &Context{
		Module:  m,
		Types:   t,
		Runtime: declareRuntime(m, t),
	}
}

func declareRuntime(m *ir.Module, t *abiTypes) *runtimeDecls {
	i8ptr := types.NewPointer(types.I8)
	descrPtr := types.NewPointer(t.FunctionDescriptor)
	symPtr := types.NewPointer(t.Symbol)

	return &runtimeDecls{
		ObjectFromInt:      m.NewFunc("unlisp_rt_object_from_int", t.Object, ir.NewParam("v", types.I64)),
		IntFromObject:      m.NewFunc("unlisp_rt_int_from_obj", types.I64, ir.NewParam("o", t.Object)),
		ObjectFromSymbol:   m.NewFunc("unlisp_rt_object_from_symbol", t.Object, ir.NewParam("sym", symPtr)),
		ObjectFromFunction: m.NewFunc("unlisp_rt_object_from_function", t.Object, ir.NewParam("descr", descrPtr)),
		ObjectIsNil:        m.NewFunc("unlisp_rt_object_is_nil", types.I1, ir.NewParam("o", t.Object)),
		NilObject:          m.NewFunc("unlisp_rt_nil_object", t.Object),
		Cons:               m.NewFunc("unlisp_rt_cons", t.Object, ir.NewParam("x", t.Object), ir.NewParam("list", t.Object)),
		InternSym:          m.NewFunc("unlisp_rt_intern_sym", t.Object, ir.NewParam("name", i8ptr)),
		CheckArity:         m.NewFunc("unlisp_rt_check_arity", types.I1, ir.NewParam("descr", descrPtr), ir.NewParam("n", types.I64)),
		RaiseArityError: m.NewFunc("raise_arity_error", types.Void,
			ir.NewParam("name", i8ptr), ir.NewParam("expected", types.I64), ir.NewParam("actual", types.I64)),
		RaiseUndefFnError: m.NewFunc("raise_undef_fn_error", types.Void, ir.NewParam("name", i8ptr)),
		Malloc:            m.NewFunc("malloc", i8ptr, ir.NewParam("size", types.I64)),
		ApplyViaList: m.NewFunc("unlisp_rt_apply_via_list", t.Object,
			ir.NewParam("descr", descrPtr), ir.NewParam("args", t.Object)),
		LookupFunction: m.NewFunc("unlisp_rt_lookup_function", t.Object, ir.NewParam("name", i8ptr)),
		BindFunction:   m.NewFunc("unlisp_rt_bind_function", types.Void, ir.NewParam("name", i8ptr), ir.NewParam("fn", t.Object)),
	}
}

// nextClosureName returns a fresh, module-unique name for an anonymous
// lambda; named lambdas get their surface name instead.
func (c *Context) nextClosureName() string {
	n := fmt.Sprintf("closure.%d", c.closureN)
	c.closureN++
	return n
}
