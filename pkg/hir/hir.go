// Package hir defines the high-level intermediate representation the
// code generator and evaluator consume: just enough nodes to drive
// the closure compiler, the built-ins, the `if` special form, and
// top-level `def`.
package hir

// Node is one HIR tree node.
type Node interface {
	hirNode()
}

// NilLit is the literal empty list -- what the reader produces for
// every occurrence of "nil".
type NilLit struct{}

func (*NilLit) hirNode() {}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
}

func (*IntLit) hirNode() {}

// SymbolRef is a reference to a bound name: a lambda parameter, a
// captured free variable, or (in call-head position) a global
// function binding resolved through the symbol table at call time.
type SymbolRef struct {
	Name string
}

func (*SymbolRef) hirNode() {}

// Call invokes Callee with Args. When Callee is a SymbolRef naming an
// unbound-in-scope symbol, it lowers to a symbol-function lookup plus
// an indirect call through the resolved descriptor (its invoke
// trampoline, or its apply entry point when the callee takes a rest
// argument); otherwise Callee is evaluated as an ordinary expression
// expected to produce a Function-kind object.
type Call struct {
	Callee Node
	Args   []Node
}

func (*Call) hirNode() {}

// Lambda is a closure descriptor input: Params are the fixed
// positional parameter names, Rest is the rest-parameter name
// ("" if the lambda takes no rest argument), FreeVars is the ordered,
// deduplicated list of names captured from an enclosing lambda (first
// occurrence order, computed once per lambda by the builder), and Body
// is the lowered lambda body.
type Lambda struct {
	Name     string
	Params   []string
	Rest     string
	FreeVars []string
	Body     []Node
}

func (*Lambda) hirNode() {}

// If is the one piece of short-circuiting control flow: a built-in
// function could not branch without evaluating both arms first.
type If struct {
	Cond, Then, Else Node
}

func (*If) hirNode() {}

// Def is `(def name expr)`: bind the function value expr evaluates to
// under the symbol Name. Name is resolved at build time from the
// surface syntax, not evaluated, so this needs no symbol-literal
// surface syntax.
type Def struct {
	Name  string
	Value Node
}

func (*Def) hirNode() {}
