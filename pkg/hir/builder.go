package hir

import (
	"unlisp/pkg/errors"
	"unlisp/pkg/reader"
)

// scope tracks which names are bound by enclosing lambdas, so the
// builder can tell a free variable (captured from an ancestor lambda)
// apart from a global function reference (resolved at call time
// through the symbol table, never captured).
type scope struct {
	bound  map[string]bool
	parent *scope
}

func (s *scope) boundInChain(name string) bool {
	for c := s; c != nil; c = c.parent {
		if c.bound[name] {
			return true
		}
	}
	return false
}

// BuildHIRs lowers a sequence of top-level forms into HIR nodes, one
// per form. Forms are lowered independently; nothing here depends on
// forms lowered earlier in the same call, since all top-level
// bindings live in the runtime symbol table rather than in HIR-level
// scope.
func BuildHIRs(forms []reader.Form) ([]Node, error) {
	nodes := make([]Node, 0, len(forms))
	for _, f := range forms {
		n, err := build(f, nil)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func build(f reader.Form, sc *scope) (Node, error) {
	switch v := f.(type) {
	case *reader.IntForm:
		return &IntLit{Value: v.Value}, nil
	case *reader.SymbolForm:
		return &SymbolRef{Name: v.Name}, nil
	case *reader.ListForm:
		if v.IsNil() {
			return &NilLit{}, nil
		}
		return buildList(v, sc)
	default:
		return nil, &errors.CodegenError{Position: f.Pos(), Msg: "unsupported form"}
	}
}

func buildList(list *reader.ListForm, sc *scope) (Node, error) {
	if head, ok := list.Elements[0].(*reader.SymbolForm); ok {
		switch head.Name {
		case "lambda":
			return buildLambda(list, sc)
		case "if":
			return buildIf(list, sc)
		case "def":
			return buildDef(list, sc)
		}
	}

	callee, err := build(list.Elements[0], sc)
	if err != nil {
		return nil, err
	}
	args := make([]Node, 0, len(list.Elements)-1)
	for _, a := range list.Elements[1:] {
		n, err := build(a, sc)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}
	return &Call{Callee: callee, Args: args}, nil
}

func buildIf(list *reader.ListForm, sc *scope) (Node, error) {
	if len(list.Elements) < 3 || len(list.Elements) > 4 {
		return nil, &errors.CodegenError{Position: list.Position, Msg: "if requires (if cond then [else])"}
	}
	cond, err := build(list.Elements[1], sc)
	if err != nil {
		return nil, err
	}
	then, err := build(list.Elements[2], sc)
	if err != nil {
		return nil, err
	}
	var els Node = &NilLit{}
	if len(list.Elements) == 4 {
		els, err = build(list.Elements[3], sc)
		if err != nil {
			return nil, err
		}
	}
	return &If{Cond: cond, Then: then, Else: els}, nil
}

func buildDef(list *reader.ListForm, sc *scope) (Node, error) {
	if len(list.Elements) != 3 {
		return nil, &errors.CodegenError{Position: list.Position, Msg: "def requires (def name expr)"}
	}
	name, ok := list.Elements[1].(*reader.SymbolForm)
	if !ok {
		return nil, &errors.CodegenError{Position: list.Elements[1].Pos(), Msg: "def requires a symbol name"}
	}
	val, err := build(list.Elements[2], sc)
	if err != nil {
		return nil, err
	}
	return &Def{Name: name.Name, Value: val}, nil
}

// buildLambda parses (lambda (params... [&rest name]) body...). The
// &rest marker separates the fixed parameters from the one rest
// parameter gathered into a list at call time.
func buildLambda(list *reader.ListForm, sc *scope) (Node, error) {
	if len(list.Elements) < 2 {
		return nil, &errors.CodegenError{Position: list.Position, Msg: "lambda requires a parameter list"}
	}
	paramList, ok := list.Elements[1].(*reader.ListForm)
	if !ok {
		return nil, &errors.CodegenError{Position: list.Elements[1].Pos(), Msg: "lambda parameter list must be a list"}
	}

	var params []string
	rest := ""
	afterRestMarker := false
	for _, p := range paramList.Elements {
		sym, ok := p.(*reader.SymbolForm)
		if !ok {
			return nil, &errors.CodegenError{Position: p.Pos(), Msg: "lambda parameters must be symbols"}
		}
		if sym.Name == "&rest" {
			afterRestMarker = true
			continue
		}
		if afterRestMarker {
			rest = sym.Name
			continue
		}
		params = append(params, sym.Name)
	}

	bound := make(map[string]bool, len(params)+1)
	for _, p := range params {
		bound[p] = true
	}
	if rest != "" {
		bound[rest] = true
	}
	inner := &scope{bound: bound, parent: sc}

	body := make([]Node, 0, len(list.Elements)-2)
	for _, f := range list.Elements[2:] {
		n, err := build(f, inner)
		if err != nil {
			return nil, err
		}
		body = append(body, n)
	}

	return &Lambda{
		Params:   params,
		Rest:     rest,
		FreeVars: collectFreeVars(body, inner),
		Body:     body,
	}, nil
}

// collectFreeVars walks a lambda's body and returns, in first-use
// order, every name the body reads that is bound by an enclosing
// lambda (inner.parent's chain) but not by the lambda itself: the
// closure's free variables, one descriptor slot each.
func collectFreeVars(body []Node, inner *scope) []string {
	var order []string
	seen := map[string]bool{}
	record := func(name string) {
		if inner.bound[name] {
			return
		}
		if inner.parent == nil || !inner.parent.boundInChain(name) {
			return
		}
		if !seen[name] {
			seen[name] = true
			order = append(order, name)
		}
	}

	var visit func(n Node)
	visit = func(n Node) {
		switch v := n.(type) {
		case *SymbolRef:
			record(v.Name)
		case *Call:
			visit(v.Callee)
			for _, a := range v.Args {
				visit(a)
			}
		case *If:
			visit(v.Cond)
			visit(v.Then)
			visit(v.Else)
		case *Def:
			visit(v.Value)
		case *Lambda:
			// A nested lambda's own free variables are exactly the
			// names it reads from this frame; propagate whichever of
			// them this frame doesn't itself bind, so capture chains
			// correctly through nested closures.
			for _, fv := range v.FreeVars {
				record(fv)
			}
		}
	}
	for _, n := range body {
		visit(n)
	}
	return order
}
