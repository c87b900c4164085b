package codegen

import (
	"strings"
	"testing"

	"unlisp/pkg/hir"
	"unlisp/pkg/lexer"
	"unlisp/pkg/reader"
)

func buildNodes(t *testing.T, src string) []hir.Node {
	t.Helper()
	forms, err := reader.ReadAll(lexer.NewLexer(src))
	if err != nil {
		t.Fatalf("syntax error: %s", err.Error())
	}
	nodes, buildErr := hir.BuildHIRs(forms)
	if buildErr != nil {
		t.Fatalf("build error: %s", buildErr.Error())
	}
	return nodes
}

func TestNewContextDeclaresRuntimeFunctions(t *testing.T) {
	ctx := NewContext()
	want := []string{
		"unlisp_rt_object_from_int",
		"unlisp_rt_int_from_obj",
		"unlisp_rt_object_from_symbol",
		"unlisp_rt_object_from_function",
		"unlisp_rt_object_is_nil",
		"unlisp_rt_nil_object",
		"unlisp_rt_cons",
		"unlisp_rt_intern_sym",
		"unlisp_rt_check_arity",
		"raise_arity_error",
		"raise_undef_fn_error",
		"malloc",
		"unlisp_rt_apply_via_list",
		"unlisp_rt_lookup_function",
		"unlisp_rt_bind_function",
	}
	names := map[string]bool{}
	for _, f := range ctx.Module.Funcs {
		names[f.GlobalName] = true
	}
	for _, w := range want {
		if !names[w] {
			t.Errorf("expected module to declare %s", w)
		}
	}
}

func TestCompileProgramIntLiteral(t *testing.T) {
	nodes := buildNodes(t, "42")
	ctx, mainName := CompileProgram(nodes)
	if mainName != "unlisp_main" {
		t.Fatalf("expected entry point unlisp_main, got %s", mainName)
	}
	found := false
	for _, f := range ctx.Module.Funcs {
		if f.GlobalName == mainName {
			found = true
			if len(f.Blocks) == 0 {
				t.Fatalf("expected unlisp_main to have a body")
			}
		}
	}
	if !found {
		t.Fatalf("unlisp_main not found in module")
	}
}

func TestCompileLambdaEmitsRawInvokeApply(t *testing.T) {
	nodes := buildNodes(t, "(lambda (x y) (+ x y))")
	l := nodes[0].(*hir.Lambda)
	ctx := NewContext()
	compiled := ctx.compileLambda(l)

	if compiled.raw == nil || len(compiled.raw.Blocks) == 0 {
		t.Fatalf("expected raw function to have a body")
	}
	if compiled.invoke == nil || len(compiled.invoke.Blocks) == 0 {
		t.Fatalf("expected invoke trampoline to have a body")
	}
	// the invoke signature is positional: (descriptor-ptr, x, y).
	if len(compiled.invoke.Params) != 3 {
		t.Fatalf("expected invoke params (descr, x, y), got %d", len(compiled.invoke.Params))
	}
	if compiled.apply == nil || len(compiled.apply.Blocks) == 0 {
		t.Fatalf("expected apply trampoline to have a body")
	}
	if len(compiled.apply.Params) != 2 {
		t.Fatalf("expected apply params (descr, args), got %d", len(compiled.apply.Params))
	}
	// x and y are both raw-function parameters, not free variables.
	if len(compiled.freeVars) != 0 {
		t.Fatalf("expected no free vars, got %#v", compiled.freeVars)
	}
	if compiled.paramCount != 2 {
		t.Fatalf("expected paramCount 2, got %d", compiled.paramCount)
	}
}

func TestCompileLambdaWithFreeVarAddsDescriptorSlot(t *testing.T) {
	nodes := buildNodes(t, "(lambda (x) (lambda (y) (+ x y)))")
	outer := nodes[0].(*hir.Lambda)
	inner := outer.Body[0].(*hir.Lambda)

	ctx := NewContext()
	compiled := ctx.compileLambda(inner)
	if len(compiled.freeVars) != 1 || compiled.freeVars[0] != "x" {
		t.Fatalf("expected inner lambda to capture x, got %#v", compiled.freeVars)
	}
	// base 8 fields plus 1 free-var slot.
	if len(compiled.descriptorType.Fields) != 9 {
		t.Fatalf("expected 9 descriptor fields, got %d", len(compiled.descriptorType.Fields))
	}
}

func TestClosureMaterializationUsesHostAllocator(t *testing.T) {
	nodes := buildNodes(t, "((lambda (x) (lambda (y) (+ x y))) 3)")
	ctx, _ := CompileProgram(nodes)
	text := ctx.Module.String()
	if !strings.Contains(text, "@malloc") {
		t.Fatalf("expected descriptor allocation to go through malloc")
	}
	if !strings.Contains(text, "@unlisp_rt_object_from_function") {
		t.Fatalf("expected the descriptor to be wrapped via unlisp_rt_object_from_function")
	}
}

func TestVerifyModulePassesForCompiledProgram(t *testing.T) {
	nodes := buildNodes(t, "(if 1 (+ 1 2) nil)")
	ctx, _ := CompileProgram(nodes)
	if err := VerifyModule(ctx.Module); err != nil {
		t.Fatalf("VerifyModule: %s", err)
	}
}

func TestVerifyModuleRejectsMissingTerminator(t *testing.T) {
	ctx := NewContext()
	fn := ctx.Module.NewFunc("broken", ctx.Types.Object)
	fn.NewBlock("entry") // no terminator
	if VerifyModule(ctx.Module) == nil {
		t.Fatalf("expected a verification error for an unterminated block")
	}
}

func TestInvokeTrampolineCarriesRestParameter(t *testing.T) {
	nodes := buildNodes(t, "(lambda (x &rest ys) x)")
	l := nodes[0].(*hir.Lambda)
	ctx := NewContext()
	compiled := ctx.compileLambda(l)
	// (descriptor-ptr, x, ys) -> Object: the gathered rest list is one
	// explicit Object parameter.
	if len(compiled.invoke.Params) != 3 {
		t.Fatalf("expected invoke params (descr, x, ys), got %d", len(compiled.invoke.Params))
	}
	if !compiled.hasRestarg {
		t.Fatalf("expected hasRestarg to be set")
	}
}
