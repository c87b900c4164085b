package codegen

import (
	"github.com/llir/llvm/ir/value"

	"unlisp/pkg/hir"
)

// CompileProgram compiles a full sequence of top-level forms (the
// standard library followed by one user file, or a single REPL line
// appended to everything evaluated so far) into one generated
// function, "unlisp_main", that runs every form in order and returns
// the last one's value. The whole sequence recompiles per step rather
// than linking incrementally; the driver shells out to clang once per
// emitted module anyway.
func CompileProgram(nodes []hir.Node) (*Context, string) {
	ctx := NewContext()
	object := ctx.Types.Object
	fn := ctx.Module.NewFunc("unlisp_main", object)
	entry := fn.NewBlock("entry")

	fc := &funcCompiler{ctx: ctx, fn: fn, block: entry, env: env{}}
	var last value.Value = fc.compileNil()
	for _, n := range nodes {
		last = fc.compileExpr(n)
	}
	fc.block.NewRet(last)

	return ctx, fn.GlobalName
}
