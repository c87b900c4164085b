package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"

	"unlisp/pkg/errors"
)

// VerifyModule checks the structural well-formedness of every function
// defined in m: a defined function must have at least one block, and
// every block must end in a terminator. A failure here is a compiler
// bug, not a user error; callers dump the module and abort.
func VerifyModule(m *ir.Module) error {
	for _, f := range m.Funcs {
		if len(f.Blocks) == 0 {
			continue // external declaration
		}
		for i, b := range f.Blocks {
			if b.Term == nil {
				return &errors.InternalError{
					Msg: fmt.Sprintf("function %s: block %d has no terminator", f.GlobalName, i),
				}
			}
		}
	}
	return nil
}
