// Package driver wires the lexer, reader, HIR builder, evaluator, and
// code generator together behind the session API cmd/unlisp drives:
// lex -> read -> build-HIR -> eval for the interactive modes, or
// -> codegen -> clang for AOT compilation, with every top-level form
// folded into one running session.
package driver

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"unlisp/pkg/builtins"
	"unlisp/pkg/codegen"
	"unlisp/pkg/errors"
	"unlisp/pkg/eval"
	"unlisp/pkg/hir"
	"unlisp/pkg/lexer"
	"unlisp/pkg/reader"
	rt "unlisp/pkg/runtime"
)

// DefaultStdlibPath is the conventional stdlib location.
const DefaultStdlibPath = "./stdlib.unl"

// Session is a persistent Unlisp session: every form evaluated through
// it without a runtime error accumulates into the HIR history that
// CompileToFile and -d
// dumping replay, so AOT compilation always sees the stdlib plus
// everything evaluated before it, and its evaluation environment
// lives as long as the session does.
type Session struct {
	history []hir.Node
	env     *eval.Env
	dumpIR  bool
}

// NewSession creates a session with the built-ins installed and,
// unless noStdlib is set, loads and evaluates every form in
// stdlibPath, retaining its HIR so AOT compilation sees stdlib
// definitions ahead of user code. A missing DefaultStdlibPath is
// tolerated silently; an explicitly-named stdlibPath that can't be
// read is a reported error.
func NewSession(stdlibPath string, noStdlib bool, dumpIR bool) (*Session, error) {
	s := &Session{env: eval.NewEnv(nil), dumpIR: dumpIR}
	builtins.Install()

	if noStdlib {
		return s, nil
	}

	explicit := stdlibPath != ""
	if stdlibPath == "" {
		stdlibPath = DefaultStdlibPath
	}

	content, err := os.ReadFile(stdlibPath)
	if err != nil {
		if explicit {
			return nil, fmt.Errorf("stdlib file not found: %s", stdlibPath)
		}
		return s, nil // default path is optional
	}

	forms, synErr := reader.ReadAll(lexer.NewLexerWithSource(errors.FileSource(stdlibPath, string(content))))
	if synErr != nil {
		return nil, synErr
	}
	nodes, buildErr := hir.BuildHIRs(forms)
	if buildErr != nil {
		return nil, buildErr
	}
	for _, n := range nodes {
		if _, _, ok := rt.InstallHandler(func() rt.Object { return eval.Eval(n, s.env) }); !ok {
			return nil, fmt.Errorf("stdlib evaluation failed: %s", stdlibPath)
		}
	}
	s.history = append(s.history, nodes...)
	return s, nil
}

// EvalResult is one form's outcome: exactly one of Value or Err is set.
type EvalResult struct {
	Value rt.Object
	Err   error
}

// EvalSource reads every form out of src, evaluates each in turn
// through the session's persistent environment, and returns one
// EvalResult per form. Evaluation stops at the first syntax or
// HIR-build error; runtime errors raised by the exception channel are
// per-form and do not stop the batch, so the REPL reports the failure
// and resumes at the prompt.
func (s *Session) EvalSource(name, src string) ([]EvalResult, error) {
	var sf *errors.Source
	if name == "<repl>" {
		sf = errors.ReplSource(src)
	} else {
		sf = errors.NamedSource(name, src)
	}
	forms, synErr := reader.ReadAll(lexer.NewLexerWithSource(sf))
	if synErr != nil {
		return nil, synErr
	}
	nodes, buildErr := hir.BuildHIRs(forms)
	if buildErr != nil {
		return nil, buildErr
	}

	results := make([]EvalResult, 0, len(nodes))
	for _, n := range nodes {
		if s.dumpIR {
			s.dumpNodeIR(n)
		}
		value, msg, ok := rt.InstallHandler(func() rt.Object { return eval.Eval(n, s.env) })
		if !ok {
			results = append(results, EvalResult{Err: &errors.RuntimeError{Msg: msg}})
			continue
		}
		results = append(results, EvalResult{Value: value})
		s.history = append(s.history, n)
	}
	return results, nil
}

// BuildFile lexes, reads, and builds HIR for src without evaluating
// it, for `compile`'s file argument: AOT compilation only ever needs
// the HIR tree codegen folds into the module, not a live value.
func BuildFile(src string) ([]hir.Node, error) {
	forms, synErr := reader.ReadAll(lexer.NewLexerWithSource(errors.NamedSource("<input>", src)))
	if synErr != nil {
		return nil, synErr
	}
	return hir.BuildHIRs(forms)
}

// verifyModule aborts the process when codegen emitted a malformed
// module, dumping its IR first. Emitting one is a compiler bug, never
// a user error.
func verifyModule(ctx *codegen.Context) {
	if err := codegen.VerifyModule(ctx.Module); err != nil {
		log.Printf("module verification failed: %s", err.Error())
		fmt.Fprintln(os.Stderr, ctx.Module.String())
		os.Exit(70)
	}
}

// dumpNodeIR builds the LLVM IR pkg/codegen would emit for n (folded
// into the session's accumulated history, the way CompileProgram
// always compiles the whole sequence) and writes it to stderr, for
// `repl -d`/`--dump-compiled`.
func (s *Session) dumpNodeIR(n hir.Node) {
	ctx, _ := codegen.CompileProgram(append(append([]hir.Node{}, s.history...), n))
	verifyModule(ctx)
	fmt.Fprintln(os.Stderr, "Expression compiled to LLVM IR:")
	fmt.Fprintln(os.Stderr, ctx.Module.String())
}

// CompileToFile implements the `compile` subcommand: build every
// accumulated form (stdlib history plus file) into one LLVM module,
// write its textual IR, invoke clang to assemble an object file, then
// invoke clang again as a linker front end against runtimeLibPath,
// appending -lpthread -ldl on Linux.
func (s *Session) CompileToFile(fileNodes []hir.Node, outPath, runtimeLibPath string) error {
	allNodes := append(append([]hir.Node{}, s.history...), fileNodes...)
	ctx, _ := codegen.CompileProgram(allNodes)
	verifyModule(ctx)

	tmpDir, err := os.MkdirTemp("", "unlisp-aot-")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	irPath := filepath.Join(tmpDir, "module.ll")
	if err := os.WriteFile(irPath, []byte(ctx.Module.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write IR: %w", err)
	}

	objPath := outPath + ".o"
	if out, err := exec.Command("clang", "-c", irPath, "-o", objPath).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to assemble object file: %s", out)
	}

	linkArgs := []string{objPath, runtimeLibPath, "-o", outPath}
	if runtime.GOOS == "linux" {
		linkArgs = append(linkArgs, "-lpthread", "-ldl")
	}
	if out, err := exec.Command("clang", linkArgs...).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to link binary: %s", out)
	}
	return nil
}

// Repl runs the read/eval loop over in, printing the `>>> ` prompt and
// each result or error to out/errOut. It returns when in reaches EOF.
//
// Because pkg/lexer and pkg/reader work over a complete source string
// rather than a streaming token source, the loop buffers lines until
// parentheses balance back to zero (skipping `;` comments the same
// way the lexer does), then hands the accumulated chunk to EvalSource
// as one batch.
func (s *Session) Repl(in io.Reader, out, errOut io.Writer) {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, ">>> ")
	for {
		chunk, ok := readBalancedForm(scanner)
		if !ok {
			fmt.Fprintln(out)
			return
		}
		if strings.TrimSpace(chunk) == "" {
			fmt.Fprint(out, ">>> ")
			continue
		}
		s.evalAndPrint("<repl>", chunk, out, errOut)
		fmt.Fprint(out, ">>> ")
	}
}

// readBalancedForm reads lines from scanner until every '(' opened
// has a matching ')' outside of a ';' comment, returning the
// accumulated text. ok is false once the scanner is exhausted with no
// more text buffered.
func readBalancedForm(scanner *bufio.Scanner) (string, bool) {
	var buf strings.Builder
	depth := 0
	sawContent := false
	for scanner.Scan() {
		line := scanner.Text()
		for _, ch := range line {
			if ch == ';' {
				break
			}
			if ch == '(' {
				depth++
			} else if ch == ')' {
				depth--
			}
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		sawContent = sawContent || strings.TrimSpace(line) != ""
		if sawContent && depth <= 0 {
			return buf.String(), true
		}
	}
	return buf.String(), sawContent
}

// EvalFile implements `eval -f FILE`: evaluate every form in path and
// report each error to stderr. It returns false (the driver's "exit
// 1" signal) if any form raised a syntax, build, or runtime error.
func (s *Session) EvalFile(path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %q: %s\n", path, err)
		return false
	}
	return s.evalAndPrint(path, string(content), os.Stdout, os.Stderr)
}

// evalAndPrint evaluates src and prints each successful result's
// Inspect rendering to out, or each error's message to errOut.
// Returns true iff every form succeeded.
func (s *Session) evalAndPrint(name, src string, out, errOut io.Writer) bool {
	results, err := s.EvalSource(name, src)
	if err != nil {
		fmt.Fprintln(errOut, err.Error())
		return false
	}
	ok := true
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintln(errOut, r.Err.Error())
			ok = false
			continue
		}
		fmt.Fprintln(out, rt.Inspect(r.Value))
	}
	return ok
}
