// Command unlisp is the CLI front end: a REPL, a batch `eval` mode,
// and an AOT `compile` mode that shells out to clang, all driven
// through pkg/driver.Session. One flag.FlagSet per subcommand, plus a
// bare no-args-means-REPL fallback.
package main

import (
	"fmt"
	"os"

	"unlisp/pkg/driver"
)

func main() {
	if len(os.Args) < 2 {
		runRepl(os.Args[1:])
		return
	}

	switch os.Args[1] {
	case "repl":
		runRepl(os.Args[2:])
	case "eval":
		runEval(os.Args[2:])
	case "compile":
		runCompile(os.Args[2:])
	case "-h", "--help", "help":
		printUsage()
	default:
		// No recognized subcommand: treat the whole argv as REPL flags,
		// the same default-to-REPL behavior as a bare invocation.
		runRepl(os.Args[1:])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage:
  unlisp repl [-d|--dump-compiled] [--stdlib-path FILE] [--no-stdlib]
  unlisp eval -f FILE [--stdlib-path FILE] [--no-stdlib]
  unlisp compile -f FILE --runtime-lib-path FILE [-o OUT] [--stdlib-path FILE] [--no-stdlib]`)
}

func newSession(stdlibPath string, noStdlib, dumpIR bool) *driver.Session {
	s, err := driver.NewSession(stdlibPath, noStdlib, dumpIR)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(70)
	}
	return s
}

func runRepl(args []string) {
	fs := newFlagSet("repl")
	dump := fs.Bool("dump-compiled", false, "print each form's compiled LLVM IR before evaluating it")
	fs.BoolVar(dump, "d", false, "shorthand for --dump-compiled")
	stdlibPath, noStdlib := stdlibFlags(fs)
	fs.Parse(args)

	s := newSession(*stdlibPath, *noStdlib, *dump)
	s.Repl(os.Stdin, os.Stdout, os.Stderr)
}

func runEval(args []string) {
	fs := newFlagSet("eval")
	file := fs.String("f", "", "source file to evaluate")
	stdlibPath, noStdlib := stdlibFlags(fs)
	fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "eval: -f FILE is required")
		os.Exit(64)
	}

	s := newSession(*stdlibPath, *noStdlib, false)
	if !s.EvalFile(*file) {
		os.Exit(1)
	}
}

func runCompile(args []string) {
	fs := newFlagSet("compile")
	file := fs.String("f", "", "source file to compile")
	out := fs.String("o", "a.out", "output binary path")
	runtimeLibPath := fs.String("runtime-lib-path", "", "path to the linkable runtime archive")
	stdlibPath, noStdlib := stdlibFlags(fs)
	fs.Parse(args)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "compile: -f FILE is required")
		os.Exit(64)
	}
	if *runtimeLibPath == "" {
		fmt.Fprintln(os.Stderr, "compile: --runtime-lib-path FILE is required")
		os.Exit(64)
	}

	s := newSession(*stdlibPath, *noStdlib, false)

	content, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %q: %s\n", *file, err.Error())
		os.Exit(70)
	}

	nodes, buildErr := driver.BuildFile(string(content))
	if buildErr != nil {
		fmt.Fprintln(os.Stderr, buildErr.Error())
		os.Exit(70)
	}

	if err := s.CompileToFile(nodes, *out, *runtimeLibPath); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(70)
	}
}
