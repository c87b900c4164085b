package main

import (
	"flag"
	"os"
)

// newFlagSet builds a subcommand's flag set with ExitOnError; a usage
// error prints the full subcommand synopsis and exits 64.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		printUsage()
		os.Exit(64)
	}
	return fs
}

// stdlibFlags registers the two flags every subcommand shares:
// --stdlib-path and --no-stdlib.
func stdlibFlags(fs *flag.FlagSet) (path *string, noStdlib *bool) {
	path = fs.String("stdlib-path", "", "stdlib source file (default ./stdlib.unl)")
	noStdlib = fs.Bool("no-stdlib", false, "skip loading the stdlib")
	return path, noStdlib
}
