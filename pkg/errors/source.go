package errors

import (
	"path/filepath"
	"strings"
)

// Source is one unit of Unlisp input: a file, a REPL line, or a bare
// eval string. Position values point into a Source so a diagnostic
// can name where its text came from and, for file input, quote the
// offending line.
type Source struct {
	Label string // "<repl>", "<eval>", or the file's base name
	Path  string // full path for file input, "" otherwise
	Text  string

	lines []string // lazily split Text, for snippets
}

// FileSource wraps the content of the file at path.
func FileSource(path, text string) *Source {
	return &Source{Label: filepath.Base(path), Path: path, Text: text}
}

// ReplSource wraps one chunk of REPL input.
func ReplSource(text string) *Source {
	return &Source{Label: "<repl>", Text: text}
}

// NamedSource wraps non-file input under an arbitrary label, e.g.
// "<eval>" or the path of a file whose lines shouldn't be quoted back.
func NamedSource(label, text string) *Source {
	return &Source{Label: label, Text: text}
}

// origin is what a diagnostic prefixes its line:column with: the full
// path for file input, the label otherwise.
func (s *Source) origin() string {
	if s.Path != "" {
		return s.Path
	}
	return s.Label
}

// line returns the 1-based nth line of the text.
func (s *Source) line(n int) (string, bool) {
	if s.lines == nil {
		s.lines = strings.Split(s.Text, "\n")
	}
	if n < 1 || n > len(s.lines) {
		return "", false
	}
	return s.lines[n-1], true
}
