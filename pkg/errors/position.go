package errors

import (
	"fmt"
)

// Position represents a specific location in the source code.
// It includes line and column numbers (1-based) for human-readability,
// and byte offsets (0-based) for potential use in tooling (like LSP).
type Position struct {
	Line     int     // 1-based line number
	Column   int     // 1-based column number (rune index within the line)
	StartPos int     // 0-based byte offset of the start of the token/error span
	EndPos   int     // 0-based byte offset of the end of the token/error span (exclusive)
	Source   *Source // the input the span points into
}

// locate renders this Position's line:column prefixed with its
// source's origin, so a diagnostic names an input a reader can open
// rather than just a bare line number. Falls back to plain
// line:column when no source is attached (RuntimeError/InternalError
// positions are usually the zero value).
func (p Position) locate() string {
	if p.Source == nil {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.Source.origin(), p.Line, p.Column)
}

// snippet quotes the offending source line beneath a diagnostic,
// skipped for REPL/eval input (already visible in the terminal the
// user typed it into) and for positions with no attached source or an
// out-of-range line.
func (p Position) snippet() string {
	if p.Source == nil || p.Source.Path == "" {
		return ""
	}
	line, ok := p.Source.line(p.Line)
	if !ok {
		return ""
	}
	return "\n\t" + line
}
