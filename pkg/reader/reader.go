// Package reader turns a token stream into a tree of Unlisp forms: a
// recursive-descent reader that knows nothing about HIR or code
// generation, only about the shape of the surface syntax.
package reader

import (
	"fmt"

	"unlisp/pkg/errors"
	"unlisp/pkg/lexer"
)

// Form is the parsed representation of one s-expression. The reader
// produces a tree of Forms; the HIR builder (pkg/hir) consumes it.
type Form interface {
	formNode()
	Pos() errors.Position
}

// IntForm is an integer literal form, e.g. 42 or -7.
type IntForm struct {
	Value    int64
	Position errors.Position
}

func (f *IntForm) formNode()            {}
func (f *IntForm) Pos() errors.Position { return f.Position }

// SymbolForm is a bare identifier, e.g. foo, +, set-fn.
type SymbolForm struct {
	Name     string
	Position errors.Position
}

func (f *SymbolForm) formNode()            {}
func (f *SymbolForm) Pos() errors.Position { return f.Position }

// ListForm is a parenthesized sequence of forms. A ListForm with zero
// elements is "nil": the reader never produces a distinct nil symbol,
// only an empty list.
type ListForm struct {
	Elements []Form
	Position errors.Position
}

func (f *ListForm) formNode()            {}
func (f *ListForm) Pos() errors.Position { return f.Position }

// IsNil reports whether this list form is the empty list.
func (f *ListForm) IsNil() bool { return len(f.Elements) == 0 }

// Reader consumes a token stream and produces Forms.
type Reader struct {
	lex  *lexer.Lexer
	tok  lexer.Token
	peek lexer.Token
}

// New creates a Reader over the given lexer, primed with the first
// two tokens of lookahead it needs for list/atom dispatch.
func New(lex *lexer.Lexer) *Reader {
	r := &Reader{lex: lex}
	r.advance()
	r.advance()
	return r
}

func (r *Reader) advance() {
	r.tok = r.peek
	r.peek = r.lex.NextToken()
}

func (r *Reader) pos(tok lexer.Token) errors.Position {
	return errors.Position{
		Line:     tok.Line,
		Column:   tok.Column,
		StartPos: tok.StartPos,
		EndPos:   tok.EndPos,
		Source:   r.lex.GetSource(),
	}
}

// ReadAll reads every top-level form until EOF.
func ReadAll(lex *lexer.Lexer) ([]Form, *errors.SyntaxError) {
	r := New(lex)
	var forms []Form
	for r.tok.Type != lexer.EOF {
		form, err := r.readForm()
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, nil
}

// readForm reads exactly one form starting at the current token.
func (r *Reader) readForm() (Form, *errors.SyntaxError) {
	switch r.tok.Type {
	case lexer.EOF:
		return nil, &errors.SyntaxError{Position: r.pos(r.tok), Msg: "unexpected end of input"}
	case lexer.LPAREN:
		return r.readList()
	case lexer.RPAREN:
		return nil, &errors.SyntaxError{Position: r.pos(r.tok), Msg: "unexpected ')'"}
	case lexer.INT:
		return r.readInt()
	case lexer.SYMBOL:
		pos := r.pos(r.tok)
		// "nil" reads as the empty list, not a distinct symbol, so
		// every later stage only ever sees an empty ListForm.
		if r.tok.Literal == "nil" {
			r.advance()
			return &ListForm{Position: pos}, nil
		}
		form := &SymbolForm{Name: r.tok.Literal, Position: pos}
		r.advance()
		return form, nil
	default:
		return nil, &errors.SyntaxError{Position: r.pos(r.tok), Msg: fmt.Sprintf("unexpected token %q", r.tok.Literal)}
	}
}

func (r *Reader) readInt() (Form, *errors.SyntaxError) {
	tok := r.tok
	var v int64
	neg := false
	s := tok.Literal
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for _, c := range s {
		v = v*10 + int64(c-'0')
	}
	if neg {
		v = -v
	}
	r.advance()
	return &IntForm{Value: v, Position: r.pos(tok)}, nil
}

func (r *Reader) readList() (Form, *errors.SyntaxError) {
	start := r.tok
	r.advance() // consume '('
	var elems []Form
	for r.tok.Type != lexer.RPAREN {
		if r.tok.Type == lexer.EOF {
			return nil, &errors.SyntaxError{Position: r.pos(start), Msg: "unterminated list: missing ')'"}
		}
		elem, err := r.readForm()
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}
	r.advance() // consume ')'
	return &ListForm{Elements: elems, Position: r.pos(start)}, nil
}
