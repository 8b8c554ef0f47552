// Package lexer implements the token source for mixup programs.
// Statements are semicolon-terminated; the tokenizer reports the end of a
// statement as an empty token so statement parsers can consume exactly the
// tokens that belong to them.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
)

// Position identifies a location in a program source.
type Position struct {
	Line   int
	Column int
	Offset int
	File   string
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// ParseError reports a malformed statement. It carries the keyword being
// parsed, the approximate source position and a human-readable cause.
type ParseError struct {
	Pos     Position
	Keyword string
	Msg     string
	Cause   error
}

func (e *ParseError) Error() string {
	kw := e.Keyword
	if kw == "" {
		kw = "program"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s at %s: %v", kw, e.Msg, e.Pos, e.Cause)
	}
	return fmt.Sprintf("%s: %s at %s", kw, e.Msg, e.Pos)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Errorf builds a ParseError at the given position.
func Errorf(pos Position, keyword, format string, args ...interface{}) *ParseError {
	return &ParseError{Pos: pos, Keyword: keyword, Msg: fmt.Sprintf(format, args...)}
}

// Tokenizer scans a comment-stripped mixup program into string tokens.
//
// Token classes:
//   - words: runs of letters, digits, '_', '.' and '#' (so "..." and
//     "names.txt" are single tokens)
//   - quoted strings: '...' (with \' escapes) and "..." are returned as one
//     token including the surrounding quotes
//   - "||" is one token; any other punctuation is a single-rune token
//
// A ';' terminates the current statement: Advance returns an empty token
// instead of the semicolon.
type Tokenizer struct {
	src  []rune
	pos  int
	line int
	col  int
	file string
}

// New builds a Tokenizer for program text. Line comments are stripped
// first: everything from "//" to end of line is discarded, even inside
// quoted literals. Quote-aware stripping would change the meaning of
// existing programs, so the naive rule stands.
func New(program, file string) *Tokenizer {
	return &Tokenizer{src: []rune(StripComments(program)), line: 1, col: 1, file: file}
}

// StripComments removes // line comments, preserving line structure so
// token positions still point into the original source.
func StripComments(program string) string {
	lines := strings.Split(program, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, "//"); idx >= 0 {
			lines[i] = line[:idx]
		}
	}
	return strings.Join(lines, "\n")
}

// Pos reports the position of the next unconsumed rune.
func (t *Tokenizer) Pos() Position {
	return Position{Line: t.line, Column: t.col, Offset: t.pos, File: t.file}
}

func (t *Tokenizer) step() rune {
	r := t.src[t.pos]
	t.pos++
	if r == '\n' {
		t.line++
		t.col = 1
	} else {
		t.col++
	}
	return r
}

func (t *Tokenizer) skipSpace() {
	for t.pos < len(t.src) && unicode.IsSpace(t.src[t.pos]) {
		t.step()
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '#'
}

// Advance consumes and returns the next token of the current statement.
// At a statement terminator (';' or end of input) it returns an empty
// token and nil error. When expected is non-empty, a token outside the
// expected set is a ParseError.
func (t *Tokenizer) Advance(expected ...string) (string, error) {
	t.skipSpace()
	if t.pos >= len(t.src) {
		return t.checkExpected("", expected)
	}
	start := t.Pos()
	r := t.src[t.pos]
	switch {
	case r == ';':
		t.step()
		return t.checkExpected("", expected)
	case r == '\'' || r == '"':
		tok, err := t.scanQuoted(r, start)
		if err != nil {
			return "", err
		}
		return t.checkExpected(tok, expected)
	case isWordRune(r):
		var b strings.Builder
		for t.pos < len(t.src) && isWordRune(t.src[t.pos]) {
			b.WriteRune(t.step())
		}
		return t.checkExpected(b.String(), expected)
	case r == '|' && t.pos+1 < len(t.src) && t.src[t.pos+1] == '|':
		t.step()
		t.step()
		return t.checkExpected("||", expected)
	default:
		t.step()
		return t.checkExpected(string(r), expected)
	}
}

// scanQuoted reads a quoted token including its delimiters. Single-quoted
// tokens honor \' escapes, which are left in place for the parser to
// unescape.
func (t *Tokenizer) scanQuoted(quote rune, start Position) (string, error) {
	var b strings.Builder
	b.WriteRune(t.step())
	for t.pos < len(t.src) {
		r := t.step()
		if r == '\\' && quote == '\'' && t.pos < len(t.src) && t.src[t.pos] == '\'' {
			b.WriteRune(r)
			b.WriteRune(t.step())
			continue
		}
		b.WriteRune(r)
		if r == quote {
			return b.String(), nil
		}
	}
	return "", Errorf(start, "", "unterminated %c-quoted token", quote)
}

func (t *Tokenizer) checkExpected(tok string, expected []string) (string, error) {
	if len(expected) == 0 {
		return tok, nil
	}
	for _, e := range expected {
		if tok == e {
			return tok, nil
		}
	}
	if tok == "" {
		return "", Errorf(t.Pos(), "", "expected one of %q, got end of statement", expected)
	}
	return "", Errorf(t.Pos(), "", "expected one of %q, got %q", expected, tok)
}

// Keyword skips statement terminators and returns the next token, which
// callers validate as a statement keyword. The second result is false at
// end of input.
func (t *Tokenizer) Keyword() (string, bool, error) {
	for {
		t.skipSpace()
		if t.pos >= len(t.src) {
			return "", false, nil
		}
		if t.src[t.pos] == ';' {
			t.step()
			continue
		}
		tok, err := t.Advance()
		if err != nil {
			return "", false, err
		}
		if tok == "" {
			continue
		}
		return tok, true, nil
	}
}

// Drain consumes the remaining tokens of the current statement.
func (t *Tokenizer) Drain() ([]string, error) {
	var toks []string
	for {
		tok, err := t.Advance()
		if err != nil {
			return nil, err
		}
		if tok == "" {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}
