// Package labels holds the text/token/span representation and the
// monotonic label store that mixup programs evaluate against. Within one
// evaluation labels, properties and type declarations are only ever added
// or overwritten, never removed.
package labels

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Token is one lexical unit of a document at some tokenization level.
// Lo and Hi are character offsets into the document text.
type Token struct {
	Text string
	Lo   int
	Hi   int
}

// Document is a single text with its tokenization at one level.
type Document struct {
	ID     string
	Text   string
	Tokens []Token
}

// TextBase is an ordered collection of documents sharing one tokenization.
type TextBase struct {
	docs []*Document
	byID map[string]*Document
}

func NewTextBase() *TextBase {
	return &TextBase{byID: map[string]*Document{}}
}

// AddDocument tokenizes text with the default word/punctuation splitter
// and appends it under id.
func (tb *TextBase) AddDocument(id, text string) *Document {
	return tb.AddTokenized(id, text, SplitTokens(text))
}

// AddTokenized appends a document with a caller-supplied tokenization.
func (tb *TextBase) AddTokenized(id, text string, tokens []Token) *Document {
	doc := &Document{ID: id, Text: text, Tokens: tokens}
	tb.docs = append(tb.docs, doc)
	tb.byID[id] = doc
	return tb.byID[id]
}

// Documents returns the documents in insertion order.
func (tb *TextBase) Documents() []*Document { return tb.docs }

// Document looks a document up by id.
func (tb *TextBase) Document(id string) (*Document, bool) {
	d, ok := tb.byID[id]
	return d, ok
}

// SplitTokens is the default tokenizer: maximal runs of letters and digits
// become one token, every other non-space rune is a token by itself.
func SplitTokens(text string) []Token {
	var toks []Token
	runes := []rune(text)
	off := 0
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			off += len(string(r))
			i++
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			lo := off
			var b strings.Builder
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				b.WriteRune(runes[i])
				off += len(string(runes[i]))
				i++
			}
			toks = append(toks, Token{Text: b.String(), Lo: lo, Hi: off})
		default:
			lo := off
			off += len(string(r))
			i++
			toks = append(toks, Token{Text: string(r), Lo: lo, Hi: off})
		}
	}
	return toks
}

// SplitWords tokenizes text and returns just the token strings.
func SplitWords(text string) []string {
	toks := SplitTokens(text)
	words := make([]string, len(toks))
	for i, t := range toks {
		words[i] = t.Text
	}
	return words
}

// Span is a contiguous token range [Lo, Hi) over a document.
type Span struct {
	Doc *Document
	Lo  int
	Hi  int
}

// Len is the number of tokens in the span.
func (s Span) Len() int { return s.Hi - s.Lo }

// Token returns the i-th token of the span.
func (s Span) Token(i int) Token { return s.Doc.Tokens[s.Lo+i] }

// CharLo and CharHi are the span's character bounds in the document text.
func (s Span) CharLo() int {
	if s.Len() == 0 {
		return 0
	}
	return s.Doc.Tokens[s.Lo].Lo
}

func (s Span) CharHi() int {
	if s.Len() == 0 {
		return 0
	}
	return s.Doc.Tokens[s.Hi-1].Hi
}

// Text renders the span as the underlying document text it covers.
func (s Span) Text() string {
	if s.Len() == 0 {
		return ""
	}
	return s.Doc.Text[s.CharLo():s.CharHi()]
}

// SubSpan returns the token range [lo, hi) relative to the span start.
func (s Span) SubSpan(lo, hi int) Span {
	return Span{Doc: s.Doc, Lo: s.Lo + lo, Hi: s.Lo + hi}
}

// CharAlignedSubSpan maps a character range (relative to the document) to
// the token-aligned subspan with exactly those boundaries. The second
// result is false when no token boundaries line up, in which case callers
// are expected to skip the range rather than fail.
func (s Span) CharAlignedSubSpan(charLo, charHi int) (Span, bool) {
	lo, hi := -1, -1
	for i := s.Lo; i < s.Hi; i++ {
		if s.Doc.Tokens[i].Lo == charLo {
			lo = i
		}
		if s.Doc.Tokens[i].Hi == charHi {
			hi = i + 1
		}
	}
	if lo < 0 || hi < 0 || lo >= hi {
		return Span{}, false
	}
	return Span{Doc: s.Doc, Lo: lo, Hi: hi}, true
}

// Compare orders spans by document id, then start, then end. This is the
// natural ordering filter statements sort by.
func (s Span) Compare(o Span) int {
	if c := strings.Compare(s.Doc.ID, o.Doc.ID); c != 0 {
		return c
	}
	if s.Lo != o.Lo {
		return s.Lo - o.Lo
	}
	return s.Hi - o.Hi
}

func (s Span) String() string {
	return fmt.Sprintf("%s[%d:%d]", s.Doc.ID, s.Lo, s.Hi)
}

// SortSpans orders spans by their natural ordering, in place.
func SortSpans(spans []Span) {
	sort.Slice(spans, func(i, j int) bool { return spans[i].Compare(spans[j]) < 0 })
}
