package labels

import (
	"fmt"
	"regexp"
	"strings"
)

// Level split strategies accepted by defLevel.
const (
	SplitRegex       = "re"
	SplitLiteral     = "split"
	SplitFilter      = "filter"
	SplitPseudotoken = "pseudotoken"
)

// CreateLevel registers a named tokenization level derived from the base
// level's documents:
//
//	re:          tokens are the pattern's matches in the document text
//	split:       the text is split on the literal pattern, pieces trimmed
//	filter:      base tokens whose text matches the pattern are kept
//	pseudotoken: maximal runs of matching base tokens collapse into one token
func (st *Store) CreateLevel(name, strategy, pattern string) error {
	base := st.levels[BaseLevel]
	var re *regexp.Regexp
	switch strategy {
	case SplitRegex, SplitFilter, SplitPseudotoken:
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("level %q: bad pattern: %w", name, err)
		}
	case SplitLiteral:
	default:
		return fmt.Errorf("level %q: unknown split strategy %q", name, strategy)
	}

	tb := NewTextBase()
	for _, doc := range base.Base.docs {
		var toks []Token
		switch strategy {
		case SplitRegex:
			for _, m := range re.FindAllStringIndex(doc.Text, -1) {
				toks = append(toks, Token{Text: doc.Text[m[0]:m[1]], Lo: m[0], Hi: m[1]})
			}
		case SplitLiteral:
			toks = splitLiteralTokens(doc.Text, pattern)
		case SplitFilter:
			for _, t := range doc.Tokens {
				if re.MatchString(t.Text) {
					toks = append(toks, t)
				}
			}
		case SplitPseudotoken:
			toks = pseudoTokens(doc, re)
		}
		tb.AddTokenized(doc.ID, doc.Text, toks)
	}
	st.levels[name] = newLevel(name, tb)
	return nil
}

func splitLiteralTokens(text, sep string) []Token {
	if sep == "" {
		return SplitTokens(text)
	}
	var toks []Token
	off := 0
	for _, piece := range strings.Split(text, sep) {
		trimmed := strings.TrimSpace(piece)
		if trimmed != "" {
			lo := off + strings.Index(piece, trimmed)
			toks = append(toks, Token{Text: trimmed, Lo: lo, Hi: lo + len(trimmed)})
		}
		off += len(piece) + len(sep)
	}
	return toks
}

func pseudoTokens(doc *Document, re *regexp.Regexp) []Token {
	var toks []Token
	i := 0
	for i < len(doc.Tokens) {
		if !re.MatchString(doc.Tokens[i].Text) {
			toks = append(toks, doc.Tokens[i])
			i++
			continue
		}
		j := i
		for j < len(doc.Tokens) && re.MatchString(doc.Tokens[j].Text) {
			j++
		}
		lo, hi := doc.Tokens[i].Lo, doc.Tokens[j-1].Hi
		toks = append(toks, Token{Text: doc.Text[lo:hi], Lo: lo, Hi: hi})
		i = j
	}
	return toks
}

// ImportFromLevel copies oldType's labeling from another level into the
// current level under newType. Spans travel by character range; spans
// whose bounds do not line up with token boundaries on the current level
// are skipped, mirroring best-effort regex extraction.
func (st *Store) ImportFromLevel(level, oldType, newType string) error {
	src, ok := st.levels[level]
	if !ok {
		return fmt.Errorf("no level %q defined", level)
	}
	ss, ok := src.types[oldType]
	if !ok {
		return fmt.Errorf("no type %q defined on level %q", oldType, level)
	}
	st.DeclareType(newType)
	for _, sp := range ss.spans {
		doc, ok := st.level().Base.Document(sp.Doc.ID)
		if !ok {
			continue
		}
		whole := Span{Doc: doc, Lo: 0, Hi: len(doc.Tokens)}
		if img, ok := whole.CharAlignedSubSpan(sp.CharLo(), sp.CharHi()); ok {
			st.AddToType(img, newType)
		}
	}
	return nil
}
