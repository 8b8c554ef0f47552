// Package grammar implements the mixup statement language parser.
// ast.go defines the statement and generator variants a parsed program is
// made of. Each statement shape is its own type; which fields are legal
// for which keyword is fixed by the type, not by runtime convention.
package grammar

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mixuplang/mixup/labels"
	"github.com/mixuplang/mixup/parser/lexer"
	"github.com/mixuplang/mixup/parser/pattern"
)

// Statement keywords. The set is closed.
const (
	KwDefTokenProp    = "defTokenProp"
	KwDefSpanProp     = "defSpanProp"
	KwDefSpanType     = "defSpanType"
	KwDefDict         = "defDict"
	KwDeclareSpanType = "declareSpanType"
	KwProvide         = "provide"
	KwRequire         = "require"
	KwAnnotateWith    = "annotateWith"
	KwDefLevel        = "defLevel"
	KwOnLevel         = "onLevel"
	KwOffLevel        = "offLevel"
	KwImportFromLevel = "importFromLevel"
)

// Keywords is the closed set of legal statement keywords.
var Keywords = map[string]struct{}{
	KwDefTokenProp: {}, KwDefSpanProp: {}, KwDefSpanType: {}, KwDefDict: {},
	KwDeclareSpanType: {}, KwProvide: {}, KwRequire: {}, KwAnnotateWith: {},
	KwDefLevel: {}, KwOnLevel: {}, KwOffLevel: {}, KwImportFromLevel: {},
}

// Statement is one parsed program statement.
type Statement interface {
	Keyword() string
	Pos() lexer.Position
	String() string
}

// Declare registers a span type with no instances.
type Declare struct {
	Type     string
	Position lexer.Position
}

func (s *Declare) Keyword() string     { return KwDeclareSpanType }
func (s *Declare) Pos() lexer.Position { return s.Position }
func (s *Declare) String() string      { return KwDeclareSpanType + " " + s.Type }

// Provide marks an annotation type as satisfied by this program.
type Provide struct {
	AnnotationType string
	Position       lexer.Position
}

func (s *Provide) Keyword() string     { return KwProvide }
func (s *Provide) Pos() lexer.Position { return s.Position }
func (s *Provide) String() string      { return fmt.Sprintf("%s %q", KwProvide, s.AnnotationType) }

// Require asserts an annotation type is already labeled, naming an
// optional fallback annotation source.
type Require struct {
	AnnotationType string
	File           string // optional
	Position       lexer.Position
}

func (s *Require) Keyword() string     { return KwRequire }
func (s *Require) Pos() lexer.Position { return s.Position }
func (s *Require) String() string {
	if s.File == "" {
		return fmt.Sprintf("%s %q", KwRequire, s.AnnotationType)
	}
	return fmt.Sprintf("%s %q, %q", KwRequire, s.AnnotationType, s.File)
}

// AnnotateWith loads and runs an external annotator at evaluation time.
type AnnotateWith struct {
	File     string
	Position lexer.Position
}

func (s *AnnotateWith) Keyword() string     { return KwAnnotateWith }
func (s *AnnotateWith) Pos() lexer.Position { return s.Position }
func (s *AnnotateWith) String() string      { return fmt.Sprintf("%s %q", KwAnnotateWith, s.File) }

// DefDict defines a named word set. Words are already normalized per the
// statement's case policy.
type DefDict struct {
	Name          string
	CaseSensitive bool
	Words         []string // sorted, deduplicated
	Position      lexer.Position
}

func (s *DefDict) Keyword() string     { return KwDefDict }
func (s *DefDict) Pos() lexer.Position { return s.Position }
func (s *DefDict) String() string {
	kw := KwDefDict
	if s.CaseSensitive {
		kw += " +case"
	}
	return fmt.Sprintf("%s %s = %s", kw, s.Name, strings.Join(s.Words, ", "))
}

// DefLevel creates a named tokenization level.
type DefLevel struct {
	Name     string
	Strategy string // re | split | filter | pseudotoken
	Pattern  string
	Position lexer.Position
}

func (s *DefLevel) Keyword() string     { return KwDefLevel }
func (s *DefLevel) Pos() lexer.Position { return s.Position }
func (s *DefLevel) String() string {
	return fmt.Sprintf("%s %s = %s '%s'", KwDefLevel, s.Name, s.Strategy, s.Pattern)
}

// OnLevel activates a named level.
type OnLevel struct {
	Name     string
	Position lexer.Position
}

func (s *OnLevel) Keyword() string     { return KwOnLevel }
func (s *OnLevel) Pos() lexer.Position { return s.Position }
func (s *OnLevel) String() string      { return KwOnLevel + " " + s.Name }

// OffLevel returns to the base level. Any argument given in the source is
// ignored; the reset target is always the original level.
type OffLevel struct {
	Position lexer.Position
}

func (s *OffLevel) Keyword() string     { return KwOffLevel }
func (s *OffLevel) Pos() lexer.Position { return s.Position }
func (s *OffLevel) String() string      { return KwOffLevel }

// ImportFromLevel copies a type's labeling from another level into the
// current one under a new name.
type ImportFromLevel struct {
	SourceLevel string
	SourceType  string
	DestType    string
	Position    lexer.Position
}

func (s *ImportFromLevel) Keyword() string     { return KwImportFromLevel }
func (s *ImportFromLevel) Pos() lexer.Position { return s.Position }
func (s *ImportFromLevel) String() string {
	return fmt.Sprintf("%s %s %s = %s", KwImportFromLevel, s.SourceLevel, s.DestType, s.SourceType)
}

// Effect is what a labeling statement does with each generated span.
type Effect interface {
	effect()
	String() string
}

// SpanType adds each span to a type.
type SpanType struct{ Type string }

func (SpanType) effect()          {}
func (e SpanType) String() string { return e.Type }

// SpanProperty sets a property on each span.
type SpanProperty struct{ Key, Value string }

func (SpanProperty) effect()          {}
func (e SpanProperty) String() string { return e.Key + ":" + e.Value }

// TokenProperty sets a property on every token contained in each span.
type TokenProperty struct{ Key, Value string }

func (TokenProperty) effect()          {}
func (e TokenProperty) String() string { return e.Key + ":" + e.Value }

// Scope selects the input span sequence of a labeling statement: all
// document-level spans, or the instances of a previously labeled type.
// Resolution happens at evaluation time, not parse time.
type Scope struct {
	Type string // empty means top
}

func (s Scope) IsTop() bool { return s.Type == "" }

func (s Scope) String() string { return s.Type }

// Generator derives output spans from an input span sequence.
type Generator interface {
	GeneratorType() string
	String() string
}

// Match extracts spans with a pattern expression, applying effects as
// each span is produced.
type Match struct{ Expr *pattern.Expr }

func (*Match) GeneratorType() string { return "match" }
func (g *Match) String() string      { return ": " + g.Expr.String() }

// Filter selects the input spans from which the expression extracts
// nothing. Evaluation is two-phase so the filter's own output cannot
// change its own predicate mid-statement.
type Filter struct{ Expr *pattern.Expr }

func (*Filter) GeneratorType() string { return "filter" }
func (g *Filter) String() string      { return "- " + g.Expr.String() }

// RegexExtract runs a regex over each input span's text and maps the
// chosen capture group back to token-aligned subspans.
type RegexExtract struct {
	Pattern string
	Group   int
	Regexp  *regexp.Regexp
}

func (*RegexExtract) GeneratorType() string { return "regex" }
func (g *RegexExtract) String() string {
	return fmt.Sprintf("~ re '%s', %d", strings.ReplaceAll(g.Pattern, "'", `\'`), g.Group)
}

// TrieExtract queries a phrase trie for matching subspans.
type TrieExtract struct {
	Trie    *labels.Trie
	Phrases []string // source phrases, kept for program printing
}

func (*TrieExtract) GeneratorType() string { return "trie" }
func (g *TrieExtract) String() string      { return "~ trie " + strings.Join(g.Phrases, ", ") }

// Labeling is a generator statement: defSpanType, defSpanProp or
// defTokenProp, depending on the effect.
type Labeling struct {
	Word     string // the source keyword
	Effect   Effect
	Scope    Scope
	Gen      Generator
	Position lexer.Position
}

func (s *Labeling) Keyword() string     { return s.Word }
func (s *Labeling) Pos() lexer.Position { return s.Position }
func (s *Labeling) String() string {
	return fmt.Sprintf("%s %s =%s%s", s.Word, s.Effect, s.Scope, s.Gen)
}

// Program is an ordered, immutable sequence of parsed statements.
type Program struct {
	Statements []Statement
}

// String lists the program one statement per line, semicolon-terminated.
// The output parses back to a program with the same statement sequence;
// literal values may be normalized.
func (p *Program) String() string {
	var b strings.Builder
	for _, s := range p.Statements {
		b.WriteString(s.String())
		b.WriteString(";\n")
	}
	return b.String()
}
