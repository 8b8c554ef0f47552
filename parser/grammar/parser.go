// parser.go contains the statement parsing logic: the keyword-directed
// grammar dispatcher, the dictionary and trie builders and the generator
// compiler. The same syntactic token (':', '=') has a different legal
// meaning depending on the statement keyword, so parsing is driven by the
// keyword consumed first.
package grammar

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mixuplang/mixup/labels"
	"github.com/mixuplang/mixup/parser/lexer"
	"github.com/mixuplang/mixup/parser/pattern"
)

// Parse reads a mixup program from r and returns the parsed Program.
func Parse(r io.Reader, filename string) (*Program, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseNamed(string(src), filename)
}

// ParseString parses a program held in a string.
func ParseString(src string) (*Program, error) {
	return ParseNamed(src, "")
}

// ParseFile parses the program contained in a file.
func ParseFile(path string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseNamed(string(src), path)
}

// ParseNamed parses program text, tracking filename in positions. A parse
// failure aborts the whole program; statements already parsed are
// discarded with it.
func ParseNamed(src, filename string) (*Program, error) {
	tok := lexer.New(src, filename)
	prog := &Program{}
	for {
		kw, ok, err := tok.Keyword()
		if err != nil {
			return nil, err
		}
		if !ok {
			return prog, nil
		}
		if _, legal := Keywords[kw]; !legal {
			return nil, lexer.Errorf(tok.Pos(), kw, "unknown statement keyword %q", kw)
		}
		st, err := parseStatement(tok, kw)
		if err != nil {
			return nil, withKeyword(err, kw)
		}
		prog.Statements = append(prog.Statements, st)
	}
}

// withKeyword stamps the statement keyword onto position-only parse
// errors raised by the tokenizer.
func withKeyword(err error, kw string) error {
	if pe, ok := err.(*lexer.ParseError); ok && pe.Keyword == "" {
		pe.Keyword = kw
	}
	return err
}

// parseStatement consumes exactly the tokens belonging to the statement
// whose keyword was already read, up to and excluding the terminator.
func parseStatement(tok *lexer.Tokenizer, kw string) (Statement, error) {
	pos := tok.Pos()
	switch kw {
	case KwDeclareSpanType:
		t, err := tok.Advance()
		if err != nil {
			return nil, err
		}
		if t == "" {
			return nil, lexer.Errorf(pos, kw, "expected a type name")
		}
		return &Declare{Type: t, Position: pos}, nil

	case KwProvide:
		t, err := requiredArg(tok, pos, kw, "an annotation type")
		if err != nil {
			return nil, err
		}
		return &Provide{AnnotationType: unquote(t), Position: pos}, nil

	case KwAnnotateWith:
		f, err := requiredArg(tok, pos, kw, "an annotator name")
		if err != nil {
			return nil, err
		}
		return &AnnotateWith{File: unquote(f), Position: pos}, nil

	case KwRequire:
		return parseRequire(tok, pos)

	case KwOnLevel:
		name, err := requiredArg(tok, pos, kw, "a level name")
		if err != nil {
			return nil, err
		}
		return &OnLevel{Name: unquote(name), Position: pos}, nil

	case KwOffLevel:
		// an argument may be given but the reset target is always the
		// original level
		if _, err := tok.Advance(); err != nil {
			return nil, err
		}
		return &OffLevel{Position: pos}, nil

	case KwImportFromLevel:
		return parseImportFromLevel(tok, pos)

	case KwDefDict:
		return parseDefDict(tok, pos)

	case KwDefLevel:
		return parseDefLevel(tok, pos)

	default: // defSpanType, defSpanProp, defTokenProp
		return parseLabeling(tok, kw, pos)
	}
}

func requiredArg(tok *lexer.Tokenizer, pos lexer.Position, kw, what string) (string, error) {
	t, err := tok.Advance()
	if err != nil {
		return "", err
	}
	if t == "" {
		return "", lexer.Errorf(pos, kw, "expected %s", what)
	}
	return t, nil
}

func parseRequire(tok *lexer.Tokenizer, pos lexer.Position) (Statement, error) {
	t, err := requiredArg(tok, pos, KwRequire, "an annotation type")
	if err != nil {
		return nil, err
	}
	st := &Require{AnnotationType: unquote(t), Position: pos}
	sep, err := tok.Advance()
	if err != nil {
		return nil, err
	}
	if sep == "" {
		return st, nil
	}
	if sep != "," {
		return nil, lexer.Errorf(pos, KwRequire, "expected ',' before companion file, got %q", sep)
	}
	f, err := requiredArg(tok, pos, KwRequire, "a companion file name")
	if err != nil {
		return nil, err
	}
	st.File = unquote(f)
	return st, nil
}

func parseImportFromLevel(tok *lexer.Tokenizer, pos lexer.Position) (Statement, error) {
	level, err := requiredArg(tok, pos, KwImportFromLevel, "a source level name")
	if err != nil {
		return nil, err
	}
	newType, err := requiredArg(tok, pos, KwImportFromLevel, "a destination type name")
	if err != nil {
		return nil, err
	}
	if _, err := tok.Advance("="); err != nil {
		return nil, err
	}
	oldType, err := requiredArg(tok, pos, KwImportFromLevel, "a source type name")
	if err != nil {
		return nil, err
	}
	return &ImportFromLevel{
		SourceLevel: unquote(level),
		SourceType:  oldType,
		DestType:    newType,
		Position:    pos,
	}, nil
}

// parseDefDict is the dictionary builder: a comma-separated run of words
// (or double-quoted file references) under a case policy fixed by the
// optional +case modifier.
func parseDefDict(tok *lexer.Tokenizer, pos lexer.Position) (Statement, error) {
	first, err := requiredArg(tok, pos, KwDefDict, "a dictionary name")
	if err != nil {
		return nil, err
	}
	caseSensitive := false
	name := first
	if first == "+" {
		if _, err := tok.Advance("case"); err != nil {
			return nil, lexer.Errorf(pos, KwDefDict, "illegal defDict modifier, expected '+case'")
		}
		caseSensitive = true
		name, err = tok.Advance()
		if err != nil {
			return nil, err
		}
		if name == "" {
			return nil, lexer.Errorf(pos, KwDefDict, "'+case' must be followed by a dictionary name")
		}
	}
	if _, err := tok.Advance("="); err != nil {
		return nil, err
	}

	words := map[string]struct{}{}
	insert := func(w string) {
		if !caseSensitive {
			w = strings.ToLower(w)
		}
		words[w] = struct{}{}
	}
	for {
		w, err := tok.Advance()
		if err != nil {
			return nil, err
		}
		if w == "" {
			return nil, lexer.Errorf(pos, KwDefDict, "expected a word")
		}
		if isFileRef(w) {
			path := unquote(w)
			lines, err := readLines(path)
			if err != nil {
				return nil, &lexer.ParseError{Pos: pos, Keyword: KwDefDict, Msg: fmt.Sprintf("error when reading %q", path), Cause: err}
			}
			for _, line := range lines {
				insert(strings.TrimSpace(line))
			}
		} else {
			insert(unquote(w))
		}
		sep, err := tok.Advance()
		if err != nil {
			return nil, err
		}
		if sep == "" {
			break
		}
		if sep != "," {
			return nil, lexer.Errorf(pos, KwDefDict, "expected comma, got %q", sep)
		}
	}
	return &DefDict{
		Name:          name,
		CaseSensitive: caseSensitive,
		Words:         sortedWords(words),
		Position:      pos,
	}, nil
}

func parseDefLevel(tok *lexer.Tokenizer, pos lexer.Position) (Statement, error) {
	name, err := requiredArg(tok, pos, KwDefLevel, "a level name")
	if err != nil {
		return nil, err
	}
	if _, err := tok.Advance("="); err != nil {
		return nil, err
	}
	strategy, err := tok.Advance(labels.SplitRegex, labels.SplitLiteral, labels.SplitFilter, labels.SplitPseudotoken)
	if err != nil {
		return nil, err
	}
	patt, err := requiredArg(tok, pos, KwDefLevel, "a split pattern")
	if err != nil {
		return nil, err
	}
	return &DefLevel{Name: name, Strategy: strategy, Pattern: unquote(patt), Position: pos}, nil
}

// parseLabeling handles the three generator statements. Property
// statements require ':' before '='; type statements take '=' directly.
// Violating the keyword/operator pairing is a parse failure.
func parseLabeling(tok *lexer.Tokenizer, kw string, pos lexer.Position) (Statement, error) {
	name, err := requiredArg(tok, pos, kw, "a property or type name")
	if err != nil {
		return nil, err
	}
	op, err := tok.Advance(":", "=")
	if err != nil {
		return nil, err
	}

	var eff Effect
	switch op {
	case ":":
		if kw != KwDefSpanProp && kw != KwDefTokenProp {
			return nil, lexer.Errorf(pos, kw, "can't define properties here")
		}
		value, err := requiredArg(tok, pos, kw, "a property value")
		if err != nil {
			return nil, err
		}
		if _, err := tok.Advance("="); err != nil {
			return nil, err
		}
		if kw == KwDefSpanProp {
			eff = SpanProperty{Key: name, Value: unquote(value)}
		} else {
			eff = TokenProperty{Key: name, Value: unquote(value)}
		}
	default: // "="
		if kw != KwDefSpanType {
			return nil, lexer.Errorf(pos, kw, "illegal keyword usage, property statements need ':'")
		}
		eff = SpanType{Type: name}
	}

	scope, gen, err := parseGenerator(tok, kw, pos)
	if err != nil {
		return nil, err
	}
	return &Labeling{Word: kw, Effect: eff, Scope: scope, Gen: gen, Position: pos}, nil
}

// parseGenerator is the generator compiler. The token after '=' decides
// the scope: a generator-start marker means top scope, anything else is a
// type name that must be followed by a marker.
func parseGenerator(tok *lexer.Tokenizer, kw string, pos lexer.Position) (Scope, Generator, error) {
	first, err := tok.Advance()
	if err != nil {
		return Scope{}, nil, err
	}
	if first == "" {
		return Scope{}, nil, lexer.Errorf(pos, kw, "expected a generator")
	}
	scope := Scope{}
	marker := first
	if first != ":" && first != "-" && first != "~" {
		scope.Type = first
		marker, err = tok.Advance(":", "-", "~")
		if err != nil {
			return Scope{}, nil, err
		}
	}

	switch marker {
	case ":":
		expr, err := pattern.Compile(tok)
		if err != nil {
			return Scope{}, nil, err
		}
		return scope, &Match{Expr: expr}, nil
	case "-":
		expr, err := pattern.Compile(tok)
		if err != nil {
			return Scope{}, nil, err
		}
		return scope, &Filter{Expr: expr}, nil
	default: // "~"
		kind, err := tok.Advance("re", "trie")
		if err != nil {
			return Scope{}, nil, err
		}
		if kind == "re" {
			gen, err := parseRegexGenerator(tok, kw, pos)
			return scope, gen, err
		}
		gen, err := parseTrieGenerator(tok, kw, pos)
		return scope, gen, err
	}
}

func parseRegexGenerator(tok *lexer.Tokenizer, kw string, pos lexer.Position) (Generator, error) {
	raw, err := requiredArg(tok, pos, kw, "a quoted regex")
	if err != nil {
		return nil, err
	}
	rx := unquote(raw)
	if _, err := tok.Advance(","); err != nil {
		return nil, err
	}
	group, err := requiredArg(tok, pos, kw, "a regex group number")
	if err != nil {
		return nil, err
	}
	n, convErr := strconv.Atoi(group)
	if convErr != nil {
		return nil, lexer.Errorf(pos, kw, "expected a regex group number and saw %q", group)
	}
	re, reErr := regexp.Compile(rx)
	if reErr != nil {
		return nil, &lexer.ParseError{Pos: pos, Keyword: kw, Msg: fmt.Sprintf("bad regex %q", rx), Cause: reErr}
	}
	if n > re.NumSubexp() {
		return nil, lexer.Errorf(pos, kw, "regex %q has no capture group %d", rx, n)
	}
	return &RegexExtract{Pattern: rx, Group: n, Regexp: re}, nil
}

// parseTrieGenerator is the trie builder: whitespace-joined token runs
// separated by commas. The final accumulated phrase is appended even when
// the list ends without a trailing comma.
func parseTrieGenerator(tok *lexer.Tokenizer, kw string, pos lexer.Position) (Generator, error) {
	tr := labels.NewTrie()
	var phrases []string
	var current []string
	ordinal := 0

	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		defer func() { current = current[:0] }()
		if len(current) == 1 && isFileRef(current[0]) {
			path := unquote(current[0])
			lines, err := readLines(path)
			if err != nil {
				return &lexer.ParseError{Pos: pos, Keyword: kw, Msg: fmt.Sprintf("error when reading %q", path), Cause: err}
			}
			for i, line := range lines {
				tr.AddPhrase(fmt.Sprintf("%s.line.%d", path, i+1), labels.SplitWords(line))
			}
			phrases = append(phrases, current[0])
			ordinal++
			return nil
		}
		phrase := strings.Join(current, " ")
		tr.AddPhrase(fmt.Sprintf("phrase#%d", ordinal), labels.SplitWords(phrase))
		phrases = append(phrases, phrase)
		ordinal++
		return nil
	}

	for {
		w, err := tok.Advance()
		if err != nil {
			return nil, err
		}
		if w == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			break
		}
		if w == "," {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		current = append(current, w)
	}
	if tr.Size() == 0 {
		return nil, lexer.Errorf(pos, kw, "empty trie phrase list")
	}
	return &TrieExtract{Trie: tr, Phrases: phrases}, nil
}

func isFileRef(tok string) bool {
	return len(tok) >= 2 && strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`)
}

// unquote strips one matching pair of single or double quotes and
// unescapes \' sequences.
func unquote(t string) string {
	if len(t) >= 2 {
		if (t[0] == '\'' && t[len(t)-1] == '\'') || (t[0] == '"' && t[len(t)-1] == '"') {
			t = t[1 : len(t)-1]
		}
	}
	return strings.ReplaceAll(t, `\'`, "'")
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

func sortedWords(set map[string]struct{}) []string {
	ws := make([]string, 0, len(set))
	for w := range set {
		ws = append(ws, w)
	}
	sort.Strings(ws)
	return ws
}
