package grammar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mixuplang/mixup/parser/lexer"
)

func parseOne(t *testing.T, src string) Statement {
	t.Helper()
	p, err := ParseString(src)
	require.NoError(t, err)
	require.Len(t, p.Statements, 1)
	return p.Statements[0]
}

func TestSimpleStatements(t *testing.T) {
	st := parseOne(t, "declareSpanType person;")
	require.Equal(t, &Declare{Type: "person", Position: st.Pos()}, st)

	st = parseOne(t, "provide 'names';")
	require.Equal(t, "names", st.(*Provide).AnnotationType)

	st = parseOne(t, "annotateWith date;")
	require.Equal(t, "date", st.(*AnnotateWith).File)

	st = parseOne(t, "onLevel sent;")
	require.Equal(t, "sent", st.(*OnLevel).Name)

	_ = parseOne(t, "offLevel;").(*OffLevel)
	_ = parseOne(t, "offLevel sent;").(*OffLevel)
}

func TestRequire(t *testing.T) {
	st := parseOne(t, "require person;").(*Require)
	require.Equal(t, "person", st.AnnotationType)
	require.Empty(t, st.File)

	st = parseOne(t, "require addr, 'addr.mixup';").(*Require)
	require.Equal(t, "addr", st.AnnotationType)
	require.Equal(t, "addr.mixup", st.File)

	_, err := ParseString("require addr 'addr.mixup';")
	require.Error(t, err)
}

func TestImportFromLevel(t *testing.T) {
	st := parseOne(t, "importFromLevel sent sentence = firstSent;").(*ImportFromLevel)
	require.Equal(t, "sent", st.SourceLevel)
	require.Equal(t, "firstSent", st.SourceType)
	require.Equal(t, "sentence", st.DestType)
}

func TestDefLevel(t *testing.T) {
	st := parseOne(t, "defLevel sent = split '.';").(*DefLevel)
	require.Equal(t, "sent", st.Name)
	require.Equal(t, "split", st.Strategy)
	require.Equal(t, ".", st.Pattern)

	_, err := ParseString("defLevel sent = chunk '.';")
	require.Error(t, err)
}

func TestDefDict(t *testing.T) {
	st := parseOne(t, "defDict titles = Dr, mr, PROF, dr;").(*DefDict)
	require.False(t, st.CaseSensitive)
	require.Equal(t, []string{"dr", "mr", "prof"}, st.Words)

	st = parseOne(t, "defDict +case Exact = Dr, mr;").(*DefDict)
	require.True(t, st.CaseSensitive)
	require.Equal(t, "Exact", st.Name)
	require.Equal(t, []string{"Dr", "mr"}, st.Words)

	_, err := ParseString("defDict d = a b;")
	require.Error(t, err)
	_, err = ParseString("defDict + notcase d = a;")
	require.Error(t, err)
}

func TestDefDictFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("Alpha\nBeta\n"), 0o644))

	st := parseOne(t, `defDict d = "`+path+`", gamma;`).(*DefDict)
	require.Equal(t, []string{"alpha", "beta", "gamma"}, st.Words)

	_, err := ParseString(`defDict d = "` + filepath.Join(dir, "missing.txt") + `";`)
	require.Error(t, err)
}

func TestKeywordOperatorPairing(t *testing.T) {
	// a ':' property form under a type keyword
	_, err := ParseString("defSpanType x : v = : [any];")
	require.ErrorContains(t, err, "can't define properties here")

	// a '=' type form under a property keyword
	_, err = ParseString("defTokenProp x = : [any];")
	require.ErrorContains(t, err, "illegal keyword usage")

	_, err = ParseString("frobnicate x;")
	require.ErrorContains(t, err, "unknown statement keyword")
}

func TestLabelingForms(t *testing.T) {
	st := parseOne(t, "defSpanType name = person: [re('^[A-Z]')+] ;").(*Labeling)
	require.Equal(t, SpanType{Type: "name"}, st.Effect)
	require.Equal(t, "person", st.Scope.Type)
	require.IsType(t, &Match{}, st.Gen)

	st = parseOne(t, "defSpanProp kind:greeting = : [ ... eqi('hello') ... ] ;").(*Labeling)
	require.Equal(t, SpanProperty{Key: "kind", Value: "greeting"}, st.Effect)
	require.True(t, st.Scope.IsTop())

	st = parseOne(t, "defTokenProp cap:y = person - [eq('x')] ... ;").(*Labeling)
	require.Equal(t, TokenProperty{Key: "cap", Value: "y"}, st.Effect)
	require.IsType(t, &Filter{}, st.Gen)
}

func TestRegexGenerator(t *testing.T) {
	st := parseOne(t, `defSpanType num = ~ re '([0-9]+)', 1;`).(*Labeling)
	gen := st.Gen.(*RegexExtract)
	require.Equal(t, "([0-9]+)", gen.Pattern)
	require.Equal(t, 1, gen.Group)

	st = parseOne(t, `defSpanType q = ~ re 'a\'b', 0;`).(*Labeling)
	require.Equal(t, "a'b", st.Gen.(*RegexExtract).Pattern)

	_, err := ParseString(`defSpanType t = ~ re '(a)', 2;`)
	require.ErrorContains(t, err, "no capture group")
	_, err = ParseString(`defSpanType t = ~ re '(', 0;`)
	require.ErrorContains(t, err, "bad regex")
	_, err = ParseString(`defSpanType t = ~ re '(a)', x;`)
	require.ErrorContains(t, err, "group number")
}

func TestTrieGenerator(t *testing.T) {
	st := parseOne(t, "defSpanType city = ~ trie new york, chicago;").(*Labeling)
	gen := st.Gen.(*TrieExtract)
	require.Equal(t, []string{"new york", "chicago"}, gen.Phrases)
	require.Equal(t, 2, gen.Trie.Size())

	_, err := ParseString("defSpanType city = ~ trie ;")
	require.Error(t, err)
}

func TestTrieGeneratorFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cities.txt")
	require.NoError(t, os.WriteFile(path, []byte("New York\nChicago\n"), 0o644))

	st := parseOne(t, `defSpanType city = ~ trie "`+path+`", boston;`).(*Labeling)
	gen := st.Gen.(*TrieExtract)
	require.Equal(t, 3, gen.Trie.Size())
	require.Equal(t, []string{`"` + path + `"`, "boston"}, gen.Phrases)
}

func TestCommentStrippingIsNaive(t *testing.T) {
	// '//' inside a quoted regex still starts a comment, leaving the
	// quote unterminated
	_, err := ParseString("defSpanType u = : [re('http://x')] ;")
	require.Error(t, err)

	p, err := ParseString("provide 'x'; // done\ndeclareSpanType t;")
	require.NoError(t, err)
	require.Len(t, p.Statements, 2)
}

func TestParseErrorsCarryPosition(t *testing.T) {
	_, err := ParseString("provide 'x';\ndefSpanType y : z = : [any];")
	require.Error(t, err)
	var pe *lexer.ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 2, pe.Pos.Line)
	require.Equal(t, KwDefSpanType, pe.Keyword)
}

func TestRoundTrip(t *testing.T) {
	src := `
declareSpanType person;
provide 'names';
defDict titles = Dr, mr, PROF;
defDict +case Exact = Dr;
defLevel sent = split '.';
onLevel sent;
defSpanType firstSent = : [any] ... ;
offLevel;
importFromLevel sent sentence = firstSent;
defTokenProp cap:y = : ... [re('^[A-Z]')] ... ;
defSpanProp kind:greeting = : [ ... eqi('hello') ... ] ;
defSpanType name = person: [re('^[A-Z]')+] ;
defSpanType num = ~ re '([0-9]+)', 1;
defSpanType q = ~ re 'a\'b', 0;
defSpanType city = ~ trie new york, chicago;
require addr, 'addr.mixup';
annotateWith date;
`
	p1, err := ParseString(src)
	require.NoError(t, err)
	p2, err := ParseString(p1.String())
	require.NoError(t, err)
	require.Equal(t, p1.String(), p2.String())
	require.Len(t, p2.Statements, len(p1.Statements))
}
