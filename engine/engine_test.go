package engine

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/require"

	"github.com/mixuplang/mixup/labels"
	"github.com/mixuplang/mixup/parser/grammar"
)

func quiet() *Evaluator {
	return &Evaluator{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func runProgram(t *testing.T, src string, texts ...string) *labels.Store {
	t.Helper()
	tb := labels.NewTextBase()
	for i, text := range texts {
		tb.AddDocument(string(rune('a'+i)), text)
	}
	st := labels.NewStore(tb)
	prog, err := grammar.ParseString(src)
	require.NoError(t, err)
	require.NoError(t, quiet().Run(prog, st))
	return st
}

func instanceTexts(st *labels.Store, typ string) []string {
	var out []string
	for _, sp := range st.InstancesOf(typ) {
		out = append(out, sp.Text())
	}
	return out
}

func TestMatchLabelsSpans(t *testing.T) {
	st := runProgram(t, `
defSpanType name = : ... [re('^[A-Z]') re('^[A-Z]')] ... ;
`, "yesterday Bob Smith arrived")
	require.Equal(t, []string{"Bob Smith"}, instanceTexts(st, "name"))
}

func TestTypeDeclaredEvenWithoutMatches(t *testing.T) {
	st := runProgram(t, `defSpanType ghost = : ... [eq('zzz')] ... ;`, "a b")
	require.True(t, st.IsType("ghost"))
	require.Empty(t, st.InstancesOf("ghost"))
}

func TestNamedScope(t *testing.T) {
	st := runProgram(t, `
defSpanType pair = : ... [re('^[A-Z]') re('^[A-Z]')] ... ;
defSpanProp kind:name = pair: [any+] ;
`, "met Bob Smith today")
	sp := st.InstancesOf("pair")[0]
	v, ok := st.Property(sp, "kind")
	require.True(t, ok)
	require.Equal(t, "name", v)
}

func TestUndeclaredScopeIsFatal(t *testing.T) {
	prog, err := grammar.ParseString(`defSpanProp a:b = nosuch: [any+] ;`)
	require.NoError(t, err)
	tb := labels.NewTextBase()
	tb.AddDocument("d", "x")
	err = quiet().Run(prog, labels.NewStore(tb))
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestMatchSeesEarlierWrites(t *testing.T) {
	// s instances overlap: [a b] and [b c]. The first instance marks a
	// and b; by the time the second is processed, b is already marked,
	// so the second instance extracts nothing and c stays unmarked.
	st := runProgram(t, `
defSpanType s = : ['a' 'b'] ... ;
defSpanType s = : ... ['b' 'c'] ;
defTokenProp m:1 = s: [!m:1+] ;
`, "a b c")
	doc := st.DocumentSpans()[0]
	_, aMarked := st.TokenProperty(doc, 0, "m")
	_, bMarked := st.TokenProperty(doc, 1, "m")
	_, cMarked := st.TokenProperty(doc, 2, "m")
	require.True(t, aMarked)
	require.True(t, bMarked)
	require.False(t, cMarked)
}

func TestFilterIsTwoPhase(t *testing.T) {
	// the filter's predicate references the type it defines; with
	// two-phase evaluation neither overlapping instance can exclude the
	// other, so both are labeled
	st := runProgram(t, `
defSpanType s = : ['a' 'b'] ... ;
defSpanType s = : ... ['b' 'c'] ;
defSpanType f = s - ... [@f+] ... ;
`, "a b c")
	require.Len(t, st.InstancesOf("f"), 2)
}

func TestFilterSelectsNonMatching(t *testing.T) {
	st := runProgram(t, `
defSpanType w = : ... ['x'] ... || ... ['y'] ... ;
defSpanType notx = w - ['x'] ;
`, "x y")
	require.Equal(t, []string{"y"}, instanceTexts(st, "notx"))
}

func TestRegexExtractAlignment(t *testing.T) {
	// "12" sits inside the token "ab12cd" and is skipped; "9" is a
	// whole token and is kept
	st := runProgram(t, `defSpanType num = ~ re '([0-9]+)', 1;`, "ab12cd 9")
	require.Equal(t, []string{"9"}, instanceTexts(st, "num"))
}

func TestRegexGroupZero(t *testing.T) {
	st := runProgram(t, `defSpanType cap = ~ re '[A-Z][a-z]+', 0;`, "met Bob and Ann")
	require.Equal(t, []string{"Bob", "Ann"}, instanceTexts(st, "cap"))
}

func TestTrieExtract(t *testing.T) {
	st := runProgram(t, `defSpanType city = ~ trie new york, chicago;`,
		"I love New York and Chicago")
	require.Equal(t, []string{"New York", "Chicago"}, instanceTexts(st, "city"))
}

func TestDictionaryProgram(t *testing.T) {
	st := runProgram(t, `
defDict titles = dr, mr, prof;
defSpanType title = : ... [ai(titles)] ... ;
`, "Dr Jones met Mr Smith")
	require.Equal(t, []string{"Dr", "Mr"}, instanceTexts(st, "title"))
}

func TestTokenPropertyEffect(t *testing.T) {
	st := runProgram(t, `defTokenProp cap:y = : ... [re('^[A-Z]')+] ... ;`, "met Bob Smith")
	doc := st.DocumentSpans()[0]
	if _, ok := st.TokenProperty(doc, 0, "cap"); ok {
		t.Fatal("lowercase token marked")
	}
	for i := 1; i <= 2; i++ {
		v, ok := st.TokenProperty(doc, i, "cap")
		require.True(t, ok, "token %d", i)
		require.Equal(t, "y", v)
	}
}

func TestProvideSatisfiesRequire(t *testing.T) {
	_ = runProgram(t, `
provide 'person';
require person;
`, "x")

	prog, err := grammar.ParseString(`require person;`)
	require.NoError(t, err)
	tb := labels.NewTextBase()
	tb.AddDocument("d", "x")
	err = quiet().Run(prog, labels.NewStore(tb))
	require.ErrorContains(t, err, "required but not present")
}

func TestRequireSatisfiedByInstances(t *testing.T) {
	// require precedes provide; the existing instances satisfy it with
	// no fallback load, and the later provide marks the type
	st := runProgram(t, `
defSpanType person = : ... [re('^[A-Z]')] ... ;
require person;
provide 'person';
`, "met Bob")
	require.True(t, st.IsAnnotatedBy("person"))
}

func TestRequireRunsCompanionFile(t *testing.T) {
	dir := t.TempDir()
	helper := filepath.Join(dir, "person.mixup")
	require.NoError(t, os.WriteFile(helper,
		[]byte("provide 'person';\ndefSpanType person = : ... [re('^[A-Z]')] ... ;\n"), 0o644))

	prog, err := grammar.ParseString(`require person, '` + helper + `';`)
	require.NoError(t, err)

	tb := labels.NewTextBase()
	tb.AddDocument("d", "met Bob")
	st := labels.NewStore(tb)
	ev := quiet()
	ev.LoadAnnotator = func(name string) (*grammar.Program, error) {
		return grammar.ParseFile(name)
	}
	require.NoError(t, ev.Run(prog, st))
	require.Equal(t, []string{"Bob"}, instanceTexts(st, "person"))
	require.True(t, st.IsAnnotatedBy("person"))
}

func TestAnnotateWithoutLoaderFails(t *testing.T) {
	prog, err := grammar.ParseString(`annotateWith helper;`)
	require.NoError(t, err)
	tb := labels.NewTextBase()
	tb.AddDocument("d", "x")
	err = quiet().Run(prog, labels.NewStore(tb))
	require.ErrorIs(t, err, ErrAnnotatorLoad)
}

func TestLevelsEndToEnd(t *testing.T) {
	st := runProgram(t, `
defLevel sent = split '.';
onLevel sent;
defSpanType firstSent = : [any] ... ;
offLevel;
importFromLevel sent sentence = firstSent;
`, "Ann runs. Bob sits.")
	require.Equal(t, labels.BaseLevel, st.CurrentLevel())
	require.Equal(t, []string{"Ann runs"}, instanceTexts(st, "sentence"))
}

func TestFailureKeepsEarlierLabels(t *testing.T) {
	prog, err := grammar.ParseString(`
defSpanType w = : ... ['Bob'] ... ;
defSpanProp a:b = nosuch: [any+] ;
`)
	require.NoError(t, err)
	tb := labels.NewTextBase()
	tb.AddDocument("d", "met Bob")
	st := labels.NewStore(tb)
	require.Error(t, quiet().Run(prog, st))
	require.Equal(t, []string{"Bob"}, instanceTexts(st, "w"))
}
