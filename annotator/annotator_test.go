package annotator

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/require"

	"github.com/mixuplang/mixup/engine"
	"github.com/mixuplang/mixup/labels"
	"github.com/mixuplang/mixup/parser/grammar"
)

const personSrc = "provide 'person';\ndefSpanType person = : ... [re('^[A-Z]')] ... ;\n"

func TestSaveLoadRoundTrip(t *testing.T) {
	prog, err := grammar.ParseString(personSrc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "person"+ArtifactExt)
	require.NoError(t, New("person", prog).Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "person", loaded.Name)

	p2, err := loaded.Program()
	require.NoError(t, err)
	require.Equal(t, prog.String(), p2.String())
}

func TestLoadRejectsBadArtifacts(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad"+ArtifactExt)
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o644))
	_, err := Load(bad)
	require.Error(t, err)

	badProg := filepath.Join(dir, "badprog"+ArtifactExt)
	require.NoError(t, os.WriteFile(badProg,
		[]byte(`{"name":"x","program":"frobnicate y;"}`), 0o644))
	_, err = Load(badProg)
	require.Error(t, err)
}

func TestAnnotate(t *testing.T) {
	prog, err := grammar.ParseString(personSrc)
	require.NoError(t, err)

	tb := labels.NewTextBase()
	tb.AddDocument("d", "met Bob")
	st := labels.NewStore(tb)

	ev := &engine.Evaluator{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	require.NoError(t, New("person", prog).Annotate(ev, st))
	require.Len(t, st.InstancesOf("person"), 1)
	require.True(t, st.IsAnnotatedBy("person"))
}

func TestLoaderResolvesSourcesAndArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src"+SourceExt), []byte(personSrc), 0o644))

	prog, err := grammar.ParseString(personSrc)
	require.NoError(t, err)
	require.NoError(t, New("art", prog).Save(filepath.Join(dir, "art"+ArtifactExt)))

	load := Loader(dir)
	for _, name := range []string{"src", "src" + SourceExt, "art"} {
		p, err := load(name)
		require.NoError(t, err, "name %s", name)
		require.Len(t, p.Statements, 2)
	}

	_, err = load("missing")
	require.Error(t, err)
}
