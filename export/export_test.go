package export

import (
	"io"
	"strings"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"

	"github.com/mixuplang/mixup/engine"
	"github.com/mixuplang/mixup/labels"
	"github.com/mixuplang/mixup/parser/grammar"
)

func labeledStore(t *testing.T) *labels.Store {
	t.Helper()
	tb := labels.NewTextBase()
	tb.AddDocument("doc1", "met Bob Smith")
	tb.AddDocument("doc2", "hello Ann")
	st := labels.NewStore(tb)

	prog, err := grammar.ParseString(`
defSpanType name = : ... [re('^[A-Z]')+] ... ;
defSpanProp kind:person = name: [any+] ;
`)
	require.NoError(t, err)
	ev := &engine.Evaluator{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	require.NoError(t, ev.Run(prog, st))
	return st
}

func TestCapture(t *testing.T) {
	snap := Capture(labeledStore(t))
	require.Equal(t, labels.BaseLevel, snap.Level)
	require.Equal(t, []string{"name"}, snap.Types)
	require.Len(t, snap.Documents, 2)
	require.Equal(t, "doc1", snap.Documents[0].ID)

	spans := snap.Documents[0].Spans
	require.NotEmpty(t, spans)
	require.Equal(t, 1, spans[0].Lo)
	require.Equal(t, "Bob", spans[0].Text)
	require.Equal(t, "person", spans[0].Properties["kind"])
}

func TestYAMLRoundTrip(t *testing.T) {
	snap := Capture(labeledStore(t))
	data, err := snap.YAML()
	require.NoError(t, err)

	var back Snapshot
	require.NoError(t, yaml.Unmarshal(data, &back))
	require.Equal(t, *snap, back)
}

func TestPrint(t *testing.T) {
	var b strings.Builder
	Print(&b, labeledStore(t))
	out := b.String()
	require.Contains(t, out, "name:")
	require.Contains(t, out, `"Bob Smith"`)
	require.Contains(t, out, "kind=person")
}
