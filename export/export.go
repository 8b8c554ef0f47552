// Package export renders a store's labeling for output: a YAML snapshot
// for files and pipelines, and a plain listing for the terminal.
package export

import (
	"fmt"
	"io"
	"sort"

	yaml "gopkg.in/yaml.v2"

	"github.com/mixuplang/mixup/labels"
)

// Snapshot is the serializable view of the current level's labeling.
type Snapshot struct {
	Level     string           `yaml:"level"`
	Types     []string         `yaml:"types"`
	Documents []DocumentLabels `yaml:"documents"`
}

// DocumentLabels groups labeled spans by document.
type DocumentLabels struct {
	ID    string      `yaml:"id"`
	Spans []SpanLabel `yaml:"spans,omitempty"`
}

// SpanLabel is one labeled span with its covered text and properties.
type SpanLabel struct {
	Type       string            `yaml:"type"`
	Lo         int               `yaml:"lo"`
	Hi         int               `yaml:"hi"`
	Text       string            `yaml:"text"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Capture builds a snapshot of st's current level. Spans are listed per
// document in natural order, types sorted.
func Capture(st *labels.Store) *Snapshot {
	snap := &Snapshot{Level: st.CurrentLevel(), Types: st.Types()}

	byDoc := map[string]*DocumentLabels{}
	var order []string
	for _, sp := range st.DocumentSpans() {
		byDoc[sp.Doc.ID] = &DocumentLabels{ID: sp.Doc.ID}
		order = append(order, sp.Doc.ID)
	}

	for _, t := range snap.Types {
		for _, sp := range st.InstancesOf(t) {
			dl, ok := byDoc[sp.Doc.ID]
			if !ok {
				continue
			}
			dl.Spans = append(dl.Spans, SpanLabel{
				Type:       t,
				Lo:         sp.Lo,
				Hi:         sp.Hi,
				Text:       sp.Text(),
				Properties: st.SpanProperties(sp),
			})
		}
	}
	for _, id := range order {
		dl := byDoc[id]
		sort.SliceStable(dl.Spans, func(i, j int) bool {
			if dl.Spans[i].Lo != dl.Spans[j].Lo {
				return dl.Spans[i].Lo < dl.Spans[j].Lo
			}
			return dl.Spans[i].Hi < dl.Spans[j].Hi
		})
		snap.Documents = append(snap.Documents, *dl)
	}
	return snap
}

// YAML marshals the snapshot.
func (s *Snapshot) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// WriteYAML writes the snapshot to w.
func (s *Snapshot) WriteYAML(w io.Writer) error {
	data, err := s.YAML()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Print writes a human-readable listing of the current level's labeling:
// each type with its span count, then every instance with its text.
func Print(w io.Writer, st *labels.Store) {
	for _, t := range st.Types() {
		spans := st.InstancesOf(t)
		labels.SortSpans(spans)
		fmt.Fprintf(w, "%s: %d span(s)\n", t, len(spans))
		for _, sp := range spans {
			fmt.Fprintf(w, "  %s\t%q\n", sp, sp.Text())
			if props := st.SpanProperties(sp); len(props) > 0 {
				keys := make([]string, 0, len(props))
				for k := range props {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(w, "    %s=%s\n", k, props[k])
				}
			}
		}
	}
}
