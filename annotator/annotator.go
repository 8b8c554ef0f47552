// Package annotator wraps a mixup program as a named, storable artifact
// and resolves annotateWith/require references to runnable programs.
package annotator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mixuplang/mixup/engine"
	"github.com/mixuplang/mixup/labels"
	"github.com/mixuplang/mixup/parser/grammar"
)

// SourceExt is the extension of plain program files; ArtifactExt marks
// saved annotator artifacts.
const (
	SourceExt   = ".mixup"
	ArtifactExt = ".ann"
)

// Annotator is a named program. The program travels as source text so
// artifacts stay readable and diffable.
type Annotator struct {
	Name   string `json:"name"`
	Source string `json:"program"`

	prog *grammar.Program
}

// New wraps a parsed program under a name.
func New(name string, prog *grammar.Program) *Annotator {
	return &Annotator{Name: name, Source: prog.String(), prog: prog}
}

// Program parses the annotator's source on first use.
func (a *Annotator) Program() (*grammar.Program, error) {
	if a.prog == nil {
		p, err := grammar.ParseNamed(a.Source, a.Name)
		if err != nil {
			return nil, fmt.Errorf("annotator %q: %w", a.Name, err)
		}
		a.prog = p
	}
	return a.prog, nil
}

// Annotate runs the annotator's program against a store.
func (a *Annotator) Annotate(ev *engine.Evaluator, st *labels.Store) error {
	p, err := a.Program()
	if err != nil {
		return err
	}
	return ev.Run(p, st)
}

// Save writes the annotator as a JSON artifact.
func (a *Annotator) Save(path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Load reads a saved artifact and validates that its program parses.
func Load(path string) (*Annotator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a Annotator
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("bad annotator artifact %s: %w", path, err)
	}
	if a.Name == "" {
		a.Name = filepath.Base(path)
	}
	if _, err := a.Program(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Loader builds a resolver suitable for engine.Evaluator.LoadAnnotator.
// A name resolves to, in order: the literal path, NAME.mixup, NAME.ann —
// each tried in every search dir.
func Loader(dirs ...string) func(name string) (*grammar.Program, error) {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	return func(name string) (*grammar.Program, error) {
		for _, dir := range dirs {
			for _, candidate := range []string{
				filepath.Join(dir, name),
				filepath.Join(dir, name+SourceExt),
				filepath.Join(dir, name+ArtifactExt),
			} {
				info, err := os.Stat(candidate)
				if err != nil || info.IsDir() {
					continue
				}
				if filepath.Ext(candidate) == ArtifactExt {
					a, err := Load(candidate)
					if err != nil {
						return nil, err
					}
					return a.Program()
				}
				return grammar.ParseFile(candidate)
			}
		}
		return nil, fmt.Errorf("no annotator %q found in %v", name, dirs)
	}
}
