// Package engine evaluates parsed mixup programs against a label store.
// Statements run in program order; labeling is monotonic, so a failed run
// leaves every label added before the failure in place.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mixuplang/mixup/labels"
	"github.com/mixuplang/mixup/parser/grammar"
)

var (
	// ErrUnknownType is returned when a generator scope names a type
	// with no declaration on the current level.
	ErrUnknownType = errors.New("unknown span type")

	// ErrAnnotatorLoad is returned when an annotateWith or require
	// target cannot be resolved to a runnable program.
	ErrAnnotatorLoad = errors.New("can't load annotator")
)

// Evaluator runs programs. The zero value is usable; Log defaults to
// slog.Default and LoadAnnotator to nothing, which makes annotateWith
// statements fail.
type Evaluator struct {
	Log *slog.Logger

	// LoadAnnotator resolves an annotator name to a runnable program.
	// Injected by the caller so the evaluator stays ignorant of how
	// annotators are stored.
	LoadAnnotator func(name string) (*grammar.Program, error)
}

func New() *Evaluator {
	return &Evaluator{Log: slog.Default()}
}

func (ev *Evaluator) logger() *slog.Logger {
	if ev.Log != nil {
		return ev.Log
	}
	return slog.Default()
}

// Run evaluates every statement of p against st, in order. The first
// failing statement aborts the run; labels applied so far remain.
func (ev *Evaluator) Run(p *grammar.Program, st *labels.Store) error {
	for _, stmt := range p.Statements {
		start := time.Now()
		if err := ev.eval(stmt, st); err != nil {
			return fmt.Errorf("%s at %s: %w", stmt.Keyword(), stmt.Pos(), err)
		}
		ev.logger().Debug("statement evaluated",
			"keyword", stmt.Keyword(),
			"level", st.CurrentLevel(),
			"elapsed", time.Since(start))
	}
	return nil
}

func (ev *Evaluator) eval(stmt grammar.Statement, st *labels.Store) error {
	switch s := stmt.(type) {
	case *grammar.Declare:
		st.DeclareType(s.Type)
		return nil
	case *grammar.Provide:
		st.SetAnnotatedBy(s.AnnotationType)
		return nil
	case *grammar.Require:
		return ev.evalRequire(s, st)
	case *grammar.AnnotateWith:
		return ev.runAnnotator(s.File, st)
	case *grammar.DefDict:
		st.DefineDictionary(labels.NewDictionary(s.Name, s.CaseSensitive, s.Words))
		return nil
	case *grammar.DefLevel:
		return st.CreateLevel(s.Name, s.Strategy, s.Pattern)
	case *grammar.OnLevel:
		return st.OnLevel(s.Name)
	case *grammar.OffLevel:
		st.OffLevel()
		return nil
	case *grammar.ImportFromLevel:
		return st.ImportFromLevel(s.SourceLevel, s.SourceType, s.DestType)
	case *grammar.Labeling:
		return ev.evalLabeling(s, st)
	default:
		return fmt.Errorf("unhandled statement type %T", stmt)
	}
}

// evalRequire is satisfied by a prior provide of the type or by existing
// instances. Otherwise the companion file is run; with no companion the
// requirement is unsatisfiable and the run fails.
func (ev *Evaluator) evalRequire(s *grammar.Require, st *labels.Store) error {
	if st.IsAnnotatedBy(s.AnnotationType) {
		return nil
	}
	if len(st.InstancesOf(s.AnnotationType)) > 0 {
		return nil
	}
	if s.File == "" {
		return fmt.Errorf("annotation type %q is required but not present", s.AnnotationType)
	}
	if err := ev.runAnnotator(s.File, st); err != nil {
		return err
	}
	st.SetAnnotatedBy(s.AnnotationType)
	return nil
}

func (ev *Evaluator) runAnnotator(name string, st *labels.Store) error {
	if ev.LoadAnnotator == nil {
		return fmt.Errorf("%w %q: no annotator loader configured", ErrAnnotatorLoad, name)
	}
	prog, err := ev.LoadAnnotator(name)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrAnnotatorLoad, name, err)
	}
	ev.logger().Info("running annotator", "name", name)
	return ev.Run(prog, st)
}

func (ev *Evaluator) evalLabeling(s *grammar.Labeling, st *labels.Store) error {
	// A type effect declares its type before any span is generated, so
	// the type exists even when the generator produces nothing.
	if t, ok := s.Effect.(grammar.SpanType); ok {
		st.DeclareType(t.Type)
	}
	input, err := resolveScope(s.Scope, st)
	if err != nil {
		return err
	}

	switch g := s.Gen.(type) {
	case *grammar.Match:
		// One input span at a time: effects applied while processing
		// earlier spans are visible to extraction on later ones.
		for _, sp := range input {
			for _, res := range g.Expr.Extract(st, []labels.Span{sp}) {
				applyEffect(st, s.Effect, res)
			}
		}
	case *grammar.Filter:
		// Two phases, so the filter's own output can't change its
		// predicate mid-statement.
		var kept []labels.Span
		for _, sp := range input {
			if !g.Expr.Matches(st, sp) {
				kept = append(kept, sp)
			}
		}
		labels.SortSpans(kept)
		for _, sp := range dedupe(kept) {
			applyEffect(st, s.Effect, sp)
		}
	case *grammar.RegexExtract:
		for _, sp := range input {
			text := sp.Text()
			base := sp.CharLo()
			for _, m := range g.Regexp.FindAllStringSubmatchIndex(text, -1) {
				lo, hi := m[2*g.Group], m[2*g.Group+1]
				if lo < 0 {
					continue
				}
				// silently skip matches that don't land on token
				// boundaries
				if img, ok := sp.CharAlignedSubSpan(base+lo, base+hi); ok {
					applyEffect(st, s.Effect, img)
				}
			}
		}
	case *grammar.TrieExtract:
		for _, sp := range input {
			for _, res := range g.Trie.Lookup(sp) {
				applyEffect(st, s.Effect, res)
			}
		}
	default:
		return fmt.Errorf("unhandled generator type %T", s.Gen)
	}
	return nil
}

// resolveScope produces the generator's input spans: every document of
// the current level for top scope, or the recorded instances of a type.
// An undeclared scope type is fatal, not empty.
func resolveScope(sc grammar.Scope, st *labels.Store) ([]labels.Span, error) {
	if sc.IsTop() {
		return st.DocumentSpans(), nil
	}
	if !st.IsType(sc.Type) {
		return nil, fmt.Errorf("%w %q in generator scope", ErrUnknownType, sc.Type)
	}
	return st.InstancesOf(sc.Type), nil
}

func applyEffect(st *labels.Store, eff grammar.Effect, sp labels.Span) {
	switch e := eff.(type) {
	case grammar.SpanType:
		st.AddToType(sp, e.Type)
	case grammar.SpanProperty:
		st.SetProperty(sp, e.Key, e.Value)
	case grammar.TokenProperty:
		for i := 0; i < sp.Len(); i++ {
			st.SetTokenProperty(sp, i, e.Key, e.Value)
		}
	}
}

func dedupe(spans []labels.Span) []labels.Span {
	out := spans[:0]
	var prev labels.Span
	for i, sp := range spans {
		if i > 0 && sp.Compare(prev) == 0 {
			continue
		}
		out = append(out, sp)
		prev = sp
	}
	return out
}
