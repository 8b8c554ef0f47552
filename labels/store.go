package labels

import (
	"fmt"
	"sort"
	"strings"
)

// BaseLevel is the tokenization level every store starts on and that
// offLevel always returns to.
const BaseLevel = "original"

// Dictionary is an immutable named word set with a case policy fixed at
// definition time. Case-insensitive dictionaries hold lower-cased words.
type Dictionary struct {
	Name          string
	CaseSensitive bool
	words         map[string]struct{}
}

// NewDictionary builds a dictionary, normalizing words per the case policy.
func NewDictionary(name string, caseSensitive bool, words []string) *Dictionary {
	d := &Dictionary{Name: name, CaseSensitive: caseSensitive, words: map[string]struct{}{}}
	for _, w := range words {
		if !caseSensitive {
			w = strings.ToLower(w)
		}
		d.words[w] = struct{}{}
	}
	return d
}

// Contains reports membership; case-insensitive dictionaries fold the
// probe before lookup.
func (d *Dictionary) Contains(word string) bool {
	if !d.CaseSensitive {
		word = strings.ToLower(word)
	}
	_, ok := d.words[word]
	return ok
}

// Words returns the stored words, sorted.
func (d *Dictionary) Words() []string {
	ws := make([]string, 0, len(d.words))
	for w := range d.words {
		ws = append(ws, w)
	}
	sort.Strings(ws)
	return ws
}

type spanKey struct {
	doc    string
	lo, hi int
}

type tokenKey struct {
	doc    string
	lo, hi int // character offsets, stable across levels of the same text
}

// spanSet keeps insertion order with set semantics.
type spanSet struct {
	spans []Span
	seen  map[spanKey]struct{}
}

func newSpanSet() *spanSet { return &spanSet{seen: map[spanKey]struct{}{}} }

func (ss *spanSet) add(sp Span) {
	k := spanKey{sp.Doc.ID, sp.Lo, sp.Hi}
	if _, dup := ss.seen[k]; dup {
		return
	}
	ss.seen[k] = struct{}{}
	ss.spans = append(ss.spans, sp)
}

// Level is one tokenization variant of the store's text with its own
// type membership and property maps.
type Level struct {
	Name      string
	Base      *TextBase
	types     map[string]*spanSet
	spanProps map[spanKey]map[string]string
	tokProps  map[tokenKey]map[string]string
}

func newLevel(name string, base *TextBase) *Level {
	return &Level{
		Name:      name,
		Base:      base,
		types:     map[string]*spanSet{},
		spanProps: map[spanKey]map[string]string{},
		tokProps:  map[tokenKey]map[string]string{},
	}
}

// Store is the monotonic label store: per-level type membership and
// span/token properties, plus dictionaries and provide bookkeeping shared
// across levels.
type Store struct {
	levels      map[string]*Level
	current     string
	dicts       map[string]*Dictionary
	annotatedBy map[string]struct{}
}

// NewStore wraps a text base as the "original" level of a fresh store.
func NewStore(tb *TextBase) *Store {
	st := &Store{
		levels:      map[string]*Level{},
		current:     BaseLevel,
		dicts:       map[string]*Dictionary{},
		annotatedBy: map[string]struct{}{},
	}
	st.levels[BaseLevel] = newLevel(BaseLevel, tb)
	return st
}

// CurrentLevel names the level generator scopes currently resolve against.
func (st *Store) CurrentLevel() string { return st.current }

func (st *Store) level() *Level { return st.levels[st.current] }

// OnLevel switches the current level.
func (st *Store) OnLevel(name string) error {
	if _, ok := st.levels[name]; !ok {
		return fmt.Errorf("no level %q defined", name)
	}
	st.current = name
	return nil
}

// OffLevel returns to the base level, whatever the current level is.
func (st *Store) OffLevel() { st.current = BaseLevel }

// DefineDictionary registers a dictionary under its name. Redefinition
// overwrites, consistent with the store's add-or-overwrite contract.
func (st *Store) DefineDictionary(d *Dictionary) { st.dicts[d.Name] = d }

// Dictionary looks up a registered dictionary.
func (st *Store) Dictionary(name string) (*Dictionary, bool) {
	d, ok := st.dicts[name]
	return d, ok
}

// DeclareType registers a type name on the current level, with no spans.
func (st *Store) DeclareType(t string) {
	lv := st.level()
	if _, ok := lv.types[t]; !ok {
		lv.types[t] = newSpanSet()
	}
}

// IsType reports whether t is declared on the current level.
func (st *Store) IsType(t string) bool {
	_, ok := st.level().types[t]
	return ok
}

// Types lists the declared types of the current level, sorted.
func (st *Store) Types() []string {
	lv := st.level()
	ts := make([]string, 0, len(lv.types))
	for t := range lv.types {
		ts = append(ts, t)
	}
	sort.Strings(ts)
	return ts
}

// AddToType records sp as an instance of t on the current level,
// declaring t as needed.
func (st *Store) AddToType(sp Span, t string) {
	st.DeclareType(t)
	st.level().types[t].add(sp)
}

// InstancesOf returns the instances of t on the current level in
// insertion order.
func (st *Store) InstancesOf(t string) []Span {
	ss, ok := st.level().types[t]
	if !ok {
		return nil
	}
	out := make([]Span, len(ss.spans))
	copy(out, ss.spans)
	return out
}

// DocumentSpans returns one whole-document span per document of the
// current level, in document order.
func (st *Store) DocumentSpans() []Span {
	lv := st.level()
	spans := make([]Span, 0, len(lv.Base.docs))
	for _, doc := range lv.Base.docs {
		spans = append(spans, Span{Doc: doc, Lo: 0, Hi: len(doc.Tokens)})
	}
	return spans
}

// SetProperty sets key=value on a span, overwriting any previous value.
func (st *Store) SetProperty(sp Span, key, value string) {
	lv := st.level()
	k := spanKey{sp.Doc.ID, sp.Lo, sp.Hi}
	if lv.spanProps[k] == nil {
		lv.spanProps[k] = map[string]string{}
	}
	lv.spanProps[k][key] = value
}

// Property reads a span property; ok is false when unset.
func (st *Store) Property(sp Span, key string) (string, bool) {
	v, ok := st.level().spanProps[spanKey{sp.Doc.ID, sp.Lo, sp.Hi}][key]
	return v, ok
}

// SpanProperties returns a copy of all properties set on sp.
func (st *Store) SpanProperties(sp Span) map[string]string {
	props := st.level().spanProps[spanKey{sp.Doc.ID, sp.Lo, sp.Hi}]
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// SetTokenProperty sets key=value on the i-th token of sp.
func (st *Store) SetTokenProperty(sp Span, i int, key, value string) {
	lv := st.level()
	tok := sp.Token(i)
	k := tokenKey{sp.Doc.ID, tok.Lo, tok.Hi}
	if lv.tokProps[k] == nil {
		lv.tokProps[k] = map[string]string{}
	}
	lv.tokProps[k][key] = value
}

// TokenProperty reads a property of the i-th token of sp.
func (st *Store) TokenProperty(sp Span, i int, key string) (string, bool) {
	tok := sp.Token(i)
	v, ok := st.level().tokProps[tokenKey{sp.Doc.ID, tok.Lo, tok.Hi}][key]
	return v, ok
}

// TokenInType reports whether the i-th token of sp lies inside any
// instance of type t on the current level.
func (st *Store) TokenInType(sp Span, i int, t string) bool {
	ss, ok := st.level().types[t]
	if !ok {
		return false
	}
	idx := sp.Lo + i
	for _, inst := range ss.spans {
		if inst.Doc == sp.Doc && inst.Lo <= idx && idx < inst.Hi {
			return true
		}
	}
	return false
}

// SetAnnotatedBy marks a type as provided by the running program.
func (st *Store) SetAnnotatedBy(t string) { st.annotatedBy[t] = struct{}{} }

// IsAnnotatedBy reports whether a type has been marked provided.
func (st *Store) IsAnnotatedBy(t string) bool {
	_, ok := st.annotatedBy[t]
	return ok
}
