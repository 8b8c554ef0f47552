// Package pattern implements the token-sequence expression language used
// by match and filter generators. An expression is compiled from the
// remaining tokens of a statement and extracts subspans from input spans.
//
// Shape of an expression:
//
//	EXPR  := SEQ ( '||' SEQ )*
//	SEQ   := ELEM* with at most one '[' ELEM* ']' extraction bracket
//	ELEM  := '...' | ATOM REP?
//	REP   := '+' | '*' | '?' | '{' N ',' M '}'
//	ATOM  := 'lit' | eq('w') | eqi('w') | a(dict) | ai(dict) | re('rx')
//	       | any | @type | prop:value | prop | !ATOM | <ATOM, ATOM, ...>
//
// A sequence must cover the whole input span; '...' matches any token
// run. The bracketed range is what gets extracted; without brackets the
// whole sequence is. Standalone L and R greediness markers are accepted
// and ignored.
package pattern

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mixuplang/mixup/labels"
	"github.com/mixuplang/mixup/parser/lexer"
)

// Expr is a compiled pattern expression.
type Expr struct {
	src  string
	alts []*sequence
}

type sequence struct {
	elems []element
	capLo int // element index where extraction opens
	capHi int // element index where extraction closes
}

type element struct {
	gap      bool
	atom     atom
	min, max int // max < 0 means unbounded
}

// atom tests one token of a span against the store's current labeling.
type atom interface {
	match(st *labels.Store, sp labels.Span, i int) bool
}

type litAtom struct {
	word string
	fold bool
}

func (a litAtom) match(_ *labels.Store, sp labels.Span, i int) bool {
	if a.fold {
		return strings.EqualFold(sp.Token(i).Text, a.word)
	}
	return sp.Token(i).Text == a.word
}

type dictAtom struct {
	name string
	fold bool
}

func (a dictAtom) match(st *labels.Store, sp labels.Span, i int) bool {
	d, ok := st.Dictionary(a.name)
	if !ok {
		return false
	}
	w := sp.Token(i).Text
	if a.fold {
		w = strings.ToLower(w)
	}
	return d.Contains(w)
}

type reAtom struct{ re *regexp.Regexp }

func (a reAtom) match(_ *labels.Store, sp labels.Span, i int) bool {
	return a.re.MatchString(sp.Token(i).Text)
}

type anyAtom struct{}

func (anyAtom) match(*labels.Store, labels.Span, int) bool { return true }

type typeAtom struct{ name string }

func (a typeAtom) match(st *labels.Store, sp labels.Span, i int) bool {
	return st.TokenInType(sp, i, a.name)
}

type propAtom struct{ key, value string }

func (a propAtom) match(st *labels.Store, sp labels.Span, i int) bool {
	v, ok := st.TokenProperty(sp, i, a.key)
	if !ok {
		return false
	}
	return a.value == "" || v == a.value
}

// bareAtom is a bare name in an expression: it matches tokens carrying
// the name as a property or contained in a span of that type.
type bareAtom struct{ name string }

func (a bareAtom) match(st *labels.Store, sp labels.Span, i int) bool {
	if _, ok := st.TokenProperty(sp, i, a.name); ok {
		return true
	}
	return st.TokenInType(sp, i, a.name)
}

type notAtom struct{ a atom }

func (a notAtom) match(st *labels.Store, sp labels.Span, i int) bool {
	return !a.a.match(st, sp, i)
}

type andAtom struct{ as []atom }

func (a andAtom) match(st *labels.Store, sp labels.Span, i int) bool {
	for _, sub := range a.as {
		if !sub.match(st, sp, i) {
			return false
		}
	}
	return true
}

// Compile consumes the remaining tokens of the current statement and
// builds an expression from them.
func Compile(tok *lexer.Tokenizer) (*Expr, error) {
	pos := tok.Pos()
	toks, err := tok.Drain()
	if err != nil {
		return nil, err
	}
	return compileTokens(toks, pos)
}

func compileTokens(toks []string, pos lexer.Position) (*Expr, error) {
	if len(toks) == 0 {
		return nil, lexer.Errorf(pos, "", "empty pattern expression")
	}
	c := &compiler{toks: toks, pos: pos}
	expr := &Expr{src: strings.Join(toks, " ")}
	for {
		seq, err := c.parseSequence()
		if err != nil {
			return nil, err
		}
		expr.alts = append(expr.alts, seq)
		if c.peek() != "||" {
			break
		}
		c.next()
	}
	if c.peek() != "" {
		return nil, lexer.Errorf(c.pos, "", "unexpected %q in pattern expression", c.peek())
	}
	return expr, nil
}

// String returns the expression's compiled source form.
func (e *Expr) String() string { return e.src }

type compiler struct {
	toks []string
	i    int
	pos  lexer.Position
}

func (c *compiler) peek() string {
	if c.i >= len(c.toks) {
		return ""
	}
	return c.toks[c.i]
}

func (c *compiler) next() string {
	t := c.peek()
	if t != "" {
		c.i++
	}
	return t
}

func (c *compiler) expect(want string) error {
	if got := c.next(); got != want {
		return lexer.Errorf(c.pos, "", "expected %q in pattern expression, got %q", want, got)
	}
	return nil
}

func (c *compiler) parseSequence() (*sequence, error) {
	seq := &sequence{capLo: -1, capHi: -1}
	for {
		t := c.peek()
		switch {
		case t == "" || t == "||":
			if seq.capLo >= 0 && seq.capHi < 0 {
				return nil, lexer.Errorf(c.pos, "", "unclosed '[' in pattern expression")
			}
			if seq.capLo < 0 {
				seq.capLo, seq.capHi = 0, len(seq.elems)
			}
			return seq, nil
		case t == "[":
			c.next()
			if seq.capLo >= 0 {
				return nil, lexer.Errorf(c.pos, "", "multiple '[' brackets in one sequence")
			}
			seq.capLo = len(seq.elems)
		case t == "]":
			c.next()
			if seq.capLo < 0 || seq.capHi >= 0 {
				return nil, lexer.Errorf(c.pos, "", "unmatched ']' in pattern expression")
			}
			seq.capHi = len(seq.elems)
		case t == "...":
			c.next()
			seq.elems = append(seq.elems, element{gap: true})
		case t == "L" || t == "R":
			// greediness markers, accepted and ignored
			c.next()
		default:
			a, err := c.parseAtom()
			if err != nil {
				return nil, err
			}
			min, max, err := c.parseRepeat()
			if err != nil {
				return nil, err
			}
			seq.elems = append(seq.elems, element{atom: a, min: min, max: max})
		}
	}
}

func (c *compiler) parseRepeat() (int, int, error) {
	switch c.peek() {
	case "+":
		c.next()
		c.skipMarker()
		return 1, -1, nil
	case "*":
		c.next()
		c.skipMarker()
		return 0, -1, nil
	case "?":
		c.next()
		c.skipMarker()
		return 0, 1, nil
	case "{":
		c.next()
		lo, err := c.parseInt()
		if err != nil {
			return 0, 0, err
		}
		if err := c.expect(","); err != nil {
			return 0, 0, err
		}
		hi, err := c.parseInt()
		if err != nil {
			return 0, 0, err
		}
		if err := c.expect("}"); err != nil {
			return 0, 0, err
		}
		c.skipMarker()
		return lo, hi, nil
	default:
		return 1, 1, nil
	}
}

func (c *compiler) skipMarker() {
	if t := c.peek(); t == "R" || t == "L" {
		c.next()
	}
}

func (c *compiler) parseInt() (int, error) {
	t := c.next()
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0, lexer.Errorf(c.pos, "", "expected a number in repetition, got %q", t)
	}
	return n, nil
}

func (c *compiler) parseAtom() (atom, error) {
	t := c.next()
	switch {
	case t == "":
		return nil, lexer.Errorf(c.pos, "", "pattern expression ended unexpectedly")
	case strings.HasPrefix(t, "'"):
		return litAtom{word: unquote(t)}, nil
	case t == "!":
		inner, err := c.parseAtom()
		if err != nil {
			return nil, err
		}
		return notAtom{a: inner}, nil
	case t == "@":
		name := c.next()
		if name == "" {
			return nil, lexer.Errorf(c.pos, "", "expected a type name after '@'")
		}
		return typeAtom{name: name}, nil
	case t == "<":
		var as []atom
		for {
			a, err := c.parseAtom()
			if err != nil {
				return nil, err
			}
			as = append(as, a)
			sep := c.next()
			if sep == ">" {
				return andAtom{as: as}, nil
			}
			if sep != "," {
				return nil, lexer.Errorf(c.pos, "", "expected ',' or '>' in conjunction, got %q", sep)
			}
		}
	case t == "eq", t == "eqi", t == "a", t == "ai", t == "re":
		if c.peek() != "(" {
			// a bare word that happens to collide with a builtin name
			return c.finishWordAtom(t)
		}
		c.next()
		arg := c.next()
		if err := c.expect(")"); err != nil {
			return nil, err
		}
		switch t {
		case "eq":
			return litAtom{word: unquote(arg)}, nil
		case "eqi":
			return litAtom{word: unquote(arg), fold: true}, nil
		case "a":
			return dictAtom{name: unquote(arg)}, nil
		case "ai":
			return dictAtom{name: unquote(arg), fold: true}, nil
		default:
			re, err := regexp.Compile(unquote(arg))
			if err != nil {
				return nil, lexer.Errorf(c.pos, "", "bad regex in pattern expression: %v", err)
			}
			return reAtom{re: re}, nil
		}
	case t == "any":
		return anyAtom{}, nil
	default:
		return c.finishWordAtom(t)
	}
}

// finishWordAtom handles prop:value and bare property names.
func (c *compiler) finishWordAtom(word string) (atom, error) {
	if c.peek() == ":" {
		c.next()
		val := c.next()
		if val == "" {
			return nil, lexer.Errorf(c.pos, "", "expected a value after %q:", word)
		}
		return propAtom{key: word, value: unquote(val)}, nil
	}
	return bareAtom{name: word}, nil
}

func unquote(t string) string {
	if len(t) >= 2 {
		if (t[0] == '\'' && t[len(t)-1] == '\'') || (t[0] == '"' && t[len(t)-1] == '"') {
			t = t[1 : len(t)-1]
		}
	}
	return strings.ReplaceAll(t, `\'`, "'")
}

// Extract runs the expression over each input span in order and returns
// the extracted subspans, deduplicated, in discovery order. Each call
// consults the store's labeling as it stands, so labels added between
// calls are visible.
func (e *Expr) Extract(st *labels.Store, input []labels.Span) []labels.Span {
	var out []labels.Span
	seen := map[string]struct{}{}
	for _, sp := range input {
		for _, seq := range e.alts {
			m := matcher{st: st, sp: sp, seq: seq}
			m.run(func(res labels.Span) {
				k := res.String()
				if _, dup := seen[k]; dup {
					return
				}
				seen[k] = struct{}{}
				out = append(out, res)
			})
		}
	}
	return out
}

// Matches reports whether the expression extracts anything from sp.
func (e *Expr) Matches(st *labels.Store, sp labels.Span) bool {
	return len(e.Extract(st, []labels.Span{sp})) > 0
}

type matcher struct {
	st   *labels.Store
	sp   labels.Span
	seq  *sequence
	emit func(labels.Span)
}

func (m *matcher) run(emit func(labels.Span)) {
	m.emit = emit
	m.rec(0, 0, -1, -1)
}

// rec advances element ei at token ti; cs and ce track the token bounds
// of the extraction bracket along the current path.
func (m *matcher) rec(ei, ti, cs, ce int) {
	if ei == m.seq.capLo && cs < 0 {
		cs = ti
	}
	if ei == m.seq.capHi && ce < 0 {
		ce = ti
	}
	if ei == len(m.seq.elems) {
		if ti == m.sp.Len() && cs >= 0 && ce > cs {
			m.emit(m.sp.SubSpan(cs, ce))
		}
		return
	}
	el := m.seq.elems[ei]
	if el.gap {
		for k := ti; k <= m.sp.Len(); k++ {
			m.rec(ei+1, k, cs, ce)
		}
		return
	}
	n, j := 0, ti
	for {
		if n >= el.min {
			m.rec(ei+1, j, cs, ce)
		}
		if el.max >= 0 && n >= el.max {
			return
		}
		if j >= m.sp.Len() || !el.atom.match(m.st, m.sp, j) {
			return
		}
		j++
		n++
	}
}
