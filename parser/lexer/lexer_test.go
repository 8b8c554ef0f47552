package lexer

import (
	"strings"
	"testing"
)

func TestStripComments(t *testing.T) {
	got := StripComments("defDict a = b // trailing\nprovide 'x';")
	want := "defDict a = b \nprovide 'x';"
	if got != want {
		t.Fatalf("StripComments = %q, want %q", got, want)
	}
}

func TestStripCommentsInsideQuotes(t *testing.T) {
	// stripping is line-based and does not respect quoting
	got := StripComments("re('http://example.com')")
	if got != "re('http:" {
		t.Fatalf("StripComments = %q, want %q", got, "re('http:")
	}
}

func TestAdvanceWordsAndPunctuation(t *testing.T) {
	tok := New("defDict names.txt = alice, bob_1;", "")
	kw, ok, err := tok.Keyword()
	if err != nil || !ok || kw != "defDict" {
		t.Fatalf("Keyword = %q, %v, %v", kw, ok, err)
	}
	want := []string{"names.txt", "=", "alice", ",", "bob_1"}
	for _, w := range want {
		got, err := tok.Advance()
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if got != w {
			t.Fatalf("Advance = %q, want %q", got, w)
		}
	}
	if got, err := tok.Advance(); err != nil || got != "" {
		t.Fatalf("expected end of statement, got %q, %v", got, err)
	}
}

func TestAdvanceQuoted(t *testing.T) {
	tok := New(`x 'a\'b' "file.txt" ||`, "")
	want := []string{"x", `'a\'b'`, `"file.txt"`, "||"}
	for _, w := range want {
		got, err := tok.Advance()
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if got != w {
			t.Fatalf("Advance = %q, want %q", got, w)
		}
	}
}

func TestAdvanceExpected(t *testing.T) {
	tok := New("a b", "")
	if _, err := tok.Advance("a"); err != nil {
		t.Fatalf("Advance(a): %v", err)
	}
	_, err := tok.Advance("=")
	if err == nil {
		t.Fatal("expected error for unexpected token")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
}

func TestAdvanceExpectedAtTerminator(t *testing.T) {
	tok := New("a ; b", "")
	if _, err := tok.Advance(); err != nil {
		t.Fatal(err)
	}
	if _, err := tok.Advance("="); err == nil {
		t.Fatal("expected error at end of statement")
	}
}

func TestUnterminatedQuote(t *testing.T) {
	tok := New("'abc", "")
	if _, err := tok.Advance(); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestKeywordSkipsTerminators(t *testing.T) {
	tok := New(";;  ; provide 'x';", "")
	kw, ok, err := tok.Keyword()
	if err != nil || !ok || kw != "provide" {
		t.Fatalf("Keyword = %q, %v, %v", kw, ok, err)
	}
	tok = New(" ;; ", "")
	if kw, ok, _ := tok.Keyword(); ok {
		t.Fatalf("Keyword on empty program = %q, want none", kw)
	}
}

func TestKeywordReportsScanErrors(t *testing.T) {
	tok := New("'abc", "")
	if _, _, err := tok.Keyword(); err == nil {
		t.Fatal("expected error for unterminated quote at statement start")
	}
}

func TestPositions(t *testing.T) {
	tok := New("a\n  b", "p.mixup")
	if _, err := tok.Advance(); err != nil {
		t.Fatal(err)
	}
	tok.skipSpace()
	pos := tok.Pos()
	if pos.Line != 2 || pos.Column != 3 {
		t.Fatalf("Pos = %d:%d, want 2:3", pos.Line, pos.Column)
	}
	if !strings.HasPrefix(pos.String(), "p.mixup:2:3") {
		t.Fatalf("Pos.String = %q", pos.String())
	}
}

func TestDrain(t *testing.T) {
	tok := New("a b c; d", "")
	toks, err := tok.Drain()
	if err != nil {
		t.Fatal(err)
	}
	if len(toks) != 3 || toks[0] != "a" || toks[2] != "c" {
		t.Fatalf("Drain = %v", toks)
	}
	if kw, ok, err := tok.Keyword(); err != nil || !ok || kw != "d" {
		t.Fatalf("after Drain, Keyword = %q, %v, %v", kw, ok, err)
	}
}
