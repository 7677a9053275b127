package syntax

import "testing"

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func equalKinds(a, b []Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScanMixedRun(t *testing.T) {
	toks := Scan(`See [[Page|alias]] and ![[img.png|100]] with $x^2$ and [^note].`)
	want := []Kind{Text, Wikilink, Text, Embed, Text, InlineMath, Text, FootnoteRef, Text}
	if got := kinds(toks); !equalKinds(got, want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	if toks[1].Body != "Page|alias" {
		t.Errorf("wikilink body = %q", toks[1].Body)
	}
	if toks[3].Body != "img.png|100" {
		t.Errorf("embed body = %q", toks[3].Body)
	}
	if toks[5].Body != "x^2" {
		t.Errorf("math body = %q", toks[5].Body)
	}
	if toks[7].Body != "note" {
		t.Errorf("footnote id = %q", toks[7].Body)
	}
}

func TestEmbedBeforeWikilink(t *testing.T) {
	toks := Scan("![[a]][[b]]")
	if got := kinds(toks); !equalKinds(got, []Kind{Embed, Wikilink}) {
		t.Fatalf("kinds = %v", got)
	}
}

func TestDisplayMath(t *testing.T) {
	for _, s := range []string{"$$\n\\sum_i x_i\n$$", `\[ a + b \]`} {
		toks := Scan(s)
		if len(toks) != 1 || toks[0].Kind != DisplayMath {
			t.Errorf("Scan(%q) = %+v", s, toks)
		}
	}
	toks := Scan(`inline \(a\) here`)
	if len(toks) != 3 || toks[1].Kind != InlineMath || toks[1].Body != "a" {
		t.Errorf("paren math = %+v", toks)
	}
}

func TestDollarAmountsAreText(t *testing.T) {
	for _, s := range []string{"costs $5 and $10", "$ 5 $", `escaped \$x$`} {
		for _, tok := range Scan(s) {
			if tok.Kind != Text {
				t.Errorf("Scan(%q) produced %v", s, tok.Kind)
			}
		}
	}
}

func TestUnclosedMarkers(t *testing.T) {
	for _, s := range []string{"[[open", "![[", "[^ spaced]", "[^]", "$$ never"} {
		toks := Scan(s)
		if len(toks) != 1 || toks[0].Kind != Text || toks[0].Raw != s {
			t.Errorf("Scan(%q) = %+v", s, toks)
		}
	}
}
