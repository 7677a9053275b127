// Package syntax tokenizes the inline extension markers of the source dialect:
// wikilinks, embeds, footnote references and math spans. Every consumer
// classifies text through Scan so that markers are recognised exactly once
// and in the same way.
package syntax

import "strings"

// Kind classifies a token.
type Kind int

// Token kinds.
const (
	Text Kind = iota
	Wikilink
	Embed
	FootnoteRef
	InlineMath
	DisplayMath
)

func (k Kind) String() string {
	switch k {
	case Wikilink:
		return "wikilink"
	case Embed:
		return "embed"
	case FootnoteRef:
		return "footnote"
	case InlineMath:
		return "math"
	case DisplayMath:
		return "display-math"
	}
	return "text"
}

// Token is one classified span of a text run. Raw is the exact source text;
// Body is the content between the delimiters.
type Token struct {
	Kind Kind
	Raw  string
	Body string
}

// Scan splits s into tokens, left to right, first match wins. Backslash
// escapes other than the math openers \( and \[ are kept in text tokens.
func Scan(s string) []Token {
	var out []Token
	start := 0
	for i := 0; i < len(s); {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] != '(' && s[i+1] != '[' {
			i += 2
			continue
		}
		tok, ok := Match(s[i:])
		if !ok {
			i++
			continue
		}
		if i > start {
			out = append(out, Token{Kind: Text, Raw: s[start:i], Body: s[start:i]})
		}
		out = append(out, tok)
		i += len(tok.Raw)
		start = i
	}
	if start < len(s) {
		out = append(out, Token{Kind: Text, Raw: s[start:], Body: s[start:]})
	}
	return out
}

// Match returns the marker token starting at s[0], if any.
func Match(s string) (Token, bool) {
	switch {
	case strings.HasPrefix(s, "![["):
		return bracketed(s, "![[", "]]", Embed)
	case strings.HasPrefix(s, "[["):
		return bracketed(s, "[[", "]]", Wikilink)
	case strings.HasPrefix(s, "[^"):
		return footnote(s)
	case strings.HasPrefix(s, "$$"):
		return delimited(s, "$$", "$$", DisplayMath)
	case strings.HasPrefix(s, "$"):
		return dollar(s)
	case strings.HasPrefix(s, `\(`):
		return delimited(s, `\(`, `\)`, InlineMath)
	case strings.HasPrefix(s, `\[`):
		return delimited(s, `\[`, `\]`, DisplayMath)
	}
	return Token{}, false
}

func bracketed(s, open, close string, kind Kind) (Token, bool) {
	end := strings.Index(s[len(open):], close)
	if end < 0 {
		return Token{}, false
	}
	body := s[len(open) : len(open)+end]
	if strings.TrimSpace(body) == "" || strings.ContainsAny(body, "\n[") {
		return Token{}, false
	}
	raw := s[:len(open)+end+len(close)]
	return Token{Kind: kind, Raw: raw, Body: body}, true
}

func footnote(s string) (Token, bool) {
	end := strings.IndexByte(s, ']')
	if end < 3 {
		return Token{}, false
	}
	id := s[2:end]
	if strings.ContainsAny(id, " \t\n[^") {
		return Token{}, false
	}
	return Token{Kind: FootnoteRef, Raw: s[:end+1], Body: id}, true
}

func delimited(s, open, close string, kind Kind) (Token, bool) {
	end := strings.Index(s[len(open):], close)
	if end < 0 {
		return Token{}, false
	}
	body := s[len(open) : len(open)+end]
	if strings.TrimSpace(body) == "" {
		return Token{}, false
	}
	return Token{Kind: kind, Raw: s[:len(open)+end+len(close)], Body: strings.TrimSpace(body)}, true
}

// dollar matches $tex$: the body may not start or end with a space, and the
// closing dollar may not be followed by a digit, so prices are left alone.
func dollar(s string) (Token, bool) {
	for j := 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
			continue
		case '\n':
			return Token{}, false
		case '$':
		default:
			continue
		}
		body := s[1:j]
		if body == "" || isSpace(body[0]) || isSpace(body[len(body)-1]) {
			return Token{}, false
		}
		if j+1 < len(s) && s[j+1] >= '0' && s[j+1] <= '9' {
			return Token{}, false
		}
		return Token{Kind: InlineMath, Raw: s[:j+1], Body: body}, true
	}
	return Token{}, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n'
}
