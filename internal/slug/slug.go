// Package slug normalises logical content references and derives heading anchors.
package slug

import (
	"path"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Categories are the content directories a reference may be prefixed with.
var Categories = []string{"topics", "maps", "articles", "docs"}

// Extensions are the source extensions stripped from references.
var Extensions = []string{".md", ".markdown", ".mdx"}

// Ref is a parsed reference: the slug plus the optional section fragment and alias.
type Ref struct {
	Slug    string
	Section string
	Alias   string
}

// Parse splits raw into its slug, section and alias parts.
func Parse(raw string) Ref {
	var r Ref
	s := strings.TrimSpace(raw)
	if before, after, ok := strings.Cut(s, "|"); ok {
		s = before
		r.Alias = strings.TrimSpace(after)
	}
	if before, after, ok := strings.Cut(s, "#"); ok {
		s = before
		r.Section = strings.TrimSpace(after)
	}
	r.Slug = Normalize(s)
	return r
}

// Normalize returns the canonical slug for raw. It is idempotent.
func Normalize(raw string) string {
	s := raw
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '|'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, `\`, "/")
	for strings.HasPrefix(s, "./") {
		s = s[2:]
	}
	s = strings.Trim(s, "/ ")
	if s == "" {
		return s
	}
	s = path.Clean(s)
	if s == "." {
		return ""
	}
	s = strings.TrimPrefix(s, "content/")
	for _, c := range Categories {
		if after, ok := strings.CutPrefix(s, c+"/"); ok {
			s = after
			break
		}
	}
	s = TrimExtension(s)
	return strings.Trim(s, "/ ")
}

// TrimExtension removes one known source extension from s.
func TrimExtension(s string) string {
	lower := strings.ToLower(s)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return s[:len(s)-len(ext)]
		}
	}
	return s
}

// Base returns the last path element of a slug.
func Base(s string) string {
	return path.Base(s)
}

// stripMarks builds a fresh chain per call: x/text transformers carry state
// and cannot be shared between goroutines.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Anchor derives a URL fragment from heading text: diacritics are removed,
// letters lower-cased, runs of other characters collapsed to a single dash.
func Anchor(text string) string {
	folded, _, err := transform.String(stripMarks(), text)
	if err != nil {
		folded = text
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}

// Anchors hands out unique anchors for a single document.
type Anchors struct {
	seen map[string]int
}

// Next returns a unique anchor for text, suffixing -1, -2... on repeats.
func (a *Anchors) Next(text string) string {
	if a.seen == nil {
		a.seen = make(map[string]int)
	}
	base := Anchor(text)
	if base == "" {
		base = "section"
	}
	if _, ok := a.seen[base]; !ok {
		a.seen[base] = 1
		return base
	}
	for n := a.seen[base]; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if _, taken := a.seen[candidate]; !taken {
			a.seen[base] = n + 1
			a.seen[candidate] = 1
			return candidate
		}
	}
}
