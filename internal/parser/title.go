package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/quire/internal/doctree"
)

// deriveTitle returns the first H1, otherwise the first heading of any
// level, otherwise a <title> or <h1> found in raw HTML blocks.
func deriveTitle(root *doctree.Node) string {
	var first, h1 string
	var raw strings.Builder
	doctree.Walk(root, func(n *doctree.Node) bool {
		switch n.Kind {
		case doctree.KindHeading:
			text := strings.TrimSpace(doctree.PlainText(n))
			if first == "" {
				first = text
			}
			if h1 == "" && n.Level == 1 {
				h1 = text
			}
			return false
		case doctree.KindHTML:
			raw.WriteString(n.Value)
		}
		return true
	})
	switch {
	case h1 != "":
		return h1
	case first != "":
		return first
	}
	return htmlTitle(raw.String())
}

func htmlTitle(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	for _, sel := range []string{"title", "h1"} {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}
