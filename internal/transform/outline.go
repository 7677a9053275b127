package transform

import (
	"strings"

	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/slug"
)

// Outline assigns a unique anchor to every heading and returns the table of
// contents in document order. Headings inside embeds and footnotes are left
// out.
func Outline(root *doctree.Node) (*doctree.Node, []models.TocEntry) {
	var toc []models.TocEntry
	var anchors slug.Anchors
	out := doctree.Rewrite(root, func(n *doctree.Node) ([]*doctree.Node, doctree.Action) {
		switch n.Kind {
		case doctree.KindEmbed, doctree.KindFootnoteDefinition:
			return nil, doctree.Skip
		case doctree.KindHeading:
		default:
			if n.IsBlock() {
				return nil, doctree.Continue
			}
			return nil, doctree.Skip
		}
		text := strings.TrimSpace(doctree.PlainText(n))
		h := n.Clone()
		h.ID = anchors.Next(text)
		toc = append(toc, models.TocEntry{ID: h.ID, Text: text, Level: h.Level})
		return []*doctree.Node{h}, doctree.Replace
	})
	return out, toc
}
