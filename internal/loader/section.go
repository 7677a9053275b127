package loader

import (
	"strings"

	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/slug"
)

// extractSection returns the top-level blocks from the heading named by
// section up to the next heading of equal or higher level. The heading
// matches by its anchor, its text, or the anchor derived from section.
func extractSection(blocks []*doctree.Node, section string) ([]*doctree.Node, bool) {
	want := slug.Anchor(section)
	start := -1
	level := 0
	for i, n := range blocks {
		if n.Kind != doctree.KindHeading {
			continue
		}
		if start < 0 {
			if headingMatches(n, section, want) {
				start, level = i, n.Level
			}
			continue
		}
		if n.Level <= level {
			return withFootnotes(blocks[start:i:i], blocks), true
		}
	}
	if start < 0 {
		return nil, false
	}
	end := len(blocks)
	for end > start+1 && blocks[end-1].Kind == doctree.KindFootnoteDefinition {
		end--
	}
	return withFootnotes(blocks[start:end:end], blocks), true
}

// withFootnotes appends the definitions from all that section references.
func withFootnotes(section, all []*doctree.Node) []*doctree.Node {
	refs := map[string]bool{}
	for _, n := range section {
		doctree.Walk(n, func(c *doctree.Node) bool {
			if c.Kind == doctree.KindFootnoteReference {
				refs[c.ID] = true
			}
			return true
		})
	}
	if len(refs) == 0 {
		return section
	}
	for _, n := range all {
		if n.Kind == doctree.KindFootnoteDefinition && refs[n.ID] {
			section = append(section, n)
		}
	}
	return section
}

func headingMatches(h *doctree.Node, section, anchor string) bool {
	if h.ID != "" && (h.ID == section || h.ID == anchor) {
		return true
	}
	text := strings.TrimSpace(doctree.PlainText(h))
	return strings.EqualFold(text, strings.TrimSpace(section)) || (anchor != "" && slug.Anchor(text) == anchor)
}
