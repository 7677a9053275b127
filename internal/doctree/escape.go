package doctree

import "github.com/yuin/goldmark/util"

// Unescape turns the raw source form of a text run into display text:
// backslash escapes are removed and character references resolved.
func Unescape(raw string) string {
	b := util.UnescapePunctuations([]byte(raw))
	b = util.ResolveNumericReferences(b)
	b = util.ResolveEntityNames(b)
	return string(b)
}
