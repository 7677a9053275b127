package transform

import (
	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/syntax"
)

// Math tags $…$ and \(…\) as inline math and $$…$$ and \[…\] as display
// math. TeX source is kept verbatim for a client-side typesetter.
func Math(root *doctree.Node, _ *Context) *doctree.Node {
	root = doctree.Rewrite(root, tokenRewriter(syntax.InlineMath, func(tok syntax.Token) *doctree.Node {
		return &doctree.Node{Kind: doctree.KindMath, Value: tok.Body, Inline: true}
	}))
	root = doctree.Rewrite(root, tokenRewriter(syntax.DisplayMath, func(tok syntax.Token) *doctree.Node {
		return &doctree.Node{Kind: doctree.KindMath, Value: tok.Body}
	}))
	return hoistBlocks(root, func(n *doctree.Node) bool {
		return n.Kind == doctree.KindMath && !n.Inline
	})
}
