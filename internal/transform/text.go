package transform

import (
	"slices"
	"strings"

	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/syntax"
)

// opaque reports whether the subtree's text must not be tokenized.
func opaque(n *doctree.Node) bool {
	switch n.Kind {
	case doctree.KindCode, doctree.KindCodeSpan, doctree.KindHTML, doctree.KindLink,
		doctree.KindMath, doctree.KindEmbed, doctree.KindWikilink, doctree.KindFootnoteReference:
		return true
	}
	return false
}

// tokenRewriter returns a visitor that replaces tokens of kind in text runs
// with the node built for them. build may return nil to keep the raw text.
func tokenRewriter(kind syntax.Kind, build func(tok syntax.Token) *doctree.Node) doctree.Visitor {
	return func(n *doctree.Node) ([]*doctree.Node, doctree.Action) {
		if opaque(n) {
			return nil, doctree.Skip
		}
		if n.Kind != doctree.KindText {
			return nil, doctree.Continue
		}
		toks := syntax.Scan(n.Value)
		var out []*doctree.Node
		changed := false
		for _, tok := range toks {
			if tok.Kind == kind {
				if built := build(tok); built != nil {
					out = append(out, built)
					changed = true
					continue
				}
			}
			out = append(out, doctree.Text(tok.Raw))
		}
		if !changed {
			return nil, doctree.Skip
		}
		return doctree.MergeText(out), doctree.Replace
	}
}

// hoistBlocks lifts block-like nodes (document embeds, display math) out of
// their paragraphs. A paragraph holding only such a node is replaced by it;
// mixed content is split into the text before, the block, and the text after,
// so no block ever renders inside a paragraph.
func hoistBlocks(root *doctree.Node, block func(*doctree.Node) bool) *doctree.Node {
	return doctree.Rewrite(root, func(n *doctree.Node) ([]*doctree.Node, doctree.Action) {
		if opaque(n) {
			return nil, doctree.Skip
		}
		if n.Kind != doctree.KindParagraph {
			return nil, doctree.Continue
		}
		if !slices.ContainsFunc(n.Children, block) {
			return nil, doctree.Skip
		}
		var out, run []*doctree.Node
		flush := func() {
			if run = trimRun(run); len(run) > 0 {
				p := n.Clone()
				p.Children = run
				out = append(out, p)
			}
			run = nil
		}
		for _, c := range n.Children {
			if block(c) {
				flush()
				out = append(out, c)
				continue
			}
			run = append(run, c)
		}
		flush()
		return out, doctree.Replace
	})
}

// trimRun drops the blank text and line breaks at both ends of an inline run
// and trims the whitespace left at its edges.
func trimRun(run []*doctree.Node) []*doctree.Node {
	blank := func(n *doctree.Node) bool {
		return n.Kind == doctree.KindLineBreak ||
			(n.Kind == doctree.KindText && strings.TrimSpace(n.Value) == "")
	}
	for len(run) > 0 && blank(run[0]) {
		run = run[1:]
	}
	for len(run) > 0 && blank(run[len(run)-1]) {
		run = run[:len(run)-1]
	}
	if len(run) == 0 {
		return nil
	}
	run = slices.Clone(run)
	if first := run[0]; first.Kind == doctree.KindText {
		run[0] = doctree.Text(strings.TrimLeft(first.Value, " \t\n"))
	}
	if last := run[len(run)-1]; last.Kind == doctree.KindText {
		run[len(run)-1] = doctree.Text(strings.TrimRight(last.Value, " \t\n"))
	}
	return run
}
