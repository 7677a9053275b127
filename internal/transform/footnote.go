package transform

import (
	"regexp"
	"strings"

	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/syntax"
)

var footnoteDefRe = regexp.MustCompile(`^[ \t]*\[\^([^\]\s^\[]+)\]:[ \t]*`)

// Footnotes lifts [^id]: definitions out of the flow, binds [^id] references
// to them and numbers them in order of first reference. Referenced
// definitions are appended to the end of the document; references without a
// definition stay literal text and are reported.
func Footnotes(root *doctree.Node, ctx *Context) *doctree.Node {
	defs := make(map[string]*doctree.Node)
	var order []string
	root = doctree.Rewrite(root, func(n *doctree.Node) ([]*doctree.Node, doctree.Action) {
		if opaque(n) {
			return nil, doctree.Skip
		}
		if n.Kind != doctree.KindParagraph {
			return nil, doctree.Continue
		}
		found := splitDefinitions(n)
		if found == nil {
			return nil, doctree.Skip
		}
		for _, d := range found {
			if _, dup := defs[d.ID]; dup {
				ctx.Warn(models.CodeUnusedFootnote, "duplicate footnote definition %q ignored", d.ID)
				continue
			}
			defs[d.ID] = d
			order = append(order, d.ID)
		}
		return nil, doctree.Replace
	})

	b := &binder{ctx: ctx, defs: defs, index: make(map[string]int), refs: make(map[string]int)}
	visit := tokenRewriter(syntax.FootnoteRef, b.bind)
	root = doctree.Rewrite(root, visit)

	// Definitions may reference further notes, which extends the queue.
	var notes []*doctree.Node
	for i := 0; i < len(b.queue); i++ {
		id := b.queue[i]
		def := defs[id].Clone()
		def.Index = b.index[id]
		def = doctree.Rewrite(def, visit)
		notes = append(notes, def)
	}
	for _, id := range order {
		if _, used := b.index[id]; !used {
			ctx.Warn(models.CodeUnusedFootnote, "footnote %q is defined but never referenced", id)
		}
	}
	for _, id := range b.queue {
		ctx.Footnotes = append(ctx.Footnotes, models.Footnote{ID: id, Index: b.index[id], Refs: b.refs[id]})
	}
	if len(notes) == 0 {
		return root
	}
	out := root.Clone()
	out.Children = append(out.Children, notes...)
	return out
}

type binder struct {
	ctx   *Context
	defs  map[string]*doctree.Node
	index map[string]int
	refs  map[string]int
	queue []string
}

func (b *binder) bind(tok syntax.Token) *doctree.Node {
	id := tok.Body
	if _, ok := b.defs[id]; !ok {
		b.ctx.Warn(models.CodeUnboundFootnote, "footnote reference [^%s] has no definition", id)
		return nil
	}
	idx, seen := b.index[id]
	if !seen {
		idx = len(b.queue) + 1
		b.index[id] = idx
		b.queue = append(b.queue, id)
	}
	b.refs[id]++
	return &doctree.Node{Kind: doctree.KindFootnoteReference, ID: id, Index: idx}
}

// splitDefinitions returns the definitions in a paragraph that opens with
// [^id]:, one per line that starts a new definition. It returns nil when
// the paragraph is ordinary prose.
func splitDefinitions(p *doctree.Node) []*doctree.Node {
	if len(p.Children) == 0 || p.Children[0].Kind != doctree.KindText ||
		!footnoteDefRe.MatchString(p.Children[0].Value) {
		return nil
	}

	// Break inline content into lines, then group lines under definitions.
	var lines [][]*doctree.Node
	cur := []*doctree.Node{}
	for _, c := range p.Children {
		if c.Kind != doctree.KindText {
			cur = append(cur, c)
			continue
		}
		parts := strings.Split(c.Value, "\n")
		for i, part := range parts {
			if i > 0 {
				lines = append(lines, cur)
				cur = []*doctree.Node{}
			}
			if part != "" {
				cur = append(cur, doctree.Text(part))
			}
		}
	}
	lines = append(lines, cur)

	var defs []*doctree.Node
	var body []*doctree.Node
	flush := func() {
		if len(defs) == 0 {
			return
		}
		para := doctree.New(doctree.KindParagraph, doctree.MergeText(body)...)
		defs[len(defs)-1].Children = []*doctree.Node{para}
		body = nil
	}
	for _, line := range lines {
		if len(line) > 0 && line[0].Kind == doctree.KindText {
			if m := footnoteDefRe.FindStringSubmatchIndex(line[0].Value); m != nil {
				flush()
				id := line[0].Value[m[2]:m[3]]
				defs = append(defs, &doctree.Node{Kind: doctree.KindFootnoteDefinition, ID: id})
				line = append([]*doctree.Node{doctree.Text(line[0].Value[m[1]:])}, line[1:]...)
			}
		}
		if len(body) > 0 {
			body = append(body, doctree.Text("\n"))
		}
		body = append(body, line...)
	}
	flush()
	return defs
}
