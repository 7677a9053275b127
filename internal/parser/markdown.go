package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	gparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/syntax"
)

// markdown is CommonMark plus GFM tables, task lists and strikethrough.
// Goldmark parsers are safe for concurrent use.
var markdown = gparser.NewParser(
	gparser.WithBlockParsers(gparser.DefaultBlockParsers()...),
	gparser.WithInlineParsers(append(gparser.DefaultInlineParsers(),
		util.Prioritized(markerParser{}, 50),
		util.Prioritized(extension.NewStrikethroughParser(), 500),
		util.Prioritized(extension.NewTaskCheckBoxParser(), 0),
	)...),
	gparser.WithParagraphTransformers(
		util.Prioritized(linkReferences{}, 100),
		util.Prioritized(extension.NewTableParagraphTransformer(), 200),
	),
	gparser.WithASTTransformers(
		util.Prioritized(extension.NewTableASTTransformer(), 0),
	),
)

// linkReferences applies link reference definitions except on paragraphs
// that open with a footnote definition, which goldmark would otherwise
// consume as a reference labelled "^id".
type linkReferences struct{}

func (linkReferences) Transform(node *ast.Paragraph, reader text.Reader, pc gparser.Context) {
	lines := node.Lines()
	if lines.Len() > 0 {
		seg := lines.At(0)
		first := seg.Value(reader.Source())
		if bytes.HasPrefix(bytes.TrimLeft(first, " "), []byte("[^")) {
			return
		}
	}
	gparser.LinkReferenceParagraphTransformer.Transform(node, reader, pc)
}

// markerParser captures extension markers verbatim so that emphasis and link
// parsing cannot split them, e.g. the asterisks in $a*b*c$.
type markerParser struct{}

func (markerParser) Trigger() []byte { return []byte{'!', '[', '$', '\\'} }

func (markerParser) Parse(_ ast.Node, block text.Reader, _ gparser.Context) ast.Node {
	line, segment := block.PeekLine()
	tok, ok := syntax.Match(string(line))
	if !ok {
		return nil
	}
	n := len(tok.Raw)
	block.Advance(n)
	return ast.NewTextSegment(segment.WithStop(segment.Start + n))
}

// convert parses body and maps the goldmark AST onto a doctree.
func convert(body []byte) *doctree.Node {
	doc := markdown.Parse(text.NewReader(body))
	c := converter{source: body}
	root := doctree.New(doctree.KindRoot)
	root.Children = c.children(doc)
	return root
}

type converter struct {
	source []byte
}

func (c converter) children(n ast.Node) []*doctree.Node {
	var out []*doctree.Node
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		out = append(out, c.node(child)...)
	}
	return doctree.MergeText(out)
}

func (c converter) node(n ast.Node) []*doctree.Node {
	switch v := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return []*doctree.Node{doctree.New(doctree.KindParagraph, c.children(v)...)}
	case *ast.Heading:
		h := doctree.New(doctree.KindHeading, c.children(v)...)
		h.Level = v.Level
		return []*doctree.Node{h}
	case *ast.ThematicBreak:
		return []*doctree.Node{doctree.New(doctree.KindThematicBreak)}
	case *ast.Blockquote:
		return []*doctree.Node{doctree.New(doctree.KindBlockquote, c.children(v)...)}
	case *ast.FencedCodeBlock:
		code := &doctree.Node{Kind: doctree.KindCode, Value: c.lines(v)}
		if v.Info != nil {
			code.Language = string(v.Language(c.source))
		}
		return []*doctree.Node{code}
	case *ast.CodeBlock:
		return []*doctree.Node{{Kind: doctree.KindCode, Value: c.lines(v)}}
	case *ast.HTMLBlock:
		value := c.lines(v)
		if v.HasClosure() {
			value += string(v.ClosureLine.Value(c.source))
		}
		return []*doctree.Node{{Kind: doctree.KindHTML, Value: value}}
	case *ast.List:
		l := doctree.New(doctree.KindList, c.children(v)...)
		l.Ordered = v.IsOrdered()
		l.Start = v.Start
		l.Tight = v.IsTight
		return []*doctree.Node{l}
	case *ast.ListItem:
		return []*doctree.Node{c.listItem(v)}
	case *east.Table:
		return []*doctree.Node{c.table(v)}
	case *ast.Text:
		return c.text(v)
	case *ast.String:
		return []*doctree.Node{doctree.Text(string(v.Value))}
	case *ast.CodeSpan:
		var b strings.Builder
		for child := v.FirstChild(); child != nil; child = child.NextSibling() {
			if t, ok := child.(*ast.Text); ok {
				b.Write(t.Value(c.source))
			}
		}
		return []*doctree.Node{{Kind: doctree.KindCodeSpan, Value: b.String()}}
	case *ast.Emphasis:
		kind := doctree.KindEmphasis
		if v.Level >= 2 {
			kind = doctree.KindStrong
		}
		return []*doctree.Node{doctree.New(kind, c.children(v)...)}
	case *east.Strikethrough:
		return []*doctree.Node{doctree.New(doctree.KindStrikethrough, c.children(v)...)}
	case *ast.Link:
		l := doctree.New(doctree.KindLink, c.children(v)...)
		l.URL = string(v.Destination)
		l.Title = string(v.Title)
		return []*doctree.Node{l}
	case *ast.Image:
		alt := doctree.PlainText(doctree.New(doctree.KindParagraph, c.children(v)...))
		return []*doctree.Node{{
			Kind:  doctree.KindImage,
			URL:   string(v.Destination),
			Title: string(v.Title),
			Alt:   alt,
		}}
	case *ast.AutoLink:
		l := doctree.New(doctree.KindLink, doctree.Text(string(v.Label(c.source))))
		l.URL = string(v.URL(c.source))
		return []*doctree.Node{l}
	case *ast.RawHTML:
		var b strings.Builder
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			b.Write(seg.Value(c.source))
		}
		return []*doctree.Node{{Kind: doctree.KindHTML, Value: b.String(), Inline: true}}
	case *east.TaskCheckBox:
		// Consumed by listItem.
		return nil
	}
	// Unknown block: keep its content.
	return c.children(n)
}

// text keeps the raw source form; soft breaks become newlines and hard
// breaks become line-break nodes.
func (c converter) text(t *ast.Text) []*doctree.Node {
	value := string(t.Value(c.source))
	switch {
	case t.HardLineBreak():
		return []*doctree.Node{doctree.Text(value), doctree.New(doctree.KindLineBreak)}
	case t.SoftLineBreak():
		return []*doctree.Node{doctree.Text(value + "\n")}
	}
	return []*doctree.Node{doctree.Text(value)}
}

func (c converter) listItem(li *ast.ListItem) *doctree.Node {
	item := doctree.New(doctree.KindListItem, c.children(li)...)
	if first := li.FirstChild(); first != nil {
		if box, ok := first.FirstChild().(*east.TaskCheckBox); ok {
			checked := box.IsChecked
			item.Checked = &checked
			if len(item.Children) > 0 && len(item.Children[0].Children) > 0 {
				p := item.Children[0].Clone()
				if lead := p.Children[0]; lead.Kind == doctree.KindText {
					p.Children[0] = doctree.Text(strings.TrimLeft(lead.Value, " "))
				}
				p.Children = doctree.MergeText(p.Children)
				item.Children[0] = p
			}
		}
	}
	return item
}

func (c converter) table(t *east.Table) *doctree.Node {
	table := doctree.New(doctree.KindTable)
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		r := doctree.New(doctree.KindTableRow)
		_, r.Header = row.(*east.TableHeader)
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			tc := doctree.New(doctree.KindTableCell, c.children(cell)...)
			tc.Header = r.Header
			if v, ok := cell.(*east.TableCell); ok && v.Alignment != east.AlignNone {
				tc.Align = v.Alignment.String()
			}
			r.Children = append(r.Children, tc)
		}
		table.Children = append(table.Children, r)
	}
	return table
}

func (c converter) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(c.source))
	}
	return b.String()
}
