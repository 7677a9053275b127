package render

import (
	"html"
	"strconv"
	"strings"

	"github.com/starford/quire/internal/doctree"
)

// HTML renders a tree to presentational markup. Footnote definitions at the
// top level of the tree are gathered into a trailing footnotes section.
func HTML(root *doctree.Node, opts Options) string {
	if root == nil {
		return ""
	}
	w := &htmlWriter{opts: opts.withDefaults(), refSeen: make(map[string]int)}
	w.blocks(root.Children, false)
	return w.b.String()
}

type htmlWriter struct {
	b       strings.Builder
	opts    Options
	refSeen map[string]int
}

func (w *htmlWriter) raw(s string) { w.b.WriteString(s) }

func (w *htmlWriter) text(s string) { w.b.WriteString(html.EscapeString(s)) }

func (w *htmlWriter) attr(name, value string) {
	w.b.WriteByte(' ')
	w.b.WriteString(name)
	w.b.WriteString(`="`)
	w.b.WriteString(html.EscapeString(value))
	w.b.WriteByte('"')
}

// blocks renders a child list, collecting footnote definitions at the end.
func (w *htmlWriter) blocks(children []*doctree.Node, tight bool) {
	var notes []*doctree.Node
	for _, c := range children {
		if c.Kind == doctree.KindFootnoteDefinition {
			notes = append(notes, c)
			continue
		}
		w.node(c, tight)
	}
	if len(notes) == 0 {
		return
	}
	w.raw(`<section class="footnotes"><ol>`)
	for _, n := range notes {
		w.raw(`<li`)
		w.attr("id", "fn-"+n.ID)
		w.raw(`>`)
		w.blocks(n.Children, true)
		w.raw(` <a class="footnote-backref"`)
		w.attr("href", "#fnref-"+n.ID)
		w.raw(`>↩</a></li>`)
	}
	w.raw(`</ol></section>`)
}

func (w *htmlWriter) inlines(children []*doctree.Node) {
	for _, c := range children {
		w.node(c, false)
	}
}

func (w *htmlWriter) node(n *doctree.Node, tight bool) {
	switch n.Kind {
	case doctree.KindRoot:
		w.blocks(n.Children, false)
	case doctree.KindParagraph:
		if tight {
			w.inlines(n.Children)
			return
		}
		w.raw("<p>")
		w.inlines(n.Children)
		w.raw("</p>\n")
	case doctree.KindHeading:
		tag := "h" + strconv.Itoa(min(max(n.Level, 1), 6))
		w.raw("<" + tag)
		if n.ID != "" {
			w.attr("id", n.ID)
		}
		w.raw(">")
		w.inlines(n.Children)
		w.raw("</" + tag + ">\n")
	case doctree.KindList:
		tag := "ul"
		if n.Ordered {
			tag = "ol"
		}
		w.raw("<" + tag)
		if n.Ordered && n.Start > 1 {
			w.attr("start", strconv.Itoa(n.Start))
		}
		w.raw(">\n")
		for _, item := range n.Children {
			w.listItem(item, n.Tight)
		}
		w.raw("</" + tag + ">\n")
	case doctree.KindListItem:
		w.listItem(n, tight)
	case doctree.KindBlockquote:
		w.raw("<blockquote>\n")
		w.blocks(n.Children, false)
		w.raw("</blockquote>\n")
	case doctree.KindCode:
		w.raw("<pre><code")
		if n.Language != "" {
			w.attr("class", "language-"+n.Language)
		}
		w.raw(">")
		w.text(n.Value)
		w.raw("</code></pre>\n")
	case doctree.KindTable:
		w.table(n)
	case doctree.KindThematicBreak:
		w.raw("<hr>\n")
	case doctree.KindHTML:
		w.raw(n.Value)
	case doctree.KindText:
		w.text(doctree.Unescape(n.Value))
	case doctree.KindEmphasis:
		w.wrap("em", n)
	case doctree.KindStrong:
		w.wrap("strong", n)
	case doctree.KindStrikethrough:
		w.wrap("del", n)
	case doctree.KindCodeSpan:
		w.raw("<code>")
		w.text(n.Value)
		w.raw("</code>")
	case doctree.KindLineBreak:
		w.raw("<br>\n")
	case doctree.KindLink:
		w.raw("<a")
		w.attr("href", n.URL)
		if n.Title != "" {
			w.attr("title", n.Title)
		}
		w.raw(">")
		w.inlines(n.Children)
		w.raw("</a>")
	case doctree.KindImage:
		w.raw("<img")
		w.attr("src", n.URL)
		w.attr("alt", n.Alt)
		if n.Title != "" {
			w.attr("title", n.Title)
		}
		w.raw(">")
	case doctree.KindFootnoteReference:
		w.footnoteRef(n)
	case doctree.KindFootnoteDefinition:
		w.blocks([]*doctree.Node{n}, false)
	case doctree.KindCallout:
		w.callout(n)
	case doctree.KindEmbed:
		w.embed(n)
	case doctree.KindWikilink:
		w.wikilink(n)
	case doctree.KindMath:
		if n.Inline {
			w.raw(`<span class="math math-inline">\(`)
			w.text(n.Value)
			w.raw(`\)</span>`)
			return
		}
		w.raw(`<div class="math math-display">\[`)
		w.text(n.Value)
		w.raw("\\]</div>\n")
	default:
		w.blocks(n.Children, tight)
	}
}

func (w *htmlWriter) wrap(tag string, n *doctree.Node) {
	w.raw("<" + tag + ">")
	w.inlines(n.Children)
	w.raw("</" + tag + ">")
}

func (w *htmlWriter) listItem(n *doctree.Node, tight bool) {
	w.raw("<li")
	if n.Checked != nil {
		w.attr("class", "task-list-item")
	}
	w.raw(">")
	if n.Checked != nil {
		w.raw(`<input type="checkbox" disabled`)
		if *n.Checked {
			w.raw(" checked")
		}
		w.raw("> ")
	}
	w.blocks(n.Children, tight)
	w.raw("</li>\n")
}

func (w *htmlWriter) table(n *doctree.Node) {
	w.raw("<table>\n")
	var head, body []*doctree.Node
	for _, row := range n.Children {
		if row.Header {
			head = append(head, row)
		} else {
			body = append(body, row)
		}
	}
	section := func(tag, cell string, rows []*doctree.Node) {
		if len(rows) == 0 {
			return
		}
		w.raw("<" + tag + ">\n")
		for _, row := range rows {
			w.raw("<tr>")
			for _, c := range row.Children {
				w.raw("<" + cell)
				if c.Align != "" {
					w.attr("style", "text-align: "+c.Align)
				}
				w.raw(">")
				w.inlines(c.Children)
				w.raw("</" + cell + ">")
			}
			w.raw("</tr>\n")
		}
		w.raw("</" + tag + ">\n")
	}
	section("thead", "th", head)
	section("tbody", "td", body)
	w.raw("</table>\n")
}

func (w *htmlWriter) footnoteRef(n *doctree.Node) {
	w.refSeen[n.ID]++
	w.raw(`<sup class="footnote-ref"`)
	if w.refSeen[n.ID] == 1 {
		w.attr("id", "fnref-"+n.ID)
	}
	w.raw("><a")
	w.attr("href", "#fn-"+n.ID)
	w.raw(">")
	w.raw(strconv.Itoa(n.Index))
	w.raw("</a></sup>")
}

func (w *htmlWriter) callout(n *doctree.Node) {
	c := n.Callout
	w.raw("<div")
	w.attr("class", "callout "+c.Class)
	w.attr("data-callout", c.Type)
	if c.Fold != "" {
		w.attr("data-callout-fold", c.Fold)
	}
	w.raw(`><div class="callout-title"><span class="callout-icon"`)
	w.attr("data-icon", c.Icon)
	w.raw(`></span><span class="callout-title-inner">`)
	w.text(calloutTitle(c))
	w.raw("</span></div>\n")
	if len(n.Children) > 0 {
		w.raw(`<div class="callout-content">` + "\n")
		w.blocks(n.Children, false)
		w.raw("</div>\n")
	}
	w.raw("</div>\n")
}

func (w *htmlWriter) embed(n *doctree.Node) {
	e := n.Embed
	if e.Error != nil {
		w.raw(`<div class="embed embed-error"`)
		w.attr("data-embed-source", e.Source)
		w.attr("data-embed-reason", e.Error.Reason)
		w.raw(">")
		w.text(e.Error.Message)
		w.raw("</div>\n")
		return
	}
	src := w.opts.mediaHref(e.Source)
	switch e.Media {
	case doctree.MediaImage:
		w.raw(`<img class="embed embed-image"`)
		w.attr("src", src)
		w.attr("alt", e.Alt)
		w.sizes(e.Size)
		w.raw(">")
	case doctree.MediaAudio:
		w.raw(`<audio class="embed embed-audio" controls`)
		w.attr("src", src)
		w.raw("></audio>")
	case doctree.MediaVideo:
		w.raw(`<video class="embed embed-video" controls`)
		w.attr("src", src)
		w.sizes(e.Size)
		w.raw("></video>")
	case doctree.MediaPDF:
		w.raw(`<object class="embed embed-pdf"`)
		w.attr("data", src)
		w.attr("type", mimeType(e.Source))
		w.sizes(e.Size)
		w.raw("><a")
		w.attr("href", src)
		w.raw(">")
		w.text(embedLabel(e))
		w.raw("</a></object>")
	default:
		w.raw(`<div class="embed embed-document"`)
		w.attr("data-embed-source", e.Source)
		if e.Section != "" {
			w.attr("data-embed-section", e.Section)
		}
		w.raw(">\n")
		w.blocks(n.Children, false)
		w.raw("</div>\n")
	}
}

func (w *htmlWriter) sizes(size string) {
	for _, kv := range sizeAttrs(size) {
		w.attr(kv[0], kv[1])
	}
}

func (w *htmlWriter) wikilink(n *doctree.Node) {
	link := n.Wikilink
	href, broken := w.opts.wikiHref(link)
	class := "wikilink wikilink-" + string(link.Class)
	if broken {
		class += " broken"
	}
	w.raw("<a")
	w.attr("class", class)
	w.attr("href", href)
	if link.Class == doctree.LinkExternal {
		w.attr("rel", "noopener")
	}
	w.raw(">")
	w.text(link.Label())
	w.raw("</a>")
}
