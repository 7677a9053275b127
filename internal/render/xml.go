package render

import (
	"encoding/xml"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/slug"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// XML renders doc in the DITA-style interchange format: a <topic> for topic
// metadata and a <map> of <topicref>s for maps. Nodes without an equivalent
// element become comments and are reported through opts.OnUnsupported.
func XML(doc *models.ResolvedDocument, opts Options) string {
	w := &xmlWriter{opts: opts.withDefaults(), topicID: TopicID(doc.Slug)}
	w.raw(xmlHeader)

	md := doc.Metadata
	if md == nil {
		md = models.EmptyMetadata(models.KindTopic)
	}
	switch m := md.(type) {
	case *models.MapMetadata:
		w.mapDoc(doc, m)
	case *models.TopicMetadata:
		w.topicDoc(doc, m)
	}
	return w.b.String()
}

type xmlWriter struct {
	b       strings.Builder
	opts    Options
	topicID string
}

func (w *xmlWriter) raw(s string) { w.b.WriteString(s) }

func (w *xmlWriter) text(s string) {
	_ = xml.EscapeText(&w.b, []byte(s))
}

func (w *xmlWriter) attr(name, value string) {
	w.b.WriteByte(' ')
	w.b.WriteString(name)
	w.b.WriteString(`="`)
	w.text(value)
	w.b.WriteByte('"')
}

func (w *xmlWriter) element(name, value string) {
	w.raw("<" + name + ">")
	w.text(value)
	w.raw("</" + name + ">")
}

func (w *xmlWriter) comment(s string) {
	s = strings.ReplaceAll(s, "--", "- -")
	w.raw("<!-- " + strings.TrimSuffix(s, "-") + " -->")
}

func (w *xmlWriter) unsupported(n *doctree.Node) {
	if w.opts.OnUnsupported != nil {
		w.opts.OnUnsupported(n.Kind)
	}
	w.comment("unsupported: " + string(n.Kind))
}

func (w *xmlWriter) topicDoc(doc *models.ResolvedDocument, m *models.TopicMetadata) {
	w.raw(`<!DOCTYPE topic PUBLIC "-//OASIS//DTD DITA Topic//EN" "topic.dtd">` + "\n")
	w.raw("<topic")
	w.attr("id", w.topicID)
	w.raw(">\n")
	w.element("title", titleOr(m.Title, doc.Slug))
	w.raw("\n")
	w.prolog("prolog", m)
	w.raw("<body>\n")
	if doc.Tree != nil {
		w.blocks(doc.Tree.Children)
	}
	w.raw("</body>\n</topic>\n")
}

func (w *xmlWriter) mapDoc(doc *models.ResolvedDocument, m *models.MapMetadata) {
	w.raw(`<!DOCTYPE map PUBLIC "-//OASIS//DTD DITA Map//EN" "map.dtd">` + "\n")
	w.raw("<map")
	w.attr("id", w.topicID)
	w.raw(">\n")
	w.element("title", titleOr(m.Title, doc.Slug))
	w.raw("\n")
	w.prolog("topicmeta", &m.TopicMetadata, mapMeta(m)...)

	topics := doc.Topics
	if topics == nil {
		for _, ref := range m.Topics {
			topics = append(topics, models.TopicRef{Ref: ref, Slug: slug.Normalize(ref), Found: true, Compatible: true})
		}
	}
	for _, t := range topics {
		if !t.Found {
			w.comment("missing topic: " + t.Ref)
			w.raw("\n")
		}
		w.raw("<topicref")
		w.attr("href", t.Slug+".dita")
		w.attr("navtitle", titleOr(t.Title, t.Slug))
		w.attr("format", "dita")
		switch {
		case !t.Found:
			w.attr("outputclass", "missing")
		case !t.Compatible:
			w.attr("outputclass", "audience-mismatch")
		}
		w.raw("/>\n")
	}
	w.raw("</map>\n")
}

// prolog writes the metadata block shared by topics and maps. extra holds
// additional othermeta pairs.
func (w *xmlWriter) prolog(tag string, m *models.TopicMetadata, extra ...[2]string) {
	w.raw("<" + tag + ">\n")
	if m.Author != "" {
		w.element("author", m.Author)
		w.raw("\n")
	}
	if m.Date != "" || m.Modified != "" {
		w.raw("<critdates>")
		if m.Date != "" {
			w.raw("<created")
			w.attr("date", m.Date)
			w.raw("/>")
		}
		if m.Modified != "" {
			w.raw("<revised")
			w.attr("modified", m.Modified)
			w.raw("/>")
		}
		w.raw("</critdates>\n")
	}
	w.raw("<metadata>\n")
	if m.Audience != "" {
		w.raw("<audience")
		w.attr("experiencelevel", m.Audience)
		w.raw("/>\n")
	}
	if len(m.Tags) > 0 {
		w.raw("<keywords>")
		for _, t := range m.Tags {
			w.element("keyword", t)
		}
		w.raw("</keywords>\n")
	}
	meta := [][2]string{{"publish", strconv.FormatBool(m.Publish)}}
	if m.AccessLevel != "" {
		meta = append(meta, [2]string{"access-level", m.AccessLevel})
	}
	keys := make([]string, 0, len(m.Conditions))
	for k := range m.Conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		meta = append(meta, [2]string{"condition:" + k, m.Conditions[k]})
	}
	meta = append(meta, extra...)
	for _, kv := range meta {
		w.raw("<othermeta")
		w.attr("name", kv[0])
		w.attr("content", kv[1])
		w.raw("/>\n")
	}
	w.raw("</metadata>\n</" + tag + ">\n")
}

func mapMeta(m *models.MapMetadata) [][2]string {
	var out [][2]string
	add := func(k, v string) {
		if v != "" {
			out = append(out, [2]string{k, v})
		}
	}
	add("publish-date", m.PublishDate)
	add("editor", m.Editor)
	add("reviewer", m.Reviewer)
	add("version", m.Version)
	if m.Featured {
		add("featured", "true")
	}
	return out
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}

func (w *xmlWriter) blocks(children []*doctree.Node) {
	var notes []*doctree.Node
	for _, c := range children {
		if c.Kind == doctree.KindFootnoteDefinition {
			notes = append(notes, c)
			continue
		}
		w.block(c)
	}
	if len(notes) == 0 {
		return
	}
	w.raw(`<section outputclass="footnotes">` + "\n")
	for _, n := range notes {
		w.raw("<p><fn")
		w.attr("id", "fn-"+n.ID)
		w.attr("callout", strconv.Itoa(n.Index))
		w.raw(">")
		for _, c := range n.Children {
			if c.Kind == doctree.KindParagraph {
				w.inlines(c.Children)
			} else {
				w.block(c)
			}
		}
		w.raw("</fn></p>\n")
	}
	w.raw("</section>\n")
}

func (w *xmlWriter) block(n *doctree.Node) {
	switch n.Kind {
	case doctree.KindParagraph:
		if img := soleImage(n); img != nil {
			w.image(img, true)
			w.raw("\n")
			return
		}
		w.raw("<p>")
		w.inlines(n.Children)
		w.raw("</p>\n")
	case doctree.KindHeading:
		w.raw("<p")
		w.attr("outputclass", "heading-"+strconv.Itoa(n.Level))
		if n.ID != "" {
			w.attr("id", n.ID)
		}
		w.raw("><b>")
		w.inlines(n.Children)
		w.raw("</b></p>\n")
	case doctree.KindList:
		tag := "ul"
		if n.Ordered {
			tag = "ol"
		}
		w.raw("<" + tag + ">\n")
		for _, item := range n.Children {
			w.listItem(item)
		}
		w.raw("</" + tag + ">\n")
	case doctree.KindListItem:
		w.listItem(n)
	case doctree.KindBlockquote:
		w.raw("<lq>\n")
		w.blocks(n.Children)
		w.raw("</lq>\n")
	case doctree.KindCode:
		w.raw("<codeblock")
		if n.Language != "" {
			w.attr("outputclass", "language-"+n.Language)
		}
		w.raw(">")
		w.text(n.Value)
		w.raw("</codeblock>\n")
	case doctree.KindTable:
		w.table(n)
	case doctree.KindCallout:
		w.note(n)
	case doctree.KindEmbed:
		w.embed(n)
	case doctree.KindMath:
		w.raw(`<p outputclass="math-display">`)
		w.text(n.Value)
		w.raw("</p>\n")
	case doctree.KindFootnoteDefinition:
		w.blocks([]*doctree.Node{n})
	case doctree.KindHTML, doctree.KindThematicBreak:
		w.unsupported(n)
		w.raw("\n")
	default:
		if n.IsBlock() {
			w.blocks(n.Children)
			return
		}
		w.raw("<p>")
		w.inline(n)
		w.raw("</p>\n")
	}
}

// soleImage returns the image of a paragraph that contains nothing else.
func soleImage(p *doctree.Node) *doctree.Node {
	var img *doctree.Node
	for _, c := range p.Children {
		if c.Kind == doctree.KindText && strings.TrimSpace(c.Value) == "" {
			continue
		}
		if c.Kind != doctree.KindImage || img != nil {
			return nil
		}
		img = c
	}
	return img
}

func (w *xmlWriter) listItem(n *doctree.Node) {
	w.raw("<li")
	if n.Checked != nil {
		state := "task-todo"
		if *n.Checked {
			state = "task-done"
		}
		w.attr("outputclass", state)
	}
	w.raw(">")
	// A single paragraph is written as bare list item text.
	if len(n.Children) == 1 && n.Children[0].Kind == doctree.KindParagraph {
		w.inlines(n.Children[0].Children)
	} else {
		w.raw("\n")
		w.blocks(n.Children)
	}
	w.raw("</li>\n")
}

func (w *xmlWriter) table(n *doctree.Node) {
	cols := 0
	var head, body []*doctree.Node
	for _, row := range n.Children {
		cols = max(cols, len(row.Children))
		if row.Header {
			head = append(head, row)
		} else {
			body = append(body, row)
		}
	}
	// Tables without a marked header use their first row as the head.
	if len(head) == 0 && len(body) > 0 {
		head, body = body[:1], body[1:]
	}
	w.raw("<table><tgroup")
	w.attr("cols", strconv.Itoa(cols))
	w.raw(">\n")
	for i := 0; i < cols; i++ {
		w.raw("<colspec")
		w.attr("colname", "c"+strconv.Itoa(i+1))
		w.raw("/>")
	}
	if cols > 0 {
		w.raw("\n")
	}
	section := func(tag string, rows []*doctree.Node) {
		if len(rows) == 0 {
			return
		}
		w.raw("<" + tag + ">\n")
		for _, row := range rows {
			w.raw("<row>")
			for _, c := range row.Children {
				w.raw("<entry")
				if c.Align != "" {
					w.attr("align", c.Align)
				}
				w.raw(">")
				w.inlines(c.Children)
				w.raw("</entry>")
			}
			w.raw("</row>\n")
		}
		w.raw("</" + tag + ">\n")
	}
	section("thead", head)
	section("tbody", body)
	w.raw("</tgroup></table>\n")
}

func (w *xmlWriter) note(n *doctree.Node) {
	c := n.Callout
	noteType := c.NoteType
	if noteType == "" {
		noteType = "note"
	}
	w.raw("<note")
	w.attr("type", noteType)
	if noteType == "other" {
		w.attr("othertype", c.Type)
	}
	w.raw(">\n")
	if c.Title != "" {
		w.raw(`<p outputclass="note-title"><b>`)
		w.text(c.Title)
		w.raw("</b></p>\n")
	}
	w.blocks(n.Children)
	w.raw("</note>\n")
}

func (w *xmlWriter) embed(n *doctree.Node) {
	e := n.Embed
	if e.Error != nil {
		w.comment("embed " + e.Error.Reason + ": " + e.Source)
		w.raw(`<p outputclass="embed-error">`)
		w.text(e.Error.Message)
		w.raw("</p>\n")
		return
	}
	switch e.Media {
	case doctree.MediaDocument:
		w.raw("<div")
		w.attr("outputclass", "embed")
		w.raw(">\n")
		w.blocks(n.Children)
		w.raw("</div>\n")
	default:
		w.raw("<p>")
		w.inline(n)
		w.raw("</p>\n")
	}
}

func (w *xmlWriter) inlines(children []*doctree.Node) {
	for _, c := range children {
		w.inline(c)
	}
}

func (w *xmlWriter) inline(n *doctree.Node) {
	switch n.Kind {
	case doctree.KindText:
		w.text(doctree.Unescape(n.Value))
	case doctree.KindEmphasis:
		w.wrap("i", n)
	case doctree.KindStrong:
		w.wrap("b", n)
	case doctree.KindStrikethrough:
		w.wrap("line-through", n)
	case doctree.KindCodeSpan:
		w.element("codeph", n.Value)
	case doctree.KindLineBreak:
		w.raw("<?linebreak?>")
	case doctree.KindLink:
		w.xref(n.URL, scopeOf(n.URL), formatOf(n.URL), "")
		w.inlines(n.Children)
		w.raw("</xref>")
	case doctree.KindImage:
		w.image(n, false)
	case doctree.KindWikilink:
		w.wikilink(n)
	case doctree.KindFootnoteReference:
		w.xref("#"+w.topicID+"/fn-"+n.ID, "local", "dita", "fn")
		w.text(strconv.Itoa(n.Index))
		w.raw("</xref>")
	case doctree.KindMath:
		if !n.Inline {
			w.block(n)
			return
		}
		w.raw(`<ph outputclass="math">`)
		w.text(n.Value)
		w.raw("</ph>")
	case doctree.KindEmbed:
		w.inlineEmbed(n)
	default:
		if n.IsBlock() {
			w.block(n)
			return
		}
		w.unsupported(n)
	}
}

func (w *xmlWriter) wrap(tag string, n *doctree.Node) {
	w.raw("<" + tag + ">")
	w.inlines(n.Children)
	w.raw("</" + tag + ">")
}

// xref opens a cross-reference element; the caller writes content and closes it.
func (w *xmlWriter) xref(href, scope, format, typ string) {
	w.raw("<xref")
	w.attr("href", href)
	w.attr("scope", scope)
	if format != "" {
		w.attr("format", format)
	}
	if typ != "" {
		w.attr("type", typ)
	}
	w.raw(">")
}

func (w *xmlWriter) image(n *doctree.Node, block bool) {
	if block && n.Title != "" {
		w.raw("<fig>")
		w.element("title", n.Title)
	}
	w.raw("<image")
	w.attr("href", n.URL)
	if block {
		w.attr("placement", "break")
	}
	w.raw(">")
	if n.Alt != "" {
		w.element("alt", n.Alt)
	}
	w.raw("</image>")
	if block && n.Title != "" {
		w.raw("</fig>")
	}
}

func (w *xmlWriter) inlineEmbed(n *doctree.Node) {
	e := n.Embed
	if e.Error != nil {
		w.comment("embed " + e.Error.Reason + ": " + e.Source)
		return
	}
	href := w.opts.mediaHref(e.Source)
	switch e.Media {
	case doctree.MediaImage:
		w.raw("<image")
		w.attr("href", href)
		for _, kv := range sizeAttrs(e.Size) {
			if kv[0] == "width" || kv[0] == "height" {
				w.attr(kv[0], kv[1])
			}
		}
		w.raw(">")
		if e.Alt != "" {
			w.element("alt", e.Alt)
		}
		w.raw("</image>")
	case doctree.MediaDocument:
		if len(n.Children) > 0 {
			w.embed(n)
			return
		}
		w.xref(e.Source+".dita", "local", "dita", "")
		w.text(embedLabel(e))
		w.raw("</xref>")
	default:
		w.xref(href, scopeOf(href), strings.TrimPrefix(strings.ToLower(path.Ext(e.Source)), "."), "")
		w.text(embedLabel(e))
		w.raw("</xref>")
	}
}

func (w *xmlWriter) wikilink(n *doctree.Node) {
	link := n.Wikilink
	var href, scope, format string
	broken := false
	switch link.Class {
	case doctree.LinkExternal:
		href, scope, format = link.Target, "external", "html"
	case doctree.LinkImage, doctree.LinkDocument:
		href, scope = w.opts.assetHref(link.Target), "local"
		format = strings.TrimPrefix(strings.ToLower(path.Ext(link.Target)), ".")
	default:
		scope, format = "local", "dita"
		var s string
		topic := w.topicID
		if link.Target != "" {
			var ok bool
			s, ok = w.opts.pageTarget(link.Target)
			if !ok {
				s, broken = slug.Normalize(link.Target), true
			}
			href = s + ".dita"
			topic = TopicID(s)
		}
		if link.Fragment != "" {
			href += "#" + topic + "/" + slug.Anchor(link.Fragment)
		}
	}
	w.raw("<xref")
	w.attr("href", href)
	w.attr("scope", scope)
	w.attr("format", format)
	if broken {
		w.attr("outputclass", "broken")
	}
	w.raw(">")
	w.text(link.Label())
	w.raw("</xref>")
}

func scopeOf(href string) string {
	if strings.Contains(href, "://") || strings.HasPrefix(href, "mailto:") {
		return "external"
	}
	return "local"
}

func formatOf(href string) string {
	if scopeOf(href) == "external" {
		return "html"
	}
	if ext := strings.TrimPrefix(strings.ToLower(path.Ext(strings.SplitN(href, "#", 2)[0])), "."); ext != "" {
		return ext
	}
	return "dita"
}
