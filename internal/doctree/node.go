// Package doctree defines the semantic document tree shared by the parser,
// the transform stages and the serializers.
//
// Trees are treated as immutable once built: rewrites return new nodes and
// share every subtree they did not touch.
package doctree

import "strings"

// Kind identifies a node variant.
type Kind string

// Node kinds.
const (
	KindRoot               Kind = "root"
	KindParagraph          Kind = "paragraph"
	KindHeading            Kind = "heading"
	KindList               Kind = "list"
	KindListItem           Kind = "listItem"
	KindBlockquote         Kind = "blockquote"
	KindCode               Kind = "code"
	KindTable              Kind = "table"
	KindTableRow           Kind = "tableRow"
	KindTableCell          Kind = "tableCell"
	KindThematicBreak      Kind = "thematicBreak"
	KindHTML               Kind = "html"
	KindText               Kind = "text"
	KindEmphasis           Kind = "emphasis"
	KindStrong             Kind = "strong"
	KindStrikethrough      Kind = "strikethrough"
	KindCodeSpan           Kind = "codeSpan"
	KindLineBreak          Kind = "lineBreak"
	KindLink               Kind = "link"
	KindImage              Kind = "image"
	KindFootnoteReference  Kind = "footnoteReference"
	KindFootnoteDefinition Kind = "footnoteDefinition"
	KindCallout            Kind = "callout"
	KindEmbed              Kind = "embed"
	KindWikilink           Kind = "wikilink"
	KindMath               Kind = "math"
)

// Node is one element of the semantic tree. Only the fields relevant to
// Kind are populated.
type Node struct {
	Kind     Kind
	Children []*Node

	// Value holds text, code, raw HTML or TeX source.
	Value string
	// Level is the heading level.
	Level int
	// Ordered and Start describe lists.
	Ordered bool
	Start   int
	// Tight lists render their item paragraphs without wrappers.
	Tight bool
	// Checked is the task state of a list item; nil for plain items.
	Checked *bool
	// Language is the info string of a fenced code block.
	Language string
	// Header marks a table row that belongs to the table head.
	Header bool
	// Align is the column alignment of a table cell.
	Align string
	// URL, Title and Alt describe links and images.
	URL   string
	Title string
	Alt   string
	// ID is a heading anchor or a footnote identifier.
	ID string
	// Index is the display number of a bound footnote reference.
	Index int
	// Inline marks inline raw HTML and inline math.
	Inline bool

	Callout  *CalloutInfo
	Embed    *EmbedInfo
	Wikilink *WikilinkInfo
}

// CalloutInfo is attached to callout nodes.
type CalloutInfo struct {
	Type     string
	Title    string
	Icon     string
	Class    string
	NoteType string
	// Fold is "+" or "-" for foldable callouts.
	Fold string
}

// MediaKind classifies an embed source.
type MediaKind string

// Media kinds.
const (
	MediaDocument MediaKind = "document"
	MediaImage    MediaKind = "image"
	MediaAudio    MediaKind = "audio"
	MediaVideo    MediaKind = "video"
	MediaPDF      MediaKind = "pdf"
)

// EmbedInfo is attached to embed nodes. Document embeds receive the target's
// content as Children once resolved.
type EmbedInfo struct {
	Source  string
	Section string
	Alt     string
	Size    string
	Media   MediaKind
	// Resolved is the located path of a resolved document embed.
	Resolved string
	// Error describes a failed resolution.
	Error *EmbedError
}

// EmbedError is the placeholder payload for an embed that could not be resolved.
type EmbedError struct {
	Reason  string
	Message string
	Chain   []string
}

// LinkClass classifies a wikilink target.
type LinkClass string

// Link classes.
const (
	LinkExternal LinkClass = "external"
	LinkImage    LinkClass = "image"
	LinkDocument LinkClass = "document"
	LinkPage     LinkClass = "page"
	LinkSection  LinkClass = "section"
)

// WikilinkInfo is attached to wikilink nodes.
type WikilinkInfo struct {
	Target   string
	Alias    string
	Fragment string
	Class    LinkClass
}

// Label returns the display text of the link.
func (w *WikilinkInfo) Label() string {
	if w.Alias != "" {
		return w.Alias
	}
	if w.Fragment != "" && w.Target == "" {
		return w.Fragment
	}
	if w.Fragment != "" {
		return w.Target + " > " + w.Fragment
	}
	return w.Target
}

// New returns a node of the given kind with children.
func New(kind Kind, children ...*Node) *Node {
	return &Node{Kind: kind, Children: children}
}

// Text returns a text node.
func Text(value string) *Node {
	return &Node{Kind: KindText, Value: value}
}

// Clone returns a shallow copy of n with its own children slice.
func (n *Node) Clone() *Node {
	c := *n
	if n.Children != nil {
		c.Children = append([]*Node(nil), n.Children...)
	}
	return &c
}

// IsBlock reports whether the node is a block-level element.
func (n *Node) IsBlock() bool {
	switch n.Kind {
	case KindRoot, KindParagraph, KindHeading, KindList, KindListItem, KindBlockquote,
		KindCode, KindTable, KindTableRow, KindTableCell, KindThematicBreak,
		KindFootnoteDefinition, KindCallout:
		return true
	case KindHTML, KindMath:
		return !n.Inline
	case KindEmbed:
		return n.Embed != nil && n.Embed.Media == MediaDocument && len(n.Children) > 0
	}
	return false
}

// PlainText flattens the textual content of n.
func PlainText(n *Node) string {
	var b strings.Builder
	writePlain(&b, n)
	return b.String()
}

func writePlain(b *strings.Builder, n *Node) {
	switch n.Kind {
	case KindText:
		b.WriteString(Unescape(n.Value))
		return
	case KindCodeSpan, KindMath:
		b.WriteString(n.Value)
		return
	case KindLineBreak:
		b.WriteByte('\n')
		return
	case KindImage:
		b.WriteString(n.Alt)
		return
	case KindWikilink:
		if n.Wikilink != nil {
			b.WriteString(n.Wikilink.Label())
		}
		return
	case KindFootnoteReference:
		return
	}
	for i, c := range n.Children {
		if i > 0 && c.IsBlock() {
			b.WriteByte('\n')
		}
		writePlain(b, c)
	}
}
