package transform

import (
	"regexp"
	"strings"

	"github.com/starford/quire/internal/doctree"
)

// CalloutStyle is the presentation attached to a callout type.
type CalloutStyle struct {
	Icon  string
	Class string
	// NoteType is the XML note type.
	NoteType string
}

var defaultCallout = CalloutStyle{Icon: "pencil", Class: "callout-note", NoteType: "note"}

var calloutStyles = map[string]CalloutStyle{
	"note":      defaultCallout,
	"abstract":  {Icon: "clipboard-list", Class: "callout-abstract", NoteType: "other"},
	"summary":   {Icon: "clipboard-list", Class: "callout-abstract", NoteType: "other"},
	"tldr":      {Icon: "clipboard-list", Class: "callout-abstract", NoteType: "other"},
	"info":      {Icon: "info", Class: "callout-info", NoteType: "note"},
	"todo":      {Icon: "check-circle", Class: "callout-todo", NoteType: "other"},
	"tip":       {Icon: "flame", Class: "callout-tip", NoteType: "tip"},
	"hint":      {Icon: "flame", Class: "callout-tip", NoteType: "tip"},
	"important": {Icon: "flame", Class: "callout-important", NoteType: "important"},
	"success":   {Icon: "check", Class: "callout-success", NoteType: "other"},
	"check":     {Icon: "check", Class: "callout-success", NoteType: "other"},
	"done":      {Icon: "check", Class: "callout-success", NoteType: "other"},
	"question":  {Icon: "help-circle", Class: "callout-question", NoteType: "other"},
	"help":      {Icon: "help-circle", Class: "callout-question", NoteType: "other"},
	"faq":       {Icon: "help-circle", Class: "callout-question", NoteType: "other"},
	"warning":   {Icon: "alert-triangle", Class: "callout-warning", NoteType: "warning"},
	"attention": {Icon: "alert-triangle", Class: "callout-warning", NoteType: "warning"},
	"caution":   {Icon: "alert-triangle", Class: "callout-caution", NoteType: "caution"},
	"failure":   {Icon: "x", Class: "callout-failure", NoteType: "other"},
	"fail":      {Icon: "x", Class: "callout-failure", NoteType: "other"},
	"missing":   {Icon: "x", Class: "callout-failure", NoteType: "other"},
	"danger":    {Icon: "zap", Class: "callout-danger", NoteType: "danger"},
	"error":     {Icon: "zap", Class: "callout-danger", NoteType: "danger"},
	"bug":       {Icon: "bug", Class: "callout-bug", NoteType: "other"},
	"example":   {Icon: "list", Class: "callout-example", NoteType: "other"},
	"quote":     {Icon: "quote", Class: "callout-quote", NoteType: "other"},
	"cite":      {Icon: "quote", Class: "callout-quote", NoteType: "other"},
}

// StyleFor returns the style of a callout type, or the note style when the
// type is unknown.
func StyleFor(calloutType string) CalloutStyle {
	if s, ok := calloutStyles[strings.ToLower(calloutType)]; ok {
		return s
	}
	return defaultCallout
}

var calloutRe = regexp.MustCompile(`^\s*\[!([A-Za-z][\w-]*)\]([+-]?)[ \t]*`)

// Callouts turns blockquotes whose first line is [!type] title into callout
// nodes. The marker line is removed; the rest of the quote becomes the body.
func Callouts(root *doctree.Node, _ *Context) *doctree.Node {
	var visit doctree.Visitor
	visit = func(n *doctree.Node) ([]*doctree.Node, doctree.Action) {
		if n.Kind != doctree.KindBlockquote {
			if opaque(n) {
				return nil, doctree.Skip
			}
			return nil, doctree.Continue
		}
		callout := parseCallout(n)
		if callout == nil {
			return nil, doctree.Continue
		}
		// Replacements are not revisited, so nested quotes are handled here.
		callout.Children = doctree.Rewrite(doctree.New(doctree.KindRoot, callout.Children...), visit).Children
		return []*doctree.Node{callout}, doctree.Replace
	}
	return doctree.Rewrite(root, visit)
}

func parseCallout(quote *doctree.Node) *doctree.Node {
	if len(quote.Children) == 0 || quote.Children[0].Kind != doctree.KindParagraph {
		return nil
	}
	para := quote.Children[0]
	if len(para.Children) == 0 || para.Children[0].Kind != doctree.KindText {
		return nil
	}
	lead := para.Children[0].Value
	m := calloutRe.FindStringSubmatchIndex(lead)
	if m == nil {
		return nil
	}
	calloutType := strings.ToLower(lead[m[2]:m[3]])
	fold := lead[m[4]:m[5]]

	// The title runs to the end of the first line, possibly across inline nodes.
	inlines := append([]*doctree.Node{doctree.Text(lead[m[1]:])}, para.Children[1:]...)
	var title, rest []*doctree.Node
	for i, c := range inlines {
		if c.Kind == doctree.KindLineBreak {
			rest = inlines[i+1:]
			break
		}
		if c.Kind == doctree.KindText {
			if before, after, ok := strings.Cut(c.Value, "\n"); ok {
				title = append(title, doctree.Text(before))
				rest = append([]*doctree.Node{doctree.Text(after)}, inlines[i+1:]...)
				break
			}
		}
		title = append(title, c)
	}

	style := StyleFor(calloutType)
	titleText := strings.TrimSpace(doctree.PlainText(doctree.New(doctree.KindParagraph, title...)))
	node := &doctree.Node{
		Kind: doctree.KindCallout,
		Callout: &doctree.CalloutInfo{
			Type:     calloutType,
			Title:    titleText,
			Icon:     style.Icon,
			Class:    style.Class,
			NoteType: style.NoteType,
			Fold:     fold,
		},
	}

	rest = doctree.MergeText(rest)
	if len(rest) > 0 && !(len(rest) == 1 && rest[0].Kind == doctree.KindText && strings.TrimSpace(rest[0].Value) == "") {
		p := para.Clone()
		p.Children = rest
		node.Children = append(node.Children, p)
	}
	node.Children = append(node.Children, quote.Children[1:]...)
	return node
}
