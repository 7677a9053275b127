package transform

import (
	"slices"
	"testing"

	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/parser"
)

func parse(t *testing.T, src string) *doctree.Node {
	t.Helper()
	return parser.Parse([]byte(src), models.KindTopic).Root
}

func collect(root *doctree.Node, kind doctree.Kind) []*doctree.Node {
	var out []*doctree.Node
	doctree.Walk(root, func(n *doctree.Node) bool {
		if n.Kind == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

func TestEmbedDisambiguation(t *testing.T) {
	cases := []struct {
		body, alt, size string
	}{
		{"img.png|100", "", "100"},
		{"img.png|a cat", "a cat", ""},
		{"img.png|a cat|100x50", "a cat", "100x50"},
		{"img.png|100x50|a cat", "a cat", "100x50"},
		{"img.png|width=300", "", "width=300"},
		{"img.png|100x50", "", "100x50"},
	}
	for _, c := range cases {
		info := ParseEmbed(c.body)
		if info.Alt != c.alt || info.Size != c.size {
			t.Errorf("ParseEmbed(%q) = alt %q size %q, want alt %q size %q",
				c.body, info.Alt, info.Size, c.alt, c.size)
		}
		if info.Media != doctree.MediaImage {
			t.Errorf("ParseEmbed(%q) media = %s", c.body, info.Media)
		}
	}
}

func TestEmbedMediaAndSection(t *testing.T) {
	info := ParseEmbed("guide#Install Steps")
	if info.Source != "guide" || info.Section != "Install Steps" || info.Media != doctree.MediaDocument {
		t.Errorf("unexpected embed: %+v", info)
	}
	for src, want := range map[string]doctree.MediaKind{
		"a.mp3":  doctree.MediaAudio,
		"a.webm": doctree.MediaVideo,
		"a.PDF":  doctree.MediaPDF,
		"a.md":   doctree.MediaDocument,
	} {
		if got := ParseEmbed(src).Media; got != want {
			t.Errorf("media(%q) = %s, want %s", src, got, want)
		}
	}
}

func TestWikilinkClassification(t *testing.T) {
	cases := map[string]doctree.LinkClass{
		"https://example.com|site": doctree.LinkExternal,
		"diagram.svg":              doctree.LinkImage,
		"report.pdf":               doctree.LinkDocument,
		"guide#Install":            doctree.LinkSection,
		"#Local":                   doctree.LinkSection,
		"guide":                    doctree.LinkPage,
	}
	for body, want := range cases {
		if got := ParseWikilink(body).Class; got != want {
			t.Errorf("ParseWikilink(%q).Class = %s, want %s", body, got, want)
		}
	}
	w := ParseWikilink(`guide#Install\|Set up`)
	if w.Target != "guide" || w.Fragment != "Install" || w.Alias != "Set up" {
		t.Errorf("unexpected wikilink: %+v", w)
	}
}

func TestWikilinkAndEmbedStagesAreIndependent(t *testing.T) {
	root := parse(t, "Read ![[chart.png|200]][[notes|the notes]] now.\n")
	root = Embeds(Wikilinks(root, NewContext("x")), NewContext("x"))

	p := root.Children[0]
	kinds := []doctree.Kind{}
	for _, c := range p.Children {
		kinds = append(kinds, c.Kind)
	}
	want := []doctree.Kind{doctree.KindText, doctree.KindEmbed, doctree.KindWikilink, doctree.KindText}
	if len(kinds) != len(want) {
		t.Fatalf("children = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("children = %v, want %v", kinds, want)
		}
	}
	if p.Children[1].Embed.Size != "200" || p.Children[2].Wikilink.Alias != "the notes" {
		t.Errorf("payloads not carried")
	}
}

func TestDocumentEmbedIsHoisted(t *testing.T) {
	root := Embeds(parse(t, "![[other#Intro]]\n\ntext ![[inline-doc]] more\n"), NewContext("x"))
	if root.Children[0].Kind != doctree.KindEmbed {
		t.Fatalf("standalone document embed should replace its paragraph, got %s", root.Children[0].Kind)
	}
	kinds := make([]doctree.Kind, len(root.Children))
	for i, c := range root.Children {
		kinds[i] = c.Kind
	}
	want := []doctree.Kind{doctree.KindEmbed, doctree.KindParagraph, doctree.KindEmbed, doctree.KindParagraph}
	if !slices.Equal(kinds, want) {
		t.Fatalf("children = %v, want %v", kinds, want)
	}
	if got := doctree.PlainText(root.Children[1]); got != "text" {
		t.Errorf("text before embed = %q", got)
	}
	if got := doctree.PlainText(root.Children[3]); got != "more" {
		t.Errorf("text after embed = %q", got)
	}
}

func TestImageEmbedStaysInline(t *testing.T) {
	root := Embeds(parse(t, "see ![[chart.png]] here\n"), NewContext("x"))
	if len(root.Children) != 1 || root.Children[0].Kind != doctree.KindParagraph {
		t.Fatalf("media embed should stay in its paragraph: %+v", root.Children)
	}
}

func TestCalloutParsing(t *testing.T) {
	root := parse(t, "> [!warning] Careful\n> Hot surface.\n>\n> Second paragraph.\n")
	root = Callouts(root, NewContext("x"))

	if len(root.Children) != 1 || root.Children[0].Kind != doctree.KindCallout {
		t.Fatalf("expected a single callout")
	}
	c := root.Children[0]
	if c.Callout.Type != "warning" || c.Callout.Title != "Careful" {
		t.Errorf("callout = %+v", c.Callout)
	}
	if c.Callout.Icon != "alert-triangle" || c.Callout.NoteType != "warning" {
		t.Errorf("style not applied: %+v", c.Callout)
	}
	if len(c.Children) != 2 {
		t.Fatalf("body paragraphs = %d, want 2", len(c.Children))
	}
	if got := doctree.PlainText(c.Children[0]); got != "Hot surface." {
		t.Errorf("first body paragraph = %q", got)
	}
	if got := doctree.PlainText(c); got != "Hot surface.\nSecond paragraph." {
		t.Errorf("marker line should be gone, got %q", got)
	}
}

func TestCalloutDefaultsAndFold(t *testing.T) {
	root := Callouts(parse(t, "> [!Mystery]-\n> body\n"), NewContext("x"))
	c := root.Children[0]
	if c.Kind != doctree.KindCallout {
		t.Fatalf("kind = %s", c.Kind)
	}
	if c.Callout.Type != "mystery" || c.Callout.Fold != "-" || c.Callout.Title != "" {
		t.Errorf("callout = %+v", c.Callout)
	}
	if c.Callout.Class != "callout-note" {
		t.Errorf("unknown type should use the default style, got %q", c.Callout.Class)
	}
}

func TestNestedCallout(t *testing.T) {
	root := Callouts(parse(t, "> [!note] Outer\n> > [!tip] Inner\n> > nested\n"), NewContext("x"))
	if len(collect(root, doctree.KindCallout)) != 2 {
		t.Errorf("expected nested callouts to be converted")
	}
}

func TestPlainBlockquoteUntouched(t *testing.T) {
	in := parse(t, "> just a quote\n")
	out := Callouts(in, NewContext("x"))
	if out != in {
		t.Error("tree without callouts should be shared")
	}
}

func TestFootnotes(t *testing.T) {
	src := "Second[^b] then first[^a] and again[^b] and missing[^zz].\n\n" +
		"[^a]: Note A.\n[^b]: Note B with [^c].\n\n[^c]: Nested.\n\n[^unused]: Never cited.\n"
	ctx := NewContext("x")
	root := Footnotes(parse(t, src), ctx)

	refs := collect(root, doctree.KindFootnoteReference)
	if len(refs) != 4 {
		t.Fatalf("references = %d, want 4", len(refs))
	}
	if refs[0].ID != "b" || refs[0].Index != 1 || refs[1].Index != 2 || refs[2].Index != 1 {
		t.Errorf("numbering follows first reference: %+v %+v %+v", refs[0], refs[1], refs[2])
	}
	if refs[3].ID != "c" || refs[3].Index != 3 {
		t.Errorf("nested reference = %+v", refs[3])
	}

	defs := collect(root, doctree.KindFootnoteDefinition)
	if len(defs) != 3 || defs[0].ID != "b" || defs[1].ID != "a" || defs[2].ID != "c" {
		t.Fatalf("definitions out of order: %d", len(defs))
	}
	if got := doctree.PlainText(defs[1]); got != "Note A." {
		t.Errorf("definition body = %q", got)
	}

	first := doctree.PlainText(root.Children[0])
	if want := "Second then first and again and missing[^zz]."; first != want {
		t.Errorf("paragraph = %q, want %q", first, want)
	}

	if len(ctx.Footnotes) != 3 || ctx.Footnotes[0].Refs != 2 {
		t.Errorf("footnotes = %+v", ctx.Footnotes)
	}
	var unbound, unused int
	for _, d := range ctx.Diagnostics {
		switch d.Code {
		case models.CodeUnboundFootnote:
			unbound++
		case models.CodeUnusedFootnote:
			unused++
		}
	}
	if unbound != 1 || unused != 1 {
		t.Errorf("diagnostics = %+v", ctx.Diagnostics)
	}
}

func TestMath(t *testing.T) {
	root := Math(parse(t, "Euler: $e^{i\\pi}+1=0$ and \\(a*b*c\\).\n\n$$\n\\int_0^1 x\\,dx\n$$\n"), NewContext("x"))
	math := collect(root, doctree.KindMath)
	if len(math) != 3 {
		t.Fatalf("math nodes = %d, want 3", len(math))
	}
	if !math[0].Inline || math[0].Value != `e^{i\pi}+1=0` {
		t.Errorf("inline = %+v", math[0])
	}
	if math[1].Value != "a*b*c" {
		t.Errorf("emphasis must not split math: %q", math[1].Value)
	}
	if math[2].Inline || root.Children[1].Kind != doctree.KindMath {
		t.Errorf("display math should be a block")
	}
}

func TestCodeIsOpaque(t *testing.T) {
	root := parse(t, "`[[not a link]]` and\n\n```\n![[nor an embed]]\n```\n")
	out := Default().Transform(root, NewContext("x"))
	if len(collect(out, doctree.KindWikilink))+len(collect(out, doctree.KindEmbed)) != 0 {
		t.Error("code must not be tokenized")
	}
}

func TestOutlineAnchors(t *testing.T) {
	root := parse(t, "# Intro\n\n## Setup\n\n## Setup\n\n> [!tip] T\n> ### Inside\n")
	ctx := NewContext("x")
	root = Default().Transform(root, ctx)

	want := []models.TocEntry{
		{ID: "intro", Text: "Intro", Level: 1},
		{ID: "setup", Text: "Setup", Level: 2},
		{ID: "setup-1", Text: "Setup", Level: 2},
		{ID: "inside", Text: "Inside", Level: 3},
	}
	if len(ctx.TOC) != len(want) {
		t.Fatalf("toc = %+v", ctx.TOC)
	}
	for i := range want {
		if ctx.TOC[i] != want[i] {
			t.Errorf("toc[%d] = %+v, want %+v", i, ctx.TOC[i], want[i])
		}
	}
	if h := collect(root, doctree.KindHeading)[2]; h.ID != "setup-1" {
		t.Errorf("heading id = %q", h.ID)
	}
}

func TestTransformIsPure(t *testing.T) {
	root := parse(t, "# T\n\nA [[link]] and $x$.\n")
	before := doctree.PlainText(root)
	_ = Default().Transform(root, NewContext("x"))
	if doctree.PlainText(root) != before || root.Children[0].ID != "" {
		t.Error("input tree was mutated")
	}
}

func TestPipelineOrder(t *testing.T) {
	got := Default().Stages()
	want := []string{"wikilink", "embed", "callout", "footnote", "math"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stages = %v", got)
		}
	}
}
