package parser

import (
	"errors"
	"testing"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/models"
)

func firstOf(t *testing.T, root *doctree.Node, kind doctree.Kind) *doctree.Node {
	t.Helper()
	var found *doctree.Node
	doctree.Walk(root, func(n *doctree.Node) bool {
		if found == nil && n.Kind == kind {
			found = n
		}
		return found == nil
	})
	if found == nil {
		t.Fatalf("no %s node in tree", kind)
	}
	return found
}

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - quire\n---\n# Hello\nBody text with #inline tag.\n")
	r := Parse(input, models.KindTopic)
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
	topic, ok := r.Metadata.(*models.TopicMetadata)
	if !ok {
		t.Fatalf("metadata = %T, want topic", r.Metadata)
	}
	if topic.Title != "Hello" {
		t.Errorf("title = %q, want %q", topic.Title, "Hello")
	}
	if r.Body != "# Hello\nBody text with #inline tag.\n" {
		t.Errorf("body = %q", r.Body)
	}
	want := []string{"go", "quire", "inline"}
	if len(r.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", r.Tags, want)
	}
	for i := range want {
		if r.Tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, r.Tags[i], want[i])
		}
	}
}

func TestParse_NoFrontmatterTitleFromHeading(t *testing.T) {
	r := Parse([]byte("## Sub first\n\n# Just a heading\nSome text.\n"), models.KindTopic)
	if r.Fields != nil {
		t.Errorf("expected nil fields, got %v", r.Fields)
	}
	if got := r.Metadata.Topic().Title; got != "Just a heading" {
		t.Errorf("title = %q, want first H1", got)
	}
	if !r.Metadata.Topic().Publish {
		t.Error("publish should default to true")
	}
}

func TestParse_TitleFromRawHTML(t *testing.T) {
	r := Parse([]byte("<div>\n<h1>Legacy Page</h1>\n</div>\n\ntext\n"), models.KindTopic)
	if got := r.Metadata.Topic().Title; got != "Legacy Page" {
		t.Errorf("title = %q", got)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r := Parse(input, models.KindTopic)
	if r.Fields != nil {
		t.Errorf("expected nil fields on invalid YAML")
	}
	if len(r.Warnings) != 1 || !errors.Is(r.Warnings[0], apperr.ErrMalformedPreamble) {
		t.Fatalf("warnings = %v", r.Warnings)
	}
	if r.Body != string(input) {
		t.Errorf("body should be the whole input, got %q", r.Body)
	}
}

func TestParse_UnclosedPreamble(t *testing.T) {
	input := []byte("---\ntitle: x\nno closing fence\n")
	r := Parse(input, models.KindTopic)
	if len(r.Warnings) != 1 || !errors.Is(r.Warnings[0], apperr.ErrMalformedPreamble) {
		t.Fatalf("warnings = %v", r.Warnings)
	}
	if r.Metadata.Topic().Title != "" {
		t.Errorf("title = %q, want empty", r.Metadata.Topic().Title)
	}
}

func TestParse_MapVariant(t *testing.T) {
	r := Parse([]byte("---\ntitle: Guide\ntopics:\n  - intro\n  - setup\n---\n"), models.KindTopic)
	m, ok := r.Metadata.(*models.MapMetadata)
	if !ok {
		t.Fatalf("metadata = %T, want map", r.Metadata)
	}
	if len(m.Topics) != 2 {
		t.Errorf("topics = %v", m.Topics)
	}

	r = Parse([]byte("# Plain\n"), models.KindMap)
	if r.Metadata.Kind() != models.KindMap {
		t.Errorf("hint should select the map variant")
	}
}

func TestParse_StructuralNodes(t *testing.T) {
	src := "# Title\n\n" +
		"- [x] done\n- [ ] todo\n\n" +
		"```go\nfmt.Println()\n```\n\n" +
		"| a | b |\n|:--|--:|\n| 1 | 2 |\n\n" +
		"~~gone~~ and **bold** and `code`\n"
	r := Parse([]byte(src), models.KindTopic)

	list := firstOf(t, r.Root, doctree.KindList)
	if !list.Tight || list.Ordered || len(list.Children) != 2 {
		t.Fatalf("list = %+v", list)
	}
	item := list.Children[0]
	if item.Checked == nil || !*item.Checked {
		t.Errorf("first item should be checked")
	}
	if got := doctree.PlainText(item); got != "done" {
		t.Errorf("item text = %q", got)
	}
	if c := list.Children[1].Checked; c == nil || *c {
		t.Errorf("second item should be unchecked")
	}

	code := firstOf(t, r.Root, doctree.KindCode)
	if code.Language != "go" || code.Value != "fmt.Println()\n" {
		t.Errorf("code = %+v", code)
	}

	table := firstOf(t, r.Root, doctree.KindTable)
	if len(table.Children) != 2 || !table.Children[0].Header {
		t.Fatalf("table rows = %d", len(table.Children))
	}
	if table.Children[1].Children[0].Align != "left" || table.Children[1].Children[1].Align != "right" {
		t.Errorf("alignment not carried")
	}

	firstOf(t, r.Root, doctree.KindStrikethrough)
	firstOf(t, r.Root, doctree.KindStrong)
	firstOf(t, r.Root, doctree.KindCodeSpan)
}

func TestParse_MarkersSurviveAsText(t *testing.T) {
	src := "See [[Page|alias]] and ![[img.png|100]] plus $a*b*c$ and \\(x_1\\)[^1].\n\n[^1]: The note.\n"
	r := Parse([]byte(src), models.KindTopic)

	if len(r.Root.Children) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(r.Root.Children))
	}
	p := r.Root.Children[0]
	if len(p.Children) != 1 || p.Children[0].Kind != doctree.KindText {
		t.Fatalf("markers should merge into one text run, got %d children", len(p.Children))
	}
	want := "See [[Page|alias]] and ![[img.png|100]] plus $a*b*c$ and \\(x_1\\)[^1]."
	if got := p.Children[0].Value; got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	def := r.Root.Children[1]
	if def.Kind != doctree.KindParagraph || doctree.PlainText(def) != "[^1]: The note." {
		t.Errorf("footnote definition paragraph lost: %+v", def)
	}
}

func TestParse_LinkReferenceDefinitions(t *testing.T) {
	src := "  [^n]: Indented note.\n\nRead the [guide][g].\n\n[g]: https://example.com/guide\n"
	r := Parse([]byte(src), models.KindTopic)

	if len(r.Root.Children) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(r.Root.Children))
	}
	if got := doctree.PlainText(r.Root.Children[0]); got != "[^n]: Indented note." {
		t.Errorf("footnote paragraph = %q", got)
	}
	link := firstOf(t, r.Root.Children[1], doctree.KindLink)
	if link.URL != "https://example.com/guide" {
		t.Errorf("link url = %q", link.URL)
	}
}
