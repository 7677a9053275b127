package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/locator"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/storage"
	"github.com/starford/quire/internal/testutil"
)

// countingStore counts reads and can hold them until release is closed.
type countingStore struct {
	storage.Provider
	mu      sync.Mutex
	reads   map[string]int
	release chan struct{}
	fail    map[string]error
}

func (c *countingStore) Read(path string) ([]byte, error) {
	c.mu.Lock()
	if c.reads == nil {
		c.reads = make(map[string]int)
	}
	c.reads[path]++
	err := c.fail[path]
	c.mu.Unlock()
	if c.release != nil {
		<-c.release
	}
	if err != nil {
		return nil, err
	}
	return c.Provider.Read(path)
}

func (c *countingStore) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[path]
}

type fixture struct {
	root   string
	store  *countingStore
	loc    *locator.Locator
	loader *Loader
}

func newFixture(t *testing.T, files map[string]string, opts ...Option) *fixture {
	t.Helper()
	root, base := testutil.TestContent(t, files)
	store := &countingStore{Provider: base}
	loc := locator.New(store)
	return &fixture{root: root, store: store, loc: loc, loader: New(store, loc, opts...)}
}

func mustLoad(t *testing.T, l *Loader, ref string) *models.ResolvedDocument {
	t.Helper()
	doc, err := l.Load(context.Background(), ref)
	if err != nil {
		t.Fatalf("Load(%q): %v", ref, err)
	}
	return doc
}

// embedNodes returns the embed nodes of a tree in document order.
func embedNodes(root *doctree.Node) []*doctree.Node {
	var out []*doctree.Node
	doctree.Walk(root, func(n *doctree.Node) bool {
		if n.Kind == doctree.KindEmbed {
			out = append(out, n)
		}
		return true
	})
	return out
}

func hasDiagnostic(doc *models.ResolvedDocument, code string) bool {
	for _, d := range doc.Diagnostics {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestLoadSimpleDocument(t *testing.T) {
	f := newFixture(t, map[string]string{
		"topics/intro.md": "---\ntitle: Intro\ntags: [start]\n---\n# Welcome\n\nHello [[other]].\n",
	})
	doc := mustLoad(t, f.loader, "intro")

	if doc.Slug != "intro" || doc.Path != "topics/intro.md" {
		t.Errorf("slug/path = %q/%q, want intro/topics/intro.md", doc.Slug, doc.Path)
	}
	if doc.Title() != "Intro" {
		t.Errorf("title = %q, want Intro", doc.Title())
	}
	if doc.Checksum == "" {
		t.Error("checksum is empty")
	}
	if len(doc.TOC) != 1 || doc.TOC[0].ID != "welcome" {
		t.Errorf("toc = %+v", doc.TOC)
	}
	if !strings.Contains(doc.HTML, `<h1 id="welcome">Welcome</h1>`) {
		t.Errorf("html = %s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, `class="wikilink wikilink-page broken"`) {
		t.Errorf("missing wikilink target not marked broken: %s", doc.HTML)
	}
	if !strings.Contains(doc.XML, `<topic id="intro">`) {
		t.Errorf("xml = %s", doc.XML)
	}
	if len(doc.Links) != 1 || doc.Links[0].Target != "other" || doc.Links[0].Type != "wikilink" {
		t.Errorf("links = %+v", doc.Links)
	}
}

func TestLoadNotFound(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "a"})
	_, err := f.loader.Load(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := f.loader.Load(context.Background(), "  /  "); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("empty ref err = %v, want ErrNotFound", err)
	}
}

func TestLoadCacheHitReturnsSamePointer(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "# A\n"})
	first := mustLoad(t, f.loader, "a")
	second := mustLoad(t, f.loader, "a.md")
	if first != second {
		t.Error("second load did not return the cached document")
	}
	if n := f.store.count("a.md"); n != 1 {
		t.Errorf("reads = %d, want 1", n)
	}
	if f.loader.Cached() != 1 {
		t.Errorf("cached = %d, want 1", f.loader.Cached())
	}
}

func TestClearForcesReread(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "first\n"})
	first := mustLoad(t, f.loader, "a")

	testutil.WriteFile(t, f.root, "a.md", "second\n")
	if again := mustLoad(t, f.loader, "a"); again != first {
		t.Error("cached document replaced before Clear")
	}

	f.loader.Clear()
	second := mustLoad(t, f.loader, "a")
	if second == first {
		t.Fatal("Clear did not drop the cached document")
	}
	if !strings.Contains(second.HTML, "second") {
		t.Errorf("html = %q, want updated content", second.HTML)
	}
	if f.store.count("a.md") != 2 {
		t.Errorf("reads = %d, want 2", f.store.count("a.md"))
	}
}

func TestDeterministic(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.md": "# Title\n\n> [!tip] Hint\n> Body[^1]\n\n| x | y |\n|---|---|\n| 1 | 2 |\n\n$$a^2$$\n\n[^1]: Note.\n",
	})
	first := mustLoad(t, f.loader, "a")
	f.loader.Clear()
	second := mustLoad(t, f.loader, "a")
	if first.HTML != second.HTML || first.XML != second.XML {
		t.Error("output differs across loads of unchanged source")
	}
}

func TestConcurrentLoadsCoalesce(t *testing.T) {
	f := newFixture(t, map[string]string{"x.md": "# X\n\nplain body\n"})
	f.store.release = make(chan struct{})

	const callers = 10
	var wg sync.WaitGroup
	docs := make([]*models.ResolvedDocument, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docs[i], errs[i] = f.loader.Load(context.Background(), "x")
		}()
	}
	// Let every caller attach before the single read completes.
	time.Sleep(50 * time.Millisecond)
	close(f.store.release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
		if docs[i] != docs[0] {
			t.Errorf("caller %d got a different document", i)
		}
	}
	if n := f.store.count("x.md"); n != 1 {
		t.Errorf("reads = %d, want 1", n)
	}
	if n := f.loc.Calls(); n != 1 {
		t.Errorf("locator calls = %d, want 1", n)
	}
}

func TestEmbedCycle(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.md": "A start\n\n![[b]]\n\nA end\n",
		"b.md": "B start\n\n![[a]]\n",
	})
	done := make(chan *models.ResolvedDocument, 1)
	go func() {
		doc, err := f.loader.Load(context.Background(), "a")
		if err != nil {
			t.Errorf("Load(a): %v", err)
		}
		done <- doc
	}()

	var doc *models.ResolvedDocument
	select {
	case doc = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Load(a) did not complete")
	}
	if doc == nil {
		return
	}

	embeds := embedNodes(doc.Tree)
	if len(embeds) != 2 {
		t.Fatalf("embeds = %d, want 2 (b and b's embed of a)", len(embeds))
	}
	if embeds[0].Embed.Error != nil {
		t.Fatalf("embed of b failed: %+v", embeds[0].Embed.Error)
	}
	inner := embeds[1].Embed.Error
	if inner == nil || inner.Reason != models.CodeCircularEmbed {
		t.Fatalf("inner embed error = %+v, want circular", inner)
	}
	if got := strings.Join(inner.Chain, ">"); got != "a>b>a" {
		t.Errorf("chain = %q, want a>b>a", got)
	}
	if !strings.Contains(doc.HTML, "A end") || !strings.Contains(doc.HTML, "B start") {
		t.Errorf("parent content incomplete: %s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, `data-embed-reason="circular_embed"`) {
		t.Errorf("missing cycle placeholder: %s", doc.HTML)
	}
}

func TestSelfEmbed(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "x\n\n![[a]]\n"})
	doc := mustLoad(t, f.loader, "a")
	e := embedNodes(doc.Tree)
	if len(e) != 1 || e[0].Embed.Error == nil {
		t.Fatalf("self embed not rejected: %+v", e)
	}
	if !hasDiagnostic(doc, models.CodeCircularEmbed) {
		t.Error("missing circular diagnostic")
	}
}

func TestCycleResultOnlyCachedAtRoot(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.md": "![[b]]\n",
		"b.md": "![[a]]\n",
	})
	mustLoad(t, f.loader, "a")
	// b was built under a's chain and embeds a refusal of a; it stays uncached.
	if f.loader.Cached() != 1 {
		t.Errorf("cached = %d, want 1", f.loader.Cached())
	}
	b := mustLoad(t, f.loader, "b")
	if e := embedNodes(b.Tree); len(e) == 0 || e[0].Embed.Error != nil {
		t.Errorf("direct load of b should splice a: %+v", e)
	}
}

func TestEmbedNotFoundPlaceholder(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.md": "before\n\n![[ghost]]\n\nafter\n",
	})
	doc := mustLoad(t, f.loader, "a")
	if !strings.Contains(doc.HTML, `data-embed-reason="embed_not_found"`) {
		t.Errorf("html = %s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, "after") {
		t.Error("parent did not complete")
	}
	if !hasDiagnostic(doc, models.CodeEmbedNotFound) {
		t.Error("missing not-found diagnostic")
	}
	if len(doc.Embeds) != 1 || doc.Embeds[0].Error == "" {
		t.Errorf("embeds = %+v", doc.Embeds)
	}
}

func TestEmbedIOFailurePropagates(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.md": "![[b]]\n",
		"b.md": "b\n",
	})
	f.store.fail = map[string]error{"b.md": &fs.PathError{Op: "open", Path: "b.md", Err: os.ErrPermission}}

	_, err := f.loader.Load(context.Background(), "a")
	if !errors.Is(err, apperr.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("err = %v, want wrapped permission error", err)
	}
	if f.loader.Cached() != 0 {
		t.Errorf("cached = %d, want 0", f.loader.Cached())
	}
}

func TestSectionEmbed(t *testing.T) {
	f := newFixture(t, map[string]string{
		"host.md": "![[doc#Intro]]\n",
		"doc.md":  "# Doc\n\n## Intro\n\nintro text\n\n### Sub\n\nsub text\n\n## Details\n\ndetail text\n",
	})
	doc := mustLoad(t, f.loader, "host")
	if !strings.Contains(doc.HTML, "intro text") || !strings.Contains(doc.HTML, "sub text") {
		t.Errorf("section content missing: %s", doc.HTML)
	}
	if strings.Contains(doc.HTML, "detail text") || strings.Contains(doc.HTML, ">Doc</h1>") {
		t.Errorf("content outside the section leaked: %s", doc.HTML)
	}
	if hasDiagnostic(doc, models.CodeMissingSection) {
		t.Error("unexpected missing-section diagnostic")
	}
}

func TestSectionEmbedFallsBackToFullContent(t *testing.T) {
	f := newFixture(t, map[string]string{
		"host.md": "![[doc#Nowhere]]\n",
		"doc.md":  "## Intro\n\nintro text\n\n## Details\n\ndetail text\n",
	})
	doc := mustLoad(t, f.loader, "host")
	if !strings.Contains(doc.HTML, "intro text") || !strings.Contains(doc.HTML, "detail text") {
		t.Errorf("fallback did not embed full content: %s", doc.HTML)
	}
	if !hasDiagnostic(doc, models.CodeMissingSection) {
		t.Error("missing-section diagnostic not recorded")
	}
}

func TestEmbedOrderPreserved(t *testing.T) {
	files := map[string]string{
		"host.md": "![[one]]\n\n![[two]]\n\n![[three]]\n\n![[four]]\n",
	}
	for _, n := range []string{"one", "two", "three", "four"} {
		files[n+".md"] = "content-" + n + "\n"
	}
	f := newFixture(t, files, WithMaxConcurrency(2))
	doc := mustLoad(t, f.loader, "host")

	last := -1
	for _, n := range []string{"one", "two", "three", "four"} {
		i := strings.Index(doc.HTML, "content-"+n)
		if i < 0 || i < last {
			t.Fatalf("embed %s out of order in %s", n, doc.HTML)
		}
		last = i
	}
	if len(doc.Links) != 4 {
		t.Errorf("links = %+v, want 4 embed edges", doc.Links)
	}
}

func TestNestingDeeperThanSlots(t *testing.T) {
	f := newFixture(t, map[string]string{
		"l1.md": "![[l2]]\n",
		"l2.md": "![[l3]]\n",
		"l3.md": "![[l4]]\n",
		"l4.md": "leaf\n",
	}, WithMaxConcurrency(1))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	doc, err := f.loader.Load(ctx, "l1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(doc.HTML, "leaf") {
		t.Errorf("html = %s", doc.HTML)
	}
}

func TestInvalidateEvictsDependents(t *testing.T) {
	f := newFixture(t, map[string]string{
		"host.md": "![[part]]\n",
		"part.md": "old part\n",
		"solo.md": "solo\n",
	})
	mustLoad(t, f.loader, "host")
	mustLoad(t, f.loader, "solo")

	testutil.WriteFile(t, f.root, "part.md", "new part\n")
	evicted := f.loader.Invalidate("part")
	if strings.Join(evicted, ",") != "host,part" {
		t.Errorf("evicted = %v, want [host part]", evicted)
	}
	if f.loader.Cached() != 1 {
		t.Errorf("cached = %d, want 1 (solo)", f.loader.Cached())
	}
	doc := mustLoad(t, f.loader, "host")
	if !strings.Contains(doc.HTML, "new part") {
		t.Errorf("host not rebuilt: %s", doc.HTML)
	}
}

func TestInvalidateEvictsLinkers(t *testing.T) {
	f := newFixture(t, map[string]string{
		"intro.md": "See [[other]].\n",
		"host.md":  "![[intro]]\n",
		"outer.md": "Back to [[intro]].\n",
	})
	if doc := mustLoad(t, f.loader, "intro"); !strings.Contains(doc.HTML, "broken") {
		t.Fatalf("precondition: link should be broken: %s", doc.HTML)
	}
	mustLoad(t, f.loader, "host")
	mustLoad(t, f.loader, "outer")

	testutil.WriteFile(t, f.root, "other.md", "# Other\n")
	evicted := f.loader.Invalidate("other.md")
	if strings.Join(evicted, ",") != "host,intro" {
		t.Errorf("evicted = %v, want [host intro]", evicted)
	}

	for _, ref := range []string{"intro", "host"} {
		if doc := mustLoad(t, f.loader, ref); strings.Contains(doc.HTML, "broken") {
			t.Errorf("%s still marks the link broken: %s", ref, doc.HTML)
		}
	}

	if err := os.Remove(filepath.Join(f.root, "other.md")); err != nil {
		t.Fatal(err)
	}
	f.loader.Invalidate("other")
	if doc := mustLoad(t, f.loader, "intro"); !strings.Contains(doc.HTML, "broken") {
		t.Errorf("link should be broken again: %s", doc.HTML)
	}
}

// gaugeStore tracks how many reads run at once.
type gaugeStore struct {
	storage.Provider
	active atomic.Int64
	peak   atomic.Int64
}

func (g *gaugeStore) Read(path string) ([]byte, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return g.Provider.Read(path)
}

func TestConcurrencyBoundOnDistinctLoads(t *testing.T) {
	files := map[string]string{}
	for i := range 20 {
		files[fmt.Sprintf("doc%d.md", i)] = fmt.Sprintf("# Café Überblick %d\n\n## Détails\n\nBody %d.\n", i, i)
	}
	_, base := testutil.TestContent(t, files)
	store := &gaugeStore{Provider: base}
	l := New(store, locator.New(store), WithMaxConcurrency(3))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := l.Load(context.Background(), fmt.Sprintf("doc%d", i))
			if err != nil {
				errs <- err
				return
			}
			if len(doc.TOC) != 2 || doc.TOC[0].ID != fmt.Sprintf("cafe-uberblick-%d", i) {
				errs <- fmt.Errorf("doc%d toc = %+v", i, doc.TOC)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if peak := store.peak.Load(); peak > 3 || peak < 1 {
		t.Errorf("peak concurrent reads = %d, want 1..3", peak)
	}
	if l.Cached() != 20 {
		t.Errorf("cached = %d, want 20", l.Cached())
	}
}

// gatedStore holds the first and second read of one path until the matching
// channel is closed.
type gatedStore struct {
	storage.Provider
	path          string
	first, second chan struct{}
	reads         atomic.Int64
}

func (g *gatedStore) Read(path string) ([]byte, error) {
	if path == g.path {
		switch g.reads.Add(1) {
		case 1:
			<-g.first
		case 2:
			<-g.second
		}
	}
	return g.Provider.Read(path)
}

func waitFor(t *testing.T, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !fn() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func (l *Loader) waiting() int {
	l.waits.mu.Lock()
	defer l.waits.mu.Unlock()
	return len(l.waits.edges)
}

func TestSharedOpenResultRebuiltForCallerChain(t *testing.T) {
	_, base := testutil.TestContent(t, map[string]string{
		"a.md": "![[b]]\n",
		"b.md": "![[a]]\n",
	})
	store := &gatedStore{Provider: base, path: "b.md", first: make(chan struct{}), second: make(chan struct{})}
	l := New(store, locator.New(store))

	aDone := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), "a")
		aDone <- err
	}()
	waitFor(t, func() bool { return store.reads.Load() == 1 })

	// b is now in flight under a's chain; a top-level load of b joins it.
	bDone := make(chan *models.ResolvedDocument, 1)
	go func() {
		doc, err := l.Load(context.Background(), "b")
		if err != nil {
			t.Error(err)
		}
		bDone <- doc
	}()
	time.Sleep(20 * time.Millisecond)
	close(store.first)

	if err := <-aDone; err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return l.waiting() == 0 })
	close(store.second)

	b := <-bDone
	if b == nil {
		t.FailNow()
	}
	e := embedNodes(b.Tree)
	if len(e) == 0 || e[0].Embed.Error != nil {
		t.Errorf("top-level b carries a placeholder built for a's chain: %+v", e)
	}
}

func TestInlineDocumentEmbedSplitsParagraph(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.md": "see ![[b]] here\n",
		"b.md": "B body\n",
	})
	doc := mustLoad(t, f.loader, "a")
	for name, out := range map[string]string{"html": doc.HTML, "xml": doc.XML} {
		if !strings.Contains(out, "<p>see</p>") || !strings.Contains(out, "<p>here</p>") {
			t.Errorf("%s: surrounding text not in its own paragraphs: %s", name, out)
		}
		if strings.Contains(out, "see <") {
			t.Errorf("%s: embed rendered inside a paragraph: %s", name, out)
		}
	}
	if !strings.Contains(doc.HTML, "B body") {
		t.Errorf("embed not spliced: %s", doc.HTML)
	}
}

func TestMapTopics(t *testing.T) {
	f := newFixture(t, map[string]string{
		"maps/guide.md":           "---\ntitle: Guide\naudience: intermediate\ntopics:\n  - basics\n  - expert-tricks\n  - missing\n---\n",
		"topics/basics.md":        "---\ntitle: Basics\naudience: beginner\n---\nbody\n",
		"topics/expert-tricks.md": "---\ntitle: Tricks\naudience: expert\n---\nbody\n",
	})
	doc := mustLoad(t, f.loader, "guide")

	if doc.Metadata.Kind() != models.KindMap {
		t.Fatalf("kind = %s, want map", doc.Metadata.Kind())
	}
	want := []models.TopicRef{
		{Ref: "basics", Slug: "basics", Path: "topics/basics.md", Title: "Basics", Found: true, Compatible: true},
		{Ref: "expert-tricks", Slug: "expert-tricks", Path: "topics/expert-tricks.md", Title: "Tricks", Found: true, Compatible: false},
		{Ref: "missing", Slug: "missing"},
	}
	if len(doc.Topics) != len(want) {
		t.Fatalf("topics = %+v", doc.Topics)
	}
	for i := range want {
		if doc.Topics[i] != want[i] {
			t.Errorf("topic %d = %+v, want %+v", i, doc.Topics[i], want[i])
		}
	}
	if !hasDiagnostic(doc, models.CodeMissingTopic) || !hasDiagnostic(doc, models.CodeAudienceMismatch) {
		t.Errorf("diagnostics = %+v", doc.Diagnostics)
	}
	if !strings.Contains(doc.XML, `<topicref href="missing.dita" navtitle="missing" format="dita" outputclass="missing"/>`) {
		t.Errorf("xml = %s", doc.XML)
	}
}

func TestMalformedPreambleDegrades(t *testing.T) {
	f := newFixture(t, map[string]string{"a.md": "---\ntitle: [unclosed\n---\nbody text\n"})
	doc := mustLoad(t, f.loader, "a")
	if !hasDiagnostic(doc, models.CodeMalformedPreamble) {
		t.Errorf("diagnostics = %+v", doc.Diagnostics)
	}
	if !strings.Contains(doc.HTML, "body text") {
		t.Errorf("html = %s", doc.HTML)
	}
}

func TestCallerCancellationDoesNotAbortSharedWork(t *testing.T) {
	f := newFixture(t, map[string]string{"x.md": "x\n"})
	f.store.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := f.loader.Load(ctx, "x")
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("abandoned caller err = %v, want context.Canceled", err)
	}

	result := make(chan error, 1)
	go func() {
		_, err := f.loader.Load(context.Background(), "x")
		result <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(f.store.release)

	if err := <-result; err != nil {
		t.Fatalf("second caller: %v", err)
	}
	if n := f.store.count("x.md"); n != 1 {
		t.Errorf("reads = %d, want 1", n)
	}
}

func TestWaitGraphRefusesCrossRequestCycle(t *testing.T) {
	g := newWaitGraph()
	if c := g.add("a", "b"); c != nil {
		t.Fatalf("add(a,b) = %v", c)
	}
	if c := g.add("b", "c"); c != nil {
		t.Fatalf("add(b,c) = %v", c)
	}
	c := g.add("c", "a")
	if strings.Join(c, ">") != "c>a>b>c" {
		t.Errorf("cycle = %v, want c>a>b>c", c)
	}
	g.remove("b", "c")
	if c := g.add("c", "a"); c != nil {
		t.Errorf("add(c,a) after remove = %v", c)
	}
}

func TestExtractSection(t *testing.T) {
	h := func(level int, text, id string) *doctree.Node {
		return &doctree.Node{Kind: doctree.KindHeading, Level: level, ID: id, Children: []*doctree.Node{doctree.Text(text)}}
	}
	p := func(text string) *doctree.Node { return doctree.New(doctree.KindParagraph, doctree.Text(text)) }
	blocks := []*doctree.Node{
		h(1, "Doc", "doc"), p("lead"),
		h(2, "Set Up", "set-up"), p("steps"), h(3, "Deep", "deep"), p("deeper"),
		h(2, "Next", "next"), p("tail"),
	}

	for _, section := range []string{"Set Up", "set-up", "set up"} {
		got, ok := extractSection(blocks, section)
		if !ok || len(got) != 4 || got[0] != blocks[2] || got[3] != blocks[5] {
			t.Errorf("extractSection(%q) = %d blocks, %v", section, len(got), ok)
		}
	}
	if got, ok := extractSection(blocks, "Next"); !ok || len(got) != 2 {
		t.Errorf("last section = %d blocks, %v", len(got), ok)
	}
	if _, ok := extractSection(blocks, "Absent"); ok {
		t.Error("absent section reported found")
	}
}
