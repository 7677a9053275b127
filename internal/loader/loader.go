// Package loader resolves logical references into fully transformed,
// serialized documents. It owns the result cache, coalesces concurrent
// requests for the same slug, bounds filesystem work, and resolves document
// embeds recursively while refusing cycles.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/doctree"
	"github.com/starford/quire/internal/metrics"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/parser"
	"github.com/starford/quire/internal/render"
	"github.com/starford/quire/internal/slug"
	"github.com/starford/quire/internal/storage"
	"github.com/starford/quire/internal/transform"
)

// DefaultMaxConcurrency bounds simultaneous locate/read/parse/transform work.
const DefaultMaxConcurrency = 5

// Locator finds the physical path of a logical reference.
type Locator interface {
	Find(ref string) (string, error)
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxConcurrency sets the number of concurrency slots.
func WithMaxConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.slots = int64(n)
		}
	}
}

// WithRenderOptions sets the link bases used when serializing.
func WithRenderOptions(opts render.Options) Option {
	return func(l *Loader) { l.render = opts }
}

// WithPipeline replaces the default transform pipeline.
func WithPipeline(p *transform.Pipeline) Option {
	return func(l *Loader) { l.pipeline = p }
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(l *Loader) { l.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// Loader is safe for concurrent use.
type Loader struct {
	store    storage.Provider
	locator  Locator
	pipeline *transform.Pipeline
	render   render.Options
	recorder metrics.Recorder
	logger   *slog.Logger

	cache   *Cache
	flights singleflight.Group
	waits   *waitGraph
	slots   int64
	sem     *semaphore.Weighted
	active  atomic.Int64

	links sync.Map // wikilink target -> linkTarget
}

type linkTarget struct {
	slug string
	ok   bool
}

// resolution is the outcome of one flight. open lists cycle targets outside
// the document itself; such a result depends on chain, the embed chain it was
// built under, and is neither cached nor handed to a caller on another chain.
type resolution struct {
	doc   *models.ResolvedDocument
	open  []string
	chain []string
}

// New returns a Loader reading from store and locating through loc.
func New(store storage.Provider, loc Locator, opts ...Option) *Loader {
	l := &Loader{
		store:    store,
		locator:  loc,
		pipeline: transform.Default(),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		cache:    NewCache(),
		waits:    newWaitGraph(),
		slots:    DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.sem = semaphore.NewWeighted(l.slots)
	return l
}

// Load resolves ref. NotFound and CircularEmbed problems inside embeds are
// rendered as placeholders; a missing top-level reference returns an error
// matching apperr.ErrNotFound and read failures match apperr.ErrIO.
func (l *Loader) Load(ctx context.Context, ref string) (*models.ResolvedDocument, error) {
	s := slug.Normalize(ref)
	if s == "" {
		return nil, fmt.Errorf("loader: load %q: %w", ref, apperr.ErrNotFound)
	}
	res, err := l.load(ctx, s, nil)
	if err != nil {
		return nil, err
	}
	return res.doc, nil
}

// Locate returns the content-relative path of ref.
func (l *Loader) Locate(ref string) (string, error) {
	return l.locator.Find(ref)
}

// Invalidate evicts ref, every cached document linking to it, and every
// cached document embedding any of those. It returns the evicted slugs.
func (l *Loader) Invalidate(ref string) []string {
	l.links.Clear()
	evicted := l.cache.Invalidate(slug.Normalize(ref))
	l.recorder.SetCacheSize(l.cache.Len())
	return evicted
}

// Clear empties the cache.
func (l *Loader) Clear() {
	l.links.Clear()
	l.cache.Clear()
	l.recorder.SetCacheSize(0)
}

// Cached returns the number of cached documents.
func (l *Loader) Cached() int { return l.cache.Len() }

// ResolveLink maps a wikilink target to the slug of an existing document.
// Results are memoized until the next Invalidate or Clear.
func (l *Loader) ResolveLink(target string) (string, bool) {
	if v, ok := l.links.Load(target); ok {
		t := v.(linkTarget)
		return t.slug, t.ok
	}
	t := linkTarget{slug: slug.Normalize(target)}
	p, err := l.locator.Find(target)
	switch {
	case err == nil:
		t = linkTarget{slug: slug.Normalize(p), ok: true}
	case !errors.Is(err, apperr.ErrNotFound):
		l.logger.Warn("resolve link", slog.String("target", target), slog.String("error", err.Error()))
	}
	l.links.Store(target, t)
	return t.slug, t.ok
}

func (l *Loader) load(ctx context.Context, s string, chain []string) (*resolution, error) {
	if slices.Contains(chain, s) {
		l.recorder.IncLoad(metrics.OutcomeCycle)
		return nil, &apperr.CircularEmbedError{Chain: append(slices.Clip(chain), s)}
	}
	if doc, ok := l.cache.Get(s); ok {
		l.recorder.IncLoad(metrics.OutcomeHit)
		return &resolution{doc: doc}, nil
	}

	stopWaiting := func() {}
	if len(chain) > 0 {
		parent := chain[len(chain)-1]
		if cycle := l.waits.add(parent, s); cycle != nil {
			l.recorder.IncLoad(metrics.OutcomeCycle)
			return nil, &apperr.CircularEmbedError{Chain: cycle}
		}
		var once sync.Once
		stopWaiting = func() { once.Do(func() { l.waits.remove(parent, s) }) }
		defer stopWaiting()
	}

	// The flight outlives any one caller so abandoned requests do not cancel
	// work other waiters share.
	flightCtx := context.WithoutCancel(ctx)
	ch := l.flights.DoChan(s, func() (any, error) {
		if doc, ok := l.cache.Get(s); ok {
			return &resolution{doc: doc}, nil
		}
		return l.resolve(flightCtx, s, chain)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		stopWaiting()
		res := r.Val.(*resolution)
		if len(res.open) > 0 && !slices.Equal(res.chain, chain) {
			// The shared result carries cycle placeholders for another
			// request's chain; build one for this chain instead. Which
			// documents are cached by then still depends on timing.
			return l.resolve(flightCtx, s, chain)
		}
		if r.Shared {
			l.recorder.IncLoad(metrics.OutcomeShared)
		}
		return res, nil
	}
}

// prepared is the slot-bound part of a resolution.
type prepared struct {
	path string
	data []byte
	res  *parser.Result
	tree *doctree.Node
	tctx *transform.Context
}

func (l *Loader) resolve(ctx context.Context, s string, chain []string) (*resolution, error) {
	start := time.Now()
	p, err := l.prepare(ctx, s)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			l.recorder.IncLoad(metrics.OutcomeNotFound)
		} else {
			l.recorder.IncLoad(metrics.OutcomeFailed)
		}
		return nil, err
	}

	doc := &models.ResolvedDocument{
		Slug:        s,
		Path:        p.path,
		Checksum:    checksum.Sum(p.data),
		Metadata:    p.res.Metadata,
		Tags:        p.res.Tags,
		Footnotes:   p.tctx.Footnotes,
		TOC:         p.tctx.TOC,
	}
	for _, w := range p.res.Warnings {
		doc.Diagnostics = append(doc.Diagnostics, models.Diagnostic{
			Severity: models.SeverityWarning,
			Code:     models.CodeMalformedPreamble,
			Message:  w.Error(),
		})
	}
	doc.Diagnostics = append(doc.Diagnostics, p.tctx.Diagnostics...)

	next := append(slices.Clip(chain), s)
	embedStart := time.Now()
	tree, open, deps, err := l.resolveEmbeds(ctx, doc, p.tree, next)
	if err != nil {
		l.recorder.IncLoad(metrics.OutcomeFailed)
		return nil, err
	}
	switch m := doc.Metadata.(type) {
	case *models.MapMetadata:
		topicDeps, err := l.resolveTopics(ctx, doc, m, next)
		if err != nil {
			l.recorder.IncLoad(metrics.OutcomeFailed)
			return nil, err
		}
		deps = append(deps, topicDeps...)
	case *models.TopicMetadata:
	}
	l.recorder.ObserveStageDuration("embed", time.Since(embedStart))
	doc.Tree = tree
	doc.Links = l.collectLinks(s, tree)

	serializeStart := time.Now()
	l.serialize(doc)
	l.recorder.ObserveStageDuration("serialize", time.Since(serializeStart))
	doc.LoadedAt = time.Now()

	res := &resolution{doc: doc, open: open, chain: chain}
	if len(open) == 0 {
		l.cache.Put(doc, deps, l.linkKeys(tree))
		l.recorder.SetCacheSize(l.cache.Len())
	}
	l.recorder.IncLoad(metrics.OutcomeLoaded)
	l.logger.Debug("document loaded",
		slog.String("slug", s),
		slog.String("path", p.path),
		slog.Int("embeds", len(doc.Embeds)),
		slog.Int("diagnostics", len(doc.Diagnostics)),
		slog.Duration("took", time.Since(start)),
	)
	return res, nil
}

// prepare holds a concurrency slot for the filesystem and CPU-bound steps.
func (l *Loader) prepare(ctx context.Context, s string) (*prepared, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("loader: acquire slot: %w", err)
	}
	l.recorder.SetInflight(int(l.active.Add(1)))
	defer func() {
		l.recorder.SetInflight(int(l.active.Add(-1)))
		l.sem.Release(1)
	}()

	t := time.Now()
	rel, err := l.locator.Find(s)
	if err != nil {
		return nil, fmt.Errorf("loader: locate %s: %w", s, err)
	}
	l.recorder.ObserveStageDuration("locate", time.Since(t))

	t = time.Now()
	data, err := l.store.Read(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loader: read %s: %w", rel, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("loader: read %s: %w: %w", rel, apperr.ErrIO, err)
	}
	l.recorder.ObserveStageDuration("read", time.Since(t))

	t = time.Now()
	res := parser.Parse(data, kindHint(rel))
	l.recorder.ObserveStageDuration("parse", time.Since(t))

	t = time.Now()
	tctx := transform.NewContext(s)
	tree := l.pipeline.Transform(res.Root, tctx)
	l.recorder.ObserveStageDuration("transform", time.Since(t))

	return &prepared{path: rel, data: data, res: res, tree: tree, tctx: tctx}, nil
}

// kindHint selects the map variant for files stored under maps/.
func kindHint(rel string) models.Kind {
	if first, _, ok := strings.Cut(path.Clean(rel), "/"); ok && first == "maps" {
		return models.KindMap
	}
	return models.KindTopic
}

// resolveEmbeds loads every document embed concurrently and splices the
// results into tree in document order. It returns the rewritten tree, the
// open cycle targets and the slugs the document now depends on.
func (l *Loader) resolveEmbeds(ctx context.Context, doc *models.ResolvedDocument, tree *doctree.Node, chain []string) (*doctree.Node, []string, []string, error) {
	var embeds []*doctree.Node
	doctree.Walk(tree, func(n *doctree.Node) bool {
		if n.Kind == doctree.KindEmbed && n.Embed != nil {
			embeds = append(embeds, n)
			return false
		}
		return true
	})

	results := make([]*resolution, len(embeds))
	errs := make([]error, len(embeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, n := range embeds {
		if n.Embed.Media != doctree.MediaDocument {
			continue
		}
		target := slug.Normalize(n.Embed.Source)
		g.Go(func() error {
			res, err := l.load(gctx, target, chain)
			if err != nil {
				if !apperr.Recoverable(err) {
					return err
				}
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	self := chain[len(chain)-1]
	openSet := map[string]bool{}
	var deps []string
	replace := make(map[*doctree.Node]*doctree.Node, len(embeds))
	for i, n := range embeds {
		e := n.Embed
		ref := models.EmbedRef{Source: e.Source, Section: e.Section, Media: e.Media}
		if e.Media != doctree.MediaDocument {
			doc.Embeds = append(doc.Embeds, ref)
			continue
		}
		ref.Slug = slug.Normalize(e.Source)
		deps = append(deps, ref.Slug)

		out := n.Clone()
		info := *e
		out.Embed = &info
		if err := errs[i]; err != nil {
			info.Error = embedError(err)
			ref.Error = info.Error.Message
			code := models.CodeEmbedNotFound
			if errors.Is(err, apperr.ErrCircularEmbed) {
				code = models.CodeCircularEmbed
				// Only a self-embed is independent of the chain it was refused under.
				if ref.Slug != self {
					openSet[ref.Slug] = true
				}
			}
			doc.Diagnostics = append(doc.Diagnostics, models.Diagnostic{
				Severity: models.SeverityWarning, Code: code, Message: info.Error.Message,
			})
		} else {
			child := results[i]
			for _, o := range child.open {
				if o != self {
					openSet[o] = true
				}
			}
			info.Resolved = child.doc.Path
			ref.Path = child.doc.Path
			out.Children = l.embedContent(doc, child.doc, e.Section)
		}
		doc.Embeds = append(doc.Embeds, ref)
		replace[n] = out
	}
	if len(replace) == 0 {
		return tree, nil, deps, nil
	}

	tree = doctree.Rewrite(tree, func(n *doctree.Node) ([]*doctree.Node, doctree.Action) {
		if r, ok := replace[n]; ok {
			return []*doctree.Node{r}, doctree.Replace
		}
		if n.Kind == doctree.KindEmbed {
			return nil, doctree.Skip
		}
		return nil, doctree.Continue
	})

	open := make([]string, 0, len(openSet))
	for o := range openSet {
		open = append(open, o)
	}
	slices.Sort(open)
	return tree, open, deps, nil
}

// embedContent returns the blocks of child to splice into an embed,
// narrowed to section when one is given and present.
func (l *Loader) embedContent(parent, child *models.ResolvedDocument, section string) []*doctree.Node {
	if child.Tree == nil {
		return nil
	}
	blocks := child.Tree.Children
	if section == "" {
		return blocks
	}
	if part, ok := extractSection(blocks, section); ok {
		return part
	}
	parent.Diagnostics = append(parent.Diagnostics, models.Diagnostic{
		Severity: models.SeverityWarning,
		Code:     models.CodeMissingSection,
		Message:  fmt.Sprintf("section %q not found in %s; embedding full content", section, child.Slug),
	})
	return blocks
}

func embedError(err error) *doctree.EmbedError {
	var cyc *apperr.CircularEmbedError
	if errors.As(err, &cyc) {
		return &doctree.EmbedError{
			Reason:  models.CodeCircularEmbed,
			Message: cyc.Error(),
			Chain:   slices.Clone(cyc.Chain),
		}
	}
	return &doctree.EmbedError{Reason: models.CodeEmbedNotFound, Message: err.Error()}
}

// resolveTopics loads each topic a map references and records whether it
// exists and suits the map's audience.
func (l *Loader) resolveTopics(ctx context.Context, doc *models.ResolvedDocument, m *models.MapMetadata, chain []string) ([]string, error) {
	refs := make([]models.TopicRef, len(m.Topics))
	g, gctx := errgroup.WithContext(ctx)
	for i, raw := range m.Topics {
		refs[i] = models.TopicRef{Ref: raw, Slug: slug.Normalize(raw)}
		g.Go(func() error {
			res, err := l.load(gctx, refs[i].Slug, chain)
			if err != nil {
				if apperr.Recoverable(err) {
					if errors.Is(err, apperr.ErrCircularEmbed) {
						refs[i].Found = true
					}
					return nil
				}
				return err
			}
			topic := res.doc.Metadata.Topic()
			refs[i].Found = true
			refs[i].Path = res.doc.Path
			refs[i].Title = res.doc.Title()
			refs[i].Compatible = models.AudienceCompatible(topic.Audience, m.Audience)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	deps := make([]string, 0, len(refs))
	for _, r := range refs {
		deps = append(deps, r.Slug)
		switch {
		case !r.Found:
			doc.Diagnostics = append(doc.Diagnostics, models.Diagnostic{
				Severity: models.SeverityWarning,
				Code:     models.CodeMissingTopic,
				Message:  fmt.Sprintf("topic %q not found", r.Ref),
			})
		case !r.Compatible && r.Path != "":
			doc.Diagnostics = append(doc.Diagnostics, models.Diagnostic{
				Severity: models.SeverityWarning,
				Code:     models.CodeAudienceMismatch,
				Message:  fmt.Sprintf("topic %q does not suit audience %q", r.Ref, m.Audience),
			})
		}
	}
	doc.Topics = refs
	return deps, nil
}

// linkKeys returns every slug whose existence changes how the wikilinks of
// tree render: the written target and the slug it currently resolves to.
// Spliced content is included since it renders as part of the host.
func (l *Loader) linkKeys(tree *doctree.Node) []string {
	var keys []string
	doctree.Walk(tree, func(n *doctree.Node) bool {
		if n.Kind != doctree.KindWikilink || n.Wikilink.Target == "" {
			return true
		}
		switch n.Wikilink.Class {
		case doctree.LinkPage, doctree.LinkSection:
			resolved, _ := l.ResolveLink(n.Wikilink.Target)
			keys = append(keys, slug.Normalize(n.Wikilink.Target), resolved)
		}
		return true
	})
	slices.Sort(keys)
	return slices.Compact(keys)
}

// collectLinks collects the outgoing wikilink and embed edges of a document.
func (l *Loader) collectLinks(s string, tree *doctree.Node) []models.Link {
	seen := map[models.Link]bool{}
	var out []models.Link
	add := func(link models.Link) {
		if link.Target == "" || link.Target == s || seen[link] {
			return
		}
		seen[link] = true
		out = append(out, link)
	}
	doctree.Walk(tree, func(n *doctree.Node) bool {
		switch n.Kind {
		case doctree.KindWikilink:
			w := n.Wikilink
			if w.Class == doctree.LinkPage || (w.Class == doctree.LinkSection && w.Target != "") {
				target, _ := l.ResolveLink(w.Target)
				add(models.Link{Source: s, Target: target, Type: "wikilink"})
			}
		case doctree.KindEmbed:
			if n.Embed.Media == doctree.MediaDocument {
				add(models.Link{Source: s, Target: slug.Normalize(n.Embed.Source), Type: "embed"})
			}
			// Spliced content belongs to the embedded document.
			return false
		}
		return true
	})
	return out
}

func (l *Loader) serialize(doc *models.ResolvedDocument) {
	opts := l.render
	opts.Resolve = l.ResolveLink
	doc.HTML = render.HTML(doc.Tree, opts)

	var unsupported []doctree.Kind
	opts.OnUnsupported = func(k doctree.Kind) {
		unsupported = append(unsupported, k)
		l.recorder.IncUnsupportedNode(string(render.FormatXML), string(k))
	}
	doc.XML = render.XML(doc, opts)
	reported := map[doctree.Kind]bool{}
	for _, k := range unsupported {
		if reported[k] {
			continue
		}
		reported[k] = true
		doc.Diagnostics = append(doc.Diagnostics, models.Diagnostic{
			Severity: models.SeverityWarning,
			Code:     models.CodeUnsupportedNode,
			Message:  fmt.Sprintf("%s node has no XML equivalent; emitted a comment", k),
		})
	}
}
