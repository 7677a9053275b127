package loader

import (
	"sort"
	"sync"

	"github.com/starford/quire/internal/models"
)

// Cache holds completed resolutions keyed by slug. It also remembers which
// cached documents embed which others so an invalidated dependency evicts
// every document that spliced it in, and which documents link to a slug so
// their broken-link markers follow the target appearing or disappearing.
type Cache struct {
	mu         sync.RWMutex
	docs       map[string]*models.ResolvedDocument
	dependents map[string]map[string]struct{}
	linkers    map[string]map[string]struct{}
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		docs:       make(map[string]*models.ResolvedDocument),
		dependents: make(map[string]map[string]struct{}),
		linkers:    make(map[string]map[string]struct{}),
	}
}

// Get returns the cached document for slug.
func (c *Cache) Get(slug string) (*models.ResolvedDocument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[slug]
	return doc, ok
}

// Put stores doc, records that its output splices deps and that it links to
// links.
func (c *Cache) Put(doc *models.ResolvedDocument, deps, links []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[doc.Slug] = doc
	addEdges(c.dependents, doc.Slug, deps)
	addEdges(c.linkers, doc.Slug, links)
}

func addEdges(edges map[string]map[string]struct{}, from string, to []string) {
	for _, d := range to {
		if d == from {
			continue
		}
		set, ok := edges[d]
		if !ok {
			set = make(map[string]struct{})
			edges[d] = set
		}
		set[from] = struct{}{}
	}
}

// Invalidate removes slug, every cached document linking to it, and,
// transitively, every cached document splicing any of those. Links are not
// followed transitively: a link renders the same whatever the target holds.
// It returns the evicted slugs in sorted order.
func (c *Cache) Invalidate(slug string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := map[string]struct{}{}
	queue := []string{slug}
	for linker := range c.linkers[slug] {
		queue = append(queue, linker)
	}
	delete(c.linkers, slug)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		for parent := range c.dependents[s] {
			queue = append(queue, parent)
		}
		delete(c.dependents, s)
	}

	var evicted []string
	for s := range seen {
		if _, ok := c.docs[s]; ok {
			delete(c.docs, s)
			evicted = append(evicted, s)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = make(map[string]*models.ResolvedDocument)
	c.dependents = make(map[string]map[string]struct{})
	c.linkers = make(map[string]map[string]struct{})
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}
