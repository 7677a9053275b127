package loader

import "sync"

// waitGraph records which in-flight resolutions are blocked on which others.
// Two independent requests can close a cycle that neither visited chain sees
// (A embeds B while another caller's B embeds A); joining such a flight would
// block forever, so the edge that closes the cycle is refused instead.
type waitGraph struct {
	mu    sync.Mutex
	edges map[string]map[string]int
}

func newWaitGraph() *waitGraph {
	return &waitGraph{edges: make(map[string]map[string]int)}
}

// add records that from waits on to. When to already (transitively) waits on
// from, the edge is not added and the cycle from -> to -> ... -> from is
// returned.
func (g *waitGraph) add(from, to string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if path := g.path(to, from, map[string]bool{}); path != nil {
		return append([]string{from}, path...)
	}
	targets, ok := g.edges[from]
	if !ok {
		targets = make(map[string]int)
		g.edges[from] = targets
	}
	targets[to]++
	return nil
}

func (g *waitGraph) remove(from, to string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	targets := g.edges[from]
	if targets[to]--; targets[to] <= 0 {
		delete(targets, to)
	}
	if len(targets) == 0 {
		delete(g.edges, from)
	}
}

// path returns the nodes from src to dst inclusive, or nil when dst is not
// reachable. Caller holds mu.
func (g *waitGraph) path(src, dst string, seen map[string]bool) []string {
	if src == dst {
		return []string{dst}
	}
	if seen[src] {
		return nil
	}
	seen[src] = true
	for next := range g.edges[src] {
		if rest := g.path(next, dst, seen); rest != nil {
			return append([]string{src}, rest...)
		}
	}
	return nil
}
