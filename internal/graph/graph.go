package graph

import "sync"

// Graph tracks source -> dependent edges between cache keys for cascade
// invalidation. It is process-lifetime state rebuilt from writes, not a
// source of truth, so it carries no persistence.
type Graph struct {
	mu sync.RWMutex
	// dependents[source] is the set of keys derived from source.
	dependents map[string]map[string]struct{}
	// sources[dependent] is the reverse index, kept so Remove can drop
	// edges on both endpoints without a full scan.
	sources map[string]map[string]struct{}
}

func New() *Graph {
	return &Graph{
		dependents: make(map[string]map[string]struct{}),
		sources:    make(map[string]map[string]struct{}),
	}
}

// AddDependency records that dependent derives from source.
func (g *Graph) AddDependency(dependent, source string) {
	if dependent == source || dependent == "" || source == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.dependents[source] == nil {
		g.dependents[source] = make(map[string]struct{})
	}
	g.dependents[source][dependent] = struct{}{}

	if g.sources[dependent] == nil {
		g.sources[dependent] = make(map[string]struct{})
	}
	g.sources[dependent][source] = struct{}{}
}

// InvalidationClosure returns every key reachable from source over
// source -> dependent edges, breadth-first. The source itself is not
// included. Cycles are tolerated: a visited set bounds the traversal.
func (g *Graph) InvalidationClosure(source string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]struct{}{source: {}}
	queue := []string{source}
	var closure []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range g.dependents[cur] {
			if _, seen := visited[dep]; seen {
				continue
			}
			visited[dep] = struct{}{}
			closure = append(closure, dep)
			queue = append(queue, dep)
		}
	}
	return closure
}

// Remove drops every edge where key is either endpoint.
func (g *Graph) Remove(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for dep := range g.dependents[key] {
		delete(g.sources[dep], key)
		if len(g.sources[dep]) == 0 {
			delete(g.sources, dep)
		}
	}
	delete(g.dependents, key)

	for src := range g.sources[key] {
		delete(g.dependents[src], key)
		if len(g.dependents[src]) == 0 {
			delete(g.dependents, src)
		}
	}
	delete(g.sources, key)
}

// Len returns the number of keys with at least one outgoing edge.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.dependents)
}
