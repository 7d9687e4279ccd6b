package registry

import (
	"sort"
	"sync"
)

// Edge is a call from the function enclosing a template to a component.
type Edge struct {
	From Key
	To   Key
}

// Graph records what each source file depends on: the stylesheets it
// reads at build time and the component calls its templates make. A
// change to a dependency re-compiles every dependent file.
type Graph struct {
	mu    sync.RWMutex
	deps  map[string][]string
	edges map[string][]Edge
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{
		deps:  make(map[string][]string),
		edges: make(map[string][]Edge),
	}
}

// SetFile replaces the dependencies recorded for file.
func (g *Graph) SetFile(file string, deps []string, edges []Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	d := append([]string(nil), deps...)
	sort.Strings(d)
	g.deps[file] = dedupe(d)
	g.edges[file] = append([]Edge(nil), edges...)
}

// RemoveFile forgets file.
func (g *Graph) RemoveFile(file string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.deps, file)
	delete(g.edges, file)
}

// Deps returns the files read while compiling file.
func (g *Graph) Deps(file string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return append([]string(nil), g.deps[file]...)
}

// Dependents returns the source files that read dep, sorted.
func (g *Graph) Dependents(dep string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []string
	for file, deps := range g.deps {
		i := sort.SearchStrings(deps, dep)
		if i < len(deps) && deps[i] == dep {
			out = append(out, file)
		}
	}
	sort.Strings(out)
	return out
}

// Callers returns the functions whose templates call to.
func (g *Graph) Callers(to Key) []Key {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[Key]bool{}
	for _, edges := range g.edges {
		for _, e := range edges {
			if e.To == to {
				seen[e.From] = true
			}
		}
	}
	return sortedKeys(seen)
}

// FileOf returns the file whose templates were recorded as calls from the
// function from.
func (g *Graph) FileOf(from Key) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var found string
	for file, edges := range g.edges {
		for _, e := range edges {
			if e.From == from && (found == "" || file < found) {
				found = file
			}
		}
	}
	return found, found != ""
}

// Calls returns the call graph keyed by caller.
func (g *Graph) Calls() map[Key][]Key {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sets := map[Key]map[Key]bool{}
	for _, edges := range g.edges {
		for _, e := range edges {
			if sets[e.From] == nil {
				sets[e.From] = map[Key]bool{}
			}
			sets[e.From][e.To] = true
		}
	}
	out := make(map[Key][]Key, len(sets))
	for from, to := range sets {
		out[from] = sortedKeys(to)
	}
	return out
}

// Cycles returns the component call cycles in the graph. Each cycle
// starts and ends with the same key.
func (g *Graph) Cycles() [][]Key {
	calls := g.Calls()
	var (
		cycles   [][]Key
		visited  = map[Key]bool{}
		recStack = map[Key]bool{}
	)

	from := make([]Key, 0, len(calls))
	for k := range calls {
		from = append(from, k)
	}
	sortKeySlice(from)

	var visit func(k Key, path []Key) []Key
	visit = func(k Key, path []Key) []Key {
		visited[k] = true
		recStack[k] = true
		path = append(path, k)
		for _, next := range calls[k] {
			if !visited[next] {
				if c := visit(next, path); c != nil {
					return c
				}
			} else if recStack[next] {
				for i, p := range path {
					if p == next {
						cycle := append([]Key(nil), path[i:]...)
						return append(cycle, next)
					}
				}
			}
		}
		recStack[k] = false
		return nil
	}

	for _, k := range from {
		if !visited[k] {
			if c := visit(k, nil); c != nil {
				cycles = append(cycles, c)
			}
		}
	}
	return cycles
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[Key]bool) []Key {
	out := make([]Key, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortKeySlice(out)
	return out
}

func sortKeySlice(ks []Key) {
	sort.Slice(ks, func(i, j int) bool {
		if ks[i].Dir != ks[j].Dir {
			return ks[i].Dir < ks[j].Dir
		}
		return ks[i].Name < ks[j].Name
	})
}
