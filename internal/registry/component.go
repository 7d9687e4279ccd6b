// Package registry keeps the component descriptors produced by the
// //kiln:component directive and the build dependency graph.
//
// Descriptors are registered per package directory. The resolver looks
// components up by directory for unqualified calls and by package name
// for @pkg.Name calls.
package registry

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/kiln/internal/diag"
)

// Component describes a function marked //kiln:component.
type Component struct {
	Name     string
	Package  string
	Dir      string
	FilePath string
	Props    []Prop
	// ChildrenParam is the name of the templ.Component parameter that
	// receives a call's child block. Empty when there is no slot.
	ChildrenParam string
	// Span covers the func name in FilePath.
	Span    diag.Span
	LastMod time.Time
	Hash    string
}

// Prop is one component parameter.
type Prop struct {
	// Param is the Go parameter name and the name used at call sites.
	Param string
	// Field is the exported field of the generated props struct.
	Field string
	Type  string
	// Default is a Go expression spliced into every call site that
	// omits the prop.
	Default    string
	HasDefault bool
}

// Required reports whether call sites must pass the prop.
func (p Prop) Required() bool { return !p.HasDefault }

// HasChildren reports whether the component has a children slot.
func (c *Component) HasChildren() bool { return c.ChildrenParam != "" }

// Exported reports whether the component is visible outside its package.
func (c *Component) Exported() bool {
	return c.Name != "" && c.Name[0] >= 'A' && c.Name[0] <= 'Z'
}

// ChildrenField returns the props field that holds the children slot.
func (c *Component) ChildrenField() string {
	if !c.HasChildren() {
		return ""
	}
	return ExportName(c.ChildrenParam)
}

// ExportName returns the exported props field name for a parameter:
// userID becomes UserID.
func ExportName(param string) string {
	return cases.Title(language.Und, cases.NoLower).String(param)
}

// PropsType returns the name of the generated props struct.
func (c *Component) PropsType() string { return c.Name + "Props" }

// RenderFunc returns the name of the generated render entry point.
func (c *Component) RenderFunc() string { return "Render" + c.Name }

// Prop returns the prop with the given parameter name.
func (c *Component) Prop(param string) (Prop, bool) {
	for _, p := range c.Props {
		if p.Param == param {
			return p, true
		}
	}
	return Prop{}, false
}

// ParamNames lists the names call sites use, children slot included.
func (c *Component) ParamNames() []string {
	out := make([]string, 0, len(c.Props)+1)
	for _, p := range c.Props {
		out = append(out, p.Param)
	}
	if c.HasChildren() {
		out = append(out, c.ChildrenParam)
	}
	return out
}

// Key identifies a component within a build.
type Key struct {
	Dir  string
	Name string
}

// Event is a change in the registry.
type Event struct {
	Type      EventType
	Component *Component
	Timestamp time.Time
}

// EventType is the kind of registry change.
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

func (t EventType) String() string {
	switch t {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Registry holds every known component.
type Registry struct {
	components map[Key]*Component
	mutex      sync.RWMutex
	watchers   []chan Event
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		components: make(map[Key]*Component),
		watchers:   make([]chan Event, 0),
	}
}

// Register adds or replaces a component.
func (r *Registry) Register(c *Component) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := Key{Dir: c.Dir, Name: c.Name}
	eventType := EventTypeAdded
	if _, exists := r.components[key]; exists {
		eventType = EventTypeUpdated
	}
	r.components[key] = c
	r.notify(Event{Type: eventType, Component: c, Timestamp: time.Now()})
}

// notify must be called with the lock held.
func (r *Registry) notify(event Event) {
	for _, w := range r.watchers {
		select {
		case w <- event:
		default:
			// Slow watchers miss events rather than block the build.
		}
	}
}

// Get returns the component called name declared in dir.
func (r *Registry) Get(dir, name string) (*Component, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	c, ok := r.components[Key{Dir: dir, Name: name}]
	return c, ok
}

// Lookup finds an exported component by package name. When several
// directories share the package name the first by path wins.
func (r *Registry) Lookup(pkg, name string) (*Component, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var found *Component
	for _, c := range r.components {
		if c.Package != pkg || c.Name != name {
			continue
		}
		if found == nil || c.Dir < found.Dir {
			found = c
		}
	}
	return found, found != nil
}

// InDir returns the components declared in dir, sorted by name.
func (r *Registry) InDir(dir string) []*Component {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var out []*Component
	for k, c := range r.components {
		if k.Dir == dir {
			out = append(out, c)
		}
	}
	sortComponents(out)
	return out
}

// Names returns the component names visible from dir: its own
// components and the exported components of other packages, qualified
// by package name. Used for suggestions.
func (r *Registry) Names(dir string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var out []string
	for k, c := range r.components {
		switch {
		case k.Dir == dir:
			out = append(out, c.Name)
		case c.Exported():
			out = append(out, c.Package+"."+c.Name)
		}
	}
	sort.Strings(out)
	return out
}

// All returns every component sorted by directory and name.
func (r *Registry) All() []*Component {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]*Component, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c)
	}
	sortComponents(out)
	return out
}

func sortComponents(cs []*Component) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Dir != cs[j].Dir {
			return cs[i].Dir < cs[j].Dir
		}
		return cs[i].Name < cs[j].Name
	})
}

// Remove deletes a component.
func (r *Registry) Remove(dir, name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := Key{Dir: dir, Name: name}
	c, ok := r.components[key]
	if !ok {
		return
	}
	delete(r.components, key)
	r.notify(Event{Type: EventTypeRemoved, Component: c, Timestamp: time.Now()})
}

// RemoveFile deletes every component declared in path and returns them.
func (r *Registry) RemoveFile(path string) []*Component {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var removed []*Component
	for k, c := range r.components {
		if c.FilePath != path {
			continue
		}
		delete(r.components, k)
		removed = append(removed, c)
		r.notify(Event{Type: EventTypeRemoved, Component: c, Timestamp: time.Now()})
	}
	sortComponents(removed)
	return removed
}

// Watch returns a channel that receives registry events.
func (r *Registry) Watch() <-chan Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan Event, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it.
func (r *Registry) UnWatch(ch <-chan Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, w := range r.watchers {
		if w == ch {
			close(w)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered components.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.components)
}
