package metadata

import (
	"slices"
	"sort"
	"strings"
	"sync"
)

type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection // keyed by lower-cased name
}

func NewRegistry() *Registry {
	return &Registry{
		collections: make(map[string]*Collection),
	}
}

// GetCollection returns the collection with the given name, or nil.
// Names are matched case-insensitively ("Book" and "book" are the same collection).
func (r *Registry) GetCollection(name string) *Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collections[strings.ToLower(name)]
}

// AllCollections returns a snapshot of all registered collections sorted
// by name. Actions and segments added later do not show in it.
func (r *Registry) AllCollections() []*Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	collections := make([]*Collection, 0, len(r.collections))
	for _, c := range r.collections {
		snapshot := *c
		snapshot.Actions = slices.Clone(c.Actions)
		snapshot.Segments = slices.Clone(c.Segments)
		collections = append(collections, &snapshot)
	}
	sort.Slice(collections, func(i, j int) bool {
		return collections[i].Name < collections[j].Name
	})
	return collections
}

// Load replaces all collections in the registry.
func (r *Registry) Load(collections []*Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.collections = make(map[string]*Collection, len(collections))
	for _, c := range collections {
		r.collections[strings.ToLower(c.Name)] = c
	}
}

// AddAction attaches a smart action to a registered collection.
// Returns false when the collection is unknown.
func (r *Registry) AddAction(collection string, action SmartAction) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.collections[strings.ToLower(collection)]
	if c == nil {
		return false
	}
	if action.ID == "" {
		action.ID = c.Name + "." + action.Name
	}
	c.Actions = append(c.Actions, action)
	return true
}

// AddSegment attaches a smart segment to a registered collection.
// Returns false when the collection is unknown.
func (r *Registry) AddSegment(collection string, segment SmartSegment) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.collections[strings.ToLower(collection)]
	if c == nil {
		return false
	}
	if segment.ID == "" {
		segment.ID = c.Name + "." + segment.Name
	}
	c.Segments = append(c.Segments, segment)
	return true
}
