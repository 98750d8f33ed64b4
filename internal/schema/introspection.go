package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Introspection answers field questions from the schema file written by
// Generate. The file is read once; Reload re-reads it.
type Introspection struct {
	path string

	mu          sync.RWMutex
	collections map[string]CollectionSchema // keyed by lower-cased name
}

func NewIntrospection(path string) *Introspection {
	return &Introspection{path: path}
}

// NewIntrospectionFrom builds an introspection over an in-memory apimap.
func NewIntrospectionFrom(apimap *Apimap) *Introspection {
	i := &Introspection{}
	i.set(apimap)
	return i
}

func (i *Introspection) Reload() error {
	data, err := os.ReadFile(i.path)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	var apimap Apimap
	if err := json.Unmarshal(data, &apimap); err != nil {
		return fmt.Errorf("decode schema file %s: %w", i.path, err)
	}
	i.set(&apimap)
	return nil
}

func (i *Introspection) set(apimap *Apimap) {
	collections := make(map[string]CollectionSchema, len(apimap.Collections))
	for _, c := range apimap.Collections {
		collections[strings.ToLower(c.Name)] = c
	}
	i.mu.Lock()
	i.collections = collections
	i.mu.Unlock()
}

func (i *Introspection) load() map[string]CollectionSchema {
	i.mu.RLock()
	collections := i.collections
	i.mu.RUnlock()
	if collections != nil || i.path == "" {
		return collections
	}
	// a missing or broken file leaves the introspection empty
	_ = i.Reload()
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.collections
}

// Collections returns the collection names of the schema.
func (i *Introspection) Collections() []string {
	collections := i.load()
	names := make([]string, 0, len(collections))
	for _, c := range collections {
		names = append(names, c.Name)
	}
	return names
}

// Fields returns the fields of a collection, empty when it is unknown.
func (i *Introspection) Fields(collection string) []FieldSchema {
	c, ok := i.load()[strings.ToLower(collection)]
	if !ok {
		return []FieldSchema{}
	}
	return c.Fields
}

// RelatedData returns the names of the to-many relation fields of a collection.
func (i *Introspection) RelatedData(collection string) []string {
	related := []string{}
	for _, f := range i.Fields(collection) {
		if f.IsToMany() {
			related = append(related, f.Field)
		}
	}
	return related
}

// TypeByField returns the type of a field, "" when unknown.
func (i *Introspection) TypeByField(collection, field string) string {
	for _, f := range i.Fields(collection) {
		if f.Field == field {
			return f.TypeName()
		}
	}
	return ""
}
