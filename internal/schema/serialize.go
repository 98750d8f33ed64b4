package schema

import (
	"encoding/json"
	"fmt"
)

// Document is the JSON:API form of the apimap sent to Forest Admin.
type Document struct {
	Data     []Resource `json:"data"`
	Included []Resource `json:"included"`
	Meta     Meta       `json:"meta"`
}

type Resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    map[string]any          `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

type Relationship struct {
	Data []ResourceID `json:"data"`
}

type ResourceID struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Serialize generates the apimap and converts it to a JSON:API document.
// Actions and segments move from the collection attributes to included.
func (g *Generator) Serialize() (*Document, error) {
	apimap, err := g.Generate()
	if err != nil {
		return nil, err
	}
	return ToDocument(apimap)
}

func ToDocument(apimap *Apimap) (*Document, error) {
	doc := &Document{
		Data:     make([]Resource, 0, len(apimap.Collections)),
		Included: []Resource{},
		Meta:     apimap.Meta,
	}

	for _, c := range apimap.Collections {
		attrs, err := attributesOf(c)
		if err != nil {
			return nil, fmt.Errorf("serialize collection %s: %w", c.Name, err)
		}
		delete(attrs, "actions")
		delete(attrs, "segments")

		actionRefs := make([]ResourceID, 0, len(c.Actions))
		for _, a := range c.Actions {
			actionAttrs, err := attributesOf(a)
			if err != nil {
				return nil, fmt.Errorf("serialize action %s: %w", a.ID, err)
			}
			delete(actionAttrs, "id")
			doc.Included = append(doc.Included, Resource{ID: a.ID, Type: "actions", Attributes: actionAttrs})
			actionRefs = append(actionRefs, ResourceID{ID: a.ID, Type: "actions"})
		}

		segmentRefs := make([]ResourceID, 0, len(c.Segments))
		for _, s := range c.Segments {
			doc.Included = append(doc.Included, Resource{ID: s.ID, Type: "segments", Attributes: map[string]any{"name": s.Name}})
			segmentRefs = append(segmentRefs, ResourceID{ID: s.ID, Type: "segments"})
		}

		doc.Data = append(doc.Data, Resource{
			ID:         c.Name,
			Type:       "collections",
			Attributes: attrs,
			Relationships: map[string]Relationship{
				"actions":  {Data: actionRefs},
				"segments": {Data: segmentRefs},
			},
		})
	}
	return doc, nil
}

func attributesOf(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}
