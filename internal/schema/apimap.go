// Package schema builds, stores and publishes the Forest Admin apimap.
package schema

import "gorm-forestadmin/internal/metadata"

const (
	LianaName    = "gorm-forestadmin"
	LianaVersion = "1.0.0"
)

// Apimap is the content of the schema file.
type Apimap struct {
	Meta        Meta               `json:"meta"`
	Collections []CollectionSchema `json:"collections"`
}

type Meta struct {
	Liana        string `json:"liana"`
	LianaVersion string `json:"liana_version"`
	Stack        Stack  `json:"stack"`
}

type Stack struct {
	DatabaseType string `json:"database_type"`
	OrmVersion   string `json:"orm_version"`
}

type CollectionSchema struct {
	Name                 string                  `json:"name"`
	Icon                 *string                 `json:"icon"`
	Integration          *string                 `json:"integration"`
	IsReadOnly           bool                    `json:"is_read_only"`
	IsSearchable         bool                    `json:"is_searchable"`
	IsVirtual            bool                    `json:"is_virtual"`
	OnlyForRelationships bool                    `json:"only_for_relationships"`
	PaginationType       string                  `json:"pagination_type"`
	Fields               []FieldSchema           `json:"fields"`
	Actions              []metadata.SmartAction  `json:"actions"`
	Segments             []metadata.SmartSegment `json:"segments"`
}

// FieldSchema describes one field. Type is a string, or a one-element
// list for to-many relations (["Number"]).
type FieldSchema struct {
	Field        string       `json:"field"`
	Type         any          `json:"type"`
	DefaultValue any          `json:"default_value"`
	Enums        []string     `json:"enums"`
	Integration  *string      `json:"integration"`
	IsFilterable bool         `json:"is_filterable"`
	IsReadOnly   bool         `json:"is_read_only"`
	IsRequired   bool         `json:"is_required"`
	IsSortable   bool         `json:"is_sortable"`
	IsVirtual    bool         `json:"is_virtual"`
	Reference    *string      `json:"reference"`
	InverseOf    *string      `json:"inverse_of"`
	Relationship *string      `json:"relationship"`
	Validations  []Validation `json:"validations"`
	Widget       *string      `json:"widget"`
}

type Validation struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// TypeName returns the field type when it is a plain string, "" otherwise.
func (f FieldSchema) TypeName() string {
	s, _ := f.Type.(string)
	return s
}

// IsToMany reports whether the field is a HasMany or BelongsToMany relation.
func (f FieldSchema) IsToMany() bool {
	if f.Relationship == nil {
		return false
	}
	return *f.Relationship == metadata.HasMany || *f.Relationship == metadata.BelongsToMany
}
