package metadata

// Collection is one ORM model as exposed to Forest Admin.
type Collection struct {
	Name       string         `json:"name"`
	Table      string         `json:"table"`
	PrimaryKey PrimaryKey     `json:"primary_key"`
	Fields     []Field        `json:"fields"`
	Relations  []Relation     `json:"relations"`
	Actions    []SmartAction  `json:"actions,omitempty"`
	Segments   []SmartSegment `json:"segments,omitempty"`
}

type PrimaryKey struct {
	Field string `json:"field"`
	Type  string `json:"type"` // Forest type of the key column
}

// GetField returns a pointer to the field with the given name, or nil.
func (c *Collection) GetField(name string) *Field {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the collection has a column field with the given name.
func (c *Collection) HasField(name string) bool {
	return c.GetField(name) != nil
}

// FieldNames returns all column field names.
func (c *Collection) FieldNames() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// GetRelation returns the relation with the given name, or nil.
func (c *Collection) GetRelation(name string) *Relation {
	for i := range c.Relations {
		if c.Relations[i].Name == name {
			return &c.Relations[i]
		}
	}
	return nil
}

// QualifiedColumn returns "table.column".
func (c *Collection) QualifiedColumn(column string) string {
	return c.Table + "." + column
}
