package metadata

// SmartAction is a custom action declared by the host application.
type SmartAction struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Type       string             `json:"type"` // bulk, single, global
	Endpoint   string             `json:"endpoint"`
	HTTPMethod string             `json:"httpMethod"`
	Download   bool               `json:"download"`
	Fields     []SmartActionField `json:"fields"`
	Hooks      map[string]any     `json:"hooks"`
}

type SmartActionField struct {
	Field        string `json:"field"`
	Type         string `json:"type"`
	IsRequired   bool   `json:"isRequired"`
	Description  string `json:"description,omitempty"`
	DefaultValue any    `json:"defaultValue"`
	Reference    any    `json:"reference"`
}

// SmartSegment is a named, pre-filtered view of a collection.
type SmartSegment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
