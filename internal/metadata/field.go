package metadata

// Forest field types.
const (
	TypeString   = "String"
	TypeNumber   = "Number"
	TypeBoolean  = "Boolean"
	TypeDate     = "Date"
	TypeDateonly = "Dateonly"
	TypeTime     = "Time"
	TypeUUID     = "Uuid"
	TypeJSON     = "Json"
	TypeEnum     = "Enum"
	TypeUnknown  = "unknown"
)

type Field struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	DBType       string   `json:"db_type,omitempty"`
	Enums        []string `json:"enums,omitempty"`
	IsPrimaryKey bool     `json:"is_primary_key,omitempty"`
	IsRequired   bool     `json:"is_required,omitempty"`
	IsReadOnly   bool     `json:"is_read_only,omitempty"`
	DefaultValue any      `json:"default_value,omitempty"`
}

// IsNumeric returns true if the field can be summed or averaged.
func (f Field) IsNumeric() bool {
	return f.Type == TypeNumber
}

// IsTemporal returns true for Date and Dateonly fields.
func (f Field) IsTemporal() bool {
	return f.Type == TypeDate || f.Type == TypeDateonly
}
