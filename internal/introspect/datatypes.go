package introspect

import (
	"strings"

	"gorm.io/gorm/schema"

	"gorm-forestadmin/internal/metadata"
)

// dbTypes maps gorm data types (and common explicit column types set with
// `gorm:"type:..."`) to Forest field types.
var dbTypes = map[string]string{
	string(schema.Bool):   metadata.TypeBoolean,
	string(schema.Int):    metadata.TypeNumber,
	string(schema.Uint):   metadata.TypeNumber,
	string(schema.Float):  metadata.TypeNumber,
	string(schema.String): metadata.TypeString,
	string(schema.Time):   metadata.TypeDate,
	string(schema.Bytes):  metadata.TypeUnknown,

	"smallint":         metadata.TypeNumber,
	"integer":          metadata.TypeNumber,
	"bigint":           metadata.TypeNumber,
	"decimal":          metadata.TypeNumber,
	"numeric":          metadata.TypeNumber,
	"real":             metadata.TypeNumber,
	"double precision": metadata.TypeNumber,
	"text":             metadata.TypeString,
	"varchar":          metadata.TypeString,
	"char":             metadata.TypeString,
	"citext":           metadata.TypeString,
	"boolean":          metadata.TypeBoolean,
	"timestamp":        metadata.TypeDate,
	"timestamptz":      metadata.TypeDate,
	"datetime":         metadata.TypeDate,
	"date":             metadata.TypeDateonly,
	"timetz":           metadata.TypeTime,
	"uuid":             metadata.TypeUUID,
	"json":             metadata.TypeJSON,
	"jsonb":            metadata.TypeJSON,
	"blob":             metadata.TypeUnknown,
	"bytea":            metadata.TypeUnknown,
}

// columnTypes take precedence for explicit column types. gorm normalises
// `type:time` to its own time data type, which is a timestamp.
var columnTypes = map[string]string{
	"time":                   metadata.TypeTime,
	"time without time zone": metadata.TypeTime,
	"time with time zone":    metadata.TypeTime,
}

// GetType returns the Forest type for a gorm data type. Sizes and
// modifiers such as "varchar(255)" are ignored.
func GetType(dataType string) string {
	if forestType, ok := dbTypes[normalizeType(dataType)]; ok {
		return forestType
	}
	return metadata.TypeUnknown
}

// GetColumnType returns the Forest type for a column type written in a
// `gorm:"type:..."` tag.
func GetColumnType(columnType string) string {
	if forestType, ok := columnTypes[normalizeType(columnType)]; ok {
		return forestType
	}
	return GetType(columnType)
}

func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}
