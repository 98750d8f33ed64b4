// Package introspect turns GORM models into Forest collections.
package introspect

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
	"gorm.io/gorm/schema"

	"gorm-forestadmin/internal/metadata"
)

type Introspector struct {
	namer  schema.NamingStrategy
	cache  *sync.Map
	logger *zap.Logger
}

// New returns an introspector. tablePrefix is applied to every table name,
// the same way gorm applies it when the application opens its connection.
func New(tablePrefix string, logger *zap.Logger) *Introspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Introspector{
		namer:  schema.NamingStrategy{TablePrefix: tablePrefix},
		cache:  &sync.Map{},
		logger: logger,
	}
}

// TablePrefix returns the configured table prefix.
func (i *Introspector) TablePrefix() string {
	return i.namer.TablePrefix
}

// Collections parses every model and returns one collection per model.
func (i *Introspector) Collections(models ...any) ([]*metadata.Collection, error) {
	collections := make([]*metadata.Collection, 0, len(models))
	for _, model := range models {
		c, err := i.Collection(model)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, nil
}

// Collection parses a single model.
func (i *Introspector) Collection(model any) (*metadata.Collection, error) {
	s, err := schema.Parse(model, i.cache, i.namer)
	if err != nil {
		return nil, fmt.Errorf("parse model %T: %w", model, err)
	}

	c := &metadata.Collection{
		Name:  CollectionName(s.Name),
		Table: s.Table,
	}
	if pk := s.PrioritizedPrimaryField; pk != nil {
		c.PrimaryKey = metadata.PrimaryKey{Field: pk.DBName, Type: fieldType(pk)}
	}

	for _, f := range s.Fields {
		if f.DBName != "" {
			c.Fields = append(c.Fields, buildField(f))
			continue
		}
		rel, ok := s.Relationships.Relations[f.Name]
		if !ok {
			continue
		}
		if rel.Polymorphic != nil {
			i.logger.Debug("skipping polymorphic relation",
				zap.String("collection", c.Name), zap.String("relation", rel.Name))
			continue
		}
		r, err := buildRelation(i.namer, rel)
		if err != nil {
			return nil, fmt.Errorf("collection %s: %w", c.Name, err)
		}
		c.Relations = append(c.Relations, r)
	}

	return c, nil
}

func buildField(f *schema.Field) metadata.Field {
	field := metadata.Field{
		Name:         f.DBName,
		Type:         fieldType(f),
		DBType:       string(f.DataType),
		IsPrimaryKey: f.PrimaryKey,
		IsRequired:   f.NotNull && !f.HasDefaultValue && !f.AutoIncrement,
		IsReadOnly:   (f.PrimaryKey && f.AutoIncrement) || f.AutoCreateTime != 0 || f.AutoUpdateTime != 0,
	}
	if f.HasDefaultValue && f.DefaultValueInterface != nil {
		field.DefaultValue = f.DefaultValueInterface
	}
	if enums := parseEnums(f.Tag.Get("forest")); len(enums) > 0 {
		field.Type = metadata.TypeEnum
		field.Enums = enums
	}
	return field
}

func fieldType(f *schema.Field) string {
	if explicit := f.TagSettings["TYPE"]; explicit != "" {
		return GetColumnType(explicit)
	}
	return GetType(string(f.DataType))
}

// parseEnums reads `forest:"enums:draft|published"`.
func parseEnums(tag string) []string {
	for _, part := range strings.Split(tag, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok || !strings.EqualFold(key, "enums") {
			continue
		}
		var enums []string
		for _, e := range strings.Split(value, "|") {
			if e = strings.TrimSpace(e); e != "" {
				enums = append(enums, e)
			}
		}
		return enums
	}
	return nil
}

func buildRelation(namer schema.NamingStrategy, rel *schema.Relationship) (metadata.Relation, error) {
	r := metadata.Relation{
		Name:        namer.ColumnName("", rel.Name),
		Target:      CollectionName(rel.FieldSchema.Name),
		TargetTable: rel.FieldSchema.Table,
	}
	if len(rel.References) == 0 {
		return r, fmt.Errorf("relation %s has no references", rel.Name)
	}

	switch rel.Type {
	case schema.BelongsTo:
		ref := rel.References[0]
		r.Kind = metadata.BelongsTo
		r.ForeignKey = ref.ForeignKey.DBName
		r.OwnerKey = ref.PrimaryKey.DBName
	case schema.HasOne, schema.HasMany:
		ref := rel.References[0]
		r.Kind = metadata.HasMany
		if rel.Type == schema.HasOne {
			r.Kind = metadata.HasOne
		}
		r.ForeignKey = ref.ForeignKey.DBName
		r.OwnerKey = ref.PrimaryKey.DBName
	case schema.Many2Many:
		r.Kind = metadata.BelongsToMany
		if rel.JoinTable != nil {
			r.JoinTable = rel.JoinTable.Table
		}
		for _, ref := range rel.References {
			if ref.OwnPrimaryKey {
				r.OwnerKey = ref.PrimaryKey.DBName
				r.JoinForeignKey = ref.ForeignKey.DBName
			} else {
				r.ForeignKey = ref.PrimaryKey.DBName
				r.JoinTargetKey = ref.ForeignKey.DBName
			}
		}
	default:
		return r, fmt.Errorf("relation %s: unsupported type %s", rel.Name, rel.Type)
	}
	return r, nil
}

// CollectionName lower-cases the first rune of a model name: Book -> book,
// BookRange -> bookRange.
func CollectionName(modelName string) string {
	if modelName == "" {
		return ""
	}
	runes := []rune(modelName)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// ORMVersion returns the gorm version compiled into the binary.
func ORMVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path == "gorm.io/gorm" {
			return strings.TrimPrefix(dep.Version, "v")
		}
	}
	return "unknown"
}
