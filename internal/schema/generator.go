package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"gorm-forestadmin/internal/metadata"
)

// ApimapPoster is the part of the Forest API client used to publish the apimap.
type ApimapPoster interface {
	Post(ctx context.Context, path string, body any) (int, error)
}

var ErrApimapRejected = errors.New("🌳🌳🌳 Cannot send the apimap to Forest. Are you online?")

type Generator struct {
	registry     *metadata.Registry
	databaseType string
	ormVersion   string
	schemaFile   string
	poster       ApimapPoster
	logger       *zap.Logger
}

// NewGenerator builds a generator. driver is the store driver name
// ("postgres", "sqlite", "mysql").
func NewGenerator(reg *metadata.Registry, driver, ormVersion, schemaFile string, poster ApimapPoster, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		registry:     reg,
		databaseType: databaseSource(driver),
		ormVersion:   ormVersion,
		schemaFile:   schemaFile,
		poster:       poster,
		logger:       logger,
	}
}

func databaseSource(driver string) string {
	switch driver {
	case "postgres", "pgx", "pgsql":
		return "PostgreSQL"
	case "sqlite":
		return "SQLite"
	case "mysql":
		return "MySQL"
	default:
		return driver
	}
}

// Generate builds the apimap from the registry and writes it to the schema file.
func (g *Generator) Generate() (*Apimap, error) {
	apimap := &Apimap{
		Meta: Meta{
			Liana:        LianaName,
			LianaVersion: LianaVersion,
			Stack: Stack{
				DatabaseType: g.databaseType,
				OrmVersion:   g.ormVersion,
			},
		},
		Collections: []CollectionSchema{},
	}

	for _, c := range g.registry.AllCollections() {
		apimap.Collections = append(apimap.Collections, g.collectionSchema(c))
	}

	if g.schemaFile != "" {
		data, err := json.MarshalIndent(apimap, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("encode apimap: %w", err)
		}
		if err := os.WriteFile(g.schemaFile, data, 0o644); err != nil {
			return nil, fmt.Errorf("write schema file: %w", err)
		}
	}

	return apimap, nil
}

func (g *Generator) collectionSchema(c *metadata.Collection) CollectionSchema {
	cs := CollectionSchema{
		Name:           c.Name,
		IsSearchable:   true,
		PaginationType: "page",
		Fields:         make([]FieldSchema, 0, len(c.Fields)+len(c.Relations)),
		Actions:        append([]metadata.SmartAction{}, c.Actions...),
		Segments:       append([]metadata.SmartSegment{}, c.Segments...),
	}

	relationKeys := make(map[string]bool)
	for _, r := range c.Relations {
		if r.Kind == metadata.BelongsTo {
			relationKeys[r.ForeignKey] = true
		}
	}

	for _, f := range c.Fields {
		// foreign keys are exposed through their BelongsTo relation
		if relationKeys[f.Name] {
			continue
		}
		cs.Fields = append(cs.Fields, columnField(f))
	}
	for _, r := range c.Relations {
		cs.Fields = append(cs.Fields, g.relationField(c, r))
	}
	return cs
}

func columnField(f metadata.Field) FieldSchema {
	fs := FieldSchema{
		Field:        f.Name,
		Type:         f.Type,
		DefaultValue: f.DefaultValue,
		Enums:        f.Enums,
		IsFilterable: f.Type != metadata.TypeUnknown,
		IsReadOnly:   f.IsReadOnly,
		IsRequired:   f.IsRequired,
		IsSortable:   f.Type != metadata.TypeJSON && f.Type != metadata.TypeUnknown,
		Validations:  []Validation{},
	}
	if f.IsRequired {
		fs.Validations = append(fs.Validations, Validation{Type: "is present", Message: "Ensure this field is present"})
	}
	return fs
}

func (g *Generator) relationField(c *metadata.Collection, r metadata.Relation) FieldSchema {
	keyType := metadata.TypeNumber
	target := g.registry.GetCollection(r.Target)
	if target != nil && target.PrimaryKey.Type != "" {
		keyType = target.PrimaryKey.Type
	}

	// BelongsTo points at the owner key, the other kinds at the target primary key.
	targetKey := "id"
	switch {
	case r.Kind == metadata.BelongsTo && r.OwnerKey != "":
		targetKey = r.OwnerKey
	case target != nil && target.PrimaryKey.Field != "":
		targetKey = target.PrimaryKey.Field
	}

	kind := r.Kind
	reference := r.Target + "." + targetKey
	fs := FieldSchema{
		Field:        r.Name,
		Type:         keyType,
		IsFilterable: r.IsToOne(),
		IsSortable:   r.IsToOne(),
		Reference:    &reference,
		InverseOf:    inverseOf(c, r, target),
		Relationship: &kind,
		Validations:  []Validation{},
	}
	if r.IsToMany() {
		fs.Type = []string{keyType}
	}
	return fs
}

// inverseOf finds the relation on the target collection that points back
// through the same keys.
func inverseOf(source *metadata.Collection, r metadata.Relation, target *metadata.Collection) *string {
	if target == nil {
		return nil
	}
	for _, back := range target.Relations {
		if back.Target != source.Name {
			continue
		}
		matches := false
		switch r.Kind {
		case metadata.BelongsTo:
			matches = (back.Kind == metadata.HasMany || back.Kind == metadata.HasOne) && back.ForeignKey == r.ForeignKey
		case metadata.HasOne, metadata.HasMany:
			matches = back.Kind == metadata.BelongsTo && back.ForeignKey == r.ForeignKey
		case metadata.BelongsToMany:
			matches = back.Kind == metadata.BelongsToMany && back.JoinTable == r.JoinTable
		}
		if matches {
			name := back.Name
			return &name
		}
	}
	return nil
}

// SendApimap generates the apimap and posts it to Forest Admin.
func (g *Generator) SendApimap(ctx context.Context) error {
	doc, err := g.Serialize()
	if err != nil {
		return err
	}

	status, err := g.poster.Post(ctx, "/forest/apimaps", doc)
	if err != nil {
		g.logger.Error(ErrApimapRejected.Error(), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrApimapRejected, err)
	}

	switch status {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		g.logger.Info("🌳🌳🌳 Apimap Received", zap.Int("collections", len(doc.Data)))
		return nil
	default:
		g.logger.Error(ErrApimapRejected.Error(), zap.Int("status", status))
		return fmt.Errorf("%w (status %d)", ErrApimapRejected, status)
	}
}
