package schema

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm-forestadmin/internal/introspect"
	"gorm-forestadmin/internal/metadata"
	"gorm-forestadmin/internal/testutil"
)

type fakePoster struct {
	status int
	err    error
	path   string
	body   any
}

func (p *fakePoster) Post(_ context.Context, path string, body any) (int, error) {
	p.path = path
	p.body = body
	return p.status, p.err
}

func newRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	collections, err := introspect.New("", nil).Collections(testutil.Models()...)
	require.NoError(t, err)
	reg := metadata.NewRegistry()
	reg.Load(collections)
	return reg
}

func findCollection(t *testing.T, apimap *Apimap, name string) CollectionSchema {
	t.Helper()
	for _, c := range apimap.Collections {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("collection %s not found", name)
	return CollectionSchema{}
}

func findField(t *testing.T, c CollectionSchema, name string) FieldSchema {
	t.Helper()
	for _, f := range c.Fields {
		if f.Field == name {
			return f
		}
	}
	t.Fatalf("field %s not found in %s", name, c.Name)
	return FieldSchema{}
}

func TestGenerate_Meta(t *testing.T) {
	g := NewGenerator(newRegistry(t), "sqlite", "v1.25.12", "", nil, nil)
	apimap, err := g.Generate()
	require.NoError(t, err)

	assert.Equal(t, Meta{
		Liana:        LianaName,
		LianaVersion: LianaVersion,
		Stack:        Stack{DatabaseType: "SQLite", OrmVersion: "v1.25.12"},
	}, apimap.Meta)
	assert.Len(t, apimap.Collections, 5)
	assert.Equal(t, "advertisement", apimap.Collections[0].Name)
}

func TestGenerate_BookFields(t *testing.T) {
	apimap, err := NewGenerator(newRegistry(t), "postgres", "", "", nil, nil).Generate()
	require.NoError(t, err)
	assert.Equal(t, "PostgreSQL", apimap.Meta.Stack.DatabaseType)

	book := findCollection(t, apimap, "book")
	assert.Equal(t, "page", book.PaginationType)
	assert.True(t, book.IsSearchable)
	assert.NotNil(t, book.Actions)
	assert.NotNil(t, book.Segments)

	label := findField(t, book, "label")
	assert.Equal(t, metadata.TypeString, label.Type)
	assert.True(t, label.IsRequired)
	assert.Equal(t, []Validation{{Type: "is present", Message: "Ensure this field is present"}}, label.Validations)

	difficulty := findField(t, book, "difficulty")
	assert.Equal(t, metadata.TypeEnum, difficulty.Type)
	assert.Equal(t, []string{"easy", "hard"}, difficulty.Enums)

	options := findField(t, book, "options")
	assert.False(t, options.IsSortable)

	for _, f := range book.Fields {
		assert.NotEqual(t, "category_id", f.Field, "foreign keys are exposed through their relation")
	}
}

func TestGenerate_RelationFields(t *testing.T) {
	apimap, err := NewGenerator(newRegistry(t), "sqlite", "", "", nil, nil).Generate()
	require.NoError(t, err)
	book := findCollection(t, apimap, "book")

	category := findField(t, book, "category")
	assert.Equal(t, metadata.TypeNumber, category.Type)
	require.NotNil(t, category.Reference)
	assert.Equal(t, "category.id", *category.Reference)
	require.NotNil(t, category.Relationship)
	assert.Equal(t, metadata.BelongsTo, *category.Relationship)
	assert.True(t, category.IsFilterable)

	comments := findField(t, book, "comments")
	assert.Equal(t, []string{metadata.TypeNumber}, comments.Type)
	assert.Equal(t, "comment.id", *comments.Reference)
	assert.False(t, comments.IsFilterable)
	assert.False(t, comments.IsSortable)
	assert.True(t, comments.IsToMany())

	ranges := findField(t, book, "ranges")
	require.NotNil(t, ranges.InverseOf)
	assert.Equal(t, "books", *ranges.InverseOf)
	assert.Equal(t, metadata.BelongsToMany, *ranges.Relationship)
}

func TestGenerate_WritesSchemaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".forestadmin-schema.json")
	_, err := NewGenerator(newRegistry(t), "sqlite", "", path, nil, nil).Generate()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var apimap Apimap
	require.NoError(t, json.Unmarshal(data, &apimap))
	assert.Len(t, apimap.Collections, 5)
	assert.Equal(t, LianaName, apimap.Meta.Liana)
}

func TestSerialize_MovesActionsToIncluded(t *testing.T) {
	reg := newRegistry(t)
	require.True(t, reg.AddAction("book", metadata.SmartAction{Name: "Mark as live", Type: "bulk", Endpoint: "/forest/actions/mark-as-live", HTTPMethod: "POST"}))
	require.True(t, reg.AddSegment("Book", metadata.SmartSegment{Name: "Bestsellers"}))

	doc, err := NewGenerator(reg, "sqlite", "", "", nil, nil).Serialize()
	require.NoError(t, err)

	var book Resource
	for _, r := range doc.Data {
		if r.ID == "book" {
			book = r
		}
	}
	require.Equal(t, "collections", book.Type)
	assert.NotContains(t, book.Attributes, "actions")
	assert.NotContains(t, book.Attributes, "segments")
	assert.Equal(t, []ResourceID{{ID: "book.Mark as live", Type: "actions"}}, book.Relationships["actions"].Data)
	assert.Equal(t, []ResourceID{{ID: "book.Bestsellers", Type: "segments"}}, book.Relationships["segments"].Data)

	require.Len(t, doc.Included, 2)
	assert.Equal(t, "actions", doc.Included[0].Type)
	assert.Equal(t, "Mark as live", doc.Included[0].Attributes["name"])
	assert.Equal(t, "/forest/actions/mark-as-live", doc.Included[0].Attributes["endpoint"])
	assert.Equal(t, "segments", doc.Included[1].Type)
	assert.Equal(t, map[string]any{"name": "Bestsellers"}, doc.Included[1].Attributes)
}

func TestSendApimap(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusAccepted, http.StatusNoContent} {
		poster := &fakePoster{status: status}
		err := NewGenerator(newRegistry(t), "sqlite", "", "", poster, nil).SendApimap(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "/forest/apimaps", poster.path)
		assert.IsType(t, &Document{}, poster.body)
	}
}

func TestSendApimap_Rejected(t *testing.T) {
	poster := &fakePoster{status: http.StatusBadRequest}
	err := NewGenerator(newRegistry(t), "sqlite", "", "", poster, nil).SendApimap(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrApimapRejected)

	poster = &fakePoster{err: errors.New("dial tcp: connection refused")}
	err = NewGenerator(newRegistry(t), "sqlite", "", "", poster, nil).SendApimap(context.Background())
	assert.ErrorIs(t, err, ErrApimapRejected)
}
