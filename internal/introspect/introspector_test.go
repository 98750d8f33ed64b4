package introspect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm-forestadmin/internal/metadata"
	"gorm-forestadmin/internal/testutil"
)

func TestCollection_Book(t *testing.T) {
	c, err := New("", nil).Collection(&testutil.Book{})
	require.NoError(t, err)

	assert.Equal(t, "book", c.Name)
	assert.Equal(t, "books", c.Table)
	assert.Equal(t, metadata.PrimaryKey{Field: "id", Type: metadata.TypeNumber}, c.PrimaryKey)

	types := map[string]string{}
	for _, f := range c.Fields {
		types[f.Name] = f.Type
	}
	assert.Equal(t, map[string]string{
		"id":           metadata.TypeNumber,
		"label":        metadata.TypeString,
		"comment":      metadata.TypeString,
		"difficulty":   metadata.TypeEnum,
		"amount":       metadata.TypeNumber,
		"options":      metadata.TypeJSON,
		"category_id":  metadata.TypeNumber,
		"published_at": metadata.TypeDateonly,
		"created_at":   metadata.TypeDate,
		"updated_at":   metadata.TypeDate,
	}, types)

	assert.Equal(t, []string{"easy", "hard"}, c.GetField("difficulty").Enums)
	assert.True(t, c.GetField("label").IsRequired)
	assert.True(t, c.GetField("id").IsPrimaryKey)
	assert.True(t, c.GetField("created_at").IsReadOnly)
}

func TestCollection_Relations(t *testing.T) {
	c, err := New("", nil).Collection(&testutil.Book{})
	require.NoError(t, err)

	require.Len(t, c.Relations, 4)

	category := c.GetRelation("category")
	require.NotNil(t, category)
	assert.Equal(t, metadata.Relation{
		Name: "category", Kind: metadata.BelongsTo, Target: "category", TargetTable: "categories",
		ForeignKey: "category_id", OwnerKey: "id",
	}, *category)

	ad := c.GetRelation("advertisement")
	require.NotNil(t, ad)
	assert.Equal(t, metadata.HasOne, ad.Kind)
	assert.Equal(t, "book_id", ad.ForeignKey)
	assert.Equal(t, "id", ad.OwnerKey)

	comments := c.GetRelation("comments")
	require.NotNil(t, comments)
	assert.Equal(t, metadata.HasMany, comments.Kind)
	assert.Equal(t, "comments", comments.TargetTable)
	assert.Equal(t, "book_id", comments.ForeignKey)

	ranges := c.GetRelation("ranges")
	require.NotNil(t, ranges)
	assert.Equal(t, metadata.Relation{
		Name: "ranges", Kind: metadata.BelongsToMany, Target: "range", TargetTable: "ranges",
		ForeignKey: "id", OwnerKey: "id",
		JoinTable: "book_range", JoinForeignKey: "book_id", JoinTargetKey: "range_id",
	}, *ranges)
}

func TestCollection_TablePrefix(t *testing.T) {
	i := New("prefix.", nil)
	c, err := i.Collection(&testutil.Comment{})
	require.NoError(t, err)

	assert.Equal(t, "prefix.comments", c.Table)
	assert.Equal(t, "prefix.", i.TablePrefix())
}

func TestCollections_AllModels(t *testing.T) {
	collections, err := New("", nil).Collections(testutil.Models()...)
	require.NoError(t, err)

	names := make([]string, len(collections))
	for i, c := range collections {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"book", "category", "advertisement", "comment", "range"}, names)
}

func TestGetType(t *testing.T) {
	assert.Equal(t, metadata.TypeString, GetType("varchar(255)"))
	assert.Equal(t, metadata.TypeUUID, GetType("UUID"))
	assert.Equal(t, metadata.TypeBoolean, GetType("bool"))
	assert.Equal(t, metadata.TypeUnknown, GetType("bytes"))
	assert.Equal(t, metadata.TypeUnknown, GetType("tsvector"))
}

type shift struct {
	ID       uint
	Starts   string    `gorm:"type:time"`
	Ends     string    `gorm:"type:TIME WITH TIME ZONE"`
	Day      time.Time `gorm:"type:date"`
	LoggedAt time.Time
}

func TestCollection_ExplicitColumnTypes(t *testing.T) {
	c, err := New("", nil).Collection(&shift{})
	require.NoError(t, err)

	assert.Equal(t, metadata.TypeTime, c.GetField("starts").Type)
	assert.Equal(t, metadata.TypeTime, c.GetField("ends").Type)
	assert.Equal(t, metadata.TypeDateonly, c.GetField("day").Type)
	assert.Equal(t, metadata.TypeDate, c.GetField("logged_at").Type)
}

func TestGetColumnType(t *testing.T) {
	assert.Equal(t, metadata.TypeTime, GetColumnType("time"))
	assert.Equal(t, metadata.TypeTime, GetColumnType("time(6) without time zone"))
	assert.Equal(t, metadata.TypeString, GetColumnType("varchar(64)"))
	assert.Equal(t, metadata.TypeDate, GetType("time"))
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "book", CollectionName("Book"))
	assert.Equal(t, "bookRange", CollectionName("BookRange"))
	assert.Equal(t, "", CollectionName(""))
}
