//go:build integration

package engine

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm-forestadmin/internal/config"
	"gorm-forestadmin/internal/introspect"
	"gorm-forestadmin/internal/metadata"
	"gorm-forestadmin/internal/schema"
	"gorm-forestadmin/internal/store"
	"gorm-forestadmin/internal/testutil"
)

const pgSchema = "forest_it"

const pgDDL = `
DROP SCHEMA IF EXISTS forest_it CASCADE;
CREATE SCHEMA forest_it;
CREATE TABLE forest_it.categories (id SERIAL PRIMARY KEY, label TEXT);
CREATE TABLE forest_it.books (
    id SERIAL PRIMARY KEY, label TEXT NOT NULL, comment TEXT, difficulty TEXT, amount NUMERIC,
    options JSONB, category_id INTEGER, published_at DATE, created_at TIMESTAMP, updated_at TIMESTAMP
);
CREATE TABLE forest_it.advertisements (id SERIAL PRIMARY KEY, label TEXT, book_id INTEGER);
CREATE TABLE forest_it.comments (id SERIAL PRIMARY KEY, body TEXT, user_id INTEGER, book_id INTEGER);
CREATE TABLE forest_it.ranges (id SERIAL PRIMARY KEY, label TEXT);
CREATE TABLE forest_it.book_range (book_id INTEGER, range_id INTEGER);
`

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func pgFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	port, _ := strconv.Atoi(env("DATABASE_PORT", "5432"))
	s, err := store.New(ctx, config.DatabaseConfig{
		Driver:   "postgres",
		Host:     env("DATABASE_HOST", "localhost"),
		Port:     port,
		User:     env("DATABASE_USER", "forest"),
		Password: env("DATABASE_PASSWORD", "forest"),
		Name:     env("DATABASE_NAME", "forest"),
		PoolSize: 2,
	})
	if err != nil {
		t.Fatalf("connect to test db: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.DB.ExecContext(ctx, "DROP SCHEMA IF EXISTS "+pgSchema+" CASCADE")
		s.Close()
	})
	_, err = s.DB.ExecContext(ctx, pgDDL)
	require.NoError(t, err)

	collections, err := introspect.New(pgSchema+".", nil).Collections(testutil.Models()...)
	require.NoError(t, err)
	reg := metadata.NewRegistry()
	reg.Load(collections)
	apimap, err := schema.NewGenerator(reg, "postgres", "", "", nil, nil).Generate()
	require.NoError(t, err)

	return &fixture{store: s, registry: reg, schema: schema.NewIntrospectionFrom(apimap)}
}

func pgExec(t *testing.T, s *store.Store, query string, args ...any) {
	t.Helper()
	_, err := s.DB.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

func pgMakeBooks(t *testing.T, s *store.Store) {
	t.Helper()
	pgExec(t, s, "INSERT INTO forest_it.categories (label) VALUES ('novels')")
	comment, rng := 0, 0
	for i := 1; i <= 10; i++ {
		pgExec(t, s, `INSERT INTO forest_it.books (id, label, difficulty, amount, category_id, published_at, created_at)
			VALUES ($1, $2, 'easy', 1000, 1, $3, $4)`,
			i, fmt.Sprintf("test book %d", i), fixedNow.AddDate(0, 0, -i), fixedNow.AddDate(0, 0, -i))
		for j := 0; j < i; j++ {
			comment++
			rng++
			pgExec(t, s, "INSERT INTO forest_it.comments (id, body, user_id, book_id) VALUES ($1, 'Test comment', 1, $2)", comment, i)
			pgExec(t, s, "INSERT INTO forest_it.ranges (id, label) VALUES ($1, 'Test range')", rng)
			pgExec(t, s, "INSERT INTO forest_it.book_range (book_id, range_id) VALUES ($1, $2)", i, rng)
		}
	}
}

func TestPostgres_Leaderboard(t *testing.T) {
	f := pgFixture(t)
	pgMakeBooks(t, f.store)
	r := f.repo(t, "book")
	assert.Equal(t, pgSchema, r.Database())

	for _, relation := range []string{"comments", "ranges"} {
		value, err := r.Leaderboard(context.Background(), &ChartRequest{
			Type:              ChartLeaderboard,
			LabelField:        "label",
			RelationshipField: relation,
			AggregateField:    "id",
			Limit:             "3",
			Aggregate:         AggregateSum,
		})
		require.NoError(t, err)
		assertLeaderboard(t, value, []string{"test book 10", "test book 9", "test book 8"}, []int64{505, 369, 260})
	}
}

func TestPostgres_ValueAndLine(t *testing.T) {
	f := pgFixture(t)
	pgMakeBooks(t, f.store)
	r := f.repo(t, "book")

	value, err := r.Value(context.Background(), &ChartRequest{
		Type:    ChartValue,
		Filters: filterJSON(t, map[string]any{"field": "created_at", "operator": "previous_x_days", "value": 3}),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, value["countCurrent"])
	assert.EqualValues(t, 3, value["countPrevious"])

	line, err := r.Line(context.Background(), &ChartRequest{
		Type:             ChartLine,
		GroupByDateField: "created_at",
		TimeRange:        "Month",
	})
	require.NoError(t, err)
	require.Len(t, line, 1)
	assert.Equal(t, "Mar 2024", line[0]["label"])
	assert.EqualValues(t, 10, line[0]["values"].(map[string]any)["value"])

	pie, err := r.Pie(context.Background(), &ChartRequest{Type: ChartPie, GroupByField: "category:label"})
	require.NoError(t, err)
	require.Len(t, pie, 1)
	assert.Equal(t, "novels", pie[0]["key"])
}

func TestPostgres_LiveQueryRefusesWrites(t *testing.T) {
	f := pgFixture(t)
	pgMakeBooks(t, f.store)
	ctx := context.Background()

	_, err := LiveQuery(ctx, f.store, &ChartRequest{
		Type:  ChartValue,
		Query: "WITH d AS (DELETE FROM forest_it.books RETURNING id) SELECT COUNT(*) AS value FROM d",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live queries are read-only")

	value, err := LiveQuery(ctx, f.store, &ChartRequest{Type: ChartValue, Query: "SELECT COUNT(*) AS value FROM forest_it.books"})
	require.NoError(t, err)
	assert.EqualValues(t, 10, value.(map[string]any)["countCurrent"])
}
