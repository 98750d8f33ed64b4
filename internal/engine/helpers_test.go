package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gorm-forestadmin/internal/introspect"
	"gorm-forestadmin/internal/metadata"
	"gorm-forestadmin/internal/schema"
	"gorm-forestadmin/internal/store"
	"gorm-forestadmin/internal/testutil"
)

// Thursday.
var fixedNow = time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *store.Store
	registry *metadata.Registry
	schema   *schema.Introspection
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	collections, err := introspect.New("", nil).Collections(testutil.Models()...)
	require.NoError(t, err)
	reg := metadata.NewRegistry()
	reg.Load(collections)

	apimap, err := schema.NewGenerator(reg, "sqlite", "", "", nil, nil).Generate()
	require.NoError(t, err)

	return &fixture{
		store:    testutil.NewStore(t),
		registry: reg,
		schema:   schema.NewIntrospectionFrom(apimap),
	}
}

func (f *fixture) repo(t *testing.T, collection string) *ChartRepository {
	t.Helper()
	coll := f.registry.GetCollection(collection)
	require.NotNil(t, coll)
	r := NewChartRepository(f.store, f.registry, f.schema, coll)
	r.now = func() time.Time { return fixedNow }
	return r
}

// seedDated inserts seven books spread around fixedNow:
// three today, two yesterday, one in the previous week, one in February.
func (f *fixture) seedDated(t *testing.T) {
	t.Helper()
	category := testutil.InsertCategory(t, f.store, "novels")
	books := []testutil.BookRow{
		{Label: "today 1", Difficulty: "easy", Amount: 10, CreatedAt: time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)},
		{Label: "today 2", Difficulty: "easy", Amount: 20, CreatedAt: time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)},
		{Label: "today 3", Difficulty: "hard", Amount: 30, CreatedAt: time.Date(2024, 3, 14, 1, 0, 0, 0, time.UTC)},
		{Label: "yesterday 1", Difficulty: "hard", Amount: 5, CreatedAt: time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)},
		{Label: "yesterday 2", Difficulty: "easy", Amount: 5, CreatedAt: time.Date(2024, 3, 13, 23, 0, 0, 0, time.UTC)},
		{Label: "last week", Difficulty: "easy", Amount: 100, CreatedAt: time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)},
		{Label: "february", Difficulty: "hard", Amount: 1, CreatedAt: time.Date(2024, 2, 20, 9, 0, 0, 0, time.UTC)},
	}
	for _, b := range books {
		b.CategoryID = category
		testutil.InsertBook(t, f.store, b)
	}
}

type fakeAuthorizer struct {
	allowed bool
	err     error
	calls   []*ChartRequest
}

func (a *fakeAuthorizer) CanExecuteChart(_ context.Context, _ *metadata.UserContext, req *ChartRequest) (bool, error) {
	a.calls = append(a.calls, req)
	return a.allowed, a.err
}
