package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm-forestadmin/internal/instrument"
	"gorm-forestadmin/internal/metadata"
	"gorm-forestadmin/internal/testutil"
)

var testUser = &metadata.UserContext{ID: "1", Email: "jane@forestadmin.com", FirstName: "Jane", RenderingID: 34}

func setupApp(t *testing.T, f *fixture, perms Authorizer) *fiber.App {
	t.Helper()
	app := fiber.New()
	auth := func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			return UnauthorizedError("Missing auth token")
		}
		SetUser(c, testUser)
		return c.Next()
	}
	h := NewHandler(f.store, f.registry, f.schema, perms, instrument.NewMetrics(), nil)
	RegisterRoutes(app, h, auth)
	return app
}

func post(t *testing.T, app *fiber.App, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

func TestAlive(t *testing.T) {
	app := setupApp(t, newFixture(t), &fakeAuthorizer{allowed: true})

	resp, err := app.Test(httptest.NewRequest("GET", "/forest", nil))
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

func TestChart_ValueEnvelope(t *testing.T) {
	f := newFixture(t)
	testutil.MakeBooks(t, f.store)
	perms := &fakeAuthorizer{allowed: true}
	app := setupApp(t, f, perms)

	status, body := post(t, app, "/forest/stats/book", `{"type":"Value","aggregate":"Count","collection":"book","filters":null}`)
	require.Equal(t, 200, status, body)

	data := body["data"].(map[string]any)
	assert.Equal(t, "stats", data["type"])
	assert.NotEmpty(t, data["id"])
	value := data["attributes"].(map[string]any)["value"].(map[string]any)
	assert.EqualValues(t, 10, value["countCurrent"])
	assert.Nil(t, value["countPrevious"])

	require.Len(t, perms.calls, 1)
	assert.Equal(t, "book", perms.calls[0].Collection)
}

func TestChart_CollectionDefaultsToPath(t *testing.T) {
	f := newFixture(t)
	perms := &fakeAuthorizer{allowed: true}
	app := setupApp(t, f, perms)

	status, _ := post(t, app, "/forest/stats/Book", `{"type":"Objective"}`)
	require.Equal(t, 200, status)
	require.Len(t, perms.calls, 1)
	assert.Equal(t, "book", perms.calls[0].Collection)
}

// bookOnly grants Value charts on the book collection only.
type bookOnly struct {
	calls []string
}

func (a *bookOnly) CanExecuteChart(_ context.Context, _ *metadata.UserContext, req *ChartRequest) (bool, error) {
	a.calls = append(a.calls, req.Collection)
	return req.Type == ChartValue && req.Collection == "book", nil
}

func TestChart_PermissionUsesRouteCollection(t *testing.T) {
	f := newFixture(t)
	testutil.MakeBooks(t, f.store)
	perms := &bookOnly{}
	app := setupApp(t, f, perms)

	status, _ := post(t, app, "/forest/stats/comment", `{"type":"Value","aggregate":"Count"}`)
	assert.Equal(t, 403, status)

	status, body := post(t, app, "/forest/stats/comment", `{"type":"Value","aggregate":"Count","collection":"book"}`)
	assert.Equal(t, 403, status, body)
	assert.Equal(t, []string{"comment", "comment"}, perms.calls)

	status, _ = post(t, app, "/forest/stats/book", `{"type":"Value","aggregate":"Count","collection":"comment"}`)
	assert.Equal(t, 200, status)
}

func TestChart_InvalidRequest(t *testing.T) {
	perms := &fakeAuthorizer{allowed: true}
	app := setupApp(t, newFixture(t), perms)

	status, body := post(t, app, "/forest/stats/book",
		`{"type":"Line","group_by_date_field":"created_at","time_range":"Hour","aggregate":"Median"}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, "Invalid chart request", body["message"])

	details := body["error"].(map[string]any)["details"].([]any)
	fields := map[string]bool{}
	for _, d := range details {
		fields[d.(map[string]any)["field"].(string)] = true
	}
	assert.Equal(t, map[string]bool{"time_range": true, "aggregate": true}, fields)

	status, body = post(t, app, "/forest/stats/book",
		`{"type":"Leaderboard","label_field":"label","relationship_field":"comments","limit":-1}`)
	assert.Equal(t, 400, status)
	detail := body["error"].(map[string]any)["details"].([]any)[0].(map[string]any)
	assert.Equal(t, "limit", detail["field"])

	status, _ = post(t, app, "/forest/stats/book", `{"type":"Pie"}`)
	assert.Equal(t, 400, status)
	assert.Empty(t, perms.calls)
}

func TestChart_Leaderboard(t *testing.T) {
	f := newFixture(t)
	testutil.MakeBooks(t, f.store)
	app := setupApp(t, f, &fakeAuthorizer{allowed: true})

	status, body := post(t, app, "/forest/stats/book", `{
		"type":"Leaderboard","collection":"book","label_field":"label",
		"relationship_field":"comments","aggregate":"Count","limit":3}`)
	require.Equal(t, 200, status, body)

	value := body["data"].(map[string]any)["attributes"].(map[string]any)["value"].([]any)
	require.Len(t, value, 3)
	first := value[0].(map[string]any)
	assert.Equal(t, "test book 10", first["key"])
	assert.EqualValues(t, 10, first["value"])
}

func TestChart_Forbidden(t *testing.T) {
	f := newFixture(t)
	app := setupApp(t, f, &fakeAuthorizer{allowed: false})

	status, body := post(t, app, "/forest/stats/book", `{"type":"Value","aggregate":"Count","collection":"book"}`)
	assert.Equal(t, 403, status)
	assert.Equal(t, "This action is unauthorized.", body["message"])
}

func TestChart_AuthorizerError(t *testing.T) {
	f := newFixture(t)
	app := setupApp(t, f, &fakeAuthorizer{err: errors.New("forest unreachable")})

	status, body := post(t, app, "/forest/stats/book", `{"type":"Value","collection":"book"}`)
	assert.Equal(t, 500, status)
	assert.Equal(t, "Internal server error", body["message"])
}

func TestChart_UnknownType(t *testing.T) {
	f := newFixture(t)
	perms := &fakeAuthorizer{allowed: true}
	app := setupApp(t, f, perms)

	status, body := post(t, app, "/forest/stats/book", `{"type":"Foo","collection":"book"}`)
	assert.Equal(t, 500, status)
	assert.Equal(t, "🌳🌳🌳 The chart's type is not recognized.", body["message"])
	assert.Empty(t, perms.calls)
}

func TestChart_UnknownCollection(t *testing.T) {
	app := setupApp(t, newFixture(t), &fakeAuthorizer{allowed: true})

	status, body := post(t, app, "/forest/stats/unicorn", `{"type":"Value"}`)
	assert.Equal(t, 404, status)
	assert.Equal(t, "🌳🌳🌳 Unknown collection: unicorn", body["message"])
}

func TestChart_ChartError(t *testing.T) {
	app := setupApp(t, newFixture(t), &fakeAuthorizer{allowed: true})

	status, body := post(t, app, "/forest/stats/book", `{"type":"Pie","collection":"book","group_by_field":"foo"}`)
	assert.Equal(t, 500, status)
	assert.Equal(t, "🌳🌳🌳 The field foo doesn't exist in the table books", body["message"])
}

func TestChart_Unauthenticated(t *testing.T) {
	app := setupApp(t, newFixture(t), &fakeAuthorizer{allowed: true})

	req := httptest.NewRequest("POST", "/forest/stats/book", strings.NewReader(`{"type":"Value"}`))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestLiveQueryRoute(t *testing.T) {
	f := newFixture(t)
	testutil.MakeBooks(t, f.store)
	perms := &fakeAuthorizer{allowed: true}
	app := setupApp(t, f, perms)

	status, body := post(t, app, "/forest/stats", `{"type":"Value","query":"SELECT COUNT(*) AS value FROM books"}`)
	require.Equal(t, 200, status, body)
	value := body["data"].(map[string]any)["attributes"].(map[string]any)["value"].(map[string]any)
	assert.EqualValues(t, 10, value["countCurrent"])
	require.Len(t, perms.calls, 1)
	assert.True(t, perms.calls[0].IsLiveQuery())
}

func TestLiveQueryRoute_TypeCheckedBeforePermissions(t *testing.T) {
	perms := &fakeAuthorizer{allowed: false}
	app := setupApp(t, newFixture(t), perms)

	status, body := post(t, app, "/forest/stats", `{"type":"Foo","query":"SELECT 1 AS value"}`)
	assert.Equal(t, 500, status)
	assert.Equal(t, "🌳🌳🌳 The chart's type is not recognized.", body["message"])
	assert.Empty(t, perms.calls)

	status, body = post(t, app, "/forest/stats", `{"type":"Value","query":"SELECT 1 AS value"}`)
	assert.Equal(t, 403, status)
	assert.Equal(t, "This action is unauthorized.", body["message"])
}

func TestCheckChartPermission(t *testing.T) {
	req := &ChartRequest{Type: ChartValue}

	err := CheckChartPermission(t.Context(), &fakeAuthorizer{allowed: true}, nil, req)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 401, appErr.Status)

	err = CheckChartPermission(t.Context(), nil, testUser, req)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 403, appErr.Status)

	assert.NoError(t, CheckChartPermission(t.Context(), &fakeAuthorizer{allowed: true}, testUser, req))
}
