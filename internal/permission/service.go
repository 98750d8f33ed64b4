// Package permission checks chart requests against the stats permissions
// of a Forest Admin rendering.
package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"gorm-forestadmin/internal/engine"
	"gorm-forestadmin/internal/forestapi"
	"gorm-forestadmin/internal/metadata"
)

const cacheSize = 256

// Fetcher loads the permissions of a rendering. *forestapi.Client implements it.
type Fetcher interface {
	FetchPermissions(ctx context.Context, renderingID int64) (*forestapi.Permissions, error)
}

// Service caches rendering permissions and answers chart checks. It
// implements engine.Authorizer.
type Service struct {
	client Fetcher
	cache  *expirable.LRU[int64, *forestapi.Permissions]
	group  singleflight.Group
	logger *zap.Logger
}

// NewService returns a service keeping permissions for ttl. A non-positive
// ttl disables expiry.
func NewService(client Fetcher, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Service{
		client: client,
		cache:  expirable.NewLRU[int64, *forestapi.Permissions](cacheSize, nil, ttl),
		logger: logger,
	}
}

// CanExecuteChart reports whether user's rendering allows req. A denial
// based on cached permissions is checked again against fresh ones.
func (s *Service) CanExecuteChart(ctx context.Context, user *metadata.UserContext, req *engine.ChartRequest) (bool, error) {
	perms, cached, err := s.permissions(ctx, user.RenderingID, false)
	if err != nil {
		return false, err
	}
	if allowed(perms, req) {
		return true, nil
	}
	if !cached {
		return false, nil
	}

	s.logger.Debug("chart denied by cached permissions, refetching",
		zap.Int64("rendering_id", user.RenderingID), zap.String("type", req.Type))
	perms, _, err = s.permissions(ctx, user.RenderingID, true)
	if err != nil {
		return false, err
	}
	return allowed(perms, req), nil
}

// Invalidate drops the cached permissions of a rendering.
func (s *Service) Invalidate(renderingID int64) {
	s.cache.Remove(renderingID)
}

func (s *Service) permissions(ctx context.Context, renderingID int64, refresh bool) (*forestapi.Permissions, bool, error) {
	if !refresh {
		if perms, ok := s.cache.Get(renderingID); ok {
			return perms, true, nil
		}
	}

	v, err, _ := s.group.Do(strconv.FormatInt(renderingID, 10), func() (any, error) {
		perms, err := s.client.FetchPermissions(ctx, renderingID)
		if err != nil {
			return nil, err
		}
		s.cache.Add(renderingID, perms)
		return perms, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("fetch permissions of rendering %d: %w", renderingID, err)
	}
	return v.(*forestapi.Permissions), false, nil
}

func allowed(perms *forestapi.Permissions, req *engine.ChartRequest) bool {
	if perms == nil {
		return false
	}
	if req.IsLiveQuery() {
		return queryAllowed(perms.Stats["queries"], req.Query)
	}

	list, ok := statsList(req.Type)
	if !ok {
		return false
	}
	form := Form(req)
	for _, entry := range perms.Stats[list] {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if cmp.Equal(form, normalize(m)) {
			return true
		}
	}
	return false
}

func queryAllowed(queries []any, query string) bool {
	want := strings.TrimSpace(query)
	for _, q := range queries {
		if s, ok := q.(string); ok && strings.TrimSpace(s) == want {
			return true
		}
	}
	return false
}

func statsList(chartType string) (string, bool) {
	switch chartType {
	case engine.ChartValue:
		return "values", true
	case engine.ChartObjective:
		return "objectives", true
	case engine.ChartPie:
		return "pies", true
	case engine.ChartLine:
		return "lines", true
	case engine.ChartLeaderboard:
		return "leaderboards", true
	}
	return "", false
}

// Form returns the permission entry matching req, normalized.
func Form(req *engine.ChartRequest) map[string]any {
	form := map[string]any{
		"type":               req.Type,
		"sourceCollectionId": req.Collection,
		"aggregator":         req.Aggregate,
		"aggregateFieldName": req.AggregateField,
	}
	switch req.Type {
	case engine.ChartValue, engine.ChartObjective:
		form["filter"] = req.FilterString()
	case engine.ChartPie:
		form["groupByFieldName"] = req.GroupByField
		form["filter"] = req.FilterString()
	case engine.ChartLine:
		form["groupByFieldName"] = req.GroupByDateField
		form["timeRange"] = req.TimeRange
		form["filter"] = req.FilterString()
	case engine.ChartLeaderboard:
		form["labelFieldName"] = req.LabelField
		form["relationshipFieldName"] = req.RelationshipField
		form["limit"] = req.Limit.String()
	}
	return normalize(form)
}

// normalize drops empty values, decodes the filter and turns numbers and
// numeric strings into float64.
func normalize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "filter" {
			if f := normalizeFilter(v); f != nil {
				out[k] = f
			}
			continue
		}
		if v = normalizeScalar(v); v != nil {
			out[k] = v
		}
	}
	return out
}

func normalizeScalar(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
		return x
	case json.Number:
		return normalizeScalar(x.String())
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	}
	return v
}

// normalizeFilter accepts the filter as an encoded string or as an object.
func normalizeFilter(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(x), &decoded); err != nil {
			return x
		}
		return decoded
	}
	return v
}
