package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm-forestadmin/internal/metadata"
	"gorm-forestadmin/internal/store"
)

// scope parses the request filters and returns now in the request timezone.
func (r *ChartRepository) scope(req *ChartRequest) (*filterNode, time.Time, error) {
	loc, err := loadLocation(req.Timezone)
	if err != nil {
		return nil, time.Time{}, err
	}
	filters, err := parseFilters(req.FilterString())
	if err != nil {
		return nil, time.Time{}, err
	}
	return filters, r.now().In(loc), nil
}

// aggregateValue runs a single-row aggregate with the request filters.
func (r *ChartRepository) aggregateValue(ctx context.Context, req *ChartRequest, filters *filterNode, now time.Time, shifted *filterNode) (any, error) {
	expr, err := r.aggregate(req)
	if err != nil {
		return nil, err
	}
	q := newSelectQuery(r.store.Dialect, r.Table())
	q.selectAs(expr, "value")
	if err := r.applyFilters(q, filters, now, shifted); err != nil {
		return nil, err
	}
	row, err := r.queryRow(ctx, q)
	if err != nil {
		return nil, err
	}
	return numberOrZero(row["value"]), nil
}

// Value returns {countCurrent, countPrevious}. countPrevious is only
// computed when the filters hold exactly one period condition.
func (r *ChartRepository) Value(ctx context.Context, req *ChartRequest) (map[string]any, error) {
	filters, now, err := r.scope(req)
	if err != nil {
		return nil, err
	}
	current, err := r.aggregateValue(ctx, req, filters, now, nil)
	if err != nil {
		return nil, err
	}

	var previous any
	if periods := filters.periodConditions(); len(periods) == 1 {
		previous, err = r.aggregateValue(ctx, req, filters, now, periods[0])
		if err != nil {
			return nil, err
		}
	}
	return map[string]any{"countCurrent": current, "countPrevious": previous}, nil
}

func (r *ChartRepository) Objective(ctx context.Context, req *ChartRequest) (map[string]any, error) {
	filters, now, err := r.scope(req)
	if err != nil {
		return nil, err
	}
	value, err := r.aggregateValue(ctx, req, filters, now, nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{"value": value}, nil
}

// Pie groups by a field of the collection or of a to-one relation.
func (r *ChartRepository) Pie(ctx context.Context, req *ChartRequest) ([]map[string]any, error) {
	filters, now, err := r.scope(req)
	if err != nil {
		return nil, err
	}
	groupBy, err := r.HandleGroupByField(req.GroupByField)
	if err != nil {
		return nil, err
	}
	expr, err := r.aggregate(req)
	if err != nil {
		return nil, err
	}

	q := newSelectQuery(r.store.Dialect, r.Table())
	if groupBy.Relation != "" {
		q.join("LEFT", groupBy.RelationTable, groupBy.Relation, groupBy.Keys[0], groupBy.Keys[1])
	}
	q.selectAs(groupBy.Field, "key")
	q.selectAs(expr, "value")
	if err := r.applyFilters(q, filters, now, nil); err != nil {
		return nil, err
	}
	q.groupBy = append(q.groupBy, groupBy.Field)
	by, dir := SortByAndDirection("-value")
	q.addOrder(q.dialect.QuoteIdent(by), dir)

	rows, err := r.query(ctx, q)
	if err != nil {
		return nil, err
	}
	if r.store.Dialect.NeedsBoolFix() && r.groupByType(req.GroupByField) == metadata.TypeBoolean {
		store.NormalizeBooleans(rows, []string{"key"})
	}
	return keyValues(rows), nil
}

func (r *ChartRepository) groupByType(name string) string {
	if relation, field, ok := strings.Cut(name, ":"); ok {
		rel := r.collection.GetRelation(relation)
		if rel == nil {
			return ""
		}
		if target := r.registry.GetCollection(rel.Target); target != nil {
			return r.fieldType(target, field)
		}
		return ""
	}
	return r.fieldType(r.collection, name)
}

// Line aggregates per time bucket of a date field, in chronological order,
// with empty buckets reported as 0.
func (r *ChartRepository) Line(ctx context.Context, req *ChartRequest) ([]map[string]any, error) {
	filters, now, err := r.scope(req)
	if err != nil {
		return nil, err
	}
	unit, err := timeRangeUnit(req.TimeRange)
	if err != nil {
		return nil, err
	}
	column, err := r.HandleField(r.collection, req.GroupByDateField)
	if err != nil {
		return nil, err
	}
	expr, err := r.aggregate(req)
	if err != nil {
		return nil, err
	}

	// buckets follow the request timezone; a calendar date has none
	loc := now.Location()
	if r.fieldType(r.collection, req.GroupByDateField) == metadata.TypeDateonly {
		loc = time.UTC
	}

	q := newSelectQuery(r.store.Dialect, r.Table())
	q.selectAs(r.store.Dialect.DateTrunc(unit, column, loc), "key")
	q.selectAs(expr, "value")
	q.addWhere(column + " IS NOT NULL")
	if err := r.applyFilters(q, filters, now, nil); err != nil {
		return nil, err
	}
	q.groupBy = append(q.groupBy, "1")
	q.addOrder("1", "ASC")

	rows, err := r.query(ctx, q)
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]any, len(rows))
	var first, last time.Time
	for _, row := range rows {
		t, ok := parseTime(row["key"], time.UTC)
		if !ok {
			return nil, fmt.Errorf("line chart on %s: unexpected bucket %v", r.collection.Name, row["key"])
		}
		t = truncateUnit(t, unit)
		buckets[t] = numberOrZero(row["value"])
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}

	result := []map[string]any{}
	if len(buckets) == 0 {
		return result, nil
	}
	for t := first; !t.After(last); t = nextBucket(t, unit) {
		value, ok := buckets[t]
		if !ok {
			value = 0
		}
		result = append(result, map[string]any{
			"label":  lineLabel(t, unit),
			"values": map[string]any{"value": value},
		})
	}
	return result, nil
}

// Leaderboard ranks the collection records by an aggregate over a to-many relation.
func (r *ChartRepository) Leaderboard(ctx context.Context, req *ChartRequest) ([]map[string]any, error) {
	filters, now, err := r.scope(req)
	if err != nil {
		return nil, err
	}
	limit, err := req.LimitValue()
	if err != nil {
		return nil, err
	}
	rel := r.collection.GetRelation(req.RelationshipField)
	if rel == nil {
		return nil, ForestError("Unknown relation %s", req.RelationshipField)
	}
	target := r.registry.GetCollection(rel.Target)
	if target == nil || !rel.IsToMany() {
		return nil, ForestError("Unsupported relation")
	}
	label, err := r.HandleField(r.collection, req.LabelField)
	if err != nil {
		return nil, err
	}
	expr, err := r.relationAggregate(req, rel.Name, target)
	if err != nil {
		return nil, err
	}

	q := newSelectQuery(r.store.Dialect, r.Table())
	switch rel.Kind {
	case metadata.HasMany:
		q.join("INNER", target.Table, rel.Name,
			r.relationColumn(rel.Name, rel.ForeignKey), r.collection.QualifiedColumn(rel.OwnerKey))
	case metadata.BelongsToMany:
		q.join("INNER", rel.JoinTable, "", rel.JoinTable+"."+rel.JoinForeignKey, r.collection.QualifiedColumn(rel.OwnerKey))
		q.join("INNER", target.Table, rel.Name,
			r.relationColumn(rel.Name, rel.ForeignKey), rel.JoinTable+"."+rel.JoinTargetKey)
	}
	q.selectAs(label, "key")
	q.selectAs(expr, "value")
	if err := r.applyFilters(q, filters, now, nil); err != nil {
		return nil, err
	}
	q.groupBy = append(q.groupBy, label)
	by, dir := SortByAndDirection("-value")
	q.addOrder(q.dialect.QuoteIdent(by), dir)
	q.limit = limit

	rows, err := r.query(ctx, q)
	if err != nil {
		return nil, err
	}
	return keyValues(rows), nil
}

func keyValues(rows []map[string]any) []map[string]any {
	result := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		result = append(result, map[string]any{"key": row["key"], "value": numberOrZero(row["value"])})
	}
	return result
}

func numberOrZero(v any) any {
	if v == nil {
		return 0
	}
	return v
}

func timeRangeUnit(timeRange string) (string, error) {
	switch timeRange {
	case "Day":
		return store.UnitDay, nil
	case "Week":
		return store.UnitWeek, nil
	case "Month":
		return store.UnitMonth, nil
	case "Year":
		return store.UnitYear, nil
	}
	return "", ForestError("Unsupported time range %s", timeRange)
}

func truncateUnit(t time.Time, unit string) time.Time {
	t = t.UTC()
	switch unit {
	case store.UnitWeek:
		return startOfWeek(t)
	case store.UnitMonth:
		return startOfMonth(t)
	case store.UnitYear:
		return startOfYear(t)
	default:
		return startOfDay(t)
	}
}

func nextBucket(t time.Time, unit string) time.Time {
	switch unit {
	case store.UnitWeek:
		return t.AddDate(0, 0, 7)
	case store.UnitMonth:
		return t.AddDate(0, 1, 0)
	case store.UnitYear:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func lineLabel(t time.Time, unit string) string {
	switch unit {
	case store.UnitWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("W%d-%d", week, year)
	case store.UnitMonth:
		return t.Format("Jan 2006")
	case store.UnitYear:
		return t.Format("2006")
	default:
		return t.Format("02/01/2006")
	}
}
