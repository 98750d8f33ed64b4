package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm-forestadmin/internal/metadata"
	"gorm-forestadmin/internal/schema"
	"gorm-forestadmin/internal/store"
)

// GroupByField is a resolved group-by. Relation, RelationTable and Keys
// are set when the field lives on a related collection ("category:label");
// the related table is then joined under the relation name.
type GroupByField struct {
	Relation      string
	RelationTable string
	Keys          []string
	Field         string
	ResponseField string
}

// ChartRepository computes charts on one collection.
type ChartRepository struct {
	store      *store.Store
	registry   *metadata.Registry
	schema     *schema.Introspection
	collection *metadata.Collection
	now        func() time.Time
}

func NewChartRepository(s *store.Store, reg *metadata.Registry, sch *schema.Introspection, coll *metadata.Collection) *ChartRepository {
	return &ChartRepository{
		store:      s,
		registry:   reg,
		schema:     sch,
		collection: coll,
		now:        time.Now,
	}
}

// Database returns the schema part of the table name ("prefix" for
// "prefix.books"), empty when the table is unqualified.
func (r *ChartRepository) Database() string {
	if i := strings.LastIndex(r.collection.Table, "."); i >= 0 {
		return r.collection.Table[:i]
	}
	return ""
}

func (r *ChartRepository) Table() string {
	return r.collection.Table
}

// HandleField qualifies a column of coll.
func (r *ChartRepository) HandleField(coll *metadata.Collection, name string) (string, error) {
	if !coll.HasField(name) {
		return "", ForestError("The field %s doesn't exist in the table %s", name, coll.Table)
	}
	return coll.QualifiedColumn(name), nil
}

func (r *ChartRepository) HandleGroupByField(name string) (*GroupByField, error) {
	if relation, field, ok := strings.Cut(name, ":"); ok {
		table, keys, column, err := r.FetchFieldsOnRelation(relation, field)
		if err != nil {
			return nil, err
		}
		return &GroupByField{Relation: relation, RelationTable: table, Keys: keys, Field: column, ResponseField: field}, nil
	}

	column, err := r.HandleField(r.collection, name)
	if err != nil {
		return nil, err
	}
	return &GroupByField{Field: column, ResponseField: name}, nil
}

// FetchFieldsOnRelation resolves field on a to-one relation. It returns the
// related table, the join keys and the column, the related side being
// qualified by the relation name.
func (r *ChartRepository) FetchFieldsOnRelation(relation, field string) (string, []string, string, error) {
	rel := r.collection.GetRelation(relation)
	if rel == nil {
		return "", nil, "", ForestError("Unknown relation %s", relation)
	}
	target := r.registry.GetCollection(rel.Target)
	if target == nil {
		return "", nil, "", ForestError("Unknown relation %s", relation)
	}

	var keys []string
	switch rel.Kind {
	case metadata.BelongsTo:
		keys = []string{r.collection.QualifiedColumn(rel.ForeignKey), r.relationColumn(relation, rel.OwnerKey)}
	case metadata.HasOne:
		keys = []string{r.relationColumn(relation, rel.ForeignKey), r.collection.QualifiedColumn(rel.OwnerKey)}
	default:
		return "", nil, "", ForestError("Unsupported relation to this chart")
	}

	if !target.HasField(field) {
		return "", nil, "", ForestError("The field %s doesn't exist in the table %s", field, target.Table)
	}
	return target.Table, keys, r.relationColumn(relation, field), nil
}

// relationColumn qualifies a column of a related table joined as relation.
func (r *ChartRepository) relationColumn(relation, column string) string {
	return r.store.Dialect.QuoteIdent(relation) + "." + column
}

// fieldType returns the Forest type of a column of coll, preferring the
// published schema over the introspected model.
func (r *ChartRepository) fieldType(coll *metadata.Collection, name string) string {
	if r.schema != nil {
		if t := r.schema.TypeByField(coll.Name, name); t != "" {
			return t
		}
	}
	if f := coll.GetField(name); f != nil {
		return f.Type
	}
	return ""
}

// Get computes the chart described by req.
func (r *ChartRepository) Get(ctx context.Context, req *ChartRequest) (any, error) {
	switch req.Type {
	case ChartValue:
		return r.Value(ctx, req)
	case ChartObjective:
		return r.Objective(ctx, req)
	case ChartPie:
		return r.Pie(ctx, req)
	case ChartLine:
		return r.Line(ctx, req)
	case ChartLeaderboard:
		return r.Leaderboard(ctx, req)
	default:
		return nil, ForestError("The chart's type is not recognized.")
	}
}

func (r *ChartRepository) query(ctx context.Context, q *selectQuery) ([]map[string]any, error) {
	built := q.build()
	rows, err := store.QueryRows(ctx, r.store.DB, built.SQL, built.Params...)
	if err != nil {
		return nil, fmt.Errorf("chart on %s: %w", r.collection.Name, store.MapError(r.store.Dialect, err))
	}
	return rows, nil
}

// queryRow runs a single-row query; a query without rows yields nil.
func (r *ChartRepository) queryRow(ctx context.Context, q *selectQuery) (map[string]any, error) {
	built := q.build()
	row, err := store.QueryRow(ctx, r.store.DB, built.SQL, built.Params...)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chart on %s: %w", r.collection.Name, store.MapError(r.store.Dialect, err))
	}
	return row, nil
}

// aggregate builds the aggregate expression of req on the collection.
func (r *ChartRepository) aggregate(req *ChartRequest) (string, error) {
	column := ""
	if req.AggregateField != "" {
		c, err := r.HandleField(r.collection, req.AggregateField)
		if err != nil {
			return "", err
		}
		column = c
	}
	return aggregateExpr(req.AggregateName(), column)
}

// relationAggregate builds the aggregate expression of req over a related
// collection joined as relation.
func (r *ChartRepository) relationAggregate(req *ChartRequest, relation string, target *metadata.Collection) (string, error) {
	column := ""
	if req.AggregateField != "" {
		if !target.HasField(req.AggregateField) {
			return "", ForestError("The field %s doesn't exist in the table %s", req.AggregateField, target.Table)
		}
		column = r.relationColumn(relation, req.AggregateField)
	}
	return aggregateExpr(req.AggregateName(), column)
}
