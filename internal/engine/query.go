package engine

import (
	"fmt"
	"strings"

	"gorm-forestadmin/internal/store"
)

// QueryResult is a built statement and its positional parameters.
type QueryResult struct {
	SQL    string
	Params []any
}

// selectQuery assembles one aggregate SELECT. Relations are joined under
// their own name, once, so a relation used by both a filter and a group-by
// shares the join and two relations to the same table do not.
type selectQuery struct {
	dialect store.Dialect
	pb      store.ParamBuilder

	from    string
	selects []string
	joins   []string
	joined  map[string]bool
	where   []string
	groupBy []string
	orderBy []string
	limit   int
}

func newSelectQuery(dialect store.Dialect, from string) *selectQuery {
	return &selectQuery{
		dialect: dialect,
		pb:      dialect.NewParamBuilder(),
		from:    from,
		joined:  map[string]bool{},
	}
}

func (q *selectQuery) selectAs(expr, alias string) {
	q.selects = append(q.selects, fmt.Sprintf("%s AS %s", expr, q.dialect.QuoteIdent(alias)))
}

// join adds "kind JOIN table AS alias ON left = right" unless alias is
// already joined. An empty alias joins table under its own name.
func (q *selectQuery) join(kind, table, alias, left, right string) {
	key, target := "table:"+table, table
	if alias != "" {
		key, target = "alias:"+alias, table+" AS "+q.dialect.QuoteIdent(alias)
	}
	if q.joined[key] {
		return
	}
	q.joined[key] = true
	q.joins = append(q.joins, fmt.Sprintf("%s JOIN %s ON %s = %s", kind, target, left, right))
}

func (q *selectQuery) addWhere(clause string) {
	if clause != "" {
		q.where = append(q.where, clause)
	}
}

func (q *selectQuery) addOrder(expr, direction string) {
	q.orderBy = append(q.orderBy, expr+" "+direction)
}

func (q *selectQuery) build() QueryResult {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.selects, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.from)
	for _, j := range q.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
	if len(q.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}
	if len(q.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(q.groupBy, ", "))
	}
	if len(q.orderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.orderBy, ", "))
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(q.pb.Add(q.limit))
	}
	return QueryResult{SQL: b.String(), Params: q.pb.Params()}
}

// aggregateExpr returns the SQL aggregate for a chart. column is the
// qualified aggregate column, empty when the request names none.
func aggregateExpr(aggregate, column string) (string, error) {
	switch aggregate {
	case AggregateCount, "":
		if column == "" {
			return "COUNT(*)", nil
		}
		return fmt.Sprintf("COUNT(%s)", column), nil
	case AggregateSum:
		if column == "" {
			return "", ForestError("The aggregate %s requires an aggregate field", aggregate)
		}
		return fmt.Sprintf("COALESCE(SUM(%s), 0)", column), nil
	case AggregateAvg:
		if column == "" {
			return "", ForestError("The aggregate %s requires an aggregate field", aggregate)
		}
		return fmt.Sprintf("COALESCE(AVG(%s), 0)", column), nil
	default:
		return "", ForestError("Unsupported aggregate %s", aggregate)
	}
}
