package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gorm-forestadmin/internal/store"
)

var selectStatement = regexp.MustCompile(`(?is)^\s*(select|with)\s`)

// normalizeLiveQuery trims the query and its trailing semicolons. Only a
// single SELECT statement is accepted. Writes hidden in a WITH clause are
// refused by the read-only transaction the query runs in.
func normalizeLiveQuery(query string) (string, error) {
	q := strings.TrimRight(strings.TrimSpace(query), "; \t\r\n")
	if !selectStatement.MatchString(q) {
		return "", ForestError("Only SELECT queries are allowed.")
	}
	if strings.Contains(q, ";") {
		return "", ForestError("You cannot chain SQL queries.")
	}
	return q, nil
}

// LiveQuery runs the raw SQL of req and shapes its rows for req.Type.
func LiveQuery(ctx context.Context, s *store.Store, req *ChartRequest) (any, error) {
	switch req.Type {
	case ChartValue, ChartObjective, ChartPie, ChartLine, ChartLeaderboard:
	default:
		return nil, ForestError("The chart's type is not recognized.")
	}

	query, err := normalizeLiveQuery(req.Query)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	err = s.ReadOnly(ctx, func(q store.Querier) error {
		var err error
		rows, err = store.QueryRows(ctx, q, query)
		return err
	})
	if err != nil {
		mapped := store.MapError(s.Dialect, err)
		return nil, ForestError("The live query failed: %s", mapped.Error())
	}

	switch req.Type {
	case ChartValue:
		if len(rows) == 0 {
			return map[string]any{"countCurrent": 0, "countPrevious": nil}, nil
		}
		if err := requireColumns(rows[0], "value"); err != nil {
			return nil, err
		}
		return map[string]any{"countCurrent": rows[0]["value"], "countPrevious": rows[0]["previous"]}, nil

	case ChartObjective:
		if len(rows) == 0 {
			return map[string]any{"value": 0, "objective": nil}, nil
		}
		if err := requireColumns(rows[0], "value", "objective"); err != nil {
			return nil, err
		}
		return map[string]any{"value": rows[0]["value"], "objective": rows[0]["objective"]}, nil

	case ChartLine:
		result := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			if err := requireColumns(row, "key", "value"); err != nil {
				return nil, err
			}
			result = append(result, map[string]any{
				"label":  row["key"],
				"values": map[string]any{"value": row["value"]},
			})
		}
		return result, nil

	default:
		for _, row := range rows {
			if err := requireColumns(row, "key", "value"); err != nil {
				return nil, err
			}
		}
		return keyValues(rows), nil
	}
}

func requireColumns(row map[string]any, columns ...string) error {
	for _, c := range columns {
		if _, ok := row[c]; !ok {
			return ForestError("The result columns must be named '%s'.", strings.Join(columns, "', '"))
		}
	}
	return nil
}

// LiveQueryLabel is used in logs to identify a live query without its full text.
func LiveQueryLabel(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	if len(q) > 80 {
		return fmt.Sprintf("%s...", q[:80])
	}
	return q
}
