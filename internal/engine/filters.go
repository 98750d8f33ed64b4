package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm-forestadmin/internal/metadata"
)

// filterNode is either a condition {field, operator, value} or a group
// {aggregator, conditions}.
type filterNode struct {
	Aggregator string        `json:"aggregator"`
	Conditions []*filterNode `json:"conditions"`
	Field      string        `json:"field"`
	Operator   string        `json:"operator"`
	Value      any           `json:"value"`
}

func parseFilters(raw string) (*filterNode, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var node filterNode
	if err := dec.Decode(&node); err != nil {
		return nil, ForestError("Invalid filters: %s", err.Error())
	}
	return &node, nil
}

func (n *filterNode) isGroup() bool {
	return n.Aggregator != ""
}

// periodConditions returns the conditions using a period date operator.
func (n *filterNode) periodConditions() []*filterNode {
	if n == nil {
		return nil
	}
	if !n.isGroup() {
		if isPeriodOperator(n.Operator) {
			return []*filterNode{n}
		}
		return nil
	}
	var found []*filterNode
	for _, c := range n.Conditions {
		found = append(found, c.periodConditions()...)
	}
	return found
}

// filterScope turns a filter tree into a WHERE clause of one query.
type filterScope struct {
	repo *ChartRepository
	q    *selectQuery
	now  time.Time
	// shifted is moved one period back, for previous-period values.
	shifted *filterNode
}

func (r *ChartRepository) applyFilters(q *selectQuery, node *filterNode, now time.Time, shifted *filterNode) error {
	if node == nil {
		return nil
	}
	s := &filterScope{repo: r, q: q, now: now, shifted: shifted}
	clause, err := s.clause(node)
	if err != nil {
		return err
	}
	q.addWhere(clause)
	return nil
}

func (s *filterScope) clause(n *filterNode) (string, error) {
	if !n.isGroup() {
		return s.condition(n)
	}

	var sep string
	switch strings.ToLower(n.Aggregator) {
	case "and":
		sep = " AND "
	case "or":
		sep = " OR "
	default:
		return "", ForestError("Unsupported aggregator %s", n.Aggregator)
	}

	parts := make([]string, 0, len(n.Conditions))
	for _, c := range n.Conditions {
		part, err := s.clause(c)
		if err != nil {
			return "", err
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

// resolve qualifies a filter field, joining the related table under the
// relation name for "relation:field".
func (s *filterScope) resolve(name string) (string, string, error) {
	r := s.repo
	relation, field, ok := strings.Cut(name, ":")
	if !ok {
		column, err := r.HandleField(r.collection, name)
		if err != nil {
			return "", "", err
		}
		return column, r.fieldType(r.collection, name), nil
	}

	table, keys, column, err := r.FetchFieldsOnRelation(relation, field)
	if err != nil {
		return "", "", err
	}
	s.q.join("LEFT", table, relation, keys[0], keys[1])
	target := r.registry.GetCollection(r.collection.GetRelation(relation).Target)
	return column, r.fieldType(target, field), nil
}

func (s *filterScope) condition(n *filterNode) (string, error) {
	column, typ, err := s.resolve(n.Field)
	if err != nil {
		return "", err
	}
	dialect := s.q.dialect
	pb := s.q.pb

	if isPeriodOperator(n.Operator) {
		days := 0
		if strings.HasPrefix(n.Operator, "previous_x_days") {
			if days, err = intValue(n.Value); err != nil || days <= 0 {
				return "", ForestError("Invalid value for %s: %v", n.Operator, n.Value)
			}
		}
		p, _ := periodFor(n.Operator, days, s.now)
		if n == s.shifted {
			p = p.previous()
		}
		upper := "<"
		if p.toDate {
			upper = "<="
		}
		return fmt.Sprintf("(%s >= %s AND %s %s %s)",
			column, pb.Add(s.timeParam(p.from, typ)), column, upper, pb.Add(s.timeParam(p.to, typ))), nil
	}

	switch n.Operator {
	case "equal", "not_equal":
		if n.Value == nil {
			if n.Operator == "equal" {
				return column + " IS NULL", nil
			}
			return column + " IS NOT NULL", nil
		}
		v, err := s.value(typ, n.Value)
		if err != nil {
			return "", err
		}
		op := "="
		if n.Operator == "not_equal" {
			op = "<>"
		}
		return fmt.Sprintf("%s %s %s", column, op, pb.Add(v)), nil

	case "greater_than", "less_than":
		v, err := s.value(typ, n.Value)
		if err != nil {
			return "", err
		}
		op := ">"
		if n.Operator == "less_than" {
			op = "<"
		}
		return fmt.Sprintf("%s %s %s", column, op, pb.Add(v)), nil

	case "contains", "not_contains":
		return dialect.LikeExpr(column, pb, "%"+stringValue(n.Value)+"%", n.Operator == "not_contains"), nil
	case "starts_with":
		return dialect.LikeExpr(column, pb, stringValue(n.Value)+"%", false), nil
	case "ends_with":
		return dialect.LikeExpr(column, pb, "%"+stringValue(n.Value), false), nil

	case "present":
		if typ == metadata.TypeString {
			return fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", column, column), nil
		}
		return column + " IS NOT NULL", nil
	case "blank":
		if typ == metadata.TypeString {
			return fmt.Sprintf("(%s IS NULL OR %s = '')", column, column), nil
		}
		return column + " IS NULL", nil

	case "in", "not_in":
		values, err := s.list(typ, n.Value)
		if err != nil {
			return "", err
		}
		if n.Operator == "in" {
			return dialect.InExpr(column, pb, values), nil
		}
		return dialect.NotInExpr(column, pb, values), nil

	case "past":
		return fmt.Sprintf("%s < %s", column, pb.Add(s.timeParam(s.now, typ))), nil
	case "future":
		return fmt.Sprintf("%s > %s", column, pb.Add(s.timeParam(s.now, typ))), nil

	case "before", "after":
		t, ok := parseTime(n.Value, s.now.Location())
		if !ok {
			return "", ForestError("Invalid date %v for the field %s", n.Value, n.Field)
		}
		op := "<"
		if n.Operator == "after" {
			op = ">"
		}
		return fmt.Sprintf("%s %s %s", column, op, pb.Add(s.timeParam(t, typ))), nil

	case "before_x_hours_ago", "after_x_hours_ago":
		hours, err := intValue(n.Value)
		if err != nil {
			return "", ForestError("Invalid value for %s: %v", n.Operator, n.Value)
		}
		t := s.now.Add(-time.Duration(hours) * time.Hour)
		op := "<"
		if n.Operator == "after_x_hours_ago" {
			op = ">"
		}
		return fmt.Sprintf("%s %s %s", column, op, pb.Add(s.timeParam(t, typ))), nil
	}

	return "", ForestError("Unsupported operator %s", n.Operator)
}

// timeParam encodes t for a column of the given type. Dateonly columns
// compare against the calendar date in the request timezone.
func (s *filterScope) timeParam(t time.Time, typ string) any {
	if typ == metadata.TypeDateonly {
		return t.In(s.now.Location()).Format("2006-01-02")
	}
	return s.q.dialect.TimeParam(t)
}

// value coerces a filter value to the column type.
func (s *filterScope) value(typ string, v any) (any, error) {
	switch typ {
	case metadata.TypeNumber:
		switch n := v.(type) {
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
			return n.Float64()
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i, nil
			}
			f, err := strconv.ParseFloat(n, 64)
			if err != nil {
				return nil, ForestError("Invalid number %q", n)
			}
			return f, nil
		}
		return v, nil

	case metadata.TypeBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, ForestError("Invalid boolean %q", b)
			}
			return parsed, nil
		case json.Number:
			return b.String() != "0", nil
		}
		return v, nil

	case metadata.TypeDate, metadata.TypeDateonly:
		t, ok := parseTime(v, s.now.Location())
		if !ok {
			return nil, ForestError("Invalid date %v", v)
		}
		return s.timeParam(t, typ), nil
	}
	return stringValue(v), nil
}

func (s *filterScope) list(typ string, v any) ([]any, error) {
	var raw []any
	switch l := v.(type) {
	case []any:
		raw = l
	case string:
		for _, part := range strings.Split(l, ",") {
			raw = append(raw, strings.TrimSpace(part))
		}
	default:
		raw = []any{v}
	}
	values := make([]any, len(raw))
	for i, item := range raw {
		coerced, err := s.value(typ, item)
		if err != nil {
			return nil, err
		}
		values[i] = coerced
	}
	return values, nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func intValue(v any) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	case float64:
		return int(n), nil
	case int:
		return n, nil
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}
