package store

import (
	"fmt"
	"strings"
	"time"
)

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }
func (d *SQLiteDialect) NeedsBoolFix() bool { return true }

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &sqliteParamBuilder{}
}

func (d *SQLiteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *SQLiteDialect) InExpr(field string, pb ParamBuilder, values []any) string {
	if len(values) == 0 {
		return "1=0" // always false
	}
	phs := make([]string, len(values))
	for i, v := range values {
		phs[i] = pb.Add(v)
	}
	return fmt.Sprintf("%s IN (%s)", field, strings.Join(phs, ", "))
}

func (d *SQLiteDialect) NotInExpr(field string, pb ParamBuilder, values []any) string {
	if len(values) == 0 {
		return "1=1" // always true
	}
	phs := make([]string, len(values))
	for i, v := range values {
		phs[i] = pb.Add(v)
	}
	return fmt.Sprintf("%s NOT IN (%s)", field, strings.Join(phs, ", "))
}

// LikeExpr relies on SQLite's LIKE being case-insensitive for ASCII.
func (d *SQLiteDialect) LikeExpr(field string, pb ParamBuilder, pattern string, negate bool) string {
	op := "LIKE"
	if negate {
		op = "NOT LIKE"
	}
	return fmt.Sprintf("%s %s %s", field, op, pb.Add(pattern))
}

// DateTrunc shifts the stored UTC text by the current offset of loc;
// SQLite knows no time zones besides the process one.
func (d *SQLiteDialect) DateTrunc(unit, column string, loc *time.Location) string {
	if loc != nil {
		if _, offset := time.Now().In(loc).Zone(); offset != 0 {
			column = fmt.Sprintf("datetime(%s, '%+d seconds')", column, offset)
		}
	}
	switch unit {
	case UnitWeek:
		// next Sunday (or today), minus six days: the Monday of the week
		return fmt.Sprintf("date(%s, 'weekday 0', '-6 days')", column)
	case UnitMonth:
		return fmt.Sprintf("strftime('%%Y-%%m-01', %s)", column)
	case UnitYear:
		return fmt.Sprintf("strftime('%%Y-01-01', %s)", column)
	default:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
	}
}

// TimeParam matches the text layout dates are stored with.
func (d *SQLiteDialect) TimeParam(t time.Time) any {
	return t.UTC().Format("2006-01-02 15:04:05")
}

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if strings.Contains(errStr, "attempt to write a readonly database") {
		return fmt.Errorf("%w: live queries are read-only: %w", ErrInvalidQuery, err)
	}
	if strings.Contains(errStr, "syntax error") || strings.Contains(errStr, "no such column") ||
		strings.Contains(errStr, "no such table") {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return err
}
