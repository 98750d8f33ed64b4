package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }
func (d *PostgresDialect) NeedsBoolFix() bool { return false }

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *PostgresDialect) InExpr(field string, pb ParamBuilder, values []any) string {
	ph := pb.Add(values)
	return fmt.Sprintf("%s = ANY(%s)", field, ph)
}

func (d *PostgresDialect) NotInExpr(field string, pb ParamBuilder, values []any) string {
	ph := pb.Add(values)
	return fmt.Sprintf("%s != ALL(%s)", field, ph)
}

func (d *PostgresDialect) LikeExpr(field string, pb ParamBuilder, pattern string, negate bool) string {
	op := "ILIKE"
	if negate {
		op = "NOT ILIKE"
	}
	return fmt.Sprintf("%s::text %s %s", field, op, pb.Add(pattern))
}

// DateTrunc reads timestamps without a time zone in the session time zone.
func (d *PostgresDialect) DateTrunc(unit, column string, loc *time.Location) string {
	if loc != nil && loc != time.UTC {
		column = fmt.Sprintf("(%s::timestamptz AT TIME ZONE '%s')", column, strings.ReplaceAll(loc.String(), "'", "''"))
	}
	return fmt.Sprintf("date_trunc('%s', %s)", unit, column)
}

func (d *PostgresDialect) TimeParam(t time.Time) any {
	return t
}

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgerrcode.IsSyntaxErrororAccessRuleViolation(pgErr.Code):
		return fmt.Errorf("%w: %s", ErrInvalidQuery, pgErr.Message)
	case pgErr.Code == pgerrcode.ReadOnlySQLTransaction:
		return fmt.Errorf("%w: live queries are read-only: %s", ErrInvalidQuery, pgErr.Message)
	}
	return err
}
