package engine

import (
	"strings"
	"time"
)

// Date operators selecting a period relative to now. A Value chart with
// exactly one of them also reports the matching previous period.
var periodOperators = map[string]bool{
	"today":                    true,
	"yesterday":                true,
	"previous_x_days":          true,
	"previous_x_days_to_date":  true,
	"previous_week":            true,
	"previous_week_to_date":    true,
	"previous_month":           true,
	"previous_month_to_date":   true,
	"previous_quarter":         true,
	"previous_quarter_to_date": true,
	"previous_year":            true,
	"previous_year_to_date":    true,
}

func isPeriodOperator(op string) bool {
	return periodOperators[op]
}

type periodUnit int

const (
	periodDays periodUnit = iota
	periodMonths
	periodYears
)

// period is [from, to), or [from, to] when toDate is set (to is then now).
type period struct {
	from   time.Time
	to     time.Time
	toDate bool
	unit   periodUnit
	step   int
}

// shift moves t one step back. Month and year steps keep the day of month
// when it exists and clamp to the last day otherwise (Mar 31 -> Feb 29).
func (p period) shift(t time.Time) time.Time {
	switch p.unit {
	case periodMonths:
		return addMonthsClamped(t, -p.step)
	case periodYears:
		return addMonthsClamped(t, -12*p.step)
	default:
		return t.AddDate(0, 0, -p.step)
	}
}

// previous returns the period one step earlier: the same calendar span, or
// for a to-date period the same elapsed part of the previous one.
func (p period) previous() period {
	prev := p
	prev.from = p.shift(p.from)
	prev.to = p.shift(p.to)
	return prev
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	first = first.AddDate(0, months, 0)
	day := min(t.Day(), daysIn(first.Year(), first.Month()))
	return first.AddDate(0, 0, day-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// periodFor computes the period of op at now. n is the x of the
// previous_x_days operators.
func periodFor(op string, n int, now time.Time) (period, bool) {
	sod := startOfDay(now)
	switch op {
	case "today":
		return period{from: sod, to: sod.AddDate(0, 0, 1), unit: periodDays, step: 1}, true
	case "yesterday":
		return period{from: sod.AddDate(0, 0, -1), to: sod, unit: periodDays, step: 1}, true
	case "previous_x_days":
		return period{from: sod.AddDate(0, 0, -n), to: sod, unit: periodDays, step: n}, true
	case "previous_x_days_to_date":
		return period{from: sod.AddDate(0, 0, -(n - 1)), to: now, toDate: true, unit: periodDays, step: n}, true
	case "previous_week":
		sow := startOfWeek(now)
		return period{from: sow.AddDate(0, 0, -7), to: sow, unit: periodDays, step: 7}, true
	case "previous_week_to_date":
		return period{from: startOfWeek(now), to: now, toDate: true, unit: periodDays, step: 7}, true
	case "previous_month":
		som := startOfMonth(now)
		return period{from: som.AddDate(0, -1, 0), to: som, unit: periodMonths, step: 1}, true
	case "previous_month_to_date":
		return period{from: startOfMonth(now), to: now, toDate: true, unit: periodMonths, step: 1}, true
	case "previous_quarter":
		soq := startOfQuarter(now)
		return period{from: soq.AddDate(0, -3, 0), to: soq, unit: periodMonths, step: 3}, true
	case "previous_quarter_to_date":
		return period{from: startOfQuarter(now), to: now, toDate: true, unit: periodMonths, step: 3}, true
	case "previous_year":
		soy := startOfYear(now)
		return period{from: soy.AddDate(-1, 0, 0), to: soy, unit: periodYears, step: 1}, true
	case "previous_year_to_date":
		return period{from: startOfYear(now), to: now, toDate: true, unit: periodYears, step: 1}, true
	}
	return period{}, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfQuarter(t time.Time) time.Time {
	m := ((int(t.Month())-1)/3)*3 + 1
	return time.Date(t.Year(), time.Month(m), 1, 0, 0, 0, 0, t.Location())
}

func startOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime reads the date formats the frontend and the drivers produce.
// Values without an offset are read in loc.
func parseTime(v any, loc *time.Location) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.ParseInLocation(layout, s, loc); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, BadRequestError("Invalid timezone: " + name)
	}
	return loc, nil
}
