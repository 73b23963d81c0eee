// Package tradedate converts the date shapes seen in provider responses and
// stored files into one canonical YYYY-MM-DD form.
package tradedate

import (
	"strings"
	"time"

	"VolumeSentinel/internal/model"
)

const (
	// Layout is the canonical textual form of a bar date.
	Layout = "2006-01-02"
	// CompactLayout is the 8-digit form used in provider requests.
	CompactLayout = "20060102"
)

// Normalize converts v (string or time.Time) to the canonical layout.
func Normalize(v any) (string, error) {
	t, err := Parse(v)
	if err != nil {
		return "", err
	}
	return t.Format(Layout), nil
}

// Parse converts v to a UTC midnight time.Time.
// Accepted strings: 2024-01-05, 2024/01/05, 20240105, optionally followed by a
// time part ("2024-01-05 00:00:00" or RFC 3339).
func Parse(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return time.Time{}, &model.MalformedDateError{Value: v}
		}
		return Day(d), nil
	case *time.Time:
		if d == nil {
			return time.Time{}, &model.MalformedDateError{Value: v}
		}
		return Parse(*d)
	case string:
		return parseString(d)
	default:
		return time.Time{}, &model.MalformedDateError{Value: v}
	}
}

func parseString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "/", "-")
	layout := Layout
	if len(s) == 8 && !strings.Contains(s, "-") {
		layout = CompactLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil && layout == Layout {
		// unpadded month or day, e.g. 2024-1-5
		t, err = time.Parse("2006-1-2", s)
	}
	if err != nil {
		return time.Time{}, &model.MalformedDateError{Value: s}
	}
	return t, nil
}

// Day truncates t to midnight UTC of its calendar date in t's own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Compact formats t as YYYYMMDD.
func Compact(t time.Time) string {
	return t.Format(CompactLayout)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// AddDays shifts t by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}
