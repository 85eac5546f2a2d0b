// Package models provides the core data types for the indicator engine.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar day stored as an ordinal day count since 1970-01-01 UTC.
// All external date representations (ISO strings, 8-digit numeric dates) are
// converted to Date at the boundary; Date values compare with < and ==
// directly, so differently-formatted strings are never compared lexically.
type Date int

const isoDate = "2006-01-02"

// NewDate builds a Date from a calendar year/month/day.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date(t.Unix() / 86400)
}

// DateOf truncates a time.Time to its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts the two formats found in external sources: ISO
// ("2025-07-11") and 8-digit numeric ("20250711").
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty date string")
	}

	layout := isoDate
	if len(s) == 8 && !strings.Contains(s, "-") {
		layout = "20060102"
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns the midnight UTC instant of the day.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

// String renders the date in ISO format. This is the only format dates are
// written in.
func (d Date) String() string {
	return d.Time().Format(isoDate)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return d + Date(n)
}

// IsZero reports whether the date is the zero value (1970-01-01), which the
// engine treats as "unset".
func (d Date) IsZero() bool {
	return d == 0
}

// MarshalText implements encoding.TextMarshaler so Date round-trips through
// JSON metadata files in ISO form.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
