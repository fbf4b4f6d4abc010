// Package series builds gap-free monthly outbreak count series and aligns
// them onto a common month axis.
package series

import (
	"fmt"
	"time"
)

// Month is a calendar month counted from January of year 0.
// Consecutive months are consecutive integers, so ordering and
// successor/predecessor are plain integer arithmetic.
type Month int

// NewMonth returns the Month for a year and calendar month.
func NewMonth(year int, m time.Month) Month {
	return Month(year*12 + int(m) - 1)
}

// MonthOf returns the UTC calendar month containing t.
func MonthOf(t time.Time) Month {
	u := t.UTC()
	return NewMonth(u.Year(), u.Month())
}

// ParseMonth parses "2006-01".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, fmt.Errorf("parse month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

func (m Month) Year() int { return int(m) / 12 }

func (m Month) Calendar() time.Month { return time.Month(int(m)%12 + 1) }

func (m Month) Next() Month { return m + 1 }

func (m Month) Prev() Month { return m - 1 }

// Start is the first instant of the month in UTC.
func (m Month) Start() time.Time {
	return time.Date(m.Year(), m.Calendar(), 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month (exclusive bound).
func (m Month) End() time.Time { return m.Next().Start() }

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year(), int(m.Calendar()))
}

// MarshalText encodes the month as "2006-01".
func (m Month) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Month) UnmarshalText(b []byte) error {
	v, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
