// Package outbreak turns raw outbreak-report rows into canonical UTC events.
package outbreak

import (
	"fmt"
	"time"
)

// LatLng is an optional report location. It is carried through untouched
// for consumers outside the analysis core.
type LatLng struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Event is one normalized outbreak report.
type Event struct {
	// Observation instant, always UTC and never zero
	Timestamp time.Time
	// Comparison group the event counts toward; starts out as the country
	Group string
	// Reporting country as it appeared in the source
	Country string
	// Optional pass-through fields
	Species  string
	Location *LatLng
}

// WithGroup returns a copy of e relabelled to group.
func (e Event) WithGroup(group string) Event {
	e.Group = group
	return e
}

// ParseError records a dropped row. It is never fatal to a run.
type ParseError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: field %q value %q: %v", e.Line, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
