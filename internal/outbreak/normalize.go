package outbreak

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultLayouts are tried in order when no layouts are configured.
// Zone-less layouts are read as UTC.
var DefaultLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
}

var (
	ErrEmptyDate  = errors.New("empty date")
	ErrEmptyGroup = errors.New("empty group")
	ErrBadDate    = errors.New("date matches no configured layout")
)

// Columns names the source fields the Normalizer reads.
// Species, Latitude and Longitude are optional and may be left empty.
type Columns struct {
	Date      string
	Group     string
	Species   string
	Latitude  string
	Longitude string
}

// DefaultColumns matches the EFSA/EMPRES-i style export used by the study.
var DefaultColumns = Columns{
	Date:      "observation date",
	Group:     "Country",
	Species:   "Species",
	Latitude:  "Latitude",
	Longitude: "Longitude",
}

// Normalizer converts raw rows into canonical events.
type Normalizer struct {
	Columns Columns
	// Date layouts tried in order; DefaultLayouts when empty
	Layouts []string
}

// NormalizeResult holds the surviving events and one ParseError per dropped row.
type NormalizeResult struct {
	Events  []Event
	Skipped []*ParseError
}

// NewNormalizer returns a Normalizer for the given columns and layouts.
func NewNormalizer(cols Columns, layouts []string) *Normalizer {
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	return &Normalizer{Columns: cols, Layouts: layouts}
}

// Normalize parses every row. Rows with an unparseable date or an empty group
// are dropped and reported in Skipped; they never abort the call.
// Event order follows row order but callers must not rely on it.
func (n *Normalizer) Normalize(rows []RawRow) NormalizeResult {
	res := NormalizeResult{Events: make([]Event, 0, len(rows))}
	for _, row := range rows {
		ev, perr := n.normalizeRow(row)
		if perr != nil {
			res.Skipped = append(res.Skipped, perr)
			continue
		}
		res.Events = append(res.Events, ev)
	}
	return res
}

func (n *Normalizer) normalizeRow(row RawRow) (Event, *ParseError) {
	rawDate := row.Get(n.Columns.Date)
	if rawDate == "" {
		return Event{}, &ParseError{Line: row.Line, Field: n.Columns.Date, Err: ErrEmptyDate}
	}
	ts, err := n.ParseTime(rawDate)
	if err != nil {
		return Event{}, &ParseError{Line: row.Line, Field: n.Columns.Date, Value: rawDate, Err: err}
	}

	group := row.Get(n.Columns.Group)
	if group == "" {
		return Event{}, &ParseError{Line: row.Line, Field: n.Columns.Group, Err: ErrEmptyGroup}
	}

	ev := Event{
		Timestamp: ts,
		Group:     group,
		Country:   group,
	}
	if n.Columns.Species != "" {
		ev.Species = row.Get(n.Columns.Species)
	}
	if n.Columns.Latitude != "" && n.Columns.Longitude != "" {
		ev.Location = parseLocation(row.Get(n.Columns.Latitude), row.Get(n.Columns.Longitude))
	}
	return ev, nil
}

// ParseTime tries each layout in order. Values without a zone are taken as
// UTC; values with an offset are converted to UTC.
func (n *Normalizer) ParseTime(value string) (time.Time, error) {
	layouts := n.Layouts
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w (tried %d layouts)", ErrBadDate, len(layouts))
}

// parseLocation returns nil unless both coordinates parse and are in range.
func parseLocation(lat, lng string) *LatLng {
	if lat == "" || lng == "" {
		return nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil || la < -90 || la > 90 {
		return nil
	}
	lo, err := strconv.ParseFloat(lng, 64)
	if err != nil || lo < -180 || lo > 180 {
		return nil
	}
	return &LatLng{Lat: la, Lng: lo}
}
