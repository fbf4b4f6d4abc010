// Package epoch labels months of an aligned series relative to an
// intervention window.
package epoch

import (
	"errors"
	"fmt"
	"time"

	"HPAI_Vaccination_ITS_Project/internal/series"
)

// Epoch is a month's position relative to the intervention window.
type Epoch int

const (
	Pre Epoch = iota
	During
	Post
)

// All lists the epochs in chronological order.
var All = []Epoch{Pre, During, Post}

func (e Epoch) String() string {
	switch e {
	case Pre:
		return "PRE"
	case During:
		return "DURING"
	case Post:
		return "POST"
	default:
		return fmt.Sprintf("Epoch(%d)", int(e))
	}
}

// MarshalText encodes the epoch by name.
func (e Epoch) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// Parse returns the epoch named s.
func Parse(s string) (Epoch, error) {
	for _, e := range All {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown epoch %q", s)
}

var (
	// ErrInvalidWindow is structural and aborts the whole run.
	ErrInvalidWindow = errors.New("invalid intervention window")
	// ErrNoIntervention means the aligned range has no PRE baseline or no intervention months.
	ErrNoIntervention = errors.New("intervention boundary outside aligned range")
)

// Window is the half-open intervention interval [Start, End) in UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow converts both bounds to UTC and validates them.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start.UTC(), End: end.UTC()}
	return w, w.Validate()
}

// Validate rejects zero bounds and End <= Start.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidWindow)
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: end %s is not after start %s",
			ErrInvalidWindow, w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Classify labels a month by its start instant. A month straddling the
// window start is never split.
func (w Window) Classify(m series.Month) Epoch {
	start := m.Start()
	switch {
	case start.Before(w.Start):
		return Pre
	case start.Before(w.End):
		return During
	default:
		return Post
	}
}

// Partition labels every month of the aligned pair.
func Partition(pair series.AlignedSeriesPair, w Window) ([]Epoch, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return Label(pair.Months(), w), nil
}

// Label classifies each month in order.
func Label(months []series.Month, w Window) []Epoch {
	labels := make([]Epoch, len(months))
	for i, m := range months {
		labels[i] = w.Classify(m)
	}
	return labels
}

// InterventionIndex returns the first non-PRE position, the boundary used by
// the segmented regression. It requires at least one PRE month before it.
func InterventionIndex(labels []Epoch) (int, error) {
	for i, e := range labels {
		if e == Pre {
			continue
		}
		if i == 0 {
			return 0, fmt.Errorf("%w: first aligned month is already %s", ErrNoIntervention, e)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: all %d months are %s", ErrNoIntervention, len(labels), Pre)
}

// Mask returns the indices labelled e.
func Mask(labels []Epoch, e Epoch) []int {
	var idx []int
	for i, l := range labels {
		if l == e {
			idx = append(idx, i)
		}
	}
	return idx
}

// Counts returns how many months fall in each epoch.
func Counts(labels []Epoch) map[Epoch]int {
	out := map[Epoch]int{Pre: 0, During: 0, Post: 0}
	for _, l := range labels {
		out[l]++
	}
	return out
}
