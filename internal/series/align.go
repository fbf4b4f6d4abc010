package series

import (
	"errors"
	"fmt"
)

// ErrAlignment is matched by every *AlignmentError.
var ErrAlignment = errors.New("series alignment failed")

// AlignmentError aborts one treatment/control comparison.
type AlignmentError struct {
	Treatment string
	Control   string
	Start     Month
	End       Month
	Reason    string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("align %q with %q over %s..%s: %s", e.Treatment, e.Control, e.Start, e.End, e.Reason)
}

func (e *AlignmentError) Is(target error) bool { return target == ErrAlignment }

// AlignedSeriesPair holds two series over the same contiguous month range.
// len(Treatment.Counts) == len(Control.Counts) and Treatment.First == Control.First.
type AlignedSeriesPair struct {
	Treatment MonthlySeries
	Control   MonthlySeries
}

func (p AlignedSeriesPair) Len() int { return p.Treatment.Len() }

func (p AlignedSeriesPair) First() Month { return p.Treatment.First }

func (p AlignedSeriesPair) Last() Month { return p.Treatment.Last() }

// Months returns the shared month index.
func (p AlignedSeriesPair) Months() []Month { return p.Treatment.Months() }

// Align truncates a and b to their overlapping month range.
// It fails when the ranges do not overlap or the truncated series disagree in
// length, which would mean an upstream series was not gap-filled.
func Align(treatment, control MonthlySeries) (AlignedSeriesPair, error) {
	if treatment.Len() == 0 || control.Len() == 0 {
		return AlignedSeriesPair{}, &AlignmentError{
			Treatment: treatment.Group, Control: control.Group,
			Reason: fmt.Sprintf("empty input (treatment %d months, control %d months)", treatment.Len(), control.Len()),
		}
	}

	start := max(treatment.First, control.First)
	end := min(treatment.Last(), control.Last())
	if start > end {
		return AlignedSeriesPair{}, &AlignmentError{
			Treatment: treatment.Group, Control: control.Group,
			Start: start, End: end,
			Reason: fmt.Sprintf("no overlap (treatment %s..%s, control %s..%s)",
				treatment.First, treatment.Last(), control.First, control.Last()),
		}
	}

	t := treatment.Slice(start, end)
	c := control.Slice(start, end)
	if t.Len() != c.Len() || t.First != c.First {
		return AlignedSeriesPair{}, &AlignmentError{
			Treatment: treatment.Group, Control: control.Group,
			Start: start, End: end,
			Reason: fmt.Sprintf("length mismatch after truncation (%d vs %d months)", t.Len(), c.Len()),
		}
	}

	return AlignedSeriesPair{Treatment: t, Control: c}, nil
}
