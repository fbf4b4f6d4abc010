package series

import (
	"errors"
	"fmt"
	"sort"

	"HPAI_Vaccination_ITS_Project/internal/outbreak"
)

// ErrEmptySeries is returned when a group has no events to aggregate.
var ErrEmptySeries = errors.New("no events for group")

// MonthlySeries is a group's outbreak counts per calendar month.
// Month i of the series is First+i; months with no events carry an explicit 0.
type MonthlySeries struct {
	Group  string
	First  Month
	Counts []int
}

// New builds a series from First and a copy of counts.
func New(group string, first Month, counts []int) MonthlySeries {
	c := make([]int, len(counts))
	copy(c, counts)
	return MonthlySeries{Group: group, First: first, Counts: c}
}

func (s MonthlySeries) Len() int { return len(s.Counts) }

// Last is the final month of the series. It is undefined for an empty series.
func (s MonthlySeries) Last() Month { return s.First + Month(len(s.Counts)-1) }

// MonthAt returns the month at index i.
func (s MonthlySeries) MonthAt(i int) Month { return s.First + Month(i) }

// Months returns the month index of the series.
func (s MonthlySeries) Months() []Month {
	out := make([]Month, len(s.Counts))
	for i := range s.Counts {
		out[i] = s.First + Month(i)
	}
	return out
}

// At returns the count for m and whether m lies inside the series.
func (s MonthlySeries) At(m Month) (int, bool) {
	i := int(m - s.First)
	if i < 0 || i >= len(s.Counts) {
		return 0, false
	}
	return s.Counts[i], true
}

// Values returns the counts as float64 for the numeric packages.
func (s MonthlySeries) Values() []float64 {
	out := make([]float64, len(s.Counts))
	for i, c := range s.Counts {
		out[i] = float64(c)
	}
	return out
}

// Total is the sum of all counts.
func (s MonthlySeries) Total() int {
	total := 0
	for _, c := range s.Counts {
		total += c
	}
	return total
}

// Slice returns the sub-series covering [from, to]. Months outside the
// series are clipped; an inverted range yields an empty series starting at from.
func (s MonthlySeries) Slice(from, to Month) MonthlySeries {
	if from < s.First {
		from = s.First
	}
	if to > s.Last() {
		to = s.Last()
	}
	if from > to {
		return MonthlySeries{Group: s.Group, First: from}
	}
	lo, hi := int(from-s.First), int(to-s.First)+1
	return New(s.Group, from, s.Counts[lo:hi])
}

// Aggregate buckets events of group into UTC calendar months and returns the
// series from the first to the last observed month inclusive, with zeros for
// months without events. The result does not depend on event order.
func Aggregate(events []outbreak.Event, group string) (MonthlySeries, error) {
	buckets := make(map[Month]int)
	first, last := Month(0), Month(0)
	seen := false
	for _, ev := range events {
		if ev.Group != group {
			continue
		}
		m := MonthOf(ev.Timestamp)
		buckets[m]++
		if !seen || m < first {
			first = m
		}
		if !seen || m > last {
			last = m
		}
		seen = true
	}
	if !seen {
		return MonthlySeries{Group: group}, fmt.Errorf("aggregate %q: %w", group, ErrEmptySeries)
	}

	counts := make([]int, int(last-first)+1)
	for m, n := range buckets {
		counts[m-first] = n
	}
	return MonthlySeries{Group: group, First: first, Counts: counts}, nil
}

// AggregateAll aggregates every group present in events.
func AggregateAll(events []outbreak.Event) map[string]MonthlySeries {
	groups := make(map[string]bool)
	for _, ev := range events {
		groups[ev.Group] = true
	}
	out := make(map[string]MonthlySeries, len(groups))
	for g := range groups {
		s, err := Aggregate(events, g)
		if err == nil {
			out[g] = s
		}
	}
	return out
}

// Groups returns the keys of m in sorted order.
func Groups(m map[string]MonthlySeries) []string {
	out := make([]string, 0, len(m))
	for g := range m {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
