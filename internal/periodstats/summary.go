// Package periodstats computes descriptive statistics and two-sample tests
// over the epochs of aligned monthly series.
//
// Statistics that cannot be computed (an empty epoch, a single month for a
// standard deviation) are NaN rather than zero; use IsUndefined to tell them
// apart from a true zero.
package periodstats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"HPAI_Vaccination_ITS_Project/internal/epoch"
	"HPAI_Vaccination_ITS_Project/internal/series"
)

// ErrLengthMismatch means epoch labels do not cover a series month for month.
var ErrLengthMismatch = errors.New("labels and series differ in length")

// IsUndefined reports whether v is the undefined-statistic marker.
func IsUndefined(v float64) bool { return math.IsNaN(v) }

// Summary describes one group's counts within one epoch.
type Summary struct {
	Mean       float64 `yaml:"mean"`
	Median     float64 `yaml:"median"`
	Std        float64 `yaml:"std"` // sample, N-1 denominator
	Total      int     `yaml:"total"`
	MonthCount int     `yaml:"months"`
}

// Defined reports whether every field carries a value.
func (s Summary) Defined() bool {
	return !IsUndefined(s.Mean) && !IsUndefined(s.Median) && !IsUndefined(s.Std)
}

// Key addresses one cell of a Table.
type Key struct {
	Group string
	Epoch epoch.Epoch
}

// Table maps (group, epoch) to its Summary.
type Table map[Key]Summary

// Get returns the summary for group and e.
func (t Table) Get(group string, e epoch.Epoch) (Summary, bool) {
	s, ok := t[Key{Group: group, Epoch: e}]
	return s, ok
}

// Keys returns the table keys ordered by group then epoch.
func (t Table) Keys() []Key {
	keys := make([]Key, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Group != keys[j].Group {
			return keys[i].Group < keys[j].Group
		}
		return keys[i].Epoch < keys[j].Epoch
	})
	return keys
}

// Describe summarizes a sample of monthly counts.
func Describe(sample []float64) Summary {
	s := Summary{
		Mean:       math.NaN(),
		Median:     math.NaN(),
		Std:        math.NaN(),
		MonthCount: len(sample),
	}
	if len(sample) == 0 {
		return s
	}
	data := stats.Float64Data(sample)
	total, _ := stats.Sum(data)
	s.Total = int(math.Round(total))
	s.Mean, _ = stats.Mean(data)
	s.Median, _ = stats.Median(data)
	if len(sample) >= 2 {
		s.Std, _ = stats.StandardDeviationSample(data)
	}
	return s
}

// Subset returns the counts of s at the months labelled e.
func Subset(s series.MonthlySeries, labels []epoch.Epoch, e epoch.Epoch) []float64 {
	var out []float64
	for _, i := range epoch.Mask(labels, e) {
		if i < len(s.Counts) {
			out = append(out, float64(s.Counts[i]))
		}
	}
	return out
}

// Summarize computes a Summary for every group and every epoch, including
// epochs with no months. Each series must have exactly one label per month.
func Summarize(ss []series.MonthlySeries, labels []epoch.Epoch) (Table, error) {
	table := make(Table, len(ss)*len(epoch.All))
	for _, s := range ss {
		if s.Len() != len(labels) {
			return nil, fmt.Errorf("summarize %q: %w (%d months, %d labels)", s.Group, ErrLengthMismatch, s.Len(), len(labels))
		}
		for _, e := range epoch.All {
			table[Key{Group: s.Group, Epoch: e}] = Describe(Subset(s, labels, e))
		}
	}
	return table, nil
}

// ReductionPercent is the relative drop in mean monthly outbreaks from pre to
// during, in percent. It is NaN when the PRE mean is zero or undefined.
func ReductionPercent(pre, during Summary) float64 {
	if IsUndefined(pre.Mean) || IsUndefined(during.Mean) || pre.Mean == 0 {
		return math.NaN()
	}
	return (pre.Mean - during.Mean) / pre.Mean * 100
}

// Profile holds mean counts per calendar month, January first.
// Calendar months with no observations in the epoch are NaN.
type Profile [12]float64

// Of returns the profile value for calendar month m.
func (p Profile) Of(m time.Month) float64 { return p[m-1] }

// SeasonalProfile averages the counts of s by calendar month within epoch e.
func SeasonalProfile(s series.MonthlySeries, labels []epoch.Epoch, e epoch.Epoch) (Profile, error) {
	var p Profile
	if s.Len() != len(labels) {
		return p, fmt.Errorf("seasonal profile %q: %w", s.Group, ErrLengthMismatch)
	}
	var sums, ns [12]float64
	for _, i := range epoch.Mask(labels, e) {
		cm := s.MonthAt(i).Calendar() - 1
		sums[cm] += float64(s.Counts[i])
		ns[cm]++
	}
	for i := range p {
		if ns[i] == 0 {
			p[i] = math.NaN()
			continue
		}
		p[i] = sums[i] / ns[i]
	}
	return p, nil
}
