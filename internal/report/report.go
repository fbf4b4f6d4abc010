// Package report renders an analysis report as CSV tables and a YAML summary.
// Undefined statistics are written as empty cells.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"HPAI_Vaccination_ITS_Project/internal/analysis"
	"HPAI_Vaccination_ITS_Project/internal/epoch"
	"HPAI_Vaccination_ITS_Project/internal/its"
	"HPAI_Vaccination_ITS_Project/internal/periodstats"
)

// File names written by WriteAll.
const (
	SeriesFile      = "monthly_series.csv"
	PeriodStatsFile = "period_stats.csv"
	TestsFile       = "hypothesis_tests.csv"
	RegressionFile  = "regression.csv"
	SeasonalFile    = "seasonal_profile.csv"
	SummaryFile     = "summary.yaml"
)

// WriteAll writes every table and the summary into dir, creating it if needed.
// It returns the paths written.
func WriteAll(dir string, r *analysis.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}

	writers := []struct {
		name  string
		write func(io.Writer, *analysis.Report) error
	}{
		{SeriesFile, WriteSeriesCSV},
		{PeriodStatsFile, WritePeriodStatsCSV},
		{TestsFile, WriteTestsCSV},
		{RegressionFile, WriteRegressionCSV},
		{SeasonalFile, WriteSeasonalCSV},
		{SummaryFile, WriteSummaryYAML},
	}

	var paths []string
	for _, w := range writers {
		path := filepath.Join(dir, w.name)
		if err := writeFile(path, r, w.write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, r *analysis.Report, write func(io.Writer, *analysis.Report) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// WriteSeriesCSV writes one row per comparison, group and month.
func WriteSeriesCSV(w io.Writer, r *analysis.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"comparison", "group", "role", "month", "epoch", "count"}); err != nil {
		return err
	}
	for _, c := range r.Results {
		if !c.OK() {
			continue
		}
		for _, g := range []struct {
			role string
			s    []int
			name string
		}{
			{"treatment", c.Pair.Treatment.Counts, c.Pair.Treatment.Group},
			{"control", c.Pair.Control.Counts, c.Pair.Control.Group},
		} {
			for i, n := range g.s {
				rec := []string{
					c.Comparison.Name, g.name, g.role,
					c.Pair.Treatment.MonthAt(i).String(), c.Labels[i].String(),
					strconv.Itoa(n),
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePeriodStatsCSV writes the period table of every comparison.
func WritePeriodStatsCSV(w io.Writer, r *analysis.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"comparison", "group", "epoch", "months", "total", "mean", "median", "std"}); err != nil {
		return err
	}
	for _, c := range r.Results {
		for _, k := range c.Periods.Keys() {
			p := c.Periods[k]
			rec := []string{
				c.Comparison.Name, k.Group, k.Epoch.String(),
				strconv.Itoa(p.MonthCount), strconv.Itoa(p.Total),
				formatFloat(p.Mean), formatFloat(p.Median), formatFloat(p.Std),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTestsCSV writes the PRE versus DURING comparisons of every group.
func WriteTestsCSV(w io.Writer, r *analysis.Report) error {
	cw := csv.NewWriter(w)
	header := []string{"comparison", "group", "method", "statistic", "p_value", "effect_size",
		"n_pre", "n_during", "reduction_percent", "note"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range r.Results {
		for _, g := range c.Tests {
			for _, tr := range []periodstats.TestResult{g.MannWhitney, g.Welch} {
				rec := []string{
					c.Comparison.Name, g.Group, tr.Method,
					formatFloat(tr.Statistic), formatFloat(tr.PValue), formatFloat(tr.EffectSize),
					strconv.Itoa(tr.NA), strconv.Itoa(tr.NB),
					formatFloat(g.Reduction), tr.Reason,
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRegressionCSV writes every fitted coefficient, then one did row per
// comparison with both fits.
func WriteRegressionCSV(w io.Writer, r *analysis.Report) error {
	cw := csv.NewWriter(w)
	header := []string{"comparison", "group", "term", "estimate", "std_err", "t_stat", "p_value",
		"r_squared", "df", "intervention_index"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range r.Results {
		if c.Regression == nil {
			continue
		}
		k := strconv.Itoa(c.InterventionIndex)
		for _, fit := range []*its.RegressionResult{c.Regression.Treatment, c.Regression.Control} {
			if fit == nil {
				continue
			}
			for _, coef := range fit.Coefficients {
				rec := []string{
					c.Comparison.Name, fit.Group, coef.Name,
					formatFloat(coef.Estimate), formatFloat(coef.StdErr),
					formatFloat(coef.TStat), formatFloat(coef.PValue),
					formatFloat(fit.RSquared), strconv.Itoa(fit.DF), k,
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
		if d := c.Regression.DiD; d != nil {
			rec := []string{
				c.Comparison.Name, "", "did_level_change",
				formatFloat(d.Estimate), formatFloat(d.StdErr),
				formatFloat(d.ZStat), formatFloat(d.PValue),
				"", "", k,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSeasonalCSV writes the mean count per calendar month of every group
// and epoch. Calendar months an epoch never covers are left out.
func WriteSeasonalCSV(w io.Writer, r *analysis.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"comparison", "group", "epoch", "calendar_month", "mean"}); err != nil {
		return err
	}
	for _, c := range r.Results {
		for _, g := range c.Tests {
			for _, e := range epoch.All {
				p, ok := g.Seasonal[e]
				if !ok {
					continue
				}
				for i, mean := range p {
					if math.IsNaN(mean) {
						continue
					}
					rec := []string{c.Comparison.Name, g.Group, e.String(), strconv.Itoa(i + 1), formatFloat(mean)}
					if err := cw.Write(rec); err != nil {
						return err
					}
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
