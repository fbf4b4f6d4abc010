// Package analysis composes the per-comparison pipeline: split, aggregate,
// align, partition, then period statistics, hypothesis tests and the
// segmented regression.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"HPAI_Vaccination_ITS_Project/internal/epoch"
	"HPAI_Vaccination_ITS_Project/internal/its"
	"HPAI_Vaccination_ITS_Project/internal/logger"
	"HPAI_Vaccination_ITS_Project/internal/outbreak"
	"HPAI_Vaccination_ITS_Project/internal/periodstats"
	"HPAI_Vaccination_ITS_Project/internal/series"
)

// ErrNoEvents aborts a run that has nothing to analyse.
var ErrNoEvents = errors.New("no outbreak events to analyse")

// Comparison is one treatment country against a set of control countries.
type Comparison struct {
	Name      string
	Treatment string
	// Explicit control countries; every other country when empty
	Controls []string
	// Restrict controls to one region of Config.Regions
	Region string
	// Group label of the pooled control series
	ControlLabel string
}

// Config drives a run.
type Config struct {
	// Fixed run identifier; a random UUID when empty
	RunID       string
	// Stamped on the report as is; the pipeline never reads the clock
	CreatedAt   time.Time
	Window      epoch.Window
	Species     []string
	Regions     outbreak.Regions
	Comparisons []Comparison
}

// GroupTests are one group's PRE versus DURING comparisons.
type GroupTests struct {
	Group       string                 `yaml:"group"`
	MannWhitney periodstats.TestResult `yaml:"mann_whitney"`
	Welch       periodstats.TestResult `yaml:"welch"`
	// Percent drop of the DURING mean relative to the PRE mean
	Reduction float64                             `yaml:"reduction_percent"`
	Seasonal  map[epoch.Epoch]periodstats.Profile `yaml:"-"`
}

// ComparisonResult is everything computed for one Comparison. Err is set when
// the comparison could not be built at all; FitErr when only the regression
// failed for one or both groups.
type ComparisonResult struct {
	Comparison Comparison
	// Control countries that contributed events, by report count
	ControlCountries []outbreak.CountryCount

	Pair              series.AlignedSeriesPair
	Labels            []epoch.Epoch
	InterventionIndex int

	Periods     periodstats.Table
	Tests       []GroupTests
	Correlation float64

	Regression *its.PairResult

	Err    error
	FitErr error
}

// OK reports whether the comparison produced statistics.
func (c *ComparisonResult) OK() bool { return c.Err == nil }

// Report is the result of one run.
type Report struct {
	RunID     string
	CreatedAt time.Time
	Window    epoch.Window
	// Normalized events, and those left after the species filter
	Events    int
	Filtered  int
	Skipped   []*outbreak.ParseError
	Countries []outbreak.CountryCount
	Results   []*ComparisonResult
}

// Failed returns the comparisons that could not be built.
func (r *Report) Failed() []*ComparisonResult {
	var out []*ComparisonResult
	for _, c := range r.Results {
		if !c.OK() {
			out = append(out, c)
		}
	}
	return out
}

// Run analyses normalized events. Only an invalid window or an empty event
// set abort the run; every other failure is recorded on its comparison.
func Run(norm outbreak.NormalizeResult, cfg Config) (*Report, error) {
	if err := cfg.Window.Validate(); err != nil {
		return nil, err
	}
	if len(norm.Events) == 0 {
		return nil, fmt.Errorf("%w (%d rows skipped)", ErrNoEvents, len(norm.Skipped))
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	events := outbreak.FilterSpecies(norm.Events, cfg.Species)
	logger.Info("Run %s: %d events, %d after species filter, %d rows skipped",
		runID, len(norm.Events), len(events), len(norm.Skipped))
	if len(events) == 0 {
		return nil, fmt.Errorf("%w after species filter %v", ErrNoEvents, cfg.Species)
	}

	report := &Report{
		RunID:     runID,
		CreatedAt: cfg.CreatedAt,
		Window:    cfg.Window,
		Events:    len(norm.Events),
		Filtered:  len(events),
		Skipped:   norm.Skipped,
		Countries: outbreak.CountByCountry(events),
	}

	for _, comp := range cfg.Comparisons {
		res := runComparison(events, comp, cfg)
		if res.Err != nil {
			logger.Warn("Comparison %s failed: %v", comp.Name, res.Err)
		} else if res.FitErr != nil {
			logger.Warn("Comparison %s: regression incomplete: %v", comp.Name, res.FitErr)
		} else {
			logger.Info("Comparison %s: %d months (%s..%s), DiD %.3f (p=%.4f)",
				comp.Name, res.Pair.Len(), res.Pair.First(), res.Pair.Last(),
				res.Regression.DiD.Estimate, res.Regression.DiD.PValue)
		}
		report.Results = append(report.Results, res)
	}

	return report, nil
}

func runComparison(events []outbreak.Event, comp Comparison, cfg Config) *ComparisonResult {
	res := &ComparisonResult{Comparison: comp, Correlation: math.NaN()}
	controlLabel := comp.ControlLabel
	if controlLabel == "" {
		controlLabel = "control"
	}

	sel := outbreak.Selector{
		Treatment: comp.Treatment,
		Controls:  comp.Controls,
		Region:    comp.Region,
		Regions:   cfg.Regions,
	}
	treatEvents, controlEvents := sel.Split(events, comp.Treatment, controlLabel)
	res.ControlCountries = outbreak.CountByCountry(controlEvents)

	treatment, err := series.Aggregate(treatEvents, comp.Treatment)
	if err != nil {
		res.Err = err
		return res
	}
	control, err := series.Aggregate(controlEvents, controlLabel)
	if err != nil {
		res.Err = err
		return res
	}

	pair, err := series.Align(treatment, control)
	if err != nil {
		res.Err = err
		return res
	}
	res.Pair = pair

	labels, err := epoch.Partition(pair, cfg.Window)
	if err != nil {
		res.Err = err
		return res
	}
	res.Labels = labels
	logger.Debug("Comparison %s: epochs %v", comp.Name, epoch.Counts(labels))

	groups := []series.MonthlySeries{pair.Treatment, pair.Control}
	if res.Periods, err = periodstats.Summarize(groups, labels); err != nil {
		res.Err = err
		return res
	}

	for _, s := range groups {
		gt, err := groupTests(s, labels, res.Periods)
		if err != nil {
			res.Err = err
			return res
		}
		res.Tests = append(res.Tests, gt)
	}

	if r, err := periodstats.Correlation(pair.Treatment.Values(), pair.Control.Values()); err == nil {
		res.Correlation = r
	} else {
		logger.Debug("Comparison %s: correlation undefined: %v", comp.Name, err)
	}

	k, err := epoch.InterventionIndex(labels)
	if err != nil {
		res.FitErr = err
		return res
	}
	res.InterventionIndex = k
	res.Regression, res.FitErr = its.FitPair(pair, k)

	return res
}

func groupTests(s series.MonthlySeries, labels []epoch.Epoch, table periodstats.Table) (GroupTests, error) {
	pre := periodstats.Subset(s, labels, epoch.Pre)
	during := periodstats.Subset(s, labels, epoch.During)

	gt := GroupTests{
		Group:       s.Group,
		MannWhitney: periodstats.Compare(pre, during),
		Welch:       periodstats.WelchT(pre, during),
		Reduction:   math.NaN(),
		Seasonal:    make(map[epoch.Epoch]periodstats.Profile, len(epoch.All)),
	}

	preSum, okPre := table.Get(s.Group, epoch.Pre)
	duringSum, okDuring := table.Get(s.Group, epoch.During)
	if okPre && okDuring {
		gt.Reduction = periodstats.ReductionPercent(preSum, duringSum)
	}

	for _, e := range epoch.All {
		p, err := periodstats.SeasonalProfile(s, labels, e)
		if err != nil {
			return gt, err
		}
		gt.Seasonal[e] = p
	}
	return gt, nil
}
