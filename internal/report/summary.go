package report

import (
	"io"
	"math"
	"time"

	"gopkg.in/yaml.v3"

	"HPAI_Vaccination_ITS_Project/internal/analysis"
	"HPAI_Vaccination_ITS_Project/internal/epoch"
	"HPAI_Vaccination_ITS_Project/internal/its"
	"HPAI_Vaccination_ITS_Project/internal/outbreak"
)

// Skip messages beyond this are only counted.
const maxSkipped = 20

// Summary is the YAML document written by WriteSummaryYAML.
type Summary struct {
	RunID     string                  `yaml:"run_id"`
	CreatedAt time.Time               `yaml:"created_at"`
	Window    WindowSummary           `yaml:"window"`
	Events    int                     `yaml:"events"`
	Filtered  int                     `yaml:"events_after_species_filter"`
	Skipped   SkipSummary             `yaml:"skipped_rows"`
	Countries []outbreak.CountryCount `yaml:"countries"`

	Comparisons []ComparisonSummary `yaml:"comparisons"`
}

type WindowSummary struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

type SkipSummary struct {
	Count    int      `yaml:"count"`
	Examples []string `yaml:"examples,omitempty"`
}

// ComparisonSummary flattens one comparison result. Pointers are nil where
// the statistic is undefined.
type ComparisonSummary struct {
	Name       string `yaml:"name"`
	Treatment  string `yaml:"treatment"`
	Control    string `yaml:"control"`
	Status     string `yaml:"status"`
	Error      string `yaml:"error,omitempty"`
	FitError   string `yaml:"fit_error,omitempty"`
	FirstMonth string `yaml:"first_month,omitempty"`
	LastMonth  string `yaml:"last_month,omitempty"`
	Months     int    `yaml:"months"`

	EpochMonths       map[string]int          `yaml:"epoch_months,omitempty"`
	InterventionIndex *int                    `yaml:"intervention_index,omitempty"`
	Correlation       *float64                `yaml:"correlation,omitempty"`
	ControlCountries  []outbreak.CountryCount `yaml:"control_countries,omitempty"`
	Groups            []GroupSummary          `yaml:"groups,omitempty"`
	DiD               *EffectSummary          `yaml:"did_level_change,omitempty"`
}

type GroupSummary struct {
	Group        string         `yaml:"group"`
	PreMean      *float64       `yaml:"pre_mean,omitempty"`
	DuringMean   *float64       `yaml:"during_mean,omitempty"`
	ReductionPct *float64       `yaml:"reduction_percent,omitempty"`
	MannWhitneyP *float64       `yaml:"mann_whitney_p,omitempty"`
	CohensD      *float64       `yaml:"cohens_d,omitempty"`
	WelchP       *float64       `yaml:"welch_p,omitempty"`
	LevelChange  *EffectSummary `yaml:"level_change,omitempty"`
	SlopeChange  *EffectSummary `yaml:"slope_change,omitempty"`
	RSquared     *float64       `yaml:"r_squared,omitempty"`
}

type EffectSummary struct {
	Estimate *float64 `yaml:"estimate,omitempty"`
	StdErr   *float64 `yaml:"std_err,omitempty"`
	PValue   *float64 `yaml:"p_value,omitempty"`
}

// Summarize flattens a report into its YAML shape.
func Summarize(r *analysis.Report) Summary {
	s := Summary{
		RunID:     r.RunID,
		CreatedAt: r.CreatedAt,
		Window:    WindowSummary{Start: r.Window.Start, End: r.Window.End},
		Events:    r.Events,
		Filtered:  r.Filtered,
		Skipped:   SkipSummary{Count: len(r.Skipped)},
		Countries: r.Countries,
	}
	for i, pe := range r.Skipped {
		if i == maxSkipped {
			break
		}
		s.Skipped.Examples = append(s.Skipped.Examples, pe.Error())
	}
	for _, c := range r.Results {
		s.Comparisons = append(s.Comparisons, summarizeComparison(c))
	}
	return s
}

func summarizeComparison(c *analysis.ComparisonResult) ComparisonSummary {
	cs := ComparisonSummary{
		Name:             c.Comparison.Name,
		Treatment:        c.Comparison.Treatment,
		Control:          c.Comparison.ControlLabel,
		Status:           "ok",
		ControlCountries: c.ControlCountries,
	}
	if c.Err != nil {
		cs.Status = "failed"
		cs.Error = c.Err.Error()
		return cs
	}
	if c.FitErr != nil {
		cs.Status = "partial"
		cs.FitError = c.FitErr.Error()
	}

	cs.Control = c.Pair.Control.Group
	cs.FirstMonth = c.Pair.First().String()
	cs.LastMonth = c.Pair.Last().String()
	cs.Months = c.Pair.Len()
	cs.Correlation = num(c.Correlation)
	cs.EpochMonths = make(map[string]int)
	for e, n := range epoch.Counts(c.Labels) {
		cs.EpochMonths[e.String()] = n
	}

	var fits map[string]*its.RegressionResult
	if c.Regression != nil {
		k := c.InterventionIndex
		cs.InterventionIndex = &k
		fits = map[string]*its.RegressionResult{}
		for _, f := range []*its.RegressionResult{c.Regression.Treatment, c.Regression.Control} {
			if f != nil {
				fits[f.Group] = f
			}
		}
		if d := c.Regression.DiD; d != nil {
			cs.DiD = &EffectSummary{Estimate: num(d.Estimate), StdErr: num(d.StdErr), PValue: num(d.PValue)}
		}
	}

	for _, g := range c.Tests {
		gs := GroupSummary{
			Group:        g.Group,
			ReductionPct: num(g.Reduction),
			MannWhitneyP: num(g.MannWhitney.PValue),
			CohensD:      num(g.MannWhitney.EffectSize),
			WelchP:       num(g.Welch.PValue),
		}
		if p, ok := c.Periods.Get(g.Group, epoch.Pre); ok {
			gs.PreMean = num(p.Mean)
		}
		if p, ok := c.Periods.Get(g.Group, epoch.During); ok {
			gs.DuringMean = num(p.Mean)
		}
		if f := fits[g.Group]; f != nil {
			gs.LevelChange = effect(f.Level())
			gs.SlopeChange = effect(f.Slope())
			gs.RSquared = num(f.RSquared)
		}
		cs.Groups = append(cs.Groups, gs)
	}
	return cs
}

func effect(c its.Coefficient) *EffectSummary {
	return &EffectSummary{Estimate: num(c.Estimate), StdErr: num(c.StdErr), PValue: num(c.PValue)}
}

func num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// WriteSummaryYAML writes Summarize(r) as YAML.
func WriteSummaryYAML(w io.Writer, r *analysis.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Summarize(r)); err != nil {
		return err
	}
	return enc.Close()
}
