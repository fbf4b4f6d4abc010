// Package its fits the segmented regression of an interrupted time series
// and derives the difference-in-differences effect between two groups.
package its

import (
	"errors"
	"fmt"
)

// Column positions in the design matrix and coefficient vector.
const (
	Intercept = iota
	Trend
	LevelChange
	SlopeChange

	// NumCoefficients is also the minimum number of time points for a fit.
	NumCoefficients
)

// CoefficientNames are indexed by column position.
var CoefficientNames = [NumCoefficients]string{"intercept", "trend", "level_change", "slope_change"}

// Coefficient is one fitted parameter with its inference.
// StdErr, TStat and PValue are NaN when there are no residual degrees of freedom.
type Coefficient struct {
	Name     string  `yaml:"name"`
	Estimate float64 `yaml:"estimate"`
	StdErr   float64 `yaml:"std_err"`
	TStat    float64 `yaml:"t_stat"`
	PValue   float64 `yaml:"p_value"`
}

// RegressionResult is one group's segmented-regression fit.
type RegressionResult struct {
	Group string `yaml:"group"`
	// Number of time points
	N int `yaml:"n"`
	// Position of the first intervention month
	InterventionIndex int `yaml:"intervention_index"`

	Coefficients [NumCoefficients]Coefficient `yaml:"coefficients"`

	// Fitted values and residuals, aligned with the input month index
	Fitted    []float64 `yaml:"fitted"`
	Residuals []float64 `yaml:"residuals"`

	RSquared float64 `yaml:"r_squared"`
	// Residual degrees of freedom, N - NumCoefficients
	DF int `yaml:"df"`
	// Residual variance estimate RSS / DF
	Sigma2 float64 `yaml:"sigma2"`
}

// Level returns the level-change coefficient.
func (r *RegressionResult) Level() Coefficient { return r.Coefficients[LevelChange] }

// Slope returns the slope-change coefficient.
func (r *RegressionResult) Slope() Coefficient { return r.Coefficients[SlopeChange] }

// DiDEffect is the treatment level change net of the control level change.
type DiDEffect struct {
	Estimate float64 `yaml:"estimate"`
	// sqrt(se_t^2 + se_c^2); the two fits share no data
	StdErr float64 `yaml:"std_err"`
	ZStat  float64 `yaml:"z_stat"`
	PValue float64 `yaml:"p_value"`
}

// ErrInsufficientData is matched by every *InsufficientDataError.
var ErrInsufficientData = errors.New("insufficient data for segmented regression")

// InsufficientDataError is fatal to a single group's fit only.
type InsufficientDataError struct {
	Group  string
	Points int
	Rank   int
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("fit %q (%d points, rank %d): %s", e.Group, e.Points, e.Rank, e.Reason)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }
