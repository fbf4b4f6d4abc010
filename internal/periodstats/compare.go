package periodstats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TestResult is the outcome of a two-sample comparison.
// When Undefined is set the numeric fields are NaN and Reason says why.
type TestResult struct {
	Method     string  `yaml:"method"`
	Statistic  float64 `yaml:"statistic"`
	PValue     float64 `yaml:"p_value"`
	EffectSize float64 `yaml:"effect_size"`
	NA         int     `yaml:"n_a"`
	NB         int     `yaml:"n_b"`
	Undefined  bool    `yaml:"undefined"`
	Reason     string  `yaml:"reason,omitempty"`
}

const (
	MethodMannWhitney = "mann-whitney-u"
	MethodWelch       = "welch-t"

	// Samples at or below this size use the exact U distribution when untied.
	exactMaxN = 8
)

func undefined(method string, a, b []float64, reason string) TestResult {
	return TestResult{
		Method:     method,
		Statistic:  math.NaN(),
		PValue:     math.NaN(),
		EffectSize: math.NaN(),
		NA:         len(a),
		NB:         len(b),
		Undefined:  true,
		Reason:     reason,
	}
}

// Compare runs a two-sided Mann-Whitney U test of a against b and reports
// Cohen's d of b relative to a:
//
//	d = (mean(b) - mean(a)) / sqrt((var(a) + var(b)) / 2)
//
// Statistic is U for sample a. Either sample with fewer than two
// observations yields an undefined result.
func Compare(a, b []float64) TestResult {
	if len(a) < 2 || len(b) < 2 {
		return undefined(MethodMannWhitney, a, b,
			fmt.Sprintf("need at least 2 observations per sample, got %d and %d", len(a), len(b)))
	}

	u1, tieTerm, ties := rankSumU(a, b)
	n1, n2 := float64(len(a)), float64(len(b))
	u2 := n1*n2 - u1
	u := math.Max(u1, u2)

	var p float64
	if !ties && (len(a) <= exactMaxN || len(b) <= exactMaxN) {
		p = 2 * exactUpperTail(len(a), len(b), u)
	} else {
		n := n1 + n2
		mu := n1 * n2 / 2
		sigma := math.Sqrt(n1 * n2 / 12 * ((n + 1) - tieTerm/(n*(n-1))))
		z := (u - mu - 0.5) / sigma
		p = 2 * distuv.UnitNormal.Survival(z)
		if math.IsNaN(p) {
			p = 1
		}
	}

	return TestResult{
		Method:     MethodMannWhitney,
		Statistic:  u1,
		PValue:     math.Min(math.Max(p, 0), 1),
		EffectSize: CohensD(a, b),
		NA:         len(a),
		NB:         len(b),
	}
}

// CohensD is the standardized mean difference of b relative to a using the
// average of the two sample variances. It is NaN when either sample has fewer
// than two observations or both variances are zero.
func CohensD(a, b []float64) float64 {
	if len(a) < 2 || len(b) < 2 {
		return math.NaN()
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	pooled := math.Sqrt((va + vb) / 2)
	if pooled == 0 {
		return math.NaN()
	}
	return (mb - ma) / pooled
}

// rankSumU returns U for sample a using average ranks over the pooled sample,
// the tie correction term sum(t^3 - t), and whether any ties exist.
func rankSumU(a, b []float64) (u1, tieTerm float64, ties bool) {
	type obs struct {
		v     float64
		fromA bool
	}
	pooled := make([]obs, 0, len(a)+len(b))
	for _, v := range a {
		pooled = append(pooled, obs{v, true})
	}
	for _, v := range b {
		pooled = append(pooled, obs{v, false})
	}
	sort.SliceStable(pooled, func(i, j int) bool { return pooled[i].v < pooled[j].v })

	var rankSumA float64
	for i := 0; i < len(pooled); {
		j := i
		for j < len(pooled) && pooled[j].v == pooled[i].v {
			j++
		}
		// positions i..j-1 share the average of ranks i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			if pooled[k].fromA {
				rankSumA += avg
			}
		}
		if t := float64(j - i); t > 1 {
			ties = true
			tieTerm += t*t*t - t
		}
		i = j
	}

	n1 := float64(len(a))
	return rankSumA - n1*(n1+1)/2, tieTerm, ties
}

// exactUpperTail returns P(U >= u) under the null for sample sizes m and n.
func exactUpperTail(m, n int, u float64) float64 {
	freq := uFrequencies(m, n)
	var total, tail float64
	for k, f := range freq {
		total += f
		if float64(k) >= u {
			tail += f
		}
	}
	return tail / total
}

// uFrequencies returns the number of orderings giving each U in 0..m*n.
// These are the coefficients of the Gaussian binomial [m+n choose m]_q,
// built one factor (1-q^(n+i))/(1-q^i) at a time.
func uFrequencies(m, n int) []float64 {
	if m > n {
		m, n = n, m
	}
	poly := []float64{1}
	for i := 1; i <= m; i++ {
		shift := n + i
		num := make([]float64, len(poly)+shift)
		copy(num, poly)
		for k, c := range poly {
			num[k+shift] -= c
		}
		next := make([]float64, len(poly)+n)
		for k := range next {
			next[k] = num[k]
			if k >= i {
				next[k] += next[k-i]
			}
		}
		poly = next
	}
	return poly
}

// WelchT runs a two-sided Welch t-test of a against b. Statistic is
// (mean(a) - mean(b)) / SE; EffectSize is CohensD(a, b).
func WelchT(a, b []float64) TestResult {
	if len(a) < 2 || len(b) < 2 {
		return undefined(MethodWelch, a, b,
			fmt.Sprintf("need at least 2 observations per sample, got %d and %d", len(a), len(b)))
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))

	sa, sb := va/na, vb/nb
	se := math.Sqrt(sa + sb)
	if se == 0 {
		return undefined(MethodWelch, a, b, "both samples have zero variance")
	}
	t := (ma - mb) / se
	df := (sa + sb) * (sa + sb) / (sa*sa/(na-1) + sb*sb/(nb-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return TestResult{
		Method:     MethodWelch,
		Statistic:  t,
		PValue:     2 * dist.Survival(math.Abs(t)),
		EffectSize: CohensD(a, b),
		NA:         len(a),
		NB:         len(b),
	}
}

// ErrConstantSeries is returned by Correlation when a series has no variance.
var ErrConstantSeries = errors.New("series has zero variance")

// Correlation is the Pearson correlation of two equal-length series.
func Correlation(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return math.NaN(), fmt.Errorf("correlation: %w (%d vs %d)", ErrLengthMismatch, len(a), len(b))
	}
	if len(a) < 2 {
		return math.NaN(), fmt.Errorf("correlation: need at least 2 points, got %d", len(a))
	}
	if stat.Variance(a, nil) == 0 || stat.Variance(b, nil) == 0 {
		return math.NaN(), fmt.Errorf("correlation: %w", ErrConstantSeries)
	}
	r, err := stats.Correlation(a, b)
	if err != nil {
		return math.NaN(), fmt.Errorf("correlation: %w", err)
	}
	return r, nil
}
