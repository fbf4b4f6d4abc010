package its

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"HPAI_Vaccination_ITS_Project/internal/series"
)

// Singular values below rankTol times the largest count as zero.
const rankTol = 1e-12

// DesignMatrix builds the N x 4 segmented-regression design for an
// intervention starting at index k:
//
//	[ 1, t, I(t >= k), (t - k) * I(t >= k) ]   for t = 0..n-1
func DesignMatrix(n, k int) *mat.Dense {
	X := mat.NewDense(n, NumCoefficients, nil)
	for t := 0; t < n; t++ {
		X.Set(t, Intercept, 1)
		X.Set(t, Trend, float64(t))
		if t >= k {
			X.Set(t, LevelChange, 1)
			X.Set(t, SlopeChange, float64(t-k))
		}
	}
	return X
}

// FitSeries fits a monthly series with the intervention at index k.
func FitSeries(s series.MonthlySeries, k int) (*RegressionResult, error) {
	return fit(s.Group, s.Values(), k)
}

// Fit fits y against DesignMatrix(len(y), k) by ordinary least squares.
// It fails with an *InsufficientDataError when there are fewer than four
// points or the design is rank deficient (k <= 0 or k >= len(y)-1).
func Fit(y []float64, k int) (*RegressionResult, error) {
	return fit("", y, k)
}

func fit(group string, y []float64, k int) (*RegressionResult, error) {
	T := len(y)
	if T < NumCoefficients {
		return nil, &InsufficientDataError{
			Group: group, Points: T, Rank: min(T, NumCoefficients),
			Reason: fmt.Sprintf("need at least %d time points", NumCoefficients),
		}
	}

	X := DesignMatrix(T, k)
	Y := mat.NewVecDense(T, append([]float64(nil), y...))

	var svd mat.SVD
	if !svd.Factorize(X, mat.SVDThin) {
		return nil, fmt.Errorf("fit %q: SVD factorization of design matrix failed", group)
	}
	if rank := svd.Rank(rankTol); rank < NumCoefficients {
		return nil, &InsufficientDataError{
			Group: group, Points: T, Rank: rank,
			Reason: fmt.Sprintf("design matrix is rank deficient for intervention index %d", k),
		}
	}

	// B = (X'X)^(-1) X'Y
	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	var B mat.VecDense
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err == nil {
		var xty mat.VecDense
		xty.MulVec(X.T(), Y)
		B.MulVec(&xtxInv, &xty)
	} else {
		// X'X is badly conditioned: solve through the SVD instead and
		// rebuild (X'X)^(-1) = V diag(1/s^2) V'.
		var b mat.Dense
		svd.SolveTo(&b, Y, NumCoefficients)
		B.CloneFromVec(b.ColView(0))
		xtxInv = svdNormalInverse(&svd)
	}

	// Residuals and variance
	var Yhat mat.VecDense
	Yhat.MulVec(X, &B)

	fitted := make([]float64, T)
	residuals := make([]float64, T)
	rss := 0.0
	for t := 0; t < T; t++ {
		fitted[t] = Yhat.AtVec(t)
		residuals[t] = y[t] - fitted[t]
		rss += residuals[t] * residuals[t]
	}

	df := T - NumCoefficients
	sigma2 := math.NaN()
	if df > 0 {
		sigma2 = rss / float64(df)
	}

	res := &RegressionResult{
		Group:             group,
		N:                 T,
		InterventionIndex: k,
		Fitted:            fitted,
		Residuals:         residuals,
		RSquared:          stat.RSquaredFrom(fitted, y, nil),
		DF:                df,
		Sigma2:            sigma2,
	}

	for j := 0; j < NumCoefficients; j++ {
		c := Coefficient{
			Name:     CoefficientNames[j],
			Estimate: B.AtVec(j),
			StdErr:   math.NaN(),
			TStat:    math.NaN(),
			PValue:   math.NaN(),
		}
		if df > 0 {
			c.StdErr = math.Sqrt(sigma2 * xtxInv.At(j, j))
			c.TStat = c.Estimate / c.StdErr
			c.PValue = twoSidedT(c.TStat, float64(df))
		}
		res.Coefficients[j] = c
	}

	return res, nil
}

func svdNormalInverse(svd *mat.SVD) mat.Dense {
	var V mat.Dense
	svd.VTo(&V)
	s := svd.Values(nil)

	n := len(s)
	inv := make([]float64, n)
	for i, v := range s {
		inv[i] = 1 / (v * v)
	}
	var scaled mat.Dense
	scaled.Mul(&V, mat.NewDiagDense(n, inv))

	var out mat.Dense
	out.Mul(&scaled, V.T())
	return out
}

func twoSidedT(t, df float64) float64 {
	if math.IsNaN(t) {
		return math.NaN()
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(math.Abs(t))
}

// DiD returns treatment's level change minus control's level change.
func DiD(treatment, control *RegressionResult) DiDEffect {
	t, c := treatment.Level(), control.Level()
	d := DiDEffect{
		Estimate: t.Estimate - c.Estimate,
		StdErr:   math.Sqrt(t.StdErr*t.StdErr + c.StdErr*c.StdErr),
		ZStat:    math.NaN(),
		PValue:   math.NaN(),
	}
	if !math.IsNaN(d.StdErr) && d.StdErr > 0 {
		d.ZStat = d.Estimate / d.StdErr
		d.PValue = 2 * distuv.UnitNormal.Survival(math.Abs(d.ZStat))
	}
	return d
}

// PairResult holds both fits of an aligned pair. A group whose fit failed
// has a nil result and its error set; DiD is only set when both succeeded.
type PairResult struct {
	Treatment    *RegressionResult
	Control      *RegressionResult
	TreatmentErr error
	ControlErr   error
	DiD          *DiDEffect
}

// FitPair fits treatment and control against the shared design. The fits are
// independent: one group failing does not prevent the other. The returned
// error joins the per-group failures and is nil only when DiD is set.
func FitPair(pair series.AlignedSeriesPair, k int) (*PairResult, error) {
	if pair.Treatment.Len() != pair.Control.Len() {
		return nil, fmt.Errorf("fit pair %q/%q: %w", pair.Treatment.Group, pair.Control.Group, series.ErrAlignment)
	}

	res := &PairResult{}
	res.Treatment, res.TreatmentErr = FitSeries(pair.Treatment, k)
	res.Control, res.ControlErr = FitSeries(pair.Control, k)

	if res.TreatmentErr != nil || res.ControlErr != nil {
		return res, errors.Join(res.TreatmentErr, res.ControlErr)
	}

	did := DiD(res.Treatment, res.Control)
	res.DiD = &did
	return res, nil
}
