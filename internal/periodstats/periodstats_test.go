package periodstats

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HPAI_Vaccination_ITS_Project/internal/epoch"
	"HPAI_Vaccination_ITS_Project/internal/series"
)

func TestDescribe(t *testing.T) {
	s := Describe([]float64{1, 2, 3, 4})
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, 2.5, s.Median, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.Std, 1e-12)
	assert.Equal(t, 10, s.Total)
	assert.Equal(t, 4, s.MonthCount)
	assert.True(t, s.Defined())
}

func TestDescribe_EmptyIsUndefinedNotZero(t *testing.T) {
	s := Describe(nil)
	assert.True(t, IsUndefined(s.Mean))
	assert.True(t, IsUndefined(s.Median))
	assert.True(t, IsUndefined(s.Std))
	assert.Equal(t, 0, s.MonthCount)
	assert.False(t, s.Defined())

	zeros := Describe([]float64{0, 0, 0})
	assert.True(t, zeros.Defined())
	assert.Equal(t, 0.0, zeros.Mean)
	assert.Equal(t, 0.0, zeros.Std)
}

func TestDescribe_SingleMonthHasNoStd(t *testing.T) {
	s := Describe([]float64{7})
	assert.Equal(t, 7.0, s.Mean)
	assert.True(t, IsUndefined(s.Std))
}

func labelled() (series.MonthlySeries, series.MonthlySeries, []epoch.Epoch) {
	first := series.NewMonth(2023, time.July)
	fr := series.New("France", first, []int{10, 12, 8, 2, 1, 0, 3})
	ctl := series.New("control", first, []int{40, 30, 20, 35, 25, 45, 50})
	labels := []epoch.Epoch{epoch.Pre, epoch.Pre, epoch.Pre, epoch.During, epoch.During, epoch.During, epoch.During}
	return fr, ctl, labels
}

func TestSummarize(t *testing.T) {
	fr, ctl, labels := labelled()
	table, err := Summarize([]series.MonthlySeries{fr, ctl}, labels)
	require.NoError(t, err)
	assert.Len(t, table, 6)

	pre, ok := table.Get("France", epoch.Pre)
	require.True(t, ok)
	assert.InDelta(t, 10.0, pre.Mean, 1e-12)
	assert.Equal(t, 30, pre.Total)
	assert.Equal(t, 3, pre.MonthCount)

	during, _ := table.Get("France", epoch.During)
	assert.InDelta(t, 1.5, during.Mean, 1e-12)
	assert.InDelta(t, 1.5, during.Median, 1e-12)

	post, ok := table.Get("control", epoch.Post)
	require.True(t, ok)
	assert.Equal(t, 0, post.MonthCount)
	assert.True(t, IsUndefined(post.Mean))

	keys := table.Keys()
	assert.Equal(t, Key{Group: "France", Epoch: epoch.Pre}, keys[0])
	assert.Equal(t, Key{Group: "control", Epoch: epoch.Post}, keys[5])

	assert.InDelta(t, 85.0, ReductionPercent(pre, during), 1e-9)
	assert.True(t, IsUndefined(ReductionPercent(post, during)))
}

func TestSummarize_LengthMismatch(t *testing.T) {
	fr, _, labels := labelled()
	_, err := Summarize([]series.MonthlySeries{fr}, labels[:3])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
	assert.Contains(t, err.Error(), "France")
}

func TestSeasonalProfile(t *testing.T) {
	first := series.NewMonth(2022, time.January)
	counts := make([]int, 24)
	for i := range counts {
		counts[i] = i
	}
	s := series.New("France", first, counts)
	labels := make([]epoch.Epoch, 24)
	for i := 12; i < 24; i++ {
		labels[i] = epoch.During
	}

	pre, err := SeasonalProfile(s, labels, epoch.Pre)
	require.NoError(t, err)
	assert.Equal(t, 0.0, pre.Of(time.January))
	assert.Equal(t, 11.0, pre.Of(time.December))

	post, err := SeasonalProfile(s, labels, epoch.Post)
	require.NoError(t, err)
	assert.True(t, IsUndefined(post.Of(time.June)))

	_, err = SeasonalProfile(s, labels[:5], epoch.Pre)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestCompare_ExactSmallSample(t *testing.T) {
	res := Compare([]float64{1, 2, 3}, []float64{4, 5, 6})
	require.False(t, res.Undefined)
	assert.Equal(t, MethodMannWhitney, res.Method)
	assert.Equal(t, 0.0, res.Statistic)
	assert.InDelta(t, 0.1, res.PValue, 1e-12)
	assert.InDelta(t, 3.0, res.EffectSize, 1e-12)

	res = Compare([]float64{1, 2, 3}, []float64{4, 5, 6, 7, 8})
	assert.InDelta(t, 2.0/56.0, res.PValue, 1e-12)
}

func TestCompare_AsymptoticNoTies(t *testing.T) {
	var a, b []float64
	for i := 1; i <= 10; i++ {
		a = append(a, float64(i))
		b = append(b, float64(i+10))
	}
	res := Compare(a, b)
	assert.Equal(t, 0.0, res.Statistic)
	assert.InDelta(t, 1.826717911095504e-4, res.PValue, 1e-9)
}

func TestCompare_AsymptoticWithTies(t *testing.T) {
	a := []float64{5, 3, 4, 4, 6, 2, 4, 5, 7, 3}
	b := []float64{1, 2, 2, 3, 1, 0, 2, 4, 1, 2}

	res := Compare(a, b)
	assert.Equal(t, 91.5, res.Statistic)
	assert.InDelta(t, 0.0016564789839753936, res.PValue, 1e-9)
	assert.InDelta(t, -1.8838513473874812, res.EffectSize, 1e-9)

	rev := Compare(b, a)
	assert.InDelta(t, 100-91.5, rev.Statistic, 1e-12)
	assert.InDelta(t, res.PValue, rev.PValue, 1e-12)
}

func TestCompare_AllTied(t *testing.T) {
	res := Compare([]float64{0, 0, 0}, []float64{0, 0, 0, 0})
	assert.False(t, res.Undefined)
	assert.Equal(t, 1.0, res.PValue)
	assert.True(t, IsUndefined(res.EffectSize))
}

func TestCompare_TooFewObservations(t *testing.T) {
	res := Compare([]float64{1}, []float64{1, 2, 3})
	assert.True(t, res.Undefined)
	assert.True(t, IsUndefined(res.PValue))
	assert.True(t, IsUndefined(res.Statistic))
	assert.Contains(t, res.Reason, "at least 2")
}

func TestUFrequencies(t *testing.T) {
	// m=2, n=2: U in 0..4 with counts 1,1,2,1,1
	assert.Equal(t, []float64{1, 1, 2, 1, 1}, uFrequencies(2, 2))
	total := 0.0
	for _, f := range uFrequencies(4, 6) {
		total += f
	}
	assert.Equal(t, 210.0, total) // C(10,4)
}

func TestWelchT(t *testing.T) {
	a := []float64{5, 3, 4, 4, 6, 2, 4, 5, 7, 3}
	b := []float64{1, 2, 2, 3, 1, 0, 2, 4, 1, 2}

	res := WelchT(a, b)
	require.False(t, res.Undefined)
	assert.InDelta(t, 4.212419672262978, res.Statistic, 1e-9)
	assert.InDelta(t, 6.001449551045868e-4, res.PValue, 1e-6)

	same := WelchT([]float64{1, 2, 3}, []float64{3, 2, 1})
	assert.InDelta(t, 1.0, same.PValue, 1e-12)

	flat := WelchT([]float64{2, 2}, []float64{2, 2})
	assert.True(t, flat.Undefined)
}

func TestCorrelation(t *testing.T) {
	r, err := Correlation([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-12)

	r, err = Correlation([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, r, 1e-12)

	_, err = Correlation([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.True(t, errors.Is(err, ErrConstantSeries))

	_, err = Correlation([]float64{1, 2}, []float64{1, 2, 3})
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}
