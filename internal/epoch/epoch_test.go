package epoch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HPAI_Vaccination_ITS_Project/internal/series"
)

func vaccinationWindow(t *testing.T) Window {
	t.Helper()
	w, err := NewWindow(
		time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return w
}

func TestClassify_BoundaryExactness(t *testing.T) {
	w := vaccinationWindow(t)

	assert.Equal(t, Pre, w.Classify(series.NewMonth(2023, time.September)))
	assert.Equal(t, During, w.Classify(series.NewMonth(2023, time.October)))
	assert.Equal(t, During, w.Classify(series.NewMonth(2024, time.September)))
	assert.Equal(t, Post, w.Classify(series.NewMonth(2024, time.October)))
}

func TestClassify_MidMonthStartUsesMonthStart(t *testing.T) {
	w := Window{
		Start: time.Date(2023, 10, 15, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC),
	}
	// October 2023 starts before the 15th, so it is still PRE.
	assert.Equal(t, Pre, w.Classify(series.NewMonth(2023, time.October)))
	assert.Equal(t, During, w.Classify(series.NewMonth(2023, time.November)))
	assert.Equal(t, During, w.Classify(series.NewMonth(2024, time.October)))
	assert.Equal(t, Post, w.Classify(series.NewMonth(2024, time.November)))
}

func TestPartition(t *testing.T) {
	first := series.NewMonth(2023, time.August)
	s := series.New("France", first, make([]int, 16))
	pair := series.AlignedSeriesPair{Treatment: s, Control: s}

	labels, err := Partition(pair, vaccinationWindow(t))
	require.NoError(t, err)
	require.Len(t, labels, 16)

	assert.Equal(t, []Epoch{Pre, Pre, During}, labels[:3])
	assert.Equal(t, Post, labels[14])
	assert.Equal(t, map[Epoch]int{Pre: 2, During: 12, Post: 2}, Counts(labels))
	assert.Equal(t, []int{14, 15}, Mask(labels, Post))

	k, err := InterventionIndex(labels)
	require.NoError(t, err)
	assert.Equal(t, 2, k)
}

func TestPartition_InvalidWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := Partition(series.AlignedSeriesPair{}, Window{Start: now, End: now})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidWindow))

	_, err = NewWindow(now, now.Add(-time.Hour))
	assert.True(t, errors.Is(err, ErrInvalidWindow))

	_, err = NewWindow(time.Time{}, now)
	assert.True(t, errors.Is(err, ErrInvalidWindow))
}

func TestNewWindow_ConvertsToUTC(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	w, err := NewWindow(time.Date(2023, 10, 1, 1, 0, 0, 0, paris), time.Date(2024, 10, 1, 1, 0, 0, 0, paris))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC), w.Start)
}

func TestInterventionIndex_Errors(t *testing.T) {
	_, err := InterventionIndex([]Epoch{Pre, Pre, Pre})
	assert.True(t, errors.Is(err, ErrNoIntervention))

	_, err = InterventionIndex([]Epoch{During, During, Post})
	assert.True(t, errors.Is(err, ErrNoIntervention))
}

func TestParseAndString(t *testing.T) {
	for _, e := range All {
		got, err := Parse(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
	_, err := Parse("LATER")
	assert.Error(t, err)
}
