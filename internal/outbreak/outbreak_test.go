package outbreak

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `Country,observation date,Species,Latitude,Longitude
France,2023-01-15,Duck,44.1,0.5
Germany,2023-02-03 10:30:00,Chicken,52.5,13.4
France,not-a-date,Goose,,
,2023-03-01,Duck,1,1
Italy,15.03.2023,Turkey,999,12
Spain,2023-04-01T23:30:00-02:00,Duck,40.4,-3.7
`

func TestReadCSV(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, rows, 6)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "France", rows[0].Get("Country"))
	assert.Equal(t, "", rows[0].Get("missing column"))
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestReadCSV_TooManyColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestNormalize(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	res := NewNormalizer(DefaultColumns, nil).Normalize(rows)

	require.Len(t, res.Events, 4)
	require.Len(t, res.Skipped, 2)

	assert.Equal(t, 4, res.Skipped[0].Line)
	assert.True(t, errors.Is(res.Skipped[0], ErrBadDate))
	assert.Equal(t, 5, res.Skipped[1].Line)
	assert.True(t, errors.Is(res.Skipped[1], ErrEmptyGroup))

	fr := res.Events[0]
	assert.Equal(t, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), fr.Timestamp)
	assert.Equal(t, time.UTC, fr.Timestamp.Location())
	assert.Equal(t, "France", fr.Group)
	assert.Equal(t, "Duck", fr.Species)
	require.NotNil(t, fr.Location)
	assert.InDelta(t, 44.1, fr.Location.Lat, 1e-9)

	it := res.Events[2]
	assert.Equal(t, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), it.Timestamp)
	assert.Nil(t, it.Location, "out-of-range latitude must not drop the row")

	// 23:30 at -02:00 is already April 2nd in UTC.
	es := res.Events[3]
	assert.Equal(t, time.Date(2023, 4, 2, 1, 30, 0, 0, time.UTC), es.Timestamp)
}

func TestNormalize_NeverZeroTimestamp(t *testing.T) {
	rows := []RawRow{
		{Line: 2, Fields: map[string]string{"d": "", "g": "France"}},
		{Line: 3, Fields: map[string]string{"d": "2020-01-01", "g": "France"}},
	}
	res := NewNormalizer(Columns{Date: "d", Group: "g"}, []string{"2006-01-02"}).Normalize(rows)
	require.Len(t, res.Events, 1)
	for _, ev := range res.Events {
		assert.False(t, ev.Timestamp.IsZero())
	}
	assert.True(t, errors.Is(res.Skipped[0], ErrEmptyDate))
}

func TestFilterSpecies(t *testing.T) {
	events := []Event{{Species: "Duck"}, {Species: "swan"}, {Species: "turkey"}}
	assert.Len(t, FilterSpecies(events, DefaultSpecies), 2)
	assert.Len(t, FilterSpecies(events, nil), 3)
}

func TestSelectorSplit(t *testing.T) {
	events := []Event{
		{Country: "France", Group: "France"},
		{Country: "Germany", Group: "Germany"},
		{Country: "Italy", Group: "Italy"},
		{Country: "Poland", Group: "Poland"},
	}

	tr, ctl := Selector{Treatment: "France"}.Split(events, "treatment", "control")
	require.Len(t, tr, 1)
	assert.Equal(t, "treatment", tr[0].Group)
	assert.Equal(t, "France", tr[0].Country)
	assert.Len(t, ctl, 3)

	_, ctl = Selector{Treatment: "France", Controls: []string{"germany", "Poland"}}.Split(events, "t", "c")
	assert.Len(t, ctl, 2)

	_, ctl = Selector{Treatment: "France", Region: "Southern Europe", Regions: DefaultRegions}.Split(events, "t", "c")
	require.Len(t, ctl, 1)
	assert.Equal(t, "Italy", ctl[0].Country)
}

func TestCountByCountry(t *testing.T) {
	events := []Event{{Country: "B"}, {Country: "A"}, {Country: "C"}, {Country: "C"}}
	got := CountByCountry(events)
	assert.Equal(t, []CountryCount{{"C", 2}, {"A", 1}, {"B", 1}}, got)
}
