package processor

import (
	"math"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrich(t *testing.T) {
	long := sampleLong(t)
	df, err := Enrich(long)
	require.NoError(t, err)

	// 第一条记录: total 10, flights 100
	percent := df.Col(ColDelayPercent).Float()
	share := df.Col(ColDelayShare).Float()
	assert.Equal(t, 10.0, percent[0])
	assert.Equal(t, "10.0%", df.Col(ColDelayPercentLabel).Records()[0])
	assert.Equal(t, []float64{50, 20, 10, 0, 20}, share[:5])
	assert.Equal(t, "50.0%", df.Col(ColDelayShareLabel).Records()[0])
	assert.Equal(t, "Carrier Delay", df.Col(ColDelayLabel).Records()[0])

	// 第二条: total 40, flights 250
	assert.Equal(t, 16.0, percent[5])
	assert.Equal(t, 25.0, share[5])

	// 第三条: total 0，占比 NaN
	for i := 10; i < 15; i++ {
		assert.True(t, math.IsNaN(share[i]))
		assert.Equal(t, "NaN%", df.Col(ColDelayShareLabel).Records()[i])
		assert.Equal(t, 0.0, percent[i])
	}
}

func TestDelayPercentLabelPrecision(t *testing.T) {
	df := dataframe.New(
		series.New([]float64{1}, series.Float, ColTotalDelays),
		series.New([]float64{3}, series.Float, ColArrFlights),
		series.New([]float64{1}, series.Float, ColDelayCount),
		series.New([]string{string(CauseNAS)}, series.String, ColDelayType),
	)
	out, err := Enrich(df)
	require.NoError(t, err)
	assert.Equal(t, "33.333%", out.Col(ColDelayPercentLabel).Records()[0])
	assert.Equal(t, "100.0%", out.Col(ColDelayShareLabel).Records()[0])
	assert.Equal(t, "NAS Delay", out.Col(ColDelayLabel).Records()[0])
}

func TestParseViewMode(t *testing.T) {
	m, err := ParseViewMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAll, m.Name())

	m, err = ParseViewMode("Dominant")
	require.NoError(t, err)
	assert.Equal(t, ModeDominant, m.Name())

	_, err = ParseViewMode("stacked")
	assert.ErrorIs(t, err, ErrUnknownViewMode)
}

func TestAllCausesIsIdentity(t *testing.T) {
	long := sampleLong(t)
	out, err := AllCauses.Collapse(long)
	require.NoError(t, err)
	assert.Equal(t, long.Records(), out.Records())
}

func TestDominantCause(t *testing.T) {
	df, err := Enrich(sampleLong(t))
	require.NoError(t, err)

	out, err := DominantCause.Collapse(df)
	require.NoError(t, err)
	require.Equal(t, 3, out.Nrow(), "每条记录一行")

	// ATL: carrier_ct 5；SEA: nas_ct 15；BOS 全为 0，取第一个
	assert.Equal(t, []string{"carrier_ct", "nas_ct", "carrier_ct"}, out.Col(ColDelayType).Records())
	assert.Equal(t, []float64{5, 15, 0}, out.Col(ColDelayCount).Float())
	assert.Equal(t, df.Names(), out.Names())
}

func TestDominantCauseTieKeepsFirst(t *testing.T) {
	raw := rawFrame(t,
		[]string{"2020", "A", "X, GA: x", "100", "10", "10", "1", "4", "4", "0", "1"},
	)
	cleaned, _, err := Clean(raw)
	require.NoError(t, err)
	long, err := Melt(cleaned)
	require.NoError(t, err)

	out, err := DominantCause.Collapse(long)
	require.NoError(t, err)
	require.Equal(t, 1, out.Nrow())
	assert.Equal(t, string(CauseWeather), out.Col(ColDelayType).Records()[0])
}

func TestDominantCauseNaNCounts(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"X, GA: x", "X, GA: x"}, series.String, ColAirportName),
		series.New([]int{2020, 2020}, series.Int, ColYear),
		series.New([]string{"GA", "GA"}, series.String, ColState),
		series.New([]string{"A", "A"}, series.String, ColCarrierName),
		series.New([]float64{100, 100}, series.Float, ColArrFlights),
		series.New([]float64{90, 90}, series.Float, ColOnTimePercent),
		series.New([]float64{3, 3}, series.Float, ColTotalDelays),
		series.New([]float64{math.NaN(), math.NaN()}, series.Float, ColArrDelay),
		series.New([]string{"carrier_ct", "weather_ct"}, series.String, ColDelayType),
		series.New([]float64{math.NaN(), 3}, series.Float, ColDelayCount),
	)
	require.NoError(t, df.Err)

	out, err := DominantCause.Collapse(df)
	require.NoError(t, err)
	require.Equal(t, 1, out.Nrow(), "NaN 的 arr_delay 也能分到同一组")
	assert.Equal(t, "weather_ct", out.Col(ColDelayType).Records()[0])
}

func TestDominantCauseEmpty(t *testing.T) {
	long := sampleLong(t)
	empty, err := FilterSpec{Years: Only("1999")}.Apply(long)
	require.NoError(t, err)

	out, err := DominantCause.Collapse(empty)
	require.NoError(t, err)
	assert.Zero(t, out.Nrow())
}

func TestDominantCauseAfterCauseFilter(t *testing.T) {
	df, err := Enrich(sampleLong(t))
	require.NoError(t, err)
	filtered, err := FilterSpec{Causes: Only(string(CauseWeather), string(CauseLateAircraft))}.Apply(df)
	require.NoError(t, err)

	out, err := DominantCause.Collapse(filtered)
	require.NoError(t, err)
	// ATL: weather 2 / late 2 取 weather；SEA: late 9
	assert.Equal(t, []string{"weather_ct", "late_aircraft_ct", "weather_ct"}, out.Col(ColDelayType).Records())
}
