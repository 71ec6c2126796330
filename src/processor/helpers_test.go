package processor

import (
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/require"
)

var rawHeader = []string{
	ColYear, ColCarrierName, ColAirportName, ColArrFlights, ColArrDel15, ColArrDelay,
	ColCarrierCt, ColWeatherCt, ColNasCt, ColSecurityCt, ColLateAircraftC,
}

var rawTypes = map[string]series.Type{
	ColYear:          series.Int,
	ColCarrierName:   series.String,
	ColAirportName:   series.String,
	ColArrFlights:    series.Float,
	ColArrDel15:      series.Float,
	ColArrDelay:      series.Float,
	ColCarrierCt:     series.Float,
	ColWeatherCt:     series.Float,
	ColNasCt:         series.Float,
	ColSecurityCt:    series.Float,
	ColLateAircraftC: series.Float,
}

// rawFrame 按原始文件的列构建表，空字符串为缺失值
func rawFrame(t *testing.T, rows ...[]string) dataframe.DataFrame {
	t.Helper()
	records := append([][]string{rawHeader}, rows...)
	df := dataframe.LoadRecords(records,
		dataframe.NaNValues([]string{"", "NA"}),
		dataframe.WithTypes(rawTypes),
	)
	require.NoError(t, df.Err)
	return df
}

// 三条记录: 2020 ATL Delta, 2020 SEA Alaska, 2021 BOS Delta(无延误)
func sampleRaw(t *testing.T) dataframe.DataFrame {
	return rawFrame(t,
		[]string{"2020", "Delta Air Lines Inc.", "Atlanta, GA: Hartsfield-Jackson", "100", "10", "300", "5", "2", "1", "0", "2"},
		[]string{"2020", "Alaska Airlines Inc.", "Seattle, WA: Seattle/Tacoma", "250", "40", "900", "10", "5", "15", "1", "9"},
		[]string{"2021", "Delta Air Lines Inc.", "Boston, MA: Logan International", "80", "0", "0", "0", "0", "0", "0", "0"},
	)
}

func sampleLong(t *testing.T) dataframe.DataFrame {
	t.Helper()
	cleaned, _, err := Clean(sampleRaw(t))
	require.NoError(t, err)
	long, err := Melt(cleaned)
	require.NoError(t, err)
	return long
}

func sampleContext(t *testing.T) *Context {
	t.Helper()
	pc, err := NewContext(sampleRaw(t), WithJitterer(NewSeededJitterer(99)))
	require.NoError(t, err)
	return pc
}
