package processor

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Melt 把五个原因计数列展开成长表 (delay_type, delay_count)
// 每条清洗后的记录按 CauseOrder 依次生成五行，其余列原样复制
func Melt(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return df, df.Err
	}

	n := df.Nrow() * len(CauseOrder)
	var (
		years     = make([]int, 0, n)
		carriers  = make([]string, 0, n)
		airports  = make([]string, 0, n)
		states    = make([]string, 0, n)
		flights   = make([]float64, 0, n)
		onTime    = make([]float64, 0, n)
		total     = make([]float64, 0, n)
		arrDelay  = make([]float64, 0, n)
		delayType = make([]string, 0, n)
		count     = make([]float64, 0, n)
	)

	yearCol := df.Col(ColYear)
	carrierCol := df.Col(ColCarrierName).Records()
	airportCol := df.Col(ColAirportName).Records()
	stateCol := df.Col(ColState).Records()
	flightCol := df.Col(ColArrFlights).Float()
	onTimeCol := df.Col(ColOnTimePercent).Float()
	totalCol := df.Col(ColTotalDelays).Float()
	arrDelayCol := df.Col(ColArrDelay).Float()
	causeCols := make([][]float64, len(CauseOrder))
	for i, c := range CauseOrder {
		causeCols[i] = df.Col(string(c)).Float()
	}

	for i := 0; i < df.Nrow(); i++ {
		year, err := yearCol.Elem(i).Int()
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("第%d行年份无效: %w", i, err)
		}
		for ci, c := range CauseOrder {
			years = append(years, year)
			carriers = append(carriers, carrierCol[i])
			airports = append(airports, airportCol[i])
			states = append(states, stateCol[i])
			flights = append(flights, flightCol[i])
			onTime = append(onTime, onTimeCol[i])
			total = append(total, totalCol[i])
			arrDelay = append(arrDelay, arrDelayCol[i])
			delayType = append(delayType, string(c))
			count = append(count, causeCols[ci][i])
		}
	}

	long := dataframe.New(
		series.New(years, series.Int, ColYear),
		series.New(carriers, series.String, ColCarrierName),
		series.New(airports, series.String, ColAirportName),
		series.New(states, series.String, ColState),
		series.New(flights, series.Float, ColArrFlights),
		series.New(onTime, series.Float, ColOnTimePercent),
		series.New(total, series.Float, ColTotalDelays),
		series.New(arrDelay, series.Float, ColArrDelay),
		series.New(delayType, series.String, ColDelayType),
		series.New(count, series.Float, ColDelayCount),
	)
	if long.Err != nil {
		return long, fmt.Errorf("展开长表失败: %w", long.Err)
	}
	return long, nil
}
