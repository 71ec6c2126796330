package processor

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// TotalDelays 五种原因的延误架次之和
func TotalDelays(carrier, weather, nas, security, lateAircraft float64) float64 {
	return carrier + weather + nas + security + lateAircraft
}

// OnTimePercent 准点率 (1 - arr_del15/arr_flights) * 100
// arr_flights 为 0 时结果为 NaN 或 Inf，由清洗阶段剔除
func OnTimePercent(arrDel15, arrFlights float64) float64 {
	return (1 - arrDel15/arrFlights) * 100
}

// DelayPercent 延误航班占比 total_delays/arr_flights * 100
func DelayPercent(totalDelays, arrFlights float64) float64 {
	return totalDelays / arrFlights * 100
}

// DelayShare 某原因在该记录全部延误中的占比，total_delays 为 0 时为 NaN
func DelayShare(delayCount, totalDelays float64) float64 {
	return delayCount / totalDelays * 100
}

// DeriveMetrics 追加 total_delays 与 on_time_percent 两列
func DeriveMetrics(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	causes := make([][]float64, len(CauseOrder))
	for i, c := range CauseOrder {
		causes[i] = df.Col(string(c)).Float()
	}
	del15 := df.Col(ColArrDel15).Float()
	flights := df.Col(ColArrFlights).Float()

	total := make([]float64, df.Nrow())
	onTime := make([]float64, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		total[i] = TotalDelays(causes[0][i], causes[1][i], causes[2][i], causes[3][i], causes[4][i])
		onTime[i] = OnTimePercent(del15[i], flights[i])
	}

	df = df.Mutate(series.New(total, series.Float, ColTotalDelays)).
		Mutate(series.New(onTime, series.Float, ColOnTimePercent))
	if df.Err != nil {
		return df, fmt.Errorf("计算指标失败: %w", df.Err)
	}
	return df, nil
}
