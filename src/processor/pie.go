package processor

import (
	"fmt"
	"math"
	"sort"

	"github.com/alvinn6o/450-Project-2-Team-2/src/utils"
	"github.com/go-gota/gota/dataframe"
)

// PieStatus 饼图汇总的状态
type PieStatus string

const (
	StatusOK       PieStatus = "ok"
	StatusNoData   PieStatus = "no_data"
	StatusNoDelays PieStatus = "no_delays"
)

// 空状态时图表中央显示的文字
const (
	MessageNoData   = "No data available"
	MessageNoDelays = "No delays recorded"
)

// PieSlice 单个原因的汇总
type PieSlice struct {
	Cause   Cause   `json:"cause"`
	Label   string  `json:"label"`
	Count   float64 `json:"count"`
	Percent float64 `json:"percent"`
	Color   string  `json:"color"`
}

// PieSummary 按原因汇总的延误架次
type PieSummary struct {
	Status  PieStatus  `json:"status"`
	Message string     `json:"message,omitempty"`
	Total   float64    `json:"total"`
	Slices  []PieSlice `json:"slices"`
}

// Empty 无数据或全为0
func (p PieSummary) Empty() bool {
	return p.Status != StatusOK
}

// Summarize 按 delay_type 分组求和 delay_count，结果按固定原因顺序输出
// 输入为空返回 StatusNoData；有数据但合计为0返回 StatusNoDelays
func Summarize(df dataframe.DataFrame) (PieSummary, error) {
	if df.Err != nil {
		return PieSummary{}, df.Err
	}
	if df.Nrow() == 0 {
		return PieSummary{Status: StatusNoData, Message: MessageNoData, Slices: []PieSlice{}}, nil
	}
	if missing := utils.MissingColumns(df, []string{ColDelayType, ColDelayCount}); len(missing) > 0 {
		return PieSummary{}, fmt.Errorf("%w: %v", ErrMissingColumn, missing)
	}

	types := df.Col(ColDelayType).Records()
	counts := df.Col(ColDelayCount).Float()
	sums := make(map[Cause]float64)
	for i, t := range types {
		v := counts[i]
		if math.IsNaN(v) {
			v = 0 // NaN 按0计
		}
		sums[Cause(t)] += v
	}

	slices := make([]PieSlice, 0, len(sums))
	total := 0.0
	for cause, sum := range sums {
		total += sum
		slices = append(slices, PieSlice{
			Cause: cause,
			Label: cause.Label(),
			Count: sum,
			Color: cause.Color(),
		})
	}

	sort.SliceStable(slices, func(i, j int) bool {
		ci, cj := causeIndex(slices[i].Cause), causeIndex(slices[j].Cause)
		if ci != cj {
			return ci < cj
		}
		return slices[i].Cause < slices[j].Cause
	})

	if total == 0 {
		return PieSummary{Status: StatusNoDelays, Message: MessageNoDelays, Slices: slices}, nil
	}
	for i := range slices {
		slices[i].Percent = slices[i].Count / total * 100
	}
	return PieSummary{Status: StatusOK, Total: total, Slices: slices}, nil
}
