package processor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alvinn6o/450-Project-2-Team-2/src/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrUnknownViewMode 视图模式既不是 all 也不是 dominant
var ErrUnknownViewMode = errors.New("unknown view mode")

// Enrich 追加 delay_percent、delay_share 及其展示标签和原因名称
func Enrich(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return df, df.Err
	}

	total := df.Col(ColTotalDelays).Float()
	flights := df.Col(ColArrFlights).Float()
	count := df.Col(ColDelayCount).Float()
	types := df.Col(ColDelayType).Records()

	n := df.Nrow()
	percent := make([]float64, n)
	percentLabel := make([]string, n)
	share := make([]float64, n)
	shareLabel := make([]string, n)
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		percent[i] = DelayPercent(total[i], flights[i])
		percentLabel[i] = utils.FormatPercent(percent[i], 3)
		share[i] = DelayShare(count[i], total[i])
		shareLabel[i] = utils.FormatPercent(share[i], 2)
		labels[i] = Cause(types[i]).Label()
	}

	df = df.Mutate(series.New(labels, series.String, ColDelayLabel)).
		Mutate(series.New(percent, series.Float, ColDelayPercent)).
		Mutate(series.New(percentLabel, series.String, ColDelayPercentLabel)).
		Mutate(series.New(share, series.Float, ColDelayShare)).
		Mutate(series.New(shareLabel, series.String, ColDelayShareLabel))
	if df.Err != nil {
		return df, fmt.Errorf("计算延误占比失败: %w", df.Err)
	}
	return df, nil
}

// ViewMode 散点图的两种视图：全部原因 / 每组只保留主要原因
type ViewMode interface {
	Name() string
	Collapse(df dataframe.DataFrame) (dataframe.DataFrame, error)
}

const (
	ModeAll      = "all"
	ModeDominant = "dominant"
)

var (
	AllCauses     ViewMode = allCauses{}
	DominantCause ViewMode = dominantCause{}
)

// ParseViewMode 空字符串按 all 处理
func ParseViewMode(s string) (ViewMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", ModeAll:
		return AllCauses, nil
	case ModeDominant:
		return DominantCause, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownViewMode, s)
	}
}

type allCauses struct{}

func (allCauses) Name() string { return ModeAll }

func (allCauses) Collapse(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	return df, nil
}

type dominantCause struct{}

func (dominantCause) Name() string { return ModeDominant }

// Collapse 按 GroupKey 分组，每组保留 delay_count 最大的一行，相同时取先出现的行
// 组按首次出现的顺序输出
func (dominantCause) Collapse(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return df, df.Err
	}
	if df.Nrow() == 0 {
		return df, nil
	}

	keys := GroupKeys(df)
	count := df.Col(ColDelayCount).Float()

	best := make(map[string]int)
	order := make([]string, 0)
	for i, k := range keys {
		j, seen := best[k]
		if !seen {
			best[k] = i
			order = append(order, k)
			continue
		}
		if greater(count[i], count[j]) {
			best[k] = i
		}
	}

	idx := make([]int, len(order))
	for i, k := range order {
		idx[i] = best[k]
	}
	out := df.Subset(idx)
	if out.Err != nil {
		return out, fmt.Errorf("提取主要原因失败: %w", out.Err)
	}
	return out, nil
}

// greater a > b，NaN 视为最小
func greater(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a > b
}

// GroupKeys 每行的分组键:
// airport_name, year, state, carrier_name, arr_flights, on_time_percent, total_delays, arr_delay
func GroupKeys(df dataframe.DataFrame) []string {
	strCols := [][]string{
		df.Col(ColAirportName).Records(),
		df.Col(ColYear).Records(),
		df.Col(ColState).Records(),
		df.Col(ColCarrierName).Records(),
	}
	floatCols := [][]float64{
		df.Col(ColArrFlights).Float(),
		df.Col(ColOnTimePercent).Float(),
		df.Col(ColTotalDelays).Float(),
		df.Col(ColArrDelay).Float(),
	}

	keys := make([]string, df.Nrow())
	var b strings.Builder
	for i := range keys {
		b.Reset()
		for _, c := range strCols {
			b.WriteString(c[i])
			b.WriteByte(0)
		}
		for _, c := range floatCols {
			b.WriteString(strconv.FormatFloat(c[i], 'g', -1, 64))
			b.WriteByte(0)
		}
		keys[i] = b.String()
	}
	return keys
}
