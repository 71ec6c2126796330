package processor

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/alvinn6o/450-Project-2-Team-2/src/utils"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrMissingColumn 输入表缺少必需列
var ErrMissingColumn = errors.New("missing required column")

// 州代码：逗号后第一个两位大写字母
var stateRe = regexp.MustCompile(`,\s*([A-Z]{2})`)

// 中位数填充的时间类列
var medianColumns = []string{ColArrDelay, ColArrDel15}

// CleanReport 清洗阶段的统计信息
type CleanReport struct {
	RowsRead    int                `json:"rows_read"`
	RowsKept    int                `json:"rows_kept"`
	RowsDropped int                `json:"rows_dropped"`
	Imputed     map[string]int     `json:"imputed"`
	FillValues  map[string]float64 `json:"-"`
}

func (r CleanReport) String() string {
	parts := make([]string, 0, len(r.Imputed))
	for _, col := range append(causeColumns(), medianColumns...) {
		if n := r.Imputed[col]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", col, n))
		}
	}
	imputed := "无"
	if len(parts) > 0 {
		imputed = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("读取%d行，保留%d行，剔除%d行，填充缺失值: %s",
		r.RowsRead, r.RowsKept, r.RowsDropped, imputed)
}

// ValidateColumns 检查必需列，缺失时返回包装了 ErrMissingColumn 的错误
func ValidateColumns(df dataframe.DataFrame) error {
	if missing := utils.MissingColumns(df, RequiredColumns); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// Clean 缺失值填充 -> 解析州 -> 计算指标 -> 剔除关键字段缺失的行
// 填充基于整张原始表计算，不随后续筛选变化
func Clean(raw dataframe.DataFrame) (dataframe.DataFrame, CleanReport, error) {
	report := CleanReport{
		RowsRead:   raw.Nrow(),
		Imputed:    make(map[string]int),
		FillValues: make(map[string]float64),
	}
	if raw.Err != nil {
		return raw, report, raw.Err
	}
	if err := ValidateColumns(raw); err != nil {
		return raw, report, err
	}

	df := raw.Copy()

	// 1. 计数列用众数填充
	for _, col := range causeColumns() {
		filled, fill, n := imputeMode(df.Col(col))
		df = df.Mutate(filled)
		report.Imputed[col] = n
		report.FillValues[col] = fill
	}

	// 2. 时间类列用中位数填充
	for _, col := range medianColumns {
		filled, fill, n := imputeMedian(df.Col(col))
		df = df.Mutate(filled)
		report.Imputed[col] = n
		report.FillValues[col] = fill
	}
	if df.Err != nil {
		return df, report, fmt.Errorf("填充缺失值失败: %w", df.Err)
	}

	// 3. 解析州代码
	airports := df.Col(ColAirportName).Records()
	states := make([]string, len(airports))
	for i, name := range airports {
		states[i] = ExtractState(name)
	}
	df = df.Mutate(series.New(states, series.String, ColState))

	// 4. 派生指标
	df, err := DeriveMetrics(df)
	if err != nil {
		return df, report, err
	}

	// 5. 剔除缺少关键字段的行
	keep := keepIndexes(df)
	df = df.Subset(keep)
	if df.Err != nil {
		return df, report, fmt.Errorf("剔除无效行失败: %w", df.Err)
	}

	report.RowsKept = df.Nrow()
	report.RowsDropped = report.RowsRead - report.RowsKept
	return df, report, nil
}

// ExtractState 从 "Atlanta, GA: Hartsfield-Jackson" 中取出 GA，取不到时返回 Unknown
func ExtractState(airportName string) string {
	m := stateRe.FindStringSubmatch(airportName)
	if m == nil {
		return UnknownState
	}
	return m[1]
}

// keepIndexes arr_flights、on_time_percent、carrier_name、year 均有效的行
func keepIndexes(df dataframe.DataFrame) []int {
	flights := df.Col(ColArrFlights).Float()
	onTime := df.Col(ColOnTimePercent).Float()
	carriers := df.Col(ColCarrierName)
	years := df.Col(ColYear)

	keep := make([]int, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		if math.IsNaN(flights[i]) || !utils.IsFinite(onTime[i]) {
			continue
		}
		carrier := carriers.Elem(i)
		if carrier.IsNA() || strings.TrimSpace(carrier.String()) == "" {
			continue
		}
		if years.Elem(i).IsNA() {
			continue
		}
		keep = append(keep, i)
	}
	return keep
}

// imputeMode 用出现次数最多的值填充缺失，次数相同取最小值；整列缺失时填0
func imputeMode(s series.Series) (series.Series, float64, int) {
	vals := s.Float()
	counts := make(map[float64]int)
	for _, v := range vals {
		if !math.IsNaN(v) {
			counts[v]++
		}
	}

	mode, best := 0.0, 0
	for v, n := range counts {
		if n > best || (n == best && v < mode) {
			mode, best = v, n
		}
	}

	filled, n := fillMissing(vals, mode)
	return series.New(filled, series.Float, s.Name), mode, n
}

// imputeMedian 用中位数填充缺失；整列缺失时保持原样
func imputeMedian(s series.Series) (series.Series, float64, int) {
	vals := s.Float()
	present := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return series.New(vals, series.Float, s.Name), math.NaN(), 0
	}

	sort.Float64s(present)
	median := series.New(present, series.Float, s.Name).Median()
	filled, n := fillMissing(vals, median)
	return series.New(filled, series.Float, s.Name), median, n
}

func fillMissing(vals []float64, fill float64) ([]float64, int) {
	out := make([]float64, len(vals))
	n := 0
	for i, v := range vals {
		if math.IsNaN(v) {
			out[i] = fill
			n++
			continue
		}
		out[i] = v
	}
	return out, n
}
