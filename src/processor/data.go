// data.go
package processor

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/alvinn6o/450-Project-2-Team-2/src/utils"
	"github.com/go-gota/gota/dataframe"
)

// Context 启动时构建一次的只读数据：清洗并展开后的长表
// 多个请求可以并发调用 Run，各自只写自己的结果
type Context struct {
	base    dataframe.DataFrame
	report  CleanReport
	options Options
	jitter  *Jitterer
}

// Option 构建 Context 时的可选项
type Option func(*Context)

// WithJitterer 指定抖动器，例如固定种子用于快照
func WithJitterer(j *Jitterer) Option {
	return func(c *Context) {
		c.jitter = j
	}
}

// NewContext 清洗 -> 计算指标 -> 展开长表，只执行一次
func NewContext(raw dataframe.DataFrame, opts ...Option) (*Context, error) {
	cleaned, report, err := Clean(raw)
	if err != nil {
		return nil, fmt.Errorf("数据清洗失败: %w", err)
	}

	long, err := Melt(cleaned)
	if err != nil {
		return nil, err
	}

	c := &Context{
		base:   long,
		report: report,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.jitter == nil {
		c.jitter = NewJitterer(nil)
	}
	c.options = buildOptions(cleaned)
	return c, nil
}

// Report 清洗统计
func (c *Context) Report() CleanReport {
	return c.report
}

// Rows 长表行数
func (c *Context) Rows() int {
	return c.base.Nrow()
}

// Base 长表的副本
func (c *Context) Base() dataframe.DataFrame {
	return c.base.Copy()
}

// Options 下拉框可选值
func (c *Context) Options() Options {
	return c.options
}

// Result 一次查询的输出
type Result struct {
	Spec     FilterSpec          `json:"-"`
	Mode     string              `json:"mode"`
	Rows     dataframe.DataFrame `json:"-"`
	Pie      PieSummary          `json:"pie"`
	Jittered bool                `json:"jittered"`
}

// Run 筛选 -> 计算占比 -> 视图模式 -> {饼图汇总, 抖动}
// 饼图基于抖动前的数据
func (c *Context) Run(ctx context.Context, spec FilterSpec, mode ViewMode) (*Result, error) {
	if mode == nil {
		mode = AllCauses
	}

	filtered, err := spec.Apply(c.base)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enriched, err := Enrich(filtered)
	if err != nil {
		return nil, err
	}

	rows, err := mode.Collapse(enriched)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pie, err := Summarize(rows)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Spec: spec,
		Mode: mode.Name(),
		Rows: rows,
		Pie:  pie,
	}

	// 只有不限制原因时五种原因同时显示，才需要抖动
	if spec.Causes.IsAll() {
		jittered, err := c.jitter.Apply(rows)
		if err != nil {
			return nil, err
		}
		res.Rows = jittered
		res.Jittered = true
	}
	return res, nil
}

// Title 饼图标题
func (r *Result) Title() string {
	return r.Spec.Title()
}

// ViewRow 散点图的一行。非有限数值为 nil，对应标签为 NaN%
type ViewRow struct {
	Year              int      `json:"year"`
	CarrierName       string   `json:"carrier_name"`
	AirportName       string   `json:"airport_name"`
	State             string   `json:"state"`
	ArrFlights        float64  `json:"arr_flights"`
	OnTimePercent     float64  `json:"on_time_percent"`
	TotalDelays       float64  `json:"total_delays"`
	ArrDelay          *float64 `json:"arr_delay"`
	DelayType         Cause    `json:"delay_type"`
	DelayLabel        string   `json:"delay_label"`
	DelayCount        float64  `json:"delay_count"`
	DelayPercent      *float64 `json:"delay_percent"`
	DelayPercentLabel string   `json:"delay_percent_label"`
	DelayShare        *float64 `json:"delay_share"`
	DelayShareLabel   string   `json:"delay_share_label"`
}

// Records 把结果表转换成结构体切片
func (r *Result) Records() []ViewRow {
	df := r.Rows
	n := df.Nrow()
	rows := make([]ViewRow, n)
	if n == 0 {
		return rows
	}

	years := df.Col(ColYear).Records()
	carriers := df.Col(ColCarrierName).Records()
	airports := df.Col(ColAirportName).Records()
	states := df.Col(ColState).Records()
	flights := df.Col(ColArrFlights).Float()
	onTime := df.Col(ColOnTimePercent).Float()
	total := df.Col(ColTotalDelays).Float()
	arrDelay := df.Col(ColArrDelay).Float()
	types := df.Col(ColDelayType).Records()
	labels := df.Col(ColDelayLabel).Records()
	count := df.Col(ColDelayCount).Float()
	percent := df.Col(ColDelayPercent).Float()
	percentLabel := df.Col(ColDelayPercentLabel).Records()
	share := df.Col(ColDelayShare).Float()
	shareLabel := df.Col(ColDelayShareLabel).Records()

	for i := range rows {
		year, _ := strconv.Atoi(years[i])
		rows[i] = ViewRow{
			Year:              year,
			CarrierName:       carriers[i],
			AirportName:       airports[i],
			State:             states[i],
			ArrFlights:        flights[i],
			OnTimePercent:     onTime[i],
			TotalDelays:       total[i],
			ArrDelay:          finite(arrDelay[i]),
			DelayType:         Cause(types[i]),
			DelayLabel:        labels[i],
			DelayCount:        count[i],
			DelayPercent:      finite(percent[i]),
			DelayPercentLabel: percentLabel[i],
			DelayShare:        finite(share[i]),
			DelayShareLabel:   shareLabel[i],
		}
	}
	return rows
}

func finite(v float64) *float64 {
	if !utils.IsFinite(v) {
		return nil
	}
	return &v
}

// CauseOption 原因下拉框选项
type CauseOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Options 各筛选维度的可选值，均已排序去重
type Options struct {
	Years    []int         `json:"years"`
	Carriers []string      `json:"carriers"`
	States   []string      `json:"states"`
	Causes   []CauseOption `json:"causes"`
}

func buildOptions(df dataframe.DataFrame) Options {
	yearSet := make(map[int]struct{})
	for _, y := range df.Col(ColYear).Records() {
		if v, err := strconv.Atoi(y); err == nil {
			yearSet[v] = struct{}{}
		}
	}
	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)

	causes := []CauseOption{{Label: SelectAll, Value: SelectAll}}
	for _, c := range CauseOrder {
		causes = append(causes, CauseOption{Label: c.OptionLabel(), Value: string(c)})
	}

	return Options{
		Years:    years,
		Carriers: distinctSorted(df.Col(ColCarrierName).Records()),
		States:   distinctSorted(df.Col(ColState).Records()),
		Causes:   causes,
	}
}

func distinctSorted(values []string) []string {
	set := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
