package datapush

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/alvinn6o/450-Project-2-Team-2/src/processor"
	"github.com/alvinn6o/450-Project-2-Team-2/src/utils"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNothingToDraw 没有可绘制的点或扇区
var ErrNothingToDraw = errors.New("nothing to draw")

// 默认图表尺寸
const (
	DefaultWidth  = 1024
	DefaultHeight = 640
)

// 散点大小范围(像素)，按 delay_percent 线性缩放
const (
	MinDotWidth = 3.0
	MaxDotWidth = 14.0
)

// pointStyle 只画点，不连线，点的大小取 widths[index]
func pointStyle(col drawing.Color, widths []float64) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    MinDotWidth,
		DotColor:    col,
		DotWidthProvider: func(_, _ chart.Range, index int, _, _ float64) float64 {
			if index < 0 || index >= len(widths) {
				return MinDotWidth
			}
			return widths[index]
		},
	}
}

// dotWidth 延误比例为空或非正时用最小尺寸
func dotWidth(percent *float64, maxPercent float64) float64 {
	if percent == nil || !utils.IsFinite(*percent) || *percent <= 0 || !(maxPercent > 0) {
		return MinDotWidth
	}
	ratio := math.Min(*percent/maxPercent, 1)
	return MinDotWidth + (MaxDotWidth-MinDotWidth)*ratio
}

func causeColor(c processor.Cause) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(c.Color(), "#"))
}

func chartSize(width, height int) (int, int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return width, height
}

// RenderScatter 航班数(x)对准点率(y)的散点图，每种原因一个序列
// 非有限的点跳过；没有任何点时返回 ErrNothingToDraw
func RenderScatter(w io.Writer, rows []processor.ViewRow, title string, width, height int) error {
	series, minX, maxX := scatterSeries(rows)
	if len(series) == 0 {
		return ErrNothingToDraw
	}

	// 只有一个x值时范围为0，go-chart会报错，两边各留一点
	pad := (maxX - minX) * 0.05
	if pad == 0 {
		pad = 1
	}

	width, height = chartSize(width, height)
	ch := chart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  "Arrival Flights",
			Range: &chart.ContinuousRange{Min: minX - pad, Max: maxX + pad},
		},
		YAxis: chart.YAxis{
			Name:  "On-time %",
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("渲染散点图失败: %w", err)
	}
	return nil
}

// scatterSeries 按原因分组的点序列以及x的范围
func scatterSeries(rows []processor.ViewRow) ([]chart.Series, float64, float64) {
	maxPercent := 0.0
	for _, r := range rows {
		if r.DelayPercent != nil && utils.IsFinite(*r.DelayPercent) {
			maxPercent = math.Max(maxPercent, *r.DelayPercent)
		}
	}

	xs := make(map[processor.Cause][]float64)
	ys := make(map[processor.Cause][]float64)
	sizes := make(map[processor.Cause][]float64)
	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		if !utils.IsFinite(r.ArrFlights) || !utils.IsFinite(r.OnTimePercent) {
			continue
		}
		xs[r.DelayType] = append(xs[r.DelayType], r.ArrFlights)
		ys[r.DelayType] = append(ys[r.DelayType], r.OnTimePercent)
		sizes[r.DelayType] = append(sizes[r.DelayType], dotWidth(r.DelayPercent, maxPercent))
		minX = math.Min(minX, r.ArrFlights)
		maxX = math.Max(maxX, r.ArrFlights)
	}

	var series []chart.Series
	for _, c := range processor.CauseOrder {
		if len(xs[c]) == 0 {
			continue
		}
		series = append(series, chart.ContinuousSeries{
			Name:    c.Label(),
			XValues: xs[c],
			YValues: ys[c],
			Style:   pointStyle(causeColor(c), sizes[c]),
		})
	}
	return series, minX, maxX
}

// RenderPie 各原因占比饼图，计数为0的扇区不画
func RenderPie(w io.Writer, summary processor.PieSummary, title string, width, height int) error {
	if summary.Status != processor.StatusOK {
		return ErrNothingToDraw
	}

	var values []chart.Value
	for _, s := range summary.Slices {
		if !(s.Count > 0) {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s", s.Label, utils.FormatPercent(s.Percent, 1)),
			Value: s.Count,
			Style: chart.Style{FillColor: causeColor(s.Cause)},
		})
	}
	if len(values) == 0 {
		return ErrNothingToDraw
	}

	width, height = chartSize(width, height)
	pie := chart.PieChart{
		Title:  title,
		Width:  width,
		Height: height,
		Values: values,
	}
	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("渲染饼图失败: %w", err)
	}
	return nil
}
