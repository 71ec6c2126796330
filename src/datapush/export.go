package datapush

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alvinn6o/450-Project-2-Team-2/src/processor"
	"github.com/alvinn6o/450-Project-2-Team-2/src/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// 导出文件中的工作表名称
const (
	RowsSheet = "Rows"
	PieSheet  = "Pie"
)

// Exporter 把一次查询结果写到导出目录
type Exporter struct {
	Dir    string
	Charts bool // 同时输出 png 图表
	Width  int
	Height int

	now func() time.Time
}

// NewExporter 图表尺寸为0时使用默认值
func NewExporter(dir string, charts bool, width, height int) *Exporter {
	return &Exporter{
		Dir:    dir,
		Charts: charts,
		Width:  width,
		Height: height,
		now:    time.Now,
	}
}

// Artifact 一次导出生成的文件，未生成的图表路径为空
type Artifact struct {
	RunID    string `json:"run_id"`
	Workbook string `json:"workbook"`
	Scatter  string `json:"scatter,omitempty"`
	Pie      string `json:"pie,omitempty"`
}

// Export 写出 flight_delays_<时间>_<runid>.xlsx 以及可绘制时的散点图和饼图
func (e *Exporter) Export(res *processor.Result) (*Artifact, error) {
	if res == nil {
		return nil, errors.New("导出结果为空")
	}
	if err := os.MkdirAll(e.Dir, 0755); err != nil {
		return nil, fmt.Errorf("创建导出目录失败: %w", err)
	}

	now := time.Now
	if e.now != nil {
		now = e.now
	}
	runID := uuid.NewString()
	base := filepath.Join(e.Dir, fmt.Sprintf("flight_delays_%s_%s", now().Format("20060102_150405"), runID[:8]))

	art := &Artifact{RunID: runID, Workbook: base + ".xlsx"}
	if err := SaveWorkbook(res, art.Workbook); err != nil {
		return nil, err
	}

	if !e.Charts {
		return art, nil
	}

	title := res.Title()
	scatter := base + "_scatter.png"
	ok, err := writePNG(scatter, func(f *os.File) error {
		return RenderScatter(f, res.Records(), title, e.Width, e.Height)
	})
	if err != nil {
		return art, err
	}
	if ok {
		art.Scatter = scatter
	}

	pie := base + "_pie.png"
	ok, err = writePNG(pie, func(f *os.File) error {
		return RenderPie(f, res.Pie, title, e.Width, e.Height)
	})
	if err != nil {
		return art, err
	}
	if ok {
		art.Pie = pie
	}
	return art, nil
}

// writePNG 没有可绘制内容时删除空文件并返回 false
func writePNG(path string, render func(*os.File) error) (bool, error) {
	f, err := os.Create(path)
	if err != nil {
		return false, fmt.Errorf("创建图表文件失败: %w", err)
	}
	renderErr := render(f)
	closeErr := f.Close()

	if errors.Is(renderErr, ErrNothingToDraw) {
		_ = os.Remove(path)
		return false, nil
	}
	if renderErr != nil {
		_ = os.Remove(path)
		return false, renderErr
	}
	if closeErr != nil {
		return false, fmt.Errorf("保存图表文件失败: %w", closeErr)
	}
	return true, nil
}

// SaveWorkbook Rows 表为结果行，Pie 表为饼图汇总
func SaveWorkbook(res *processor.Result, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RowsSheet); err != nil {
		return fmt.Errorf("重命名工作表失败: %w", err)
	}
	if err := utils.WriteSheet(f, RowsSheet, res.Rows); err != nil {
		return err
	}

	if _, err := f.NewSheet(PieSheet); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	if err := writePie(f, res); err != nil {
		return err
	}

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

func writePie(f *excelize.File, res *processor.Result) error {
	pie := res.Pie
	rows := [][]any{
		{"title", res.Title()},
		{"mode", res.Mode},
		{"status", string(pie.Status)},
		{"message", pie.Message},
		{"total", pie.Total},
		{},
		{"cause", "label", "count", "percent", "color"},
	}
	for _, s := range pie.Slices {
		percent := any(utils.Round(s.Percent, 2))
		if !utils.IsFinite(s.Percent) {
			percent = "NaN"
		}
		rows = append(rows, []any{string(s.Cause), s.Label, s.Count, percent, s.Color})
	}

	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(PieSheet, cell, &row); err != nil {
			return fmt.Errorf("写入饼图汇总失败: %w", err)
		}
	}
	return nil
}
