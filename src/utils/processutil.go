package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// MissingColumns 返回df中缺失的列名，按cols顺序
func MissingColumns(df dataframe.DataFrame, cols []string) []string {
	var missing []string
	for _, c := range cols {
		if !HasColumn(df, c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// IsFinite 非NaN且非Inf
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Round 四舍五入到digits位小数
func Round(v float64, digits int) float64 {
	if !IsFinite(v) {
		return v
	}
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

// FormatPercent 保留digits位小数并加上百分号，例如 10.0%、33.333%；非有限值输出 NaN%
func FormatPercent(v float64, digits int) string {
	if !IsFinite(v) {
		return "NaN%"
	}
	s := strconv.FormatFloat(Round(v, digits), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + "%"
}

// WriteSheet 把DataFrame写入excel的sheet，第一行为列名
// 非有限的浮点数写成字符串 NaN，避免生成无法打开的单元格
func WriteSheet(f *excelize.File, sheetName string, df dataframe.DataFrame) error {
	// 写入列名
	colNames := df.Names()
	for i, name := range colNames {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return fmt.Errorf("写入列名失败: %w", err)
		}
	}

	// 写入数据
	for colIdx, colName := range colNames {
		col := df.Col(colName)
		for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			val := col.Val(rowIdx)
			if fv, ok := val.(float64); ok && !IsFinite(fv) {
				val = "NaN"
			}
			if err := f.SetCellValue(sheetName, cell, val); err != nil {
				return fmt.Errorf("写入单元格%s失败: %w", cell, err)
			}
		}
	}
	return nil
}
