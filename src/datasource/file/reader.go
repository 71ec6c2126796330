// reader.go
package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnsupportedFormat 既不是csv也不是xlsx
var ErrUnsupportedFormat = errors.New("unsupported input format")

// 视为缺失值的文本
var nanValues = []string{"", "NA", "N/A", "NaN", "nan", "<nil>", "null"}

// ColumnTypes 已知列的类型，其余列自动推断
var ColumnTypes = map[string]series.Type{
	"year":                series.Int,
	"month":               series.Int,
	"carrier":             series.String,
	"carrier_name":        series.String,
	"airport":             series.String,
	"airport_name":        series.String,
	"arr_flights":         series.Float,
	"arr_del15":           series.Float,
	"carrier_ct":          series.Float,
	"weather_ct":          series.Float,
	"nas_ct":              series.Float,
	"security_ct":         series.Float,
	"late_aircraft_ct":    series.Float,
	"arr_cancelled":       series.Float,
	"arr_diverted":        series.Float,
	"arr_delay":           series.Float,
	"carrier_delay":       series.Float,
	"weather_delay":       series.Float,
	"nas_delay":           series.Float,
	"security_delay":      series.Float,
	"late_aircraft_delay": series.Float,
}

// Config 读取配置
type Config struct {
	Delimiter rune   // csv分隔符，默认逗号
	SheetName string // xlsx工作表，为空时取第一个
}

// LoadFile 按扩展名读取csv或xlsx
func LoadFile(filePath string, cfg Config) (dataframe.DataFrame, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".csv", ".txt", ".tsv":
		if ext == ".tsv" && cfg.Delimiter == 0 {
			cfg.Delimiter = '\t'
		}
		f, err := os.Open(filePath)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
		}
		defer f.Close()
		return ReadCSV(f, cfg.Delimiter)
	case ".xlsx":
		return ReadXLSX(filePath, cfg.SheetName)
	default:
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filePath)
	}
}

// ReadCSV 读取csv，兼容带BOM的UTF-8文件
func ReadCSV(r io.Reader, delimiter rune) (dataframe.DataFrame, error) {
	if delimiter == 0 {
		delimiter = ','
	}
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	df := dataframe.ReadCSV(decoded,
		dataframe.WithDelimiter(delimiter),
		dataframe.WithLazyQuotes(true),
		dataframe.NaNValues(nanValues),
		dataframe.WithTypes(ColumnTypes),
	)
	if df.Err != nil {
		return df, fmt.Errorf("解析csv失败: %w", df.Err)
	}
	return df, nil
}

// ReadXLSX 读取xlsx文件的指定工作表
func ReadXLSX(filePath, sheetName string) (dataframe.DataFrame, error) {
	// 1. 使用tealeg/xlsx打开Excel文件
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open file false: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName)
}

// ReadXLSXBinary 从内存中的xlsx数据读取
func ReadXLSXBinary(data []byte, sheetName string) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("xlsx open binary false: %w", err)
	}
	return sheetToDataFrame(xlFile, sheetName)
}

func sheetToDataFrame(xlFile *xlsx.File, sheetName string) (dataframe.DataFrame, error) {
	// 2. 获取工作表
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("excel文件中没有工作表")
	}
	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 不存在", sheetName)
		}
		sheet = s
	}

	// 3. 转换为Gota DataFrame
	records := sheetRecords(sheet)
	if len(records) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("工作表 %s 没有数据", sheet.Name)
	}
	df := dataframe.LoadRecords(records,
		dataframe.NaNValues(nanValues),
		dataframe.WithTypes(ColumnTypes),
	)
	if df.Err != nil {
		return df, fmt.Errorf("转换为dataframe失败: %w", df.Err)
	}
	return df, nil
}

// sheetRecords 第一行为标题行，数据行按标题列数补齐或截断
func sheetRecords(sheet *xlsx.Sheet) [][]string {
	if sheet == nil || len(sheet.Rows) == 0 {
		return nil
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, strings.TrimSpace(cell.Value))
	}
	// 去掉末尾的空标题
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) == 0 {
		return nil
	}

	records := make([][]string, 0, len(sheet.Rows))
	records = append(records, headers)
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			continue
		}
		rec := make([]string, len(headers))
		empty := true
		for i, cell := range row.Cells {
			if i >= len(headers) { // 确保不超出列数范围
				break
			}
			if cell == nil {
				continue
			}
			rec[i] = cell.Value
			if cell.Value != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		records = append(records, rec)
	}
	return records
}
