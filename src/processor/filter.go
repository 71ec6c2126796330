package processor

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// SelectAll 下拉框中代表"全部"的取值
const SelectAll = "All"

// Selection 单个筛选维度。零值表示不限制
type Selection struct {
	values []string
}

// All 不限制该维度
func All() Selection {
	return Selection{}
}

// Only 只保留取值在 values 中的行
func Only(values ...string) Selection {
	return Selection{values: append([]string(nil), values...)}
}

// ParseSelection 按下拉框语义解析：空列表或包含 "All" 都视为不限制
func ParseSelection(values []string) Selection {
	var kept []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.EqualFold(v, SelectAll) {
			return All()
		}
		kept = append(kept, v)
	}
	return Only(kept...)
}

// IsAll 是否不限制
func (s Selection) IsAll() bool {
	return len(s.values) == 0
}

// Values 已选取值的副本
func (s Selection) Values() []string {
	return append([]string(nil), s.values...)
}

// FilterSpec 四个维度的筛选条件，按 AND 组合
type FilterSpec struct {
	Years    Selection
	Carriers Selection
	States   Selection
	Causes   Selection
}

// Apply 依次按年份、航司、州、原因筛选，返回新表；结果为空不是错误
func (fs FilterSpec) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	dims := []struct {
		col string
		sel Selection
	}{
		{ColYear, fs.Years},
		{ColCarrierName, fs.Carriers},
		{ColState, fs.States},
		{ColDelayType, fs.Causes},
	}

	out := df
	for _, d := range dims {
		if d.sel.IsAll() {
			continue
		}
		out = out.Filter(dataframe.F{
			Colname:    d.col,
			Comparator: series.In,
			Comparando: d.sel.values,
		})
		if out.Err != nil {
			return out, fmt.Errorf("按%s筛选失败: %w", d.col, out.Err)
		}
	}
	return out, nil
}

// FormatSelection 图表标题用的筛选描述，例如 "All Years" 或 "2019, 2020"
func FormatSelection(s Selection, label string) string {
	if s.IsAll() {
		return fmt.Sprintf("All %ss", label)
	}
	return strings.Join(s.values, ", ")
}

// Title 饼图标题
func (fs FilterSpec) Title() string {
	return fmt.Sprintf("Delay Cause Breakdown — %s, %s, %s",
		FormatSelection(fs.Carriers, "Carrier"),
		FormatSelection(fs.States, "State"),
		FormatSelection(fs.Years, "Year"))
}
