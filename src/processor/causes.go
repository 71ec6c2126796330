package processor

// 原始数据列名
const (
	ColYear          = "year"
	ColCarrierName   = "carrier_name"
	ColAirportName   = "airport_name"
	ColArrFlights    = "arr_flights"
	ColArrDel15      = "arr_del15"
	ColArrDelay      = "arr_delay"
	ColCarrierCt     = "carrier_ct"
	ColWeatherCt     = "weather_ct"
	ColNasCt         = "nas_ct"
	ColSecurityCt    = "security_ct"
	ColLateAircraftC = "late_aircraft_ct"
)

// 派生列名
const (
	ColState             = "state"
	ColTotalDelays       = "total_delays"
	ColOnTimePercent     = "on_time_percent"
	ColDelayType         = "delay_type"
	ColDelayCount        = "delay_count"
	ColDelayLabel        = "delay_label"
	ColDelayPercent      = "delay_percent"
	ColDelayPercentLabel = "delay_percent_label"
	ColDelayShare        = "delay_share"
	ColDelayShareLabel   = "delay_share_label"
)

// UnknownState 机场名称中解析不到州代码时使用
const UnknownState = "Unknown"

// Cause 延误原因，取值为原始计数列名
type Cause string

const (
	CauseCarrier      Cause = ColCarrierCt
	CauseWeather      Cause = ColWeatherCt
	CauseNAS          Cause = ColNasCt
	CauseSecurity     Cause = ColSecurityCt
	CauseLateAircraft Cause = ColLateAircraftC
)

// CauseOrder 固定的原因顺序，长表展开、饼图输出都按此顺序
var CauseOrder = []Cause{
	CauseCarrier,
	CauseWeather,
	CauseNAS,
	CauseSecurity,
	CauseLateAircraft,
}

var causeLabels = map[Cause]string{
	CauseCarrier:      "Carrier Delay",
	CauseWeather:      "Weather Delay",
	CauseNAS:          "NAS Delay",
	CauseSecurity:     "Security Delay",
	CauseLateAircraft: "Late Aircraft Delay",
}

var causeOptionLabels = map[Cause]string{
	CauseCarrier:      "Carrier Delays",
	CauseWeather:      "Weather Delays",
	CauseNAS:          "NAS Delays",
	CauseSecurity:     "Security Delays",
	CauseLateAircraft: "Late Aircraft Delays",
}

var causeColors = map[Cause]string{
	CauseCarrier:      "#636EFA",
	CauseWeather:      "#00CC96",
	CauseNAS:          "#EF553B",
	CauseSecurity:     "#AB63FA",
	CauseLateAircraft: "#FFA15A",
}

// Label 图表展示用的名称
func (c Cause) Label() string {
	if l, ok := causeLabels[c]; ok {
		return l
	}
	return string(c)
}

// OptionLabel 下拉框里的名称
func (c Cause) OptionLabel() string {
	if l, ok := causeOptionLabels[c]; ok {
		return l
	}
	return string(c)
}

// Color 十六进制颜色
func (c Cause) Color() string {
	if col, ok := causeColors[c]; ok {
		return col
	}
	return "#7F7F7F"
}

// Valid 是否为五种已知原因之一
func (c Cause) Valid() bool {
	_, ok := causeLabels[c]
	return ok
}

// causeIndex 返回原因在固定顺序中的位置，未知原因排在最后
func causeIndex(c Cause) int {
	for i, o := range CauseOrder {
		if o == c {
			return i
		}
	}
	return len(CauseOrder)
}

func causeColumns() []string {
	cols := make([]string, len(CauseOrder))
	for i, c := range CauseOrder {
		cols[i] = string(c)
	}
	return cols
}

// RequiredColumns 输入文件必须包含的列
var RequiredColumns = []string{
	ColYear,
	ColCarrierName,
	ColAirportName,
	ColArrFlights,
	ColArrDel15,
	ColArrDelay,
	ColCarrierCt,
	ColWeatherCt,
	ColNasCt,
	ColSecurityCt,
	ColLateAircraftC,
}
