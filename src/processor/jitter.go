package processor

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// 抖动幅度
const (
	JitterFlights = 50.0
	JitterOnTime  = 0.3
)

// Jitterer 给散点加有界随机扰动，减少点重叠；仅用于展示
type Jitterer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitterer src 为 nil 时使用随机种子，每次结果不同
func NewJitterer(src rand.Source) *Jitterer {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Jitterer{rng: rand.New(src)}
}

// NewSeededJitterer 固定种子，便于生成可复现的快照
func NewSeededJitterer(seed uint64) *Jitterer {
	return NewJitterer(rand.NewPCG(seed, seed))
}

// uniform 返回 [-width, width) 内的均匀分布随机数
func (j *Jitterer) uniform(width float64) float64 {
	return (j.rng.Float64()*2 - 1) * width
}

// Apply arr_flights 加 U(-50,50)，on_time_percent 加 U(-0.3,0.3) 后截断到 [0,100]
// 返回新表，不修改输入
func (j *Jitterer) Apply(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return df, df.Err
	}

	flights := df.Col(ColArrFlights).Float()
	onTime := df.Col(ColOnTimePercent).Float()
	jf := make([]float64, len(flights))
	jo := make([]float64, len(onTime))

	j.mu.Lock()
	for i := range flights {
		jf[i] = flights[i] + j.uniform(JitterFlights)
		jo[i] = clamp(onTime[i]+j.uniform(JitterOnTime), 0, 100)
	}
	j.mu.Unlock()

	df = df.Mutate(series.New(jf, series.Float, ColArrFlights)).
		Mutate(series.New(jo, series.Float, ColOnTimePercent))
	if df.Err != nil {
		return df, fmt.Errorf("添加抖动失败: %w", df.Err)
	}
	return df, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
