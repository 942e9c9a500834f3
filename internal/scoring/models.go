package scoring

import "time"

// 维度名常量，同时也是权重表和 DimensionScore map 的 key
const (
	DimCoverage         = "coverage"
	DimAdoption         = "adoption"
	DimDocumentation    = "documentation"
	DimAIReadiness      = "ai_readiness"
	DimMomentum         = "momentum"
	DimMaintenance      = "maintenance"
	DimLanguageAptitude = "language_aptitude"
	DimModelCapability  = "model_capability"
)

// Dimensions 全部维度的固定顺序（展示和遍历都用它）
var Dimensions = []string{
	DimCoverage,
	DimAdoption,
	DimDocumentation,
	DimAIReadiness,
	DimMomentum,
	DimMaintenance,
	DimLanguageAptitude,
	DimModelCapability,
}

// ModelProfile 目标模型的描述符：知识截止日期 + 评分画像
// 进程启动时构造一次，之后只读
type ModelProfile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Cutoff      time.Time `json:"cutoff"`

	// BenchmarkScore 公开基准测试的成绩 (0-100)，0 表示没有证据
	BenchmarkScore  float64 `json:"benchmark_score,omitempty"`
	BenchmarkSource string  `json:"benchmark_source,omitempty"`

	// Weights 每个维度的权重乘数，缺省按 1.0 处理
	Weights map[string]float64 `json:"weights,omitempty"`

	// CoverageDecayFactor 覆盖度衰减的敏感系数
	// 衰减速率会除以它，越大代表模型对截止日期之后的内容越"宽容"
	CoverageDecayFactor float64 `json:"coverage_decay_factor"`
}

func cutoff(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// DefaultModels 返回内置的模型注册表
// 返回的是新切片，调用方拿到后注入评分引擎，运行期不再改动
func DefaultModels() []ModelProfile {
	return []ModelProfile{
		{
			ID:                  "gpt-4o",
			DisplayName:         "GPT-4o",
			Cutoff:              cutoff(2023, time.October),
			BenchmarkScore:      90.2,
			BenchmarkSource:     "HumanEval pass@1",
			CoverageDecayFactor: 1.0,
			Weights: map[string]float64{
				DimCoverage: 1.1,
				DimAdoption: 1.1,
			},
		},
		{
			ID:                  "claude-3-5-sonnet",
			DisplayName:         "Claude 3.5 Sonnet",
			Cutoff:              cutoff(2024, time.April),
			BenchmarkScore:      92.0,
			BenchmarkSource:     "HumanEval pass@1",
			CoverageDecayFactor: 1.2,
			Weights: map[string]float64{
				DimAIReadiness:   1.2,
				DimDocumentation: 1.1,
			},
		},
		{
			ID:                  "gemini-1-5-pro",
			DisplayName:         "Gemini 1.5 Pro",
			Cutoff:              cutoff(2023, time.November),
			BenchmarkScore:      84.1,
			BenchmarkSource:     "HumanEval pass@1",
			CoverageDecayFactor: 1.0,
			Weights: map[string]float64{
				DimDocumentation: 1.2,
			},
		},
		{
			ID:                  "llama-3-1-405b",
			DisplayName:         "Llama 3.1 405B",
			Cutoff:              cutoff(2023, time.December),
			BenchmarkScore:      89.0,
			BenchmarkSource:     "HumanEval pass@1",
			CoverageDecayFactor: 0.9,
			Weights: map[string]float64{
				DimLanguageAptitude: 1.2,
				DimCoverage:         1.1,
			},
		},
		{
			ID:                  "deepseek-v3",
			DisplayName:         "DeepSeek-V3",
			Cutoff:              cutoff(2024, time.July),
			BenchmarkScore:      88.4,
			BenchmarkSource:     "HumanEval pass@1",
			CoverageDecayFactor: 1.1,
			Weights: map[string]float64{
				DimMomentum: 1.1,
			},
		},
	}
}

// ModelIDs 按注册表顺序取出全部模型 id
func ModelIDs(models []ModelProfile) []string {
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	return ids
}

// FindModel 按 id 查注册表，找不到时 ok 为 false
func FindModel(models []ModelProfile, id string) (ModelProfile, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelProfile{}, false
}
