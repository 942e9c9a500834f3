package scoring

import (
	"math"

	"github.com/AIEraStack/AIEraStack/internal/domain"
)

// 基础权重表（扩展版八维度，合计 1.0）
// 每个模型的乘数作用在它上面，然后整体归一化
var baseWeights = map[string]float64{
	DimCoverage:         0.20,
	DimAdoption:         0.12,
	DimDocumentation:    0.12,
	DimAIReadiness:      0.16,
	DimMomentum:         0.10,
	DimMaintenance:      0.08,
	DimLanguageAptitude: 0.10,
	DimModelCapability:  0.12,
}

// 各维度的降级默认值和衰减常数
const (
	// 没有任何稳定大版本时 release recency 子分的默认值
	// 压在 30：即使 push 就在截止日期附近（子分接近满分），
	// 覆盖度也到不了 0.5×30 + 0.3×100 + 0.2×50 = 55 以上
	defaultReleaseRecency = 30.0
	// 查不到包注册表匹配时下载量子分的中值
	defaultDownloadScore = 50.0
	// 模型没有公开基准成绩时 model capability 的默认分
	defaultCapability = 70.0

	// release 晚于截止日期后每天衰减的分数（再除以模型的 CoverageDecayFactor）
	releaseDecayPerDay = 0.25
	releaseFloor       = 20.0

	// push 活动晚于截止日期的衰减
	pushDecayPerDay = 0.5
	pushFloor       = 30.0
)

// languageTiers 主流语言在公开语料里的大致占比分档
// 不在表里的语言按 45 处理，语言为空按 50 处理
var languageTiers = map[string]float64{
	"JavaScript": 95, "TypeScript": 95, "Python": 95,
	"Java": 85, "C": 85, "C++": 85, "C#": 85, "Go": 85,
	"Ruby": 85, "PHP": 85, "Shell": 85, "HTML": 85, "CSS": 85,
	"Rust": 75, "Kotlin": 75, "Swift": 75, "Scala": 75, "SQL": 75,
	"Dart": 60, "Haskell": 60, "Lua": 60, "Elixir": 60,
	"R": 60, "Perl": 60, "Objective-C": 60,
}

// Engine 评分引擎：纯函数集合，没有任何可变状态
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Score 对一个 (信号包, 模型) 组合打分
// 全函数：任何合法输入（包括全零的信号包）都能得到结果，绝不报错
func (e *Engine) Score(signals domain.RawSignalBundle, model ModelProfile) domain.RepoScore {
	dims := map[string]domain.DimensionScore{
		DimCoverage:         e.scoreCoverage(signals, model),
		DimAdoption:         e.scoreAdoption(signals),
		DimDocumentation:    e.scoreDocumentation(signals.Docs),
		DimAIReadiness:      e.scoreAIReadiness(signals),
		DimMomentum:         e.scoreMomentum(signals.Activity),
		DimMaintenance:      e.scoreMaintenance(signals),
		DimLanguageAptitude: e.scoreLanguageAptitude(signals.Repo),
		DimModelCapability:  e.scoreModelCapability(model),
	}

	// 模型乘数 × 基础权重，再整体归一化到 1.0
	// 乘数向量不保证和基础表等和，所以每次都必须归一化
	weights := normalizedWeights(model)

	overall := 0.0
	for name, w := range weights {
		d := dims[name]
		d.Details["weight"] = w
		dims[name] = d
		overall += w * float64(d.Score)
	}

	rounded := int(math.Round(overall))
	if rounded < 0 {
		rounded = 0
	}
	if rounded > 100 {
		rounded = 100
	}

	return domain.RepoScore{
		Overall:    rounded,
		Grade:      domain.GradeFor(rounded),
		Dimensions: dims,
	}
}

// normalizedWeights 应用模型乘数后把权重向量归一化到合计 1.0
func normalizedWeights(model ModelProfile) map[string]float64 {
	weights := make(map[string]float64, len(baseWeights))
	sum := 0.0
	for name, base := range baseWeights {
		mult := 1.0
		if model.Weights != nil {
			if m, ok := model.Weights[name]; ok && m > 0 {
				mult = m
			}
		}
		w := base * mult
		weights[name] = w
		sum += w
	}
	for name := range weights {
		weights[name] /= sum
	}
	return weights
}

// scoreCoverage 覆盖度：项目当前状态是否在模型的训练窗口内
// 三个子分按 50/30/20 加权：稳定版时效、push 时效、创建时间
func (e *Engine) scoreCoverage(signals domain.RawSignalBundle, model ModelProfile) domain.DimensionScore {
	details := map[string]float64{}

	// 衰减速率除以模型的宽容系数，这是模型差异唯一的"质变"之处
	factor := model.CoverageDecayFactor
	if factor <= 0 {
		factor = 1.0
	}
	decay := releaseDecayPerDay / factor

	// 子分 1：最新稳定大版本 (x.0.0) 是否在截止日期之前
	releaseScore := defaultReleaseRecency
	if latest, ok := domain.LatestStableMajor(signals.Releases); ok {
		if !latest.PublishedAt.After(model.Cutoff) {
			releaseScore = 100
		} else {
			days := latest.PublishedAt.Sub(model.Cutoff).Hours() / 24
			releaseScore = math.Max(releaseFloor, 100-days*decay)
			details["release_days_beyond_cutoff"] = days
		}
	}
	details["release_recency"] = releaseScore
	details["decay_per_day"] = decay

	// 子分 2：截止日期之后的 push 活动按天惩罚
	pushScore := 100.0
	if signals.Repo.PushedAt.After(model.Cutoff) {
		days := signals.Repo.PushedAt.Sub(model.Cutoff).Hours() / 24
		pushScore = math.Max(pushFloor, 100-days*pushDecayPerDay)
		details["push_days_beyond_cutoff"] = days
	}
	details["push_recency"] = pushScore

	// 子分 3：截止日期之前创建的项目二值加分
	maturityScore := 50.0
	if !signals.Repo.CreatedAt.IsZero() && signals.Repo.CreatedAt.Before(model.Cutoff) {
		maturityScore = 100
	}
	details["maturity"] = maturityScore

	score := 0.5*releaseScore + 0.3*pushScore + 0.2*maturityScore
	return clampDimension(score, details)
}

// scoreAdoption 采用度：star / fork / 周下载量三者的对数刻度，按 40/20/40 组合
func (e *Engine) scoreAdoption(signals domain.RawSignalBundle) domain.DimensionScore {
	starScore := math.Min(100, math.Log10(float64(signals.Repo.Stars)+1)*20)
	forkScore := math.Min(100, math.Log10(float64(signals.Repo.Forks)+1)*25)

	downloadScore := defaultDownloadScore
	details := map[string]float64{
		"stars": float64(signals.Repo.Stars),
		"forks": float64(signals.Repo.Forks),
	}
	if signals.Package != nil {
		downloadScore = math.Min(100, math.Log10(float64(signals.Package.WeeklyDownloads)+1)*12.5)
		details["weekly_downloads"] = float64(signals.Package.WeeklyDownloads)
	}
	details["star_score"] = starScore
	details["fork_score"] = forkScore
	details["download_score"] = downloadScore

	score := 0.4*starScore + 0.2*forkScore + 0.4*downloadScore
	return clampDimension(score, details)
}

// scoreDocumentation 文档：100 分的加法预算
func (e *Engine) scoreDocumentation(docs domain.DocSignals) domain.DimensionScore {
	score := 0.0

	// README 大小分四档
	switch {
	case docs.ReadmeBytes > 10000:
		score += 40
	case docs.ReadmeBytes > 5000:
		score += 30
	case docs.ReadmeBytes > 2000:
		score += 20
	case docs.ReadmeBytes > 500:
		score += 10
	}
	if docs.HasDocs {
		score += 25
	}
	if docs.HasExamples {
		score += 20
	}
	if docs.HasChangelog {
		score += 15
	}

	details := map[string]float64{
		"readme_bytes":  float64(docs.ReadmeBytes),
		"has_docs":      boolToFloat(docs.HasDocs),
		"has_examples":  boolToFloat(docs.HasExamples),
		"has_changelog": boolToFloat(docs.HasChangelog),
	}
	return clampDimension(score, details)
}

// scoreAIReadiness AI 友好度：类型信息 + agent 引导文件 + llms 清单 + 话题 + 许可证
func (e *Engine) scoreAIReadiness(signals domain.RawSignalBundle) domain.DimensionScore {
	score := 0.0

	typed := signals.Repo.StaticallyTyped
	if signals.Package != nil && signals.Package.TypesTier != domain.TypesNone && signals.Package.TypesTier != "" {
		typed = true
	}
	if typed {
		score += 40
	}
	if signals.Docs.HasAgentsFile {
		score += 10
	}
	if signals.Docs.HasClaudeFile {
		score += 10
	}
	if signals.Docs.HasLLMsManifest {
		score += 30
	}
	if len(signals.Repo.Topics) >= 3 {
		score += 15
	}
	if signals.Repo.License != "" {
		score += 15
	}

	details := map[string]float64{
		"typed":             boolToFloat(typed),
		"has_agents_file":   boolToFloat(signals.Docs.HasAgentsFile),
		"has_claude_file":   boolToFloat(signals.Docs.HasClaudeFile),
		"has_llms_manifest": boolToFloat(signals.Docs.HasLLMsManifest),
		"topics":            float64(len(signals.Repo.Topics)),
		"has_license":       boolToFloat(signals.Repo.License != ""),
	}
	return clampDimension(score, details)
}

// scoreMomentum 动量：三个子信号各自分档后相加
func (e *Engine) scoreMomentum(activity domain.ActivitySignals) domain.DimensionScore {
	score := 0.0

	switch cpw := activity.CommitsPerWeek; {
	case cpw > 10:
		score += 40
	case cpw > 5:
		score += 30
	case cpw > 2:
		score += 20
	case cpw > 0.5:
		score += 10
	}

	// 0 表示稳定版不足两个，没有节奏可言，不加分
	switch days := activity.AvgDaysBetweenStable; {
	case days <= 0:
	case days < 30:
		score += 35
	case days < 60:
		score += 25
	case days < 120:
		score += 15
	case days < 180:
		score += 5
	}

	switch n := activity.RecentCommits; {
	case n >= 30:
		score += 25
	case n >= 20:
		score += 20
	case n >= 10:
		score += 15
	case n >= 5:
		score += 10
	}

	details := map[string]float64{
		"commits_per_week":        activity.CommitsPerWeek,
		"avg_days_between_stable": activity.AvgDaysBetweenStable,
		"recent_commits":          float64(activity.RecentCommits),
	}
	return clampDimension(score, details)
}

// scoreMaintenance 维护状况：基础 50 分 + issue 健康度 + PR 响应速度
func (e *Engine) scoreMaintenance(signals domain.RawSignalBundle) domain.DimensionScore {
	score := 50.0
	details := map[string]float64{
		"open_issues": float64(signals.Repo.OpenIssues),
	}

	// star 为 0 时比值没有意义，不给健康度加分
	if signals.Repo.Stars > 0 {
		ratio := float64(signals.Repo.OpenIssues) / float64(signals.Repo.Stars)
		details["issue_star_ratio"] = ratio
		switch {
		case ratio < 0.02:
			score += 30
		case ratio < 0.05:
			score += 20
		case ratio < 0.1:
			score += 10
		}
	}

	// 0 表示没有 PR 数据，不加分
	switch hours := signals.Activity.AvgPRCloseHours; {
	case hours <= 0:
	case hours < 24:
		score += 20
	case hours < 72:
		score += 15
	case hours < 168:
		score += 10
	case hours < 720:
		score += 5
	}
	details["avg_pr_close_hours"] = signals.Activity.AvgPRCloseHours

	return clampDimension(score, details)
}

// scoreLanguageAptitude 语言适配度：主语言在公开语料里的常见程度
func (e *Engine) scoreLanguageAptitude(repo domain.RepoInfo) domain.DimensionScore {
	score := 50.0 // 语言未知时的默认值
	if repo.Language != "" {
		if tier, ok := languageTiers[repo.Language]; ok {
			score = tier
		} else {
			score = 45
		}
	}
	if repo.StaticallyTyped {
		score += 10
	}

	details := map[string]float64{
		"statically_typed": boolToFloat(repo.StaticallyTyped),
	}
	return clampDimension(score, details)
}

// scoreModelCapability 模型自身的代码能力，直接引用公开基准成绩
func (e *Engine) scoreModelCapability(model ModelProfile) domain.DimensionScore {
	score := defaultCapability
	details := map[string]float64{}
	if model.BenchmarkScore > 0 {
		score = model.BenchmarkScore
		details["benchmark_score"] = model.BenchmarkScore
	} else {
		details["benchmark_default"] = 1
	}
	return clampDimension(score, details)
}

// clampDimension 把浮点分数收敛到 [0, 100] 的整数
func clampDimension(score float64, details map[string]float64) domain.DimensionScore {
	clamped := math.Max(0, math.Min(100, score))
	return domain.DimensionScore{
		Score:   int(math.Round(clamped)),
		Details: details,
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
