package domain

import "time"

// DataVersion 当前存储记录的 schema 版本
// 低于该版本的缓存记录一律按 miss 处理（见 service 层）
const DataVersion = 4

// RepoIdentity 仓库的自然主键 (owner, name)，不可变
type RepoIdentity struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// Slug 返回 "owner/name" 形式的标识
func (id RepoIdentity) Slug() string {
	return id.Owner + "/" + id.Name
}

// RepoInfo 来自 GitHub 的仓库基础信息
type RepoInfo struct {
	Description     string    `json:"description"`
	Stars           int       `json:"stars"`
	Forks           int       `json:"forks"`
	OpenIssues      int       `json:"open_issues"`
	Language        string    `json:"language"`
	StaticallyTyped bool      `json:"statically_typed"`
	License         string    `json:"license"`
	Topics          []string  `json:"topics"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	PushedAt        time.Time `json:"pushed_at"`
}

// ReleaseInfo 单个 Release，语义化版本字段由 tag 解析得到
type ReleaseInfo struct {
	Tag         string    `json:"tag"`
	PublishedAt time.Time `json:"published_at"`
	Prerelease  bool      `json:"prerelease"`
	Major       int       `json:"major"`
	Minor       int       `json:"minor"`
	Patch       int       `json:"patch"`
	Parsed      bool      `json:"parsed"` // tag 是否能解析成 vMAJOR.MINOR[.PATCH]
}

// 类型声明的提供方式
const (
	TypesBundled  = "bundled"  // 包内自带声明
	TypesExternal = "external" // 依赖 @types/* 这种外部声明包
	TypesNone     = "none"
)

// PackageInfo 包注册表（npm）里的发布信息，查不到匹配时整体为 nil
type PackageInfo struct {
	Name            string `json:"name"`
	LatestVersion   string `json:"latest_version"`
	WeeklyDownloads int    `json:"weekly_downloads"`
	TypesTier       string `json:"types_tier"`
}

// DocSignals 文档相关的启发式信号
type DocSignals struct {
	ReadmeBytes     int  `json:"readme_bytes"`
	HasDocs         bool `json:"has_docs"`     // docs/ 目录或 README 内的文档链接
	HasExamples     bool `json:"has_examples"` // examples/ 目录或 README 内的示例链接
	HasChangelog    bool `json:"has_changelog"`
	HasLLMsManifest bool `json:"has_llms_manifest"` // llms.txt 这类机器可读清单
	HasAgentsFile   bool `json:"has_agents_file"`   // AGENTS.md
	HasClaudeFile   bool `json:"has_claude_file"`   // CLAUDE.md
}

// ActivitySignals 近期活跃度信号（固定窗口，最近 30 条）
type ActivitySignals struct {
	RecentCommits        int     `json:"recent_commits"`
	CommitsPerWeek       float64 `json:"commits_per_week"`
	AvgDaysBetweenStable float64 `json:"avg_days_between_stable"` // 稳定版之间的平均天数，0 表示无数据
	RecentClosedPRs      int     `json:"recent_closed_prs"`
	AvgPRCloseHours      float64 `json:"avg_pr_close_hours"` // 0 表示无数据
}

// RawSignalBundle 一次抓取得到的全部原始事实
// 各采集器 best-effort，缺失的部分保持零值，评分引擎按文档化的默认值降级
type RawSignalBundle struct {
	Repo     RepoInfo        `json:"repo"`
	Releases []ReleaseInfo   `json:"releases"`
	Package  *PackageInfo    `json:"package,omitempty"`
	Docs     DocSignals      `json:"docs"`
	Activity ActivitySignals `json:"activity"`
}

// DimensionScore 单个维度的得分和可解释性明细
// Details 永远带上产生该分数的原始子信号；启用模型权重时还带归一化后的实际权重
type DimensionScore struct {
	Score   int                `json:"score"`
	Details map[string]float64 `json:"details"`
}

// RepoScore 某个 (仓库, 模型) 组合的完整评分
type RepoScore struct {
	Overall    int                       `json:"overall"`
	Grade      string                    `json:"grade"`
	Dimensions map[string]DimensionScore `json:"dimensions"`
}

// GradeFor 按固定阈值把整数总分映射成等级，阈值对 overall 单调
func GradeFor(overall int) string {
	switch {
	case overall >= 85:
		return "A"
	case overall >= 70:
		return "B"
	case overall >= 55:
		return "C"
	case overall >= 40:
		return "D"
	default:
		return "F"
	}
}

// CachedRepoData 完整的持久化记录：原始信号 + 每个模型的评分 + 来源和版本信息
type CachedRepoData struct {
	Identity    RepoIdentity         `json:"identity"`
	Category    string               `json:"category"`
	Signals     RawSignalBundle      `json:"signals"`
	Scores      map[string]RepoScore `json:"scores"` // key 是模型 id
	Sources     []string             `json:"sources"`
	FetchedAt   time.Time            `json:"fetched_at"`
	DataVersion int                  `json:"data_version"`
}

// ModelSummary IndexEntry 里每个模型的精简结果
type ModelSummary struct {
	Overall int    `json:"overall"`
	Grade   string `json:"grade"`
}

// IndexEntry 反规范化的汇总行，列表页只读它，不反序列化完整记录
type IndexEntry struct {
	Identity    RepoIdentity            `json:"identity"`
	Category    string                  `json:"category"`
	Stars       int                     `json:"stars"`
	Language    string                  `json:"language"`
	Description string                  `json:"description"`
	BestScore   int                     `json:"best_score"`
	BestGrade   string                  `json:"best_grade"`
	BestModel   string                  `json:"best_model"`
	ModelScores map[string]ModelSummary `json:"model_scores"`
	FetchedAt   time.Time               `json:"fetched_at"`
}

// BuildIndexEntry 从完整记录推导汇总行
// BestScore 取所有模型 overall 的最大值，并列时按 modelOrder 顺序先见者胜
func BuildIndexEntry(record *CachedRepoData, modelOrder []string) IndexEntry {
	entry := IndexEntry{
		Identity:    record.Identity,
		Category:    record.Category,
		Stars:       record.Signals.Repo.Stars,
		Language:    record.Signals.Repo.Language,
		Description: record.Signals.Repo.Description,
		ModelScores: make(map[string]ModelSummary, len(record.Scores)),
		FetchedAt:   record.FetchedAt,
	}

	// 没有传顺序时退化为 map 遍历（此时并列的先后不保证）
	order := modelOrder
	if len(order) == 0 {
		for id := range record.Scores {
			order = append(order, id)
		}
	}

	best := -1
	for _, modelID := range order {
		score, ok := record.Scores[modelID]
		if !ok {
			continue
		}
		entry.ModelScores[modelID] = ModelSummary{Overall: score.Overall, Grade: score.Grade}
		if score.Overall > best {
			best = score.Overall
			entry.BestScore = score.Overall
			entry.BestGrade = score.Grade
			entry.BestModel = modelID
		}
	}
	return entry
}
