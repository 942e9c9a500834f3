package port

import (
	"context"

	"github.com/AIEraStack/AIEraStack/internal/domain"
)

// RepoCollector (侦察兵): 负责从 GitHub 拉取仓库的原始事实
// 除 GetRepoInfo 外全部 best-effort：上游缺失或出错时返回零值，不报错
type RepoCollector interface {
	// GetRepoInfo 解析仓库身份并拉基础信息，是唯一允许失败的主调用
	// 仓库不存在时返回错误，整个抓取流程随之失败
	GetRepoInfo(ctx context.Context, id domain.RepoIdentity) (domain.RepoInfo, error)

	// ListReleases 拉最近的 release 列表，按发布时间倒序
	ListReleases(ctx context.Context, id domain.RepoIdentity) []domain.ReleaseInfo

	// GetDocSignals 探测 README、docs/examples、changelog、llms.txt 等文档信号
	GetDocSignals(ctx context.Context, id domain.RepoIdentity) domain.DocSignals

	// GetActivity 拉近期 commit / PR 活跃度
	GetActivity(ctx context.Context, id domain.RepoIdentity, releases []domain.ReleaseInfo) domain.ActivitySignals
}

// RegistryCollector (包管家): 查包注册表的发布与下载数据
// 查不到匹配包时返回 nil（"unavailable" 哨兵值），评分引擎按默认中值降级
type RegistryCollector interface {
	GetPackageInfo(ctx context.Context, id domain.RepoIdentity) *domain.PackageInfo
}

// Store (仓库管理员): 负责记录的原子存取
type Store interface {
	// Upsert 在同一事务里写完整记录 + 重算汇总列，(owner, name) 永远只有一行
	Upsert(ctx context.Context, record *domain.CachedRepoData) error

	// GetByKey 按主键点查，不存在时返回 (nil, nil)
	GetByKey(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error)

	// ListSummaries 只读汇总列，category 为空表示不过滤
	ListSummaries(ctx context.Context, category string) ([]domain.IndexEntry, error)

	// GetComparison 读预生成的对比评估（引擎侧只读），不存在时返回 (nil, nil)
	GetComparison(ctx context.Context, contentHash string) ([]byte, error)
}

// Evaluator (协调员): 对外的读入口，封装 stale-while-revalidate 策略
type Evaluator interface {
	// GetOrRefresh 缓存命中直接返回；过期先返回旧记录再后台刷新；
	// miss 时同步抓取入库，上游仓库不存在时返回 (nil, error)
	GetOrRefresh(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error)
}
