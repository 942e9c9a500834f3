package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AIEraStack/AIEraStack/internal/domain"
	"github.com/AIEraStack/AIEraStack/internal/port"
	"github.com/AIEraStack/AIEraStack/internal/scoring"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxAge 缓存记录的默认保鲜期
const DefaultMaxAge = 24 * time.Hour

// 后台刷新的独立超时，不能蹭触发它的那个请求的 context
const refreshTimeout = 2 * time.Minute

// EvaluationService 实现了 port.Evaluator 接口
// 负责两件事：组装完整记录（采集 → 评分 → 入库）和 stale-while-revalidate 的读策略
type EvaluationService struct {
	collector port.RepoCollector
	registry  port.RegistryCollector
	store     port.Store
	engine    *scoring.Engine
	models    []scoring.ModelProfile
	maxAge    time.Duration
	log       *logrus.Logger

	// 同一个 key 的在途后台刷新去重，避免惊群打爆上游
	refreshing sync.Map

	nowFunc func() time.Time
	spawn   func(func()) // 后台任务执行器，便于测试里换成同步版本
}

// NewEvaluationService 创建评估服务
func NewEvaluationService(
	collector port.RepoCollector,
	registry port.RegistryCollector,
	store port.Store,
	engine *scoring.Engine,
	models []scoring.ModelProfile,
	maxAge time.Duration,
	log *logrus.Logger,
) *EvaluationService {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &EvaluationService{
		collector: collector,
		registry:  registry,
		store:     store,
		engine:    engine,
		models:    models,
		maxAge:    maxAge,
		log:       log,
		nowFunc:   time.Now,
		spawn:     func(fn func()) { go fn() },
	}
}

// GetOrRefresh 对外的读入口，按记录状态三分支：
//  1. miss（没有记录 或 schema 版本过低）→ 同步抓取入库后返回
//  2. fresh（now - fetchedAt ≤ maxAge）→ 直接返回，无副作用
//  3. stale → 立即返回旧记录，同时调度一次后台刷新；刷新失败只记日志，
//     旧记录继续作为权威数据，直到某次刷新成功
func (s *EvaluationService) GetOrRefresh(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error) {
	record, err := s.store.GetByKey(ctx, id)
	if err != nil {
		return nil, err
	}

	if record == nil || record.DataVersion < domain.DataVersion {
		// 版本过低静默当 miss，不算错误
		return s.fetchAndStore(ctx, id)
	}

	age := s.nowFunc().Sub(record.FetchedAt)
	if age <= s.maxAge {
		return record, nil
	}

	s.scheduleRefresh(id)
	return record, nil
}

// scheduleRefresh 调度一次后台刷新，同 key 在途时跳过
func (s *EvaluationService) scheduleRefresh(id domain.RepoIdentity) {
	slug := id.Slug()
	if _, inflight := s.refreshing.LoadOrStore(slug, struct{}{}); inflight {
		return
	}

	s.spawn(func() {
		defer s.refreshing.Delete(slug)

		// 触发请求的响应早就发出去了，这里用独立的 context
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		if _, err := s.fetchAndStore(ctx, id); err != nil {
			// 吞掉错误：旧记录还在，下一次 stale 命中会再试
			s.log.WithField("repo", slug).WithError(err).Warn("后台刷新失败")
			return
		}
		s.log.WithField("repo", slug).Info("后台刷新完成")
	})
}

// fetchAndStore 完整的抓取流水线：采集 → 组装 → N 个模型评分 → 入库
// 只有主调用（仓库身份解析）失败和入库失败会让它报错，其余采集全部降级
func (s *EvaluationService) fetchAndStore(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error) {
	info, err := s.collector.GetRepoInfo(ctx, id)
	if err != nil {
		return nil, err
	}

	// 其余采集器并发跑，全部 best-effort，不会有 error 冒出来
	// activity 依赖 releases 算发版节奏，所以跟在同一个 goroutine 里
	var (
		releases []domain.ReleaseInfo
		docs     domain.DocSignals
		activity domain.ActivitySignals
		pkg      *domain.PackageInfo
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		releases = s.collector.ListReleases(egCtx, id)
		activity = s.collector.GetActivity(egCtx, id, releases)
		return nil
	})
	eg.Go(func() error {
		docs = s.collector.GetDocSignals(egCtx, id)
		return nil
	})
	eg.Go(func() error {
		pkg = s.registry.GetPackageInfo(egCtx, id)
		return nil
	})
	_ = eg.Wait()

	signals := domain.RawSignalBundle{
		Repo:     info,
		Releases: releases,
		Package:  pkg,
		Docs:     docs,
		Activity: activity,
	}

	record := &domain.CachedRepoData{
		Identity:    id,
		Category:    deriveCategory(info),
		Signals:     signals,
		Scores:      make(map[string]domain.RepoScore, len(s.models)),
		Sources:     sourceURLs(id, pkg),
		FetchedAt:   s.nowFunc().UTC(),
		DataVersion: domain.DataVersion,
	}
	for _, model := range s.models {
		record.Scores[model.ID] = s.engine.Score(signals, model)
	}

	if err := s.store.Upsert(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// RefreshStale 扫一遍汇总索引，把过期的记录用小工作池刷新一轮
// 给定时任务用；返回成功刷新的条数
func (s *EvaluationService) RefreshStale(ctx context.Context, workers int) int {
	if workers <= 0 {
		workers = 3
	}

	entries, err := s.store.ListSummaries(ctx, "")
	if err != nil {
		s.log.WithError(err).Error("扫描汇总索引失败")
		return 0
	}

	cutoff := s.nowFunc().Add(-s.maxAge)
	jobs := make(chan domain.RepoIdentity, len(entries))
	for _, entry := range entries {
		if entry.FetchedAt.Before(cutoff) {
			jobs <- entry.Identity
		}
	}
	close(jobs)

	var wg sync.WaitGroup
	var mu sync.Mutex
	refreshed := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for id := range jobs {
				if _, err := s.fetchAndStore(ctx, id); err != nil {
					s.log.WithFields(logrus.Fields{"worker": workerID, "repo": id.Slug()}).
						WithError(err).Warn("定时刷新失败")
					continue
				}
				mu.Lock()
				refreshed++
				mu.Unlock()
			}
		}(i + 1)
	}
	wg.Wait()
	return refreshed
}

// 话题关键词 → 分类的粗粒度映射，第一个命中的生效
var categoryByTopic = []struct {
	keyword  string
	category string
}{
	{"frontend", "frontend"}, {"react", "frontend"}, {"vue", "frontend"}, {"ui", "frontend"},
	{"backend", "backend"}, {"server", "backend"}, {"api", "backend"}, {"framework", "backend"},
	{"database", "data"}, {"sql", "data"}, {"cache", "data"},
	{"machine-learning", "ai"}, {"llm", "ai"}, {"ai", "ai"},
	{"cli", "tooling"}, {"devops", "tooling"}, {"testing", "tooling"},
}

// deriveCategory 从话题标签猜一个展示用的分类，兜底用主语言归类
func deriveCategory(info domain.RepoInfo) string {
	for _, topic := range info.Topics {
		t := strings.ToLower(topic)
		for _, m := range categoryByTopic {
			if t == m.keyword {
				return m.category
			}
		}
	}
	switch info.Language {
	case "JavaScript", "TypeScript", "CSS", "HTML":
		return "frontend"
	case "Go", "Java", "Rust", "C#", "PHP", "Ruby":
		return "backend"
	case "Python":
		return "ai"
	case "":
		return "other"
	default:
		return "other"
	}
}

// sourceURLs 记录的数据来源，做审计用
func sourceURLs(id domain.RepoIdentity, pkg *domain.PackageInfo) []string {
	sources := []string{
		"https://github.com/" + id.Slug(),
		"https://api.github.com/repos/" + id.Slug(),
	}
	if pkg != nil {
		sources = append(sources, "https://registry.npmjs.org/"+pkg.Name)
	}
	return sources
}
