package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/AIEraStack/AIEraStack/internal/common"
	"github.com/AIEraStack/AIEraStack/internal/domain"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v53/github"
	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// 活跃度统计的固定采样窗口：最近 30 条
const activityWindow = 30

// 静态类型语言集合，用于 AI 友好度的类型信号
var staticallyTyped = map[string]bool{
	"Go": true, "Rust": true, "Java": true, "Kotlin": true,
	"Swift": true, "TypeScript": true, "C": true, "C++": true,
	"C#": true, "Scala": true, "Haskell": true, "Dart": true,
	"Objective-C": true,
}

// Collector 实现了 port.RepoCollector 接口
// 除 GetRepoInfo 外的方法都是 best-effort：出错时返回零值并记日志，绝不中断流程
type Collector struct {
	client *github.Client
	log    *logrus.Logger
}

// NewCollector 初始化 GitHub 客户端
// token 为空时匿名访问（60次/小时）；传 token 可以把限额提到 5000次/小时
// 底层挂了一个二级限流等待器，碰到 secondary rate limit 会自动睡过去
func NewCollector(token string, log *logrus.Logger) (*Collector, error) {
	waiter, err := github_ratelimit.NewRateLimitWaiter(nil,
		github_ratelimit.WithSingleSleepLimit(10*time.Minute, nil))
	if err != nil {
		return nil, fmt.Errorf("创建限流等待器失败: %w", err)
	}

	var httpClient *http.Client
	if token == "" {
		httpClient = &http.Client{Transport: waiter}
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = &http.Client{
			Transport: &oauth2.Transport{Base: waiter, Source: ts},
		}
	}

	return &Collector{client: github.NewClient(httpClient), log: log}, nil
}

// retryTransient 只对限流和 5xx 这类瞬时错误重试，404 之类直接失败
func retryTransient(err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode >= 500
	}
	return false
}

// GetRepoInfo 拉仓库基础信息，这是唯一会让整次抓取失败的主调用
func (c *Collector) GetRepoInfo(ctx context.Context, id domain.RepoIdentity) (domain.RepoInfo, error) {
	var repo *github.Repository
	err := common.Do(ctx, func() error {
		var apiErr error
		repo, _, apiErr = c.client.Repositories.Get(ctx, id.Owner, id.Name)
		return apiErr
	},
		common.WithMaxRetries(3),
		common.WithInitialDelay(time.Second),
		common.WithRetryIf(retryTransient),
	)
	if err != nil {
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound {
			return domain.RepoInfo{}, common.WrapError(common.ErrCodeRepoNotFound, id.Slug()+" 不存在", err)
		}
		return domain.RepoInfo{}, common.WrapError(common.ErrCodeGitHubAPI, "获取仓库信息失败", err)
	}

	lang := repo.GetLanguage()
	return domain.RepoInfo{
		Description:     repo.GetDescription(),
		Stars:           repo.GetStargazersCount(),
		Forks:           repo.GetForksCount(),
		OpenIssues:      repo.GetOpenIssuesCount(),
		Language:        lang,
		StaticallyTyped: staticallyTyped[lang],
		License:         repo.GetLicense().GetSPDXID(),
		Topics:          repo.Topics,
		CreatedAt:       repo.GetCreatedAt().Time,
		UpdatedAt:       repo.GetUpdatedAt().Time,
		PushedAt:        repo.GetPushedAt().Time,
	}, nil
}

// ListReleases 拉最近的 release 并解析版本号，出错时返回空列表
func (c *Collector) ListReleases(ctx context.Context, id domain.RepoIdentity) []domain.ReleaseInfo {
	opts := &github.ListOptions{PerPage: activityWindow}
	var releases []*github.RepositoryRelease
	err := common.Do(ctx, func() error {
		var apiErr error
		releases, _, apiErr = c.client.Repositories.ListReleases(ctx, id.Owner, id.Name, opts)
		return apiErr
	},
		common.WithMaxRetries(2),
		common.WithInitialDelay(time.Second),
		common.WithRetryIf(retryTransient),
	)
	if err != nil {
		c.log.WithField("repo", id.Slug()).WithError(err).Warn("拉取 releases 失败，降级为空列表")
		return nil
	}

	out := make([]domain.ReleaseInfo, 0, len(releases))
	for _, r := range releases {
		out = append(out, domain.NewRelease(r.GetTagName(), r.GetPrerelease(), r.GetPublishedAt().Time))
	}
	return out
}

// GetDocSignals 从根目录列表和 README 推断文档信号，出错时对应信号保持 false
func (c *Collector) GetDocSignals(ctx context.Context, id domain.RepoIdentity) domain.DocSignals {
	signals := domain.DocSignals{}

	// 1. 根目录文件列表
	var entries []*github.RepositoryContent
	err := common.Do(ctx, func() error {
		var apiErr error
		_, entries, _, apiErr = c.client.Repositories.GetContents(ctx, id.Owner, id.Name, "/", nil)
		return apiErr
	},
		common.WithMaxRetries(2),
		common.WithInitialDelay(time.Second),
		common.WithRetryIf(retryTransient),
	)
	if err != nil {
		c.log.WithField("repo", id.Slug()).WithError(err).Warn("读取根目录失败")
	}
	for _, entry := range entries {
		name := strings.ToLower(entry.GetName())
		isDir := entry.GetType() == "dir"
		switch {
		case isDir && (name == "docs" || name == "doc" || name == "documentation"):
			signals.HasDocs = true
		case isDir && (name == "examples" || name == "example" || name == "samples"):
			signals.HasExamples = true
		case strings.HasPrefix(name, "changelog"):
			signals.HasChangelog = true
		case name == "llms.txt" || name == "llms-full.txt":
			signals.HasLLMsManifest = true
		case name == "agents.md":
			signals.HasAgentsFile = true
		case name == "claude.md":
			signals.HasClaudeFile = true
		}
	}

	// 2. README 大小和内链
	var readme *github.RepositoryContent
	err = common.Do(ctx, func() error {
		var apiErr error
		readme, _, apiErr = c.client.Repositories.GetReadme(ctx, id.Owner, id.Name, nil)
		return apiErr
	},
		common.WithMaxRetries(2),
		common.WithInitialDelay(time.Second),
		common.WithRetryIf(retryTransient),
	)
	if err != nil {
		c.log.WithField("repo", id.Slug()).WithError(err).Warn("读取 README 失败")
		return signals
	}
	signals.ReadmeBytes = readme.GetSize()

	// README 里出现文档/示例链接也算数（很多项目文档放外部站点）
	if content, err := readme.GetContent(); err == nil {
		lower := strings.ToLower(content)
		if !signals.HasDocs && (strings.Contains(lower, "](https://docs.") || strings.Contains(lower, "/docs)") || strings.Contains(lower, "documentation](")) {
			signals.HasDocs = true
		}
		if !signals.HasExamples && (strings.Contains(lower, "examples](") || strings.Contains(lower, "/examples)")) {
			signals.HasExamples = true
		}
	}
	return signals
}

// GetActivity 统计近期 commit / PR 活跃度和稳定版发布节奏
func (c *Collector) GetActivity(ctx context.Context, id domain.RepoIdentity, releases []domain.ReleaseInfo) domain.ActivitySignals {
	activity := domain.ActivitySignals{
		AvgDaysBetweenStable: avgDaysBetweenStable(releases),
	}

	// 最近 30 条 commit
	var commits []*github.RepositoryCommit
	err := common.Do(ctx, func() error {
		var apiErr error
		commits, _, apiErr = c.client.Repositories.ListCommits(ctx, id.Owner, id.Name,
			&github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: activityWindow}})
		return apiErr
	},
		common.WithMaxRetries(2),
		common.WithInitialDelay(time.Second),
		common.WithRetryIf(retryTransient),
	)
	if err != nil {
		c.log.WithField("repo", id.Slug()).WithError(err).Warn("拉取 commits 失败")
	}
	activity.RecentCommits = len(commits)
	activity.CommitsPerWeek = commitsPerWeek(commits)

	// 最近 30 个已关闭的 PR
	var prs []*github.PullRequest
	err = common.Do(ctx, func() error {
		var apiErr error
		prs, _, apiErr = c.client.PullRequests.List(ctx, id.Owner, id.Name, &github.PullRequestListOptions{
			State:       "closed",
			Sort:        "updated",
			Direction:   "desc",
			ListOptions: github.ListOptions{PerPage: activityWindow},
		})
		return apiErr
	},
		common.WithMaxRetries(2),
		common.WithInitialDelay(time.Second),
		common.WithRetryIf(retryTransient),
	)
	if err != nil {
		c.log.WithField("repo", id.Slug()).WithError(err).Warn("拉取 PR 失败")
		return activity
	}

	var latencies []float64
	for _, pr := range prs {
		if pr.ClosedAt == nil || pr.CreatedAt == nil {
			continue
		}
		latencies = append(latencies, pr.ClosedAt.Sub(pr.CreatedAt.Time).Hours())
	}
	activity.RecentClosedPRs = len(latencies)
	if len(latencies) > 0 {
		if mean, err := stats.Mean(latencies); err == nil {
			activity.AvgPRCloseHours = mean
		}
	}
	return activity
}

// commitsPerWeek 由采样窗口内首末两条 commit 的时间跨度折算每周频率
func commitsPerWeek(commits []*github.RepositoryCommit) float64 {
	if len(commits) < 2 {
		return float64(len(commits))
	}
	newest := commits[0].GetCommit().GetAuthor().GetDate().Time
	oldest := commits[len(commits)-1].GetCommit().GetAuthor().GetDate().Time
	weeks := newest.Sub(oldest).Hours() / (24 * 7)
	if weeks <= 0 {
		return float64(len(commits))
	}
	return float64(len(commits)) / weeks
}

// avgDaysBetweenStable 稳定小版本 (x.y.0, 非预发布) 之间的平均间隔天数
// 不足两个稳定版时返回 0，表示无数据
func avgDaysBetweenStable(releases []domain.ReleaseInfo) float64 {
	stable := domain.StableMinorReleases(releases)
	if len(stable) < 2 {
		return 0
	}
	sort.Slice(stable, func(i, j int) bool {
		return stable[i].PublishedAt.Before(stable[j].PublishedAt)
	})

	var gaps []float64
	for i := 1; i < len(stable); i++ {
		gaps = append(gaps, stable[i].PublishedAt.Sub(stable[i-1].PublishedAt).Hours()/24)
	}
	mean, err := stats.Mean(gaps)
	if err != nil {
		return 0
	}
	return mean
}
