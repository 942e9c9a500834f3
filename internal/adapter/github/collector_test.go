package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AIEraStack/AIEraStack/internal/common"
	"github.com/AIEraStack/AIEraStack/internal/domain"

	"github.com/google/go-github/v53/github"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCollector 把 go-github 客户端指到本地 mock 服务器
func newTestCollector(t *testing.T, mux *http.ServeMux) (*Collector, func()) {
	server := httptest.NewServer(mux)

	client := github.NewClient(nil)
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = baseURL

	log := logrus.New()
	log.SetOutput(io.Discard)

	return &Collector{client: client, log: log}, server.Close
}

func testTime(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCollector_GetRepoInfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/rocket", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"description": "A rocket framework",
			"stargazers_count": 4200,
			"forks_count": 310,
			"open_issues_count": 25,
			"language": "TypeScript",
			"license": {"spdx_id": "MIT"},
			"topics": ["framework", "web"],
			"created_at": "2019-03-01T00:00:00Z",
			"updated_at": "2025-06-01T00:00:00Z",
			"pushed_at": "2025-06-10T00:00:00Z"
		}`)
	})

	collector, closeFn := newTestCollector(t, mux)
	defer closeFn()

	info, err := collector.GetRepoInfo(context.Background(), domain.RepoIdentity{Owner: "acme", Name: "rocket"})
	require.NoError(t, err)

	assert.Equal(t, "A rocket framework", info.Description)
	assert.Equal(t, 4200, info.Stars)
	assert.Equal(t, 310, info.Forks)
	assert.Equal(t, 25, info.OpenIssues)
	assert.Equal(t, "TypeScript", info.Language)
	assert.True(t, info.StaticallyTyped)
	assert.Equal(t, "MIT", info.License)
	assert.Equal(t, []string{"framework", "web"}, info.Topics)
	assert.Equal(t, testTime(2019, time.March, 1), info.CreatedAt)
	assert.Equal(t, testTime(2025, time.June, 10), info.PushedAt)
}

func TestCollector_GetRepoInfo_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/ghost", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	collector, closeFn := newTestCollector(t, mux)
	defer closeFn()

	_, err := collector.GetRepoInfo(context.Background(), domain.RepoIdentity{Owner: "acme", Name: "ghost"})
	require.Error(t, err)

	// 404 必须映射成 REPO_NOT_FOUND，handler 靠它返回对应的状态码
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.ErrCodeRepoNotFound, appErr.Code)
}

func TestCollector_ListReleases(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/rocket/releases", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"tag_name": "v2.1.0", "prerelease": false, "published_at": "2025-01-15T00:00:00Z"},
			{"tag_name": "v2.1.0-rc.1", "prerelease": true, "published_at": "2025-01-01T00:00:00Z"},
			{"tag_name": "nightly-build", "prerelease": false, "published_at": "2024-12-20T00:00:00Z"}
		]`)
	})

	collector, closeFn := newTestCollector(t, mux)
	defer closeFn()

	releases := collector.ListReleases(context.Background(), domain.RepoIdentity{Owner: "acme", Name: "rocket"})
	require.Len(t, releases, 3)

	assert.Equal(t, "v2.1.0", releases[0].Tag)
	assert.True(t, releases[0].Parsed)
	assert.Equal(t, 2, releases[0].Major)
	assert.Equal(t, 1, releases[0].Minor)
	assert.Equal(t, 0, releases[0].Patch)
	assert.False(t, releases[0].Prerelease)

	assert.True(t, releases[1].Prerelease)
	// 解析不了的 tag 保留原文，Parsed 为 false
	assert.False(t, releases[2].Parsed)
}

func TestCollector_ListReleases_Degrades(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/rocket/releases", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	collector, closeFn := newTestCollector(t, mux)
	defer closeFn()

	// best-effort：上游出错时降级为空列表，不报错
	releases := collector.ListReleases(context.Background(), domain.RepoIdentity{Owner: "acme", Name: "rocket"})
	assert.Empty(t, releases)
}

func TestCollector_GetDocSignals(t *testing.T) {
	readmeBody := "# Rocket\n\nSee the [documentation](https://docs.rocket.dev) and [examples](./examples) to get started.\n"

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/rocket/contents/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"name": "docs", "type": "dir"},
			{"name": "CHANGELOG.md", "type": "file"},
			{"name": "llms.txt", "type": "file"},
			{"name": "AGENTS.md", "type": "file"},
			{"name": "README.md", "type": "file"}
		]`)
	})
	mux.HandleFunc("/repos/acme/rocket/readme", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"name": "README.md", "size": 8200, "encoding": "", "content": %q}`, readmeBody)
	})

	collector, closeFn := newTestCollector(t, mux)
	defer closeFn()

	signals := collector.GetDocSignals(context.Background(), domain.RepoIdentity{Owner: "acme", Name: "rocket"})

	assert.True(t, signals.HasDocs)
	assert.True(t, signals.HasChangelog)
	assert.True(t, signals.HasLLMsManifest)
	assert.True(t, signals.HasAgentsFile)
	assert.False(t, signals.HasClaudeFile)
	assert.Equal(t, 8200, signals.ReadmeBytes)
	// examples/ 目录没有，但 README 里的示例链接也算数
	assert.True(t, signals.HasExamples)
}

// 瞬时 5xx 在有限重试内自动恢复，best-effort 调用也不例外
func TestCollector_GetDocSignals_RetriesTransient(t *testing.T) {
	var contentsCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/rocket/contents/", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&contentsCalls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"message": "upstream hiccup"}`)
			return
		}
		fmt.Fprint(w, `[{"name": "docs", "type": "dir"}]`)
	})
	mux.HandleFunc("/repos/acme/rocket/readme", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "README.md", "size": 3000, "encoding": "", "content": "# rocket"}`)
	})

	collector, closeFn := newTestCollector(t, mux)
	defer closeFn()

	signals := collector.GetDocSignals(context.Background(), domain.RepoIdentity{Owner: "acme", Name: "rocket"})

	assert.EqualValues(t, 2, atomic.LoadInt32(&contentsCalls))
	assert.True(t, signals.HasDocs)
	assert.Equal(t, 3000, signals.ReadmeBytes)
}

func TestCollector_GetDocSignals_Degrades(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	collector, closeFn := newTestCollector(t, mux)
	defer closeFn()

	signals := collector.GetDocSignals(context.Background(), domain.RepoIdentity{Owner: "acme", Name: "rocket"})
	assert.Equal(t, domain.DocSignals{}, signals)
}

func TestCollector_GetActivity(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/rocket/commits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"commit": {"author": {"date": "2025-06-10T00:00:00Z"}}},
			{"commit": {"author": {"date": "2025-06-05T00:00:00Z"}}},
			{"commit": {"author": {"date": "2025-05-27T00:00:00Z"}}}
		]`)
	})
	mux.HandleFunc("/repos/acme/rocket/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"number": 1, "created_at": "2025-06-01T00:00:00Z", "closed_at": "2025-06-01T12:00:00Z"},
			{"number": 2, "created_at": "2025-06-02T00:00:00Z", "closed_at": "2025-06-03T12:00:00Z"},
			{"number": 3, "created_at": "2025-06-04T00:00:00Z", "closed_at": null}
		]`)
	})

	collector, closeFn := newTestCollector(t, mux)
	defer closeFn()

	releases := []domain.ReleaseInfo{
		domain.NewRelease("v1.0.0", false, testTime(2025, time.January, 1)),
		domain.NewRelease("v1.1.0", false, testTime(2025, time.March, 2)),
	}
	activity := collector.GetActivity(context.Background(), domain.RepoIdentity{Owner: "acme", Name: "rocket"}, releases)

	assert.Equal(t, 3, activity.RecentCommits)
	// 14 天 3 条 commit = 1.5 条/周
	assert.InDelta(t, 1.5, activity.CommitsPerWeek, 0.001)
	// 没关闭的 PR 不参与统计
	assert.Equal(t, 2, activity.RecentClosedPRs)
	// (12h + 36h) / 2 = 24h
	assert.InDelta(t, 24, activity.AvgPRCloseHours, 0.001)
	// v1.0.0 → v1.1.0 相隔 60 天
	assert.InDelta(t, 60, activity.AvgDaysBetweenStable, 0.001)
}

func TestCommitsPerWeek(t *testing.T) {
	commit := func(d time.Time) *github.RepositoryCommit {
		return &github.RepositoryCommit{
			Commit: &github.Commit{
				Author: &github.CommitAuthor{Date: &github.Timestamp{Time: d}},
			},
		}
	}

	tests := []struct {
		name    string
		commits []*github.RepositoryCommit
		want    float64
	}{
		{"没有commit", nil, 0},
		{"只有一条按原数计", []*github.RepositoryCommit{commit(testTime(2025, time.June, 1))}, 1},
		{
			"两周四条",
			[]*github.RepositoryCommit{
				commit(testTime(2025, time.June, 15)),
				commit(testTime(2025, time.June, 10)),
				commit(testTime(2025, time.June, 5)),
				commit(testTime(2025, time.June, 1)),
			},
			2,
		},
		{
			"时间跨度为零时按原数计",
			[]*github.RepositoryCommit{
				commit(testTime(2025, time.June, 1)),
				commit(testTime(2025, time.June, 1)),
			},
			2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, commitsPerWeek(tt.commits), 0.001)
		})
	}
}

func TestAvgDaysBetweenStable(t *testing.T) {
	tests := []struct {
		name     string
		releases []domain.ReleaseInfo
		want     float64
	}{
		{"没有release", nil, 0},
		{
			"只有一个稳定版无数据",
			[]domain.ReleaseInfo{domain.NewRelease("v1.0.0", false, testTime(2025, time.January, 1))},
			0,
		},
		{
			"patch和预发布不参与节奏统计",
			[]domain.ReleaseInfo{
				domain.NewRelease("v1.0.0", false, testTime(2025, time.January, 1)),
				domain.NewRelease("v1.0.1", false, testTime(2025, time.January, 10)),
				domain.NewRelease("v1.1.0-beta", true, testTime(2025, time.January, 20)),
			},
			0,
		},
		{
			"乱序输入也能算对",
			[]domain.ReleaseInfo{
				domain.NewRelease("v1.2.0", false, testTime(2025, time.March, 2)),
				domain.NewRelease("v1.0.0", false, testTime(2025, time.January, 1)),
				domain.NewRelease("v1.1.0", false, testTime(2025, time.January, 31)),
			},
			30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, avgDaysBetweenStable(tt.releases), 0.001)
		})
	}
}
