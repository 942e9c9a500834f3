package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AIEraStack/AIEraStack/internal/common"
	"github.com/AIEraStack/AIEraStack/internal/domain"
	"github.com/AIEraStack/AIEraStack/internal/scoring"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 轻量的桩实现，按测试用例注入行为
type fakeEvaluator struct {
	calls int
	fn    func(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error)
}

func (f *fakeEvaluator) GetOrRefresh(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error) {
	f.calls++
	return f.fn(ctx, id)
}

type fakeStore struct {
	summaries    []domain.IndexEntry
	summariesErr error
	comparisons  map[string][]byte
}

func (f *fakeStore) Upsert(ctx context.Context, record *domain.CachedRepoData) error { return nil }

func (f *fakeStore) GetByKey(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error) {
	return nil, nil
}

func (f *fakeStore) ListSummaries(ctx context.Context, category string) ([]domain.IndexEntry, error) {
	if f.summariesErr != nil {
		return nil, f.summariesErr
	}
	if category != "" {
		var filtered []domain.IndexEntry
		for _, e := range f.summaries {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		return filtered, nil
	}
	return f.summaries, nil
}

func (f *fakeStore) GetComparison(ctx context.Context, contentHash string) ([]byte, error) {
	return f.comparisons[contentHash], nil
}

func goodRecord() *domain.CachedRepoData {
	return &domain.CachedRepoData{
		Identity: domain.RepoIdentity{Owner: "acme", Name: "rocket"},
		Category: "backend",
		Scores: map[string]domain.RepoScore{
			"gpt-4o":            {Overall: 81, Grade: "B"},
			"claude-3-5-sonnet": {Overall: 88, Grade: "A"},
		},
		FetchedAt:   time.Now().UTC(),
		DataVersion: domain.DataVersion,
	}
}

func newTestServer(evaluator *fakeEvaluator, store *fakeStore) *Server {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(evaluator, store, scoring.DefaultModels(), log)
}

func doRequest(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHandleRepo(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		evalFn     func(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error)
		wantStatus int
	}{
		{
			name:   "成功返回完整记录",
			target: "/api/repo?owner=acme&name=rocket",
			evalFn: func(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error) {
				return goodRecord(), nil
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "缺参数",
			target:     "/api/repo?owner=acme",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "参数只有空白也算缺",
			target:     "/api/repo?owner=acme&name=%20",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "仓库不存在",
			target: "/api/repo?owner=acme&name=ghost",
			evalFn: func(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error) {
				return nil, common.NewError(common.ErrCodeRepoNotFound, "acme/ghost 不存在")
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "其他错误一律500",
			target: "/api/repo?owner=acme&name=rocket",
			evalFn: func(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error) {
				return nil, common.NewError(common.ErrCodeDatabase, "db down")
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator := &fakeEvaluator{fn: tt.evalFn}
			s := newTestServer(evaluator, &fakeStore{})

			rec := doRequest(s, http.MethodGet, tt.target)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

			if tt.wantStatus == http.StatusOK {
				var record domain.CachedRepoData
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
				assert.Equal(t, "acme/rocket", record.Identity.Slug())
				assert.Equal(t, 88, record.Scores["claude-3-5-sonnet"].Overall)
			}
		})
	}

	t.Run("OPTIONS预检", func(t *testing.T) {
		s := newTestServer(&fakeEvaluator{}, &fakeStore{})
		rec := doRequest(s, http.MethodOptions, "/api/repo")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("POST不允许", func(t *testing.T) {
		s := newTestServer(&fakeEvaluator{}, &fakeStore{})
		rec := doRequest(s, http.MethodPost, "/api/repo?owner=a&name=b")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandleRepos(t *testing.T) {
	store := &fakeStore{
		summaries: []domain.IndexEntry{
			{Identity: domain.RepoIdentity{Owner: "acme", Name: "rocket"}, Category: "backend", BestScore: 88},
			{Identity: domain.RepoIdentity{Owner: "acme", Name: "widget"}, Category: "frontend", BestScore: 72},
		},
	}
	s := newTestServer(&fakeEvaluator{}, store)

	t.Run("全量列表", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/repos")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

		var resp reposResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.TotalCount)
		assert.Len(t, resp.Repos, 2)
		assert.NotEmpty(t, resp.GeneratedAt)
	})

	t.Run("按分类过滤", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/repos?category=frontend")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp reposResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.TotalCount)
		assert.Equal(t, "acme/widget", resp.Repos[0].Identity.Slug())
	})

	t.Run("空库返回空数组而不是null", func(t *testing.T) {
		empty := newTestServer(&fakeEvaluator{}, &fakeStore{})
		rec := doRequest(empty, http.MethodGet, "/api/repos")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"repos":[]`)
	})

	t.Run("存储错误500", func(t *testing.T) {
		broken := newTestServer(&fakeEvaluator{}, &fakeStore{summariesErr: common.NewError(common.ErrCodeDatabase, "db down")})
		rec := doRequest(broken, http.MethodGet, "/api/repos")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleCompare(t *testing.T) {
	payload := []byte(`{"verdict":"acme/rocket","rationale":"better coverage"}`)
	store := &fakeStore{
		comparisons: map[string][]byte{
			domain.ComparisonHash([]string{"acme/rocket", "acme/widget"}): payload,
		},
	}
	s := newTestServer(&fakeEvaluator{}, store)

	t.Run("命中预生成结果", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/compare?repos=acme/rocket,acme/widget")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, string(payload), rec.Body.String())
	})

	t.Run("顺序无关", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/compare?repos=acme/widget,acme/rocket")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("没有预生成结果404", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/compare?repos=a/b,c/d")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("不足两个合法slug400", func(t *testing.T) {
		for _, target := range []string{
			"/api/compare",
			"/api/compare?repos=acme/rocket",
			"/api/compare?repos=not-a-slug,also/not/one",
		} {
			rec := doRequest(s, http.MethodGet, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		}
	})
}

func TestHandleBadge(t *testing.T) {
	evaluator := &fakeEvaluator{
		fn: func(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error) {
			if id.Name == "ghost" {
				return nil, common.NewError(common.ErrCodeRepoNotFound, "不存在")
			}
			return goodRecord(), nil
		},
	}
	s := newTestServer(evaluator, &fakeStore{})

	assertSVG := func(t *testing.T, rec *httptest.ResponseRecorder) {
		// 给 <img> 用的端点：永远 200，永远是 SVG
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "image/svg+xml")
		assert.Contains(t, rec.Body.String(), "<svg")
	}

	t.Run("缺省用注册表第一个模型", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/badge/acme/rocket.svg")
		assertSVG(t, rec)
		assert.Contains(t, rec.Body.String(), "GPT-4o")
		assert.Contains(t, rec.Body.String(), "B · 81")
	})

	t.Run("指定模型", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/badge/acme/rocket.svg?llm=claude-3-5-sonnet")
		assertSVG(t, rec)
		assert.Contains(t, rec.Body.String(), "A · 88")
	})

	t.Run("仓库不存在也回200降级徽章", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/badge/acme/ghost.svg")
		assertSVG(t, rec)
		assert.Contains(t, rec.Body.String(), "unavailable")
	})

	t.Run("路径格式不对回降级徽章", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/badge/just-one-part.svg")
		assertSVG(t, rec)
		assert.Contains(t, rec.Body.String(), "unavailable")
	})

	t.Run("未知模型回降级徽章", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/badge/acme/rocket.svg?llm=no-such-model")
		assertSVG(t, rec)
		assert.Contains(t, rec.Body.String(), "unavailable")
	})

	t.Run("热门徽章走进程内缓存", func(t *testing.T) {
		cached := &fakeEvaluator{
			fn: func(ctx context.Context, id domain.RepoIdentity) (*domain.CachedRepoData, error) {
				return goodRecord(), nil
			},
		}
		srv := newTestServer(cached, &fakeStore{})

		first := doRequest(srv, http.MethodGet, "/badge/acme/rocket.svg")
		second := doRequest(srv, http.MethodGet, "/badge/acme/rocket.svg")

		assertSVG(t, second)
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, 1, cached.calls, "第二次必须命中缓存，不碰 evaluator")
	})
}

func TestParseBadgePath(t *testing.T) {
	tests := []struct {
		path      string
		wantOwner string
		wantName  string
		wantOK    bool
	}{
		{"/badge/acme/rocket.svg", "acme", "rocket", true},
		{"/badge/acme/rocket", "acme", "rocket", true},
		{"/badge/acme.svg", "", "", false},
		{"/badge/a/b/c.svg", "", "", false},
		{"/badge/.svg", "", "", false},
	}

	for _, tt := range tests {
		owner, name, ok := parseBadgePath(tt.path)
		assert.Equal(t, tt.wantOK, ok, tt.path)
		assert.Equal(t, tt.wantOwner, owner, tt.path)
		assert.Equal(t, tt.wantName, name, tt.path)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&fakeEvaluator{}, &fakeStore{})
	rec := doRequest(s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
