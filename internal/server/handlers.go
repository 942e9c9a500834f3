package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/AIEraStack/AIEraStack/internal/adapter/badge"
	"github.com/AIEraStack/AIEraStack/internal/common"
	"github.com/AIEraStack/AIEraStack/internal/domain"
	"github.com/AIEraStack/AIEraStack/internal/scoring"
)

// handleRepo GET /api/repo?owner=&name= → 完整的 CachedRepoData
func (s *Server) handleRepo(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		setCORSHeaders(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if owner == "" || name == "" {
		s.writeError(w, http.StatusBadRequest, "owner and name are required")
		return
	}

	record, err := s.evaluator.GetOrRefresh(r.Context(), domain.RepoIdentity{Owner: owner, Name: name})
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.Code == common.ErrCodeRepoNotFound {
			s.writeError(w, http.StatusNotFound, "repository not found")
			return
		}
		s.log.WithField("repo", owner+"/"+name).WithError(err).Error("获取记录失败")
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

type reposResponse struct {
	Repos       []domain.IndexEntry `json:"repos"`
	TotalCount  int                 `json:"total_count"`
	GeneratedAt string              `json:"generated_at"`
}

// handleRepos GET /api/repos?category= → 汇总索引列表（不加载完整记录）
func (s *Server) handleRepos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := s.store.ListSummaries(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.log.WithError(err).Error("查询汇总失败")
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if entries == nil {
		entries = []domain.IndexEntry{}
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	s.writeJSON(w, http.StatusOK, reposResponse{
		Repos:       entries,
		TotalCount:  len(entries),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleCompare GET /api/compare?repos=owner/name,owner/name
// 对比评估由离线工具预生成，这里只按内容哈希读表
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := r.URL.Query().Get("repos")
	slugs := strings.Split(raw, ",")
	valid := slugs[:0]
	for _, slug := range slugs {
		slug = strings.TrimSpace(slug)
		if strings.Count(slug, "/") == 1 {
			valid = append(valid, slug)
		}
	}
	if len(valid) < 2 {
		s.writeError(w, http.StatusBadRequest, "at least two owner/name slugs are required")
		return
	}

	payload, err := s.store.GetComparison(r.Context(), domain.ComparisonHash(valid))
	if err != nil {
		s.log.WithError(err).Error("查询对比评估失败")
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if payload == nil {
		s.writeError(w, http.StatusNotFound, "comparison not found")
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(json.RawMessage(payload))
}

// handleBadge GET /badge/{owner}/{name}.svg?llm={modelID}
// 这个端点给 <img> 消费，无论内部出什么问题都必须回 200 的 SVG，
// 错误一律渲染成灰色的降级徽章
func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")

	model, ok := s.badgeModel(r.URL.Query().Get("llm"))
	modelName := "ai-era-stack"
	if ok {
		modelName = model.DisplayName
	}

	owner, name, pathOK := parseBadgePath(r.URL.Path)
	if !pathOK || !ok {
		w.Write([]byte(badge.ForError(modelName)))
		return
	}

	cacheKey := owner + "/" + name + "@" + model.ID
	if svg, hit := s.badgeCache.Get(cacheKey); hit {
		w.Write([]byte(svg))
		return
	}

	record, err := s.evaluator.GetOrRefresh(r.Context(), domain.RepoIdentity{Owner: owner, Name: name})
	if err != nil || record == nil {
		if err != nil {
			s.log.WithField("repo", owner+"/"+name).WithError(err).Warn("徽章降级")
		}
		w.Write([]byte(badge.ForError(modelName)))
		return
	}

	score, found := record.Scores[model.ID]
	if !found {
		w.Write([]byte(badge.ForError(modelName)))
		return
	}

	svg := badge.ForScore(modelName, score.Grade, score.Overall)
	s.badgeCache.Add(cacheKey, svg)
	w.Write([]byte(svg))
}

// badgeModel 解析 llm 参数，缺省用注册表里的第一个模型
func (s *Server) badgeModel(modelID string) (scoring.ModelProfile, bool) {
	if len(s.models) == 0 {
		return scoring.ModelProfile{}, false
	}
	if modelID == "" {
		return s.models[0], true
	}
	return scoring.FindModel(s.models, modelID)
}

// parseBadgePath 解析 /badge/{owner}/{name}.svg
func parseBadgePath(path string) (owner, name string, ok bool) {
	trimmed := strings.TrimPrefix(path, "/badge/")
	trimmed = strings.TrimSuffix(trimmed, ".svg")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
