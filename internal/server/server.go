package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AIEraStack/AIEraStack/internal/port"
	"github.com/AIEraStack/AIEraStack/internal/scoring"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// 渲染好的徽章在进程内缓存一会儿，热门仓库的图片请求不用每次都走存储
const (
	badgeCacheSize = 2048
	badgeCacheTTL  = 5 * time.Minute
)

// Server HTTP 层：只做参数解析和编解码，所有语义都在 service 里
type Server struct {
	evaluator  port.Evaluator
	store      port.Store
	models     []scoring.ModelProfile
	badgeCache *expirable.LRU[string, string]
	log        *logrus.Logger
}

// New 创建 HTTP 服务
func New(evaluator port.Evaluator, store port.Store, models []scoring.ModelProfile, log *logrus.Logger) *Server {
	return &Server{
		evaluator:  evaluator,
		store:      store,
		models:     models,
		badgeCache: expirable.NewLRU[string, string](badgeCacheSize, nil, badgeCacheTTL),
		log:        log,
	}
}

// Handler 注册全部路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/repo", s.handleRepo)
	mux.HandleFunc("/api/repos", s.handleRepos)
	mux.HandleFunc("/api/compare", s.handleCompare)
	mux.HandleFunc("/badge/", s.handleBadge)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
}

// writeJSON 统一的 JSON 响应出口
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.WithError(err).Error("写响应失败")
	}
}

// writeError JSON 错误对象 + 对应的 HTTP 状态码
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
