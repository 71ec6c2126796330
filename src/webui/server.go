// Package webui 提供筛选查询的 REST 接口和实时日志页面
package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/alvinn6o/450-Project-2-Team-2/src/processor"
	"github.com/alvinn6o/450-Project-2-Team-2/src/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options 服务器参数
type Options struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration // /api/v1 下每个请求的超时，0 表示不限制
	ChartWidth     int
	ChartHeight    int
}

// Server REST API 服务器
type Server struct {
	data    atomic.Pointer[processor.Context]
	logger  *storage.Logger
	opts    Options
	router  *chi.Mux
	server  *http.Server
	started time.Time
}

// NewServer pc 在数据文件重新加载后可以通过 SetContext 替换
func NewServer(opts Options, pc *processor.Context, logger *storage.Logger) *Server {
	s := &Server{
		logger:  logger,
		opts:    opts,
		router:  chi.NewRouter(),
		started: time.Now(),
	}
	s.data.Store(pc)

	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api/v1", func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}
		r.Get("/health", s.handleHealth)
		r.Get("/options", s.handleOptions)
		r.Get("/view", s.handleView)
		r.Post("/view", s.handleView)
		r.Get("/chart/scatter.png", s.handleScatter)
		r.Get("/chart/pie.png", s.handlePie)
	})

	// 日志流是长连接，不加超时
	if logger != nil {
		s.router.Get("/logs", s.handleLogs)
	}

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler 供测试和嵌入使用
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetContext 替换查询使用的数据
func (s *Server) SetContext(pc *processor.Context) {
	s.data.Store(pc)
}

// Context 当前数据
func (s *Server) Context() *processor.Context {
	return s.data.Load()
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) logf(level storage.LogLevel, format string, args ...any) {
	if s.logger != nil {
		s.logger.Logf(level, format, args...)
	}
}

// PaginationParams contains pagination parameters from query string.
type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams extracts pagination parameters from request.
// Defaults: limit=500, offset=0, max_limit=5000
func parsePaginationParams(r *http.Request) PaginationParams {
	const (
		defaultLimit = 500
		maxLimit     = 5000
	)

	limit := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}

// PaginatedRows 分页后的结果行
type PaginatedRows struct {
	Data    []processor.ViewRow `json:"data"`
	Total   int                 `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
	HasMore bool                `json:"has_more"`
}

func paginate(items []processor.ViewRow, params PaginationParams) PaginatedRows {
	total := len(items)
	start := params.Offset
	end := start + params.Limit

	if start >= total {
		return PaginatedRows{
			Data:   []processor.ViewRow{},
			Total:  total,
			Limit:  params.Limit,
			Offset: params.Offset,
		}
	}
	if end > total {
		end = total
	}

	return PaginatedRows{
		Data:    items[start:end],
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: end < total,
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// handleLogs 把新的日志行持续推送给客户端，直到客户端断开
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// 先订阅再返回响应头，客户端收到响应头后的日志不会丢
	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	// 长连接不受 http.Server 的 WriteTimeout 限制
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.logf(storage.WARNING, "清除日志流写超时失败: %v", err)
	}

	// 设置响应头
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			// 如果写入失败(如客户端断开连接)，则退出循环
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
