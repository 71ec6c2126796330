package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/alvinn6o/450-Project-2-Team-2/src/datapush"
	"github.com/alvinn6o/450-Project-2-Team-2/src/processor"
	"github.com/alvinn6o/450-Project-2-Team-2/src/storage"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Rows      int                    `json:"rows"`
	Report    *processor.CleanReport `json:"report,omitempty"`
	AllocMB   uint64                 `json:"alloc_mb"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		AllocMB:   m.Alloc / 1024 / 1024,
	}
	if pc := s.Context(); pc != nil {
		report := pc.Report()
		resp.Rows = pc.Rows()
		resp.Report = &report
	} else {
		resp.Status = "loading"
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	pc := s.Context()
	if pc == nil {
		respondError(w, http.StatusServiceUnavailable, "data not loaded")
		return
	}
	respondJSON(w, http.StatusOK, pc.Options())
}

// ViewRequest 查询条件。每个维度可以是单个值或数组，空或包含 "All" 表示不限制
type ViewRequest struct {
	Years    stringList `json:"year"`
	Carriers stringList `json:"carrier"`
	States   stringList `json:"state"`
	Causes   stringList `json:"cause"`
	Mode     string     `json:"mode"`
}

// Spec 转换为筛选条件
func (v ViewRequest) Spec() processor.FilterSpec {
	return processor.FilterSpec{
		Years:    processor.ParseSelection(v.Years),
		Carriers: processor.ParseSelection(v.Carriers),
		States:   processor.ParseSelection(v.States),
		Causes:   processor.ParseSelection(v.Causes),
	}
}

// stringList JSON 中接受 "x"、2020、["x", 2020] 几种写法
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	var raw []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = []json.RawMessage{data}
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("无效的筛选值 %s", string(item))
		}
		out = append(out, n.String())
	}
	*l = out
	return nil
}

// parseViewRequest GET 读取查询参数(可重复)，POST 读取 JSON
func parseViewRequest(r *http.Request) (ViewRequest, error) {
	if r.Method == http.MethodPost {
		var req ViewRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("解析请求失败: %w", err)
		}
		return req, nil
	}

	q := r.URL.Query()
	return ViewRequest{
		Years:    q["year"],
		Carriers: q["carrier"],
		States:   q["state"],
		Causes:   q["cause"],
		Mode:     q.Get("mode"),
	}, nil
}

// ViewResponse 散点图数据和饼图汇总
type ViewResponse struct {
	Title    string               `json:"title"`
	Mode     string               `json:"mode"`
	Jittered bool                 `json:"jittered"`
	Pie      processor.PieSummary `json:"pie"`
	Rows     PaginatedRows        `json:"rows"`
}

// run 解析请求并执行一次查询，出错时已写好响应
func (s *Server) run(w http.ResponseWriter, r *http.Request) (*processor.Result, bool) {
	pc := s.Context()
	if pc == nil {
		respondError(w, http.StatusServiceUnavailable, "data not loaded")
		return nil, false
	}

	req, err := parseViewRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	mode, err := processor.ParseViewMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	s.logf(storage.DEBUG, "查询 %s", req)

	res, err := pc.Run(r.Context(), req.Spec(), mode)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, context.Canceled):
			// 客户端已断开
			return nil, false
		}
		s.logf(storage.ERROR, "查询失败: %v", err)
		respondError(w, status, err.Error())
		return nil, false
	}
	return res, true
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	res, ok := s.run(w, r)
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, ViewResponse{
		Title:    res.Title(),
		Mode:     res.Mode,
		Jittered: res.Jittered,
		Pie:      res.Pie,
		Rows:     paginate(res.Records(), parsePaginationParams(r)),
	})
}

func (s *Server) handleScatter(w http.ResponseWriter, r *http.Request) {
	res, ok := s.run(w, r)
	if !ok {
		return
	}
	s.renderPNG(w, func(buf *bytes.Buffer) error {
		width, height := s.chartSize(r)
		return datapush.RenderScatter(buf, res.Records(), res.Title(), width, height)
	})
}

func (s *Server) handlePie(w http.ResponseWriter, r *http.Request) {
	res, ok := s.run(w, r)
	if !ok {
		return
	}
	s.renderPNG(w, func(buf *bytes.Buffer) error {
		width, height := s.chartSize(r)
		return datapush.RenderPie(buf, res.Pie, res.Title(), width, height)
	})
}

// chartSize 查询参数 width/height 覆盖默认尺寸
func (s *Server) chartSize(r *http.Request) (int, int) {
	width, height := s.opts.ChartWidth, s.opts.ChartHeight
	if v, err := strconv.Atoi(r.URL.Query().Get("width")); err == nil && v > 0 && v <= 4096 {
		width = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("height")); err == nil && v > 0 && v <= 4096 {
		height = v
	}
	return width, height
}

// renderPNG 没有可绘制的内容时返回 204
func (s *Server) renderPNG(w http.ResponseWriter, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	err := render(&buf)
	if errors.Is(err, datapush.ErrNothingToDraw) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.logf(storage.ERROR, "绘制图表失败: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

// String 便于日志输出
func (v ViewRequest) String() string {
	return fmt.Sprintf("year=%s carrier=%s state=%s cause=%s mode=%s",
		strings.Join(v.Years, "|"), strings.Join(v.Carriers, "|"),
		strings.Join(v.States, "|"), strings.Join(v.Causes, "|"), v.Mode)
}
