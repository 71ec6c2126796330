package webui

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alvinn6o/450-Project-2-Team-2/src/processor"
	"github.com/alvinn6o/450-Project-2-Team-2/src/storage"
	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *storage.Logger) {
	t.Helper()
	raw := dataframe.LoadRecords([][]string{
		{"year", "carrier_name", "airport_name", "arr_flights", "arr_del15", "arr_delay",
			"carrier_ct", "weather_ct", "nas_ct", "security_ct", "late_aircraft_ct"},
		{"2020", "Delta Air Lines Inc.", "Atlanta, GA: Hartsfield-Jackson", "100", "10", "300", "5", "2", "1", "0", "2"},
		{"2020", "Alaska Airlines Inc.", "Seattle, WA: Seattle/Tacoma", "250", "40", "900", "10", "5", "15", "1", "9"},
		{"2021", "Delta Air Lines Inc.", "Boston, MA: Logan International", "80", "0", "0", "0", "0", "0", "0", "0"},
	})
	require.NoError(t, raw.Err)
	pc, err := processor.NewContext(raw, processor.WithJitterer(processor.NewSeededJitterer(1)))
	require.NoError(t, err)

	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "app.log"))
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	return NewServer(Options{RequestTimeout: 5 * time.Second, ChartWidth: 320, ChartHeight: 240}, pc, logger), logger
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) ViewResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ViewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 15, resp.Rows)
	require.NotNil(t, resp.Report)
	assert.Equal(t, 3, resp.Report.RowsKept)
}

func TestOptions(t *testing.T) {
	s, _ := newTestServer(t)
	w := doRequest(t, s, http.MethodGet, "/api/v1/options", "")
	require.Equal(t, http.StatusOK, w.Code)

	var opts processor.Options
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &opts))
	assert.Equal(t, []int{2020, 2021}, opts.Years)
	assert.Equal(t, []string{"Alaska Airlines Inc.", "Delta Air Lines Inc."}, opts.Carriers)
	assert.Equal(t, []string{"GA", "MA", "WA"}, opts.States)
	require.Len(t, opts.Causes, 6)
	assert.Equal(t, processor.SelectAll, opts.Causes[0].Value)
}

func TestViewGet(t *testing.T) {
	s, _ := newTestServer(t)

	resp := decodeView(t, doRequest(t, s, http.MethodGet, "/api/v1/view", ""))
	assert.Equal(t, processor.ModeAll, resp.Mode)
	assert.True(t, resp.Jittered)
	assert.Equal(t, 15, resp.Rows.Total)
	assert.Equal(t, processor.StatusOK, resp.Pie.Status)
	assert.Equal(t, "Delay Cause Breakdown — All Carriers, All States, All Years", resp.Title)

	resp = decodeView(t, doRequest(t, s, http.MethodGet,
		"/api/v1/view?year=2020&state=GA&cause=carrier_ct", ""))
	assert.False(t, resp.Jittered)
	require.Equal(t, 1, resp.Rows.Total)
	row := resp.Rows.Data[0]
	assert.Equal(t, processor.CauseCarrier, row.DelayType)
	assert.Equal(t, 100.0, row.ArrFlights)
	assert.Equal(t, "50.0%", row.DelayShareLabel)
}

func TestViewDominantPost(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"year": [2020], "carrier": "Delta Air Lines Inc.", "cause": ["All"], "mode": "dominant"}`
	resp := decodeView(t, doRequest(t, s, http.MethodPost, "/api/v1/view", body))
	assert.Equal(t, processor.ModeDominant, resp.Mode)
	require.Equal(t, 1, resp.Rows.Total)
	assert.Equal(t, processor.CauseCarrier, resp.Rows.Data[0].DelayType)
	assert.Equal(t, 5.0, resp.Rows.Data[0].DelayCount)
}

func TestViewEmptyAndNoDelays(t *testing.T) {
	s, _ := newTestServer(t)

	resp := decodeView(t, doRequest(t, s, http.MethodGet, "/api/v1/view?year=1999", ""))
	assert.Equal(t, 0, resp.Rows.Total)
	assert.Empty(t, resp.Rows.Data)
	assert.Equal(t, processor.StatusNoData, resp.Pie.Status)
	assert.Equal(t, processor.MessageNoData, resp.Pie.Message)

	resp = decodeView(t, doRequest(t, s, http.MethodGet, "/api/v1/view?year=2021", ""))
	assert.Equal(t, processor.StatusNoDelays, resp.Pie.Status)
	require.NotEmpty(t, resp.Rows.Data)
	assert.Nil(t, resp.Rows.Data[0].DelayShare)
	assert.Equal(t, "NaN%", resp.Rows.Data[0].DelayShareLabel)
}

func TestViewPagination(t *testing.T) {
	s, _ := newTestServer(t)

	resp := decodeView(t, doRequest(t, s, http.MethodGet, "/api/v1/view?limit=4&offset=12", ""))
	assert.Equal(t, 15, resp.Rows.Total)
	assert.Len(t, resp.Rows.Data, 3)
	assert.False(t, resp.Rows.HasMore)

	resp = decodeView(t, doRequest(t, s, http.MethodGet, "/api/v1/view?limit=4", ""))
	assert.Len(t, resp.Rows.Data, 4)
	assert.True(t, resp.Rows.HasMore)
}

func TestViewBadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/v1/view?mode=sideways", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown view mode")

	w = doRequest(t, s, http.MethodPost, "/api/v1/view", `{"year": true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, s, http.MethodPost, "/api/v1/view", `{"airline": "x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCharts(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, http.MethodGet, "/api/v1/chart/scatter.png?year=2020", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))

	w = doRequest(t, s, http.MethodGet, "/api/v1/chart/pie.png?year=2020", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/v1/chart/pie.png?year=2021", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestNotLoaded(t *testing.T) {
	s := NewServer(Options{}, nil, nil)

	w := doRequest(t, s, http.MethodGet, "/api/v1/view", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"loading"`)
}

func TestLogsStream(t *testing.T) {
	s, logger := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/logs", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 响应头已返回说明订阅已建立
	logger.Info("hello stream")

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "INFO: hello stream")
}

func TestLogsStreamOutlivesWriteTimeout(t *testing.T) {
	s, logger := newTestServer(t)
	ts := httptest.NewUnstartedServer(s.Handler())
	ts.Config.WriteTimeout = 300 * time.Millisecond
	ts.Start()
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/logs", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 超过写超时之后的日志仍能送达
	time.Sleep(600 * time.Millisecond)
	logger.Info("late line")

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "INFO: late line")
}
