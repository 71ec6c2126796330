package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	var echo bytes.Buffer
	logger.SetEcho(&echo)

	logger.Info("加载完成")
	logger.Logf(WARNING, "丢弃 %d 行", 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "INFO: 加载完成")
	assert.Contains(t, content, "WARNING: 丢弃 3 行")
	assert.Equal(t, content, echo.String())
}

func TestLoggerSubscribe(t *testing.T) {
	logger, err := NewLogger(filepath.Join(t.TempDir(), "app.log"))
	require.NoError(t, err)
	defer logger.Close()

	sub := logger.Subscribe()
	logger.Error("boom")

	entry := <-sub
	assert.True(t, strings.HasSuffix(entry, "ERROR: boom\n"))

	logger.Unsubscribe(sub)
	_, ok := <-sub
	assert.False(t, ok, "取消订阅后通道应关闭")

	// 取消订阅后继续写不应阻塞
	logger.Info("still running")
}

func TestLoggerCheckRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	rotated, err := logger.CheckRotate("1 * 1024")
	require.NoError(t, err)
	assert.False(t, rotated)

	for i := 0; i < 50; i++ {
		logger.Debug("This is a log message")
	}
	rotated, err = logger.CheckRotate("1 * 1024")
	require.NoError(t, err)
	assert.True(t, rotated)

	matches, err := filepath.Glob(filepath.Join(dir, "app.*.log"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestLoggerReopen(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(filepath.Join(dir, "a.log"))
	require.NoError(t, err)
	defer logger.Close()

	next := filepath.Join(dir, "b.log")
	require.NoError(t, logger.Reopen(next))
	assert.Equal(t, next, logger.Filename())

	logger.Info("after reopen")
	data, err := os.ReadFile(next)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after reopen")
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		expr    string
		want    int64
		wantErr bool
	}{
		{"10 * 1024 * 1024", 10 * 1024 * 1024, false},
		{"2048", 2048, false},
		{"", 0, false},
		{"ten * 1024", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.expr)
		if tt.wantErr {
			assert.Error(t, err, tt.expr)
			continue
		}
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "FATAL", FATAL.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}
