package clog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes(t *testing.T) {
	ctx := ContextWithSlog(context.Background())
	AddAttribute(ctx, "a", 1)
	AddAttributes(ctx, map[string]any{"nested": map[string]any{"x": 1}})
	AddAttributes(ctx, map[string]any{"nested": map[string]any{"y": 2}})
	AddTask(ctx, "01TASK", "OPS")

	attrs := GetAttributes(ctx)
	assert.Equal(t, 1, attrs["a"])
	assert.Equal(t, map[string]any{"x": 1, "y": 2}, attrs["nested"])
	assert.Equal(t, "01TASK", GetAttribute[string](ctx, TaskIDAttributeKey))
	assert.Equal(t, "OPS", GetAttribute[string](ctx, ProjectAttributeKey))

	// Wrong type and missing bag both yield the zero value.
	assert.Equal(t, "", GetAttribute[string](ctx, "a"))
	assert.Nil(t, GetAttributes(context.Background()))
}

func TestAttributesHandler(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(NewAttributesHandler(slog.NewJSONHandler(buf, nil)))

	ctx := ContextWithSlog(context.Background())
	AddError(ctx, errors.New("boom"))
	AddUser(ctx, "admin")
	logger.InfoContext(ctx, "hello")

	out := buf.String()
	assert.Contains(t, out, `"error.message":"boom"`)
	assert.Contains(t, out, `"user":"admin"`)
}

func TestHTTPStatusToLevel(t *testing.T) {
	tests := []struct {
		status int
		want   Level
	}{
		{200, LevelInfo},
		{304, LevelInfo},
		{404, LevelWarn},
		{499, LevelInfo},
		{500, LevelError},
		{0, LevelError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusToLevel(tt.status), "status %d", tt.status)
	}
}

func TestSlogChiMiddleware(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(NewAttributesHandler(NewHTTPTextHandler(buf, WithColor(false)))))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := SlogChiMiddleware(WithChiFilter(func(r *http.Request) bool {
		return r.URL.Path != "/health"
	}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddTask(r.Context(), "01TASK", "")
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tasks/01TASK", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "WARN")
	assert.Contains(t, lines[0], "GET /api/tasks/01TASK 404 Not Found")
	assert.Contains(t, buf.String(), "task_id=01TASK")
	assert.NotContains(t, buf.String(), "/health")
}
