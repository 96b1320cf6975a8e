package cerr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/tasktracker/pkg/storage"
)

func TestCode(t *testing.T) {
	tests := []struct {
		code    Code
		name    string
		http    int
		connect connect.Code
	}{
		{InvalidArgument, "invalid_argument", http.StatusBadRequest, connect.CodeInvalidArgument},
		{NotFound, "not_found", http.StatusNotFound, connect.CodeNotFound},
		{AlreadyExists, "already_exists", http.StatusConflict, connect.CodeAlreadyExists},
		{DeadlineExceeded, "deadline_exceeded", http.StatusGatewayTimeout, connect.CodeDeadlineExceeded},
		{Internal, "internal", http.StatusInternalServerError, connect.CodeInternal},
		{Unauthenticated, "unauthenticated", http.StatusUnauthorized, connect.CodeUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.code.String())
			assert.Equal(t, tt.http, tt.code.HTTPCode())
			assert.Equal(t, tt.connect, tt.code.ConnectCode())
			assert.Equal(t, tt.code, NewCodeFromConnectError(connect.NewError(tt.connect, errors.New("x"))))
		})
	}
	assert.Equal(t, "unknown", Code(99).String())
}

func TestNewError_StackOnlyForServerFaults(t *testing.T) {
	assert.Empty(t, NewError(NotFound, "task not found", nil).Stack)
	assert.NotEmpty(t, NewError(Internal, "server error", nil).Stack)
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(NotFound, "task not found", nil))
	assert.True(t, IsCode(err, NotFound))
	assert.False(t, IsCode(err, Internal))
	assert.False(t, IsCode(errors.New("plain"), NotFound))
}

func TestWrapStorageErrors(t *testing.T) {
	notFound := fmt.Errorf("tasks/x.yaml: %w", storage.ErrNotFound)
	assert.True(t, IsCode(WrapStorageReadError("task", notFound), NotFound))
	assert.True(t, IsCode(WrapStorageDeleteError("task", notFound), NotFound))
	assert.True(t, IsCode(WrapStorageWriteError("task", errors.New("disk full")), Internal))

	timeout := fmt.Errorf("read: %w", context.DeadlineExceeded)
	assert.True(t, IsCode(WrapStorageReadError("task", timeout), DeadlineExceeded))
	assert.True(t, IsCode(WrapTimeout("task", timeout), DeadlineExceeded))

	plain := errors.New("other")
	assert.Same(t, plain, WrapTimeout("task", plain))
}

func TestChiMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantBody   map[string]any
	}{
		{
			name: "response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				SetJSONResponse(r.Context(), map[string]any{"ok": true})
			},
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"ok": true},
		},
		{
			name: "created",
			handler: func(w http.ResponseWriter, r *http.Request) {
				SetJSONResponseWithStatus(r.Context(), http.StatusCreated, map[string]any{"id": "1"})
			},
			wantStatus: http.StatusCreated,
			wantBody:   map[string]any{"id": "1"},
		},
		{
			name: "coded error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				SetNewJSONError(r.Context(), NotFound, "task not found", nil)
			},
			wantStatus: http.StatusNotFound,
			wantBody:   map[string]any{"code": "not_found", "message": "task not found"},
		},
		{
			name: "plain error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				SetJSONError(r.Context(), errors.New("boom"))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]any{"code": "unknown", "message": "unknown error"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewConvertConnectErrorChiMiddleware()(tt.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			var got map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantBody, got)
		})
	}
}

func TestChiMiddleware_ErrorDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	h := NewConvertConnectErrorChiMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := NewError(InvalidArgument, "invalid task", nil)
		err.AddDetailMessageWithCode("task_description is required", "task_description.required")
		SetJSONError(r.Context(), err)
	}))
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var got struct {
		Code    string           `json:"code"`
		Details []map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "invalid_argument", got.Code)
	require.Len(t, got.Details, 1)
	assert.Equal(t, "task_description.required", got.Details[0]["ruleId"])
	assert.Equal(t, "task_description is required", got.Details[0]["message"])
}
