package fieldconfig

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/tasktracker/pkg/cerr"
)

const override = `
fields:
  stage_gates:
    visible: true
    options:
      - {value: G2, label: "Gate 2", sort_order: 2, active: true}
      - {value: G1, label: "Gate 1", sort_order: 1, active: true}
      - {value: G0, label: "Retired", sort_order: 0, active: false}
  assigned_to:
    visible: false
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(override))
	require.NoError(t, err)

	f, ok := c.Field(FieldStageGates)
	require.True(t, ok)
	assert.Equal(t, "Stage Gates", f.Label)
	assert.Equal(t, FieldTypeSelect, f.Type)
	opts := f.ActiveOptions()
	require.Len(t, opts, 2)
	assert.Equal(t, "G1", opts[0].Value)
	assert.Equal(t, "G2", opts[1].Value)

	for _, v := range c.VisibleFields() {
		assert.NotEqual(t, FieldAssignedTo, v.Name)
	}

	p, ok := c.Field(FieldPriority)
	require.True(t, ok)
	assert.Len(t, p.ActiveOptions(), 3)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("fields:\n  colour: {}\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("fields:\n  project: {type: checkbox}\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("fields: ["))
	assert.Error(t, err)
}

func TestStore_MissingFileUsesDefaults(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "fields.yaml"), nil)
	require.NoError(t, err)
	assert.Len(t, s.Config().VisibleFields(), len(FieldNames))
}

func TestStore_WatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fields.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields: {}\n"), 0o644))

	s, err := NewStore(path, nil)
	require.NoError(t, err)
	f, _ := s.Config().Field(FieldStageGates)
	assert.Empty(t, f.Options)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(override), 0o644))

	require.Eventually(t, func() bool {
		f, _ := s.Config().Field(FieldStageGates)
		return len(f.ActiveOptions()) == 2
	}, 5*time.Second, 20*time.Millisecond)

	// A broken file keeps the last good config.
	require.NoError(t, os.WriteFile(path, []byte("fields: ["), 0o644))
	time.Sleep(300 * time.Millisecond)
	f, _ = s.Config().Field(FieldStageGates)
	assert.Len(t, f.ActiveOptions(), 2)
}

func TestServer(t *testing.T) {
	s, err := NewStore("", nil)
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Use(cerr.NewConvertConnectErrorChiMiddleware())
	NewServer(s).Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dropdown-options?field_name=priority", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Options []struct {
			FieldName string `json:"field_name"`
			Value     string `json:"option_value"`
		} `json:"options"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Options, 3)
	assert.Equal(t, "High", body.Options[0].Value)
	assert.Equal(t, "priority", body.Options[0].FieldName)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dropdown-options?field_name=colour", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/task-fields", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field_name":"stage_gates"`)
}
