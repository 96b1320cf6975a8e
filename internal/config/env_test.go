package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_Defaults(t *testing.T) {
	t.Setenv("TASKTRACKER_API_KEY", "secret")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "local", env.Env)
	assert.Equal(t, "3100", env.HTTPPort)
	assert.Equal(t, "local", env.StorageEnv.Type)
	assert.Equal(t, 10*time.Second, env.OperationTimeout)
	assert.False(t, env.ArchiveRequiresDone)
	assert.False(t, env.RederiveOnUndone)
	assert.Equal(t, 4, env.RecurrenceConcurrency)
	assert.Equal(t, 24*time.Hour, env.ReminderInterval)
}

func TestLoadEnv_MissingAPIKey(t *testing.T) {
	t.Setenv("TASKTRACKER_API_KEY", "placeholder")
	require.NoError(t, os.Unsetenv("TASKTRACKER_API_KEY"))
	_, err := LoadEnv()
	assert.Error(t, err)
}

func TestLoadEnv_StorageValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"postgres without url", map[string]string{"TASKTRACKER_STORAGE_TYPE": "postgres"}, true},
		{"postgres with url", map[string]string{"TASKTRACKER_STORAGE_TYPE": "postgres", "TASKTRACKER_DATABASE_URL": "postgres://localhost/tasks"}, false},
		{"s3 without bucket", map[string]string{"TASKTRACKER_STORAGE_TYPE": "s3"}, true},
		{"unknown", map[string]string{"TASKTRACKER_STORAGE_TYPE": "sqlite"}, true},
		{"zero timeout", map[string]string{"TASKTRACKER_OPERATION_TIMEOUT": "0s"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TASKTRACKER_API_KEY", "secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadEnv()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, (&BaseEnv{LogLevel: "warn"}).SlogLevel())
	assert.Equal(t, slog.LevelDebug, (&BaseEnv{LogLevel: "nonsense"}).SlogLevel())
	assert.Equal(t, slog.LevelDebug, (*BaseEnv)(nil).SlogLevel())
}
