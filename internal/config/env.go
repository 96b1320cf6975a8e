package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3100"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
	// APIUser is the name recorded on sessions authenticated with APIKey.
	APIUser string `envconfig:"API_USER" default:"admin"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".tasktracker/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"tasktracker/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
	// Postgres settings (used when Type == "postgres")
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	DatabaseMaxConn int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
}

type LifecycleEnv struct {
	OperationTimeout      time.Duration `envconfig:"OPERATION_TIMEOUT" default:"10s"`
	ArchiveRequiresDone   bool          `envconfig:"ARCHIVE_REQUIRES_DONE" default:"false"`
	RederiveOnUndone      bool          `envconfig:"REDERIVE_ON_UNDONE" default:"false"`
	RecurrenceConcurrency int           `envconfig:"RECURRENCE_CONCURRENCY" default:"4"`
}

type FieldConfigEnv struct {
	// Path is an optional YAML file overriding the built-in field labels and
	// dropdown options. It is reloaded when it changes.
	Path string `envconfig:"FIELD_CONFIG_PATH"`
}

type VAPIDEnv struct {
	VAPIDPublicKey   string        `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey  string        `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact     string        `envconfig:"VAPID_CONTACT" default:"mailto:admin@example.com"`
	ReminderInterval time.Duration `envconfig:"REMINDER_INTERVAL" default:"24h"`
}

type Env struct {
	BaseEnv
	StorageEnv
	LifecycleEnv
	FieldConfigEnv
	VAPIDEnv
}

const namespace = "TASKTRACKER"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := env.validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

func (e *Env) validate() error {
	switch e.StorageEnv.Type {
	case "local", "":
	case "s3":
		if e.S3Bucket == "" {
			return fmt.Errorf("invalid env: %s_S3_BUCKET is required for s3 storage", namespace)
		}
	case "postgres":
		if e.DatabaseURL == "" {
			return fmt.Errorf("invalid env: %s_DATABASE_URL is required for postgres storage", namespace)
		}
	default:
		return fmt.Errorf("invalid env: unknown storage type %q", e.StorageEnv.Type)
	}
	if e.OperationTimeout <= 0 {
		return fmt.Errorf("invalid env: %s_OPERATION_TIMEOUT must be positive", namespace)
	}
	return nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func BaseEnvFromEnv(env *Env) *BaseEnv {
	return &env.BaseEnv
}

func StorageEnvFromEnv(env *Env) *StorageEnv {
	return &env.StorageEnv
}

func LifecycleEnvFromEnv(env *Env) *LifecycleEnv {
	return &env.LifecycleEnv
}

func VAPIDEnvFromEnv(env *Env) *VAPIDEnv {
	return &env.VAPIDEnv
}
