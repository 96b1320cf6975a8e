package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kazz187/tasktracker/internal/config"
	"github.com/kazz187/tasktracker/internal/task"
	taskrepo "github.com/kazz187/tasktracker/internal/task/repositoryimpl"
	"github.com/kazz187/tasktracker/pkg/storage"
)

// stores holds the task repository and the blob storage used for everything
// that is not a task.
type stores struct {
	tasks task.Repository
	blobs storage.Storage
	pool  *pgxpool.Pool
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// openStores picks the backends for STORAGE_TYPE. With postgres, tasks live
// in the database and get atomic numbering; blobs stay on local disk.
func openStores(ctx context.Context, env *config.StorageEnv) (*stores, error) {
	switch env.Type {
	case "postgres":
		pool, err := newPgPool(ctx, env)
		if err != nil {
			return nil, err
		}
		repo := taskrepo.NewPgRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		blobs, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return &stores{tasks: repo, blobs: blobs, pool: pool}, nil
	case "s3":
		blobs, err := storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return &stores{tasks: taskrepo.NewYAMLRepository(blobs), blobs: blobs}, nil
	default:
		blobs, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		slog.Info("using local storage", "dir", env.BaseDir)
		return &stores{tasks: taskrepo.NewYAMLRepository(blobs), blobs: blobs}, nil
	}
}

func newPgPool(ctx context.Context, env *config.StorageEnv) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(env.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	if env.DatabaseMaxConn > 0 {
		cfg.MaxConns = env.DatabaseMaxConn
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return pool, nil
}
