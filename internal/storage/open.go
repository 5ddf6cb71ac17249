package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string // file, sqlite, postgres or redis
	Path          string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
}

// Open builds the marker Store over the configured backend.
func Open(ctx context.Context, opts Options, log *slog.Logger) (*Store, error) {
	kv, err := openKV(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", opts.Backend, err)
	}
	return New(kv, log), nil
}

func openKV(ctx context.Context, opts Options) (KV, error) {
	switch opts.Backend {
	case "", "file":
		return OpenFile(opts.Path)
	case "sqlite":
		return OpenSQLite(ctx, opts.Path)
	case "postgres":
		return OpenPostgres(ctx, opts.DatabaseURL)
	case "redis":
		return OpenRedis(ctx, opts.RedisAddr, opts.RedisPassword)
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}
}
