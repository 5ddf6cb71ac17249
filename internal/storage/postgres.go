package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresKV stores markers in PostgreSQL.
type PostgresKV struct {
	db *sql.DB
}

// OpenPostgres connects and applies pending migrations.
func OpenPostgres(ctx context.Context, connectionString string) (*PostgresKV, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &PostgresKV{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (pc *PostgresKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := pc.db.QueryRowContext(ctx, `SELECT value FROM markers WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select marker: %w", err)
	}
	return value, true, nil
}

func (pc *PostgresKV) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO markers (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := pc.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("upsert marker: %w", err)
	}
	return nil
}

func (pc *PostgresKV) Count(ctx context.Context) (int, error) {
	var n int
	if err := pc.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM markers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count markers: %w", err)
	}
	return n, nil
}

func (pc *PostgresKV) Close() error {
	return pc.db.Close()
}
