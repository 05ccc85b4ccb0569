// Package storage is the local blob tier: one SQLite table holding the
// entire serialized application state per tenant scope. Local storage is
// always available and always authoritative when the remote mirror is down.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Get returns the serialized state for a scope. The second return value is
// false when nothing has been stored yet.
func (r *Repository) Get(ctx context.Context, scope string) (string, bool, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM app_state WHERE scope = ?`, scope,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get state for scope %q: %w", scope, err)
	}
	return data, true, nil
}

// Put stores the full serialized state for a scope, replacing any previous
// blob. Every save writes the whole document; there are no partial updates.
func (r *Repository) Put(ctx context.Context, scope, data string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_state (scope, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		scope, data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put state for scope %q: %w", scope, err)
	}
	return nil
}
