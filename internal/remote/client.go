// Package remote talks to the shared Postgres instance that mirrors
// company state for multi-user installations. Everything here is
// optional: the application runs fully offline when no remote database
// is configured.
package remote

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Client wraps the remote database connection.
type Client struct {
	db *sql.DB
}

// NewClient opens a connection to the remote database and verifies it
// is reachable.
func NewClient(ctx context.Context, databaseURL string) (*Client, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open remote database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping remote database: %w", err)
	}
	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// EnsureSchema creates the remote tables if they do not exist yet.
// The schema is deliberately small: identities, company membership and
// one state blob per company.
func (c *Client) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS companies (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS company_members (
			company_id TEXT NOT NULL REFERENCES companies(id),
			user_id    TEXT NOT NULL REFERENCES users(id),
			role       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (company_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS company_data (
			company_id TEXT PRIMARY KEY REFERENCES companies(id),
			data       TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure remote schema: %w", err)
		}
	}
	return nil
}
