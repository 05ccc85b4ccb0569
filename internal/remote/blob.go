package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BlobStore reads and writes the per-company state blob.
type BlobStore struct {
	db *sql.DB
}

func NewBlobStore(c *Client) *BlobStore {
	return &BlobStore{db: c.db}
}

// Get returns the state blob for a company. The second return value is
// false when the company has no row yet.
func (s *BlobStore) Get(ctx context.Context, companyID string) (string, bool, error) {
	query := `
        SELECT data
        FROM company_data
        WHERE company_id = $1
    `

	var data string
	err := s.db.QueryRowContext(ctx, query, companyID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get company data: %w", err)
	}
	return data, true, nil
}

// Upsert replaces the company's state blob, creating the row if needed.
func (s *BlobStore) Upsert(ctx context.Context, companyID, data string) error {
	query := `
        INSERT INTO company_data (company_id, data, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (company_id) DO UPDATE
        SET data = EXCLUDED.data, updated_at = now()
    `

	if _, err := s.db.ExecContext(ctx, query, companyID, data); err != nil {
		return fmt.Errorf("upsert company data: %w", err)
	}
	return nil
}

// Insert creates the company's first state row. It fails if a row
// already exists, which keeps first-load bootstrapping from clobbering
// data written by another member in the meantime.
func (s *BlobStore) Insert(ctx context.Context, companyID, data string) error {
	query := `
        INSERT INTO company_data (company_id, data, updated_at)
        VALUES ($1, $2, now())
    `

	if _, err := s.db.ExecContext(ctx, query, companyID, data); err != nil {
		return fmt.Errorf("insert company data: %w", err)
	}
	return nil
}
