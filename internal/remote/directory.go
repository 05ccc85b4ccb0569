package remote

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Membership links a user to a company with a role.
type Membership struct {
	CompanyID string
	Role      string
}

// Directory answers who belongs to which company.
type Directory struct {
	db *sql.DB
}

func NewDirectory(c *Client) *Directory {
	return &Directory{db: c.db}
}

// ListMemberships returns all company memberships for a user, oldest
// first.
func (d *Directory) ListMemberships(ctx context.Context, userID string) ([]Membership, error) {
	query := `
        SELECT company_id, role
        FROM company_members
        WHERE user_id = $1
        ORDER BY created_at
    `

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.CompanyID, &m.Role); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return memberships, nil
}

// CompanyNames resolves company ids to display names.
func (d *Directory) CompanyNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	query := `SELECT name FROM companies WHERE id = $1`
	for _, id := range ids {
		var name string
		if err := d.db.QueryRowContext(ctx, query, id).Scan(&name); err != nil {
			return nil, fmt.Errorf("company name %s: %w", id, err)
		}
		names[id] = name
	}
	return names, nil
}

// CreateCompany registers a new company and makes the user its admin.
// Returns the new company id.
func (d *Directory) CreateCompany(ctx context.Context, name, userID string) (string, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("create company: %w", err)
	}
	defer tx.Rollback()

	companyID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO companies (id, name) VALUES ($1, $2)`,
		companyID, name,
	); err != nil {
		return "", fmt.Errorf("insert company: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO company_members (company_id, user_id, role) VALUES ($1, $2, $3)`,
		companyID, userID, "admin",
	); err != nil {
		return "", fmt.Errorf("insert membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("create company: %w", err)
	}
	return companyID, nil
}

// AddMember grants a user access to a company.
func (d *Directory) AddMember(ctx context.Context, companyID, userID, role string) error {
	query := `
        INSERT INTO company_members (company_id, user_id, role)
        VALUES ($1, $2, $3)
        ON CONFLICT (company_id, user_id) DO UPDATE SET role = EXCLUDED.role
    `

	if _, err := d.db.ExecContext(ctx, query, companyID, userID, role); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}
