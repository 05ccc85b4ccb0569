package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// Auth manages user identities and login sessions on the remote tier.
type Auth struct {
	db *sql.DB
}

func NewAuth(c *Client) *Auth {
	return &Auth{db: c.db}
}

// SignUp registers a new user and returns its id.
func (a *Auth) SignUp(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	userID := uuid.NewString()
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`,
		userID, email, string(hash),
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	return userID, nil
}

// SignIn verifies credentials and opens a session. It returns the user
// id and a session token.
func (a *Auth) SignIn(ctx context.Context, email, password string) (userID, token string, err error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var hash string
	err = a.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = $1`,
		email,
	).Scan(&userID, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", fmt.Errorf("find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", "", ErrInvalidCredentials
	}

	token = uuid.NewString()
	if _, err := a.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id) VALUES ($1, $2)`,
		token, userID,
	); err != nil {
		return "", "", fmt.Errorf("insert session: %w", err)
	}
	return userID, token, nil
}

// ActiveSession resolves a session token to a user id.
func (a *Auth) ActiveSession(ctx context.Context, token string) (string, error) {
	var userID string
	err := a.db.QueryRowContext(ctx,
		`SELECT user_id FROM sessions WHERE token = $1`,
		token,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("find session: %w", err)
	}
	return userID, nil
}

// SignOut discards a session token. Unknown tokens are not an error.
func (a *Auth) SignOut(ctx context.Context, token string) error {
	if _, err := a.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE token = $1`,
		token,
	); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
