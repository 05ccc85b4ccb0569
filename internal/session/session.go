// Package session decides which company scope the application works in
// and what the signed-in user is allowed to see.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"eltimer/internal/core"
	"eltimer/internal/remote"
)

// Roles within a company. Admins see everything; employees manage
// their own hours against a read-only catalog.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

var ErrNoMembership = errors.New("user belongs to no company")

// Session is the tenant context the whole application runs under. It
// is resolved once at startup and never changes while running.
type Session struct {
	UserID    string
	CompanyID string
	Role      string
}

// Local is the session used when no remote tier is configured: a
// single-user installation working against the local blob only.
func Local() Session {
	return Session{Role: RoleAdmin}
}

// RemoteScope reports the storage scope key for this session. Offline
// installations share the fixed "local" scope.
func (s Session) RemoteScope() string {
	if s.CompanyID == "" {
		return "local"
	}
	return s.CompanyID
}

// IsAdmin reports whether the session may mutate the company catalog.
func (s Session) IsAdmin() bool {
	return s.Role != RoleEmployee
}

// CanViewEntry reports whether the session may see a time entry.
// Employees only see their own hours.
func (s Session) CanViewEntry(e core.TimeEntry) bool {
	if s.IsAdmin() {
		return true
	}
	return e.UserID == s.UserID
}

// EntryFilter returns the visibility predicate used by reports and
// listings.
func (s Session) EntryFilter() func(core.TimeEntry) bool {
	return s.CanViewEntry
}

// Directory is the slice of the remote tier the resolver needs.
type Directory interface {
	ListMemberships(ctx context.Context, userID string) ([]remote.Membership, error)
	CompanyNames(ctx context.Context, ids []string) (map[string]string, error)
}

// Choice is one selectable company for users with several memberships.
type Choice struct {
	CompanyID string
	Name      string
	Role      string
}

// ChoiceError is returned when the user belongs to several companies
// and none was picked via configuration. It carries the options so the
// caller can present them.
type ChoiceError struct {
	Choices []Choice
}

func (e *ChoiceError) Error() string {
	return fmt.Sprintf("user belongs to %d companies, set REMOTE_COMPANY_ID to pick one", len(e.Choices))
}

// Resolve determines the session for a signed-in user. With exactly
// one membership the company is selected automatically. preferred may
// name a company id to use when there are several.
func Resolve(ctx context.Context, dir Directory, userID, preferred string) (Session, error) {
	memberships, err := dir.ListMemberships(ctx, userID)
	if err != nil {
		return Session{}, fmt.Errorf("resolve session: %w", err)
	}
	if len(memberships) == 0 {
		return Session{}, ErrNoMembership
	}

	if preferred != "" {
		for _, m := range memberships {
			if m.CompanyID == preferred {
				return Session{UserID: userID, CompanyID: m.CompanyID, Role: m.Role}, nil
			}
		}
		return Session{}, fmt.Errorf("resolve session: user is not a member of company %s", preferred)
	}

	if len(memberships) == 1 {
		m := memberships[0]
		return Session{UserID: userID, CompanyID: m.CompanyID, Role: m.Role}, nil
	}

	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.CompanyID)
	}
	names, err := dir.CompanyNames(ctx, ids)
	if err != nil {
		return Session{}, fmt.Errorf("resolve session: %w", err)
	}

	choices := make([]Choice, 0, len(memberships))
	for _, m := range memberships {
		choices = append(choices, Choice{CompanyID: m.CompanyID, Name: names[m.CompanyID], Role: m.Role})
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].Name < choices[j].Name })
	return Session{}, &ChoiceError{Choices: choices}
}
