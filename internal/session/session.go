// Package session resolves request credentials into access.Principal
// values. It keeps authoritative session records server side; the cookie
// only carries a signed envelope around the session id.
package session

import (
	"context"
	"time"
)

// Kind distinguishes a user's own session from a delegated accountant
// session. The two live in separate cookies and separate records.
type Kind string

const (
	KindPrimary   Kind = "primary"
	KindDelegated Kind = "delegated"
)

// Session is a server-side session record.
type Session struct {
	ID     string
	UserID string
	Kind   Kind

	// ActiveCompanyID is only meaningful on delegated sessions: the
	// client company the accountant currently works in. Empty means no
	// selection, which authorizes nothing.
	ActiveCompanyID string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Store describes session persistence.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	SetActiveCompany(ctx context.Context, id, companyID string) error
	ClearActiveCompany(ctx context.Context, id string) error
}
