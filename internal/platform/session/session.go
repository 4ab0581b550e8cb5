// Package session implements server-side session state for the three identity
// kinds. A session is a server-held record with an absolute lifetime; what the
// client carries is a signed token wrapping the session ID, so possession of a
// token proves nothing once the record is revoked or expired. Request handlers
// never touch ambient state: the middleware resolves the token once and places
// an explicit Principal in the request context.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// UserType is the coarse role tag attached to a session.
type UserType string

const (
	UserTypeAdmin   UserType = "admin"
	UserTypeDoctor  UserType = "doctor"
	UserTypePatient UserType = "patient"
)

// Valid reports whether t is one of the three known identity kinds.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeAdmin, UserTypeDoctor, UserTypePatient:
		return true
	}
	return false
}

// DefaultTTL is the absolute session lifetime.
const DefaultTTL = time.Hour

var (
	ErrNotFound     = errors.New("session: not found")
	ErrExpired      = errors.New("session: expired")
	ErrInvalidToken = errors.New("session: invalid token")
)

// Record is the server-side session state.
type Record struct {
	ID        uuid.UUID `json:"id"`
	UserType  UserType  `json:"user_type"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Principal identifies the authenticated caller of a request.
type Principal struct {
	SessionID uuid.UUID `json:"session_id"`
	UserType  UserType  `json:"user_type"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
}

// Store persists session records. Get must return ErrNotFound for unknown
// IDs; expiry is enforced by the Manager (stores may additionally evict).
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type principalKeyType struct{}

var principalKey principalKeyType

// NewContext returns a context carrying the principal.
func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext retrieves the principal from the context, or nil when the
// request is unauthenticated.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
