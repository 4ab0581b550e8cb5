// Package passwordreset manages the forgot-password flow: opaque one-time
// tokens emailed to the account holder, verified and consumed on reset. A new
// request supersedes any token the account already holds.
package passwordreset

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medilink/hms/internal/platform/session"
)

var (
	// ErrInvalidToken covers unknown, superseded, and expired tokens alike,
	// so a probing caller learns nothing about which it was.
	ErrInvalidToken = errors.New("invalid or expired reset token")
)

// DefaultTTL is how long a reset token stays valid.
const DefaultTTL = time.Hour

// Token is one outstanding reset grant.
type Token struct {
	ID        uuid.UUID        `json:"id"`
	UserType  session.UserType `json:"user_type"`
	UserID    uuid.UUID        `json:"user_id"`
	Email     string           `json:"email"`
	Token     string           `json:"-"`
	ExpiresAt time.Time        `json:"expires_at"`
	CreatedAt time.Time        `json:"created_at"`
}
