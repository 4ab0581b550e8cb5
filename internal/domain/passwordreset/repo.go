package passwordreset

import (
	"context"

	"github.com/google/uuid"

	"github.com/medilink/hms/internal/platform/session"
)

// Repository is the storage contract for reset tokens.
type Repository interface {
	// DeleteByUser removes any outstanding tokens for the account; a fresh
	// Insert follows in the same transaction so only the newest token works.
	DeleteByUser(ctx context.Context, userType session.UserType, userID uuid.UUID) error
	Insert(ctx context.Context, t *Token) error
	// FindByToken returns the row regardless of expiry; the service decides.
	FindByToken(ctx context.Context, token string) (*Token, error)
	DeleteByToken(ctx context.Context, token string) error
}
