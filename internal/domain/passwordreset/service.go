package passwordreset

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medilink/hms/internal/domain/identity"
	"github.com/medilink/hms/internal/platform/session"
)

// TxRunner executes fn atomically. The server wires db.WithTx here; tests
// pass the function through.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo     Repository
	accounts *identity.Service
	runTx    TxRunner
	ttl      time.Duration
	now      func() time.Time
}

func NewService(repo Repository, accounts *identity.Service, runTx TxRunner, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		repo:     repo,
		accounts: accounts,
		runTx:    runTx,
		ttl:      ttl,
		now:      time.Now,
	}
}

// newToken returns a 32-byte URL-safe random token.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ResolveUserByEmail finds the active account behind a reset request. All
// miss reasons (unknown type, unknown email, deactivated account) come back
// as a plain nil so the request endpoint can answer uniformly.
func (s *Service) ResolveUserByEmail(ctx context.Context, userType session.UserType, email string) (*identity.Identity, error) {
	kind, ok := identity.KindForUserType(userType)
	if !ok {
		return nil, nil
	}
	id, err := s.accounts.FindByEmail(ctx, kind, email)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return id, nil
}

// Issue creates a fresh token for the account, invalidating any earlier one.
// The delete and insert run in one transaction so the account never holds two
// live tokens.
func (s *Service) Issue(ctx context.Context, userType session.UserType, userID uuid.UUID, email string) (*Token, error) {
	raw, err := newToken()
	if err != nil {
		return nil, err
	}
	t := &Token{
		UserType:  userType,
		UserID:    userID,
		Email:     email,
		Token:     raw,
		ExpiresAt: s.now().Add(s.ttl),
	}
	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteByUser(ctx, userType, userID); err != nil {
			return err
		}
		return s.repo.Insert(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Verify checks a token without consuming it. Expired tokens are left in
// place; the next Issue for the account sweeps them.
func (s *Service) Verify(ctx context.Context, token string) (*Token, error) {
	t, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if t.ExpiresAt.Before(s.now()) {
		return nil, ErrInvalidToken
	}
	return t, nil
}

// Consume deletes a token after use.
func (s *Service) Consume(ctx context.Context, token string) error {
	return s.repo.DeleteByToken(ctx, token)
}

// ResetPassword verifies the token, updates the account's password, and
// consumes the token, all in one transaction. Either the password changes and
// the token dies together, or neither happens.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.runTx(ctx, func(ctx context.Context) error {
		t, err := s.Verify(ctx, token)
		if err != nil {
			return err
		}
		kind, ok := identity.KindForUserType(t.UserType)
		if !ok {
			return ErrInvalidToken
		}
		if err := s.accounts.SetPassword(ctx, kind, t.UserID, newPassword); err != nil {
			return err
		}
		return s.Consume(ctx, token)
	})
}
