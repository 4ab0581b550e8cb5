package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Manager issues and resolves sessions. Tokens are HS256 JWTs whose jti is the
// session ID; the signature only protects the ID in transit, the session state
// itself stays in the Store.
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(store Store, secret []byte, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, secret: secret, ttl: ttl, now: time.Now}
}

// Issue creates a session record for the identity and returns the signed token.
func (m *Manager) Issue(ctx context.Context, userType UserType, userID uuid.UUID, userName string) (string, error) {
	if !userType.Valid() {
		return "", fmt.Errorf("issue session: unknown user type %q", userType)
	}

	now := m.now()
	rec := &Record{
		ID:        uuid.New(),
		UserType:  userType,
		UserID:    userID,
		UserName:  userName,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, rec); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	claims := jwt.RegisteredClaims{
		ID:        rec.ID.String(),
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

// Resolve validates a token and loads the session it names. Returns
// ErrInvalidToken for bad signatures or garbage, ErrNotFound for revoked
// sessions, ErrExpired once the absolute lifetime has passed.
func (m *Manager) Resolve(ctx context.Context, token string) (*Principal, error) {
	rec, err := m.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	return &Principal{
		SessionID: rec.ID,
		UserType:  rec.UserType,
		UserID:    rec.UserID,
		UserName:  rec.UserName,
	}, nil
}

// Revoke deletes the session named by the token. Revoking an already-dead
// session is not an error.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	rec, err := m.lookup(ctx, token)
	if err != nil {
		if err == ErrNotFound || err == ErrExpired {
			return nil
		}
		return err
	}
	return m.store.Delete(ctx, rec.ID)
}

func (m *Manager) lookup(ctx context.Context, token string) (*Record, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sid, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	rec, err := m.store.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if m.now().After(rec.ExpiresAt) {
		return nil, ErrExpired
	}
	return rec, nil
}
