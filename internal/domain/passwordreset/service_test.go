package passwordreset

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medilink/hms/internal/domain/identity"
	"github.com/medilink/hms/internal/platform/secure"
	"github.com/medilink/hms/internal/platform/session"
)

type mockRepo struct {
	byToken map[string]*Token
}

func newMockRepo() *mockRepo {
	return &mockRepo{byToken: map[string]*Token{}}
}

func (m *mockRepo) DeleteByUser(_ context.Context, userType session.UserType, userID uuid.UUID) error {
	for raw, t := range m.byToken {
		if t.UserType == userType && t.UserID == userID {
			delete(m.byToken, raw)
		}
	}
	return nil
}

func (m *mockRepo) Insert(_ context.Context, t *Token) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	m.byToken[t.Token] = t
	return nil
}

func (m *mockRepo) FindByToken(_ context.Context, token string) (*Token, error) {
	t, ok := m.byToken[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) DeleteByToken(_ context.Context, token string) error {
	delete(m.byToken, token)
	return nil
}

// stubIdentityRepo backs an identity.Service with just the pieces the reset
// flow touches: email lookup and digest replacement.
type stubIdentityRepo struct {
	identity.Repository

	account *identity.Identity
	digests map[uuid.UUID]string
}

func (s *stubIdentityRepo) FindByEmail(_ context.Context, kind identity.Kind, email string) (*identity.Identity, error) {
	if s.account == nil || !s.account.Active {
		return nil, identity.ErrNotFound
	}
	if s.account.UserType != kind.UserType || s.account.Email != email {
		return nil, identity.ErrNotFound
	}
	cp := *s.account
	return &cp, nil
}

func (s *stubIdentityRepo) UpdatePasswordDigest(_ context.Context, _ identity.Kind, id uuid.UUID, digest string) error {
	if s.account == nil || s.account.ID != id {
		return identity.ErrNotFound
	}
	s.digests[id] = digest
	return nil
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService(t *testing.T) (*Service, *mockRepo, *stubIdentityRepo, uuid.UUID) {
	t.Helper()
	patientID := uuid.New()
	idRepo := &stubIdentityRepo{
		account: &identity.Identity{
			ID:       patientID,
			UserType: session.UserTypePatient,
			Email:    "amina@example.com",
			FullName: "Amina Yusuf",
			Active:   true,
		},
		digests: map[uuid.UUID]string{},
	}
	repo := newMockRepo()
	svc := NewService(repo, identity.NewService(idRepo), passthroughTx, DefaultTTL)
	return svc, repo, idRepo, patientID
}

func TestIssueAndVerify(t *testing.T) {
	svc, _, _, patientID := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, session.UserTypePatient, patientID, "amina@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(tok.Token) < 40 {
		t.Fatalf("token looks too short: %q", tok.Token)
	}
	if strings.ContainsAny(tok.Token, "+/=") {
		t.Fatalf("token is not URL-safe: %q", tok.Token)
	}

	got, err := svc.Verify(ctx, tok.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.UserID != patientID || got.Email != "amina@example.com" {
		t.Fatalf("verified token carries wrong account: %+v", got)
	}
}

func TestIssueSupersedesEarlierToken(t *testing.T) {
	svc, _, _, patientID := newTestService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, session.UserTypePatient, patientID, "amina@example.com")
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	second, err := svc.Issue(ctx, session.UserTypePatient, patientID, "amina@example.com")
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}

	if _, err := svc.Verify(ctx, first.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("superseded token should be invalid, got %v", err)
	}
	if _, err := svc.Verify(ctx, second.Token); err != nil {
		t.Fatalf("newest token should verify, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, repo, _, patientID := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, session.UserTypePatient, patientID, "amina@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(DefaultTTL + time.Minute) }
	if _, err := svc.Verify(ctx, tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token should be invalid, got %v", err)
	}
	// Verify does not purge; the row stays until the next Issue sweeps it.
	if _, ok := repo.byToken[tok.Token]; !ok {
		t.Fatal("expired token was purged on verify")
	}
}

func TestResetPassword(t *testing.T) {
	svc, _, idRepo, patientID := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, session.UserTypePatient, patientID, "amina@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := svc.ResetPassword(ctx, tok.Token, "n3w-secret"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	digest, ok := idRepo.digests[patientID]
	if !ok {
		t.Fatal("password digest was not updated")
	}
	ok, err = secure.CheckPassword(digest, "n3w-secret")
	if err != nil || !ok {
		t.Fatalf("new password does not verify against stored digest (ok=%v err=%v)", ok, err)
	}

	// The token is single use.
	if err := svc.ResetPassword(ctx, tok.Token, "another-one"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("consumed token should be invalid, got %v", err)
	}
}

func TestResetPasswordRejectsShortPassword(t *testing.T) {
	svc, _, idRepo, patientID := newTestService(t)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, session.UserTypePatient, patientID, "amina@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.ResetPassword(ctx, tok.Token, "abc"); err == nil {
		t.Fatal("expected a validation error for a short password")
	}
	if len(idRepo.digests) != 0 {
		t.Fatal("digest changed despite validation failure")
	}
	// A failed attempt must not burn the token.
	if _, err := svc.Verify(ctx, tok.Token); err != nil {
		t.Fatalf("token should survive a failed reset, got %v", err)
	}
}

func TestResolveUserByEmail(t *testing.T) {
	svc, _, idRepo, patientID := newTestService(t)
	ctx := context.Background()

	id, err := svc.ResolveUserByEmail(ctx, session.UserTypePatient, "amina@example.com")
	if err != nil {
		t.Fatalf("ResolveUserByEmail: %v", err)
	}
	if id == nil || id.ID != patientID {
		t.Fatalf("expected the patient account, got %+v", id)
	}

	for name, run := range map[string]func() (*identity.Identity, error){
		"unknown email": func() (*identity.Identity, error) {
			return svc.ResolveUserByEmail(ctx, session.UserTypePatient, "nobody@example.com")
		},
		"unknown user type": func() (*identity.Identity, error) {
			return svc.ResolveUserByEmail(ctx, session.UserType("nurse"), "amina@example.com")
		},
		"deactivated account": func() (*identity.Identity, error) {
			idRepo.account.Active = false
			return svc.ResolveUserByEmail(ctx, session.UserTypePatient, "amina@example.com")
		},
	} {
		id, err := run()
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if id != nil {
			t.Fatalf("%s: expected a uniform miss, got %+v", name, id)
		}
	}
}
