package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("test-secret-not-for-production")

func newManager(ttl time.Duration) *Manager {
	return NewManager(NewMemoryStore(), testSecret, ttl)
}

func TestManager_IssueResolve(t *testing.T) {
	m := newManager(time.Hour)
	userID := uuid.New()

	token, err := m.Issue(context.Background(), UserTypePatient, userID, "Jane Doe")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	p, err := m.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.UserType != UserTypePatient || p.UserID != userID || p.UserName != "Jane Doe" {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestManager_RejectsUnknownUserType(t *testing.T) {
	m := newManager(time.Hour)
	if _, err := m.Issue(context.Background(), UserType("janitor"), uuid.New(), "x"); err == nil {
		t.Error("expected unknown user type to be rejected")
	}
}

func TestManager_RejectsGarbageToken(t *testing.T) {
	m := newManager(time.Hour)
	if _, err := m.Resolve(context.Background(), "not-a-token"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestManager_RejectsTamperedToken(t *testing.T) {
	m := newManager(time.Hour)
	token, err := m.Issue(context.Background(), UserTypeDoctor, uuid.New(), "Dr. Smith")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewManager(NewMemoryStore(), []byte("different-secret"), time.Hour)
	if _, err := other.Resolve(context.Background(), token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken under wrong secret, got %v", err)
	}
}

func TestManager_Expiry(t *testing.T) {
	m := newManager(time.Hour)
	now := time.Now()
	m.now = func() time.Time { return now }

	token, err := m.Issue(context.Background(), UserTypeAdmin, uuid.New(), "root")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.Resolve(context.Background(), token); err != nil {
		t.Fatalf("resolve before expiry: %v", err)
	}

	m.now = func() time.Time { return now.Add(61 * time.Minute) }
	if _, err := m.Resolve(context.Background(), token); err == nil {
		t.Error("expected resolution to fail after the absolute lifetime")
	}
}

func TestManager_Revoke(t *testing.T) {
	m := newManager(time.Hour)
	token, err := m.Issue(context.Background(), UserTypePatient, uuid.New(), "Jane")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := m.Revoke(context.Background(), token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := m.Resolve(context.Background(), token); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after revoke, got %v", err)
	}
	// Revoking again is a no-op.
	if err := m.Revoke(context.Background(), token); err != nil {
		t.Errorf("second revoke should not error: %v", err)
	}
}

func TestMemoryStore_Purge(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	live := &Record{ID: uuid.New(), UserType: UserTypePatient, ExpiresAt: now.Add(time.Hour)}
	dead := &Record{ID: uuid.New(), UserType: UserTypePatient, ExpiresAt: now.Add(-time.Minute)}
	s.Save(context.Background(), live)
	s.Save(context.Background(), dead)

	if n := s.Purge(now); n != 1 {
		t.Errorf("expected 1 purged, got %d", n)
	}
	if _, err := s.Get(context.Background(), live.ID); err != nil {
		t.Errorf("live session should survive purge: %v", err)
	}
}

func TestMiddleware_PopulatesPrincipal(t *testing.T) {
	m := newManager(time.Hour)
	userID := uuid.New()
	token, err := m.Issue(context.Background(), UserTypeDoctor, userID, "Dr. Smith")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		p := FromContext(c.Request().Context())
		if p == nil {
			t.Fatal("expected principal in context")
		}
		if p.UserID != userID {
			t.Errorf("wrong principal: %+v", p)
		}
		return c.NoContent(http.StatusOK)
	}

	if err := Middleware(m)(handler)(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
}

func TestRequireUserType(t *testing.T) {
	e := echo.New()
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	// Unauthenticated request.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	err := RequireUserType(UserTypeDoctor)(handler)(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}

	// Wrong type.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	p := &Principal{UserType: UserTypePatient, UserID: uuid.New()}
	req = req.WithContext(NewContext(req.Context(), p))
	c = e.NewContext(req, httptest.NewRecorder())
	err = RequireUserType(UserTypeDoctor)(handler)(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}

	// Matching type.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	p = &Principal{UserType: UserTypeDoctor, UserID: uuid.New()}
	req = req.WithContext(NewContext(req.Context(), p))
	c = e.NewContext(req, httptest.NewRecorder())
	if err := RequireUserType(UserTypeDoctor, UserTypeAdmin)(handler)(c); err != nil {
		t.Errorf("expected pass, got %v", err)
	}
}
