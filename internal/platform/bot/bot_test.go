package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medilink/hms/internal/platform/session"
)

func patientPrincipal(name string) *session.Principal {
	return &session.Principal{
		SessionID: uuid.New(),
		UserType:  session.UserTypePatient,
		UserID:    uuid.New(),
		UserName:  name,
	}
}

func TestResponder_Greeting(t *testing.T) {
	r := NewResponder()

	anon := r.Respond("Hello there", nil)
	if !strings.Contains(anon, "Welcome to Medilink Hospital") {
		t.Errorf("anonymous greeting = %q", anon)
	}

	personal := r.Respond("hi", patientPrincipal("Alice"))
	if !strings.Contains(personal, "Hello Alice!") {
		t.Errorf("personalized greeting = %q", personal)
	}
}

func TestResponder_BookingDependsOnSession(t *testing.T) {
	r := NewResponder()

	anon := r.Respond("I want to book an appointment", nil)
	if !strings.Contains(anon, "log in as a patient") {
		t.Errorf("anonymous booking answer = %q", anon)
	}

	authed := r.Respond("I want to book an appointment", patientPrincipal("Bob"))
	if !strings.Contains(authed, "Book Appointment") {
		t.Errorf("patient booking answer = %q", authed)
	}
}

func TestResponder_RuleOrder(t *testing.T) {
	// "book an appointment with a doctor" hits both booking and doctors
	// keywords; the earlier rule wins.
	r := NewResponder()
	got := r.Respond("book an appointment with a doctor", nil)
	want := r.Respond("book", nil)
	if got != want {
		t.Errorf("expected booking rule to win, got %q", got)
	}
}

func TestResponder_CaseInsensitive(t *testing.T) {
	r := NewResponder()
	if got := r.Respond("  WHAT ARE YOUR HOURS?  ", nil); !strings.Contains(got, "9:00 AM to 8:00 PM") {
		t.Errorf("hours answer = %q", got)
	}
}

func TestResponder_Fallback(t *testing.T) {
	r := NewResponder()
	got := r.Respond("xyzzy", nil)
	if !strings.Contains(got, "I'm here to help") {
		t.Errorf("fallback = %q", got)
	}
}

func TestResponder_RegisterRule(t *testing.T) {
	r := NewResponder()
	r.RegisterRule(Rule{
		ID:       "parking",
		Keywords: []string{"parking"},
		Response: "Visitor parking is free for the first two hours.",
	})
	if got := r.Respond("where can I find parking?", nil); !strings.Contains(got, "parking is free") {
		t.Errorf("custom rule answer = %q", got)
	}

	// Replacing a rule keeps its position.
	before := len(r.Rules())
	r.RegisterRule(Rule{ID: "parking", Keywords: []string{"parking"}, Response: "Parking garage on level B1."})
	if len(r.Rules()) != before {
		t.Errorf("replacement grew the rule list: %d -> %d", before, len(r.Rules()))
	}
	if got := r.Respond("parking?", nil); !strings.Contains(got, "level B1") {
		t.Errorf("replaced rule answer = %q", got)
	}
}

// mockHistoryRepo is an in-memory HistoryRepository.
type mockHistoryRepo struct {
	mu       sync.Mutex
	messages []*Message
	failSave bool
}

func (m *mockHistoryRepo) Save(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return context.DeadlineExceeded
	}
	msg.ID = uuid.New()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockHistoryRepo) ListByUser(_ context.Context, userType session.UserType, userID uuid.UUID, limit int) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Message
	for _, msg := range m.messages {
		if msg.UserType == userType && msg.UserID == userID {
			out = append(out, msg)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func newChatContext(t *testing.T, body string, p *session.Principal) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if p != nil {
		req = req.WithContext(session.NewContext(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandleChat_Anonymous(t *testing.T) {
	repo := &mockHistoryRepo{}
	h := NewHandler(NewResponder(), repo, zerolog.Nop())

	c, rec := newChatContext(t, `{"message":"hello"}`, nil)
	if err := h.HandleChat(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Response, "Welcome to Medilink Hospital") {
		t.Errorf("response = %q", resp.Response)
	}
	if len(repo.messages) != 0 {
		t.Errorf("anonymous chats must not be persisted, got %d rows", len(repo.messages))
	}
}

func TestHandleChat_PersistsForSignedInUser(t *testing.T) {
	repo := &mockHistoryRepo{}
	h := NewHandler(NewResponder(), repo, zerolog.Nop())
	p := patientPrincipal("Alice")

	c, rec := newChatContext(t, `{"message":"hi"}`, p)
	if err := h.HandleChat(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(repo.messages) != 1 {
		t.Fatalf("expected 1 persisted exchange, got %d", len(repo.messages))
	}
	if repo.messages[0].UserID != p.UserID || repo.messages[0].Message != "hi" {
		t.Errorf("persisted message = %+v", repo.messages[0])
	}
}

func TestHandleChat_SaveFailureStillResponds(t *testing.T) {
	repo := &mockHistoryRepo{failSave: true}
	h := NewHandler(NewResponder(), repo, zerolog.Nop())

	c, rec := newChatContext(t, `{"message":"hi"}`, patientPrincipal("Alice"))
	if err := h.HandleChat(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, reply should go out even when history fails", rec.Code)
	}
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	h := NewHandler(NewResponder(), &mockHistoryRepo{}, zerolog.Nop())
	c, _ := newChatContext(t, `{"message":""}`, nil)
	err := h.HandleChat(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandleHistory_RequiresSession(t *testing.T) {
	h := NewHandler(NewResponder(), &mockHistoryRepo{}, zerolog.Nop())
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	err := h.HandleHistory(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandleHistory_ReturnsUserMessages(t *testing.T) {
	repo := &mockHistoryRepo{}
	h := NewHandler(NewResponder(), repo, zerolog.Nop())
	p := patientPrincipal("Alice")

	for _, msg := range []string{"hi", "what are your hours", "thanks"} {
		c, _ := newChatContext(t, `{"message":"`+msg+`"}`, p)
		if err := h.HandleChat(c); err != nil {
			t.Fatalf("chat: %v", err)
		}
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
	req = req.WithContext(session.NewContext(req.Context(), p))
	rec := httptest.NewRecorder()
	if err := h.HandleHistory(e.NewContext(req, rec)); err != nil {
		t.Fatalf("history: %v", err)
	}

	var items []*Message
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(items))
	}
	if items[0].Message != "hi" {
		t.Errorf("expected chronological order, first = %q", items[0].Message)
	}
}
