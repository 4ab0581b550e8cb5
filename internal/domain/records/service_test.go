package records

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medilink/hms/internal/platform/session"
)

// mockRepo is an in-memory Repository.
type mockRepo struct {
	records map[uuid.UUID]*Record
	seq     int
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*Record)}
}

func (m *mockRepo) Create(_ context.Context, r *Record) error {
	r.ID = uuid.New()
	m.seq++
	// Spread created_at so same-day records have a stable order.
	r.CreatedAt = time.Now().Add(time.Duration(m.seq) * time.Second)
	r.UpdatedAt = r.CreatedAt
	stored := *r
	m.records[r.ID] = &stored
	return nil
}

func (m *mockRepo) FindByID(_ context.Context, id uuid.UUID) (*Record, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	return &out, nil
}

func (m *mockRepo) Update(_ context.Context, id uuid.UUID, u Update) error {
	r, ok := m.records[id]
	if !ok {
		return ErrNotFound
	}
	if u.Diagnosis != nil {
		r.Diagnosis = *u.Diagnosis
	}
	if u.Symptoms != nil {
		r.Symptoms = u.Symptoms
	}
	if u.Prescription != nil {
		r.Prescription = u.Prescription
	}
	if u.TestsRecommended != nil {
		r.TestsRecommended = u.TestsRecommended
	}
	if u.FollowUpDate != nil {
		r.FollowUpDate = u.FollowUpDate
	}
	if u.Notes != nil {
		r.Notes = u.Notes
	}
	r.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepo) list(include func(*Record) bool) []*Record {
	var items []*Record
	for _, r := range m.records {
		if include(r) {
			out := *r
			items = append(items, &out)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].VisitDate != items[j].VisitDate {
			return items[i].VisitDate > items[j].VisitDate
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	items := m.list(func(r *Record) bool { return r.PatientID == patientID })
	return items, len(items), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	items := m.list(func(r *Record) bool { return r.DoctorID == doctorID })
	return items, len(items), nil
}

func (m *mockRepo) ListPatientHistory(_ context.Context, patientID, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	items := m.list(func(r *Record) bool { return r.PatientID == patientID && r.DoctorID == doctorID })
	return items, len(items), nil
}

func newTestRecord(t *testing.T, svc *Service, patientID, doctorID uuid.UUID, visitDate, diagnosis string) *Record {
	t.Helper()
	rec, err := svc.Create(context.Background(), CreateInput{
		PatientID: patientID,
		DoctorID:  doctorID,
		VisitDate: visitDate,
		Diagnosis: diagnosis,
	})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	return rec
}

func TestCreate(t *testing.T) {
	svc := NewService(newMockRepo())
	rec := newTestRecord(t, svc, uuid.New(), uuid.New(), "2026-08-20", "Hypertension")
	if rec.Diagnosis != "Hypertension" || rec.VisitDate != "2026-08-20" {
		t.Errorf("record = %+v", rec)
	}
}

func TestCreate_DefaultsVisitDateToToday(t *testing.T) {
	svc := NewService(newMockRepo())
	svc.now = func() time.Time { return time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC) }

	rec, err := svc.Create(context.Background(), CreateInput{
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		Diagnosis: "Migraine",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.VisitDate != "2026-08-28" {
		t.Errorf("visit date = %q", rec.VisitDate)
	}
}

func TestCreate_RequiresDiagnosis(t *testing.T) {
	svc := NewService(newMockRepo())
	_, err := svc.Create(context.Background(), CreateInput{
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		VisitDate: "2026-08-20",
	})
	if err == nil || !strings.Contains(err.Error(), "diagnosis") {
		t.Errorf("expected diagnosis error, got %v", err)
	}
}

func TestCreate_RejectsBadDates(t *testing.T) {
	svc := NewService(newMockRepo())
	bad := "next tuesday"
	_, err := svc.Create(context.Background(), CreateInput{
		PatientID:    uuid.New(),
		DoctorID:     uuid.New(),
		Diagnosis:    "Flu",
		FollowUpDate: &bad,
	})
	if err == nil {
		t.Error("expected follow_up_date error")
	}
}

func TestUpdate_Partial(t *testing.T) {
	svc := NewService(newMockRepo())
	rec := newTestRecord(t, svc, uuid.New(), uuid.New(), "2026-08-20", "Hypertension")

	prescription := "Lisinopril 10mg daily"
	updated, err := svc.Update(context.Background(), rec.ID, Update{Prescription: &prescription})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Prescription == nil || *updated.Prescription != prescription {
		t.Errorf("prescription = %v", updated.Prescription)
	}
	// Untouched fields survive.
	if updated.Diagnosis != "Hypertension" {
		t.Errorf("diagnosis = %q", updated.Diagnosis)
	}
}

func TestUpdate_DiagnosisCannotEmptyOut(t *testing.T) {
	svc := NewService(newMockRepo())
	rec := newTestRecord(t, svc, uuid.New(), uuid.New(), "2026-08-20", "Hypertension")

	empty := ""
	if _, err := svc.Update(context.Background(), rec.ID, Update{Diagnosis: &empty}); err == nil {
		t.Error("expected empty diagnosis to be rejected")
	}
}

func TestGetPatientHistory_ScopedToDoctor(t *testing.T) {
	svc := NewService(newMockRepo())
	patientID := uuid.New()
	doctorA := uuid.New()
	doctorB := uuid.New()

	newTestRecord(t, svc, patientID, doctorA, "2026-08-01", "Flu")
	newest := newTestRecord(t, svc, patientID, doctorA, "2026-08-20", "Follow-up")
	newTestRecord(t, svc, patientID, doctorB, "2026-08-10", "Allergy")

	items, total, err := svc.GetPatientHistory(context.Background(), patientID, doctorA, 50, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 records, got %d", total)
	}
	if items[0].ID != newest.ID {
		t.Errorf("expected newest visit first, got %s", items[0].VisitDate)
	}
}

func TestHandlerUpdate_AuthorOnly(t *testing.T) {
	svc := NewService(newMockRepo())
	h := NewHandler(svc)

	author := uuid.New()
	rec := newTestRecord(t, svc, uuid.New(), author, "2026-08-20", "Hypertension")

	makeCtx := func(doctorID uuid.UUID) echo.Context {
		e := echo.New()
		req := httptest.NewRequest(http.MethodPatch, "/records/"+rec.ID.String(),
			strings.NewReader(`{"notes":"updated"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		p := &session.Principal{UserType: session.UserTypeDoctor, UserID: doctorID}
		req = req.WithContext(session.NewContext(req.Context(), p))
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(rec.ID.String())
		return c
	}

	// A different doctor is rejected.
	err := h.Update(makeCtx(uuid.New()))
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-author, got %v", err)
	}

	// The author gets through.
	if err := h.Update(makeCtx(author)); err != nil {
		t.Errorf("author update failed: %v", err)
	}
}
