package scheduling

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockRepo is an in-memory Repository enforcing the same slot uniqueness the
// partial index does: one non-cancelled appointment per (doctor, date, time).
type mockRepo struct {
	appointments map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{appointments: make(map[uuid.UUID]*Appointment)}
}

func (m *mockRepo) slotTaken(doctorID uuid.UUID, date, timeOfDay string) bool {
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Date == date && a.Time == timeOfDay && a.Status != StatusCancelled {
			return true
		}
	}
	return false
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	if m.slotTaken(a.DoctorID, a.Date, a.Time) {
		return ErrSlotTaken
	}
	a.ID = uuid.New()
	a.Status = StatusScheduled
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	stored := *a
	m.appointments[a.ID] = &stored
	return nil
}

func (m *mockRepo) FindByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *a
	return &out, nil
}

func (m *mockRepo) IsSlotFree(_ context.Context, doctorID uuid.UUID, date, timeOfDay string) (bool, error) {
	return !m.slotTaken(doctorID, date, timeOfDay), nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status, notes *string) error {
	a, ok := m.appointments[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	if notes != nil {
		a.Notes = notes
	}
	a.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepo) collect(include func(*Appointment) bool, ascending bool) []*Appointment {
	var items []*Appointment
	for _, a := range m.appointments {
		if include(a) {
			out := *a
			items = append(items, &out)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		ki := items[i].Date + items[i].Time
		kj := items[j].Date + items[j].Time
		if ascending {
			return ki < kj
		}
		return ki > kj
	})
	return items
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	items := m.collect(func(a *Appointment) bool { return a.PatientID == patientID }, false)
	return items, len(items), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, f DoctorFilter, limit, offset int) ([]*Appointment, int, error) {
	items := m.collect(func(a *Appointment) bool {
		if a.DoctorID != doctorID {
			return false
		}
		if f.Date != "" && a.Date != f.Date {
			return false
		}
		if f.Status != "" && a.Status != f.Status {
			return false
		}
		return true
	}, false)
	return items, len(items), nil
}

func (m *mockRepo) ListUpcomingByDoctor(_ context.Context, doctorID uuid.UUID, fromDate string, limit, offset int) ([]*Appointment, int, error) {
	items := m.collect(func(a *Appointment) bool {
		return a.DoctorID == doctorID && a.Date >= fromDate && a.Status == StatusScheduled
	}, true)
	return items, len(items), nil
}

func (m *mockRepo) ListAll(_ context.Context, limit, offset int) ([]*Appointment, int, error) {
	items := m.collect(func(*Appointment) bool { return true }, false)
	return items, len(items), nil
}

func newTestBooking(t *testing.T, svc *Service, patientID, doctorID uuid.UUID, date, timeOfDay string) *Appointment {
	t.Helper()
	a, err := svc.Book(context.Background(), BookInput{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		Time:      timeOfDay,
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return a
}

func TestBook(t *testing.T) {
	svc := NewService(newMockRepo())
	a := newTestBooking(t, svc, uuid.New(), uuid.New(), "2026-09-01", "10:30")

	if a.Status != StatusScheduled {
		t.Errorf("status = %q", a.Status)
	}
	if a.Time != "10:30:00" {
		t.Errorf("time should normalize to HH:MM:SS, got %q", a.Time)
	}
}

func TestBook_InvalidInput(t *testing.T) {
	svc := NewService(newMockRepo())
	cases := []struct {
		name string
		in   BookInput
	}{
		{"missing patient", BookInput{DoctorID: uuid.New(), Date: "2026-09-01", Time: "10:30"}},
		{"missing doctor", BookInput{PatientID: uuid.New(), Date: "2026-09-01", Time: "10:30"}},
		{"bad date", BookInput{PatientID: uuid.New(), DoctorID: uuid.New(), Date: "01/09/2026", Time: "10:30"}},
		{"bad time", BookInput{PatientID: uuid.New(), DoctorID: uuid.New(), Date: "2026-09-01", Time: "half past ten"}},
	}
	for _, tc := range cases {
		if _, err := svc.Book(context.Background(), tc.in); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestBook_SlotConflictAndRebookAfterCancel(t *testing.T) {
	svc := NewService(newMockRepo())
	doctorID := uuid.New()

	first := newTestBooking(t, svc, uuid.New(), doctorID, "2026-09-01", "10:30")

	// Same slot, different patient: rejected.
	_, err := svc.Book(context.Background(), BookInput{
		PatientID: uuid.New(),
		DoctorID:  doctorID,
		Date:      "2026-09-01",
		Time:      "10:30",
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// Another doctor at the same time is fine.
	newTestBooking(t, svc, uuid.New(), uuid.New(), "2026-09-01", "10:30")

	// Cancelling frees the slot for a new booking.
	if _, err := svc.Cancel(context.Background(), first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Book(context.Background(), BookInput{
		PatientID: uuid.New(),
		DoctorID:  doctorID,
		Date:      "2026-09-01",
		Time:      "10:30",
	}); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
}

func TestBook_TimeFormatsCollide(t *testing.T) {
	svc := NewService(newMockRepo())
	doctorID := uuid.New()
	newTestBooking(t, svc, uuid.New(), doctorID, "2026-09-01", "10:30")

	// "10:30:00" is the same slot as "10:30".
	_, err := svc.Book(context.Background(), BookInput{
		PatientID: uuid.New(),
		DoctorID:  doctorID,
		Date:      "2026-09-01",
		Time:      "10:30:00",
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}
}

func TestCheckAvailability(t *testing.T) {
	svc := NewService(newMockRepo())
	doctorID := uuid.New()

	free, err := svc.CheckAvailability(context.Background(), doctorID, "2026-09-01", "10:30")
	if err != nil || !free {
		t.Fatalf("expected free slot, got %v %v", free, err)
	}

	newTestBooking(t, svc, uuid.New(), doctorID, "2026-09-01", "10:30")
	free, err = svc.CheckAvailability(context.Background(), doctorID, "2026-09-01", "10:30")
	if err != nil || free {
		t.Fatalf("expected taken slot, got %v %v", free, err)
	}
}

func TestUpdateStatus_OnlyOutOfScheduled(t *testing.T) {
	svc := NewService(newMockRepo())
	a := newTestBooking(t, svc, uuid.New(), uuid.New(), "2026-09-01", "10:30")

	notes := "patient seen, prescribed rest"
	updated, err := svc.UpdateStatus(context.Background(), a.ID, StatusCompleted, &notes)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != StatusCompleted || updated.Notes == nil || *updated.Notes != notes {
		t.Errorf("updated = %+v", updated)
	}

	// A completed appointment is final.
	if _, err := svc.UpdateStatus(context.Background(), a.ID, StatusNoShow, nil); !errors.Is(err, ErrNotScheduled) {
		t.Errorf("expected ErrNotScheduled, got %v", err)
	}
	if _, err := svc.Cancel(context.Background(), a.ID); !errors.Is(err, ErrNotScheduled) {
		t.Errorf("cancel after completion: expected ErrNotScheduled, got %v", err)
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	svc := NewService(newMockRepo())
	a := newTestBooking(t, svc, uuid.New(), uuid.New(), "2026-09-01", "10:30")
	if _, err := svc.UpdateStatus(context.Background(), a.ID, Status("Rescheduled"), nil); err == nil {
		t.Error("expected invalid status error")
	}
}

func TestGetByDoctor_Filters(t *testing.T) {
	svc := NewService(newMockRepo())
	doctorID := uuid.New()
	newTestBooking(t, svc, uuid.New(), doctorID, "2026-09-01", "09:00")
	second := newTestBooking(t, svc, uuid.New(), doctorID, "2026-09-02", "09:00")
	svc.Cancel(context.Background(), second.ID)

	items, _, err := svc.GetByDoctor(context.Background(), doctorID, DoctorFilter{Date: "2026-09-01"}, 50, 0)
	if err != nil || len(items) != 1 {
		t.Fatalf("date filter: %d items, err %v", len(items), err)
	}

	items, _, err = svc.GetByDoctor(context.Background(), doctorID, DoctorFilter{Status: StatusCancelled}, 50, 0)
	if err != nil || len(items) != 1 || items[0].ID != second.ID {
		t.Fatalf("status filter: %d items, err %v", len(items), err)
	}
}

func TestGetUpcomingByDoctor(t *testing.T) {
	svc := NewService(newMockRepo())
	svc.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	doctorID := uuid.New()

	newTestBooking(t, svc, uuid.New(), doctorID, "2026-08-31", "09:00") // past
	today := newTestBooking(t, svc, uuid.New(), doctorID, "2026-09-01", "15:00")
	later := newTestBooking(t, svc, uuid.New(), doctorID, "2026-09-03", "09:00")
	cancelled := newTestBooking(t, svc, uuid.New(), doctorID, "2026-09-04", "09:00")
	svc.Cancel(context.Background(), cancelled.ID)

	items, _, err := svc.GetUpcomingByDoctor(context.Background(), doctorID, 50, 0)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 upcoming, got %d", len(items))
	}
	// Soonest first.
	if items[0].ID != today.ID || items[1].ID != later.ID {
		t.Errorf("wrong order: %s then %s", items[0].Date, items[1].Date)
	}
}

func TestGetByPatient_NewestFirst(t *testing.T) {
	svc := NewService(newMockRepo())
	patientID := uuid.New()
	newTestBooking(t, svc, patientID, uuid.New(), "2026-09-01", "09:00")
	newest := newTestBooking(t, svc, patientID, uuid.New(), "2026-09-05", "09:00")

	items, total, err := svc.GetByPatient(context.Background(), patientID, 50, 0)
	if err != nil || total != 2 {
		t.Fatalf("list: total %d, err %v", total, err)
	}
	if items[0].ID != newest.ID {
		t.Errorf("expected newest first, got %s", items[0].Date)
	}
}
