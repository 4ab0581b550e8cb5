package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// BookInput carries a booking request.
type BookInput struct {
	PatientID uuid.UUID `json:"-"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"appointment_date"`
	Time      string    `json:"appointment_time"`
	Reason    *string   `json:"reason"`
}

func normalizeDate(date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid appointment_date %q, expected YYYY-MM-DD", date)
	}
	return t.Format(DateLayout), nil
}

// normalizeTime accepts HH:MM or HH:MM:SS and stores HH:MM:SS, so slot
// comparisons never depend on how the client wrote the time.
func normalizeTime(timeOfDay string) (string, error) {
	if t, err := time.Parse("15:04", timeOfDay); err == nil {
		return t.Format(TimeLayout), nil
	}
	t, err := time.Parse(TimeLayout, timeOfDay)
	if err != nil {
		return "", fmt.Errorf("invalid appointment_time %q, expected HH:MM", timeOfDay)
	}
	return t.Format(TimeLayout), nil
}

// CheckAvailability reports whether the doctor's slot at date and time is
// free. Cancelled appointments do not occupy slots.
func (s *Service) CheckAvailability(ctx context.Context, doctorID uuid.UUID, date, timeOfDay string) (bool, error) {
	if doctorID == uuid.Nil {
		return false, fmt.Errorf("doctor_id is required")
	}
	date, err := normalizeDate(date)
	if err != nil {
		return false, err
	}
	timeOfDay, err = normalizeTime(timeOfDay)
	if err != nil {
		return false, err
	}
	return s.repo.IsSlotFree(ctx, doctorID, date, timeOfDay)
}

// Book creates a Scheduled appointment. The availability pre-check gives a
// friendly answer for the common case; the database constraint settles races,
// so two concurrent bookings of one slot end with exactly one winner.
func (s *Service) Book(ctx context.Context, in BookInput) (*Appointment, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if in.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required")
	}
	date, err := normalizeDate(in.Date)
	if err != nil {
		return nil, err
	}
	timeOfDay, err := normalizeTime(in.Time)
	if err != nil {
		return nil, err
	}

	free, err := s.repo.IsSlotFree(ctx, in.DoctorID, date, timeOfDay)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, ErrSlotTaken
	}

	a := &Appointment{
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Date:      date,
		Time:      timeOfDay,
		Reason:    in.Reason,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateStatus moves an appointment out of Scheduled. Appointments that
// already completed, cancelled, or no-showed are final.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, notes *string) (*Appointment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status: %s", status)
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusScheduled {
		return nil, ErrNotScheduled
	}

	if err := s.repo.UpdateStatus(ctx, id, status, notes); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// Cancel is the patient-facing shortcut for UpdateStatus(Cancelled). The
// freed slot becomes bookable again.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled, nil)
}

func (s *Service) GetByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) GetByDoctor(ctx context.Context, doctorID uuid.UUID, f DoctorFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Date != "" {
		date, err := normalizeDate(f.Date)
		if err != nil {
			return nil, 0, err
		}
		f.Date = date
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("invalid status: %s", f.Status)
	}
	return s.repo.ListByDoctor(ctx, doctorID, f, limit, offset)
}

func (s *Service) GetUpcomingByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	today := s.now().Format(DateLayout)
	return s.repo.ListUpcomingByDoctor(ctx, doctorID, today, limit, offset)
}

func (s *Service) GetAll(ctx context.Context, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListAll(ctx, limit, offset)
}
