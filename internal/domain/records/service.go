package records

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

// CreateInput carries a new medical record. DoctorID comes from the session,
// never from the request body.
type CreateInput struct {
	PatientID        uuid.UUID  `json:"patient_id"`
	DoctorID         uuid.UUID  `json:"-"`
	AppointmentID    *uuid.UUID `json:"appointment_id"`
	VisitDate        string     `json:"visit_date"`
	Diagnosis        string     `json:"diagnosis"`
	Symptoms         *string    `json:"symptoms"`
	Prescription     *string    `json:"prescription"`
	TestsRecommended *string    `json:"tests_recommended"`
	FollowUpDate     *string    `json:"follow_up_date"`
	Notes            *string    `json:"notes"`
}

func normalizeDate(field, date string) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("invalid %s %q, expected YYYY-MM-DD", field, date)
	}
	return t.Format(DateLayout), nil
}

// Create writes a new record. Visit date defaults to today when omitted.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Record, error) {
	if in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if in.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("doctor_id is required")
	}
	if in.Diagnosis == "" {
		return nil, fmt.Errorf("diagnosis is required")
	}

	visitDate := s.now().Format(DateLayout)
	if in.VisitDate != "" {
		var err error
		if visitDate, err = normalizeDate("visit_date", in.VisitDate); err != nil {
			return nil, err
		}
	}
	if in.FollowUpDate != nil {
		followUp, err := normalizeDate("follow_up_date", *in.FollowUpDate)
		if err != nil {
			return nil, err
		}
		in.FollowUpDate = &followUp
	}

	rec := &Record{
		PatientID:        in.PatientID,
		DoctorID:         in.DoctorID,
		AppointmentID:    in.AppointmentID,
		VisitDate:        visitDate,
		Diagnosis:        in.Diagnosis,
		Symptoms:         in.Symptoms,
		Prescription:     in.Prescription,
		TestsRecommended: in.TestsRecommended,
		FollowUpDate:     in.FollowUpDate,
		Notes:            in.Notes,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.FindByID(ctx, id)
}

// Update applies a partial update. Diagnosis may change but never empty out.
func (s *Service) Update(ctx context.Context, id uuid.UUID, u Update) (*Record, error) {
	if u.Diagnosis != nil && *u.Diagnosis == "" {
		return nil, fmt.Errorf("diagnosis cannot be empty")
	}
	if u.FollowUpDate != nil && *u.FollowUpDate != "" {
		followUp, err := normalizeDate("follow_up_date", *u.FollowUpDate)
		if err != nil {
			return nil, err
		}
		u.FollowUpDate = &followUp
	}
	if err := s.repo.Update(ctx, id, u); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) GetByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) GetByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

// GetPatientHistory returns the visits one doctor has recorded for one
// patient, newest first.
func (s *Service) GetPatientHistory(ctx context.Context, patientID, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	return s.repo.ListPatientHistory(ctx, patientID, doctorID, limit, offset)
}
