package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the storage contract for appointments.
type Repository interface {
	// Create inserts a Scheduled appointment. A conflicting live booking for
	// the same doctor, date, and time surfaces as ErrSlotTaken.
	Create(ctx context.Context, a *Appointment) error
	// FindByID returns the appointment joined with patient and doctor
	// display fields.
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// IsSlotFree reports whether the doctor has no non-cancelled appointment
	// at the given date and time.
	IsSlotFree(ctx context.Context, doctorID uuid.UUID, date, timeOfDay string) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, notes *string) error

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, f DoctorFilter, limit, offset int) ([]*Appointment, int, error)
	// ListUpcomingByDoctor returns Scheduled appointments on or after the
	// given date, soonest first.
	ListUpcomingByDoctor(ctx context.Context, doctorID uuid.UUID, fromDate string, limit, offset int) ([]*Appointment, int, error)
	ListAll(ctx context.Context, limit, offset int) ([]*Appointment, int, error)
}
