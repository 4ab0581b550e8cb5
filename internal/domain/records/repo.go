package records

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the storage contract for medical records.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	// FindByID returns the record joined with patient and doctor display
	// fields.
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, id uuid.UUID, u Update) error

	// Listings are newest visit first.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error)
	// ListPatientHistory returns one doctor's records for one patient.
	ListPatientHistory(ctx context.Context, patientID, doctorID uuid.UUID, limit, offset int) ([]*Record, int, error)
}
