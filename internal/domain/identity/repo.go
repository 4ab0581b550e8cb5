package identity

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the storage contract for accounts of every kind.
type Repository interface {
	Create(ctx context.Context, kind Kind, id *Identity) error
	FindByID(ctx context.Context, kind Kind, id uuid.UUID) (*Identity, error)
	// FindByNaturalKey returns only active accounts.
	FindByNaturalKey(ctx context.Context, kind Kind, key string) (*Identity, error)
	// FindByNaturalKeyAnyState ignores the active flag. Login uses it so a
	// deactivated account with a correct password gets a distinct answer.
	FindByNaturalKeyAnyState(ctx context.Context, kind Kind, key string) (*Identity, error)
	FindByEmail(ctx context.Context, kind Kind, email string) (*Identity, error)
	ExistsByNaturalKey(ctx context.Context, kind Kind, key string) (bool, error)

	UpdateAdmin(ctx context.Context, id uuid.UUID, u AdminUpdate, passwordDigest *string) error
	UpdateDoctor(ctx context.Context, id uuid.UUID, u DoctorUpdate, passwordDigest *string) error
	UpdatePatient(ctx context.Context, id uuid.UUID, u PatientUpdate, passwordDigest *string) error
	UpdatePasswordDigest(ctx context.Context, kind Kind, id uuid.UUID, digest string) error

	Deactivate(ctx context.Context, kind Kind, id uuid.UUID) error

	// ListActive returns active accounts ordered by full name.
	ListActive(ctx context.Context, kind Kind, limit, offset int) ([]*Identity, int, error)
	// ListAll includes deactivated accounts, for admin screens.
	ListAll(ctx context.Context, kind Kind, limit, offset int) ([]*Identity, int, error)
	ListDoctorsByUniversity(ctx context.Context, university string, limit, offset int) ([]*Identity, int, error)
}
