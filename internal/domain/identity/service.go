package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medilink/hms/internal/platform/secure"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RegisterAdminInput carries the fields for a new admin account.
type RegisterAdminInput struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
}

// RegisterDoctorInput carries the fields for a new doctor account.
type RegisterDoctorInput struct {
	DoctorCode     string  `json:"doctor_code"`
	Password       string  `json:"password"`
	FullName       string  `json:"full_name"`
	University     string  `json:"university"`
	Email          string  `json:"email"`
	Phone          *string `json:"phone"`
	Specialization *string `json:"specialization"`
	Qualification  *string `json:"qualification"`
	Address        *string `json:"address"`
	// CreatedBy records the admin who opened the account.
	CreatedBy *uuid.UUID `json:"-"`
}

// RegisterPatientInput carries the fields for a new patient account.
type RegisterPatientInput struct {
	FullName         string  `json:"full_name"`
	Age              int     `json:"age"`
	Gender           string  `json:"gender"`
	Phone            *string `json:"phone"`
	Email            string  `json:"email"`
	Password         string  `json:"password"`
	Address          *string `json:"address"`
	BloodGroup       *string `json:"blood_group"`
	EmergencyContact *string `json:"emergency_contact"`
}

const minPasswordLength = 6

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func (s *Service) register(ctx context.Context, kind Kind, id *Identity, password string) (*Identity, error) {
	taken, err := s.repo.ExistsByNaturalKey(ctx, kind, id.NaturalKey)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%s %q: %w", kind.KeyLabel, id.NaturalKey, ErrDuplicateKey)
	}

	digest, err := secure.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id.PasswordDigest = digest
	id.UserType = kind.UserType

	if err := s.repo.Create(ctx, kind, id); err != nil {
		return nil, err
	}
	return id, nil
}

func (s *Service) RegisterAdmin(ctx context.Context, in RegisterAdminInput) (*Identity, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if in.FullName == "" {
		return nil, fmt.Errorf("full_name is required")
	}
	if in.Email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	return s.register(ctx, KindAdmin, &Identity{
		NaturalKey: in.Username,
		FullName:   in.FullName,
		Email:      in.Email,
		Phone:      in.Phone,
	}, in.Password)
}

func (s *Service) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (*Identity, error) {
	in.DoctorCode = strings.TrimSpace(in.DoctorCode)
	if in.DoctorCode == "" {
		return nil, fmt.Errorf("doctor_code is required")
	}
	if in.FullName == "" {
		return nil, fmt.Errorf("full_name is required")
	}
	if in.University == "" {
		return nil, fmt.Errorf("university is required")
	}
	if in.Email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	return s.register(ctx, KindDoctor, &Identity{
		NaturalKey: in.DoctorCode,
		FullName:   in.FullName,
		Email:      in.Email,
		Phone:      in.Phone,
		Doctor: &DoctorProfile{
			University:     in.University,
			Specialization: in.Specialization,
			Qualification:  in.Qualification,
			Address:        in.Address,
			CreatedBy:      in.CreatedBy,
		},
	}, in.Password)
}

func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (*Identity, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if in.FullName == "" {
		return nil, fmt.Errorf("full_name is required")
	}
	if in.Age <= 0 {
		return nil, fmt.Errorf("age must be positive")
	}
	if in.Gender == "" {
		return nil, fmt.Errorf("gender is required")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	return s.register(ctx, KindPatient, &Identity{
		NaturalKey: in.Email,
		Email:      in.Email,
		FullName:   in.FullName,
		Phone:      in.Phone,
		Patient: &PatientProfile{
			Age:              in.Age,
			Gender:           in.Gender,
			Address:          in.Address,
			BloodGroup:       in.BloodGroup,
			EmergencyContact: in.EmergencyContact,
		},
	}, in.Password)
}

// Authenticate checks a natural key and password. Unknown accounts and wrong
// passwords both come back as ErrInvalidCredentials; a correct password on a
// deactivated account comes back as ErrAccountDisabled.
func (s *Service) Authenticate(ctx context.Context, kind Kind, naturalKey, password string) (*Identity, error) {
	id, err := s.repo.FindByNaturalKeyAnyState(ctx, kind, strings.TrimSpace(naturalKey))
	if err == ErrNotFound {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := secure.CheckPassword(id.PasswordDigest, password)
	if err != nil {
		return nil, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !id.Active {
		return nil, ErrAccountDisabled
	}
	return id, nil
}

func (s *Service) Get(ctx context.Context, kind Kind, id uuid.UUID) (*Identity, error) {
	return s.repo.FindByID(ctx, kind, id)
}

func (s *Service) FindByNaturalKey(ctx context.Context, kind Kind, key string) (*Identity, error) {
	return s.repo.FindByNaturalKey(ctx, kind, key)
}

// FindByEmail looks up an active account of the given kind by email address.
// Password reset uses it to resolve the requesting account.
func (s *Service) FindByEmail(ctx context.Context, kind Kind, email string) (*Identity, error) {
	return s.repo.FindByEmail(ctx, kind, strings.TrimSpace(strings.ToLower(email)))
}

func hashedUpdatePassword(password *string) (*string, error) {
	if password == nil {
		return nil, nil
	}
	if err := validatePassword(*password); err != nil {
		return nil, err
	}
	digest, err := secure.HashPassword(*password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &digest, nil
}

func (s *Service) UpdateAdmin(ctx context.Context, id uuid.UUID, u AdminUpdate) error {
	digest, err := hashedUpdatePassword(u.Password)
	if err != nil {
		return err
	}
	return s.repo.UpdateAdmin(ctx, id, u, digest)
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, u DoctorUpdate) error {
	digest, err := hashedUpdatePassword(u.Password)
	if err != nil {
		return err
	}
	return s.repo.UpdateDoctor(ctx, id, u, digest)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, u PatientUpdate) error {
	digest, err := hashedUpdatePassword(u.Password)
	if err != nil {
		return err
	}
	return s.repo.UpdatePatient(ctx, id, u, digest)
}

// SetPassword replaces an account's password digest. The password reset flow
// calls it inside its confirmation transaction.
func (s *Service) SetPassword(ctx context.Context, kind Kind, id uuid.UUID, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	digest, err := secure.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePasswordDigest(ctx, kind, id, digest)
}

// Deactivate soft-deletes an account. Its rows elsewhere stay intact and its
// natural key stays reserved.
func (s *Service) Deactivate(ctx context.Context, kind Kind, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, kind, id)
}

func (s *Service) ListActive(ctx context.Context, kind Kind, limit, offset int) ([]*Identity, int, error) {
	return s.repo.ListActive(ctx, kind, limit, offset)
}

func (s *Service) ListAll(ctx context.Context, kind Kind, limit, offset int) ([]*Identity, int, error) {
	return s.repo.ListAll(ctx, kind, limit, offset)
}

func (s *Service) DoctorsByUniversity(ctx context.Context, university string, limit, offset int) ([]*Identity, int, error) {
	return s.repo.ListDoctorsByUniversity(ctx, university, limit, offset)
}
