// Package identity manages the three account kinds of the hospital: admins,
// doctors, and patients. The three tables share a common shape (natural key,
// password digest, contact fields, active flag) and differ in their profile
// columns, so one repository serves all three, driven by a Kind descriptor.
package identity

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medilink/hms/internal/platform/session"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateKey is returned when the natural key is already taken.
	ErrDuplicateKey = errors.New("account already exists")
	// ErrInvalidCredentials covers both unknown accounts and wrong passwords,
	// so a caller cannot tell which natural keys exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned when the password is correct but the
	// account has been deactivated.
	ErrAccountDisabled = errors.New("account is disabled")
)

// Kind describes one account table. The repository uses it to address the
// right table and natural-key column.
type Kind struct {
	Name             string
	UserType         session.UserType
	Table            string
	NaturalKeyColumn string
	// KeyLabel names the natural key in validation messages.
	KeyLabel string
}

var (
	KindAdmin = Kind{
		Name:             "admin",
		UserType:         session.UserTypeAdmin,
		Table:            "admins",
		NaturalKeyColumn: "username",
		KeyLabel:         "username",
	}
	KindDoctor = Kind{
		Name:             "doctor",
		UserType:         session.UserTypeDoctor,
		Table:            "doctors",
		NaturalKeyColumn: "doctor_code",
		KeyLabel:         "doctor code",
	}
	KindPatient = Kind{
		Name:             "patient",
		UserType:         session.UserTypePatient,
		Table:            "patients",
		NaturalKeyColumn: "email",
		KeyLabel:         "email",
	}
)

// KindForUserType maps a session user type to its Kind.
func KindForUserType(t session.UserType) (Kind, bool) {
	switch t {
	case session.UserTypeAdmin:
		return KindAdmin, true
	case session.UserTypeDoctor:
		return KindDoctor, true
	case session.UserTypePatient:
		return KindPatient, true
	}
	return Kind{}, false
}

// DoctorProfile holds the doctor-specific columns.
type DoctorProfile struct {
	University     string     `json:"university"`
	Specialization *string    `json:"specialization,omitempty"`
	Qualification  *string    `json:"qualification,omitempty"`
	Address        *string    `json:"address,omitempty"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
}

// PatientProfile holds the patient-specific columns.
type PatientProfile struct {
	Age              int     `json:"age"`
	Gender           string  `json:"gender"`
	Address          *string `json:"address,omitempty"`
	BloodGroup       *string `json:"blood_group,omitempty"`
	EmergencyContact *string `json:"emergency_contact,omitempty"`
}

// Identity is one account of any kind. Exactly one of the profile pointers is
// set for doctors and patients; both are nil for admins.
type Identity struct {
	ID             uuid.UUID        `json:"id"`
	UserType       session.UserType `json:"user_type"`
	NaturalKey     string           `json:"natural_key"`
	PasswordDigest string           `json:"-"`
	FullName       string           `json:"full_name"`
	Email          string           `json:"email"`
	Phone          *string          `json:"phone,omitempty"`
	Active         bool             `json:"active"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	Doctor  *DoctorProfile  `json:"doctor,omitempty"`
	Patient *PatientProfile `json:"patient,omitempty"`
}

// AdminUpdate carries the admin fields that may change. Nil fields keep their
// stored values.
type AdminUpdate struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Password *string `json:"password"`
}

// DoctorUpdate carries the doctor fields that may change.
type DoctorUpdate struct {
	FullName       *string `json:"full_name"`
	Email          *string `json:"email"`
	Phone          *string `json:"phone"`
	University     *string `json:"university"`
	Specialization *string `json:"specialization"`
	Qualification  *string `json:"qualification"`
	Address        *string `json:"address"`
	Password       *string `json:"password"`
}

// PatientUpdate carries the patient fields that may change.
type PatientUpdate struct {
	FullName         *string `json:"full_name"`
	Email            *string `json:"email"`
	Phone            *string `json:"phone"`
	Age              *int    `json:"age"`
	Gender           *string `json:"gender"`
	Address          *string `json:"address"`
	BloodGroup       *string `json:"blood_group"`
	EmergencyContact *string `json:"emergency_contact"`
	Password         *string `json:"password"`
}
