// Package records manages the medical record ledger: one record per visit,
// written by the treating doctor and readable by the patient it belongs to.
package records

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("medical record not found")
)

// DateLayout is the wire and storage format for visit and follow-up dates.
const DateLayout = "2006-01-02"

// Record is one medical record. Only diagnosis is mandatory; the rest fills
// in as the visit requires.
type Record struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	DoctorID         uuid.UUID  `json:"doctor_id"`
	AppointmentID    *uuid.UUID `json:"appointment_id,omitempty"`
	VisitDate        string     `json:"visit_date"`
	Diagnosis        string     `json:"diagnosis"`
	Symptoms         *string    `json:"symptoms,omitempty"`
	Prescription     *string    `json:"prescription,omitempty"`
	TestsRecommended *string    `json:"tests_recommended,omitempty"`
	FollowUpDate     *string    `json:"follow_up_date,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Display fields joined from the account tables.
	PatientName          *string `json:"patient_name,omitempty"`
	PatientAge           *int    `json:"patient_age,omitempty"`
	PatientGender        *string `json:"patient_gender,omitempty"`
	DoctorName           *string `json:"doctor_name,omitempty"`
	DoctorSpecialization *string `json:"doctor_specialization,omitempty"`
}

// Update carries the record fields that may change after the visit. Nil
// fields keep their stored values.
type Update struct {
	Diagnosis        *string `json:"diagnosis"`
	Symptoms         *string `json:"symptoms"`
	Prescription     *string `json:"prescription"`
	TestsRecommended *string `json:"tests_recommended"`
	FollowUpDate     *string `json:"follow_up_date"`
	Notes            *string `json:"notes"`
}
