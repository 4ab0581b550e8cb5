// Package scheduling manages appointments: booking against doctor slot
// occupancy, the status lifecycle, and the patient/doctor/admin listings.
package scheduling

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the appointment lifecycle state. An appointment starts Scheduled
// and moves exactly once to Completed, Cancelled, or No-Show.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
	StatusNoShow    Status = "No-Show"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return validStatuses[s] }

var (
	// ErrNotFound is returned when no appointment matches the lookup.
	ErrNotFound = errors.New("appointment not found")
	// ErrSlotTaken is returned when the doctor already has a non-cancelled
	// appointment at the requested date and time.
	ErrSlotTaken = errors.New("time slot is already booked")
	// ErrNotScheduled rejects status changes on appointments that already
	// left the Scheduled state.
	ErrNotScheduled = errors.New("appointment is no longer scheduled")
)

const (
	// DateLayout is the wire and storage format for appointment dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the storage format for appointment times.
	TimeLayout = "15:04:05"
)

// Appointment is one booked slot. Dates and times travel as strings in
// DateLayout/TimeLayout so the wire format matches the DATE and TIME columns.
type Appointment struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"appointment_date"`
	Time      string    `json:"appointment_time"`
	Reason    *string   `json:"reason,omitempty"`
	Status    Status    `json:"status"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Display fields joined from the account tables; not stored here.
	PatientName          *string `json:"patient_name,omitempty"`
	PatientPhone         *string `json:"patient_phone,omitempty"`
	PatientAge           *int    `json:"patient_age,omitempty"`
	PatientGender        *string `json:"patient_gender,omitempty"`
	DoctorName           *string `json:"doctor_name,omitempty"`
	DoctorUniversity     *string `json:"doctor_university,omitempty"`
	DoctorSpecialization *string `json:"doctor_specialization,omitempty"`
}

// DoctorFilter narrows a doctor's appointment listing.
type DoctorFilter struct {
	Date   string
	Status Status
}
