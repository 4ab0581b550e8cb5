package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/medilink/hms/internal/domain/identity"
	"github.com/medilink/hms/internal/domain/scheduling"
	"github.com/medilink/hms/internal/platform/notification"
)

// bookingNotifier mails patients about appointment lifecycle events. It sits
// in main because it crosses two domains: scheduling raises the event,
// identity supplies the addresses.
type bookingNotifier struct {
	accounts *identity.Service
	mailer   *notification.Mailer
	logger   zerolog.Logger
}

func newBookingNotifier(accounts *identity.Service, mailer *notification.Mailer, logger zerolog.Logger) *bookingNotifier {
	return &bookingNotifier{
		accounts: accounts,
		mailer:   mailer,
		logger:   logger.With().Str("component", "booking-notifier").Logger(),
	}
}

func (n *bookingNotifier) AppointmentBooked(ctx context.Context, a *scheduling.Appointment) {
	n.send(ctx, "appointment-confirmation", a)
}

func (n *bookingNotifier) AppointmentCancelled(ctx context.Context, a *scheduling.Appointment) {
	n.send(ctx, "appointment-cancelled", a)
}

func (n *bookingNotifier) send(ctx context.Context, templateID string, a *scheduling.Appointment) {
	patient, err := n.accounts.Get(ctx, identity.KindPatient, a.PatientID)
	if err != nil {
		n.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("patient lookup failed")
		return
	}
	doctorName := ""
	if a.DoctorName != nil {
		doctorName = *a.DoctorName
	} else if doctor, err := n.accounts.Get(ctx, identity.KindDoctor, a.DoctorID); err == nil {
		doctorName = doctor.FullName
	}

	data := map[string]string{
		"patient_name": patient.FullName,
		"doctor_name":  doctorName,
		"date":         a.Date,
		"time":         a.Time,
	}
	if err := n.mailer.SendFromTemplate(ctx, templateID, data, patient.Email); err != nil {
		n.logger.Error().Err(err).Str("template", templateID).Msg("notification failed")
	}
}
