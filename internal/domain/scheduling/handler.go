package scheduling

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medilink/hms/internal/platform/session"
	"github.com/medilink/hms/pkg/pagination"
)

// Notifier receives booking lifecycle events after they commit. Delivery is
// the notifier's concern; a failed notification never fails the request.
type Notifier interface {
	AppointmentBooked(ctx context.Context, a *Appointment)
	AppointmentCancelled(ctx context.Context, a *Appointment)
}

type Handler struct {
	svc      *Service
	notifier Notifier
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SetNotifier enables booking and cancellation notifications.
func (h *Handler) SetNotifier(n Notifier) {
	h.notifier = n
}

// RegisterRoutes binds the appointment routes. Group access levels: authed
// (any signed-in user), patient, doctor, admin.
func (h *Handler) RegisterRoutes(authed, patient, doctor, admin *echo.Group) {
	authed.GET("/availability", h.CheckAvailability)
	authed.GET("/appointments", h.ListMine)
	authed.GET("/appointments/:id", h.Get)

	patient.POST("/appointments", h.Book)
	patient.POST("/appointments/:id/cancel", h.Cancel)

	doctor.GET("/appointments/upcoming", h.ListUpcoming)
	doctor.PATCH("/appointments/:id/status", h.UpdateStatus)

	admin.GET("/appointments/all", h.ListAll)
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctor_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
	}
	available, err := h.svc.CheckAvailability(c.Request().Context(), doctorID,
		c.QueryParam("date"), c.QueryParam("time"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"available": available})
}

func (h *Handler) Book(c echo.Context) error {
	var in BookInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := session.FromContext(c.Request().Context())
	in.PatientID = p.UserID

	a, err := h.svc.Book(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return echo.NewHTTPError(http.StatusConflict, "time slot is already booked")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if h.notifier != nil {
		h.notifier.AppointmentBooked(c.Request().Context(), a)
	}
	return c.JSON(http.StatusCreated, a)
}

// ListMine returns the caller's own appointments: bookings for patients,
// schedule for doctors. Doctors may filter by date and status.
func (h *Handler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	p := session.FromContext(ctx)
	pg := pagination.FromContext(c)

	var (
		items []*Appointment
		total int
		err   error
	)
	switch p.UserType {
	case session.UserTypePatient:
		items, total, err = h.svc.GetByPatient(ctx, p.UserID, pg.Limit, pg.Offset)
	case session.UserTypeDoctor:
		f := DoctorFilter{
			Date:   c.QueryParam("date"),
			Status: Status(c.QueryParam("status")),
		}
		items, total, err = h.svc.GetByDoctor(ctx, p.UserID, f, pg.Limit, pg.Offset)
	default:
		return echo.NewHTTPError(http.StatusForbidden, "use /appointments/all")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}

	p := session.FromContext(ctx)
	if !canViewAppointment(p, a) {
		return echo.NewHTTPError(http.StatusForbidden, "not your appointment")
	}
	return c.JSON(http.StatusOK, a)
}

func canViewAppointment(p *session.Principal, a *Appointment) bool {
	switch p.UserType {
	case session.UserTypeAdmin:
		return true
	case session.UserTypeDoctor:
		return a.DoctorID == p.UserID
	case session.UserTypePatient:
		return a.PatientID == p.UserID
	}
	return false
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	p := session.FromContext(ctx)
	if a.PatientID != p.UserID {
		return echo.NewHTTPError(http.StatusForbidden, "not your appointment")
	}

	a, err = h.svc.Cancel(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotScheduled) {
			return echo.NewHTTPError(http.StatusConflict, "appointment is no longer scheduled")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if h.notifier != nil {
		h.notifier.AppointmentCancelled(ctx, a)
	}
	return c.JSON(http.StatusOK, a)
}

type updateStatusRequest struct {
	Status Status  `json:"status"`
	Notes  *string `json:"notes"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	p := session.FromContext(ctx)
	if a.DoctorID != p.UserID {
		return echo.NewHTTPError(http.StatusForbidden, "not your appointment")
	}

	a, err = h.svc.UpdateStatus(ctx, id, req.Status, req.Notes)
	if err != nil {
		if errors.Is(err, ErrNotScheduled) {
			return echo.NewHTTPError(http.StatusConflict, "appointment is no longer scheduled")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListUpcoming(c echo.Context) error {
	ctx := c.Request().Context()
	p := session.FromContext(ctx)
	pg := pagination.FromContext(c)

	items, total, err := h.svc.GetUpcomingByDoctor(ctx, p.UserID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListAll(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.GetAll(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
