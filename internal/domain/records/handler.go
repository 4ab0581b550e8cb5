package records

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medilink/hms/internal/platform/session"
	"github.com/medilink/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes binds the medical record routes. Group access levels: authed
// (any signed-in user), doctor, staff (doctor or admin).
func (h *Handler) RegisterRoutes(authed, doctor, staff *echo.Group) {
	authed.GET("/records", h.ListMine)
	authed.GET("/records/:id", h.Get)

	doctor.POST("/records", h.Create)
	doctor.PATCH("/records/:id", h.Update)
	doctor.GET("/patients/:id/history", h.PatientHistory)

	staff.GET("/patients/:id/records", h.ListByPatient)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := session.FromContext(c.Request().Context())
	in.DoctorID = p.UserID

	rec, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

// ListMine returns the caller's own records: medical history for patients,
// authored records for doctors.
func (h *Handler) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	p := session.FromContext(ctx)
	pg := pagination.FromContext(c)

	var (
		items []*Record
		total int
		err   error
	)
	switch p.UserType {
	case session.UserTypePatient:
		items, total, err = h.svc.GetByPatient(ctx, p.UserID, pg.Limit, pg.Offset)
	case session.UserTypeDoctor:
		items, total, err = h.svc.GetByDoctor(ctx, p.UserID, pg.Limit, pg.Offset)
	default:
		return echo.NewHTTPError(http.StatusForbidden, "use /patients/:id/records")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	rec, err := h.svc.Get(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	}

	p := session.FromContext(ctx)
	if !canViewRecord(p, rec) {
		return echo.NewHTTPError(http.StatusForbidden, "not your record")
	}
	return c.JSON(http.StatusOK, rec)
}

func canViewRecord(p *session.Principal, rec *Record) bool {
	switch p.UserType {
	case session.UserTypeAdmin:
		return true
	case session.UserTypeDoctor:
		return rec.DoctorID == p.UserID
	case session.UserTypePatient:
		return rec.PatientID == p.UserID
	}
	return false
}

// Update is author-only: the signed-in doctor must be the one who wrote the
// record.
func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var u Update
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	rec, err := h.svc.Get(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	p := session.FromContext(ctx)
	if rec.DoctorID != p.UserID {
		return echo.NewHTTPError(http.StatusForbidden, "only the authoring doctor can update a record")
	}

	rec, err = h.svc.Update(ctx, id, u)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "record not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

// PatientHistory returns the signed-in doctor's visit history with one
// patient.
func (h *Handler) PatientHistory(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	p := session.FromContext(ctx)
	pg := pagination.FromContext(c)

	items, total, err := h.svc.GetPatientHistory(ctx, patientID, p.UserID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)

	items, total, err := h.svc.GetByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
