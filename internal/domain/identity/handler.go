package identity

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medilink/hms/internal/platform/session"
	"github.com/medilink/hms/pkg/pagination"
)

type Handler struct {
	svc      *Service
	sessions *session.Manager
}

func NewHandler(svc *Service, sessions *session.Manager) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

// RegisterRoutes binds the account routes. The public group carries no session
// requirement, authed requires any signed-in user, and admin requires an admin
// session.
func (h *Handler) RegisterRoutes(public, authed, admin *echo.Group) {
	public.POST("/patients/register", h.RegisterPatient)
	public.POST("/login/:user_type", h.Login)

	authed.POST("/logout", h.Logout)
	authed.GET("/me", h.Me)
	authed.PUT("/me", h.UpdateMe)
	authed.GET("/doctors", h.ListDoctors)
	authed.GET("/doctors/:id", h.GetDoctor)

	admin.POST("/doctors", h.CreateDoctor)
	admin.GET("/doctors/all", h.ListAllDoctors)
	admin.PUT("/doctors/:id", h.UpdateDoctor)
	admin.DELETE("/doctors/:id", h.DeleteDoctor)
	admin.GET("/patients", h.ListPatients)
	admin.GET("/patients/:id", h.GetPatient)
	admin.PUT("/patients/:id", h.UpdatePatient)
	admin.DELETE("/patients/:id", h.DeletePatient)
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var in RegisterPatientInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.svc.RegisterPatient(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, id)
}

type loginRequest struct {
	Username   string `json:"username"`
	DoctorCode string `json:"doctor_code"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (r loginRequest) naturalKey(kind Kind) string {
	switch kind.Name {
	case KindAdmin.Name:
		return r.Username
	case KindDoctor.Name:
		return r.DoctorCode
	default:
		return r.Email
	}
}

type loginResponse struct {
	Token string    `json:"token"`
	User  *Identity `json:"user"`
}

func (h *Handler) Login(c echo.Context) error {
	kind, ok := KindForUserType(session.UserType(c.Param("user_type")))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown user type")
	}

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	key := req.naturalKey(kind)
	if key == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, kind.KeyLabel+" and password are required")
	}

	ctx := c.Request().Context()
	id, err := h.svc.Authenticate(ctx, kind, key, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, ErrAccountDisabled):
			return echo.NewHTTPError(http.StatusForbidden, "account is disabled")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}

	token, err := h.sessions.Issue(ctx, kind.UserType, id.ID, id.FullName)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to start session")
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, User: id})
}

func (h *Handler) Logout(c echo.Context) error {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token != "" {
		if err := h.sessions.Revoke(c.Request().Context(), token); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "logout failed")
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	p := session.FromContext(ctx)
	kind, _ := KindForUserType(p.UserType)
	id, err := h.svc.Get(ctx, kind, p.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	}
	return c.JSON(http.StatusOK, id)
}

// UpdateMe lets the signed-in user change their own profile. The accepted
// fields depend on the account kind.
func (h *Handler) UpdateMe(c echo.Context) error {
	ctx := c.Request().Context()
	p := session.FromContext(ctx)
	kind, _ := KindForUserType(p.UserType)

	var err error
	switch kind.Name {
	case KindAdmin.Name:
		var u AdminUpdate
		if err = c.Bind(&u); err == nil {
			err = h.svc.UpdateAdmin(ctx, p.UserID, u)
		}
	case KindDoctor.Name:
		var u DoctorUpdate
		if err = c.Bind(&u); err == nil {
			err = h.svc.UpdateDoctor(ctx, p.UserID, u)
		}
	default:
		var u PatientUpdate
		if err = c.Bind(&u); err == nil {
			err = h.svc.UpdatePatient(ctx, p.UserID, u)
		}
	}
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id, err := h.svc.Get(ctx, kind, p.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "account not found")
	}
	return c.JSON(http.StatusOK, id)
}

// ListDoctors is the booking directory: active doctors, optionally filtered by
// university.
func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	var (
		items []*Identity
		total int
		err   error
	)
	if university := c.QueryParam("university"); university != "" {
		items, total, err = h.svc.DoctorsByUniversity(ctx, university, pg.Limit, pg.Offset)
	} else {
		items, total, err = h.svc.ListActive(ctx, KindDoctor, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	doc, err := h.svc.Get(c.Request().Context(), KindDoctor, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var in RegisterDoctorInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := session.FromContext(c.Request().Context())
	in.CreatedBy = &p.UserID

	doc, err := h.svc.RegisterDoctor(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) ListAllDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAll(c.Request().Context(), KindDoctor, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var u DoctorUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdateDoctor(c.Request().Context(), id, u); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
		case errors.Is(err, ErrDuplicateKey):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	doc, err := h.svc.Get(c.Request().Context(), KindDoctor, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	}
	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	return h.deactivate(c, KindDoctor)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAll(c.Request().Context(), KindPatient, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pt, err := h.svc.Get(c.Request().Context(), KindPatient, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, pt)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var u PatientUpdate
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.UpdatePatient(c.Request().Context(), id, u); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		case errors.Is(err, ErrDuplicateKey):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pt, err := h.svc.Get(c.Request().Context(), KindPatient, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, pt)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	return h.deactivate(c, KindPatient)
}

func (h *Handler) deactivate(c echo.Context, kind Kind) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Deactivate(c.Request().Context(), kind, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, kind.Name+" not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
