package passwordreset

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medilink/hms/internal/platform/notification"
	"github.com/medilink/hms/internal/platform/session"
)

type Handler struct {
	svc     *Service
	mailer  *notification.Mailer
	baseURL string
	logger  zerolog.Logger
}

func NewHandler(svc *Service, mailer *notification.Mailer, baseURL string, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:     svc,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With().Str("component", "passwordreset").Logger(),
	}
}

func (h *Handler) RegisterRoutes(public *echo.Group) {
	public.POST("/password-reset/request", h.Request)
	public.POST("/password-reset/confirm", h.Confirm)
}

type requestBody struct {
	UserType string `json:"user_type"`
	Email    string `json:"email"`
}

// requestAccepted is the uniform answer for the request endpoint: the caller
// learns nothing about whether the address has an account.
const requestAccepted = "if the account exists, a reset link has been sent"

func (h *Handler) Request(c echo.Context) error {
	var req requestBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Email == "" || req.UserType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_type and email are required")
	}

	ctx := c.Request().Context()
	userType := session.UserType(req.UserType)
	id, err := h.svc.ResolveUserByEmail(ctx, userType, req.Email)
	if err != nil {
		h.logger.Error().Err(err).Msg("reset lookup failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "request failed")
	}
	if id == nil {
		return c.JSON(http.StatusOK, map[string]string{"message": requestAccepted})
	}

	t, err := h.svc.Issue(ctx, userType, id.ID, id.Email)
	if err != nil {
		h.logger.Error().Err(err).Msg("token issue failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "request failed")
	}

	data := map[string]string{
		"user_name":  id.FullName,
		"reset_link": h.baseURL + "/reset-password?token=" + t.Token,
	}
	if err := h.mailer.SendFromTemplate(ctx, "password-reset", data, id.Email); err != nil {
		h.logger.Error().Err(err).Msg("reset mail failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "request failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": requestAccepted})
}

type confirmBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *Handler) Confirm(c echo.Context) error {
	var req confirmBody
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Token == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token and password are required")
	}

	err := h.svc.ResetPassword(c.Request().Context(), req.Token, req.Password)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]string{"message": "password has been reset"})
	case errors.Is(err, ErrInvalidToken):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
