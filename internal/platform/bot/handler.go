package bot

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medilink/hms/internal/platform/session"
)

const defaultHistoryLimit = 10

// Handler exposes the chat assistant over HTTP via Echo.
type Handler struct {
	responder *Responder
	history   HistoryRepository
	logger    zerolog.Logger
}

// NewHandler creates a new chat Handler. The history repository may be nil,
// in which case exchanges are not persisted.
func NewHandler(responder *Responder, history HistoryRepository, logger zerolog.Logger) *Handler {
	return &Handler{responder: responder, history: history, logger: logger}
}

// RegisterRoutes binds the chat routes to the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/chat", h.HandleChat)
	g.GET("/chat/history", h.HandleHistory)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleChat handles POST /chat. Anonymous visitors get answers too; only
// signed-in conversations are stored.
func (h *Handler) HandleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	ctx := c.Request().Context()
	p := session.FromContext(ctx)
	response := h.responder.Respond(req.Message, p)

	if p != nil && h.history != nil {
		m := &Message{
			UserType: p.UserType,
			UserID:   p.UserID,
			Message:  req.Message,
			Response: response,
		}
		// History is best effort; the reply still goes out if the insert fails.
		if err := h.history.Save(ctx, m); err != nil {
			h.logger.Error().Err(err).Str("user_id", p.UserID.String()).Msg("Failed to save chat message")
		}
	}

	return c.JSON(http.StatusOK, chatResponse{
		Response:  response,
		Timestamp: time.Now().UTC(),
	})
}

// HandleHistory handles GET /chat/history for the signed-in user.
func (h *Handler) HandleHistory(c echo.Context) error {
	ctx := c.Request().Context()
	p := session.FromContext(ctx)
	if p == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if h.history == nil {
		return c.JSON(http.StatusOK, []*Message{})
	}

	items, err := h.history.ListByUser(ctx, p.UserType, p.UserID, defaultHistoryLimit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", p.UserID.String()).Msg("Failed to load chat history")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load chat history")
	}
	if items == nil {
		items = []*Message{}
	}
	return c.JSON(http.StatusOK, items)
}
