package aichat

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/health-assistant/health-assistant/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the chat endpoints. chatMiddleware is applied to
// the streaming endpoint only, so quota enforcement does not throttle
// session listing.
func (h *Handler) RegisterRoutes(api *echo.Group, chatMiddleware ...echo.MiddlewareFunc) {
	ai := api.Group("/ai")

	ai.POST("/chat", h.Chat, chatMiddleware...)
	ai.GET("/sessions", h.ListSessions)
	ai.GET("/sessions/:id/messages", h.ListMessages)
	ai.DELETE("/sessions/:id", h.DeleteSession)
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	InputType string `json:"inputType"`
}

// Chat streams the assistant reply as server-sent events. Upstream frames
// are forwarded unmodified; a final done frame carries the session id so
// the client can continue the conversation.
func (h *Handler) Chat(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	in := ChatInput{Message: req.Message, InputType: req.InputType}
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid sessionId")
		}
		in.SessionID = &id
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)

	emit := func(data []byte) error {
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", data); err != nil {
			return err
		}
		resp.Flush()
		return nil
	}

	result, err := h.svc.Chat(c.Request().Context(), userID, in, emit)
	if err != nil {
		// Headers are already out, so failures surface as an error
		// frame inside the stream rather than a status code.
		fmt.Fprintf(resp, "data: {\"event\":\"error\",\"message\":%q}\n\n", err.Error())
		resp.Flush()
		return nil
	}

	fmt.Fprintf(resp, "data: {\"event\":\"done\",\"session_id\":%q}\n\n", result.SessionID)
	resp.Flush()
	return nil
}

func (h *Handler) ListSessions(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	sessions, err := h.svc.GetSessions(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if sessions == nil {
		sessions = []*Session{}
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *Handler) ListMessages(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	messages, err := h.svc.GetMessages(c.Request().Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if messages == nil {
		messages = []*Message{}
	}
	return c.JSON(http.StatusOK, messages)
}

func (h *Handler) DeleteSession(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteSession(c.Request().Context(), userID, sessionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
