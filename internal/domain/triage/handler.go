package triage

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/carebridge/internal/domain/reports"
	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/internal/platform/completion"
	"github.com/carebridge/carebridge/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/triage", auth.RequireRole(auth.RolePatient))
	g.POST("/sessions/messages", h.SendNew)
	g.POST("/sessions/:id/messages", h.Send)
	g.POST("/sessions/:id/consultation", h.RequestConsultation)
	g.GET("/sessions", h.ListSessions)
	g.GET("/sessions/:id", h.GetSession)
	g.DELETE("/sessions/:id", h.DeleteSession)
	g.POST("/quick-relief", h.QuickRelief)
}

// completionStatus maps a provider failure to the status the client sees.
func completionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, completion.ErrUnauthorized):
		return http.StatusBadGateway, "Invalid API key. Please check the server configuration."
	case errors.Is(err, completion.ErrUnavailable):
		return http.StatusServiceUnavailable, "Server is temporarily unavailable. Please try again in a few moments."
	default:
		return http.StatusBadGateway, "Failed to analyze symptoms. Please try again."
	}
}

func mapError(err error) error {
	var ce *CompletionError
	switch {
	case errors.As(err, &ce):
		code, msg := completionStatus(ce.Err)
		return echo.NewHTTPError(code, echo.Map{"message": msg, "session": ce.Session})
	case errors.Is(err, completion.ErrUnauthorized), errors.Is(err, completion.ErrUnavailable), errors.Is(err, completion.ErrFailed):
		code, msg := completionStatus(err)
		return echo.NewHTTPError(code, msg)
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrInvalidTranscript), errors.Is(err, reports.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAwaitingResponse), errors.Is(err, ErrEscalationUnavailable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func sessionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) send(c echo.Context, id uuid.UUID) error {
	var in SendInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	sess, err := h.svc.Send(ctx, auth.ProfileIDFromContext(ctx), id, in.Message)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) SendNew(c echo.Context) error {
	return h.send(c, uuid.Nil)
}

func (h *Handler) Send(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	return h.send(c, id)
}

func (h *Handler) RequestConsultation(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rep, err := h.svc.RequestConsultation(ctx, auth.ProfileIDFromContext(ctx), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, rep)
}

func (h *Handler) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSessions(ctx, auth.ProfileIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetSession(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	sess, err := h.svc.GetSession(ctx, auth.ProfileIDFromContext(ctx), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *Handler) DeleteSession(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.svc.DeleteSession(ctx, auth.ProfileIDFromContext(ctx), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) QuickRelief(c echo.Context) error {
	var in QuickReliefInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.QuickRelief(c.Request().Context(), in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, res)
}
