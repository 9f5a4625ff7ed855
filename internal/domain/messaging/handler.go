package messaging

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/chats", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	g.GET("/:peerId/messages", h.History)
	g.POST("/:peerId/messages", h.Post)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotMember), errors.Is(err, ErrNoCareLink):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// pair resolves the doctor and patient ids from the caller and the peer in
// the path.
func pair(c echo.Context) (self, doctorID, patientID uuid.UUID, err error) {
	peer, err := uuid.Parse(c.Param("peerId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid peer id")
	}
	id := auth.IdentityFromContext(c.Request().Context())
	if id == nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if id.Role == auth.RoleDoctor {
		return id.ProfileID, id.ProfileID, peer, nil
	}
	return id.ProfileID, peer, id.ProfileID, nil
}

func (h *Handler) History(c echo.Context) error {
	self, doctorID, patientID, err := pair(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.History(c.Request().Context(), self, doctorID, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Post(c echo.Context) error {
	self, doctorID, patientID, err := pair(c)
	if err != nil {
		return err
	}
	var in PostInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.Post(c.Request().Context(), self, doctorID, patientID, in.Content)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, m)
}
