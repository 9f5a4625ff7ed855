package appointments

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
	api.GET("/appointments", h.List, auth.RequireRole(auth.RolePatient, auth.RoleDoctor))

	patientOnly := auth.RequireRole(auth.RolePatient)
	api.POST("/appointments", h.Request, patientOnly)
	api.POST("/appointments/:id/cancel", h.Cancel, patientOnly)
	api.POST("/appointments/:id/respond", h.Respond, auth.RequireRole(auth.RoleDoctor))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNoCareLink):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotPending):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func appointmentID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Request(c echo.Context) error {
	var in RequestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	a, err := h.svc.Request(ctx, auth.ProfileIDFromContext(ctx), in)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Respond(c echo.Context) error {
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	var in RespondInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	a, err := h.svc.Respond(ctx, auth.ProfileIDFromContext(ctx), id, in.Status)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := appointmentID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := h.svc.Cancel(ctx, auth.ProfileIDFromContext(ctx), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// List returns the caller's appointments, date ascending. Patients may
// narrow to one doctor with ?doctor_id=, doctors to one status with ?status=.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	self := auth.ProfileIDFromContext(ctx)

	var (
		items []*Appointment
		total int
		err   error
	)
	if auth.RoleFromContext(ctx) == auth.RoleDoctor {
		items, total, err = h.svc.ListForDoctor(ctx, self, c.QueryParam("status"), pg.Limit, pg.Offset)
	} else {
		var doctorID *uuid.UUID
		if raw := c.QueryParam("doctor_id"); raw != "" {
			id, perr := uuid.Parse(raw)
			if perr != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
			}
			doctorID = &id
		}
		items, total, err = h.svc.ListForPatient(ctx, self, doctorID, pg.Limit, pg.Offset)
	}
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
