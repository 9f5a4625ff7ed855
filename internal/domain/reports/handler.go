package reports

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
	doctorOnly := auth.RequireRole(auth.RoleDoctor)

	g := api.Group("/reports", doctorOnly)
	g.GET("/pending", h.ListPending)
	g.GET("", h.ListReviewed)
	g.GET("/:id", h.Get)
	g.GET("/:id/pdf", h.PDF)
	g.POST("/:id/accept", h.Accept)
	g.POST("/:id/reject", h.Reject)

	// Both sides of the care link share the /care prefix, so roles are
	// enforced per route.
	api.GET("/care/patients", h.ListPatients, doctorOnly)
	api.GET("/care/doctors", h.ListDoctors, auth.RequireRole(auth.RolePatient))
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAlreadyReviewed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func reportID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) ListPending(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPending(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ListReviewed(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDoctor(ctx, auth.ProfileIDFromContext(ctx), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rep, err := h.svc.Get(ctx, id, auth.ProfileIDFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) PDF(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	doc, err := h.svc.RenderPDF(ctx, id, auth.ProfileIDFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="report-`+id.String()+`.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", doc)
}

func (h *Handler) Accept(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rep, err := h.svc.Accept(ctx, id, auth.ProfileIDFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := reportID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rep, err := h.svc.Reject(ctx, id, auth.ProfileIDFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) ListPatients(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.ListActivePatients(ctx, auth.ProfileIDFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.ListActiveDoctors(ctx, auth.ProfileIDFromContext(ctx))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, items)
}
