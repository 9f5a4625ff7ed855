package labs

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/internal/platform/blobstore"
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
	g := api.Group("/labs", auth.RequireRole(auth.RoleLab))
	g.POST("/documents", h.Upload)
	g.GET("/documents", h.List)
	g.GET("/documents/:id", h.Get)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrUnsupportedType), errors.Is(err, blobstore.ErrInvalidName):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, completion.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Server is temporarily unavailable. Please try again in a few moments.")
	case errors.Is(err, completion.ErrUnauthorized), errors.Is(err, completion.ErrFailed):
		return echo.NewHTTPError(http.StatusBadGateway, "Failed to analyze image. Please try again.")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// Upload accepts a multipart form with the image in the "file" field.
func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fh.Size > blobstore.MaxFileSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, blobstore.ErrFileTooLarge.Error())
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()

	ctx := c.Request().Context()
	doc, err := h.svc.Analyze(ctx, auth.ProfileIDFromContext(ctx), fh.Header.Get(echo.HeaderContentType), f)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, doc)
}

func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(ctx, auth.ProfileIDFromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	d, err := h.svc.Get(ctx, auth.ProfileIDFromContext(ctx), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, d)
}
