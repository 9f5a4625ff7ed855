package blobstore

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler serves stored objects. Keys are unguessable so the route is public,
// which lets the completion provider fetch images by URL.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/storage/:bucket/:key", h.handleGet)
}

func (h *Handler) handleGet(c echo.Context) error {
	rc, obj, err := h.store.Open(c.Request().Context(), c.Param("bucket"), c.Param("key"))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "object not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read object")
	}
	defer rc.Close()

	c.Response().Header().Set("ETag", `"`+obj.Hash+`"`)
	c.Response().Header().Set("Cache-Control", "private, max-age=86400")
	return c.Stream(http.StatusOK, obj.ContentType, rc)
}
