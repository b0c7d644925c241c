// Package internalapi provides HTTP handlers for the internal trigger API.
// These APIs are only reachable by the scheduler and operators.
package internalapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/standup/internal/platform/logger"
	"github.com/xiaot623/gogo/standup/internal/service"
)

// Handler handles internal HTTP requests.
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// NewHandler creates a new internal API handler.
func NewHandler(service *service.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/internal/standups/:date/run", h.RunStandup)
	e.POST("/internal/standups/reconcile", h.Reconcile)
	e.DELETE("/internal/standups/:date", h.DeleteStandup)
}

func errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidDate), errors.Is(err, service.ErrInvalidTimezone):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNoParticipants):
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
