package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// RegisterParticipant registers or updates a participant.
// POST /v1/participants/register
func (h *Handler) RegisterParticipant(c echo.Context) error {
	var req domain.RegisterParticipantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	p, err := h.service.RegisterParticipant(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":            true,
		"participant":   p,
		"registered_at": p.CreatedAt.UnixMilli(),
	})
}

// ListParticipants lists registered participants.
// GET /v1/participants?active=true
func (h *Handler) ListParticipants(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"

	participants, err := h.service.ListParticipants(c.Request().Context(), activeOnly)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"participants": participants,
	})
}
