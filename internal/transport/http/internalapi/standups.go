package internalapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// RunStandupRequest is the optional body of a run trigger.
type RunStandupRequest struct {
	Title    string `json:"title,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// RunStandup runs the standup for a date. The date may be "today".
// POST /internal/standups/:date/run?async=true
func (h *Handler) RunStandup(c echo.Context) error {
	var body RunStandupRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}
	}
	date, err := h.service.ResolveDate(c.Param("date"), body.Timezone)
	if err != nil {
		return errorJSON(c, err)
	}
	req := domain.RunRequest{Date: date, Title: body.Title, Timezone: body.Timezone}

	if c.QueryParam("async") == "true" {
		ctx := context.WithoutCancel(c.Request().Context())
		go func() {
			if _, err := h.service.StartRun(ctx, req); err != nil {
				h.log.Error("async standup run failed", "date", date, "error", err)
			}
		}()
		return c.JSON(http.StatusAccepted, map[string]interface{}{
			"date":   date,
			"status": "accepted",
		})
	}

	result, err := h.service.StartRun(c.Request().Context(), req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Reconcile marks abandoned runs.
// POST /internal/standups/reconcile
func (h *Handler) Reconcile(c echo.Context) error {
	n, err := h.service.Reconcile(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":        true,
		"abandoned": n,
	})
}

// DeleteStandup removes a run with its entries and messages.
// DELETE /internal/standups/:date
func (h *Handler) DeleteStandup(c echo.Context) error {
	date := c.Param("date")
	if err := h.service.DeleteRun(c.Request().Context(), date); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":   true,
		"date": date,
	})
}
