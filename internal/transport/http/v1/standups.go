package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// ListStandups lists recent runs.
// GET /v1/standups?limit=30
func (h *Handler) ListStandups(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	runs, err := h.service.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"standups": runs,
	})
}

// GetStandup returns the run for a date.
// GET /v1/standups/:date
func (h *Handler) GetStandup(c echo.Context) error {
	run, err := h.service.GetRun(c.Request().Context(), c.Param("date"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// GetEntries returns the structured reports of a run.
// GET /v1/standups/:date/entries
func (h *Handler) GetEntries(c echo.Context) error {
	date := c.Param("date")
	entries, err := h.service.GetEntries(c.Request().Context(), date)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":    date,
		"entries": entries,
	})
}

// GetMessages returns the transcript of a run.
// GET /v1/standups/:date/messages
func (h *Handler) GetMessages(c echo.Context) error {
	date := c.Param("date")
	messages, err := h.service.GetMessages(c.Request().Context(), date)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"date":     date,
		"messages": messages,
	})
}
