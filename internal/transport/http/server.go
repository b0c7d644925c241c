// Package http provides the HTTP servers of the standup engine.
package http

import (
	nethttp "net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/standup/internal/platform/logger"
	"github.com/xiaot623/gogo/standup/internal/service"
	"github.com/xiaot623/gogo/standup/internal/transport/http/internalapi"
	v1 "github.com/xiaot623/gogo/standup/internal/transport/http/v1"
)

// NewExternalServer creates the read API, participant registration and metrics.
// metricsHandler may be nil.
func NewExternalServer(svc *service.Service, metricsHandler nethttp.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	v1.NewHandler(svc).RegisterRoutes(e)
	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}

	return e
}

// NewInternalServer creates the trigger and maintenance API used by the scheduler.
func NewInternalServer(svc *service.Service, log *logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	internalapi.NewHandler(svc, log).RegisterRoutes(e)

	return e
}
