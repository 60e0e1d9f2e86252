// Package http provides the HTTP server for the discovery orchestrator.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minhduc280903/molforge/internal/service"
	v1 "github.com/minhduc280903/molforge/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server. It serves the run API,
// the health probe, and the Prometheus scrape endpoint.
func NewServer(svc *service.Service, registry *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	v1Handler.RegisterRoutes(e)

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return e
}
