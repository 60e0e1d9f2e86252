// Package v1 provides the public HTTP handlers for runs.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/minhduc280903/molforge/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the run API routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/runs", h.SubmitRun)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.GET("/v1/runs/:run_id/candidates", h.GetRunCandidates)
	e.GET("/v1/runs/:run_id/traces", h.GetRunTraces)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
