package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/minhduc280903/molforge/internal/domain"
	"github.com/minhduc280903/molforge/internal/service"
)

// SubmitRunRequest is the request to start a discovery run.
type SubmitRunRequest struct {
	Seeds              []string             `json:"seeds"`
	NumRounds          int                  `json:"num_rounds"`
	CandidatesPerRound int                  `json:"candidates_per_round"`
	TopK               int                  `json:"top_k"`
	Filters            *domain.FilterConfig `json:"filters,omitempty"`
	PenaltyWeight      float64              `json:"penalty_weight"`
	Objective          string               `json:"objective,omitempty"`
}

// SubmitRun accepts a run configuration and queues it for execution.
// POST /v1/runs
func (h *Handler) SubmitRun(c echo.Context) error {
	ctx := c.Request().Context()

	var req SubmitRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Seeds) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "seeds is required"})
	}

	cfg := domain.RunConfig{
		Seeds:              req.Seeds,
		NumRounds:          req.NumRounds,
		CandidatesPerRound: req.CandidatesPerRound,
		TopK:               req.TopK,
		PenaltyWeight:      req.PenaltyWeight,
		Objective:          req.Objective,
	}
	if req.Filters != nil {
		cfg.Filters = *req.Filters
	}

	run, err := h.service.SubmitRun(ctx, cfg)
	if err != nil {
		var rejected *service.RunRejectedError
		if errors.As(err, &rejected) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": rejected.Reason})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"run_id":     run.RunID,
		"status":     run.Status,
		"created_at": run.CreatedAt.UnixMilli(),
	})
}

// GetRun returns the current state of a run.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	run, err := h.service.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, run)
}

// GetRunCandidates returns a run's candidates, best score first.
// GET /v1/runs/:run_id/candidates?passed_only=true&limit=50
func (h *Handler) GetRunCandidates(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	passedOnly := c.QueryParam("passed_only") == "true"
	limit := queryInt(c, "limit", 0)

	candidates, err := h.service.ListCandidates(ctx, runID, passedOnly, limit)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id":     runID,
		"count":      len(candidates),
		"candidates": candidates,
	})
}

// GetRunTraces returns a run's audit trail in execution order.
// GET /v1/runs/:run_id/traces?limit=100
func (h *Handler) GetRunTraces(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	limit := queryInt(c, "limit", 0)

	traces, err := h.service.ListTraces(ctx, runID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"count":  len(traces),
		"traces": traces,
	})
}

func queryInt(c echo.Context, name string, defaultVal int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return defaultVal
	}
	return val
}
