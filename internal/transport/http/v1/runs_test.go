package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/minhduc280903/molforge/config"
	"github.com/minhduc280903/molforge/internal/chem"
	"github.com/minhduc280903/molforge/internal/domain"
	"github.com/minhduc280903/molforge/internal/metrics"
	"github.com/minhduc280903/molforge/internal/service"
	"github.com/minhduc280903/molforge/policy"
	"github.com/minhduc280903/molforge/tests/helpers"
)

type fakeStructureService struct {
	transformCalls int
}

func (f *fakeStructureService) Validate(ctx context.Context, structure string) (chem.ValidationResult, error) {
	if structure == "" || strings.HasPrefix(structure, "bad") {
		return chem.ValidationResult{IsValid: false, Error: "unparseable structure"}, nil
	}
	return chem.ValidationResult{IsValid: true}, nil
}

func (f *fakeStructureService) ComputeProperties(ctx context.Context, structure string) (domain.PropertyVector, error) {
	return domain.PropertyVector{Weight: 300.0, Lipophilicity: 2.5, Druglikeness: 0.8}, nil
}

func (f *fakeStructureService) ApplyTransformation(ctx context.Context, structure, ruleID string) (chem.TransformationResult, error) {
	f.transformCalls++
	return chem.TransformationResult{Success: true, Structure: fmt.Sprintf("%s#%d", structure, f.transformCalls)}, nil
}

func (f *fakeStructureService) Similarity(ctx context.Context, a, b string) (float64, bool, error) {
	if a == b {
		return 1.0, true, nil
	}
	return 0.0, true, nil
}

func newTestHandler(t *testing.T) (*Handler, *service.Service) {
	t.Helper()

	cfg := &config.Config{
		Workers:       1,
		QueueSize:     8,
		RunTimeout:    time.Minute,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}
	db := helpers.NewTestSQLiteStore(t)
	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	m := metrics.New(prometheus.NewRegistry())
	svc := service.New(db, &fakeStructureService{}, chem.DefaultRules, cfg, policyEngine, m)
	return NewHandler(svc), svc
}

func postRun(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SubmitRun(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func getPath(t *testing.T, h *Handler, handler func(echo.Context) error, path, runID string, query string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	target := "/"
	if query != "" {
		target += "?" + query
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	c.SetParamNames("run_id")
	c.SetParamValues(runID)

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestSubmitRunValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postRun(t, h, `{"num_rounds":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRunPolicyRejection(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postRun(t, h, `{"seeds":["CCO"],"num_rounds":11,"candidates_per_round":20,"top_k":5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "num_rounds")
}

func TestSubmitRunAccepted(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postRun(t, h, `{"seeds":["CCO","CCN"],"num_rounds":1,"candidates_per_round":10,"top_k":5}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	runID, _ := resp["run_id"].(string)
	assert.True(t, strings.HasPrefix(runID, "run_"), "run id %q", runID)
	assert.Equal(t, string(domain.RunStatusPending), resp["status"])

	getRec := getPath(t, h, h.GetRun, "/v1/runs/:run_id", runID, "")
	assert.Equal(t, http.StatusOK, getRec.Code)

	var run domain.Run
	assert.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &run))
	assert.Equal(t, domain.RunStatusPending, run.Status)
	assert.Len(t, run.Config.Seeds, 2)
}

func TestGetRunNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := getPath(t, h, h.GetRun, "/v1/runs/:run_id", "run_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = getPath(t, h, h.GetRunCandidates, "/v1/runs/:run_id/candidates", "run_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = getPath(t, h, h.GetRunTraces, "/v1/runs/:run_id/traces", "run_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRunCandidatesAndTraces(t *testing.T) {
	h, svc := newTestHandler(t)

	rec := postRun(t, h, `{"seeds":["CCO"],"num_rounds":1,"candidates_per_round":10,"top_k":3}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var submitted map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	runID := submitted["run_id"].(string)

	assert.NoError(t, svc.ExecuteRun(context.Background(), runID))

	getRec := getPath(t, h, h.GetRun, "/v1/runs/:run_id", runID, "")
	assert.Equal(t, http.StatusOK, getRec.Code)
	var run domain.Run
	assert.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &run))
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.NotNil(t, run.ResultSummary)

	candRec := getPath(t, h, h.GetRunCandidates, "/v1/runs/:run_id/candidates", runID, "passed_only=true&limit=2")
	assert.Equal(t, http.StatusOK, candRec.Code)
	var candResp struct {
		RunID      string             `json:"run_id"`
		Count      int                `json:"count"`
		Candidates []domain.Candidate `json:"candidates"`
	}
	assert.NoError(t, json.Unmarshal(candRec.Body.Bytes(), &candResp))
	assert.Equal(t, runID, candResp.RunID)
	assert.LessOrEqual(t, candResp.Count, 2)
	for _, c := range candResp.Candidates {
		assert.NotNil(t, c.PassedScreening)
		assert.True(t, *c.PassedScreening)
	}

	traceRec := getPath(t, h, h.GetRunTraces, "/v1/runs/:run_id/traces", runID, "")
	assert.Equal(t, http.StatusOK, traceRec.Code)
	var traceResp struct {
		Count  int            `json:"count"`
		Traces []domain.Trace `json:"traces"`
	}
	assert.NoError(t, json.Unmarshal(traceRec.Body.Bytes(), &traceResp))
	assert.Equal(t, 3, traceResp.Count)
	assert.Equal(t, "plan_created", traceResp.Traces[0].Action)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	assert.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
