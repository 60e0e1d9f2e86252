// Package chemservice provides the HTTP client for an external structure
// service implementing validation, descriptors, transformations, and
// similarity.
package chemservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minhduc280903/molforge/internal/chem"
	"github.com/minhduc280903/molforge/internal/domain"
)

// Client is an HTTP client for the structure service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new structure service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type validateRequest struct {
	Structure string `json:"structure"`
}

type validateResponse struct {
	IsValid bool   `json:"is_valid"`
	Error   string `json:"error,omitempty"`
}

type propertiesRequest struct {
	Structure string `json:"structure"`
}

type transformRequest struct {
	Structure string `json:"structure"`
	RuleID    string `json:"rule_id"`
}

type transformResponse struct {
	Success   bool   `json:"success"`
	Structure string `json:"structure,omitempty"`
	Error     string `json:"error,omitempty"`
}

type similarityRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type similarityResponse struct {
	Similarity float64 `json:"similarity"`
	Defined    bool    `json:"defined"`
}

// Validate checks whether the token denotes a well-formed structure.
func (c *Client) Validate(ctx context.Context, structure string) (chem.ValidationResult, error) {
	var resp validateResponse
	if err := c.post(ctx, "/v1/validate", validateRequest{Structure: structure}, &resp); err != nil {
		return chem.ValidationResult{}, err
	}
	return chem.ValidationResult{IsValid: resp.IsValid, Error: resp.Error}, nil
}

// ComputeProperties computes the descriptor set for a valid structure.
func (c *Client) ComputeProperties(ctx context.Context, structure string) (domain.PropertyVector, error) {
	var props domain.PropertyVector
	if err := c.post(ctx, "/v1/properties", propertiesRequest{Structure: structure}, &props); err != nil {
		return domain.PropertyVector{}, err
	}
	return props, nil
}

// ApplyTransformation applies a catalog rule to a structure.
func (c *Client) ApplyTransformation(ctx context.Context, structure, ruleID string) (chem.TransformationResult, error) {
	var resp transformResponse
	if err := c.post(ctx, "/v1/transform", transformRequest{Structure: structure, RuleID: ruleID}, &resp); err != nil {
		return chem.TransformationResult{}, err
	}
	return chem.TransformationResult{Success: resp.Success, Structure: resp.Structure, Error: resp.Error}, nil
}

// Similarity returns a similarity coefficient in [0,1], or ok=false when it
// is undefined for the pair.
func (c *Client) Similarity(ctx context.Context, a, b string) (float64, bool, error) {
	var resp similarityResponse
	if err := c.post(ctx, "/v1/similarity", similarityRequest{A: a, B: b}, &resp); err != nil {
		return 0, false, err
	}
	return resp.Similarity, resp.Defined, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("structure service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("structure service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
