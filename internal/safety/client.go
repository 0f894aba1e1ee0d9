package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"helpdesk-collab/backend/internal/models"
	"helpdesk-collab/backend/pkg/logger"
	"helpdesk-collab/backend/pkg/resilience"
)

// Verdict is the classifier's judgement of a piece of ticket content.
type Verdict struct {
	IsHarmful   bool                 `json:"is_harmful"`
	Confidence  float64              `json:"confidence"`
	Reason      string               `json:"reason"`
	ContentType models.ViolationType `json:"content_type"`
}

// Classifier judges submitted content. Implementations may be remote and
// slow; callers must treat errors as "service degraded", not as a verdict.
type Classifier interface {
	Classify(ctx context.Context, title, description string) (*Verdict, error)
}

// DepartmentRouter picks the team for a safe ticket. A nil department with a
// nil error means no team matched and the ticket stays unassigned.
type DepartmentRouter interface {
	Assign(ctx context.Context, title, description string) (*models.Department, error)
}

// ServiceClient talks to the external safety service over HTTP. Both the
// classify and route calls run behind a circuit breaker so a misbehaving
// upstream degrades to the gate's fail-safe path instead of stalling every
// ticket creation.
type ServiceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	log        *logger.Logger
}

type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewServiceClient(cfg ClientConfig, log *logger.Logger) *ServiceClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ServiceClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultConfig("safety-service"), log),
		log:        log.WithComponent("safety_client"),
	}
}

type classifyRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type assignResponse struct {
	Department string `json:"department"`
}

func (c *ServiceClient) Classify(ctx context.Context, title, description string) (*Verdict, error) {
	var verdict Verdict
	err := c.breaker.Execute(func() error {
		return c.postJSON(ctx, "/v1/classify", classifyRequest{Title: title, Description: description}, &verdict)
	})
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}

func (c *ServiceClient) Assign(ctx context.Context, title, description string) (*models.Department, error) {
	var resp assignResponse
	err := c.breaker.Execute(func() error {
		return c.postJSON(ctx, "/v1/route", classifyRequest{Title: title, Description: description}, &resp)
	})
	if err != nil {
		return nil, err
	}
	if resp.Department == "" {
		return nil, nil
	}
	dep := models.Department(resp.Department)
	if !dep.IsValid() {
		c.log.Warn("Safety service returned unknown department", "department", resp.Department)
		return nil, nil
	}
	return &dep, nil
}

func (c *ServiceClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("safety service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("safety service returned status %d: %s", resp.StatusCode, string(slurp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode safety service response: %w", err)
	}
	return nil
}
