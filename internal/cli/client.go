package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/xsteal/internal/domain/types"
)

// apiClient talks to a running xsteal server.
type apiClient struct {
	baseURL string
	client  *http.Client
}

// apiError is the server's error body.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// do sends body as JSON and decodes a 2xx response into v. It returns the status code.
func (c *apiClient) do(ctx context.Context, method, path string, body, v any) (int, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return resp.StatusCode, apiErr
	}
	if v != nil && len(data) > 0 {
		if err := json.Unmarshal(data, v); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *apiClient) health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err
}

func (c *apiClient) createSession(ctx context.Context, variant string) (types.Session, error) {
	var s types.Session
	_, err := c.do(ctx, http.MethodPost, "/sessions", map[string]string{"variant": variant}, &s)
	return s, err
}

func (c *apiClient) session(ctx context.Context, id string) (types.Session, error) {
	var s types.Session
	_, err := c.do(ctx, http.MethodGet, "/sessions/"+id, nil, &s)
	return s, err
}

func (c *apiClient) attempts(ctx context.Context, id string) ([]types.Attempt, error) {
	var as []types.Attempt
	_, err := c.do(ctx, http.MethodGet, "/sessions/"+id+"/attempts?order=recent", nil, &as)
	return as, err
}

// attemptRequest mirrors the POST /sessions/{id}/attempts body.
type attemptRequest struct {
	AttemptID     string             `json:"attempt_id"`
	Metrics       map[string]float64 `json:"metrics"`
	WasSuccessful bool               `json:"was_successful"`
}

func (c *apiClient) recordAttempt(ctx context.Context, sessionID string, a attemptRequest) (types.AttemptResult, int, error) {
	var res types.AttemptResult
	status, err := c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/attempts", a, &res)
	return res, status, err
}
