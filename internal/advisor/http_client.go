package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxResponseBodySize caps how much of a response body is decoded (4MB).
const maxResponseBodySize = 4 << 20

// HTTPClient talks to the advisory service's JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// HTTPClientConfig holds configuration for the HTTP client.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultHTTPClientConfig returns default configuration.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		BaseURL: "http://localhost:5001",
		Timeout: 60 * time.Second,
	}
}

// NewHTTPClient creates a client for the advisory service at cfg.BaseURL.
func NewHTTPClient(cfg HTTPClientConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultHTTPClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type initRequest struct {
	SessionID string `json:"sessionId"`
}

type setContextRequest struct {
	SessionID string `json:"sessionId"`
	ContextData
}

type validateRequest struct {
	Concentration string `json:"concentration"`
}

type validateResponse struct {
	ProperName string `json:"proper_name"`
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// InitSession calls POST /api/init.
func (c *HTTPClient) InitSession(ctx context.Context, sessionID string) error {
	c.logger.Debug("Initializing advisor session", "session_id", sessionID)
	if err := c.post(ctx, "/api/init", initRequest{SessionID: sessionID}, nil); err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	return nil
}

// SetContext calls POST /api/set-context.
func (c *HTTPClient) SetContext(ctx context.Context, sessionID string, data ContextData) error {
	c.logger.Debug("Setting advisor context",
		"session_id", sessionID,
		"concentration", data.Concentration,
		"grade_level", data.GradeLevel,
		"semester", data.Semester,
	)
	if err := c.post(ctx, "/api/set-context", setContextRequest{SessionID: sessionID, ContextData: data}, nil); err != nil {
		return fmt.Errorf("set context: %w", err)
	}
	return nil
}

// ValidateConcentration calls POST /api/validate-concentration.
// An empty proper_name is returned as the raw input.
func (c *HTTPClient) ValidateConcentration(ctx context.Context, raw string) (string, error) {
	var resp validateResponse
	if err := c.post(ctx, "/api/validate-concentration", validateRequest{Concentration: raw}, &resp); err != nil {
		return "", fmt.Errorf("validate concentration: %w", err)
	}
	if resp.ProperName == "" {
		return raw, nil
	}
	return resp.ProperName, nil
}

// Answer calls POST /api/chat.
func (c *HTTPClient) Answer(ctx context.Context, sessionID, query string) (Answer, error) {
	var resp Answer
	if err := c.post(ctx, "/api/chat", chatRequest{SessionID: sessionID, Message: query}, &resp); err != nil {
		return Answer{}, fmt.Errorf("chat: %w", err)
	}
	return resp, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close advisor response body", "path", path, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("Advisor request failed",
			"path", path,
			"status", resp.StatusCode,
			"body", strings.TrimSpace(string(detail)),
		)
		return statusError(path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
