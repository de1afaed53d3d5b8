package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/agustogpt/research-gateway/internal/compose"
	"github.com/agustogpt/research-gateway/internal/domain"
)

const maxResponseSize = 4 << 20

// Client is the HTTP client for the agent API.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a client that POSTs queries to url.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Query sends payload and parses the answer. Every failure, including a
// non-2xx status, matches compose.ErrAgentUnavailable. There is no retry.
func (c *Client) Query(ctx context.Context, payload domain.QueryPayload) (domain.ResponseEnvelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.ResponseEnvelope{}, fmt.Errorf("%w: encode payload: %v", compose.ErrAgentUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.ResponseEnvelope{}, fmt.Errorf("%w: build request: %v", compose.ErrAgentUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ResponseEnvelope{}, fmt.Errorf("%w: %v", compose.ErrAgentUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return domain.ResponseEnvelope{}, fmt.Errorf("%w: read body: %v", compose.ErrAgentUnavailable, err)
	}
	slog.Debug("Agent API responded",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ResponseEnvelope{}, fmt.Errorf("%w: status %d", compose.ErrAgentUnavailable, resp.StatusCode)
	}
	return compose.ParseResponse(raw)
}
