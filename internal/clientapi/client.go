// Package clientapi resolves an auth token to the client's company profile
// and report entitlements via the client-details API.
package clientapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/agustogpt/research-gateway/internal/domain"
)

// ErrClientAPIFailure covers transport errors, non-2xx statuses and
// undecodable bodies from the client-details API.
var ErrClientAPIFailure = errors.New("client api failure")

const (
	currentClientPath = "/api/current-client"
	maxBodySize       = 1 << 20
)

// Fetcher fetches the profile for a raw token.
type Fetcher interface {
	CurrentClient(ctx context.Context, token string) (domain.ClientProfile, error)
}

// Client calls the client-details API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type currentClientResponse struct {
	ID              flexString `json:"id"`
	Company         string     `json:"company"`
	Country         string     `json:"country"`
	IndustryReports []string   `json:"industryReports"`
}

// CurrentClient performs GET /api/current-client with the token as a bearer credential.
func (c *Client) CurrentClient(ctx context.Context, token string) (domain.ClientProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+currentClientPath, nil)
	if err != nil {
		return domain.ClientProfile{}, fmt.Errorf("%w: build request: %v", ErrClientAPIFailure, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ClientProfile{}, fmt.Errorf("%w: %v", ErrClientAPIFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return domain.ClientProfile{}, fmt.Errorf("%w: read body: %v", ErrClientAPIFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ClientProfile{}, &StatusError{StatusCode: resp.StatusCode}
	}

	var decoded currentClientResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return domain.ClientProfile{}, fmt.Errorf("%w: decode body: %v", ErrClientAPIFailure, err)
	}

	reports := make([]string, 0, len(decoded.IndustryReports))
	for _, r := range decoded.IndustryReports {
		if r = strings.TrimSpace(r); r != "" {
			reports = append(reports, r)
		}
	}
	return domain.ClientProfile{
		ID:              string(decoded.ID),
		Company:         decoded.Company,
		Country:         decoded.Country,
		IndustryReports: reports,
	}, nil
}

// StatusError reports a non-2xx response. It matches ErrClientAPIFailure.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client api failure: status %d", e.StatusCode)
}

// Is makes errors.Is(err, ErrClientAPIFailure) true.
func (e *StatusError) Is(target error) bool {
	return target == ErrClientAPIFailure
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = flexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexString(n.String())
	return nil
}
