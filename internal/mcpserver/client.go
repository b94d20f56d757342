package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mbd888/churnwatch/internal/reports"
)

// Config holds the configuration for reaching the churnwatch API.
type Config struct {
	APIURL  string        // Base URL, e.g. "http://localhost:8080"
	Timeout time.Duration // per request; report generation can take a while
}

// ReportsClient is an HTTP client for the churnwatch report API.
type ReportsClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewReportsClient creates a new client.
func NewReportsClient(cfg Config) *ReportsClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &ReportsClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// get performs a GET and decodes a JSON response into out.
func (c *ReportsClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("API error (%d %s): %s", resp.StatusCode, apiErr.Error, apiErr.Message)
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GenerateReport requests the weekly report for a client.
func (c *ReportsClient) GenerateReport(ctx context.Context, clientID, weekEnding string) (*reports.ReportResponse, error) {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("week_ending", weekEnding)

	var out reports.ReportResponse
	if err := c.get(ctx, "/v1/reports/generate", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAtRisk requests the week's high-risk customers.
func (c *ReportsClient) ListAtRisk(ctx context.Context, clientID, weekEnding string, limit int) (*reports.AtRiskList, error) {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("week_ending", weekEnding)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out reports.AtRiskList
	if err := c.get(ctx, "/v1/reports/at-risk", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
