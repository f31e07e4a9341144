package analysisapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bryanwahyu/logsentinel/internal/domain/analysis"
	"github.com/bryanwahyu/logsentinel/internal/metrics"
)

const (
	analyzePath  = "/api/analyze"
	maxBodyBytes = 1 << 20
)

// Client is the HTTP transport to the analysis service.
type Client struct {
	HTTP    *http.Client
	BaseURL string
}

// NewClient builds a client; timeout 0 leaves requests unbounded.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: timeout},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Endpoint returns the full analyze URL.
func (c *Client) Endpoint() string {
	return c.BaseURL + analyzePath
}

// Analyze posts {"log": ...} and returns the status and body.
// Non-2xx replies are not errors here; the body is drained and dropped.
func (c *Client) Analyze(ctx context.Context, req analysis.Request) (analysis.Reply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return analysis.Reply{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return analysis.Reply{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		metrics.ServiceDuration.WithLabelValues("unreachable").Observe(time.Since(start).Seconds())
		return analysis.Reply{}, fmt.Errorf("post %s: %w", c.Endpoint(), err)
	}
	defer resp.Body.Close()
	metrics.ServiceDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return analysis.Reply{Status: resp.StatusCode}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return analysis.Reply{}, fmt.Errorf("read response: %w", err)
	}
	if len(body) > maxBodyBytes {
		// oversized bodies are not parsed
		return analysis.Reply{Status: resp.StatusCode}, nil
	}
	return analysis.Reply{Status: resp.StatusCode, Body: body}, nil
}
