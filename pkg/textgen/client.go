package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/johnquangdev/meeting-colleague/pkg/config"
)

// ErrNotConfigured is returned when no endpoint is set; callers take their fallback path
var ErrNotConfigured = errors.New("text generation endpoint not configured")

// StatusError is a non-2xx answer from the backend
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("textgen %s returned status %d: %s", e.Path, e.Status, e.Body)
}

// Client calls the text-generation backend
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a client from cfg. A nil cfg or empty endpoint yields an unconfigured client.
func NewClient(cfg *config.TextGenConfig) *Client {
	c := &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	if cfg == nil {
		return c
	}

	c.endpoint = strings.TrimRight(cfg.Endpoint, "/")
	c.apiKey = cfg.APIKey
	if cfg.Timeout > 0 {
		c.client.Timeout = cfg.Timeout
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return c
}

// Configured reports whether an endpoint is set
func (c *Client) Configured() bool {
	return c.endpoint != ""
}

// post sends body as JSON to path and decodes the answer into out
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("textgen rate limit: %w", err)
	}

	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if err := json.Unmarshal([]byte(extractJSON(string(raw))), out); err != nil {
		return fmt.Errorf("decode textgen %s response: %w", path, err)
	}
	return nil
}

// extractJSON strips a markdown code fence around a JSON document
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
	}

	return strings.TrimSpace(content)
}
