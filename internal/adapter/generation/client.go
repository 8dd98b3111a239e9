// Package generation provides an HTTP client for the text generation service.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/chatrelay/internal/adapter/otel"
	"github.com/Strob0t/chatrelay/internal/port/generator"
	"github.com/Strob0t/chatrelay/internal/resilience"
)

const maxErrorBody = 512

// Client calls POST {baseURL}/generate.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a generation client. timeout bounds a whole call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otel.Transport(nil),
		},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing HTTP calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type generateResponse struct {
	Prediction string `json:"prediction"`
}

// Generate sends the prompt and returns the raw prediction text. A
// response without a prediction field yields an empty string.
func (c *Client) Generate(ctx context.Context, req generator.Request) (string, error) {
	ctx, span := otel.StartGenerationSpan(ctx, c.baseURL)

	body, err := json.Marshal(req)
	if err != nil {
		otel.EndSpan(span, err)
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/generate", body)
	if err != nil {
		otel.EndSpan(span, err)
		return "", fmt.Errorf("generate: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		otel.EndSpan(span, err)
		return "", fmt.Errorf("unmarshal generate response: %w", err)
	}
	otel.EndSpan(span, nil)
	return out.Prediction, nil
}

// Health reports whether the generation service answers at all.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("generation service status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("generation service error %d: %s", resp.StatusCode, truncate(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

var _ generator.Generator = (*Client)(nil)
