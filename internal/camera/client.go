// Package camera talks to the ESP32 camera over HTTP.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ba7lgj-dev/tape-width-monitor/internal/logger"
)

// ErrNoAddress is returned when no camera base URL is configured.
var ErrNoAddress = errors.New("camera address is not configured")

// TransportError wraps a network or HTTP failure after retries are exhausted.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("camera fetch failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client fetches frames from the camera. The base URL can change at runtime
// when the operator reconfigures the camera host.
type Client struct {
	mu         sync.RWMutex
	baseURL    string
	http       *http.Client
	maxRetries int
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithRetries overrides the retry count and delay for transient errors.
func WithRetries(count int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = count
		c.retryDelay = delay
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a camera client for the given base URL (may be empty until
// the operator configures one).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		http:       &http.Client{Timeout: 5 * time.Second},
		maxRetries: 10,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetBaseURL updates the camera base URL.
func (c *Client) SetBaseURL(url string) {
	c.mu.Lock()
	c.baseURL = url
	c.mu.Unlock()
}

// BaseURL returns the current camera base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// Fetch retrieves one JPEG frame from <base>/capture. Transient transport
// errors are retried with a fixed delay up to the configured retry count
// before a TransportError is surfaced.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	base := c.BaseURL()
	if base == "" {
		return nil, ErrNoAddress
	}

	url := base + "/capture"
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Camera", "fetch retry %d/%d: %v", attempt, c.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		data, err := c.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, &TransportError{Attempts: c.maxRetries + 1, Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("capture returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read capture body: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("capture returned empty body")
	}
	return data, nil
}

// initSettings are applied once when a camera is (re)connected.
// framesize 13 selects the camera's widest supported resolution.
var initSettings = map[string]string{
	"framesize": "/control?var=framesize&val=13",
}

// Init applies the predefined camera settings and returns the HTTP status
// per setting name. A failed request is reported as "request failed".
func (c *Client) Init(ctx context.Context) map[string]string {
	base := c.BaseURL()
	results := make(map[string]string, len(initSettings))
	if base == "" {
		return results
	}

	for name, path := range initSettings {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		if err != nil {
			results[name] = "request failed"
			continue
		}
		resp, err := c.http.Do(req)
		if err != nil {
			results[name] = "request failed"
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		results[name] = fmt.Sprintf("%d", resp.StatusCode)
	}
	return results
}
