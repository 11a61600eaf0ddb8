// Package actuator triggers the inflate valve controller over HTTP.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// ErrNoAddress is returned when no inflator base URL is configured.
var ErrNoAddress = errors.New("inflator address is not configured")

// Client sends inflate requests to the valve controller.
type Client struct {
	http *http.Client
}

// New creates an actuator client. The request timeout bounds how long a
// trigger may stay outstanding.
func New() *Client {
	return &Client{http: &http.Client{Timeout: 10 * time.Second}}
}

// NewWithHTTPClient creates an actuator client with a custom HTTP client.
func NewWithHTTPClient(hc *http.Client) *Client {
	return &Client{http: hc}
}

// Inflate opens the valve on pin D1 for the given duration.
// Non-2xx responses and transport failures are errors; the caller decides
// whether to retry on a later debounce trip.
func (c *Client) Inflate(ctx context.Context, baseURL string, duration time.Duration) error {
	if baseURL == "" {
		return ErrNoAddress
	}

	ms := int(math.Round(duration.Seconds() * 1000))
	if ms < 1 {
		ms = 1
	}
	url := fmt.Sprintf("%s/control?pin=D1&duration=%d", baseURL, ms)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("inflate request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("inflate returned status %d", resp.StatusCode)
	}
	return nil
}
