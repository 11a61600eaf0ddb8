// Package notify dispatches webhook notifications with per-category
// escalation tracking and a global rolling rate limit.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ba7lgj-dev/tape-width-monitor/internal/logger"
)

const (
	defaultMaxPerWindow = 20
	defaultWindow       = 60 * time.Second
	maxMessageLength    = 180
)

type categoryState struct {
	count  int
	active bool
}

// Notifier sends text notifications to webhook channels. Repeated errors in
// one category send only the first occurrence and the escalation point;
// recoveries send only when the category was active. All sends share one
// rolling rate window; messages beyond the cap are dropped, not queued.
//
// One shared instance per process is the expected deployment, but nothing
// here is a singleton: construct and inject.
type Notifier struct {
	mu           sync.Mutex
	client       *http.Client
	maxPerWindow int
	window       time.Duration
	sentTimes    []time.Time
	categories   map[string]*categoryState
	now          func() time.Time

	sentTotal    uint64
	droppedTotal uint64
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithRateLimit overrides the rolling-window send cap.
func WithRateLimit(maxMessages int, window time.Duration) Option {
	return func(n *Notifier) {
		n.maxPerWindow = maxMessages
		n.window = window
	}
}

// WithHTTPClient overrides the webhook HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// New creates a Notifier with the default 20 messages / 60s rate limit.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		client:       &http.Client{Timeout: 5 * time.Second},
		maxPerWindow: defaultMaxPerWindow,
		window:       defaultWindow,
		categories:   make(map[string]*categoryState),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Info sends a plain informational message. Returns true iff transmitted.
func (n *Notifier) Info(category, webhook, message string) bool {
	_ = category
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sendLocked(webhook, truncate(message))
}

// Error records an error occurrence for the category and sends on the first
// occurrence and again when the count reaches escalateAfter, with escalated
// wording. Every other occurrence is suppressed.
func (n *Notifier) Error(category, webhook, message string, escalateAfter int) bool {
	message = truncate(message)

	n.mu.Lock()
	defer n.mu.Unlock()

	state, ok := n.categories[category]
	if !ok {
		state = &categoryState{}
		n.categories[category] = state
	}
	state.count++
	state.active = true

	switch {
	case state.count == 1:
		// First occurrence, send as-is.
	case escalateAfter > 0 && state.count == escalateAfter:
		message = fmt.Sprintf("%s (occurred %d times in a row, needs attention)", message, state.count)
	default:
		return false
	}

	return n.sendLocked(webhook, message)
}

// Recovery sends a recovery message iff the category is currently active, and
// resets the category. Calling it on an inactive category is a no-op.
func (n *Notifier) Recovery(category, webhook, message string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	state, ok := n.categories[category]
	if !ok || !state.active {
		return false
	}
	state.count = 0
	state.active = false

	return n.sendLocked(webhook, truncate(message))
}

// Stats returns the totals of transmitted and rate-limit-dropped messages.
func (n *Notifier) Stats() (sent, dropped uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sentTotal, n.droppedTotal
}

type textPayload struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

// sendLocked performs the rate check and the webhook POST. The caller holds
// the lock; sends are infrequent enough that holding it across the request
// does not matter, and it keeps the counter and queue mutations atomic.
func (n *Notifier) sendLocked(webhook, message string) bool {
	if webhook == "" || message == "" {
		return false
	}

	now := n.now()
	for len(n.sentTimes) > 0 && now.Sub(n.sentTimes[0]) > n.window {
		n.sentTimes = n.sentTimes[1:]
	}
	if len(n.sentTimes) >= n.maxPerWindow {
		n.droppedTotal++
		logger.Warn("Notify", "rate limit reached, message dropped")
		return false
	}

	var payload textPayload
	payload.MsgType = "text"
	payload.Text.Content = message
	body, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	resp, err := n.client.Post(webhook, "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Warn("Notify", "webhook post failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		logger.Warn("Notify", "webhook returned status %d", resp.StatusCode)
		return false
	}

	n.sentTimes = append(n.sentTimes, now)
	n.sentTotal++
	return true
}

// truncate limits a message to the webhook's text length, keeping a trailing
// ellipsis marker when it was cut.
func truncate(message string) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if len(runes) <= maxMessageLength {
		return message
	}
	return string(runes[:maxMessageLength-3]) + "..."
}
