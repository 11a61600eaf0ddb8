package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// webhookRecorder captures every payload a test notifier posts.
type webhookRecorder struct {
	mu       sync.Mutex
	messages []string
	server   *httptest.Server
}

func newWebhookRecorder(t *testing.T) *webhookRecorder {
	t.Helper()
	rec := &webhookRecorder{}
	rec.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			MsgType string `json:"msgtype"`
			Text    struct {
				Content string `json:"content"`
			} `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "text", payload.MsgType)

		rec.mu.Lock()
		rec.messages = append(rec.messages, payload.Text.Content)
		rec.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(rec.server.Close)
	return rec
}

func (r *webhookRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func TestErrorSendsFirstAndEscalation(t *testing.T) {
	rec := newWebhookRecorder(t)
	n := New()

	for i := 0; i < 5; i++ {
		n.Error("width_low", rec.server.URL, "width low: 9.80mm", 3)
	}

	got := rec.all()
	require.Len(t, got, 2, "only the first occurrence and the escalation should transmit")
	require.Equal(t, "width low: 9.80mm", got[0])
	require.Contains(t, got[1], "occurred 3 times in a row")
}

func TestRecoveryOnlyWhenActive(t *testing.T) {
	rec := newWebhookRecorder(t)
	n := New()

	require.False(t, n.Recovery("width_low", rec.server.URL, "back to normal"))

	n.Error("width_low", rec.server.URL, "width low", 3)
	require.True(t, n.Recovery("width_low", rec.server.URL, "back to normal"))
	require.False(t, n.Recovery("width_low", rec.server.URL, "back to normal"),
		"second recovery must be a no-op")

	require.Equal(t, []string{"width low", "back to normal"}, rec.all())
}

func TestErrorCycleResetsAfterRecovery(t *testing.T) {
	rec := newWebhookRecorder(t)
	n := New()

	n.Error("camera_processing", rec.server.URL, "capture failed", 2)
	n.Error("camera_processing", rec.server.URL, "capture failed", 2)
	n.Recovery("camera_processing", rec.server.URL, "capture recovered")

	// A new cycle starts from count zero.
	require.True(t, n.Error("camera_processing", rec.server.URL, "capture failed", 2))
	require.Len(t, rec.all(), 4)
}

func TestCategoriesAreIndependent(t *testing.T) {
	rec := newWebhookRecorder(t)
	n := New()

	n.Error("width_low", rec.server.URL, "width low", 3)
	require.True(t, n.Error("inflate_request", rec.server.URL, "inflate failed", 2),
		"a fresh category sends its first occurrence regardless of other categories")
}

func TestRateLimitDropsExcessMessages(t *testing.T) {
	rec := newWebhookRecorder(t)
	base := time.Now()
	now := base
	n := New(WithRateLimit(5, time.Minute), WithClock(func() time.Time { return now }))

	for i := 0; i < 8; i++ {
		n.Info("system", rec.server.URL, "burst")
	}
	require.Len(t, rec.all(), 5)

	sent, dropped := n.Stats()
	require.Equal(t, uint64(5), sent)
	require.Equal(t, uint64(3), dropped)

	// Once the window slides past the burst, sends resume.
	now = base.Add(61 * time.Second)
	require.True(t, n.Info("system", rec.server.URL, "after window"))
}

func TestTruncationKeepsLimitWithEllipsis(t *testing.T) {
	rec := newWebhookRecorder(t)
	n := New()

	long := strings.Repeat("x", 400)
	require.True(t, n.Info("system", rec.server.URL, long))

	got := rec.all()
	require.Len(t, got, 1)
	require.Len(t, []rune(got[0]), 180)
	require.True(t, strings.HasSuffix(got[0], "..."))
}

func TestFailedPostDoesNotCountAgainstLimit(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := New(WithRateLimit(1, time.Minute))
	require.False(t, n.Info("system", server.URL, "first"))
	require.False(t, n.Info("system", server.URL, "second"))
	require.Equal(t, 2, calls, "a failed delivery must not consume the rate budget")
}

func TestEmptyWebhookIsSilentlySkipped(t *testing.T) {
	n := New()
	require.False(t, n.Info("system", "", "nobody listening"))
}
