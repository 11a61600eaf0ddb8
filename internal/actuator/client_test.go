package actuator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInflateRequestShape(t *testing.T) {
	var path, query string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		query = r.URL.RawQuery
	}))
	defer server.Close()

	c := New()
	require.NoError(t, c.Inflate(context.Background(), server.URL, 10*time.Second))
	require.Equal(t, "/control", path)
	require.Equal(t, "pin=D1&duration=10000", query)
}

func TestInflateDurationConversion(t *testing.T) {
	cases := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"sub-second", 1500 * time.Millisecond, "1500"},
		{"rounded", 2499500 * time.Microsecond, "2500"},
		{"zero floors to one", 0, "1"},
		{"negative floors to one", -5 * time.Second, "1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.URL.Query().Get("duration")
			}))
			defer server.Close()

			require.NoError(t, New().Inflate(context.Background(), server.URL, tc.duration))
			require.Equal(t, tc.want, got)
		})
	}
}

func TestInflateNon2xxIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := New().Inflate(context.Background(), server.URL, time.Second)
	require.ErrorContains(t, err, "status 502")
}

func TestInflateWithoutAddress(t *testing.T) {
	err := New().Inflate(context.Background(), "", time.Second)
	require.ErrorIs(t, err, ErrNoAddress)
}
