// Package config persists the operator-tunable settings and resolves
// environment overrides.
//
// Settings are stored as newline-delimited text, one value per line, in the
// order: camera host, inflator host, inflate duration (s), post-inflate wait
// (s), detection line ratio. Missing or malformed lines fall back to defaults
// so an old or hand-edited file still loads.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const (
	DefaultInflateDuration = 10.0
	DefaultPostInflateWait = 5
	DefaultLineRatio       = 0.6
)

// Settings holds the five persisted scalar fields plus the webhook addresses
// resolved from the environment.
type Settings struct {
	CameraHost      string  `json:"camera_host"`
	InflatorHost    string  `json:"inflator_host"`
	InflateDuration float64 `json:"inflate_duration_seconds"`
	PostInflateWait int     `json:"post_inflate_wait_seconds"`
	LineRatio       float64 `json:"detection_line_ratio"`

	AlertWebhook string `json:"-"`
	OpsWebhook   string `json:"-"`
}

// Defaults returns a Settings with every field at its documented default.
func Defaults() Settings {
	return Settings{
		InflateDuration: DefaultInflateDuration,
		PostInflateWait: DefaultPostInflateWait,
		LineRatio:       DefaultLineRatio,
	}
}

// CameraURL returns the camera base URL with an http prefix.
func (s Settings) CameraURL() string { return ensureHTTPPrefix(s.CameraHost) }

// InflatorURL returns the inflator base URL with an http prefix.
func (s Settings) InflatorURL() string { return ensureHTTPPrefix(s.InflatorHost) }

func ensureHTTPPrefix(host string) string {
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}

// ClampRatio coerces a detection line ratio into [0, 1], mapping NaN to the
// default.
func ClampRatio(ratio float64) float64 {
	if math.IsNaN(ratio) {
		return DefaultLineRatio
	}
	return math.Max(0, math.Min(1, ratio))
}

// ValidDuration reports whether a value is usable as the inflate duration.
func ValidDuration(seconds float64) bool {
	return !math.IsNaN(seconds) && !math.IsInf(seconds, 0) && seconds > 0
}

// Store owns the settings file and serializes access to it.
type Store struct {
	mu       sync.Mutex
	path     string
	settings Settings
}

// NewStore loads settings from path, applying environment overrides.
// A missing file is not an error; defaults are used.
func NewStore(path string) (*Store, error) {
	// .env is optional, same as plain environment variables.
	_ = godotenv.Load()

	st := &Store{path: path, settings: Defaults()}
	if err := st.loadFile(); err != nil {
		return nil, err
	}
	st.applyEnv()
	return st, nil
}

func (st *Store) loadFile() error {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read settings: %w", err)
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	s := &st.settings
	if len(lines) > 0 {
		s.CameraHost = strings.TrimSpace(lines[0])
	}
	if len(lines) > 1 {
		s.InflatorHost = strings.TrimSpace(lines[1])
	}
	if len(lines) > 2 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(lines[2]), 64); err == nil && ValidDuration(v) {
			s.InflateDuration = v
		}
	}
	if len(lines) > 3 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(lines[3]), 64); err == nil && v >= 0 {
			s.PostInflateWait = int(v)
		}
	}
	if len(lines) > 4 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(lines[4]), 64); err == nil {
			s.LineRatio = ClampRatio(v)
		}
	}
	return nil
}

func (st *Store) applyEnv() {
	s := &st.settings
	if v := os.Getenv("TAPEMON_CAMERA_HOST"); v != "" {
		s.CameraHost = v
	}
	if v := os.Getenv("TAPEMON_INFLATOR_HOST"); v != "" {
		s.InflatorHost = v
	}
	s.AlertWebhook = os.Getenv("TAPEMON_ALERT_WEBHOOK")
	s.OpsWebhook = os.Getenv("TAPEMON_OPS_WEBHOOK")
}

// Get returns a copy of the current settings.
func (st *Store) Get() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.settings
}

// Update applies fn to a copy of the settings under the lock, then persists
// the result. A rejected update leaves both the in-memory settings and the
// file untouched.
func (st *Store) Update(fn func(*Settings) error) (Settings, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.settings
	if err := fn(&next); err != nil {
		return st.settings, err
	}
	st.settings = next
	if err := st.saveLocked(); err != nil {
		return st.settings, err
	}
	return st.settings, nil
}

func (st *Store) saveLocked() error {
	s := st.settings
	lines := []string{
		s.CameraHost,
		s.InflatorHost,
		strconv.FormatFloat(s.InflateDuration, 'f', -1, 64),
		strconv.Itoa(s.PostInflateWait),
		strconv.FormatFloat(s.LineRatio, 'f', 3, 64),
	}
	data := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(st.path, []byte(data), 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
