package webmonitor

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ba7lgj-dev/tape-width-monitor/internal/config"
	"github.com/ba7lgj-dev/tape-width-monitor/internal/watch"
)

// stubApp implements App with canned responses and call recording.
type stubApp struct {
	status       watch.Status
	startErr     error
	calibrateErr error
	inflateErr   error
	settings     config.Settings

	startedWith   float64
	stopped       bool
	calibratedMM  float64
	inflateCalled bool
}

func (a *stubApp) SessionStatus() watch.Status   { return a.status }
func (a *stubApp) PipelineStats() map[string]any { return map[string]any{"frames_fetched": 7} }
func (a *stubApp) StopMonitoring()               { a.stopped = true }
func (a *stubApp) Settings() config.Settings     { return a.settings }

func (a *stubApp) StartMonitoring(thresholdMM float64) error {
	if a.startErr != nil {
		return a.startErr
	}
	a.startedWith = thresholdMM
	return nil
}

func (a *stubApp) Calibrate(knownLengthMM float64) (float64, error) {
	if a.calibrateErr != nil {
		return 0, a.calibrateErr
	}
	a.calibratedMM = knownLengthMM
	return 0.5, nil
}

func (a *stubApp) TriggerInflate() error {
	if a.inflateErr != nil {
		return a.inflateErr
	}
	a.inflateCalled = true
	return nil
}

func (a *stubApp) UpdateSettings(apply func(*config.Settings) error) (config.Settings, error) {
	next := a.settings
	if err := apply(&next); err != nil {
		return config.Settings{}, err
	}
	a.settings = next
	return next, nil
}

func newTestServer(app *stubApp) *Server {
	return NewServer(DefaultConfig(), app, NewFrameBroadcaster())
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response is not JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return rec, payload
}

func TestIndexServesHTML(t *testing.T) {
	srv := newTestServer(&stubApp{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "Tape Width Monitor") {
		t.Fatal("index page missing title")
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	srv := newTestServer(&stubApp{})
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStatusPayloadShape(t *testing.T) {
	app := &stubApp{status: watch.Status{State: watch.StateArmed, Threshold: 12}}
	srv := newTestServer(app)

	rec, payload := doJSON(t, srv.Handler(), http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	session, ok := payload["session"].(map[string]any)
	if !ok {
		t.Fatalf("missing session block: %v", payload)
	}
	if session["state"] != "armed" {
		t.Fatalf("unexpected state %v", session["state"])
	}
	if _, ok := payload["pipeline"]; !ok {
		t.Fatal("missing pipeline block")
	}
}

func TestMonitorStart(t *testing.T) {
	app := &stubApp{}
	srv := newTestServer(app)

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/api/monitor/start", `{"threshold_mm": 12.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if app.startedWith != 12.5 {
		t.Fatalf("expected threshold 12.5, got %v", app.startedWith)
	}
}

func TestMonitorStartRejectsInvalidThreshold(t *testing.T) {
	app := &stubApp{startErr: watch.ErrInvalidThreshold}
	srv := newTestServer(app)

	rec, payload := doJSON(t, srv.Handler(), http.MethodPost, "/api/monitor/start", `{"threshold_mm": -1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if payload["error"] == "" {
		t.Fatal("expected an error message")
	}
}

func TestMonitorStartBeforeCalibrationConflicts(t *testing.T) {
	app := &stubApp{startErr: watch.ErrNotCalibrated}
	srv := newTestServer(app)

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/api/monitor/start", `{"threshold_mm": 12}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestMonitorStartRequiresPOST(t *testing.T) {
	srv := newTestServer(&stubApp{})
	req := httptest.NewRequest(http.MethodGet, "/api/monitor/start", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestMonitorStop(t *testing.T) {
	app := &stubApp{}
	srv := newTestServer(app)

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/api/monitor/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !app.stopped {
		t.Fatal("stop was not forwarded to the app")
	}
}

func TestCalibrate(t *testing.T) {
	app := &stubApp{}
	srv := newTestServer(app)

	rec, payload := doJSON(t, srv.Handler(), http.MethodPost, "/api/calibrate", `{"known_length_mm": 25}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if app.calibratedMM != 25 {
		t.Fatalf("expected known length 25, got %v", app.calibratedMM)
	}
	if payload["rate"] != 0.5 {
		t.Fatalf("expected rate 0.5, got %v", payload["rate"])
	}
}

func TestCalibrateFailure(t *testing.T) {
	app := &stubApp{calibrateErr: errors.New("no segment found")}
	srv := newTestServer(app)

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/api/calibrate", `{"known_length_mm": 25}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestInflateConflictWhileInFlight(t *testing.T) {
	app := &stubApp{inflateErr: errors.New("an inflate request is already in flight")}
	srv := newTestServer(app)

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/api/inflate", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestSettingsRoundtrip(t *testing.T) {
	app := &stubApp{settings: config.Settings{CameraHost: "cam", InflateDuration: 10, LineRatio: 0.6}}
	srv := newTestServer(app)

	rec, payload := doJSON(t, srv.Handler(), http.MethodGet, "/api/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if payload["camera_host"] != "cam" {
		t.Fatalf("unexpected settings %v", payload)
	}

	rec, payload = doJSON(t, srv.Handler(), http.MethodPost, "/api/settings",
		`{"camera_host": "newcam", "detection_line_ratio": 0.8}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if payload["camera_host"] != "newcam" {
		t.Fatalf("camera host not updated: %v", payload)
	}
	if payload["detection_line_ratio"] != 0.8 {
		t.Fatalf("line ratio not updated: %v", payload)
	}
	if app.settings.InflateDuration != 10 {
		t.Fatal("untouched fields must survive a partial update")
	}
}

func TestSettingsRejectsInvalidDuration(t *testing.T) {
	app := &stubApp{settings: config.Settings{InflateDuration: 10}}
	srv := newTestServer(app)

	rec, _ := doJSON(t, srv.Handler(), http.MethodPost, "/api/settings",
		`{"inflate_duration_seconds": -2}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if app.settings.InflateDuration != 10 {
		t.Fatal("rejected update must not mutate settings")
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&stubApp{})
	rec, payload := doJSON(t, srv.Handler(), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected health payload %v", payload)
	}
}
