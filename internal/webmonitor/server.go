// Package webmonitor serves the operator surface: the live overlay stream,
// the status feed, and the control endpoints for calibration, monitoring,
// and the manual inflate action.
package webmonitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ba7lgj-dev/tape-width-monitor/internal/config"
	"github.com/ba7lgj-dev/tape-width-monitor/internal/watch"
)

// App is the application surface the HTTP layer drives. The server stays
// dumb: request parsing and response shaping here, semantics in the app.
type App interface {
	SessionStatus() watch.Status
	PipelineStats() map[string]any
	StartMonitoring(thresholdMM float64) error
	StopMonitoring()
	Calibrate(knownLengthMM float64) (float64, error)
	TriggerInflate() error
	Settings() config.Settings
	UpdateSettings(apply func(*config.Settings) error) (config.Settings, error)
}

// Server serves the web monitor endpoints.
type Server struct {
	cfg         Config
	app         App
	broadcaster *FrameBroadcaster
}

// NewServer returns a configured monitor server.
func NewServer(cfg Config, app App, broadcaster *FrameBroadcaster) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultConfig().StatusInterval
	}
	return &Server{cfg: cfg, app: app, broadcaster: broadcaster}
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/api/monitor/start", s.handleMonitorStart)
	mux.HandleFunc("/api/monitor/stop", s.handleMonitorStop)
	mux.HandleFunc("/api/calibrate", s.handleCalibrate)
	mux.HandleFunc("/api/inflate", s.handleInflate)
	mux.HandleFunc("/api/settings", s.handleSettings)
	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, frameCh := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)
	streamMJPEGFromChannel(w, frameCh)
}

func (s *Server) statusPayload() map[string]any {
	return map[string]any{
		"session":   s.app.SessionStatus(),
		"pipeline":  s.app.PipelineStats(),
		"timestamp": float64(time.Now().Unix()),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.statusPayload())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(s.cfg.StatusInterval)
	defer ticker.Stop()

	for {
		if err := writeSSE(w, s.statusPayload()); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ThresholdMM float64 `json:"threshold_mm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "invalid request body"}, http.StatusBadRequest)
		return
	}

	if err := s.app.StartMonitoring(req.ThresholdMM); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, watch.ErrNotCalibrated) {
			status = http.StatusConflict
		}
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, status)
		return
	}

	writeJSON(w, map[string]any{
		"message":      fmt.Sprintf("monitoring started at %.2fmm", req.ThresholdMM),
		"threshold_mm": req.ThresholdMM,
	})
}

func (s *Server) handleMonitorStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.app.StopMonitoring()
	writeJSON(w, map[string]any{"message": "monitoring stopped"})
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		KnownLengthMM float64 `json:"known_length_mm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "invalid request body"}, http.StatusBadRequest)
		return
	}

	rate, err := s.app.Calibrate(req.KnownLengthMM)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{
		"message": fmt.Sprintf("calibrated: %.4f mm/px", rate),
		"rate":    rate,
	})
}

func (s *Server) handleInflate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.app.TriggerInflate(); err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"message": "inflate requested"})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.app.Settings())

	case http.MethodPost:
		var req struct {
			CameraHost      *string  `json:"camera_host"`
			InflatorHost    *string  `json:"inflator_host"`
			InflateDuration *float64 `json:"inflate_duration_seconds"`
			PostInflateWait *int     `json:"post_inflate_wait_seconds"`
			LineRatio       *float64 `json:"detection_line_ratio"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONWithStatus(w, map[string]any{"error": "invalid request body"}, http.StatusBadRequest)
			return
		}

		updated, err := s.app.UpdateSettings(func(st *config.Settings) error {
			if req.CameraHost != nil {
				st.CameraHost = *req.CameraHost
			}
			if req.InflatorHost != nil {
				st.InflatorHost = *req.InflatorHost
			}
			if req.InflateDuration != nil {
				if !config.ValidDuration(*req.InflateDuration) {
					return errors.New("inflate_duration_seconds must be a positive number")
				}
				st.InflateDuration = *req.InflateDuration
			}
			if req.PostInflateWait != nil {
				if *req.PostInflateWait < 0 {
					return errors.New("post_inflate_wait_seconds must not be negative")
				}
				st.PostInflateWait = *req.PostInflateWait
			}
			if req.LineRatio != nil {
				st.LineRatio = config.ClampRatio(*req.LineRatio)
			}
			return nil
		})
		if err != nil {
			writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
			return
		}
		writeJSON(w, updated)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
