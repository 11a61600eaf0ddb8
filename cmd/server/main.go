package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ba7lgj-dev/tape-width-monitor/internal/actuator"
	"github.com/ba7lgj-dev/tape-width-monitor/internal/camera"
	"github.com/ba7lgj-dev/tape-width-monitor/internal/config"
	"github.com/ba7lgj-dev/tape-width-monitor/internal/logger"
	"github.com/ba7lgj-dev/tape-width-monitor/internal/metrics"
	"github.com/ba7lgj-dev/tape-width-monitor/internal/notify"
	"github.com/ba7lgj-dev/tape-width-monitor/internal/vision"
	"github.com/ba7lgj-dev/tape-width-monitor/internal/watch"
	"github.com/ba7lgj-dev/tape-width-monitor/internal/webmonitor"
)

var (
	// Command-line flags
	httpAddr    = flag.String("http", ":8080", "HTTP server address")
	metricsAddr = flag.String("metrics", ":9090", "Metrics server address")
	pprofAddr   = flag.String("pprof", ":6060", "pprof server address")
	configPath  = flag.String("config", "config.txt", "Settings file path")
	interval    = flag.Duration("interval", 500*time.Millisecond, "Capture interval")
	logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor    = flag.Bool("log-color", true, "Enable colored log output")
)

// capturedFrame carries one camera frame through the pipeline.
type capturedFrame struct {
	data       []byte
	num        uint64
	capturedAt time.Time
}

// Server wires the capture loop, measurement pipeline, monitoring session,
// and the operator web surface together.
type Server struct {
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	metrics    *metrics.Metrics
	store      *config.Store
	camera     *camera.Client
	actuator   *actuator.Client
	notifier   *notify.Notifier
	monitor    *watch.Monitor
	frames     *webmonitor.FrameBroadcaster
	httpServer *http.Server

	frameChan chan *capturedFrame

	mu            sync.Mutex
	frameNum      uint64
	lastFrame     []byte
	cameraFailing bool
	measureFail   bool
}

func main() {
	flag.Parse()

	// Initialize logger
	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	logger.Info("Main", "Tape width monitor starting...")
	logger.Info("Main", "Log level: %s", level)

	srv, err := NewServer()
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")

	if err := srv.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// NewServer creates the monitor server from flags and the settings file.
func NewServer() (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	store, err := config.NewStore(*configPath)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	settings := store.Get()

	m := metrics.New()
	notifier := notify.New()
	act := actuator.New()

	cam := camera.New(settings.CameraURL())

	srv := &Server{
		ctx:       ctx,
		cancel:    cancel,
		metrics:   m,
		store:     store,
		camera:    cam,
		actuator:  act,
		notifier:  notifier,
		frames:    webmonitor.NewFrameBroadcaster(),
		frameChan: make(chan *capturedFrame, 4),
	}

	srv.monitor = watch.New(watch.Config{
		SettleDelay: func() time.Duration {
			return time.Duration(srv.store.Get().PostInflateWait) * time.Second
		},
		AlertWebhook: settings.AlertWebhook,
		OpsWebhook:   settings.OpsWebhook,
	}, notifier, srv.requestInflate)

	web := webmonitor.NewServer(webmonitor.Config{Addr: *httpAddr}, srv, srv.frames)
	srv.httpServer = &http.Server{
		Addr:    *httpAddr,
		Handler: web.Handler(),
	}

	return srv, nil
}

// Start starts all server components.
func (s *Server) Start() error {
	settings := s.store.Get()
	log.Printf("Starting tape width monitor...")
	log.Printf("  Camera: %s", settings.CameraURL())
	log.Printf("  Inflator: %s", settings.InflatorURL())
	log.Printf("  HTTP server: %s", *httpAddr)
	log.Printf("  Metrics server: %s", *metricsAddr)
	log.Printf("  pprof server: %s", *pprofAddr)
	log.Printf("  Capture interval: %s", *interval)

	// Start pprof server
	go func() {
		log.Printf("Starting pprof server on %s", *pprofAddr)
		if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
			log.Printf("pprof server error: %v", err)
		}
	}()

	// Start metrics server
	go func() {
		log.Printf("Starting metrics server on %s", *metricsAddr)
		if err := s.metrics.StartServer(*metricsAddr); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// Start HTTP server
	go func() {
		log.Printf("Starting HTTP server on %s", *httpAddr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Push camera settings; failures are non-fatal, capture retries cover it
	if settings.CameraHost != "" {
		initCtx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		for key, result := range s.camera.Init(initCtx) {
			logger.Info("Main", "Camera init %s: %s", key, result)
		}
		cancel()
	}

	s.wg.Add(2)
	go s.captureFrames()
	go s.measureFrames()

	s.notifier.Info("system", settings.OpsWebhook, "tape width monitor started")
	log.Println("Server started successfully")
	return nil
}

// captureFrames polls the camera on the capture interval and hands frames
// to the measurement worker.
func (s *Server) captureFrames() {
	defer s.wg.Done()

	logger.Info("Capture", "Starting frame capture (interval=%s)", *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			data, err := s.camera.Fetch(s.ctx)
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.metrics.FetchErrors.Add(1)
				logger.Warn("Capture", "Fetch error: %v", err)
				s.reportCameraError(fmt.Sprintf("camera capture failed: %v", err))
				continue
			}

			s.metrics.FramesFetched.Add(1)
			s.metrics.UpdateFetchLatency(time.Since(start))
			s.reportCameraRecovered()

			s.mu.Lock()
			s.frameNum++
			num := s.frameNum
			s.lastFrame = data
			s.mu.Unlock()

			// Send to measurement worker (non-blocking)
			select {
			case s.frameChan <- &capturedFrame{data: data, num: num, capturedAt: start}:
			default:
				s.metrics.FramesDropped.Add(1)
			}
		}
	}
}

// measureFrames runs the measurement pipeline on captured frames, feeds the
// monitoring session, and publishes overlay frames to stream clients.
func (s *Server) measureFrames() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case frame := <-s.frameChan:
			start := time.Now()

			m, err := vision.Measure(frame.data, s.store.Get().LineRatio)
			if err != nil {
				s.metrics.MeasureErrors.Add(1)
				logger.Warn("Measure", "Frame %d: %v", frame.num, err)
				s.reportMeasureError(fmt.Sprintf("frame processing failed: %v", err))
				continue
			}
			s.metrics.UpdateMeasureLatency(time.Since(start))
			s.reportMeasureRecovered()

			m.FrameNum = frame.num
			m.CapturedAt = frame.capturedAt

			if m.Found() {
				s.metrics.MeasurementsOK.Add(1)
				s.monitor.RecordPixels(m.PixelLength)

				if rate := s.monitor.Rate(); rate > 0 {
					m.WidthMM = float64(m.PixelLength) * rate
					s.metrics.RecordWidth(m.WidthMM, m.PixelLength)
					s.feedMonitor(m.WidthMM)
					if st := s.monitor.Status(); st.State == watch.StateAlerting || st.State == watch.StateActionTriggered {
						s.metrics.AlertCycles.Add(1)
					}
				} else {
					s.metrics.RecordWidth(0, m.PixelLength)
				}
			} else {
				s.metrics.MeasureMisses.Add(1)
				logger.Debug("Measure", "Frame %d: %s", frame.num, m.Status)
			}

			s.frames.Publish(m.Overlay)

			sent, dropped := s.notifier.Stats()
			s.metrics.NotificationsSent.Store(sent)
			s.metrics.NotificationsDropped.Store(dropped)
		}
	}
}

// feedMonitor hands one width reading to the monitoring session. A panic in
// the monitoring path must not take the capture pipeline down with it.
func (s *Server) feedMonitor(widthMM float64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Measure", "Monitoring panic: %v", r)
			s.notifier.Error("monitoring_unknown", s.store.Get().OpsWebhook,
				fmt.Sprintf("monitoring failure: %v", r), 2)
		}
	}()
	s.monitor.HandleMeasurement(widthMM)
}

func (s *Server) reportCameraError(msg string) {
	s.mu.Lock()
	s.cameraFailing = true
	s.mu.Unlock()
	s.notifier.Error("camera_processing", s.store.Get().OpsWebhook, msg, 2)
}

func (s *Server) reportCameraRecovered() {
	s.mu.Lock()
	failing := s.cameraFailing
	s.cameraFailing = false
	s.mu.Unlock()
	if failing {
		s.notifier.Recovery("camera_processing", s.store.Get().OpsWebhook, "camera capture back to normal")
	}
}

func (s *Server) reportMeasureError(msg string) {
	s.mu.Lock()
	s.measureFail = true
	s.mu.Unlock()
	s.notifier.Error("camera_processing", s.store.Get().OpsWebhook, msg, 2)
}

func (s *Server) reportMeasureRecovered() {
	s.mu.Lock()
	failing := s.measureFail
	s.measureFail = false
	s.mu.Unlock()
	if failing {
		s.notifier.Recovery("camera_processing", s.store.Get().OpsWebhook, "frame processing back to normal")
	}
}

// requestInflate is the corrective action bound into the monitoring session.
// Settings are read at call time so operators can retarget the inflator
// without re-arming the session.
func (s *Server) requestInflate(ctx context.Context) error {
	settings := s.store.Get()
	duration := time.Duration(settings.InflateDuration * float64(time.Second))

	s.metrics.InflateRequests.Add(1)
	if err := s.actuator.Inflate(ctx, settings.InflatorURL(), duration); err != nil {
		s.metrics.InflateErrors.Add(1)
		return err
	}
	return nil
}

// SessionStatus implements webmonitor.App.
func (s *Server) SessionStatus() watch.Status {
	return s.monitor.Status()
}

// PipelineStats implements webmonitor.App.
func (s *Server) PipelineStats() map[string]any {
	return map[string]any{
		"frames_fetched":   s.metrics.FramesFetched.Load(),
		"fetch_errors":     s.metrics.FetchErrors.Load(),
		"frames_dropped":   s.metrics.FramesDropped.Load(),
		"measurements_ok":  s.metrics.MeasurementsOK.Load(),
		"measure_misses":   s.metrics.MeasureMisses.Load(),
		"measure_errors":   s.metrics.MeasureErrors.Load(),
		"inflate_requests": s.metrics.InflateRequests.Load(),
		"inflate_errors":   s.metrics.InflateErrors.Load(),
		"stream_clients":   s.frames.ClientCount(),
	}
}

// StartMonitoring implements webmonitor.App.
func (s *Server) StartMonitoring(thresholdMM float64) error {
	return s.monitor.Enable(thresholdMM)
}

// StopMonitoring implements webmonitor.App.
func (s *Server) StopMonitoring() {
	s.monitor.Disable()
}

// Calibrate implements webmonitor.App. It measures the most recent frame and
// derives the physical length of one pixel from the operator-entered length.
func (s *Server) Calibrate(knownLengthMM float64) (float64, error) {
	if knownLengthMM <= 0 {
		return 0, errors.New("known length must be a positive number")
	}

	s.mu.Lock()
	data := s.lastFrame
	s.mu.Unlock()
	if data == nil {
		return 0, errors.New("no camera frame available yet")
	}

	m, err := vision.Measure(data, s.store.Get().LineRatio)
	if err != nil {
		return 0, fmt.Errorf("calibration measurement failed: %w", err)
	}
	if !m.Found() {
		return 0, errors.New("no segment found on the scan row, adjust the camera or line ratio")
	}

	rate := knownLengthMM / float64(m.PixelLength)
	if err := s.monitor.SetRate(rate); err != nil {
		return 0, err
	}
	logger.Info("Main", "Calibrated: %d px = %.2f mm (%.4f mm/px)", m.PixelLength, knownLengthMM, rate)
	return rate, nil
}

// TriggerInflate implements webmonitor.App.
func (s *Server) TriggerInflate() error {
	return s.monitor.TriggerManual()
}

// Settings implements webmonitor.App.
func (s *Server) Settings() config.Settings {
	return s.store.Get()
}

// UpdateSettings implements webmonitor.App. The camera base URL follows a
// camera host change immediately.
func (s *Server) UpdateSettings(apply func(*config.Settings) error) (config.Settings, error) {
	updated, err := s.store.Update(apply)
	if err != nil {
		return config.Settings{}, err
	}
	s.camera.SetBaseURL(updated.CameraURL())
	return updated, nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.notifier.Info("system", s.store.Get().OpsWebhook, "tape width monitor stopping")

	// Cancel context to stop workers
	s.cancel()
	s.wg.Wait()

	s.monitor.Close()
	s.frames.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
