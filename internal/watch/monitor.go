// Package watch implements the monitoring state machine: it consumes the
// stream of width measurements, applies threshold and debounce logic, and
// coordinates the corrective inflate action with the notification channels.
package watch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ba7lgj-dev/tape-width-monitor/internal/logger"
)

// State describes where the machine currently is.
type State string

const (
	StateIdle            State = "idle"             // Not monitoring
	StateArmed           State = "armed"            // Monitoring, no active alert
	StateAlerting        State = "alerting"         // Consecutive below-threshold cycles accumulating
	StateActionTriggered State = "action_triggered" // Inflate dispatched or settling
)

// Notification categories and the escalation points used for them.
const (
	categoryWidthLow = "width_low"
	categoryInflate  = "inflate_request"
	categoryAuto     = "inflate"

	widthEscalateAfter   = 3
	inflateEscalateAfter = 2
)

var (
	// ErrInvalidThreshold rejects non-finite or non-positive thresholds.
	ErrInvalidThreshold = errors.New("threshold must be a positive number")

	// ErrNotCalibrated rejects monitoring before a calibration rate exists.
	ErrNotCalibrated = errors.New("calibration required before monitoring")

	// ErrInvalidRate rejects a non-finite or non-positive calibration rate.
	ErrInvalidRate = errors.New("calibration rate must be a positive number")
)

// Notifier is the subset of the notification service the monitor uses.
type Notifier interface {
	Info(category, webhook, message string) bool
	Error(category, webhook, message string, escalateAfter int) bool
	Recovery(category, webhook, message string) bool
}

// InflateFunc requests the corrective action. Implementations bind the
// actuator address and duration at call time so settings changes apply to
// the next trigger.
type InflateFunc func(ctx context.Context) error

// Config holds the monitor's tunables.
type Config struct {
	DebounceCount int                  // Consecutive below-threshold cycles before the action fires (default 3)
	ActionTimeout time.Duration        // Upper bound on one inflate request (default 15s)
	SettleDelay   func() time.Duration // Post-action wait before re-arming the action trigger
	AlertWebhook  string
	OpsWebhook    string
}

// Monitor is the measurement-driven alert and actuation state machine.
// All methods are safe for concurrent use.
type Monitor struct {
	cfg      Config
	notifier Notifier
	inflate  InflateFunc

	mu             sync.Mutex
	monitoring     bool
	threshold      float64
	rate           float64
	triggerCount   int
	alertActive    bool
	actionInFlight bool
	settleTimer    *time.Timer

	lastWidthMM float64
	lastPixels  int
	updatedAt   time.Time
}

// New creates a Monitor. The inflate func is invoked at most once per
// debounce trip, never concurrently with itself.
func New(cfg Config, notifier Notifier, inflate InflateFunc) *Monitor {
	if cfg.DebounceCount <= 0 {
		cfg.DebounceCount = 3
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 15 * time.Second
	}
	if cfg.SettleDelay == nil {
		cfg.SettleDelay = func() time.Duration { return 0 }
	}
	return &Monitor{cfg: cfg, notifier: notifier, inflate: inflate}
}

// SetRate stores the calibration rate (physical length per pixel).
func (m *Monitor) SetRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return ErrInvalidRate
	}
	m.mu.Lock()
	m.rate = rate
	m.mu.Unlock()
	logger.Info("Watch", "calibration rate set to %.6f mm/px", rate)
	return nil
}

// Rate returns the current calibration rate, 0 until calibrated.
func (m *Monitor) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// Enable arms monitoring against the given threshold and resets the trigger
// counter. Invalid input is rejected with no state mutation.
func (m *Monitor) Enable(threshold float64) error {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return ErrInvalidThreshold
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rate <= 0 {
		return ErrNotCalibrated
	}
	m.monitoring = true
	m.threshold = threshold
	m.triggerCount = 0
	m.alertActive = false
	logger.Info("Watch", "monitoring enabled, threshold %.2f mm", threshold)
	return nil
}

// Disable stops monitoring, clearing threshold and counters. An active alert
// gets a recovery notification so the channel does not stay red.
func (m *Monitor) Disable() {
	m.mu.Lock()
	wasActive := m.alertActive
	m.monitoring = false
	m.threshold = 0
	m.triggerCount = 0
	m.alertActive = false
	if m.settleTimer != nil {
		m.settleTimer.Stop()
		m.settleTimer = nil
		m.actionInFlight = false
	}
	m.mu.Unlock()

	if wasActive {
		m.notifier.Recovery(categoryWidthLow, m.cfg.AlertWebhook, "width monitoring stopped")
	}
	logger.Info("Watch", "monitoring disabled")
}

// HandleMeasurement feeds one physical-width measurement into the machine.
// Called on the periodic measurement cadence, in capture order.
func (m *Monitor) HandleMeasurement(widthMM float64) {
	m.mu.Lock()
	m.lastWidthMM = widthMM
	m.updatedAt = time.Now()

	if !m.monitoring || m.threshold <= 0 {
		m.mu.Unlock()
		return
	}

	if widthMM < m.threshold {
		m.triggerCount++
		m.alertActive = true
		fire := m.triggerCount >= m.cfg.DebounceCount && !m.actionInFlight
		if fire {
			m.actionInFlight = true
		}
		threshold := m.threshold
		m.mu.Unlock()

		m.notifier.Error(categoryWidthLow, m.cfg.AlertWebhook,
			fmt.Sprintf("width low: %.2fmm (threshold %.2fmm)", widthMM, threshold),
			widthEscalateAfter)

		if fire {
			m.notifier.Info(categoryAuto, m.cfg.OpsWebhook,
				fmt.Sprintf("auto inflate triggered, width %.2fmm", widthMM))
			go m.runInflate()
		}
		return
	}

	wasActive := m.alertActive
	m.alertActive = false
	m.triggerCount = 0
	m.mu.Unlock()

	if wasActive {
		m.notifier.Recovery(categoryWidthLow, m.cfg.AlertWebhook, "width back to normal")
	}
}

// TriggerManual dispatches the corrective action on operator request,
// honoring the same in-flight guard as the automatic path.
func (m *Monitor) TriggerManual() error {
	m.mu.Lock()
	if m.actionInFlight {
		m.mu.Unlock()
		return errors.New("an inflate request is already in flight")
	}
	m.actionInFlight = true
	m.mu.Unlock()

	go m.runInflate()
	return nil
}

func (m *Monitor) runInflate() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ActionTimeout)
	defer cancel()

	err := m.inflate(ctx)
	if err != nil {
		// Re-arm immediately so the next debounce trip can retry.
		m.mu.Lock()
		m.actionInFlight = false
		m.mu.Unlock()

		logger.Error("Watch", "inflate failed: %v", err)
		m.notifier.Error(categoryInflate, m.cfg.OpsWebhook,
			fmt.Sprintf("inflate failed: %v", err), inflateEscalateAfter)
		return
	}

	settle := m.cfg.SettleDelay()
	m.mu.Lock()
	m.triggerCount = 0
	if settle > 0 {
		// Deferred re-arm. Measurements keep flowing during the settle
		// window; only new corrective actions are suppressed.
		if m.settleTimer != nil {
			m.settleTimer.Stop()
		}
		m.settleTimer = time.AfterFunc(settle, m.finishSettle)
	} else {
		m.actionInFlight = false
	}
	m.mu.Unlock()

	logger.Info("Watch", "inflate succeeded, settling for %s", settle)
	m.notifier.Recovery(categoryInflate, m.cfg.OpsWebhook, "inflate control back to normal")
}

func (m *Monitor) finishSettle() {
	m.mu.Lock()
	m.actionInFlight = false
	m.settleTimer = nil
	m.mu.Unlock()
	logger.Debug("Watch", "settle window elapsed, action trigger re-armed")
}

// Close stops any pending settle timer.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.settleTimer != nil {
		m.settleTimer.Stop()
		m.settleTimer = nil
	}
	m.mu.Unlock()
}

// Status is a point-in-time snapshot for the operator surface.
type Status struct {
	State          State   `json:"state"`
	Monitoring     bool    `json:"monitoring"`
	Threshold      float64 `json:"threshold_mm"`
	Rate           float64 `json:"calibration_rate"`
	TriggerCount   int     `json:"trigger_count"`
	ActionInFlight bool    `json:"action_in_flight"`
	WidthMM        float64 `json:"width_mm"`
	PixelLength    int     `json:"pixel_length"`
	UpdatedAt      int64   `json:"updated_at"`
}

// RecordPixels stores the latest raw pixel length for status reporting.
func (m *Monitor) RecordPixels(pixels int) {
	m.mu.Lock()
	m.lastPixels = pixels
	m.mu.Unlock()
}

// Status returns the current snapshot.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := StateIdle
	switch {
	case !m.monitoring:
		state = StateIdle
	case m.actionInFlight:
		state = StateActionTriggered
	case m.alertActive:
		state = StateAlerting
	default:
		state = StateArmed
	}

	var updated int64
	if !m.updatedAt.IsZero() {
		updated = m.updatedAt.Unix()
	}

	return Status{
		State:          state,
		Monitoring:     m.monitoring,
		Threshold:      m.threshold,
		Rate:           m.rate,
		TriggerCount:   m.triggerCount,
		ActionInFlight: m.actionInFlight,
		WidthMM:        m.lastWidthMM,
		PixelLength:    m.lastPixels,
		UpdatedAt:      updated,
	}
}
