package prober

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kochj23/SceneFixer/internal/device"
	"github.com/kochj23/SceneFixer/internal/health"
	"github.com/kochj23/SceneFixer/internal/platform"
)

// Logger defines the logging interface used by the Prober.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Notifier receives every recorded result with the updated device.
type Notifier interface {
	DeviceTested(d *health.Device, r health.TestResult)
}

// ProgressFunc receives the completed fraction (0..1) and the name of the
// device just processed.
type ProgressFunc func(fraction float64, current string)

// Config holds the sweep timing.
type Config struct {
	// ProbeDelay separates probes in a full health check.
	ProbeDelay time.Duration

	// TogglePause is held after each write of a toggle test.
	TogglePause time.Duration

	// ToggleDelay separates devices in a toggle-all sweep.
	ToggleDelay time.Duration
}

// DefaultConfig returns the standard sweep timing.
func DefaultConfig() Config {
	return Config{
		ProbeDelay:  100 * time.Millisecond,
		TogglePause: 300 * time.Millisecond,
		ToggleDelay: 500 * time.Millisecond,
	}
}

// Prober runs connectivity tests.
//
// Thread Safety: single-device operations are safe for concurrent use.
// Only one sweep (health check or toggle-all) runs at a time.
type Prober struct {
	platform platform.Platform
	devices  *device.Registry
	notifier Notifier
	cfg      Config
	logger   Logger

	running atomic.Bool
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a prober.
//
// Parameters:
//   - p: platform used for reads and writes
//   - devices: registry that owns the device records
//   - notifier: receives recorded results (may be nil)
//   - cfg: sweep timing
//   - logger: Logger instance (may be nil)
func New(p platform.Platform, devices *device.Registry, notifier Notifier, cfg Config, logger Logger) *Prober {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Prober{
		platform: p,
		devices:  devices,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// IsRunning reports whether a sweep is active.
func (p *Prober) IsRunning() bool {
	return p.running.Load()
}

// Probe reads the device's primary characteristic once and records the
// outcome. Platform failures become failed results.
//
// Parameters:
//   - ctx: bounds the platform calls
//   - deviceID: registry ID of the device
//
// Returns:
//   - health.TestResult: the recorded result; Success mirrors reachability
//   - error: device.ErrDeviceNotFound for an unknown ID, nothing else
func (p *Prober) Probe(ctx context.Context, deviceID string) (health.TestResult, error) {
	d, err := p.devices.Get(deviceID)
	if err != nil {
		return health.TestResult{}, err
	}
	if err := p.devices.MarkTesting(deviceID); err != nil {
		return health.TestResult{}, err
	}

	start := time.Now()
	if d.HasPower {
		if _, err := p.platform.ReadPower(ctx, deviceID); err != nil {
			return p.record(ctx, failed(deviceID, start, err.Error()), nil), nil
		}
	}

	reachable, err := p.platform.IsReachable(ctx, deviceID)
	if err != nil {
		return p.record(ctx, failed(deviceID, start, err.Error()), nil), nil
	}

	result := health.NewTestResult(uuid.NewString(), deviceID, reachable, time.Since(start), "")
	if !reachable {
		msg := "device not reachable"
		result.Error = &msg
	}
	return p.record(ctx, result, &reachable), nil
}

// ToggleProbe turns the device on, then off, then back to its original
// state, pausing after each change. Locks and garage doors are refused
// with a SkippedDangerous result before any platform call; that result is
// not added to the device's history.
//
// Returns:
//   - health.TestResult: the recorded result, or the skipped result
//   - error: device.ErrDeviceNotFound for an unknown ID; platform failures,
//     including a missing power characteristic, become failed results
func (p *Prober) ToggleProbe(ctx context.Context, deviceID string) (health.TestResult, error) {
	d, err := p.devices.Get(deviceID)
	if err != nil {
		return health.TestResult{}, err
	}
	if d.IsDangerous() {
		p.logger.Info("toggle refused for dangerous device",
			"device_id", deviceID,
			"category", string(d.Category),
		)
		return skipped(deviceID), nil
	}
	if err := p.devices.MarkTesting(deviceID); err != nil {
		return health.TestResult{}, err
	}

	start := time.Now()
	original, err := p.platform.ReadPower(ctx, deviceID)
	if err != nil {
		return p.record(ctx, failed(deviceID, start, fmt.Sprintf("reading state: %v", err)), nil), nil
	}

	steps := []struct {
		on    bool
		pause bool
	}{
		{on: true, pause: true},
		{on: false, pause: true},
		{on: original},
	}
	for _, step := range steps {
		if err := p.platform.WritePower(ctx, deviceID, step.on); err != nil {
			return p.record(ctx, failed(deviceID, start, fmt.Sprintf("setting power %t: %v", step.on, err)), nil), nil
		}
		if step.pause {
			if err := p.sleep(ctx, p.cfg.TogglePause); err != nil {
				return p.record(ctx, failed(deviceID, start, err.Error()), nil), nil
			}
		}
	}

	result := health.NewTestResult(uuid.NewString(), deviceID, true, time.Since(start), "")
	reachable, err := p.platform.IsReachable(ctx, deviceID)
	if err != nil {
		p.logger.Debug("reachability read after toggle failed", "device_id", deviceID, "error", err)
		return p.record(ctx, result, nil), nil
	}
	return p.record(ctx, result, &reachable), nil
}

// RunFullHealthCheck probes every device in name order. Progress is
// reported after each device and ends at 1.0.
//
// Parameters:
//   - ctx: cancelling it stops the sweep between devices
//   - progress: called with the completed fraction and device name (may be nil)
//
// Returns:
//   - []health.TestResult: one result per device still in the catalog
//   - error: ErrSweepInProgress, or ctx's error with the partial results
func (p *Prober) RunFullHealthCheck(ctx context.Context, progress ProgressFunc) ([]health.TestResult, error) {
	return p.sweep(ctx, "health_check", p.cfg.ProbeDelay, progress,
		func(*health.Device) bool { return true },
		p.Probe,
	)
}

// ToggleAllSafe toggle-tests every non-dangerous device that has a power
// characteristic, in name order.
func (p *Prober) ToggleAllSafe(ctx context.Context, progress ProgressFunc) ([]health.TestResult, error) {
	return p.sweep(ctx, "toggle_all", p.cfg.ToggleDelay, progress,
		func(d *health.Device) bool { return d.HasPower && !d.IsDangerous() },
		p.ToggleProbe,
	)
}

func (p *Prober) sweep(
	ctx context.Context,
	name string,
	delay time.Duration,
	progress ProgressFunc,
	include func(*health.Device) bool,
	test func(context.Context, string) (health.TestResult, error),
) ([]health.TestResult, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer p.running.Store(false)

	if progress == nil {
		progress = func(float64, string) {}
	}

	var targets []*health.Device
	for _, d := range p.devices.List() {
		if include(d) {
			targets = append(targets, d)
		}
	}

	p.logger.Info("sweep started", "sweep", name, "devices", len(targets))
	start := time.Now()

	results := make([]health.TestResult, 0, len(targets))
	for i, d := range targets {
		if i > 0 {
			if err := p.sleep(ctx, delay); err != nil {
				return results, err
			}
		}
		r, err := test(ctx, d.ID)
		if err != nil {
			// Removed from the catalog mid-sweep.
			p.logger.Debug("sweep skipped device", "sweep", name, "device_id", d.ID, "error", err)
		} else {
			results = append(results, r)
		}
		progress(float64(i+1)/float64(len(targets)), d.Name)
	}
	if len(targets) == 0 {
		progress(1.0, "")
	}

	failures := 0
	for _, r := range results {
		if !r.Success {
			failures++
		}
	}
	p.logger.Info("sweep completed",
		"sweep", name,
		"results", len(results),
		"failures", failures,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// record appends a result to the device history. A non-nil reachable is
// applied in the same update, before scoring.
func (p *Prober) record(ctx context.Context, r health.TestResult, reachable *bool) health.TestResult {
	var (
		d   *health.Device
		err error
	)
	if reachable != nil {
		d, err = p.devices.RecordReachable(ctx, r, *reachable)
	} else {
		d, err = p.devices.Record(ctx, r)
	}
	if err != nil {
		p.logger.Warn("recording test result failed", "device_id", r.DeviceID, "error", err)
		return r
	}
	if !r.Success {
		p.logger.Debug("device test failed", "device_id", r.DeviceID, "error", r.ErrorText())
	}
	if p.notifier != nil {
		p.notifier.DeviceTested(d, r)
	}
	return r
}

func failed(deviceID string, start time.Time, msg string) health.TestResult {
	return health.NewTestResult(uuid.NewString(), deviceID, false, time.Since(start), msg)
}

func skipped(deviceID string) health.TestResult {
	msg := SkippedDangerous
	return health.TestResult{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Error:     &msg,
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
