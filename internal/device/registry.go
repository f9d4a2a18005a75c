package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kochj23/SceneFixer/internal/health"
	"github.com/kochj23/SceneFixer/internal/platform"
)

// Logger defines the logging interface used by the Registry.
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

// Options configures a Registry.
type Options struct {
	// Retention decides which results a device keeps. Defaults to health.Unbounded.
	Retention health.RetentionPolicy

	// Window is the status window size. Defaults to health.StatusWindow.
	Window int

	// History persists results. Optional.
	History HistoryRepository

	Logger Logger
}

// Registry is the single-writer collection of device health records.
//
// All public methods are thread-safe. Records leave the registry only as
// deep copies.
type Registry struct {
	devices map[string]*health.Device
	mu      sync.RWMutex

	retention health.RetentionPolicy
	window    int
	history   HistoryRepository
	logger    Logger

	// seeded holds device IDs whose stored history has been merged in.
	seeded map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		devices:   make(map[string]*health.Device),
		seeded:    make(map[string]bool),
		retention: opts.Retention,
		window:    opts.Window,
		history:   opts.History,
		logger:    opts.Logger,
	}
	if r.retention == nil {
		r.retention = health.Unbounded{}
	}
	if r.window <= 0 {
		r.window = health.StatusWindow
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r
}

// FromInfo builds a fresh health record from the platform's view of a device.
func FromInfo(info platform.DeviceInfo) *health.Device {
	m := health.InferManufacturer(info.Vendor)
	d := &health.Device{
		ID:           info.ID,
		Name:         info.Name,
		Manufacturer: m,
		Category:     health.InferCategory(info.Kind),
		Protocol:     health.InferProtocol(m),
		HasPower:     info.HasPower,
		Reachable:    info.Reachable,
		HealthStatus: health.DeviceUnknown,
	}
	if info.Room != nil {
		room := *info.Room
		d.Room = &room
	}
	health.Recompute(d, health.StatusWindow)
	return d
}

// Sync reconciles the registry with the platform catalog.
//
// Known devices keep their history and LastSeen; their identity, room,
// classification and reachability are refreshed. Devices the platform no
// longer lists are dropped. It returns the number of devices after sync.
func (r *Registry) Sync(infos []platform.DeviceInfo) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*health.Device, len(infos))
	for _, info := range infos {
		fresh := FromInfo(info)
		if old, ok := r.devices[info.ID]; ok {
			fresh.History = old.History
			fresh.LastSeen = old.LastSeen
			if old.HealthStatus == health.DeviceTesting {
				fresh.HealthStatus = health.DeviceTesting
				next[info.ID] = fresh
				continue
			}
		}
		health.Recompute(fresh, r.window)
		next[info.ID] = fresh
	}

	removed := 0
	for id := range r.devices {
		if _, ok := next[id]; !ok {
			delete(r.seeded, id)
			removed++
		}
	}
	r.devices = next

	r.logger.Info("device registry synced", "count", len(next), "removed", removed)
	return len(next)
}

// LoadHistory merges persisted results into every device whose stored
// history has not been loaded yet, then recomputes its scores. Results
// already in memory are kept. A device stays pending after a failed load,
// so calling LoadHistory after each catalog sync picks up devices that
// appeared late. Unknown device IDs in the store are ignored.
//
// Returns:
//   - error: wrapped repository error; no device is changed
func (r *Registry) LoadHistory(ctx context.Context) error {
	if r.history == nil || !r.hasPending() {
		return nil
	}
	byDevice, err := r.history.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("loading device history: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	loaded, devices := 0, 0
	for id, d := range r.devices {
		if r.seeded[id] {
			continue
		}
		r.seeded[id] = true
		stored := byDevice[id]
		if len(stored) == 0 {
			continue
		}
		d.History = r.retention.Retain(mergeHistory(stored, d.History))
		d.LastSeen = lastSuccess(d.History)
		if d.HealthStatus != health.DeviceTesting {
			health.Recompute(d, r.window)
		} else {
			d.ReliabilityScore = health.Reliability(d.History)
			d.AverageResponseTime = health.AverageResponseTime(d.History)
		}
		loaded += len(stored)
		devices++
	}
	r.logger.Debug("device history loaded", "results", loaded, "devices", devices)
	return nil
}

func (r *Registry) hasPending() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := range r.devices {
		if !r.seeded[id] {
			return true
		}
	}
	return false
}

// mergeHistory combines stored and in-memory results by ID, oldest first.
func mergeHistory(stored, current []health.TestResult) []health.TestResult {
	seen := make(map[string]bool, len(stored))
	out := make([]health.TestResult, 0, len(stored)+len(current))
	for _, res := range stored {
		seen[res.ID] = true
		out = append(out, res)
	}
	for _, res := range current {
		if !seen[res.ID] {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func lastSuccess(history []health.TestResult) *time.Time {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Success {
			ts := history[i].Timestamp
			return &ts
		}
	}
	return nil
}

// Get returns a deep copy of one device.
func (r *Registry) Get(id string) (*health.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d.DeepCopy(), nil
}

// List returns deep copies of every device, ordered by name then ID.
func (r *Registry) List() []*health.Device {
	r.mu.RLock()
	out := make([]*health.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d.DeepCopy())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Update applies fn to the stored record under the write lock and returns
// a copy of the result. fn must not retain the pointer.
func (r *Registry) Update(id string, fn func(d *health.Device)) (*health.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	fn(d)
	return d.DeepCopy(), nil
}

// MarkTesting sets the device status to testing while a probe is in flight.
func (r *Registry) MarkTesting(id string) error {
	_, err := r.Update(id, func(d *health.Device) {
		d.HealthStatus = health.DeviceTesting
	})
	return err
}

// Record appends a test result to a device, recomputes its scores exactly
// once and persists the result. A persistence failure is logged; the
// in-memory record is still updated.
//
// Parameters:
//   - ctx: bounds the history write
//   - result: must carry a DeviceID
//
// Returns:
//   - *health.Device: copy of the updated record
//   - error: ErrInvalidResult or ErrDeviceNotFound
func (r *Registry) Record(ctx context.Context, result health.TestResult) (*health.Device, error) {
	return r.record(ctx, result, nil)
}

// RecordReachable is Record with a fresh reachability reading applied in
// the same update, so the scores are recomputed once against it.
func (r *Registry) RecordReachable(ctx context.Context, result health.TestResult, reachable bool) (*health.Device, error) {
	return r.record(ctx, result, &reachable)
}

func (r *Registry) record(ctx context.Context, result health.TestResult, reachable *bool) (*health.Device, error) {
	if result.DeviceID == "" {
		return nil, ErrInvalidResult
	}

	updated, err := r.Update(result.DeviceID, func(d *health.Device) {
		if reachable != nil {
			d.Reachable = *reachable
		}
		health.Record(d, result, r.retention, r.window)
	})
	if err != nil {
		return nil, err
	}

	if r.history != nil {
		if err := r.history.Record(ctx, result); err != nil {
			r.logger.Warn("persisting test result failed",
				"device_id", result.DeviceID,
				"error", err,
			)
		}
	}
	return updated, nil
}
