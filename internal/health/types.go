package health

import "time"

// DeviceStatus represents the health state of a single device.
type DeviceStatus string

// DeviceStatus constants.
const (
	DeviceHealthy     DeviceStatus = "healthy"
	DeviceDegraded    DeviceStatus = "degraded"
	DeviceUnreachable DeviceStatus = "unreachable"
	DeviceUnknown     DeviceStatus = "unknown"
	DeviceTesting     DeviceStatus = "testing"
)

// SceneStatus represents the health state of a scene.
type SceneStatus string

// SceneStatus constants.
const (
	SceneHealthy  SceneStatus = "healthy"
	SceneDegraded SceneStatus = "degraded"
	SceneBroken   SceneStatus = "broken"
	SceneUnknown  SceneStatus = "unknown"
)

// Device is the health record for a single platform device.
//
// History is append-only. ReliabilityScore, AverageResponseTime and
// HealthStatus are derived from it by Recompute and must not be set directly.
type Device struct {
	// Identity
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Room *string `json:"room,omitempty"`

	// Classification (inferred from platform metadata)
	Manufacturer Manufacturer `json:"manufacturer"`
	Category     Category     `json:"category"`
	Protocol     Protocol     `json:"protocol"`

	// HasPower is true when the device exposes a primary on/off characteristic.
	HasPower bool `json:"has_power"`

	// Live state
	Reachable bool `json:"reachable"`

	// Derived health
	HealthStatus        DeviceStatus `json:"health_status"`
	ReliabilityScore    float64      `json:"reliability_score"`
	AverageResponseTime *float64     `json:"average_response_time_ms,omitempty"`
	LastSeen            *time.Time   `json:"last_seen,omitempty"`

	// Test history, oldest first
	History []TestResult `json:"history"`
}

// IsDangerous reports whether the device must never be state-toggled by tests.
func (d *Device) IsDangerous() bool {
	return d.Category.IsDangerous()
}

// DeepCopy creates an independent copy of the Device.
// The History slice is cloned so appends on the copy do not alias the original.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.Room = cloneStringPtr(d.Room)
	if d.AverageResponseTime != nil {
		v := *d.AverageResponseTime
		cpy.AverageResponseTime = &v
	}
	if d.History != nil {
		cpy.History = make([]TestResult, len(d.History))
		copy(cpy.History, d.History)
	}
	return &cpy
}

// TestResult is the outcome of one probe or toggle test. It is never mutated
// once created.
type TestResult struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ResponseTime *float64  `json:"response_time_ms,omitempty"`
	Error        *string   `json:"error,omitempty"`
}

// ErrorText returns the error message, or "" when there is none.
func (r TestResult) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// Scene is the health record for a platform scene.
type Scene struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ActionSetID string `json:"action_set_id"`

	TotalDevices       int      `json:"total_devices"`
	ReachableDevices   int      `json:"reachable_devices"`
	UnreachableDevices int      `json:"unreachable_devices"`
	ReachableNames     []string `json:"reachable_names"`
	UnreachableNames   []string `json:"unreachable_names"`

	HealthStatus SceneStatus `json:"health_status"`
	LastAudit    *time.Time  `json:"last_audit,omitempty"`
}

// HealthPercentage is 100 for an empty scene, otherwise the share of
// reachable devices.
func (s *Scene) HealthPercentage() float64 {
	return HealthPercentage(s.ReachableDevices, s.TotalDevices)
}

// DeepCopy creates an independent copy of the Scene.
func (s *Scene) DeepCopy() *Scene {
	if s == nil {
		return nil
	}

	cpy := *s
	cpy.ReachableNames = cloneStrings(s.ReachableNames)
	cpy.UnreachableNames = cloneStrings(s.UnreachableNames)
	if s.LastAudit != nil {
		t := *s.LastAudit
		cpy.LastAudit = &t
	}
	return &cpy
}

// SceneBackup captures a scene's device membership before a repair.
type SceneBackup struct {
	ID          string    `json:"id"`
	SceneID     string    `json:"scene_id"`
	SceneName   string    `json:"scene_name"`
	CreatedAt   time.Time `json:"created_at"`
	DeviceNames []string  `json:"device_names"`

	// Configuration is reserved for full state capture and is currently
	// always empty.
	Configuration map[string]string `json:"configuration"`
}

// RepairKind identifies what a repair action did.
type RepairKind string

// RepairKind constants.
const (
	RepairRemoveDevice        RepairKind = "remove_device"
	RepairRestoreDevice       RepairKind = "restore_device"
	RepairUpdateConfiguration RepairKind = "update_configuration"
	RepairFullRestore         RepairKind = "full_restore"
)

// RepairAction is an immutable repair log entry.
type RepairAction struct {
	ID         string     `json:"id"`
	SceneID    string     `json:"scene_id"`
	SceneName  string     `json:"scene_name"`
	Kind       RepairKind `json:"kind"`
	DeviceName *string    `json:"device_name,omitempty"`
	Count      int        `json:"count"`
	Timestamp  time.Time  `json:"timestamp"`
	Success    bool       `json:"success"`
	Message    *string    `json:"message,omitempty"`
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	cpy := make([]string, len(s))
	copy(cpy, s)
	return cpy
}
