package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryScene seeds a scene in a Memory platform.
type MemoryScene struct {
	Info    SceneInfo
	Actions []Action
}

// Memory is an in-process Platform used for development mode and tests.
//
// Errors can be injected per device or scene to simulate platform faults.
type Memory struct {
	mu      sync.RWMutex
	devices map[string]*DeviceInfo
	power   map[string]bool
	scenes  map[string]*MemoryScene

	// Injected faults
	readErr   map[string]error
	writeErr  map[string]error
	removeErr map[string]error
	execErr   map[string]error

	writes []PowerWrite
}

// PowerWrite records a WritePower call for inspection.
type PowerWrite struct {
	DeviceID string
	On       bool
}

// NewMemory creates an empty in-memory platform.
func NewMemory() *Memory {
	return &Memory{
		devices:   make(map[string]*DeviceInfo),
		power:     make(map[string]bool),
		scenes:    make(map[string]*MemoryScene),
		readErr:   make(map[string]error),
		writeErr:  make(map[string]error),
		removeErr: make(map[string]error),
		execErr:   make(map[string]error),
	}
}

// AddDevice registers a device with its initial power state.
func (m *Memory) AddDevice(d DeviceInfo, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := d
	m.devices[d.ID] = &cpy
	m.power[d.ID] = on
}

// AddScene registers a scene and its actions.
func (m *Memory) AddScene(info SceneInfo, actions []Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acts := make([]Action, len(actions))
	copy(acts, actions)
	m.scenes[info.ID] = &MemoryScene{Info: info, Actions: acts}
}

// DeleteScene removes a scene so later lookups fail.
func (m *Memory) DeleteScene(id string) {
	m.mu.Lock()
	delete(m.scenes, id)
	m.mu.Unlock()
}

// SetReachable changes a device's reachability.
func (m *Memory) SetReachable(deviceID string, reachable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[deviceID]; ok {
		d.Reachable = reachable
	}
}

// FailRead makes ReadPower fail for a device. A nil err clears the fault.
func (m *Memory) FailRead(deviceID string, err error) { m.setFault(m.readErr, deviceID, err) }

// FailWrite makes WritePower fail for a device. A nil err clears the fault.
func (m *Memory) FailWrite(deviceID string, err error) { m.setFault(m.writeErr, deviceID, err) }

// FailRemove makes RemoveSceneAction fail for an action. A nil err clears the fault.
func (m *Memory) FailRemove(actionID string, err error) { m.setFault(m.removeErr, actionID, err) }

// FailExecute makes ExecuteScene fail for a scene. A nil err clears the fault.
func (m *Memory) FailExecute(sceneID string, err error) { m.setFault(m.execErr, sceneID, err) }

func (m *Memory) setFault(faults map[string]error, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(faults, key)
		return
	}
	faults[key] = err
}

// Power returns the current power state of a device.
func (m *Memory) Power(deviceID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.power[deviceID]
}

// Writes returns every WritePower call made so far.
func (m *Memory) Writes() []PowerWrite {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PowerWrite, len(m.writes))
	copy(out, m.writes)
	return out
}

// ListDevices implements Platform.
func (m *Memory) ListDevices(_ context.Context) ([]DeviceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DeviceInfo, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListScenes implements Platform.
func (m *Memory) ListScenes(_ context.Context) ([]SceneInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SceneInfo, 0, len(m.scenes))
	for _, s := range m.scenes {
		out = append(out, s.Info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// IsReachable implements Platform.
func (m *Memory) IsReachable(_ context.Context, deviceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return d.Reachable, nil
}

// ReadPower implements Platform.
func (m *Memory) ReadPower(_ context.Context, deviceID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	if err := m.readErr[deviceID]; err != nil {
		return false, err
	}
	if !d.HasPower {
		return false, ErrNoCharacteristic
	}
	return m.power[deviceID], nil
}

// WritePower implements Platform.
func (m *Memory) WritePower(_ context.Context, deviceID string, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[deviceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	m.writes = append(m.writes, PowerWrite{DeviceID: deviceID, On: on})
	if err := m.writeErr[deviceID]; err != nil {
		return err
	}
	if !d.HasPower {
		return ErrNoCharacteristic
	}
	m.power[deviceID] = on
	return nil
}

// ExecuteScene implements Platform.
func (m *Memory) ExecuteScene(_ context.Context, sceneID string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.scenes[sceneID]; !ok {
		return fmt.Errorf("%w: %s", ErrSceneNotFound, sceneID)
	}
	return m.execErr[sceneID]
}

// SceneActions implements Platform.
func (m *Memory) SceneActions(_ context.Context, sceneID string) ([]Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scenes[sceneID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSceneNotFound, sceneID)
	}
	out := make([]Action, len(s.Actions))
	copy(out, s.Actions)
	return out, nil
}

// RemoveSceneAction implements Platform.
func (m *Memory) RemoveSceneAction(_ context.Context, sceneID string, actionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenes[sceneID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSceneNotFound, sceneID)
	}
	if err := m.removeErr[actionID]; err != nil {
		return err
	}
	for i, a := range s.Actions {
		if a.ID == actionID {
			s.Actions = append(s.Actions[:i], s.Actions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrActionNotFound, actionID)
}
