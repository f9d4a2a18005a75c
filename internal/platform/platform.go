// Package platform defines the capabilities the monitor consumes from the
// external home-automation platform, plus two bindings: an MQTT
// request/response bridge for production and an in-memory platform for
// development and tests.
package platform

import (
	"context"
	"errors"
)

// Errors returned by platform bindings.
var (
	// ErrDeviceNotFound is returned when the platform does not know a device ID.
	ErrDeviceNotFound = errors.New("platform: device not found")

	// ErrSceneNotFound is returned when a scene or its action set no longer exists.
	ErrSceneNotFound = errors.New("platform: scene not found")

	// ErrNoCharacteristic is returned when a device has no power characteristic.
	ErrNoCharacteristic = errors.New("platform: device has no power characteristic")

	// ErrActionNotFound is returned when removing an action that is not in the scene.
	ErrActionNotFound = errors.New("platform: action not found")

	// ErrTimeout is returned when the platform does not answer in time.
	ErrTimeout = errors.New("platform: request timed out")
)

// DeviceInfo is the platform's view of a device.
type DeviceInfo struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Room      *string `json:"room,omitempty"`
	Vendor    string  `json:"vendor"`
	Kind      string  `json:"kind"`
	HasPower  bool    `json:"has_power"`
	Reachable bool    `json:"reachable"`
}

// SceneInfo is the platform's view of a scene.
type SceneInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ActionSetID string `json:"action_set_id"`
}

// Action is a single instruction in a scene's action set.
type Action struct {
	ID         string `json:"id"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

// Platform is the external home-automation collaborator.
//
// Implementations must be safe for concurrent use. Timeouts are the
// implementation's responsibility; callers impose none of their own.
type Platform interface {
	// ListDevices returns the device catalog.
	ListDevices(ctx context.Context) ([]DeviceInfo, error)

	// ListScenes returns the scene catalog.
	ListScenes(ctx context.Context) ([]SceneInfo, error)

	// IsReachable returns the platform's point-in-time reachability for a device.
	IsReachable(ctx context.Context, deviceID string) (bool, error)

	// ReadPower reads the device's primary on/off characteristic.
	ReadPower(ctx context.Context, deviceID string) (bool, error)

	// WritePower writes the device's primary on/off characteristic.
	WritePower(ctx context.Context, deviceID string, on bool) error

	// ExecuteScene runs every action in the scene.
	ExecuteScene(ctx context.Context, sceneID string) error

	// SceneActions resolves the scene's live action set.
	// Returns ErrSceneNotFound when the scene no longer exists.
	SceneActions(ctx context.Context, sceneID string) ([]Action, error)

	// RemoveSceneAction removes one action from the scene.
	RemoveSceneAction(ctx context.Context, sceneID string, actionID string) error
}
