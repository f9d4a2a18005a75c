package device

import "errors"

// Errors returned by the device package. Check with errors.Is.
var (
	// ErrDeviceNotFound is returned when a device ID is not in the registry.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidResult is returned when a test result lacks a device ID.
	ErrInvalidResult = errors.New("device: invalid test result")
)
