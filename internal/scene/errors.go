package scene

import "errors"

// ErrSceneNotFound is returned when a scene ID is not in the registry.
var ErrSceneNotFound = errors.New("scene: not found")
