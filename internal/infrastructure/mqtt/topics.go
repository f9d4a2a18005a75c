package mqtt

import "fmt"

// Topic prefixes.
//
//	scenefixer/request/{platform}/{request_id}    core → platform bridge
//	scenefixer/response/{platform}/{request_id}   platform bridge → core
//	scenefixer/core/...                           health events
//	scenefixer/system/status                      online/offline (LWT)
const (
	TopicPrefix       = "scenefixer"
	TopicPrefixCore   = "scenefixer/core"
	TopicPrefixSystem = "scenefixer/system"
)

// Topics builds SceneFixer MQTT topics.
//
//	topic := mqtt.Topics{}.DeviceHealth("light-kitchen")
//	// scenefixer/core/device/light-kitchen/health
type Topics struct{}

// PlatformRequest returns the topic a request to a platform bridge is published on.
//
// Example: scenefixer/request/homekit/2f1c...
func (Topics) PlatformRequest(platform, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, platform, requestID)
}

// PlatformResponse returns the topic a bridge answers a request on.
//
// Example: scenefixer/response/homekit/2f1c...
func (Topics) PlatformResponse(platform, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, platform, requestID)
}

// AllPlatformResponses matches every response from one bridge.
//
// Pattern: scenefixer/response/{platform}/+
func (Topics) AllPlatformResponses(platform string) string {
	return fmt.Sprintf("%s/response/%s/+", TopicPrefix, platform)
}

// DeviceHealth returns the topic a device's latest health is published on.
//
// Example: scenefixer/core/device/light-kitchen/health
func (Topics) DeviceHealth(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/health", TopicPrefixCore, deviceID)
}

// SceneHealth returns the topic a scene's latest audit is published on.
//
// Example: scenefixer/core/scene/good-night/health
func (Topics) SceneHealth(sceneID string) string {
	return fmt.Sprintf("%s/scene/%s/health", TopicPrefixCore, sceneID)
}

// Repair returns the topic repair log entries for a scene are published on.
//
// Example: scenefixer/core/repair/good-night
func (Topics) Repair(sceneID string) string {
	return fmt.Sprintf("%s/repair/%s", TopicPrefixCore, sceneID)
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
