package mqtt

import (
	"encoding/json"
	"time"
)

// statusPayload is the retained message on scenefixer/system/status.
// Engine is present only while the core is online.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
	Engine    any    `json:"engine,omitempty"`
}

func buildStatusPayload(clientID, status, reason string, engine any) string {
	b, err := json.Marshal(statusPayload{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Engine:    engine,
	})
	if err != nil {
		// An engine status that cannot be encoded still leaves a valid
		// online marker.
		return buildStatusPayload(clientID, status, reason, nil)
	}
	return string(b)
}

// SetStatusProvider sets the function whose result is embedded as "engine"
// in the online status. It is read on every (re)connect and by
// PublishStatus.
func (c *Client) SetStatusProvider(fn func() any) {
	c.callbackMu.Lock()
	c.statusProvider = fn
	c.callbackMu.Unlock()
}

// PublishStatus republishes the retained online status with the current
// engine status.
//
// Returns:
//   - error: ErrNotConnected while the broker link is down, or a
//     publish failure
func (c *Client) PublishStatus() error {
	return c.Publish(Topics{}.SystemStatus(), []byte(c.onlinePayload()), byte(c.cfg.QoS), true)
}

func (c *Client) onlinePayload() string {
	c.callbackMu.RLock()
	provider := c.statusProvider
	c.callbackMu.RUnlock()

	var engine any
	if provider != nil {
		engine = provider()
	}
	return buildStatusPayload(c.cfg.Broker.ClientID, "online", "", engine)
}
