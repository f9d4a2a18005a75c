package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kochj23/SceneFixer/internal/infrastructure/mqtt"
)

// Request methods understood by the platform bridge.
const (
	MethodListDevices       = "list_devices"
	MethodListScenes        = "list_scenes"
	MethodIsReachable       = "is_reachable"
	MethodReadPower         = "read_power"
	MethodWritePower        = "write_power"
	MethodExecuteScene      = "execute_scene"
	MethodSceneActions      = "scene_actions"
	MethodRemoveSceneAction = "remove_scene_action"
)

// Error codes a bridge may return in a response envelope.
const (
	codeDeviceNotFound   = "device_not_found"
	codeSceneNotFound    = "scene_not_found"
	codeNoCharacteristic = "no_characteristic"
	codeActionNotFound   = "action_not_found"
)

// defaultRequestTimeout applies when MQTTConfig.RequestTimeout is zero.
const defaultRequestTimeout = 10 * time.Second

// MQTTClient is the subset of the infrastructure MQTT client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTConfig configures an MQTT platform binding.
type MQTTConfig struct {
	// Name identifies the platform bridge in topic paths (e.g. "homekit").
	Name string

	// RequestTimeout bounds each request/response round trip.
	RequestTimeout time.Duration

	// QoS for requests and the response subscription.
	QoS byte
}

// request is the envelope published on the request topic.
type request struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// response is the envelope expected on the response topic.
type response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Code   string          `json:"code,omitempty"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// MQTTPlatform talks to a home-automation bridge over MQTT request/response
// topics:
//
//	request:  scenefixer/request/{name}/{request_id}
//	response: scenefixer/response/{name}/{request_id}
//
// Thread Safety: all methods are safe for concurrent use.
type MQTTPlatform struct {
	client MQTTClient
	cfg    MQTTConfig

	pending   map[string]chan response
	pendingMu sync.Mutex
}

// NewMQTTPlatform creates a binding. Call Start before issuing requests.
func NewMQTTPlatform(client MQTTClient, cfg MQTTConfig) *MQTTPlatform {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &MQTTPlatform{
		client:  client,
		cfg:     cfg,
		pending: make(map[string]chan response),
	}
}

// Start subscribes to the bridge's response topic.
func (p *MQTTPlatform) Start() error {
	topic := mqtt.Topics{}.AllPlatformResponses(p.cfg.Name)
	if err := p.client.Subscribe(topic, p.cfg.QoS, p.handleResponse); err != nil {
		return fmt.Errorf("subscribing to platform responses: %w", err)
	}
	return nil
}

// Stop unsubscribes and fails any in-flight requests.
func (p *MQTTPlatform) Stop() error {
	p.pendingMu.Lock()
	for id, ch := range p.pending {
		close(ch)
		delete(p.pending, id)
	}
	p.pendingMu.Unlock()
	return p.client.Unsubscribe(mqtt.Topics{}.AllPlatformResponses(p.cfg.Name))
}

// handleResponse routes a response envelope to the waiting request.
func (p *MQTTPlatform) handleResponse(topic string, payload []byte) error {
	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("parsing platform response on %s: %w", topic, err)
	}
	if resp.ID == "" {
		// Fall back to the request ID in the topic path.
		resp.ID = topic[strings.LastIndex(topic, "/")+1:]
	}
	if want := (mqtt.Topics{}).PlatformResponse(p.cfg.Name, resp.ID); topic != want {
		return fmt.Errorf("response %s arrived on %s, want %s", resp.ID, topic, want)
	}

	p.pendingMu.Lock()
	ch, ok := p.pending[resp.ID]
	if ok {
		delete(p.pending, resp.ID)
	}
	p.pendingMu.Unlock()

	if !ok {
		return nil // late or foreign response
	}
	ch <- resp
	return nil
}

// call publishes a request and waits for its response or the timeout.
func (p *MQTTPlatform) call(ctx context.Context, method string, params map[string]any, out any) error {
	req := request{
		ID:     uuid.NewString(),
		Method: method,
		Params: params,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshalling %s request: %w", method, err)
	}

	ch := make(chan response, 1)
	p.pendingMu.Lock()
	p.pending[req.ID] = ch
	p.pendingMu.Unlock()

	cleanup := func() {
		p.pendingMu.Lock()
		delete(p.pending, req.ID)
		p.pendingMu.Unlock()
	}

	topic := mqtt.Topics{}.PlatformRequest(p.cfg.Name, req.ID)
	if err := p.client.Publish(topic, payload, p.cfg.QoS, false); err != nil {
		cleanup()
		return fmt.Errorf("publishing %s request: %w", method, err)
	}

	timer := time.NewTimer(p.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%s: platform binding stopped", method)
		}
		return decodeResponse(method, resp, out)
	case <-timer.C:
		cleanup()
		return fmt.Errorf("%w: %s after %v", ErrTimeout, method, p.cfg.RequestTimeout)
	case <-ctx.Done():
		cleanup()
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

// decodeResponse maps a response envelope to a result or a typed error.
func decodeResponse(method string, resp response, out any) error {
	if !resp.OK {
		msg := resp.Error
		if msg == "" {
			msg = "request failed"
		}
		switch resp.Code {
		case codeDeviceNotFound:
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, msg)
		case codeSceneNotFound:
			return fmt.Errorf("%w: %s", ErrSceneNotFound, msg)
		case codeNoCharacteristic:
			return fmt.Errorf("%w: %s", ErrNoCharacteristic, msg)
		case codeActionNotFound:
			return fmt.Errorf("%w: %s", ErrActionNotFound, msg)
		default:
			return errors.New(msg)
		}
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

// ListDevices implements Platform.
func (p *MQTTPlatform) ListDevices(ctx context.Context) ([]DeviceInfo, error) {
	var out []DeviceInfo
	if err := p.call(ctx, MethodListDevices, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListScenes implements Platform.
func (p *MQTTPlatform) ListScenes(ctx context.Context) ([]SceneInfo, error) {
	var out []SceneInfo
	if err := p.call(ctx, MethodListScenes, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IsReachable implements Platform.
func (p *MQTTPlatform) IsReachable(ctx context.Context, deviceID string) (bool, error) {
	var out struct {
		Reachable bool `json:"reachable"`
	}
	err := p.call(ctx, MethodIsReachable, map[string]any{"device_id": deviceID}, &out)
	return out.Reachable, err
}

// ReadPower implements Platform.
func (p *MQTTPlatform) ReadPower(ctx context.Context, deviceID string) (bool, error) {
	var out struct {
		On bool `json:"on"`
	}
	err := p.call(ctx, MethodReadPower, map[string]any{"device_id": deviceID}, &out)
	return out.On, err
}

// WritePower implements Platform.
func (p *MQTTPlatform) WritePower(ctx context.Context, deviceID string, on bool) error {
	return p.call(ctx, MethodWritePower, map[string]any{"device_id": deviceID, "on": on}, nil)
}

// ExecuteScene implements Platform.
func (p *MQTTPlatform) ExecuteScene(ctx context.Context, sceneID string) error {
	return p.call(ctx, MethodExecuteScene, map[string]any{"scene_id": sceneID}, nil)
}

// SceneActions implements Platform.
func (p *MQTTPlatform) SceneActions(ctx context.Context, sceneID string) ([]Action, error) {
	var out []Action
	if err := p.call(ctx, MethodSceneActions, map[string]any{"scene_id": sceneID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveSceneAction implements Platform.
func (p *MQTTPlatform) RemoveSceneAction(ctx context.Context, sceneID string, actionID string) error {
	return p.call(ctx, MethodRemoveSceneAction, map[string]any{"scene_id": sceneID, "action_id": actionID}, nil)
}
