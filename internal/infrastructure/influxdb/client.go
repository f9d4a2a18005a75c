package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/kochj23/SceneFixer/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// batchPolicy decides when buffered points are sent. A full batch or the
// flush interval sends them; so does the end of a sweep, through Flush.
type batchPolicy struct {
	size          uint
	flushInterval time.Duration
}

func newBatchPolicy(cfg config.InfluxDBConfig) batchPolicy {
	p := batchPolicy{size: defaultBatchSize, flushInterval: defaultFlushInterval}
	if cfg.BatchSize > 0 {
		p.size = uint(cfg.BatchSize) // #nosec G115 -- checked positive
	}
	if cfg.FlushInterval > 0 {
		p.flushInterval = time.Duration(cfg.FlushInterval) * time.Second
	}
	return p
}

func (p batchPolicy) options() *influxdb2.Options {
	// #nosec G115 -- interval is positive
	return influxdb2.DefaultOptions().
		SetBatchSize(p.size).
		SetFlushInterval(uint(p.flushInterval.Milliseconds()))
}

// Client records probe results and scene audits as time series.
//
// Writes never block a sweep. InfluxDB answers batches asynchronously, so
// a rejected batch is counted and surfaces on the next HealthCheck and
// through the SetOnError callback.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	connected bool
	onError   func(err error)

	// failures counts rejected batches; reported is the count the last
	// HealthCheck returned.
	failures uint64
	reported uint64
	lastErr  error

	mu sync.RWMutex
}

// Connect pings the server and prepares the batching writer.
//
// Parameters:
//   - cfg: InfluxDB settings; BatchSize and FlushInterval fall back to 100
//     points and 10 seconds when unset
//
// Returns:
//   - *Client: connected client
//   - error: ErrDisabled when InfluxDB is off, ErrConnectionFailed when the
//     server cannot be reached
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, newBatchPolicy(cfg).options())

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := &Client{
		client:    client,
		writeAPI:  writeAPI,
		connected: true,
	}
	go c.handleWriteErrors(writeAPI.Errors())

	return c, nil
}

func (c *Client) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		err = fmt.Errorf("%w: %w", ErrWriteFailed, err)

		c.mu.Lock()
		c.failures++
		c.lastErr = err
		callback := c.onError
		c.mu.Unlock()

		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes pending points and shuts the client down.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server and reports batches rejected since the
// previous check.
//
// Returns:
//   - error: ErrNotConnected after Close, a ping failure, or an
//     ErrWriteFailed error carrying the count and the latest cause
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return c.unreportedFailures()
}

// unreportedFailures returns the batches rejected since it last ran.
func (c *Client) unreportedFailures() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	failed := c.failures - c.reported
	c.reported = c.failures
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d batches rejected since last check: %w", failed, c.lastErr)
}

// IsConnected returns the last known connection state. A nil client is
// never connected, so callers can hold a nil *Client when InfluxDB is off.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets the callback for rejected batches.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush sends buffered points now. The monitor calls it when a sweep
// completes so a sweep lands as one batch. No-op after Close.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
