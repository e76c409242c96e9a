package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Fallbacks when the config leaves batching unset.
	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client is the hub's time-series sink. Tracker telemetry (battery, signal)
// and GPS fixes flow through the non-blocking write API, which batches
// points and ships them in the background; a dropped batch never stalls the
// MQTT ingest path.
//
// All methods are safe for concurrent use. A zero-value Client behaves as
// permanently disconnected, which lets the rest of the hub treat the
// time-series store as optional.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected bool
	mu        sync.RWMutex

	// onError receives async write failures from the batching writer.
	onError func(err error)
}

// Connect builds a client from the influxdb section of config.yaml, pings
// the server to confirm it is reachable and healthy, and starts the
// background error drain for the write API.
//
// Returns ErrDisabled when the section has enabled: false, so the caller
// can treat "no time-series store" as a normal deployment mode, and
// ErrConnectionFailed when the ping does not come back healthy.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- both values forced positive above
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flushInterval) * 1000) // the API takes milliseconds

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
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

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		connected: true,
	}

	go c.drainWriteErrors(c.writeAPI.Errors())

	return c, nil
}

// drainWriteErrors forwards async write failures to the onError callback.
// The channel must be drained even with no callback set, or the write API
// blocks once its error buffer fills.
func (c *Client) drainWriteErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes pending points and shuts the client down. Safe on a
// zero-value Client.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()

	return nil
}

// HealthCheck pings the server and reports whether it answers healthy.
// ErrNotConnected short-circuits the ping when the client was never
// connected or has been closed.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}

	return nil
}

// IsConnected reports the last known connection state without contacting
// the server; use HealthCheck for an active ping.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError registers a callback for async write failures. Writes are
// batched and non-blocking, so this is the only place a failed telemetry
// point surfaces.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until all buffered points are written. No-op when the
// client is closed or was never connected.
func (c *Client) Flush() {
	if c.writeAPI == nil {
		return
	}

	if !c.IsConnected() {
		return
	}

	c.writeAPI.Flush()
}
