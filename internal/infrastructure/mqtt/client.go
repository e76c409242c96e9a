package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang with hub-specific functionality.
//
// It provides connection management, message publishing, subscription
// handling, and bounded reconnection: connection loss triggers a
// fixed-interval retry loop capped at a configured attempt count, and
// exhausting the budget is reported through OnReconnectExhausted so the
// composition root can fail the process.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// connector is the broker connect call used by the retry loop.
	// Normally the paho client itself; swapped for a fake in tests.
	connector connector

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// reconnecting guards against overlapping retry loops; exhausted is
	// latched once the attempt budget runs out and never cleared.
	reconnecting bool
	exhausted    bool
	reconnectMu  sync.Mutex

	// closed is closed by Close() to stop an in-flight retry loop.
	closed    chan struct{}
	closeOnce sync.Once

	// Callbacks for connection events (optional, set via the Set* methods).
	onConnect    func()
	onDisconnect func(err error)
	onExhausted  func()
	callbackMu   sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// connector is the slice of the paho client the reconnect loop depends on.
type connector interface {
	Connect() pahomqtt.Token
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// They should not block for extended periods.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures the last-will message (server/status = offline, retained)
//  3. Attempts initial connection with timeout
//  4. Publishes retained server/status = online
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If initial connection fails within timeout
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		subscriptions: make(map[string]subscription),
		closed:        make(chan struct{}),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	c.connector = c.client
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Set connected state immediately after successful connection.
	// The OnConnectHandler callback runs asynchronously and may not have
	// executed yet, so we set it here to ensure IsConnected() returns true.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// handleConnect is called when the connection is established (initial and
// every successful reconnect).
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	// Subscriptions do not survive a clean-session reconnect; restore the
	// full tracked set every time.
	c.restoreSubscriptions()

	c.publishOnlineStatus()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost. It notifies the
// disconnect callback and starts the bounded retry loop.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}

	c.startReconnectLoop()
}

// startReconnectLoop launches the retry loop unless one is already running
// or the client has been closed.
func (c *Client) startReconnectLoop() {
	select {
	case <-c.closed:
		return
	default:
	}

	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	go c.reconnectLoop()
}

// reconnectLoop retries the broker connection on a fixed interval up to the
// configured attempt budget. Success hands control back to the paho
// OnConnect handler (which restores subscriptions); exhaustion fires the
// OnReconnectExhausted callback and gives up for good.
func (c *Client) reconnectLoop() {
	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	interval := time.Duration(c.cfg.Reconnect.Interval) * time.Second
	maxAttempts := c.cfg.Reconnect.MaxAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-c.closed:
			return
		case <-time.After(interval):
		}

		if logger := c.getLogger(); logger != nil {
			logger.Info("MQTT reconnect attempt",
				"attempt", attempt,
				"max_attempts", maxAttempts,
			)
		}

		token := c.connector.Connect()
		if token.WaitTimeout(defaultConnectTimeout) && token.Error() == nil {
			return // handleConnect runs via the OnConnect handler
		}

		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT reconnect failed",
				"attempt", attempt,
				"error", token.Error(),
			)
		}
	}

	if logger := c.getLogger(); logger != nil {
		logger.Error("MQTT reconnect attempts exhausted", "attempts", maxAttempts)
	}

	c.reconnectMu.Lock()
	c.exhausted = true
	c.reconnectMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onExhausted
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		// Re-subscribe (ignore errors during reconnection)
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// publishOnlineStatus publishes the hub's retained online presence.
func (c *Client) publishOnlineStatus() {
	c.client.Publish(TopicServerStatus, willQoS, true, PayloadOnline)
}

// Close gracefully disconnects from the MQTT broker.
//
// It performs:
//  1. Stops any in-flight reconnect loop
//  2. Publishes retained server/status = offline (clean shutdown)
//  3. Disconnects from broker with a quiesce period
//
// Returns:
//   - error: If disconnect fails (connection already closed is not an error)
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.closed != nil {
		c.closeOnce.Do(func() { close(c.closed) })
	}

	if c.IsConnected() {
		token := c.client.Publish(TopicServerStatus, willQoS, true, PayloadOffline)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	c.reconnectMu.Lock()
	exhausted := c.exhausted
	c.reconnectMu.Unlock()
	if exhausted {
		return ErrReconnectExhausted
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked when a connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetOnReconnectExhausted sets a callback invoked once the reconnect
// attempt budget has been used up. The client stops retrying; the hub is
// expected to shut down, since it is useless without the bus.
func (c *Client) SetOnReconnectExhausted(callback func()) {
	c.callbackMu.Lock()
	c.onExhausted = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for connection and handler events.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
