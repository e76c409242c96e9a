package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "trackhub-test",
			TLS:      false,
		},
		Auth: config.MQTTAuthConfig{
			Username: "",
			Password: "",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			Interval:    5,
			MaxAttempts: 10,
		},
	}
}

// disconnectedClient returns a client that was never connected.
// Validation paths must reject operations before touching the broker.
func disconnectedClient() *Client {
	return &Client{
		cfg:           testConfig(),
		subscriptions: make(map[string]subscription),
		closed:        make(chan struct{}),
	}
}

// =============================================================================
// Connection State Tests
// =============================================================================

func TestIsConnected_InitialState(t *testing.T) {
	client := disconnectedClient()

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	err := client.Close()
	if err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := disconnectedClient()

	err := client.HealthCheck(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Publish Validation Tests
// =============================================================================

func TestPublishEmptyTopic(t *testing.T) {
	client := disconnectedClient()

	err := client.Publish("", []byte("test"), 1, false)
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishInvalidQoS(t *testing.T) {
	client := disconnectedClient()

	err := client.Publish("test/topic", []byte("test"), 3, false)
	if !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish() error = %v, want ErrInvalidQoS", err)
	}
}

func TestPublishOversizedPayload(t *testing.T) {
	client := disconnectedClient()

	payload := make([]byte, maxPayloadSize+1)
	err := client.Publish("test/topic", payload, 1, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestPublishDisconnected(t *testing.T) {
	client := disconnectedClient()

	err := client.Publish("test/topic", []byte("test"), 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Subscribe Validation Tests
// =============================================================================

func TestSubscribeEmptyTopic(t *testing.T) {
	client := disconnectedClient()

	err := client.Subscribe("", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestSubscribeInvalidQoS(t *testing.T) {
	client := disconnectedClient()

	err := client.Subscribe("test/topic", 3, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidQoS", err)
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	client := disconnectedClient()

	err := client.Subscribe("test/topic", 1, nil)
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
}

func TestSubscribeDisconnected(t *testing.T) {
	client := disconnectedClient()

	err := client.Subscribe("test/topic", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestUnsubscribeEmptyTopic(t *testing.T) {
	client := disconnectedClient()

	err := client.Unsubscribe("")
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestSubscriptionCount_Empty(t *testing.T) {
	client := disconnectedClient()

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestHasSubscription_NotSubscribed(t *testing.T) {
	client := disconnectedClient()

	if client.HasSubscription("nonexistent/topic") {
		t.Error("HasSubscription() should be false for unsubscribed topic")
	}
}

// =============================================================================
// Reconnect Loop Tests
// =============================================================================

// fakeToken is a completed paho token carrying a fixed result.
type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeConnector counts connect attempts and fails until succeedAt is reached.
// succeedAt == 0 means every attempt fails.
type fakeConnector struct {
	mu        sync.Mutex
	attempts  int
	succeedAt int
}

func (f *fakeConnector) Connect() pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.succeedAt > 0 && f.attempts >= f.succeedAt {
		return &fakeToken{}
	}
	return &fakeToken{err: errors.New("connection refused")}
}

func (f *fakeConnector) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// reconnectingClient builds a client wired to a fake broker connection with a
// zero retry interval so the loop runs at full speed.
func reconnectingClient(conn connector, maxAttempts int) *Client {
	cfg := testConfig()
	cfg.Reconnect.Interval = 0
	cfg.Reconnect.MaxAttempts = maxAttempts

	return &Client{
		cfg:           cfg,
		connector:     conn,
		subscriptions: make(map[string]subscription),
		closed:        make(chan struct{}),
	}
}

// waitNotReconnecting polls until the retry loop has finished.
func waitNotReconnecting(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.reconnectMu.Lock()
		running := c.reconnecting
		c.reconnectMu.Unlock()
		if !running {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("reconnect loop still running")
}

func TestReconnectExhaustsBudgetThenSignalsFatal(t *testing.T) {
	conn := &fakeConnector{}
	client := reconnectingClient(conn, 10)

	exhausted := make(chan struct{})
	client.SetOnReconnectExhausted(func() { close(exhausted) })

	client.startReconnectLoop()

	select {
	case <-exhausted:
	case <-time.After(2 * time.Second):
		t.Fatal("OnReconnectExhausted was never called")
	}

	waitNotReconnecting(t, client)
	if got := conn.count(); got != 10 {
		t.Errorf("connect attempts = %d, want exactly 10", got)
	}

	// The exhausted state is latched and visible to health checks.
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrReconnectExhausted) {
		t.Errorf("HealthCheck() error = %v, want ErrReconnectExhausted", err)
	}
}

func TestReconnectStopsAfterSuccess(t *testing.T) {
	conn := &fakeConnector{succeedAt: 3}
	client := reconnectingClient(conn, 10)

	exhaustedCalled := false
	client.SetOnReconnectExhausted(func() { exhaustedCalled = true })

	client.startReconnectLoop()
	waitNotReconnecting(t, client)

	if got := conn.count(); got != 3 {
		t.Errorf("connect attempts = %d, want 3 (loop must stop on success)", got)
	}
	if exhaustedCalled {
		t.Error("OnReconnectExhausted fired despite successful reconnect")
	}
}

func TestReconnectStopsOnClose(t *testing.T) {
	conn := &fakeConnector{}
	cfg := testConfig()
	cfg.Reconnect.Interval = 1 // slow enough that close wins the race
	client := &Client{
		cfg:           cfg,
		connector:     conn,
		subscriptions: make(map[string]subscription),
		closed:        make(chan struct{}),
	}

	exhaustedCalled := false
	client.SetOnReconnectExhausted(func() { exhaustedCalled = true })

	client.startReconnectLoop()
	client.closeOnce.Do(func() { close(client.closed) })
	waitNotReconnecting(t, client)

	if exhaustedCalled {
		t.Error("OnReconnectExhausted fired after Close")
	}
}

func TestReconnectLoopNotRestartedWhileRunning(t *testing.T) {
	conn := &fakeConnector{}
	client := reconnectingClient(conn, 10)
	client.SetOnReconnectExhausted(func() {})

	client.reconnectMu.Lock()
	client.reconnecting = true
	client.reconnectMu.Unlock()

	client.startReconnectLoop()
	time.Sleep(50 * time.Millisecond)

	if got := conn.count(); got != 0 {
		t.Errorf("connect attempts = %d, want 0 (a second loop must not start)", got)
	}
}

// =============================================================================
// Options Tests
// =============================================================================

func TestBuildClientOptionsWill(t *testing.T) {
	opts := buildClientOptions(testConfig())

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != TopicServerStatus {
		t.Errorf("WillTopic = %q, want %q", opts.WillTopic, TopicServerStatus)
	}
	if string(opts.WillPayload) != PayloadOffline {
		t.Errorf("WillPayload = %q, want %q", opts.WillPayload, PayloadOffline)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}
}

func TestBuildClientOptionsReconnectDisabled(t *testing.T) {
	opts := buildClientOptions(testConfig())

	if opts.AutoReconnect {
		t.Error("AutoReconnect = true, want false (retry loop is client-owned)")
	}
	if opts.ConnectRetry {
		t.Error("ConnectRetry = true, want false")
	}
}

func TestBuildClientOptionsBrokerURL(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("Servers length = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want %q", got, "tcp://127.0.0.1:1883")
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if got := opts.Servers[0].String(); got != "ssl://127.0.0.1:1883" {
		t.Errorf("TLS broker URL = %q, want %q", got, "ssl://127.0.0.1:1883")
	}
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name: "DeviceStatus",
			builder: func() string {
				return Topics{}.DeviceStatus("ESP32_001")
			},
			expected: "device/ESP32_001/status",
		},
		{
			name: "DeviceTelemetry",
			builder: func() string {
				return Topics{}.DeviceTelemetry("ESP32_001")
			},
			expected: "device/ESP32_001/telemetry",
		},
		{
			name: "DeviceAudio",
			builder: func() string {
				return Topics{}.DeviceAudio("ESP32_001")
			},
			expected: "device/ESP32_001/audio",
		},
		{
			name: "DeviceAudioStream",
			builder: func() string {
				return Topics{}.DeviceAudioStream("ESP32_001")
			},
			expected: "device/ESP32_001/audio/stream",
		},
		{
			name: "DeviceLocation",
			builder: func() string {
				return Topics{}.DeviceLocation("ESP32_001")
			},
			expected: "device/ESP32_001/location",
		},
		{
			name: "DeviceControl",
			builder: func() string {
				return Topics{}.DeviceControl("ESP32_001")
			},
			expected: "device/ESP32_001/control",
		},
		{
			name: "DeviceFirmware",
			builder: func() string {
				return Topics{}.DeviceFirmware("ESP32_001")
			},
			expected: "device/ESP32_001/firmware",
		},
		{
			name: "ServerStatus",
			builder: func() string {
				return Topics{}.ServerStatus()
			},
			expected: "server/status",
		},
		{
			name: "AllDeviceStatus",
			builder: func() string {
				return Topics{}.AllDeviceStatus()
			},
			expected: "device/+/status",
		},
		{
			name: "AllDeviceTelemetry",
			builder: func() string {
				return Topics{}.AllDeviceTelemetry()
			},
			expected: "device/+/telemetry",
		},
		{
			name: "AllDeviceAudio",
			builder: func() string {
				return Topics{}.AllDeviceAudio()
			},
			expected: "device/+/audio",
		},
		{
			name: "AllDeviceLocation",
			builder: func() string {
				return Topics{}.AllDeviceLocation()
			},
			expected: "device/+/location",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.builder()
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, result, tt.expected)
			}
		})
	}
}

func TestSubscriptionSet(t *testing.T) {
	set := Topics{}.SubscriptionSet()

	want := []string{
		"device/+/status",
		"device/+/telemetry",
		"device/+/audio",
		"device/+/location",
	}

	if len(set) != len(want) {
		t.Fatalf("SubscriptionSet() length = %d, want %d", len(set), len(want))
	}
	for i, topic := range want {
		if set[i] != topic {
			t.Errorf("SubscriptionSet()[%d] = %q, want %q", i, set[i], topic)
		}
	}
}
