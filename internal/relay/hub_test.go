package relay

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/config"
)

func testConfig() config.RelayConfig {
	return config.RelayConfig{
		Path:           "/ws",
		MaxMessageSize: 65536,
		PingInterval:   30,
		PongTimeout:    10,
	}
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(testConfig())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, role, deviceID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?type=" + role + "&deviceId=" + deviceID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s as %s failed: %v", deviceID, role, err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// waitFor polls cond until it holds or the deadline passes. Registration
// happens on the server goroutine after the handshake, so tests must not
// assume it is visible the instant Dial returns.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

// ====== Role Parsing ======

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"esp32", RoleDevice, false},
		{"device", RoleDevice, false},
		{"android", RoleViewer, false},
		{"viewer", RoleViewer, false},
		{"browser", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRole(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q) failed: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// ====== Upgrade Validation ======

func TestHandleWSRejectsBadParams(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name  string
		query string
	}{
		{"missing type", "?deviceId=ESP32_001"},
		{"unknown type", "?type=browser&deviceId=ESP32_001"},
		{"missing device id", "?type=esp32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.query)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

// ====== Forwarding ======

func TestForwardDeviceToViewer(t *testing.T) {
	hub, srv := newTestServer(t)

	viewer := dial(t, srv, "android", "ESP32_001")
	device := dial(t, srv, "esp32", "ESP32_001")
	waitFor(t, func() bool {
		d, v := hub.Counts()
		return d == 1 && v == 1
	})

	// One 20 ms PCM16 frame at 8 kHz.
	frame := make([]byte, 320)
	for i := range frame {
		frame[i] = byte(i)
	}
	if err := device.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("device write failed: %v", err)
	}

	viewer.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, got, err := viewer.ReadMessage()
	if err != nil {
		t.Fatalf("viewer read failed: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", msgType)
	}
	if !bytes.Equal(got, frame) {
		t.Error("forwarded frame does not match the original")
	}
}

func TestFrameWithoutViewerIsDropped(t *testing.T) {
	hub, srv := newTestServer(t)

	device := dial(t, srv, "esp32", "ESP32_001")
	waitFor(t, func() bool {
		d, _ := hub.Counts()
		return d == 1
	})

	if err := device.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("device write failed: %v", err)
	}

	// A late viewer must not receive frames sent before it connected.
	viewer := dial(t, srv, "android", "ESP32_001")
	waitFor(t, func() bool {
		_, v := hub.Counts()
		return v == 1
	})

	viewer.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := viewer.ReadMessage(); err == nil {
		t.Error("viewer received a frame that predates its connection")
	}
}

func TestViewerIsolationBetweenDevices(t *testing.T) {
	hub, srv := newTestServer(t)

	viewerA := dial(t, srv, "android", "ESP32_001")
	viewerB := dial(t, srv, "android", "ESP32_002")
	device := dial(t, srv, "esp32", "ESP32_001")
	waitFor(t, func() bool {
		d, v := hub.Counts()
		return d == 1 && v == 2
	})

	if err := device.WriteMessage(websocket.BinaryMessage, []byte{9, 9, 9}); err != nil {
		t.Fatalf("device write failed: %v", err)
	}

	viewerA.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := viewerA.ReadMessage(); err != nil {
		t.Fatalf("paired viewer should receive the frame: %v", err)
	}

	viewerB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := viewerB.ReadMessage(); err == nil {
		t.Error("viewer for another device received the frame")
	}
}

// ====== Supersede ======

func TestNewConnectionSupersedesOld(t *testing.T) {
	hub, srv := newTestServer(t)

	first := dial(t, srv, "esp32", "ESP32_001")
	waitFor(t, func() bool {
		d, _ := hub.Counts()
		return d == 1
	})

	dial(t, srv, "esp32", "ESP32_001")

	// The superseded connection is closed by the hub; reads on it fail.
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := first.ReadMessage(); err == nil {
		t.Error("superseded connection should have been closed")
	}

	devices, _ := hub.Counts()
	if devices != 1 {
		t.Errorf("device count = %d, want 1 after supersede", devices)
	}
}

func TestStaleCloseDoesNotEvictReplacement(t *testing.T) {
	hub, srv := newTestServer(t)

	first := dial(t, srv, "esp32", "ESP32_001")
	waitFor(t, func() bool {
		d, _ := hub.Counts()
		return d == 1
	})

	second := dial(t, srv, "esp32", "ESP32_001")
	waitFor(t, func() bool {
		first.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		_, _, err := first.ReadMessage()
		return err != nil
	})

	// The first connection's teardown has run; the replacement must
	// still hold the slot and still forward.
	viewer := dial(t, srv, "android", "ESP32_001")
	waitFor(t, func() bool {
		d, v := hub.Counts()
		return d == 1 && v == 1
	})

	if err := second.WriteMessage(websocket.BinaryMessage, []byte{7}); err != nil {
		t.Fatalf("replacement write failed: %v", err)
	}
	viewer.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := viewer.ReadMessage(); err != nil {
		t.Fatalf("replacement connection no longer forwards: %v", err)
	}
}

// ====== Liveness ======

func TestSilentDeviceEvictedOnPongTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.PingInterval = 1
	cfg.PongTimeout = 1
	hub := NewHub(cfg)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	dial(t, srv, "esp32", "ESP32_001")
	waitFor(t, func() bool {
		d, _ := hub.Counts()
		return d == 1
	})

	// The client never reads, so the server's pings go unanswered and the
	// read deadline (ping interval + pong wait) expires.
	deadline := time.Now().Add(6 * time.Second)
	for time.Now().Before(deadline) {
		if d, _ := hub.Counts(); d == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("silent device was not evicted after the pong timeout")
}
