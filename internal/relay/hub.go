package relay

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ngocdanh181/ChildTrackingIOT/internal/infrastructure/config"
)

// Role identifies which side of an audio stream a connection is.
type Role string

const (
	// RoleDevice is the tracker side: it produces binary audio frames.
	RoleDevice Role = "device"
	// RoleViewer is the listening client: it consumes the frames.
	RoleViewer Role = "viewer"
)

// ParseRole maps the "type" query parameter to a Role. Firmware connects
// as "esp32" and the mobile app as "android"; the canonical names are
// accepted too.
func ParseRole(s string) (Role, error) {
	switch s {
	case "esp32", "device":
		return RoleDevice, nil
	case "android", "viewer":
		return RoleViewer, nil
	default:
		return "", ErrInvalidRole
	}
}

// Logger defines the logging interface used by the Hub.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// Hub pairs one device connection with one viewer connection per tracker
// and forwards binary audio frames between them.
//
// Each table holds at most one connection per device id: a new connection
// for an occupied slot closes and replaces the previous holder. Forwarding
// is a straight table lookup and a buffered channel send; frames with no
// viewer present are dropped. Nothing on this path touches storage.
type Hub struct {
	cfg     config.RelayConfig
	logger  Logger
	devices map[string]*Conn
	viewers map[string]*Conn
	mu      sync.Mutex
}

// NewHub creates an audio relay hub.
func NewHub(cfg config.RelayConfig) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  noopLogger{},
		devices: make(map[string]*Conn),
		viewers: make(map[string]*Conn),
	}
}

// SetLogger sets the logger for the hub.
func (h *Hub) SetLogger(logger Logger) {
	h.logger = logger
}

// Run blocks until the context is cancelled, then closes all connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// HandleWS upgrades an HTTP request into a relay connection. The request
// must carry "type" (role) and "deviceId" query parameters; anything else
// is rejected before the upgrade.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	role, err := ParseRole(r.URL.Query().Get("type"))
	if err != nil {
		http.Error(w, "type query parameter must be esp32|device or android|viewer", http.StatusBadRequest)
		return
	}
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		http.Error(w, "deviceId query parameter is required", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := newConn(h, ws, role, deviceID)
	h.register(conn)

	go conn.writePump()
	go conn.readPump()
}

// register installs a connection in the table for its role, closing any
// superseded holder first so a reconnecting peer never races its own
// stale session.
func (h *Hub) register(conn *Conn) {
	table := h.tableFor(conn.role)

	h.mu.Lock()
	prev := table[conn.deviceID]
	table[conn.deviceID] = conn
	h.mu.Unlock()

	if prev != nil {
		prev.close()
		h.logger.Debug("superseded relay connection closed", "device_id", conn.deviceID, "role", conn.role)
	}
	h.logger.Info("relay connection registered", "device_id", conn.deviceID, "role", conn.role)
}

// unregister removes a connection, but only while it is still the current
// table entry. A close arriving after the slot was re-taken must not evict
// the replacement.
func (h *Hub) unregister(conn *Conn) {
	table := h.tableFor(conn.role)

	h.mu.Lock()
	current := table[conn.deviceID] == conn
	if current {
		delete(table, conn.deviceID)
	}
	h.mu.Unlock()

	if current {
		h.logger.Debug("relay connection unregistered", "device_id", conn.deviceID, "role", conn.role)
	}
}

// forward hands a binary audio frame from a device to the current viewer
// for that device, if any. Frames without a viewer are dropped.
func (h *Hub) forward(deviceID string, frame []byte) {
	h.mu.Lock()
	viewer := h.viewers[deviceID]
	h.mu.Unlock()

	if viewer == nil {
		h.logger.Debug("audio frame dropped, no viewer", "device_id", deviceID)
		return
	}
	viewer.trySend(frame)
}

// Counts returns the number of registered device and viewer connections.
func (h *Hub) Counts() (devices, viewers int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.devices), len(h.viewers)
}

func (h *Hub) tableFor(role Role) map[string]*Conn {
	if role == RoleDevice {
		return h.devices
	}
	return h.viewers
}

// closeAll disconnects every registered connection.
func (h *Hub) closeAll() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.devices)+len(h.viewers))
	for id, c := range h.devices {
		conns = append(conns, c)
		delete(h.devices, id)
	}
	for id, c := range h.viewers {
		conns = append(conns, c)
		delete(h.viewers, id)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}
