package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// sendBufferSize is the per-connection outbound frame buffer size.
// Roughly two seconds of 20 ms PCM16 frames.
const sendBufferSize = 128

// Conn is a single relay websocket connection.
type Conn struct {
	hub      *Hub
	ws       *websocket.Conn
	send     chan []byte
	role     Role
	deviceID string

	closeOnce sync.Once
}

func newConn(h *Hub, ws *websocket.Conn, role Role, deviceID string) *Conn {
	return &Conn{
		hub:      h,
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		role:     role,
		deviceID: deviceID,
	}
}

// readPump reads frames from the websocket until the peer goes away or
// the read deadline expires. Binary frames from a device connection are
// forwarded; everything else only refreshes liveness.
func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	cfg := c.hub.cfg
	c.ws.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.ws.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		msgType, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("relay read error", "device_id", c.deviceID, "role", c.role, "error", err)
			} else {
				c.hub.logger.Debug("relay connection closed", "device_id", c.deviceID, "role", c.role)
			}
			return
		}
		// Any frame resets the read deadline; stalled peers are evicted
		// when it expires.
		//nolint:errcheck // Best-effort deadline reset
		c.ws.SetReadDeadline(time.Now().Add(pingInterval + pongWait))

		if c.role == RoleDevice && msgType == websocket.BinaryMessage {
			c.hub.forward(c.deviceID, frame)
		}
	}
}

// writePump writes queued frames and periodic pings to the websocket.
func (c *Conn) writePump() {
	cfg := c.hub.cfg
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.ws.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.ws.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.ws.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues a frame without blocking. Frames for a full buffer or a
// closed connection are dropped; live audio has no use for stale frames.
func (c *Conn) trySend(frame []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- frame:
	default:
		// Slow viewer, skip the frame
	}
}

// close tears down the connection exactly once.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.ws.Close()
	})
}
