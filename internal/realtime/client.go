package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// sendBufferSize is the per-client outbound message buffer size.
const sendBufferSize = 256

// upgrader configures the WebSocket upgrader. Origin checking is
// handled by the CORS middleware in front of the upgrade handler.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Client represents one connected WebSocket peer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// newClient builds a client around an accepted connection.
func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

// ServeWS upgrades the HTTP request to a WebSocket connection and starts
// the client's read and write pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(h, conn)
	h.Register(client)

	go client.writePump()
	go client.readPump()
}

// readPump reads messages from the connection until it closes, then
// unregisters the client so its subscriptions are cleaned up.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any client message resets the read deadline, keeping the
		// connection alive even without protocol-level pong replies.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

// writePump writes queued messages and periodic pings to the connection.
func (c *Client) writePump() {
	cfg := c.hub.cfg
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes one incoming message.
func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case MsgTypeSubscribe:
		c.handleSubscribe(msg)
	case MsgTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case MsgTypePing:
		c.sendResponse(msg.ID, MsgTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// parseChannels extracts and validates the channel list from a
// subscribe/unsubscribe payload.
func (c *Client) parseChannels(msg Message) ([]string, bool) {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		c.sendError(msg.ID, "invalid payload")
		return nil, false
	}

	var sub subscribePayload
	if err := json.Unmarshal(payloadBytes, &sub); err != nil {
		c.sendError(msg.ID, "invalid payload")
		return nil, false
	}

	for _, ch := range sub.Channels {
		if !validChannel(ch) {
			c.sendError(msg.ID, "invalid channel: "+ch)
			return nil, false
		}
	}
	return sub.Channels, true
}

func (c *Client) handleSubscribe(msg Message) {
	channels, ok := c.parseChannels(msg)
	if !ok {
		return
	}

	for _, ch := range channels {
		c.hub.Subscribe(c, ch)
	}
	c.hub.logger.Debug("realtime client subscribed", "channels", channels)

	c.sendResponse(msg.ID, MsgTypeResponse, map[string]any{
		"subscribed": channels,
	})
}

func (c *Client) handleUnsubscribe(msg Message) {
	channels, ok := c.parseChannels(msg)
	if !ok {
		return
	}

	for _, ch := range channels {
		c.hub.Unsubscribe(c, ch)
	}

	c.sendResponse(msg.ID, MsgTypeResponse, map[string]any{
		"unsubscribed": channels,
	})
}

// trySend attempts to queue data for the client. It absorbs the
// send-on-closed-channel panic from a client disconnecting mid-publish
// and drops the message when the buffer is full.
func (c *Client) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
		// Client buffer full, skip
	}
}

// sendResponse sends a response message to the client. It routes through
// trySend to safely handle closed channels during shutdown.
func (c *Client) sendResponse(id, msgType string, payload any) {
	msg := Message{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// sendError sends an error message to the client.
func (c *Client) sendError(id, message string) {
	c.sendResponse(id, MsgTypeError, map[string]string{"message": message})
}
