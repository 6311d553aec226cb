package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Sskr2000us/nexa-core/internal/infrastructure/config"
	"github.com/Sskr2000us/nexa-core/internal/infrastructure/logging"
)

// Event names published over the hub.
const (
	EventDeviceStateChange  = "device:state-change"
	EventAlertNew           = "alert:new"
	EventAutomationExecuted = "automation:executed"
)

// Channel name prefixes.
const (
	homeChannelPrefix   = "home:"
	deviceChannelPrefix = "device:"
)

// HomeChannel returns the channel name carrying home-wide events.
func HomeChannel(homeID string) string {
	return homeChannelPrefix + homeID
}

// DeviceChannel returns the channel name carrying a device's state changes.
func DeviceChannel(deviceID string) string {
	return deviceChannelPrefix + deviceID
}

// validChannel reports whether name is a well-formed channel name.
// Only home: and device: channels exist; the suffix must be non-empty.
func validChannel(name string) bool {
	for _, prefix := range []string{homeChannelPrefix, deviceChannelPrefix} {
		if strings.HasPrefix(name, prefix) && len(name) > len(prefix) {
			return true
		}
	}
	return false
}

// Message is the wire envelope for all hub traffic, in both directions.
type Message struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Event     string `json:"event,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Message type values.
const (
	MsgTypeSubscribe   = "subscribe"
	MsgTypeUnsubscribe = "unsubscribe"
	MsgTypePing        = "ping"
	MsgTypePong        = "pong"
	MsgTypeEvent       = "event"
	MsgTypeResponse    = "response"
	MsgTypeError       = "error"
)

// subscribePayload is the payload for subscribe/unsubscribe messages.
type subscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub routes published events to subscribed WebSocket clients.
//
// Lock ordering: the hub lock is released before any per-client send,
// so a slow client can never stall registration or publishing.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}
}

// NewHub creates a hub ready to accept clients.
//
// Parameters:
//   - cfg: WebSocket tuning (buffer sizes, ping cadence)
//   - logger: structured logger; nil falls back to the default logger
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		clients:  make(map[*Client]struct{}),
		channels: make(map[string]map[*Client]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("realtime client connected", "clients", h.ClientCount())
}

// Unregister removes a client and all of its channel subscriptions.
// Only the goroutine that actually removes the client from the map
// closes the send channel, preventing double-close panics on shutdown.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	for name, subs := range h.channels {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, name)
		}
	}
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("realtime client disconnected", "clients", h.ClientCount())
}

// Subscribe adds the client to a channel. Subscribing twice to the same
// channel is a no-op; the client still receives each event exactly once.
func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[client] = struct{}{}
	h.mu.Unlock()
}

// Unsubscribe removes the client from a channel. Unsubscribing from a
// channel the client never joined is a no-op.
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	if subs, ok := h.channels[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	h.mu.Unlock()
}

// Publish sends a named event to every client subscribed to the channel.
// Delivery is best-effort: clients with full buffers or mid-disconnect
// are skipped without blocking the publisher.
func (h *Hub) Publish(channel, event string, payload any) {
	msg := Message{
		Type:      MsgTypeEvent,
		Event:     event,
		Channel:   channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	// Snapshot subscribers under the read lock, then release before sending.
	h.mu.RLock()
	subscribers := make([]*Client, 0, len(h.channels[channel]))
	for client := range h.channels[channel] {
		subscribers = append(subscribers, client)
	}
	h.mu.RUnlock()

	for _, client := range subscribers {
		client.trySend(data)
	}
	if len(subscribers) > 0 {
		h.logger.Debug("event published", "channel", channel, "event", event, "recipients", len(subscribers))
	}
}

// PublishHome sends an event on the home channel. This is the hook the
// automation engine and alert service use to notify connected apps.
func (h *Hub) PublishHome(homeID, event string, payload any) {
	h.Publish(HomeChannel(homeID), event, payload)
}

// PublishDevice sends an event on a device channel.
func (h *Hub) PublishDevice(deviceID, event string, payload any) {
	h.Publish(DeviceChannel(deviceID), event, payload)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients subscribed to a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// closeAll disconnects every client and closes its send channel so the
// write pumps exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
	h.channels = make(map[string]map[*Client]struct{})
}
