package realtime

import (
	"encoding/json"
	"testing"

	"github.com/Sskr2000us/nexa-core/internal/infrastructure/config"
)

func newTestHub() *Hub {
	return NewHub(config.WebSocketConfig{
		Path:           "/ws",
		MaxMessageSize: 4096,
		PingInterval:   30,
		PongTimeout:    60,
	}, nil)
}

// attach registers a connectionless client for hub-level tests.
func attach(t *testing.T, hub *Hub) *Client {
	t.Helper()
	client := newClient(hub, nil)
	hub.Register(client)
	return client
}

// drain collects all messages currently queued for the client.
func drain(client *Client) []Message {
	var msgs []Message
	for {
		select {
		case data := <-client.send:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestHomeChannelFanout(t *testing.T) {
	hub := newTestHub()
	c1 := attach(t, hub)
	c2 := attach(t, hub)
	c3 := attach(t, hub)

	hub.Subscribe(c1, HomeChannel("home-1"))
	hub.Subscribe(c2, HomeChannel("home-1"))
	hub.Subscribe(c3, HomeChannel("home-2"))

	hub.PublishHome("home-1", EventAlertNew, map[string]string{"severity": "warning"})

	for i, c := range []*Client{c1, c2} {
		msgs := drain(c)
		if len(msgs) != 1 {
			t.Fatalf("client %d received %d messages, want 1", i+1, len(msgs))
		}
		msg := msgs[0]
		if msg.Type != MsgTypeEvent || msg.Event != EventAlertNew {
			t.Errorf("client %d message = %+v", i+1, msg)
		}
		if msg.Channel != "home:home-1" {
			t.Errorf("client %d channel = %q", i+1, msg.Channel)
		}
	}

	if msgs := drain(c3); len(msgs) != 0 {
		t.Errorf("subscriber of another home received %d messages, want 0", len(msgs))
	}
}

func TestDeviceChannel(t *testing.T) {
	hub := newTestHub()
	client := attach(t, hub)
	hub.Subscribe(client, DeviceChannel("light-1"))

	hub.PublishDevice("light-1", EventDeviceStateChange, map[string]string{"state": "on"})
	hub.PublishDevice("light-2", EventDeviceStateChange, map[string]string{"state": "off"})

	msgs := drain(client)
	if len(msgs) != 1 {
		t.Fatalf("received %d messages, want 1", len(msgs))
	}
	if msgs[0].Channel != "device:light-1" {
		t.Errorf("channel = %q, want device:light-1", msgs[0].Channel)
	}
}

func TestSubscribeIdempotent(t *testing.T) {
	hub := newTestHub()
	client := attach(t, hub)

	hub.Subscribe(client, HomeChannel("home-1"))
	hub.Subscribe(client, HomeChannel("home-1"))

	if n := hub.SubscriberCount(HomeChannel("home-1")); n != 1 {
		t.Errorf("SubscriberCount = %d, want 1", n)
	}

	hub.PublishHome("home-1", EventAutomationExecuted, nil)

	if msgs := drain(client); len(msgs) != 1 {
		t.Errorf("received %d messages, want exactly 1 despite double subscribe", len(msgs))
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	hub := newTestHub()
	client := attach(t, hub)
	hub.Subscribe(client, HomeChannel("home-1"))

	hub.Unsubscribe(client, HomeChannel("home-1"))
	hub.Unsubscribe(client, HomeChannel("home-1"))
	hub.Unsubscribe(client, HomeChannel("never-joined"))

	hub.PublishHome("home-1", EventAlertNew, nil)

	if msgs := drain(client); len(msgs) != 0 {
		t.Errorf("received %d messages after unsubscribe, want 0", len(msgs))
	}
}

func TestUnregisterCleansSubscriptions(t *testing.T) {
	hub := newTestHub()
	gone := attach(t, hub)
	stays := attach(t, hub)

	hub.Subscribe(gone, HomeChannel("home-1"))
	hub.Subscribe(gone, DeviceChannel("light-1"))
	hub.Subscribe(stays, HomeChannel("home-1"))

	hub.Unregister(gone)

	if n := hub.ClientCount(); n != 1 {
		t.Errorf("ClientCount = %d, want 1", n)
	}
	if n := hub.SubscriberCount(HomeChannel("home-1")); n != 1 {
		t.Errorf("SubscriberCount(home-1) = %d, want 1", n)
	}
	if n := hub.SubscriberCount(DeviceChannel("light-1")); n != 0 {
		t.Errorf("SubscriberCount(light-1) = %d, want 0", n)
	}

	// Publishing after disconnect must neither panic nor deliver to the
	// departed client.
	hub.PublishHome("home-1", EventAlertNew, nil)

	if msgs := drain(stays); len(msgs) != 1 {
		t.Errorf("remaining subscriber received %d messages, want 1", len(msgs))
	}
}

func TestUnregisterTwice(t *testing.T) {
	hub := newTestHub()
	client := attach(t, hub)

	hub.Unregister(client)
	hub.Unregister(client) // must not panic on double close
}

func TestPublishToEmptyChannel(t *testing.T) {
	hub := newTestHub()
	hub.Publish(HomeChannel("nobody-home"), EventAlertNew, nil)
}

func TestValidChannel(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"home:home-1", true},
		{"device:light-1", true},
		{"home:", false},
		{"device:", false},
		{"scene:movie-night", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := validChannel(tt.name); got != tt.valid {
			t.Errorf("validChannel(%q) = %v, want %v", tt.name, got, tt.valid)
		}
	}
}
