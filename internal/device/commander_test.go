package device

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

// mockMQTT records published messages.
type mockMQTT struct {
	mu       sync.Mutex
	messages []publishedMessage
	fail     error
}

type publishedMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
}

func (m *mockMQTT) Publish(topic string, payload []byte, qos byte, _ bool) error {
	if m.fail != nil {
		return m.fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, publishedMessage{Topic: topic, Payload: payload, QoS: qos})
	return nil
}

func setupCommander(t *testing.T) (*Commander, *mockMQTT) {
	t.Helper()

	repo := newMockRepository()
	repo.devices["light-1"] = testDevice("light-1", TypeLight, State{"state": "off"})

	registry := NewRegistry(repo)
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	broker := &mockMQTT{}
	return NewCommander(registry, broker, nil), broker
}

func TestCommander_SendCommand(t *testing.T) {
	commander, broker := setupCommander(t)

	detail, err := commander.SendCommand(context.Background(), "light-1", "turn_on",
		map[string]any{"brightness": 80})
	if err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if !strings.Contains(detail, "turn_on") {
		t.Errorf("detail = %q", detail)
	}

	if len(broker.messages) != 1 {
		t.Fatalf("published = %d, want 1", len(broker.messages))
	}
	msg := broker.messages[0]
	if msg.Topic != "nexa/command/zigbee/light-1" {
		t.Errorf("topic = %q", msg.Topic)
	}
	if msg.QoS != 1 {
		t.Errorf("qos = %d, want 1", msg.QoS)
	}

	var cmd commandMessage
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		t.Fatalf("unmarshaling payload: %v", err)
	}
	if cmd.DeviceID != "light-1" || cmd.Command != "turn_on" {
		t.Errorf("payload = %+v", cmd)
	}
	if cmd.Parameters["brightness"] != float64(80) {
		t.Errorf("parameters = %v", cmd.Parameters)
	}
}

func TestCommander_SendCommandUnknownDevice(t *testing.T) {
	commander, broker := setupCommander(t)

	_, err := commander.SendCommand(context.Background(), "ghost", "turn_on", nil)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("error = %v, want ErrDeviceNotFound", err)
	}
	if len(broker.messages) != 0 {
		t.Errorf("published = %d, want 0", len(broker.messages))
	}
}

func TestCommander_SendCommandPublishFailure(t *testing.T) {
	commander, broker := setupCommander(t)
	broker.fail = errors.New("broker gone")

	_, err := commander.SendCommand(context.Background(), "light-1", "turn_on", nil)
	if err == nil || !strings.Contains(err.Error(), "broker gone") {
		t.Errorf("error = %v, want publish failure", err)
	}
}

func TestCommander_ActivateScene(t *testing.T) {
	commander, broker := setupCommander(t)

	detail, err := commander.ActivateScene(context.Background(), "movie-night")
	if err != nil {
		t.Fatalf("ActivateScene: %v", err)
	}
	if !strings.Contains(detail, "movie-night") {
		t.Errorf("detail = %q", detail)
	}

	if len(broker.messages) != 1 {
		t.Fatalf("published = %d, want 1", len(broker.messages))
	}
	if broker.messages[0].Topic != "nexa/scene/movie-night/activate" {
		t.Errorf("topic = %q", broker.messages[0].Topic)
	}
}
