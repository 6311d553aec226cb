package device

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sskr2000us/nexa-core/internal/infrastructure/mqtt"
)

// mqttPublisher is the subset of the MQTT client the commander uses.
type mqttPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// commandQoS is the delivery guarantee for command publications.
// At-least-once: a lost command is worse than a duplicated one for
// idempotent device commands (turn_on twice is still on).
const commandQoS = 1

// commandMessage is the wire payload for device command publications.
type commandMessage struct {
	DeviceID   string         `json:"device_id"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// sceneMessage is the wire payload for scene activation publications.
type sceneMessage struct {
	SceneID   string `json:"scene_id"`
	Timestamp string `json:"timestamp"`
}

// Commander dispatches device commands and scene activations over MQTT.
// The protocol bridges subscribe to the command topics and translate the
// generic command into protocol-specific operations.
//
// Commander implements the automation engine's action dispatch interface.
type Commander struct {
	registry *Registry
	mqtt     mqttPublisher
	logger   Logger
}

// NewCommander creates a commander publishing through the given client.
//
// Parameters:
//   - registry: device lookups (protocol routing)
//   - publisher: connected MQTT client
//   - logger: structured logger; nil disables logging
func NewCommander(registry *Registry, publisher mqttPublisher, logger Logger) *Commander {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Commander{
		registry: registry,
		mqtt:     publisher,
		logger:   logger,
	}
}

// SendCommand publishes a command to the device's protocol bridge.
// The returned detail describes what was dispatched; delivery to the
// physical device is asynchronous and reported back via state topics.
func (c *Commander) SendCommand(ctx context.Context, deviceID, command string, parameters map[string]any) (string, error) {
	d, err := c.registry.GetDevice(ctx, deviceID)
	if err != nil {
		return "", fmt.Errorf("looking up device %s: %w", deviceID, err)
	}

	payload, err := json.Marshal(commandMessage{
		DeviceID:   deviceID,
		Command:    command,
		Parameters: parameters,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling command: %w", err)
	}

	topic := mqtt.Topics{}.DeviceCommand(string(d.Protocol), deviceID)
	if err := c.mqtt.Publish(topic, payload, commandQoS, false); err != nil {
		return "", fmt.Errorf("publishing command: %w", err)
	}

	c.logger.Debug("command dispatched", "device_id", deviceID, "command", command, "topic", topic)
	return fmt.Sprintf("command %q dispatched to %s", command, d.Name), nil
}

// ActivateScene publishes a scene activation request.
func (c *Commander) ActivateScene(_ context.Context, sceneID string) (string, error) {
	payload, err := json.Marshal(sceneMessage{
		SceneID:   sceneID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling scene activation: %w", err)
	}

	topic := mqtt.Topics{}.SceneActivate(sceneID)
	if err := c.mqtt.Publish(topic, payload, commandQoS, false); err != nil {
		return "", fmt.Errorf("publishing scene activation: %w", err)
	}

	c.logger.Debug("scene activation dispatched", "scene_id", sceneID)
	return fmt.Sprintf("scene %q activation requested", sceneID), nil
}
