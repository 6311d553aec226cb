package api

import (
	"context"
	"encoding/json"

	"github.com/Sskr2000us/nexa-core/internal/device"
	"github.com/Sskr2000us/nexa-core/internal/infrastructure/mqtt"
	"github.com/Sskr2000us/nexa-core/internal/realtime"
)

// stateMessage is the payload bridges publish on nexa/state/{protocol}/{device}.
type stateMessage struct {
	DeviceID string         `json:"device_id"`
	State    map[string]any `json:"state"`
}

// subscribeStateUpdates subscribes to MQTT device state topics and relays
// changes to the registry, the realtime hub, and the telemetry store.
func (s *Server) subscribeStateUpdates() error {
	if s.mqtt == nil {
		return nil // MQTT not configured; state relay disabled
	}

	topic := mqtt.Topics{}.AllDeviceStates()
	s.logger.Info("subscribing to state updates for realtime relay", "topic", topic)

	return s.mqtt.Subscribe(topic, 1, func(t string, payload []byte) error {
		var msg stateMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.Warn("failed to parse state message", "topic", t, "error", err)
			return nil
		}
		if msg.DeviceID == "" || msg.State == nil {
			return nil
		}

		s.relayStateChange(msg.DeviceID, msg.State)
		return nil
	})
}

// relayStateChange applies one state update end to end. Registry and
// telemetry failures are logged but never stop the realtime push; the
// bridges republish state on their own cadence.
func (s *Server) relayStateChange(deviceID string, state map[string]any) {
	ctx := context.Background()

	d, err := s.registry.GetDevice(ctx, deviceID)
	if err != nil {
		s.logger.Debug("state update for unknown device", "device_id", deviceID, "error", err)
		return
	}

	if err := s.registry.SetDeviceState(ctx, deviceID, device.State(state)); err != nil {
		s.logger.Debug("state update to registry failed", "device_id", deviceID, "error", err)
	}

	payload := map[string]any{
		"device_id": deviceID,
		"home_id":   d.HomeID,
		"state":     state,
	}
	s.hub.PublishDevice(deviceID, realtime.EventDeviceStateChange, payload)
	s.hub.PublishHome(d.HomeID, realtime.EventDeviceStateChange, payload)

	// Write numeric state fields to the time-series store for telemetry
	if s.telemetry != nil {
		for field, val := range state {
			switch v := val.(type) {
			case float64:
				s.telemetry.WriteDeviceMetric(d.HomeID, deviceID, field, v)
			case bool:
				boolVal := 0.0
				if v {
					boolVal = 1.0
				}
				s.telemetry.WriteDeviceMetric(d.HomeID, deviceID, field, boolVal)
			}
		}
	}
}
