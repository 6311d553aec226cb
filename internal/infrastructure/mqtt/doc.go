// Package mqtt provides MQTT client connectivity for NEXA Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// NEXA uses MQTT as the message bus connecting the Core to protocol
// adapters (Zigbee, Z-Wave, WiFi). The broker decouples the Core from
// protocol-specific implementations.
//
//	NEXA Core ↔ MQTT Broker ↔ Protocol Adapters
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all device state updates
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStates(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish command
//	topic := mqtt.Topics{}.DeviceCommand("zigbee", "light-living")
//	client.Publish(topic, []byte(`{"on":true}`), 1, false)
package mqtt
