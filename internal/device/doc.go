// Package device provides the device registry for NEXA Core.
//
// Devices are the controllable and observable endpoints of a home:
// lights, locks, thermostats, sensors. The package persists devices in
// SQLite and keeps an in-memory cache in front of the repository for
// fast lookups on the hot paths (state relay, condition evaluation).
//
// # Architecture
//
//	┌───────────────────────────────┐
//	│ Registry (cache + validation) │
//	└──────────────┬────────────────┘
//	               │
//	       ┌───────▼────────┐
//	       │ Repository     │  SQLite persistence
//	       └────────────────┘
//
// The Registry also answers state lookups for automation condition
// evaluation: DeviceStates returns each device's primary state string
// and SensorValues returns numeric sensor readings, both scoped to a
// home. The Commander dispatches device commands and scene activations
// over MQTT.
//
// All Registry methods are thread-safe. Cached devices are deep-copied
// on the way in and out, so callers can never mutate cache internals.
package device
