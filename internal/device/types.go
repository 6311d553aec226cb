package device

import "time"

// Type classifies what kind of endpoint a device is.
type Type string

// Supported device types.
const (
	TypeLight      Type = "light"
	TypeSwitch     Type = "switch"
	TypeThermostat Type = "thermostat"
	TypeLock       Type = "lock"
	TypeSensor     Type = "sensor"
	TypeCamera     Type = "camera"
	TypeSpeaker    Type = "speaker"
)

// Valid reports whether the type is a recognised device type.
func (t Type) Valid() bool {
	switch t {
	case TypeLight, TypeSwitch, TypeThermostat, TypeLock, TypeSensor, TypeCamera, TypeSpeaker:
		return true
	}
	return false
}

// Protocol identifies which transport bridge a device speaks through.
type Protocol string

// Supported protocols.
const (
	ProtocolZigbee Protocol = "zigbee"
	ProtocolZWave  Protocol = "zwave"
	ProtocolWiFi   Protocol = "wifi"
	ProtocolMQTT   Protocol = "mqtt"
)

// Valid reports whether the protocol is recognised.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolZigbee, ProtocolZWave, ProtocolWiFi, ProtocolMQTT:
		return true
	}
	return false
}

// State holds a device's current state document as reported by its
// bridge. Well-known keys:
//
//	"state" (string)  primary state, e.g. "on", "off", "locked"
//	"value" (float64) numeric reading for sensor devices
type State map[string]any

// Device represents a controllable or monitorable entity in the system.
// This matches the database schema in migrations/20260815_120000_initial_schema.up.sql.
type Device struct {
	ID       string   `json:"id"`
	HomeID   string   `json:"home_id"`
	Name     string   `json:"name"`
	Type     Type     `json:"type"`
	Protocol Protocol `json:"protocol"`

	// Current state
	State    State      `json:"state"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrimaryState returns the device's primary state string, if present.
func (d *Device) PrimaryState() (string, bool) {
	s, ok := d.State["state"].(string)
	return s, ok
}

// SensorValue returns the device's numeric reading, if present.
// JSON round-trips deliver numbers as float64.
func (d *Device) SensorValue() (float64, bool) {
	switch v := d.State["value"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// DeepCopy creates a complete independent copy of the Device.
// The state map is cloned so modifications to the copy do not affect
// the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.State = deepCopyState(d.State)

	if d.LastSeen != nil {
		t := *d.LastSeen
		cpy.LastSeen = &t
	}

	return &cpy
}

// deepCopyState creates a deep copy of a state document.
func deepCopyState(s State) State {
	if s == nil {
		return nil
	}
	cpy := make(State, len(s))
	for k, v := range s {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		cpy := make(map[string]any, len(val))
		for k, elem := range val {
			cpy[k] = deepCopyValue(elem)
		}
		return cpy
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives are safe to copy by value
		return v
	}
}
