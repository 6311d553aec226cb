package mqtt

import "fmt"

// Topic prefixes for the NEXA MQTT hierarchy.
//
// Device topics use the flat scheme: nexa/{category}/{protocol}/{device_id}
const (
	// TopicPrefix is the base for all NEXA topics.
	TopicPrefix = "nexa"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "nexa/system"
)

// Topics provides builders for NEXA MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("zigbee", "light-living-main")
//	// Returns: "nexa/state/zigbee/light-living-main"
type Topics struct{}

// DeviceState returns the topic for device state updates from an adapter.
//
// Example: nexa/state/zigbee/light-living-main
func (Topics) DeviceState(protocol, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, deviceID)
}

// DeviceCommand returns the topic for commands to an adapter.
//
// Example: nexa/command/zigbee/light-living-main
func (Topics) DeviceCommand(protocol, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, deviceID)
}

// SceneActivate returns the topic for scene activation messages.
//
// Example: nexa/scene/movie-night/activate
func (Topics) SceneActivate(sceneID string) string {
	return fmt.Sprintf("%s/scene/%s/activate", TopicPrefix, sceneID)
}

// AutomationFired returns the topic for automation execution events.
//
// Example: nexa/automation/rule-sunrise-blinds/fired
func (Topics) AutomationFired(ruleID string) string {
	return fmt.Sprintf("%s/automation/%s/fired", TopicPrefix, ruleID)
}

// SystemStatus returns the system status topic.
//
// Example: nexa/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceStates returns a pattern matching all device state updates.
//
// Pattern: nexa/state/+/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllDeviceCommands returns a pattern matching all commands to adapters.
//
// Pattern: nexa/command/+/+
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}

// AllTopics returns a pattern matching all NEXA topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: nexa/#
func (Topics) AllTopics() string {
	return "nexa/#"
}
