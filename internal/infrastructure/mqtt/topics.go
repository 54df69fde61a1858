package mqtt

import "fmt"

// Topic prefixes for the MyHOME core MQTT surface.
//
// All topics use the flat scheme: myhome/{concern}/{gateway}/{suffix}.
// Gateway MACs contain colons, which are legal in MQTT topic levels.
const (
	// TopicPrefix is the base for all service topics.
	TopicPrefix = "myhome"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "myhome/system"
)

// Topics provides builders for the service's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	t := topics.DiscoveryDevice("00:03:50:01:aa:bb")
//	// Returns: "myhome/discovery/00:03:50:01:aa:bb/device"
type Topics struct{}

// DiscoveryDevice returns the topic for discovered-device events.
//
// Example: myhome/discovery/00:03:50:01:aa:bb/device
func (Topics) DiscoveryDevice(gateway string) string {
	return fmt.Sprintf("%s/discovery/%s/device", TopicPrefix, gateway)
}

// DiscoverySession returns the topic for session state transitions.
//
// Example: myhome/discovery/00:03:50:01:aa:bb/session
func (Topics) DiscoverySession(gateway string) string {
	return fmt.Sprintf("%s/discovery/%s/session", TopicPrefix, gateway)
}

// DiscoveryCompleted returns the topic for session completion summaries.
//
// Example: myhome/discovery/00:03:50:01:aa:bb/completed
func (Topics) DiscoveryCompleted(gateway string) string {
	return fmt.Sprintf("%s/discovery/%s/completed", TopicPrefix, gateway)
}

// ConfigWritten returns the topic for config store write notifications.
// The host platform subscribes here to reload a gateway's device entries.
//
// Example: myhome/config/00:03:50:01:aa:bb/written
func (Topics) ConfigWritten(gateway string) string {
	return fmt.Sprintf("%s/config/%s/written", TopicPrefix, gateway)
}

// GatewayStatus returns the topic for gateway connection status.
//
// Example: myhome/gateway/00:03:50:01:aa:bb/status
func (Topics) GatewayStatus(gateway string) string {
	return fmt.Sprintf("%s/gateway/%s/status", TopicPrefix, gateway)
}

// SystemStatus returns the service status topic (also the LWT topic).
//
// Example: myhome/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDiscovery returns a pattern matching every discovery event.
//
// Pattern: myhome/discovery/+/+
func (Topics) AllDiscovery() string {
	return fmt.Sprintf("%s/discovery/+/+", TopicPrefix)
}

// AllGatewayStatus returns a pattern matching all gateway status topics.
//
// Pattern: myhome/gateway/+/status
func (Topics) AllGatewayStatus() string {
	return fmt.Sprintf("%s/gateway/+/status", TopicPrefix)
}

// AllTopics returns a pattern matching every service topic.
// Use with caution - this receives ALL traffic.
//
// Pattern: myhome/#
func (Topics) AllTopics() string {
	return "myhome/#"
}
