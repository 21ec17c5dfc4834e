package mqtt

import "fmt"

// Topic scheme per DayBetter firmware. Each client has exactly two
// topics keyed by the client ID from its certificate bundle:
//
//	d/{clientID}/c  device updates published by devices (subscribe)
//	d/{clientID}/s  control commands to devices (publish)
const topicPrefix = "d"

// Topics provides builders for DayBetter MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	updates := topics.DeviceUpdates("client-abc123")
//	// Returns: "d/client-abc123/c"
type Topics struct{}

// DeviceUpdates returns the topic devices publish state updates on.
//
// Example: d/client-abc123/c
func (Topics) DeviceUpdates(clientID string) string {
	return fmt.Sprintf("%s/%s/c", topicPrefix, clientID)
}

// DeviceControl returns the topic for control commands to devices.
//
// Example: d/client-abc123/s
func (Topics) DeviceControl(clientID string) string {
	return fmt.Sprintf("%s/%s/s", topicPrefix, clientID)
}
