package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading records a decoded sensor reading.
//
// This is the primary method for DayBetter sensor telemetry. The value
// is the human-scaled reading (degrees, percent), not the raw wire
// tenths. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - deviceID: Reporting device (e.g., "th-bedroom")
//   - kind: Reading kind ("temperature" or "humidity")
//   - value: The scaled reading value
//
// Example:
//
//	client.WriteSensorReading("th-bedroom", "temperature", 21.5)
//	client.WriteSensorReading("th-bedroom", "humidity", 61.4)
func (c *Client) WriteSensorReading(deviceID string, kind string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"device_id": deviceID,
			"kind":      kind,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConnectionEvent records a broker connection state transition.
//
// Used for tracking connection stability over time: how often the
// bridge reconnects and how long outages last.
//
// Parameters:
//   - state: The state entered (e.g., "connected", "reconnecting")
//   - attempt: Reconnect attempt number, 0 outside of reconnection
func (c *Client) WriteConnectionEvent(state string, attempt int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"connection_events",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"attempt": attempt,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("bridge_stats",
//	    map[string]string{"host": "bridge-01"},
//	    map[string]interface{}{"devices": 12, "messages": 4521})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
