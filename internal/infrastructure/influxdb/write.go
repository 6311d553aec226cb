package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceMetric writes a single device measurement to InfluxDB.
//
// This is the primary method for recording device telemetry from the
// MQTT state relay. The write is non-blocking; data is batched and
// sent asynchronously.
//
// Parameters:
//   - homeID: Home the device belongs to
//   - deviceID: Unique identifier for the device (e.g., "light-living-01")
//   - measurement: The metric name (e.g., "value", "brightness")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteDeviceMetric("home-1", "thermostat-01", "value", 21.5)
func (c *Client) WriteDeviceMetric(homeID, deviceID, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_metrics",
		map[string]string{
			"home_id":     homeID,
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteExecutionMetric records the outcome of an automation rule run.
//
// Used for charting rule activity and failure rates over time.
//
// Parameters:
//   - ruleID: The rule that ran
//   - status: Terminal status ("success" or "failed")
//   - duration: Wall-clock run time
func (c *Client) WriteExecutionMetric(ruleID, status string, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"rule_executions",
		map[string]string{
			"rule_id": ruleID,
			"status":  status,
		},
		map[string]interface{}{
			"duration_ms": float64(duration.Milliseconds()),
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
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
