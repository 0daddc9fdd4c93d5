package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorValue writes a single numeric sensor value to InfluxDB.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: The device the reading belongs to
//   - sensorID: The sensor that produced the value
//   - field: The field name inside the reading's data map (e.g., "temperature")
//   - value: The numeric value
//   - ts: The reading's capture time
func (c *Client) WriteSensorValue(deviceID, sensorID, field string, value float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"device_id": deviceID,
			"sensor_id": sensorID,
			"field":     field,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit WriteSensorValue, such as
// publish-cycle statistics.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, ts)
	c.writeAPI.WritePoint(point)
}
