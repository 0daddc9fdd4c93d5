// Package influxdb provides an optional time-series sink for telemetry.
//
// When enabled, each telemetry publish cycle mirrors its numeric sensor
// values into InfluxDB using the non-blocking batched write API. Write
// failures surface through an error callback and never affect the publish
// loop.
package influxdb
