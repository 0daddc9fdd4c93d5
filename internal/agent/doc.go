// Package agent is the device-side core: it receives signed command
// envelopes over MQTT, authenticates them against platform metadata,
// routes them to the sensor registry or a user-registered handler, and
// emits signed replies. It also owns the device's rule cache and mutable
// platform metadata, both replaced wholesale on refresh directives.
//
// Dispatch is serialized: one envelope is fully handled before the next
// begins, so command effects apply in arrival order.
package agent
