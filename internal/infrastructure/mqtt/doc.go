// Package mqtt wraps the Eclipse Paho MQTT client for the device agent.
//
// It provides:
//   - Connection management with automatic reconnection (exponential backoff
//     capped at a configurable ceiling)
//   - Subscription tracking and restoration after reconnects
//   - Publish/subscribe with validation, timeouts and panic recovery
//   - Topic construction helpers for the platform's flat topic scheme
//
// # Thread Safety
//
// All Client methods are safe for concurrent use. Message handlers run
// serially in arrival order; the dispatch core depends on this for its
// single-consumer processing model.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.Device(deviceID), 1,
//	    func(topic string, payload []byte) error {
//	        return dispatch.OnReceive(payload)
//	    })
package mqtt
