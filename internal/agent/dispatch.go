package agent

import (
	"context"
	"fmt"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/envelope"
	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
)

// OnReceive is the inbound entry point, wired as the MQTT message handler
// for the device's command topic.
//
// Failure tiers, deliberately asymmetric:
//   - undecodable payloads are logged and dropped (no reply channel is
//     knowable without a decoded command)
//   - authentication failures are logged and dropped without a reply;
//     unauthenticated traffic is never acknowledged
//   - faults past the auth gate produce exactly one structured error reply
//     on the command's response topic, when it has one
//
// Envelopes are processed one at a time in arrival order.
func (c *Client) OnReceive(_ string, payload []byte) error {
	signed, cmd, err := envelope.Decode(payload)
	if err != nil {
		c.logger.Warn("dropping undecodable message", "error", err)
		return nil
	}

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	if !c.auth.Validate(signed, cmd, c.DeviceInfo()) {
		c.logger.Warn("authentication failed, command dropped",
			"device_id", c.id.DeviceID, "pubkey", signed.PubKey)
		return nil
	}

	c.handleCommand(context.Background(), cmd)
	return nil
}

// handleCommand routes an authenticated command.
//
// Refresh flags are applied first; a failed refresh aborts the envelope
// with an error reply so the platform sees the stale cache. A sensor
// command then short-circuits: its result is the reply and the user
// handler never runs. Anything else goes to the user handler, acknowledged
// with a generic success on return.
func (c *Client) handleCommand(ctx context.Context, cmd *envelope.Command) {
	replied := false
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("command dispatch panic recovered", "panic", r)
			if !replied {
				c.reply(cmd.ResponseTopic, envelope.ErrorReply(fmt.Sprint(r)))
			}
		}
	}()

	if cmd.UpdateRules {
		if err := c.RefreshRules(ctx); err != nil {
			c.logger.Error("rule refresh failed", "error", err)
			replied = true
			c.reply(cmd.ResponseTopic, envelope.ErrorReply(err.Error()))
			return
		}
	}
	if cmd.UpdateDevice {
		if err := c.RefreshDevice(ctx); err != nil {
			c.logger.Error("device refresh failed", "error", err)
			replied = true
			c.reply(cmd.ResponseTopic, envelope.ErrorReply(err.Error()))
			return
		}
	}

	if cmd.SensorCommand != nil {
		result := c.registry.ProcessCommand(ctx, sensor.CommandRequest{
			Action:   cmd.SensorCommand.Action,
			SensorID: cmd.SensorCommand.SensorID,
			Params:   cmd.SensorCommand.Params,
			Config:   cmd.SensorCommand.Config,
		})
		replied = true
		c.reply(cmd.ResponseTopic, result)
		return
	}

	if err := c.invokeHandler(cmd.Raw); err != nil {
		c.logger.Error("user handler failed", "error", err)
		replied = true
		c.reply(cmd.ResponseTopic, envelope.ErrorReply(err.Error()))
		return
	}

	replied = true
	c.reply(cmd.ResponseTopic, envelope.SuccessReply())
}

// invokeHandler runs the registered user handler, converting a panic into
// an error so the dispatch path sees one failure shape.
func (c *Client) invokeHandler(body map[string]any) (err error) {
	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()

	if handler == nil {
		c.logger.Debug("no user handler registered, command acknowledged without effect")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(body)
}

// reply signs a body and emits it to the response topic. A command without
// a response topic gets no reply; publish failures are logged, never
// propagated back into dispatch.
func (c *Client) reply(topic string, body map[string]any) {
	if topic == "" {
		return
	}
	payload, err := envelope.MakeCommand(body, c.id.Keys)
	if err != nil {
		c.logger.Error("encoding reply failed", "topic", topic, "error", err)
		return
	}
	if err := c.publisher.PublishJSON(topic, payload); err != nil {
		c.logger.Error("publishing reply failed", "topic", topic, "error", err)
	}
}
