package sensor

import (
	"context"
	"fmt"
)

// ProcessCommand maps a generic platform request onto the registry's
// operations and returns a structured result.
//
// Supported actions:
//   - "read": one sensor when sensor_id is set, otherwise all enabled sensors
//   - "execute": run params.execute_action with params.execute_params
//   - "status": one sensor or the full table snapshot
//   - "configure": create-or-update from the config payload
//
// Unknown actions and internal panics both come back as structured error
// results; nothing escapes this boundary.
func (r *Registry) ProcessCommand(ctx context.Context, cmd CommandRequest) (result map[string]any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("sensor command panic recovered", "action", cmd.Action, "panic", rec)
			result = map[string]any{
				"command":   cmd.Action,
				"status":    StatusError,
				"error":     fmt.Sprint(rec),
				"timestamp": now(),
			}
		}
	}()

	switch cmd.Action {
	case "read":
		if cmd.SensorID != "" {
			reading := r.Read(ctx, cmd.SensorID)
			return map[string]any{
				"command":   "read",
				"sensor_id": cmd.SensorID,
				"result":    reading,
				"timestamp": now(),
			}
		}
		readings := r.ReadAll(ctx)
		return map[string]any{
			"command":   "read_all",
			"result":    readings,
			"count":     len(readings),
			"timestamp": now(),
		}

	case "execute":
		if cmd.SensorID == "" {
			return map[string]any{
				"command":   "execute",
				"status":    StatusError,
				"error":     "sensor_id required for execute command",
				"timestamp": now(),
			}
		}

		executeAction := "read"
		if v, ok := cmd.Params["execute_action"].(string); ok && v != "" {
			executeAction = v
		}
		executeParams, _ := cmd.Params["execute_params"].(map[string]any)

		res := r.Execute(ctx, cmd.SensorID, executeAction, executeParams)
		return map[string]any{
			"command":        "execute",
			"sensor_id":      cmd.SensorID,
			"execute_action": executeAction,
			"result":         res,
			"timestamp":      now(),
		}

	case "status":
		return map[string]any{
			"command":   "status",
			"sensor_id": cmd.SensorID,
			"result":    r.Status(cmd.SensorID),
			"timestamp": now(),
		}

	case "configure":
		if cmd.SensorID == "" {
			return map[string]any{
				"command":   "configure",
				"status":    StatusError,
				"error":     "sensor_id is required for configure command",
				"timestamp": now(),
			}
		}

		cfg, err := r.Configure(cmd.SensorID, cmd.Config)
		var res map[string]any
		if err != nil {
			res = map[string]any{
				"status":    StatusError,
				"error":     fmt.Sprintf("Failed to configure sensor %s: %s", cmd.SensorID, err),
				"timestamp": now(),
			}
		} else {
			res = map[string]any{
				"status":    StatusSuccess,
				"sensor_id": cmd.SensorID,
				"config":    cfg,
				"timestamp": now(),
			}
		}
		return map[string]any{
			"command":   "configure",
			"sensor_id": cmd.SensorID,
			"result":    res,
			"timestamp": now(),
		}

	default:
		return map[string]any{
			"command":   cmd.Action,
			"status":    StatusError,
			"error":     fmt.Sprintf("Unknown action: %s. Supported actions: read, execute, status, configure", cmd.Action),
			"timestamp": now(),
		}
	}
}
