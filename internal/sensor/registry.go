package sensor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// defaultReadTimeout bounds a single hardware call when no timeout is configured.
const defaultReadTimeout = 5 * time.Second

// Registry owns all configured sensors and their live driver instances.
//
// Each sensor identifier moves through three states: absent,
// registered-disabled (configuration only) and registered-enabled
// (configuration plus a live instance). An instance exists exactly while its
// configuration is enabled and instantiation succeeded.
//
// All public methods are thread-safe; the sensor table is shared between the
// dispatch core and the telemetry publisher.
type Registry struct {
	factory     Factory
	readTimeout time.Duration

	mu        sync.RWMutex
	configs   map[string]Config
	instances map[string]Driver

	save   SaveFunc
	saveMu sync.Mutex // serialises async persistence runs

	logger Logger
}

// NewRegistry creates a sensor registry backed by the given driver factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:     factory,
		readTimeout: defaultReadTimeout,
		configs:     make(map[string]Config),
		instances:   make(map[string]Driver),
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetReadTimeout bounds each hardware read/execute call.
func (r *Registry) SetReadTimeout(d time.Duration) {
	if d > 0 {
		r.readTimeout = d
	}
}

// SetSaveFunc registers the persistence callback invoked after mutations.
func (r *Registry) SetSaveFunc(save SaveFunc) {
	r.save = save
}

// Add registers a sensor configuration.
//
// With Enabled false the configuration is stored without touching hardware
// (any previous instance is destroyed). With Enabled true the driver is
// instantiated first; on failure the operation fails entirely and no state
// changes — a previously absent identifier remains absent.
func (r *Registry) Add(cfg Config) error {
	if cfg.SensorID == "" {
		return ErrMissingID
	}
	if cfg.SensorType == "" {
		return ErrMissingType
	}

	if !cfg.Enabled {
		r.mu.Lock()
		r.closeInstanceLocked(cfg.SensorID)
		r.configs[cfg.SensorID] = cfg.DeepCopy()
		r.mu.Unlock()

		r.logger.Info("registered disabled sensor", "sensor_id", cfg.SensorID, "type", cfg.SensorType)
		return nil
	}

	inst, err := r.factory.Create(cfg.SensorType, deepCopyMap(cfg.Inputs))
	if err != nil {
		r.logger.Error("failed to add sensor", "sensor_id", cfg.SensorID, "type", cfg.SensorType, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrDriverFailed, cfg.SensorID, err)
	}

	r.mu.Lock()
	r.closeInstanceLocked(cfg.SensorID)
	r.configs[cfg.SensorID] = cfg.DeepCopy()
	r.instances[cfg.SensorID] = inst
	r.mu.Unlock()

	r.logger.Info("added sensor", "sensor_id", cfg.SensorID, "type", cfg.SensorType)
	return nil
}

// Remove drops both the configuration and any live instance.
// Removing an unknown identifier is a no-op.
func (r *Registry) Remove(sensorID string) {
	r.mu.Lock()
	r.closeInstanceLocked(sensorID)
	delete(r.configs, sensorID)
	r.mu.Unlock()

	r.logger.Info("removed sensor", "sensor_id", sensorID)
	r.persist()
}

// Enable re-attempts instantiation from the stored configuration.
//
// On instantiation failure the operation fails and the sensor stays in its
// previous state (registered-disabled).
func (r *Registry) Enable(sensorID string) error {
	r.mu.RLock()
	cfg, ok := r.configs[sensorID]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sensorID)
	}

	inst, err := r.factory.Create(cfg.SensorType, deepCopyMap(cfg.Inputs))
	if err != nil {
		r.logger.Error("failed to enable sensor", "sensor_id", sensorID, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrDriverFailed, sensorID, err)
	}

	r.mu.Lock()
	// The sensor may have been removed while the driver was instantiating.
	cfg, ok = r.configs[sensorID]
	if !ok {
		r.mu.Unlock()
		closeDriver(inst)
		return fmt.Errorf("%w: %s", ErrNotFound, sensorID)
	}
	r.closeInstanceLocked(sensorID)
	cfg.Enabled = true
	r.configs[sensorID] = cfg
	r.instances[sensorID] = inst
	r.mu.Unlock()

	r.logger.Info("enabled sensor", "sensor_id", sensorID)
	r.persist()
	return nil
}

// Disable destroys the live instance but keeps the configuration.
func (r *Registry) Disable(sensorID string) error {
	r.mu.Lock()
	cfg, ok := r.configs[sensorID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, sensorID)
	}
	cfg.Enabled = false
	r.configs[sensorID] = cfg
	r.closeInstanceLocked(sensorID)
	r.mu.Unlock()

	r.logger.Info("disabled sensor", "sensor_id", sensorID)
	r.persist()
	return nil
}

// Configure creates or updates a sensor configuration at runtime.
//
// Supplied fields merge over the existing configuration; sensor_type is
// required when creating a new sensor. If the resulting configuration is
// enabled, the driver is (re)instantiated — and on failure the prior
// configuration AND prior instance are restored exactly (the one
// transactional path in the registry).
func (r *Registry) Configure(sensorID string, patch map[string]any) (Config, error) {
	if sensorID == "" {
		return Config{}, ErrMissingID
	}

	r.mu.Lock()
	prevCfg, hadCfg := r.configs[sensorID]
	prevInst, hadInst := r.instances[sensorID]

	merged := mergeConfig(sensorID, prevCfg, hadCfg, patch)
	if merged.SensorType == "" {
		r.mu.Unlock()
		return Config{}, fmt.Errorf("%w: sensor_type is required when creating a new sensor", ErrMissingType)
	}

	// Current instance is replaced (or dropped) either way.
	delete(r.instances, sensorID)

	if !merged.Enabled {
		if hadInst {
			closeDriver(prevInst)
		}
		r.configs[sensorID] = merged.DeepCopy()
		r.mu.Unlock()

		r.logger.Info("configured sensor", "sensor_id", sensorID, "enabled", false)
		r.persist()
		return merged, nil
	}
	r.mu.Unlock()

	inst, err := r.factory.Create(merged.SensorType, deepCopyMap(merged.Inputs))

	r.mu.Lock()
	if err != nil {
		// Roll back to the prior configuration and instance, if any.
		if hadCfg {
			r.configs[sensorID] = prevCfg
		} else {
			delete(r.configs, sensorID)
		}
		if hadInst {
			r.instances[sensorID] = prevInst
		}
		r.mu.Unlock()

		r.logger.Error("failed to configure sensor", "sensor_id", sensorID, "error", err)
		return Config{}, fmt.Errorf("%w: %s: %w", ErrDriverFailed, sensorID, err)
	}

	if hadInst {
		closeDriver(prevInst)
	}
	r.configs[sensorID] = merged.DeepCopy()
	r.instances[sensorID] = inst
	r.mu.Unlock()

	r.logger.Info("configured sensor", "sensor_id", sensorID, "enabled", true)
	r.persist()
	return merged, nil
}

// mergeConfig overlays patch fields on the existing configuration.
// Absent patch fields keep their prior values; a new sensor defaults to enabled.
func mergeConfig(sensorID string, prev Config, hadPrev bool, patch map[string]any) Config {
	merged := Config{
		SensorID: sensorID,
		Enabled:  true,
	}
	if hadPrev {
		merged.SensorType = prev.SensorType
		merged.Inputs = deepCopyMap(prev.Inputs)
		merged.Enabled = prev.Enabled
		merged.Alias = prev.Alias
	}

	if v, ok := patch["sensor_type"].(string); ok && v != "" {
		merged.SensorType = v
	}
	if v, ok := patch["inputs"].(map[string]any); ok {
		merged.Inputs = deepCopyMap(v)
	}
	if v, ok := patch["enabled"].(bool); ok {
		merged.Enabled = v
	}
	if v, ok := patch["alias"].(string); ok {
		merged.Alias = v
	}

	return merged
}

// Load registers multiple configurations, typically at startup from the
// persisted file. Returns the identifiers that loaded successfully; failures
// are logged and skipped.
func (r *Registry) Load(configs []Config) []string {
	loaded := make([]string, 0, len(configs))
	for _, cfg := range configs {
		if err := r.Add(cfg); err != nil {
			r.logger.Error("failed to load sensor config", "sensor_id", cfg.SensorID, "error", err)
			continue
		}
		loaded = append(loaded, cfg.SensorID)
	}
	return loaded
}

// Read produces a fresh Reading for one sensor.
//
// Unknown or disabled sensors yield an error-status reading; hardware
// failures are likewise captured in the reading, never raised.
func (r *Registry) Read(ctx context.Context, sensorID string) Reading {
	r.mu.RLock()
	cfg, hasCfg := r.configs[sensorID]
	inst, hasInst := r.instances[sensorID]
	r.mu.RUnlock()

	if !hasCfg && !hasInst {
		return Reading{
			SensorID:   sensorID,
			SensorType: "unknown",
			Data:       map[string]any{},
			Timestamp:  now(),
			Status:     StatusError,
			Error:      fmt.Sprintf("Sensor %s not found", sensorID),
		}
	}

	if !cfg.Enabled || !hasInst {
		return Reading{
			SensorID:   sensorID,
			SensorType: cfg.SensorType,
			Data:       map[string]any{},
			Timestamp:  now(),
			Status:     StatusError,
			Error:      fmt.Sprintf("Sensor %s is disabled", sensorID),
		}
	}

	readCtx, cancel := context.WithTimeout(ctx, r.readTimeout)
	defer cancel()

	data, err := inst.Read(readCtx)
	if err != nil {
		r.logger.Error("failed to read sensor", "sensor_id", sensorID, "error", err)
		return Reading{
			SensorID:   sensorID,
			SensorType: cfg.SensorType,
			Data:       map[string]any{},
			Timestamp:  now(),
			Status:     StatusError,
			Error:      err.Error(),
		}
	}
	if data == nil {
		data = map[string]any{}
	}

	return Reading{
		SensorID:   sensorID,
		SensorType: cfg.SensorType,
		Data:       data,
		Timestamp:  now(),
		Status:     StatusSuccess,
	}
}

// ReadAll reads every enabled sensor, ordered by identifier.
func (r *Registry) ReadAll(ctx context.Context) []Reading {
	r.mu.RLock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		if cfg, ok := r.configs[id]; ok && cfg.Enabled {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	readings := make([]Reading, 0, len(ids))
	for _, id := range ids {
		readings = append(readings, r.Read(ctx, id))
	}
	return readings
}

// Execute dispatches an action verb to whichever capability the instance
// exposes. An unsupported verb is an error result, not an error return.
func (r *Registry) Execute(ctx context.Context, sensorID, action string, params map[string]any) map[string]any {
	r.mu.RLock()
	cfg, hasCfg := r.configs[sensorID]
	inst, hasInst := r.instances[sensorID]
	r.mu.RUnlock()

	if !hasCfg && !hasInst {
		return map[string]any{
			"status":    StatusError,
			"error":     fmt.Sprintf("Sensor %s not found", sensorID),
			"timestamp": now(),
		}
	}
	if !cfg.Enabled || !hasInst {
		return map[string]any{
			"status":    StatusError,
			"error":     fmt.Sprintf("Sensor %s is disabled", sensorID),
			"timestamp": now(),
		}
	}

	if params == nil {
		params = map[string]any{}
	}

	err := r.dispatchAction(inst, action, params)
	if err != nil {
		var unsupported unsupportedError
		if errors.As(err, &unsupported) {
			return map[string]any{
				"status":    StatusError,
				"error":     fmt.Sprintf("Action '%s' not supported for sensor %s of type %s", action, sensorID, cfg.SensorType),
				"timestamp": now(),
			}
		}
		r.logger.Error("failed to execute sensor action", "sensor_id", sensorID, "action", action, "error", err)
		return map[string]any{
			"status":    StatusError,
			"error":     err.Error(),
			"timestamp": now(),
		}
	}

	return map[string]any{
		"status":    StatusSuccess,
		"action":    action,
		"params":    params,
		"timestamp": now(),
	}
}

// dispatchAction maps an action verb onto the instance's capability set.
func (r *Registry) dispatchAction(inst Driver, action string, params map[string]any) error {
	switch action {
	case "display_text":
		d, ok := inst.(Displayable)
		if !ok {
			return unsupportedError{action}
		}
		text, _ := params["text"].(string)
		clear := true
		if v, ok := params["clear"].(bool); ok {
			clear = v
		}
		return d.DisplayText(text, clear)

	case "append_text":
		d, ok := inst.(Displayable)
		if !ok {
			return unsupportedError{action}
		}
		text, _ := params["text"].(string)
		return d.AppendText(text)

	case "clear":
		d, ok := inst.(Displayable)
		if !ok {
			return unsupportedError{action}
		}
		return d.Clear()

	case "toggle":
		t, ok := inst.(Toggleable)
		if !ok {
			return unsupportedError{action}
		}
		return t.Toggle()

	case "set_output":
		s, ok := inst.(Settable)
		if !ok {
			return unsupportedError{action}
		}
		on, _ := params["value"].(bool)
		return s.SetOutput(on)

	default:
		return unsupportedError{action}
	}
}

// Status returns a snapshot for one sensor, or for all sensors when
// sensorID is empty.
func (r *Registry) Status(sensorID string) map[string]any {
	if sensorID != "" {
		r.mu.RLock()
		cfg, ok := r.configs[sensorID]
		_, hasInst := r.instances[sensorID]
		r.mu.RUnlock()

		if !ok {
			return map[string]any{
				"status":    StatusError,
				"error":     fmt.Sprintf("Sensor %s not found", sensorID),
				"timestamp": now(),
			}
		}

		return map[string]any{
			"sensor_id":   sensorID,
			"sensor_type": cfg.SensorType,
			"enabled":     cfg.Enabled,
			"alias":       cfg.Alias,
			"inputs":      deepCopyMap(cfg.Inputs),
			"initialized": hasInst,
			"timestamp":   now(),
		}
	}

	r.mu.RLock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	statuses := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		statuses = append(statuses, r.Status(id))
	}

	return map[string]any{
		"total_sensors": len(ids),
		"sensors":       statuses,
		"timestamp":     now(),
	}
}

// Configs returns a deep copy of all configurations, ordered by identifier.
func (r *Registry) Configs() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Count returns the number of registered sensors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.configs)
}

// snapshotLocked copies all configurations; the caller holds r.mu.
func (r *Registry) snapshotLocked() []Config {
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	configs := make([]Config, 0, len(ids))
	for _, id := range ids {
		configs = append(configs, r.configs[id].DeepCopy())
	}
	return configs
}

// persist fires the save callback asynchronously with a config snapshot.
// Persistence failure is logged only; the in-memory mutation stands.
func (r *Registry) persist() {
	if r.save == nil {
		return
	}

	r.mu.RLock()
	snapshot := r.snapshotLocked()
	r.mu.RUnlock()

	go func() {
		r.saveMu.Lock()
		defer r.saveMu.Unlock()
		if err := r.save(snapshot); err != nil {
			r.logger.Error("failed to persist sensor configuration", "error", err)
		}
	}()
}

// closeInstanceLocked destroys a live instance; the caller holds r.mu.
func (r *Registry) closeInstanceLocked(sensorID string) {
	if inst, ok := r.instances[sensorID]; ok {
		closeDriver(inst)
		delete(r.instances, sensorID)
	}
}

// closeDriver releases driver resources if the driver supports it.
func closeDriver(inst Driver) {
	if c, ok := inst.(Closer); ok {
		_ = c.Close()
	}
}

// unsupportedError marks an action verb the instance's capabilities don't cover.
type unsupportedError struct {
	action string
}

func (e unsupportedError) Error() string {
	return fmt.Sprintf("unsupported action %q", e.action)
}
