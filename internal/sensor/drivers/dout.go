package drivers

import (
	"context"
	"sync"
)

// digitalOut models a digital output channel (relay, indicator). On GPIO
// builds a board-specific variant drives the pin; this one tracks state in
// memory so automation logic can run anywhere.
type digitalOut struct {
	mu       sync.Mutex
	pin      int
	state    bool
	inverted bool
}

func newDigitalOut(inputs map[string]any) *digitalOut {
	d := &digitalOut{}
	if v, ok := inputs["pin"].(float64); ok {
		d.pin = int(v)
	}
	if v, ok := inputs["inverted"].(bool); ok {
		d.inverted = v
	}
	if v, ok := inputs["initial_state"].(bool); ok {
		d.state = v
	}
	return d
}

// Read implements sensor.Driver.
func (d *digitalOut) Read(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]any{
		"pin":   d.pin,
		"state": d.level(),
	}, nil
}

// SetOutput implements sensor.Settable.
func (d *digitalOut) SetOutput(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = on
	return nil
}

// Toggle implements sensor.Toggleable.
func (d *digitalOut) Toggle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = !d.state
	return nil
}

// level applies output inversion. Callers must hold mu.
func (d *digitalOut) level() bool {
	if d.inverted {
		return !d.state
	}
	return d.state
}
