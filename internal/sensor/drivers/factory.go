package drivers

import (
	"fmt"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/sensor"
)

// HostFactory creates the driver set available on a plain Linux host.
//
// Supported types:
//   - "vcgen": SoC temperature via sysfs (Raspberry Pi and similar)
//   - "sysinfo": host memory and load statistics
//   - "dout": digital output (relay), settable and toggleable
//   - "lcd1602": 16x2 character display buffer
//
// GPIO- and I2C-backed types from the platform's hardware catalogue
// (dht11, bmp280, pir, ...) need board-specific drivers and are created by
// an alternative factory on those builds; HostFactory rejects them so an
// add/enable on the wrong host fails fast instead of producing a dead
// instance.
type HostFactory struct{}

// NewHostFactory creates the built-in host driver factory.
func NewHostFactory() *HostFactory {
	return &HostFactory{}
}

// Create implements sensor.Factory.
func (f *HostFactory) Create(sensorType string, inputs map[string]any) (sensor.Driver, error) {
	switch sensorType {
	case "vcgen":
		return newVcgen(inputs)
	case "sysinfo":
		return newSysinfo(), nil
	case "dout":
		return newDigitalOut(inputs), nil
	case "lcd1602":
		return newLCD1602(inputs), nil
	default:
		return nil, fmt.Errorf("%w: %q", sensor.ErrUnknownType, sensorType)
	}
}
