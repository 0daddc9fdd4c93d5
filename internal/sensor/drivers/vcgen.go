package drivers

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// defaultThermalPath is where the kernel exposes the SoC temperature in
// millidegrees Celsius.
const defaultThermalPath = "/sys/class/thermal/thermal_zone0/temp"

// vcgen reads the SoC core temperature from sysfs.
type vcgen struct {
	path string
}

func newVcgen(inputs map[string]any) (*vcgen, error) {
	path := defaultThermalPath
	if v, ok := inputs["thermal_path"].(string); ok && v != "" {
		path = v
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("thermal zone unavailable: %w", err)
	}
	return &vcgen{path: path}, nil
}

// Read implements sensor.Driver.
func (v *vcgen) Read(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(v.path)
	if err != nil {
		return nil, fmt.Errorf("reading thermal zone: %w", err)
	}

	milli, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return nil, fmt.Errorf("parsing thermal zone value: %w", err)
	}

	return map[string]any{
		"temperature": milli / 1000.0,
		"unit":        "celsius",
	}, nil
}
