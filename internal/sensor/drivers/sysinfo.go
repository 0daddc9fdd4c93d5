package drivers

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

const meminfoPath = "/proc/meminfo"
const loadavgPath = "/proc/loadavg"

// sysinfo reports host memory and scheduler load. It has no hardware
// dependency and serves as the always-available sanity sensor.
type sysinfo struct{}

func newSysinfo() *sysinfo {
	return &sysinfo{}
}

// Read implements sensor.Driver.
func (s *sysinfo) Read(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := map[string]any{
		"num_cpu":       runtime.NumCPU(),
		"num_goroutine": runtime.NumGoroutine(),
	}

	if total, free, available, err := readMeminfo(); err == nil {
		data["mem_total_kb"] = total
		data["mem_free_kb"] = free
		data["mem_available_kb"] = available
	}

	if load1, load5, load15, err := readLoadavg(); err == nil {
		data["load_1"] = load1
		data["load_5"] = load5
		data["load_15"] = load15
	}

	return data, nil
}

func readMeminfo() (total, free, available int64, err error) {
	raw, err := os.ReadFile(meminfoPath)
	if err != nil {
		return 0, 0, 0, err
	}

	for _, line := range strings.Split(string(raw), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		value, perr := strconv.ParseInt(fields[1], 10, 64)
		if perr != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = value
		case "MemFree:":
			free = value
		case "MemAvailable:":
			available = value
		}
	}
	return total, free, available, nil
}

func readLoadavg() (load1, load5, load15 float64, err error) {
	raw, err := os.ReadFile(loadavgPath)
	if err != nil {
		return 0, 0, 0, err
	}

	fields := strings.Fields(string(raw))
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("unexpected loadavg format")
	}

	load1, _ = strconv.ParseFloat(fields[0], 64)
	load5, _ = strconv.ParseFloat(fields[1], 64)
	load15, _ = strconv.ParseFloat(fields[2], 64)
	return load1, load5, load15, nil
}
