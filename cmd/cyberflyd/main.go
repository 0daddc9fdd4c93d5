// CyberFly Device Agent
//
// cyberflyd turns a Linux host into a CyberFly IoT device: it maintains a
// signed MQTT command channel with the platform, manages the device's
// sensors, and publishes telemetry.
//
// Subcommands:
//
//	setup   - generate a device key pair and write the initial configuration
//	run     - run the device agent (default)
//	status  - show device identity, sensors, and recent telemetry
//	config  - print the active configuration with secrets redacted
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cyberfly-io/cyberfly-device-agent/internal/infrastructure/config"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	var err error
	switch cmd {
	case "setup":
		err = runSetup(args)
	case "run":
		err = runAgent(ctx)
	case "status":
		err = showStatus(ctx)
	case "config":
		err = showConfig()
	case "version":
		fmt.Printf("cyberflyd %s (commit %s, built %s)\n", version, commit, date)
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `CyberFly Device Agent

Usage:
  cyberflyd <command> [flags]

Commands:
  setup    Generate a device key pair and write the initial configuration
  run      Run the device agent (default when no command is given)
  status   Show device identity, sensors, and recent telemetry
  config   Print the active configuration with secrets redacted
  version  Print version information

The configuration file defaults to %s; override with CYBERFLY_CONFIG.
`, filepath.Join(config.DefaultDir(), "config.yaml"))
}

// getConfigPath returns the configuration file path.
// Uses CYBERFLY_CONFIG environment variable if set, otherwise the default
// location under the device's home directory.
func getConfigPath() string {
	if path := os.Getenv("CYBERFLY_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(config.DefaultDir(), "config.yaml")
}
