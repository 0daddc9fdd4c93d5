// Package config loads and validates the agent's YAML configuration.
//
// Configuration is layered: hardcoded defaults, then the YAML file, then
// CYBERFLY_* environment variable overrides. The secret key should always be
// supplied through the environment on production devices.
package config
