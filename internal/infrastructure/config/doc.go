// Package config loads and validates NEXA Core configuration.
//
// Configuration is read from a YAML file with three layers of precedence:
// hardcoded defaults, file values, then NEXA_* environment variables.
// Secrets (MQTT credentials, InfluxDB token) should always come from the
// environment rather than the file.
package config
