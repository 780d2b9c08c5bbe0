// Package config loads, normalizes, and validates the TOML configuration
// used by the transcriptor daemon and CLI.
package config
