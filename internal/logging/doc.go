// Package logging builds slog loggers with console and JSON handlers and
// provides the attribute helpers shared across the daemon.
package logging
