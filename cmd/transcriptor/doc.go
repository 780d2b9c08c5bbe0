// Package main hosts the transcriptor CLI entrypoint and command graph.
//
// The Cobra-based command tree covers running the daemon in the foreground,
// listing jobs through the daemon's HTTP API, and configuration scaffolding.
// It centralizes configuration resolution so subcommands can focus on user
// experience instead of wiring.
package main
