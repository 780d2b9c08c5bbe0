// Package demucs wraps the demucs CLI for isolating a vocal-only track
// from fetched media.
package demucs
