// Package whisper wraps WhisperX (run under uvx) for turning audio into
// transcript text.
package whisper
