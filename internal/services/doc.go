// Package services defines the shared error taxonomy for external tool
// wrappers. Subpackages wrap the concrete tools each pipeline stage shells
// out to (yt-dlp, demucs, whisperx).
package services
