// Package ytdlp wraps the yt-dlp CLI for fetching audio from remote
// source locators.
package ytdlp
