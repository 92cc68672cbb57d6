// Package media probes uploaded files with ffprobe, validates them
// against the service's duration and format limits, and normalizes
// their audio to mono PCM WAV with ffmpeg.
package media
