// Package queue persists transcription jobs and their chunks in
// SQLite. It is the single source of truth for job lifecycle state:
// the workflow manager reads and advances statuses here, and the CLI
// reports from here.
package queue
