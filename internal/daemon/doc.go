// Package daemon ties the workflow manager, queue store, and startup
// recovery into a single lifecycle with flock-based locking to prevent
// multiple daemon instances from processing the same queue.
package daemon
