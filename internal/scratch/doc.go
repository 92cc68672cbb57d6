// Package scratch allocates and releases the exclusive on-disk working
// regions used by in-flight jobs. A region is created when a pipeline
// starts and removed unconditionally when it ends; no component writes
// outside a region it was handed.
package scratch
