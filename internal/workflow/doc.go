// Package workflow drives accepted jobs through the transcription
// pipeline. A single dispatcher claims pending jobs from the queue and
// hands each one to a bounded worker pool; a worker runs the whole
// stage sequence for its job, heartbeating while stages execute and
// honoring cancellation requests between and during stages. Terminal
// handling releases scratch space and prunes intermediate objects.
package workflow
