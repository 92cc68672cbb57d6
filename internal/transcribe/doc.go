// Package transcribe turns uploaded audio chunks into text. A Provider
// abstracts the speech-to-text backend; the Orchestrator fans chunk
// submissions out under a concurrency cap, retries transient provider
// failures, and merges per-chunk results back into one transcript in
// strict sequence order.
package transcribe
