// Package services carries the cross-cutting contracts shared by
// pipeline components: the error taxonomy used for retry and failure
// classification, and context annotation helpers for correlated logs.
package services
