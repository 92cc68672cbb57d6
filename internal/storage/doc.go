// Package storage moves pipeline artifacts in and out of the object
// store. Keys are deterministic functions of the job key so that a
// retried upload lands on the same object instead of duplicating it.
package storage
