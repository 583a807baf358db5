// Package storage is the persistence layer: the subscriber directory and the
// scheduled-job store, both backed by one SQLite database file.
//
// Concurrency
//
// Multiple dispatch runs and the scheduler tick touch the store at the same
// time. The pool is capped at a single connection and WAL mode is enabled, so
// every statement is atomic from the callers' point of view; no additional
// in-process locking is required. RemoveSubscriber is delete-if-exists, so
// concurrent pruning of the same recipient is safe.
//
// Jobs are immutable once inserted. DeleteJob doubles as the claim operation
// for the scheduler: the caller that observes claimed=true owns the job.
package storage
