// Package storage provides the durable key/value layer healthvault keeps its
// state in.
//
// Each key holds one opaque blob that is always rewritten as a whole:
//   - the reminder list (one JSON array)
//   - the local scheduler's registration table
//
// Writes are atomic from the caller's point of view; nothing above this
// package does partial-write recovery.
package storage
