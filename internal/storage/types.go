package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed        = errors.New("storage closed")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// KV is the persistence API used by the reminder store and the scheduler.
type KV interface {
	// Get returns the blob stored under key. ok is false when nothing was stored.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set replaces the blob stored under key.
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file": one file per key under Path (default)
//   - "sqlite": SQLite database file at Path
//   - "memory": process-local, lost on exit
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means 1s
}
