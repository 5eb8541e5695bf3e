package driven

import (
	"context"
	"time"
)

// DistributedLock serialises work on a named resource across instances.
// Ingestion locks per document name; the upload sweeper locks once per cycle.
type DistributedLock interface {
	// Acquire attempts to take the named lock for ttl.
	// Returns false without error if another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives up the named lock. Safe to call when not held.
	Release(ctx context.Context, name string) error

	// Extend pushes out the TTL of a held lock.
	// Backends without TTLs (PostgreSQL advisory locks) treat this as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
