// Package distlock provides best-effort cross-process locks used to keep
// more than one scheduler instance from firing the same job at once.
package distlock

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock creates a distributed lock using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	l := NewPGAdvisoryLock(db, key)
	l.hold = min(ttl, maxPGHold)
	return l
}

// Factory builds a fresh lock for a key. A nil Factory means locking is off.
type Factory func(key string) DistLock

// NewFactory returns a Factory bound to the given backends and TTL. It
// returns nil when neither backend is available.
func NewFactory(redisClient *redis.Client, db *sql.DB, ttl time.Duration) Factory {
	if redisClient == nil && db == nil {
		return nil
	}
	return func(key string) DistLock {
		return NewLock(redisClient, db, key, ttl)
	}
}

// TryRun runs fn only if the lock is acquired. It reports whether fn ran.
// The Redis lock is left to expire by TTL so that a second instance firing
// moments later for the same key still sees it held. Advisory locks are
// session-scoped, so they are kept until their hold elapses and then released.
func TryRun(ctx context.Context, lock DistLock, fn func(ctx context.Context)) (bool, error) {
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire: %w", err)
	}
	if !ok {
		return false, nil
	}
	if pg, isPG := lock.(*PGAdvisoryLock); isPG {
		defer pg.releaseAfterHold()
	}
	fn(ctx)
	return true, nil
}

// maxPGHold bounds how long an advisory lock pins a pooled connection.
const maxPGHold = 5 * time.Minute

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
// pg_try_advisory_lock / pg_advisory_unlock are session-scoped, so the lock
// pins one connection from Acquire until Release and is dropped by the
// server if that connection dies.
type PGAdvisoryLock struct {
	db         *sql.DB
	lockID     int64
	hold       time.Duration
	conn       *sql.Conn
	acquiredAt time.Time
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Uses pg_try_advisory_lock which returns immediately (non-blocking).
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, nil
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	l.acquiredAt = time.Now()
	return true, nil
}

// Release unlocks on the connection that took the lock and returns it to
// the pool. Releasing a lock that is not held is a no-op.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	defer conn.Close()
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

func (l *PGAdvisoryLock) releaseAfterHold() {
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Release(ctx)
	}
	remaining := l.hold - time.Since(l.acquiredAt)
	if remaining <= 0 {
		release()
		return
	}
	time.AfterFunc(remaining, release)
}
