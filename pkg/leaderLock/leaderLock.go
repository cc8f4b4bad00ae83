// Package leaderLock provides a cross-process mutual exclusion lock backed by a
// PostgreSQL session-level advisory lock.
package leaderLock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var ErrLockNotHeld = errors.New("advisory lock is not held")

// AdvisoryLock holds its lock on a dedicated connection; the lock lives exactly as
// long as that session, so a crashed holder releases it automatically.
type AdvisoryLock struct {
	db     *sql.DB
	key    int64
	logger *zap.Logger

	mu   sync.Mutex
	conn *sql.Conn
}

func NewAdvisoryLock(db *sql.DB, key int64, l *zap.Logger) *AdvisoryLock {
	return &AdvisoryLock{
		db:     db,
		key:    key,
		logger: l,
	}
}

// TryAcquire attempts to take the lock without blocking. It returns false when another
// session, or this instance, already holds it.
func (al *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	al.mu.Lock()
	defer al.mu.Unlock()

	if al.conn != nil {
		return false, nil
	}

	conn, err := al.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to open lock connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "select pg_try_advisory_lock($1)", al.key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("failed to acquire advisory lock %d: %w", al.key, err)
	}
	if !acquired {
		_ = conn.Close()
		al.logger.Sugar().Debugw("Advisory lock held elsewhere", zap.Int64("key", al.key))
		return false, nil
	}

	al.conn = conn
	al.logger.Sugar().Debugw("Acquired advisory lock", zap.Int64("key", al.key))
	return true, nil
}

func (al *AdvisoryLock) Release(ctx context.Context) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if al.conn == nil {
		return ErrLockNotHeld
	}
	conn := al.conn
	al.conn = nil
	defer conn.Close()

	var released bool
	if err := conn.QueryRowContext(ctx, "select pg_advisory_unlock($1)", al.key).Scan(&released); err != nil {
		return fmt.Errorf("failed to release advisory lock %d: %w", al.key, err)
	}
	if !released {
		al.logger.Sugar().Warnw("Advisory lock was not held by this session", zap.Int64("key", al.key))
	}
	return nil
}

// WithLock runs fn while holding the lock. If the lock is taken, fn is not called and
// false is returned.
func (al *AdvisoryLock) WithLock(ctx context.Context, fn func(ctx context.Context) error) (bool, error) {
	acquired, err := al.TryAcquire(ctx)
	if err != nil || !acquired {
		return false, err
	}
	defer func() {
		if err := al.Release(context.Background()); err != nil {
			al.logger.Sugar().Errorw("Failed to release advisory lock", zap.Int64("key", al.key), zap.Error(err))
		}
	}()
	return true, fn(ctx)
}
