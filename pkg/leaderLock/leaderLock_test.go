package leaderLock

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/stretchr/testify/assert"
)

const testKey int64 = 42

var (
	tryLockQuery = regexp.QuoteMeta("select pg_try_advisory_lock($1)")
	unlockQuery  = regexp.QuoteMeta("select pg_advisory_unlock($1)")
)

func Test_AdvisoryLock(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)
	ctx := context.Background()

	t.Run("Should run fn while holding the lock and release it afterwards", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.Nil(t, err)

		mock.ExpectQuery(tryLockQuery).WithArgs(testKey).
			WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
		mock.ExpectQuery(unlockQuery).WithArgs(testKey).
			WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_unlock"}).AddRow(true))

		lock := NewAdvisoryLock(db, testKey, l)
		called := false
		ran, err := lock.WithLock(ctx, func(ctx context.Context) error {
			called = true
			return nil
		})
		assert.Nil(t, err)
		assert.True(t, ran)
		assert.True(t, called)
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("Should skip fn when another session holds the lock", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.Nil(t, err)

		mock.ExpectQuery(tryLockQuery).WithArgs(testKey).
			WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

		lock := NewAdvisoryLock(db, testKey, l)
		ran, err := lock.WithLock(ctx, func(ctx context.Context) error {
			t.Fatal("fn must not run without the lock")
			return nil
		})
		assert.Nil(t, err)
		assert.False(t, ran)
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("Should not hand the lock out twice within one instance", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.Nil(t, err)

		mock.ExpectQuery(tryLockQuery).WithArgs(testKey).
			WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))

		lock := NewAdvisoryLock(db, testKey, l)
		acquired, err := lock.TryAcquire(ctx)
		assert.Nil(t, err)
		assert.True(t, acquired)

		acquired, err = lock.TryAcquire(ctx)
		assert.Nil(t, err)
		assert.False(t, acquired)
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("Should release the lock even when fn fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.Nil(t, err)

		mock.ExpectQuery(tryLockQuery).WithArgs(testKey).
			WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
		mock.ExpectQuery(unlockQuery).WithArgs(testKey).
			WillReturnRows(sqlmock.NewRows([]string{"pg_advisory_unlock"}).AddRow(true))

		lock := NewAdvisoryLock(db, testKey, l)
		boom := errors.New("boom")
		ran, err := lock.WithLock(ctx, func(ctx context.Context) error {
			return boom
		})
		assert.True(t, ran)
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, mock.ExpectationsWereMet())
	})

	t.Run("Should report releasing a lock that is not held", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.Nil(t, err)
		lock := NewAdvisoryLock(db, testKey, l)
		assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)
	})
}
