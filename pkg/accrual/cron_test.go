package accrual

import (
	"context"
	"testing"
	"time"

	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/stretchr/testify/assert"
)

func Test_AccrualCron(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)

	t.Run("Should reject an invalid schedule", func(t *testing.T) {
		_, err := NewAccrualCron("every hour", NewAccrualRunQueue(&countingRunner{}, l), l)
		assert.Error(t, err)
	})

	t.Run("Should enqueue a cron run on each tick", func(t *testing.T) {
		runner := &countingRunner{}
		queue := NewAccrualRunQueue(runner, l)
		ac, err := NewAccrualCron("0 * * * *", queue, l)
		assert.Nil(t, err)

		ac.tick()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go queue.Process(ctx)

		assert.Eventually(t, func() bool {
			runner.mu.Lock()
			defer runner.mu.Unlock()
			return len(runner.triggers) == 1
		}, time.Second, 5*time.Millisecond)

		runner.mu.Lock()
		assert.Equal(t, RunTrigger_Cron, runner.triggers[0])
		runner.mu.Unlock()

		ac.Start()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		ac.Stop(stopCtx)
	})
}
