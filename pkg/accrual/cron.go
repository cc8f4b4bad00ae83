package accrual

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AccrualCron enqueues a run on every tick of the configured schedule. Ticks never
// block; the run queue serializes the runs themselves.
type AccrualCron struct {
	cron   *cron.Cron
	queue  *AccrualRunQueue
	logger *zap.Logger
}

func NewAccrualCron(schedule string, queue *AccrualRunQueue, l *zap.Logger) (*AccrualCron, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	ac := &AccrualCron{
		cron:   c,
		queue:  queue,
		logger: l,
	}
	if _, err := c.AddFunc(schedule, ac.tick); err != nil {
		return nil, fmt.Errorf("invalid accrual schedule '%s': %w", schedule, err)
	}
	return ac, nil
}

func (ac *AccrualCron) tick() {
	ac.logger.Sugar().Infow("Accrual schedule fired")
	ac.queue.Enqueue(&AccrualRunMessage{Trigger: RunTrigger_Cron})
}

func (ac *AccrualCron) Start() {
	ac.cron.Start()
}

// Stop halts the schedule and waits for a tick in flight, or until ctx is done.
func (ac *AccrualCron) Stop(ctx context.Context) {
	stopped := ac.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}
