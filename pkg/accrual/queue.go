package accrual

import (
	"context"

	"go.uber.org/zap"
)

// Runner performs a single accrual pass.
type Runner interface {
	Run(ctx context.Context, trigger RunTrigger) (*RunSummary, error)
}

// AccrualRunMessage represents a message in the accrual run queue.
type AccrualRunMessage struct {
	Trigger RunTrigger

	// ResponseChan receives the result of the run. If nil, no response is sent.
	ResponseChan chan *AccrualRunResponse
}

type AccrualRunResponse struct {
	Summary *RunSummary
	Error   error
}

// AccrualRunQueue serializes accrual runs within a process so a cron tick and a
// manual recalculation never run at the same time.
type AccrualRunQueue struct {
	logger *zap.Logger
	runner Runner
	queue  chan *AccrualRunMessage
	done   chan struct{}
}

func NewAccrualRunQueue(runner Runner, l *zap.Logger) *AccrualRunQueue {
	return &AccrualRunQueue{
		logger: l,
		runner: runner,
		// allow the queue to buffer up to 100 messages
		queue: make(chan *AccrualRunMessage, 100),
		done:  make(chan struct{}),
	}
}

// Enqueue adds a message to the queue and returns without waiting for the run.
func (arq *AccrualRunQueue) Enqueue(payload *AccrualRunMessage) {
	arq.logger.Sugar().Infow("Enqueueing accrual run", zap.String("trigger", string(payload.Trigger)))
	arq.queue <- payload
}

// EnqueueAndWait adds a run to the queue and blocks until it finishes or ctx is done.
func (arq *AccrualRunQueue) EnqueueAndWait(ctx context.Context, trigger RunTrigger) (*RunSummary, error) {
	responseChan := make(chan *AccrualRunResponse, 1)
	arq.Enqueue(&AccrualRunMessage{
		Trigger:      trigger,
		ResponseChan: responseChan,
	})

	select {
	case response := <-responseChan:
		return response.Summary, response.Error
	case <-ctx.Done():
		arq.logger.Sugar().Infow("Received context.Done() while waiting for accrual run")
		return nil, ctx.Err()
	}
}

// Process handles queued messages one at a time until Close is called.
func (arq *AccrualRunQueue) Process(ctx context.Context) {
	for {
		select {
		case <-arq.done:
			arq.logger.Sugar().Infow("Accrual run queue closed, exiting")
			return
		case <-ctx.Done():
			arq.logger.Sugar().Infow("Context done, exiting accrual run queue")
			return
		case msg := <-arq.queue:
			summary, err := arq.runner.Run(ctx, msg.Trigger)
			if err != nil {
				arq.logger.Sugar().Errorw("Accrual run failed",
					zap.String("trigger", string(msg.Trigger)),
					zap.Error(err),
				)
			}
			if msg.ResponseChan != nil {
				msg.ResponseChan <- &AccrualRunResponse{Summary: summary, Error: err}
			}
		}
	}
}

func (arq *AccrualRunQueue) Close() {
	arq.logger.Sugar().Infow("Closing accrual run queue")
	close(arq.done)
}
