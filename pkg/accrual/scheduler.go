package accrual

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Layr-Labs/rewards-engine/pkg/chains"
	"github.com/Layr-Labs/rewards-engine/pkg/contributions"
	"github.com/Layr-Labs/rewards-engine/pkg/metrics"
	"github.com/Layr-Labs/rewards-engine/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/rewards-engine/pkg/numbers"
	"github.com/Layr-Labs/rewards-engine/pkg/rewardRecords"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type AccrualSchedulerConfig struct {
	// Concurrency bounds how many contributions are accrued in parallel.
	Concurrency int
}

// AccrualScheduler periodically accrues compound rewards for every verified
// contribution. Each contribution is accrued in its own transaction: the row is
// locked, the whole hours since its checkpoint are computed, a reward record is
// inserted and the checkpoint advanced. A failure on one contribution never affects
// another.
type AccrualScheduler struct {
	config     *AccrualSchedulerConfig
	db         *gorm.DB
	registry   *chains.ChainRegistry
	ledger     *contributions.ContributionLedger
	records    *rewardRecords.RewardRecordStore
	calculator *Calculator
	prices     PriceSource
	lock       Locker
	sink       *metrics.MetricsSink
	clock      clockwork.Clock
	logger     *zap.Logger
}

func NewAccrualScheduler(
	cfg *AccrualSchedulerConfig,
	db *gorm.DB,
	registry *chains.ChainRegistry,
	ledger *contributions.ContributionLedger,
	records *rewardRecords.RewardRecordStore,
	calculator *Calculator,
	prices PriceSource,
	lock Locker,
	sink *metrics.MetricsSink,
	clock clockwork.Clock,
	l *zap.Logger,
) *AccrualScheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if sink == nil {
		sink = metrics.NewNoopMetricsSink()
	}
	return &AccrualScheduler{
		config:     cfg,
		db:         db,
		registry:   registry,
		ledger:     ledger,
		records:    records,
		calculator: calculator,
		prices:     prices,
		lock:       lock,
		sink:       sink,
		clock:      clock,
		logger:     l,
	}
}

// PeriodStart is where the next accrual window of c begins: its last checkpoint, or
// its verification time if it has never accrued.
func PeriodStart(c *contributions.Contribution) *time.Time {
	if c.LastAccrualAt != nil {
		return c.LastAccrualAt
	}
	return c.VerifiedAt
}

func (as *AccrualScheduler) Run(ctx context.Context, trigger RunTrigger) (*RunSummary, error) {
	return as.RunWithProgress(ctx, trigger, nil)
}

// RunWithProgress performs one accrual pass over all verified contributions. Only one
// pass runs at a time across all instances; if the lock is held elsewhere
// ErrRunInProgress is returned and nothing is accrued.
func (as *AccrualScheduler) RunWithProgress(ctx context.Context, trigger RunTrigger, progress ProgressFunc) (*RunSummary, error) {
	var summary *RunSummary
	run := func(ctx context.Context) error {
		var err error
		summary, err = as.runLocked(ctx, trigger, progress)
		return err
	}

	if as.lock == nil {
		if err := run(ctx); err != nil {
			return summary, err
		}
		return summary, nil
	}

	ran, err := as.lock.WithLock(ctx, run)
	if err != nil {
		return summary, err
	}
	if !ran {
		as.sink.Incr(metricsTypes.Metric_Incr_AccrualLockContended, nil, 1)
		as.logger.Sugar().Infow("Skipping accrual run, lock held by another instance",
			zap.String("trigger", string(trigger)),
		)
		return nil, ErrRunInProgress
	}
	return summary, nil
}

func (as *AccrualScheduler) runLocked(ctx context.Context, trigger RunTrigger, progress ProgressFunc) (*RunSummary, error) {
	now := as.clock.Now().UTC()
	summary := &RunSummary{
		Trigger:             trigger,
		StartedAt:           now,
		Errors:              make([]*ContributionError, 0),
		AccruedByChain:      make(map[string]decimal.Decimal),
		NegligibleThreshold: as.calculator.NegligibleThreshold(),
	}

	run := &AccrualRun{Trigger: trigger, StartedAt: now}
	if res := as.db.WithContext(ctx).Create(run); res.Error != nil {
		return nil, fmt.Errorf("failed to record accrual run: %w", res.Error)
	}
	summary.RunId = run.Id

	as.logger.Sugar().Infow("Starting accrual run",
		zap.Int("runId", run.Id),
		zap.String("trigger", string(trigger)),
		zap.Time("now", now),
	)

	runErr := as.accrueAll(ctx, now, summary, progress)

	summary.FinishedAt = as.clock.Now().UTC()
	if err := as.finishRun(ctx, run, summary, runErr); err != nil {
		as.logger.Sugar().Errorw("Failed to record accrual run result", zap.Int("runId", run.Id), zap.Error(err))
	}

	hasError := runErr != nil || summary.Failed > 0
	labels := []metricsTypes.MetricsLabel{
		{Name: "trigger", Value: string(trigger)},
		{Name: "hasError", Value: fmt.Sprintf("%v", hasError)},
	}
	as.sink.Incr(metricsTypes.Metric_Incr_AccrualRun, labels, 1)
	as.sink.Timing(metricsTypes.Metric_Timing_AccrualDuration, summary.FinishedAt.Sub(summary.StartedAt), labels)
	as.sink.Gauge(metricsTypes.Metric_Gauge_AccrualContributions, float64(summary.Processed), nil)

	as.logger.Sugar().Infow("Finished accrual run",
		zap.Int("runId", run.Id),
		zap.Int("processed", summary.Processed),
		zap.Int("accrued", summary.Accrued),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

func (as *AccrualScheduler) accrueAll(ctx context.Context, now time.Time, summary *RunSummary, progress ProgressFunc) error {
	chainsByName, err := as.registry.ListChainsByName(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chain configuration: %w", err)
	}
	prices := as.loadPrices(ctx, chainsByName)

	ids, err := as.ledger.ListVerifiedContributionIds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list verified contributions: %w", err)
	}

	var mu sync.Mutex
	done := 0
	rewardsByChain := make(map[string][]decimal.Decimal)
	g := &errgroup.Group{}
	g.SetLimit(as.config.Concurrency)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := as.accrueContribution(ctx, id, chainsByName, prices, now)
			chain := out.chain

			mu.Lock()
			defer mu.Unlock()
			summary.Processed++
			switch {
			case err != nil:
				summary.Failed++
				summary.Errors = append(summary.Errors, &ContributionError{ContributionId: id, Error: err.Error()})
				as.sink.Incr(metricsTypes.Metric_Incr_AccrualFailed, []metricsTypes.MetricsLabel{{Name: "chain", Value: chain}}, 1)
				as.logger.Sugar().Errorw("Failed to accrue contribution",
					zap.String("contributionId", id),
					zap.String("chain", chain),
					zap.Error(err),
				)
			case out.accrued:
				summary.Accrued++
				rewardsByChain[chain] = append(rewardsByChain[chain], out.reward)
				as.sink.Incr(metricsTypes.Metric_Incr_AccrualRecorded, []metricsTypes.MetricsLabel{{Name: "chain", Value: chain}}, 1)
			default:
				summary.Skipped++
				as.sink.Incr(metricsTypes.Metric_Incr_AccrualSkipped, []metricsTypes.MetricsLabel{
					{Name: "chain", Value: chain},
					{Name: "reason", Value: string(out.reason)},
				}, 1)
			}
			done++
			if progress != nil {
				progress(done, len(ids))
			}
			return nil
		})
	}
	_ = g.Wait()

	for chain, rewards := range rewardsByChain {
		summary.AccruedByChain[chain] = numbers.SumAmounts(rewards)
	}
	return ctx.Err()
}

// loadPrices looks each active chain's price up once per run. A failed lookup leaves
// stable amounts at zero for that chain rather than blocking accrual.
func (as *AccrualScheduler) loadPrices(ctx context.Context, chainsByName map[string]*chains.ChainRateConfig) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	if as.prices == nil {
		return prices
	}
	for name, chain := range chainsByName {
		if !chain.Active || chain.PriceFeedId == "" {
			continue
		}
		price, err := as.prices.UsdPrice(ctx, chain.PriceFeedId)
		if err != nil {
			as.sink.Incr(metricsTypes.Metric_Incr_PriceLookupFailed, []metricsTypes.MetricsLabel{{Name: "asset", Value: chain.NativeAsset}}, 1)
			as.logger.Sugar().Warnw("Failed to look up price, stable amounts will be zero",
				zap.String("chain", name),
				zap.String("priceFeedId", chain.PriceFeedId),
				zap.Error(err),
			)
			continue
		}
		prices[name] = price
	}
	return prices
}

// accrueContribution accrues one contribution in its own transaction and reports
// whether a record was written, why not if it wasn't, and the contribution's chain.
//
// The window always ends on a whole-hour boundary from the checkpoint, not at now:
// the sub-hour remainder stays unaccrued and is picked up by a later run. A reward
// of exactly zero (for example a chain at 0% APY) still advances the checkpoint, so
// a later APY change cannot reach back into hours that owed nothing. A positive
// reward below the negligible threshold writes nothing and leaves the checkpoint
// where it is, so the window keeps growing until the reward is worth recording.
func (as *AccrualScheduler) accrueContribution(
	ctx context.Context,
	id string,
	chainsByName map[string]*chains.ChainRateConfig,
	prices map[string]decimal.Decimal,
	now time.Time,
) (accrualOutcome, error) {
	out := accrualOutcome{}

	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := as.ledger.LockContribution(tx, id)
		if err != nil {
			return err
		}
		out.chain = c.Chain

		if c.Status != contributions.ContributionStatus_Verified {
			out.reason = skipReason_NotVerified
			return nil
		}
		chain, ok := chainsByName[c.Chain]
		if !ok {
			as.logger.Sugar().Warnw("Contribution references an unconfigured chain",
				zap.String("contributionId", id),
				zap.String("chain", c.Chain),
			)
			out.reason = skipReason_ChainMissing
			return nil
		}
		if !chain.Active {
			out.reason = skipReason_ChainInactive
			return nil
		}

		start := PeriodStart(c)
		if start == nil {
			as.logger.Sugar().Warnw("Verified contribution has no verification time", zap.String("contributionId", id))
			out.reason = skipReason_NoCheckpoint
			return nil
		}
		if !now.After(*start) {
			out.reason = skipReason_NotElapsed
			return nil
		}
		wholeHours := int64(now.Sub(*start) / time.Hour)
		if wholeHours < 1 {
			out.reason = skipReason_NotElapsed
			return nil
		}
		end := start.Add(time.Duration(wholeHours) * time.Hour)

		withdrawn, err := as.records.SumWithdrawnForContribution(tx, c.Id)
		if err != nil {
			return err
		}
		base := c.Principal.Add(c.RewardsEarned).Sub(withdrawn)
		if base.IsNegative() {
			base = decimal.Zero
		}

		reward := as.calculator.Reward(base, chain.Apy, decimal.NewFromInt(wholeHours))
		if reward.IsZero() {
			out.reason = skipReason_ZeroReward
			return as.ledger.AdvanceCheckpoint(tx, c, c.LastAccrualAt, end, decimal.Zero)
		}
		if as.calculator.IsNegligible(reward) {
			out.reason = skipReason_Negligible
			return nil
		}

		contributionId := c.Id
		record := &rewardRecords.RewardRecord{
			Id:             uuid.NewString(),
			ContributionId: &contributionId,
			Source:         rewardRecords.RewardSource_Accrual,
			UserHandle:     c.UserHandle,
			WalletAddress:  c.WalletAddress,
			Chain:          c.Chain,
			Amount:         reward,
			StableAmount:   numbers.TruncateAmount(reward.Mul(prices[c.Chain])),
			PeriodStart:    *start,
			PeriodEnd:      end,
			Apy:            chain.Apy,
			Status:         rewardRecords.ClaimStatus_Pending,
			ComputedAt:     now,
		}
		if err := as.records.InsertRecords(tx, []*rewardRecords.RewardRecord{record}); err != nil {
			return err
		}
		if err := as.ledger.AdvanceCheckpoint(tx, c, c.LastAccrualAt, end, reward); err != nil {
			return err
		}
		out.accrued = true
		out.reward = reward

		as.logger.Sugar().Debugw("Accrued contribution",
			zap.String("contributionId", c.Id),
			zap.String("chain", c.Chain),
			zap.Int64("hours", wholeHours),
			zap.String("reward", reward.String()),
		)
		return nil
	})
	if err != nil {
		return accrualOutcome{chain: out.chain}, err
	}
	return out, nil
}

func (as *AccrualScheduler) finishRun(ctx context.Context, run *AccrualRun, summary *RunSummary, runErr error) error {
	finishedAt := summary.FinishedAt
	run.FinishedAt = &finishedAt
	run.Processed = summary.Processed
	run.Accrued = summary.Accrued
	run.Skipped = summary.Skipped
	run.Failed = summary.Failed

	messages := make([]string, 0)
	if runErr != nil {
		messages = append(messages, runErr.Error())
	}
	if summary.Failed > 0 {
		messages = append(messages, fmt.Sprintf("%d contributions failed", summary.Failed))
	}
	if len(messages) > 0 {
		msg := strings.Join(messages, "; ")
		run.Error = &msg
	}

	// a cancelled run still needs its history row closed out
	db := as.db
	if ctx.Err() == nil {
		db = db.WithContext(ctx)
	}
	return db.Save(run).Error
}

// ListRuns returns the most recent accrual runs, newest first.
func (as *AccrualScheduler) ListRuns(ctx context.Context, limit int) ([]*AccrualRun, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := make([]*AccrualRun, 0)
	res := as.db.WithContext(ctx).Model(&AccrualRun{}).Order("started_at desc, id desc").Limit(limit).Find(&runs)
	if res.Error != nil {
		return nil, res.Error
	}
	return runs, nil
}
