package accrual

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/Layr-Labs/rewards-engine/internal/tests"
	"github.com/Layr-Labs/rewards-engine/pkg/chains"
	"github.com/Layr-Labs/rewards-engine/pkg/contributions"
	"github.com/Layr-Labs/rewards-engine/pkg/postgres"
	"github.com/Layr-Labs/rewards-engine/pkg/rewardRecords"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup() (
	string,
	*gorm.DB,
	*zap.Logger,
	*config.Config,
	error,
) {
	cfg := tests.GetConfig()
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	dbname, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, cfg, l)
	if err != nil {
		return dbname, nil, nil, nil, err
	}
	return dbname, grm, l, cfg, nil
}

type staticPrices struct {
	price decimal.Decimal
	err   error
}

func (s *staticPrices) UsdPrice(ctx context.Context, priceFeedId string) (decimal.Decimal, error) {
	return s.price, s.err
}

type busyLock struct{}

func (b *busyLock) WithLock(ctx context.Context, fn func(ctx context.Context) error) (bool, error) {
	return false, nil
}

func Test_AccrualScheduler(t *testing.T) {
	tests.SkipWithoutDatabase(t)

	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)

	registry := chains.NewChainRegistry(grm, l, clock)
	ledger := contributions.NewContributionLedger(grm, registry, l, clock)
	records := rewardRecords.NewRewardRecordStore(grm, l)
	calculator := NewCalculator(decimal.New(1, -12), l)

	_, err = registry.SeedChains(ctx, []*chains.ChainSeed{
		{Chain: "ethereum", NativeAsset: "ETH", Apy: "10", PriceFeedId: "ethereum"},
		{Chain: "solana", NativeAsset: "SOL", Apy: "10"},
	})
	assert.Nil(t, err)
	_, err = registry.SetBankWallet(ctx, "ethereum", "0x7750d328b314effa365a0402ccfd489b80b0adda")
	assert.Nil(t, err)

	newScheduler := func(prices PriceSource, lock Locker) *AccrualScheduler {
		return NewAccrualScheduler(&AccrualSchedulerConfig{Concurrency: 4}, grm, registry, ledger, records, calculator, prices, lock, nil, clock, l)
	}

	record := func(t *testing.T, chain string, txHash string, principal string) *contributions.Contribution {
		c, created, err := ledger.RecordContribution(ctx, &contributions.NewContribution{
			UserHandle:     "alice",
			WalletAddress:  "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			WalletCategory: contributions.WalletCategory_External,
			Chain:          chain,
			DepositTxHash:  txHash,
			Principal:      decimal.RequireFromString(principal),
		})
		assert.Nil(t, err)
		assert.True(t, created)
		verified, err := ledger.VerifyContribution(ctx, c.Id)
		assert.Nil(t, err)
		return verified
	}

	eth := record(t, "ethereum", "0xdeposit1", "1000")
	sol := record(t, "solana", "deposit-sol-1", "1000")
	verifiedAt := clock.Now().UTC()

	t.Run("Should accrue 48 hours in a single record", func(t *testing.T) {
		clock.Advance(48 * time.Hour)
		scheduler := newScheduler(&staticPrices{price: decimal.NewFromInt(2000)}, nil)

		summary, err := scheduler.Run(ctx, RunTrigger_Manual)
		assert.Nil(t, err)
		assert.Equal(t, 2, summary.Processed)
		assert.Equal(t, 1, summary.Accrued)
		assert.Equal(t, 1, summary.Skipped)
		assert.Equal(t, 0, summary.Failed)

		rewards, err := records.ListRecordsForContribution(ctx, eth.Id)
		assert.Nil(t, err)
		assert.Len(t, rewards, 1)

		expected := 1000 * (math.Pow(1+0.10/8760, 48) - 1)
		amount, _ := rewards[0].Amount.Float64()
		assert.InDelta(t, expected, amount, 1e-9)
		assert.True(t, rewards[0].PeriodStart.Equal(verifiedAt))
		assert.True(t, rewards[0].PeriodEnd.Equal(verifiedAt.Add(48*time.Hour)))
		assert.Equal(t, rewardRecords.ClaimStatus_Pending, rewards[0].Status)
		assert.True(t, rewards[0].StableAmount.Equal(rewards[0].Amount.Mul(decimal.NewFromInt(2000)).Truncate(18)))

		updated, err := ledger.GetContribution(ctx, eth.Id)
		assert.Nil(t, err)
		assert.True(t, updated.LastAccrualAt.Equal(verifiedAt.Add(48*time.Hour)))
		assert.True(t, updated.RewardsEarned.Equal(rewards[0].Amount))
	})

	t.Run("Should not accrue inactive chains", func(t *testing.T) {
		rewards, err := records.ListRecordsForContribution(ctx, sol.Id)
		assert.Nil(t, err)
		assert.Len(t, rewards, 0)

		updated, err := ledger.GetContribution(ctx, sol.Id)
		assert.Nil(t, err)
		assert.Nil(t, updated.LastAccrualAt)
	})

	t.Run("Should not accrue again within the same hour", func(t *testing.T) {
		clock.Advance(30 * time.Minute)
		scheduler := newScheduler(nil, nil)

		summary, err := scheduler.Run(ctx, RunTrigger_Manual)
		assert.Nil(t, err)
		assert.Equal(t, 0, summary.Accrued)

		rewards, err := records.ListRecordsForContribution(ctx, eth.Id)
		assert.Nil(t, err)
		assert.Len(t, rewards, 1)
	})

	t.Run("Should carry the sub-hour remainder into the next window", func(t *testing.T) {
		clock.Advance(45 * time.Minute)
		scheduler := newScheduler(&staticPrices{err: errors.New("price feed down")}, nil)

		summary, err := scheduler.Run(ctx, RunTrigger_Cron)
		assert.Nil(t, err)
		assert.Equal(t, 1, summary.Accrued)

		rewards, err := records.ListRecordsForContribution(ctx, eth.Id)
		assert.Nil(t, err)
		assert.Len(t, rewards, 2)
		assert.True(t, rewards[1].PeriodStart.Equal(rewards[0].PeriodEnd))
		assert.True(t, rewards[1].PeriodEnd.Equal(verifiedAt.Add(49*time.Hour)))
		assert.True(t, rewards[1].StableAmount.IsZero())

		oneStep := 1000 * (math.Pow(1+0.10/8760, 49) - 1)
		total, _ := rewards[0].Amount.Add(rewards[1].Amount).Float64()
		assert.InDelta(t, oneStep, total, 1e-9)
	})

	t.Run("Should skip the run when another instance holds the lock", func(t *testing.T) {
		clock.Advance(2 * time.Hour)
		scheduler := newScheduler(nil, &busyLock{})

		summary, err := scheduler.Run(ctx, RunTrigger_Cron)
		assert.ErrorIs(t, err, ErrRunInProgress)
		assert.Nil(t, summary)

		rewards, err := records.ListRecordsForContribution(ctx, eth.Id)
		assert.Nil(t, err)
		assert.Len(t, rewards, 2)
	})

	t.Run("Should record run history", func(t *testing.T) {
		scheduler := newScheduler(nil, nil)
		runs, err := scheduler.ListRuns(ctx, 10)
		assert.Nil(t, err)
		assert.Len(t, runs, 3)
		for _, run := range runs {
			assert.NotNil(t, run.FinishedAt)
			assert.Equal(t, 0, run.Failed)
		}
	})

	t.Run("Should hold the checkpoint while the reward is below the negligible threshold", func(t *testing.T) {
		before, err := ledger.GetContribution(ctx, eth.Id)
		assert.Nil(t, err)

		strict := NewCalculator(decimal.NewFromInt(1000), l)
		scheduler := NewAccrualScheduler(&AccrualSchedulerConfig{Concurrency: 2}, grm, registry, ledger, records, strict, nil, nil, nil, clock, l)

		summary, err := scheduler.Run(ctx, RunTrigger_Manual)
		assert.Nil(t, err)
		assert.Equal(t, 0, summary.Accrued)
		assert.Equal(t, 2, summary.Skipped)
		assert.Equal(t, 0, summary.Failed)
		assert.Len(t, summary.AccruedByChain, 0)
		assert.True(t, summary.NegligibleThreshold.Equal(decimal.NewFromInt(1000)))

		rewards, err := records.ListRecordsForContribution(ctx, eth.Id)
		assert.Nil(t, err)
		assert.Len(t, rewards, 2)

		after, err := ledger.GetContribution(ctx, eth.Id)
		assert.Nil(t, err)
		assert.True(t, after.LastAccrualAt.Equal(*before.LastAccrualAt))
		assert.True(t, after.RewardsEarned.Equal(before.RewardsEarned))
	})

	t.Run("Should keep accruing other contributions when one fails", func(t *testing.T) {
		broken := record(t, "ethereum", "0xdeposit2", "500")

		// an existing record for the same window makes the next insert collide
		brokenId := broken.Id
		assert.Nil(t, records.InsertRecords(nil, []*rewardRecords.RewardRecord{{
			Id:             "orphan-" + broken.Id,
			ContributionId: &brokenId,
			Source:         rewardRecords.RewardSource_Accrual,
			UserHandle:     broken.UserHandle,
			WalletAddress:  broken.WalletAddress,
			Chain:          broken.Chain,
			Amount:         decimal.Zero,
			StableAmount:   decimal.Zero,
			PeriodStart:    *broken.VerifiedAt,
			PeriodEnd:      broken.VerifiedAt.Add(time.Hour),
			Apy:            decimal.NewFromInt(10),
			ComputedAt:     clock.Now(),
		}}))

		before, err := ledger.GetContribution(ctx, eth.Id)
		assert.Nil(t, err)

		clock.Advance(time.Hour)
		scheduler := newScheduler(nil, nil)

		summary, err := scheduler.Run(ctx, RunTrigger_Cron)
		assert.Nil(t, err)
		assert.Equal(t, 3, summary.Processed)
		assert.Equal(t, 1, summary.Accrued)
		assert.Equal(t, 1, summary.Skipped)
		assert.Equal(t, 1, summary.Failed)
		if assert.Len(t, summary.Errors, 1) {
			assert.Equal(t, broken.Id, summary.Errors[0].ContributionId)
		}

		after, err := ledger.GetContribution(ctx, eth.Id)
		assert.Nil(t, err)
		assert.True(t, after.LastAccrualAt.After(*before.LastAccrualAt))
		assert.True(t, summary.AccruedByChain["ethereum"].Equal(after.RewardsEarned.Sub(before.RewardsEarned)))

		untouched, err := ledger.GetContribution(ctx, broken.Id)
		assert.Nil(t, err)
		assert.Nil(t, untouched.LastAccrualAt)
		assert.True(t, untouched.RewardsEarned.IsZero())

		runs, err := scheduler.ListRuns(ctx, 1)
		assert.Nil(t, err)
		if assert.Len(t, runs, 1) {
			assert.Equal(t, 1, runs[0].Failed)
			assert.NotNil(t, runs[0].Error)
		}
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
