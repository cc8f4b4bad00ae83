package contributions

import (
	"context"
	"testing"
	"time"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/Layr-Labs/rewards-engine/internal/tests"
	"github.com/Layr-Labs/rewards-engine/pkg/chains"
	"github.com/Layr-Labs/rewards-engine/pkg/postgres"
	"github.com/Layr-Labs/rewards-engine/pkg/validation"
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

func Test_ValidateNewContribution(t *testing.T) {
	valid := func() *NewContribution {
		return &NewContribution{
			UserHandle:     "alice",
			WalletAddress:  "0x00000000000000000000000000000000000000a1",
			WalletCategory: WalletCategory_External,
			Chain:          "ethereum",
			DepositTxHash:  "0xdeposit",
			Principal:      decimal.NewFromInt(1),
		}
	}

	cases := []struct {
		name   string
		mutate func(nc *NewContribution)
	}{
		{"missing user handle", func(nc *NewContribution) { nc.UserHandle = " " }},
		{"missing wallet", func(nc *NewContribution) { nc.WalletAddress = "" }},
		{"unknown wallet category", func(nc *NewContribution) { nc.WalletCategory = "hot" }},
		{"missing deposit hash", func(nc *NewContribution) { nc.DepositTxHash = "" }},
		{"zero principal", func(nc *NewContribution) { nc.Principal = decimal.Zero }},
		{"negative principal", func(nc *NewContribution) { nc.Principal = decimal.NewFromInt(-1) }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			nc := valid()
			c.mutate(nc)
			assert.True(t, validation.IsValidationError(validateNewContribution(nc)))
		})
	}

	assert.Nil(t, validateNewContribution(valid()))
}

func Test_ContributionLedger(t *testing.T) {
	tests.SkipWithoutDatabase(t)

	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)

	registry := chains.NewChainRegistry(grm, l, clock)
	_, err = registry.SeedChains(ctx, []*chains.ChainSeed{
		{Chain: "ethereum", NativeAsset: "ETH", Apy: "5", MinDeposit: "0.5"},
		{Chain: "solana", NativeAsset: "SOL", Apy: "7"},
	})
	assert.Nil(t, err)

	ledger := NewContributionLedger(grm, registry, l, clock)

	deposit := func(user string, chain string, hash string, principal string) *NewContribution {
		return &NewContribution{
			UserHandle:     user,
			WalletAddress:  "0x00000000000000000000000000000000000000a1",
			WalletCategory: WalletCategory_External,
			Chain:          chain,
			DepositTxHash:  hash,
			Principal:      decimal.RequireFromString(principal),
		}
	}

	var verifiedId string

	t.Run("Should record a deposit once and return the existing row on replay", func(t *testing.T) {
		c, created, err := ledger.RecordContribution(ctx, deposit("alice", "Ethereum", "0xaaa", "2"))
		assert.Nil(t, err)
		assert.True(t, created)
		assert.Equal(t, "ethereum", c.Chain)
		assert.Equal(t, "ETH", c.NativeAsset)
		assert.Equal(t, ContributionStatus_Pending, c.Status)
		assert.True(t, c.RewardsEarned.IsZero())

		again, created, err := ledger.RecordContribution(ctx, deposit("alice", "ethereum", "0xaaa", "2"))
		assert.Nil(t, err)
		assert.False(t, created)
		assert.Equal(t, c.Id, again.Id)

		verifiedId = c.Id
	})

	t.Run("Should reject a deposit on an unregistered chain", func(t *testing.T) {
		_, _, err := ledger.RecordContribution(ctx, deposit("alice", "dogecoin", "0xbbb", "2"))
		assert.ErrorIs(t, err, chains.ErrChainNotFound)
	})

	t.Run("Should refuse to verify a deposit below the chain minimum", func(t *testing.T) {
		c, _, err := ledger.RecordContribution(ctx, deposit("bob", "ethereum", "0xccc", "0.1"))
		assert.Nil(t, err)

		_, err = ledger.VerifyContribution(ctx, c.Id)
		assert.ErrorIs(t, err, ErrBelowMinimumDeposit)

		stored, err := ledger.GetContribution(ctx, c.Id)
		assert.Nil(t, err)
		assert.Equal(t, ContributionStatus_Pending, stored.Status)
		assert.Nil(t, stored.VerifiedAt)
	})

	t.Run("Should verify a pending contribution exactly once", func(t *testing.T) {
		c, err := ledger.VerifyContribution(ctx, verifiedId)
		assert.Nil(t, err)
		assert.Equal(t, ContributionStatus_Verified, c.Status)
		assert.True(t, c.VerifiedAt.Equal(start))

		_, err = ledger.VerifyContribution(ctx, verifiedId)
		assert.ErrorIs(t, err, ErrContributionNotPending)

		_, err = ledger.VerifyContribution(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrContributionNotFound)
	})

	t.Run("Should reject only pending contributions", func(t *testing.T) {
		c, _, err := ledger.RecordContribution(ctx, deposit("carol", "solana", "sig-1", "3"))
		assert.Nil(t, err)

		rejected, err := ledger.RejectContribution(ctx, c.Id, "deposit never confirmed")
		assert.Nil(t, err)
		assert.Equal(t, ContributionStatus_Rejected, rejected.Status)
		assert.Equal(t, "deposit never confirmed", *rejected.RejectionReason)

		_, err = ledger.RejectContribution(ctx, verifiedId, "too late")
		assert.ErrorIs(t, err, ErrContributionNotPending)
	})

	t.Run("Should list only verified contributions", func(t *testing.T) {
		ids, err := ledger.ListVerifiedContributionIds(ctx)
		assert.Nil(t, err)
		assert.Equal(t, []string{verifiedId}, ids)
	})

	t.Run("Should advance the checkpoint only from the value the caller read", func(t *testing.T) {
		c, err := ledger.GetContribution(ctx, verifiedId)
		assert.Nil(t, err)

		checkpoint := start.Add(2 * time.Hour)
		err = grm.Transaction(func(tx *gorm.DB) error {
			return ledger.AdvanceCheckpoint(tx, c, nil, checkpoint, decimal.RequireFromString("0.5"))
		})
		assert.Nil(t, err)
		assert.True(t, c.RewardsEarned.Equal(decimal.RequireFromString("0.5")))

		// a second writer that read the old checkpoint loses
		stale, err := ledger.GetContribution(ctx, verifiedId)
		assert.Nil(t, err)
		err = ledger.AdvanceCheckpoint(grm, stale, nil, start.Add(3*time.Hour), decimal.NewFromInt(1))
		assert.Error(t, err)

		err = ledger.AdvanceCheckpoint(grm, stale, &checkpoint, start.Add(time.Hour), decimal.Zero)
		assert.ErrorIs(t, err, ErrCheckpointRegression)

		err = ledger.AdvanceCheckpoint(grm, stale, &checkpoint, start.Add(3*time.Hour), decimal.NewFromInt(-1))
		assert.Error(t, err)

		stored, err := ledger.GetContribution(ctx, verifiedId)
		assert.Nil(t, err)
		assert.True(t, stored.LastAccrualAt.Equal(checkpoint))
		assert.True(t, stored.RewardsEarned.Equal(decimal.RequireFromString("0.5")))
	})

	t.Run("Should reset checkpoints for a chain without moving them backward", func(t *testing.T) {
		reset, err := ledger.ResetCheckpointsForChain(grm, "ethereum", start.Add(10*time.Hour))
		assert.Nil(t, err)
		assert.Equal(t, int64(1), reset)

		reset, err = ledger.ResetCheckpointsForChain(grm, "ethereum", start.Add(5*time.Hour))
		assert.Nil(t, err)
		assert.Equal(t, int64(0), reset)

		stored, err := ledger.GetContribution(ctx, verifiedId)
		assert.Nil(t, err)
		assert.True(t, stored.LastAccrualAt.Equal(start.Add(10*time.Hour)))
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
