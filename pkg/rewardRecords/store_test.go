package rewardRecords

import (
	"context"
	"testing"
	"time"

	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/Layr-Labs/rewards-engine/internal/tests"
	"github.com/Layr-Labs/rewards-engine/pkg/postgres"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func Test_RewardRecordStore(t *testing.T) {
	tests.SkipWithoutDatabase(t)

	cfg := tests.GetConfig()
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	dbName, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, cfg, l)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	store := NewRewardRecordStore(grm, l)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	newRecord := func(user string, chain string, amount string) *RewardRecord {
		return &RewardRecord{
			Id:            uuid.NewString(),
			Source:        RewardSource_Accrual,
			UserHandle:    user,
			WalletAddress: "wallet-" + user,
			Chain:         chain,
			Amount:        decimal.RequireFromString(amount),
			StableAmount:  decimal.Zero,
			PeriodStart:   now,
			PeriodEnd:     now.Add(time.Hour),
			Apy:           decimal.NewFromInt(5),
			ComputedAt:    now,
		}
	}

	alice := newRecord("alice", "ethereum", "1.5")
	aliceSol := newRecord("alice", "solana", "2")
	bob := newRecord("bob", "ethereum", "4")

	t.Run("Should insert records as pending in their own transaction", func(t *testing.T) {
		assert.Nil(t, store.InsertRecords(nil, []*RewardRecord{alice, aliceSol, bob}))

		stored, err := store.GetRecord(ctx, alice.Id)
		assert.Nil(t, err)
		assert.Equal(t, ClaimStatus_Pending, stored.Status)
		assert.True(t, stored.Amount.Equal(decimal.RequireFromString("1.5")))
	})

	t.Run("Should refuse to insert withdrawn or negative records", func(t *testing.T) {
		withdrawn := newRecord("carol", "ethereum", "1")
		withdrawn.Status = ClaimStatus_Withdrawn
		assert.Error(t, store.InsertRecords(grm, []*RewardRecord{withdrawn}))

		negative := newRecord("carol", "ethereum", "-1")
		assert.Error(t, store.InsertRecords(grm, []*RewardRecord{negative}))

		_, err := store.GetRecord(ctx, withdrawn.Id)
		assert.ErrorIs(t, err, ErrRewardNotFound)
	})

	t.Run("Should withdraw only pending records owned by the caller", func(t *testing.T) {
		settlement := &Settlement{TransactionRef: "tx-1", WalletAddress: "0xpay", SettledAt: now}

		updated, err := store.MarkWithdrawn(grm, []string{alice.Id, bob.Id}, "alice", settlement)
		assert.Nil(t, err)
		assert.Equal(t, int64(1), updated)

		updated, err = store.MarkWithdrawn(grm, []string{alice.Id}, "alice", settlement)
		assert.Nil(t, err)
		assert.Equal(t, int64(0), updated)

		stored, err := store.GetRecord(ctx, alice.Id)
		assert.Nil(t, err)
		assert.Equal(t, ClaimStatus_Withdrawn, stored.Status)
		assert.Equal(t, "tx-1", *stored.ClaimTransactionRef)
		assert.Equal(t, "0xpay", *stored.ClaimWalletAddress)
		assert.Nil(t, stored.ClaimWalletCategory)
	})

	t.Run("Should filter and summarize records", func(t *testing.T) {
		records, err := store.ListRecords(ctx, &RewardFilters{UserHandle: "alice"})
		assert.Nil(t, err)
		assert.Len(t, records, 2)

		records, err = store.ListRecords(ctx, &RewardFilters{Chain: "ETHEREUM", Status: ClaimStatus_Pending})
		assert.Nil(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, bob.Id, records[0].Id)

		summaries, err := store.SummarizeByStatus(ctx, nil)
		assert.Nil(t, err)
		assert.Len(t, summaries, 2)
		assert.Equal(t, ClaimStatus_Pending, summaries[0].Status)
		assert.Equal(t, int64(2), summaries[0].Count)
		assert.True(t, summaries[0].Amount.Equal(decimal.NewFromInt(6)))
		assert.Equal(t, ClaimStatus_Withdrawn, summaries[1].Status)
		assert.True(t, summaries[1].Amount.Equal(decimal.RequireFromString("1.5")))
	})

	t.Run("Should lock records in id order", func(t *testing.T) {
		err := grm.Transaction(func(tx *gorm.DB) error {
			locked, err := store.LockRecords(tx, []string{bob.Id, aliceSol.Id, "missing"})
			if err != nil {
				return err
			}
			assert.Len(t, locked, 2)
			assert.True(t, locked[0].Id < locked[1].Id)
			return nil
		})
		assert.Nil(t, err)
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
