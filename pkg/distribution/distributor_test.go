package distribution

import (
	"context"
	"testing"
	"time"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/Layr-Labs/rewards-engine/internal/tests"
	"github.com/Layr-Labs/rewards-engine/pkg/chains"
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

type fixedPrice struct{}

func (f *fixedPrice) UsdPrice(ctx context.Context, priceFeedId string) (decimal.Decimal, error) {
	return decimal.NewFromInt(2), nil
}

func Test_Distributor(t *testing.T) {
	tests.SkipWithoutDatabase(t)

	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	d := decimal.RequireFromString
	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	registry := chains.NewChainRegistry(grm, l, clock)
	records := rewardRecords.NewRewardRecordStore(grm, l)
	_, err = registry.SeedChains(ctx, []*chains.ChainSeed{{Chain: "ethereum", NativeAsset: "ETH", PriceFeedId: "ethereum"}})
	assert.Nil(t, err)

	distributor := NewDistributor(&DistributorConfig{PoolPercentage: d("0.25")}, grm, registry, records, &fixedPrice{}, nil, clock, l)

	t.Run("Should capture a snapshot once", func(t *testing.T) {
		snapshot, created, err := distributor.CaptureSnapshot(ctx, "2026-01", d("100"), []*SnapshotHolding{
			{WalletAddress: "0xaaaa", UserHandle: "alice", Holdings: d("30")},
			{WalletAddress: "0xbbbb", Holdings: d("70")},
		})
		assert.Nil(t, err)
		assert.True(t, created)
		assert.True(t, snapshot.TotalSupply.Equal(d("100")))

		again, created, err := distributor.CaptureSnapshot(ctx, "2026-01", d("500"), []*SnapshotHolding{
			{WalletAddress: "0xcccc", Holdings: d("500")},
		})
		assert.Nil(t, err)
		assert.False(t, created)
		assert.True(t, again.TotalSupply.Equal(d("100")))

		holdings, err := distributor.ListHoldings(ctx, "2026-01")
		assert.Nil(t, err)
		assert.Len(t, holdings, 2)
	})

	t.Run("Should distribute the pool proportionally", func(t *testing.T) {
		result, err := distributor.Distribute(ctx, "2026-01", "ethereum", d("1000"))
		assert.Nil(t, err)
		assert.False(t, result.AlreadyDistributed)
		assert.True(t, result.Pool.PoolAmount.Equal(d("250")))
		assert.True(t, result.Pool.DistributedAmount.Equal(d("250")))
		assert.True(t, result.Pool.Dust.IsZero())
		assert.Equal(t, 2, result.Pool.Recipients)
		assert.Equal(t, PoolStatus_Distributed, result.Pool.Status)
		assert.NotEmpty(t, result.Pool.DistributionRoot)

		emitted, err := records.ListRecordsForPeriod(ctx, "2026-01")
		assert.Nil(t, err)
		assert.Len(t, emitted, 2)
		assert.Equal(t, "0xaaaa", emitted[0].WalletAddress)
		assert.Equal(t, "alice", emitted[0].UserHandle)
		assert.True(t, emitted[0].Amount.Equal(d("75")))
		assert.True(t, emitted[0].StableAmount.Equal(d("150")))
		assert.Equal(t, "0xbbbb", emitted[1].UserHandle)
		assert.True(t, emitted[1].Amount.Equal(d("175")))
		assert.Equal(t, rewardRecords.ClaimStatus_Pending, emitted[1].Status)
		assert.Nil(t, emitted[1].ContributionId)
	})

	t.Run("Should report the prior result when distributing a period again", func(t *testing.T) {
		result, err := distributor.Distribute(ctx, "2026-01", "ethereum", d("5000"))
		assert.Nil(t, err)
		assert.True(t, result.AlreadyDistributed)
		assert.True(t, result.Pool.PoolAmount.Equal(d("250")))

		emitted, err := records.ListRecordsForPeriod(ctx, "2026-01")
		assert.Nil(t, err)
		assert.Len(t, emitted, 2)
	})

	t.Run("Should refuse to distribute without a snapshot", func(t *testing.T) {
		_, err := distributor.Distribute(ctx, "2026-02", "ethereum", d("1000"))
		assert.ErrorIs(t, err, ErrSnapshotNotFound)
	})

	t.Run("Should refuse unknown chains", func(t *testing.T) {
		_, err := distributor.Distribute(ctx, "2026-01", "dogecoin", d("1000"))
		assert.ErrorIs(t, err, chains.ErrChainNotFound)
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
