package distribution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Layr-Labs/rewards-engine/pkg/chains"
	"github.com/Layr-Labs/rewards-engine/pkg/metrics"
	"github.com/Layr-Labs/rewards-engine/pkg/metrics/metricsTypes"
	"github.com/Layr-Labs/rewards-engine/pkg/numbers"
	"github.com/Layr-Labs/rewards-engine/pkg/rewardRecords"
	"github.com/Layr-Labs/rewards-engine/pkg/validation"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DistributorConfig struct {
	PoolPercentage decimal.Decimal
}

type Distributor struct {
	config   *DistributorConfig
	db       *gorm.DB
	registry *chains.ChainRegistry
	records  *rewardRecords.RewardRecordStore
	prices   PriceSource
	sink     *metrics.MetricsSink
	clock    clockwork.Clock
	logger   *zap.Logger
}

func NewDistributor(
	cfg *DistributorConfig,
	db *gorm.DB,
	registry *chains.ChainRegistry,
	records *rewardRecords.RewardRecordStore,
	prices PriceSource,
	sink *metrics.MetricsSink,
	clock clockwork.Clock,
	l *zap.Logger,
) *Distributor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if sink == nil {
		sink = metrics.NewNoopMetricsSink()
	}
	return &Distributor{
		config:   cfg,
		db:       db,
		registry: registry,
		records:  records,
		prices:   prices,
		sink:     sink,
		clock:    clock,
		logger:   l,
	}
}

// CaptureSnapshot stores the holdings for periodKey. A period is captured at most
// once; capturing it again returns the existing snapshot and false.
func (d *Distributor) CaptureSnapshot(ctx context.Context, periodKey string, totalSupply decimal.Decimal, holdings []*SnapshotHolding) (*Snapshot, bool, error) {
	periodKey = strings.TrimSpace(periodKey)
	if periodKey == "" {
		return nil, false, validation.New("periodKey", "is required")
	}
	if totalSupply.IsNegative() {
		return nil, false, validation.New("totalSupply", "cannot be negative")
	}
	seen := make(map[string]struct{}, len(holdings))
	for _, h := range holdings {
		if strings.TrimSpace(h.WalletAddress) == "" {
			return nil, false, validation.New("walletAddress", "is required for every holding")
		}
		if h.Holdings.IsNegative() {
			return nil, false, validation.Newf("holdings", "wallet '%s' has negative holdings", h.WalletAddress)
		}
		if _, ok := seen[h.WalletAddress]; ok {
			return nil, false, validation.Newf("holdings", "wallet '%s' appears more than once", h.WalletAddress)
		}
		seen[h.WalletAddress] = struct{}{}
	}

	now := d.clock.Now().UTC()
	snapshot := &Snapshot{
		PeriodKey:   periodKey,
		TotalSupply: numbers.TruncateAmount(totalSupply),
		CapturedAt:  now,
		CreatedAt:   now,
	}

	created := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(snapshot)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true

		rows := make([]*SnapshotHolding, 0, len(holdings))
		for _, h := range holdings {
			rows = append(rows, &SnapshotHolding{
				PeriodKey:     periodKey,
				WalletAddress: h.WalletAddress,
				UserHandle:    h.UserHandle,
				Holdings:      numbers.TruncateAmount(h.Holdings),
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := d.GetSnapshot(ctx, periodKey)
		if err != nil {
			return nil, false, err
		}
		d.logger.Sugar().Infow("Snapshot already captured", zap.String("periodKey", periodKey))
		return existing, false, nil
	}

	d.logger.Sugar().Infow("Captured snapshot",
		zap.String("periodKey", periodKey),
		zap.Int("wallets", len(holdings)),
		zap.String("totalSupply", snapshot.TotalSupply.String()),
	)
	return snapshot, true, nil
}

func (d *Distributor) GetSnapshot(ctx context.Context, periodKey string) (*Snapshot, error) {
	return getSnapshot(d.db.WithContext(ctx), periodKey)
}

func getSnapshot(tx *gorm.DB, periodKey string) (*Snapshot, error) {
	var s Snapshot
	res := tx.Model(&Snapshot{}).Where("period_key = ?", periodKey).First(&s)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrSnapshotNotFound, periodKey)
		}
		return nil, res.Error
	}
	return &s, nil
}

// ListHoldings returns the holdings of a snapshot ordered by wallet address.
func (d *Distributor) ListHoldings(ctx context.Context, periodKey string) ([]*SnapshotHolding, error) {
	return listHoldings(d.db.WithContext(ctx), periodKey)
}

func listHoldings(tx *gorm.DB, periodKey string) ([]*SnapshotHolding, error) {
	holdings := make([]*SnapshotHolding, 0)
	res := tx.Model(&SnapshotHolding{}).
		Where("period_key = ?", periodKey).
		Order("wallet_address asc").
		Find(&holdings)
	if res.Error != nil {
		return nil, res.Error
	}
	return holdings, nil
}

func (d *Distributor) GetPool(ctx context.Context, periodKey string) (*DistributionPool, error) {
	return getPool(d.db.WithContext(ctx), periodKey)
}

func getPool(tx *gorm.DB, periodKey string) (*DistributionPool, error) {
	var p DistributionPool
	res := tx.Model(&DistributionPool{}).Where("period_key = ?", periodKey).First(&p)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrPoolNotFound, periodKey)
		}
		return nil, res.Error
	}
	return &p, nil
}

func (d *Distributor) ListPools(ctx context.Context) ([]*DistributionPool, error) {
	pools := make([]*DistributionPool, 0)
	res := d.db.WithContext(ctx).Model(&DistributionPool{}).Order("created_at desc").Find(&pools)
	if res.Error != nil {
		return nil, res.Error
	}
	return pools, nil
}

func (d *Distributor) stablePrice(ctx context.Context, chain *chains.ChainRateConfig) decimal.Decimal {
	if d.prices == nil || chain.PriceFeedId == "" {
		return decimal.Zero
	}
	price, err := d.prices.UsdPrice(ctx, chain.PriceFeedId)
	if err != nil {
		d.sink.Incr(metricsTypes.Metric_Incr_PriceLookupFailed, []metricsTypes.MetricsLabel{{Name: "asset", Value: chain.NativeAsset}}, 1)
		d.logger.Sugar().Warnw("Failed to look up price, stable amounts will be zero",
			zap.String("chain", chain.Chain),
			zap.Error(err),
		)
		return decimal.Zero
	}
	return price
}

// Distribute splits revenue × pool percentage across the snapshot for periodKey and
// emits one pending reward record per eligible wallet. A period is distributed at
// most once: calling Distribute again returns the stored pool with
// AlreadyDistributed set and writes nothing.
func (d *Distributor) Distribute(ctx context.Context, periodKey string, chain string, revenue decimal.Decimal) (*DistributionResult, error) {
	startTime := time.Now()

	if revenue.IsNegative() {
		return nil, validation.New("revenue", "cannot be negative")
	}
	chainCfg, err := d.registry.GetChain(ctx, chain)
	if err != nil {
		return nil, err
	}
	poolAmount, err := PoolAmount(revenue, d.config.PoolPercentage)
	if err != nil {
		return nil, err
	}
	price := d.stablePrice(ctx, chainCfg)

	var result *DistributionResult
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snapshot, err := getSnapshot(tx, periodKey)
		if err != nil {
			return err
		}

		now := d.clock.Now().UTC()
		pending := &DistributionPool{
			PeriodKey:         periodKey,
			Chain:             chainCfg.Chain,
			Revenue:           numbers.TruncateAmount(revenue),
			PoolPercentage:    d.config.PoolPercentage,
			PoolAmount:        poolAmount,
			DistributedAmount: decimal.Zero,
			Dust:              decimal.Zero,
			Status:            PoolStatus_Computed,
			CreatedAt:         now,
		}
		if res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(pending); res.Error != nil {
			return res.Error
		}

		pool, err := getPool(tx.Clauses(clause.Locking{Strength: "UPDATE"}), periodKey)
		if err != nil {
			return err
		}
		if pool.Status == PoolStatus_Distributed {
			if !pool.Revenue.Equal(pending.Revenue) || pool.Chain != pending.Chain {
				d.logger.Sugar().Warnw("Period already distributed with different inputs",
					zap.String("periodKey", periodKey),
					zap.String("storedRevenue", pool.Revenue.String()),
					zap.String("requestedRevenue", pending.Revenue.String()),
				)
			}
			result = &DistributionResult{Pool: pool, AlreadyDistributed: true}
			return nil
		}

		holdings, err := listHoldings(tx, periodKey)
		if err != nil {
			return err
		}
		allocations, dust, err := ComputeAllocations(pool.PoolAmount, snapshot.TotalSupply, holdings)
		if err != nil {
			return err
		}
		sort.Slice(allocations, func(i, j int) bool {
			return allocations[i].WalletAddress < allocations[j].WalletAddress
		})
		root, err := DistributionRoot(periodKey, allocations)
		if err != nil {
			return err
		}

		key := periodKey
		records := make([]*rewardRecords.RewardRecord, 0, len(allocations))
		for _, a := range allocations {
			records = append(records, &rewardRecords.RewardRecord{
				Id:            uuid.NewString(),
				Source:        rewardRecords.RewardSource_Distribution,
				PeriodKey:     &key,
				UserHandle:    a.UserHandle,
				WalletAddress: a.WalletAddress,
				Chain:         pool.Chain,
				Amount:        a.Amount,
				StableAmount:  numbers.TruncateAmount(a.Amount.Mul(price)),
				PeriodStart:   snapshot.CapturedAt,
				PeriodEnd:     snapshot.CapturedAt,
				Apy:           decimal.Zero,
				Status:        rewardRecords.ClaimStatus_Pending,
				ComputedAt:    now,
			})
		}
		if err := d.records.InsertRecords(tx, records); err != nil {
			return err
		}

		pool.DistributedAmount = pool.PoolAmount.Sub(dust)
		pool.Dust = dust
		pool.Recipients = len(records)
		pool.DistributionRoot = root
		pool.Status = PoolStatus_Distributed
		pool.DistributedAt = &now
		res := tx.Model(&DistributionPool{}).
			Where("period_key = ? and status = ?", periodKey, PoolStatus_Computed).
			Updates(map[string]interface{}{
				"distributed_amount": pool.DistributedAmount,
				"dust":               pool.Dust,
				"recipients":         pool.Recipients,
				"distribution_root":  pool.DistributionRoot,
				"status":             pool.Status,
				"distributed_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("distribution pool '%s' changed during distribution", periodKey)
		}
		result = &DistributionResult{Pool: pool}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyDistributed {
		labels := []metricsTypes.MetricsLabel{{Name: "chain", Value: result.Pool.Chain}}
		d.sink.Incr(metricsTypes.Metric_Incr_DistributionCompleted, labels, 1)
		dust, _ := result.Pool.Dust.Float64()
		d.sink.Gauge(metricsTypes.Metric_Gauge_DistributionDust, dust, labels)
		d.sink.Timing(metricsTypes.Metric_Timing_DistributionDuration, time.Since(startTime), labels)
	}
	d.logger.Sugar().Infow("Distribution complete",
		zap.String("periodKey", periodKey),
		zap.Bool("alreadyDistributed", result.AlreadyDistributed),
		zap.String("poolAmount", result.Pool.PoolAmount.String()),
		zap.String("distributed", result.Pool.DistributedAmount.String()),
		zap.String("dust", result.Pool.Dust.String()),
		zap.Int("recipients", result.Pool.Recipients),
	)
	return result, nil
}
