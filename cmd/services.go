package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/pkg/accrual"
	"github.com/Layr-Labs/rewards-engine/pkg/chains"
	"github.com/Layr-Labs/rewards-engine/pkg/claims"
	"github.com/Layr-Labs/rewards-engine/pkg/clients/coingecko"
	"github.com/Layr-Labs/rewards-engine/pkg/clients/paymentExecutor"
	"github.com/Layr-Labs/rewards-engine/pkg/contributions"
	"github.com/Layr-Labs/rewards-engine/pkg/distribution"
	"github.com/Layr-Labs/rewards-engine/pkg/leaderLock"
	"github.com/Layr-Labs/rewards-engine/pkg/metrics"
	"github.com/Layr-Labs/rewards-engine/pkg/postgres"
	"github.com/Layr-Labs/rewards-engine/pkg/postgres/migrations"
	"github.com/Layr-Labs/rewards-engine/pkg/pricing"
	"github.com/Layr-Labs/rewards-engine/pkg/rewardRecords"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// engine holds the services shared by every subcommand.
type engine struct {
	db    *sql.DB
	grm   *gorm.DB
	sink  *metrics.MetricsSink
	clock clockwork.Clock

	registry    *chains.ChainRegistry
	ledger      *contributions.ContributionLedger
	records     *rewardRecords.RewardRecordStore
	prices      *pricing.PriceCache
	scheduler   *accrual.AccrualScheduler
	claims      *claims.ClaimProcessor
	distributor *distribution.Distributor
}

func openDatabase(ctx context.Context, cfg *config.Config, l *zap.Logger) (*sql.DB, *gorm.DB, error) {
	pg, err := postgres.NewPostgres(postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig), l)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup postgres connection: %w", err)
	}

	grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gorm instance: %w", err)
	}

	migrator := migrations.NewMigrator(pg.Db, grm, l, cfg)
	if err = migrator.MigrateAll(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return pg.Db, grm, nil
}

func seedChains(ctx context.Context, cfg *config.Config, registry *chains.ChainRegistry) error {
	if cfg.ChainsConfig.SeedFile == "" {
		return nil
	}
	seeds, err := chains.LoadChainSeeds(cfg.ChainsConfig.SeedFile)
	if err != nil {
		return err
	}
	if _, err := registry.SeedChains(ctx, seeds); err != nil {
		return fmt.Errorf("failed to seed chains from '%s': %w", cfg.ChainsConfig.SeedFile, err)
	}
	return nil
}

func newMetricsSink(cfg *config.Config, l *zap.Logger) (*metrics.MetricsSink, error) {
	metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		return nil, err
	}
	return metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
}

func newEngine(ctx context.Context, cfg *config.Config, l *zap.Logger) (*engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sink, err := newMetricsSink(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics sink: %w", err)
	}

	db, grm, err := openDatabase(ctx, cfg, l)
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()

	registry := chains.NewChainRegistry(grm, l, clock)
	if err := seedChains(ctx, cfg, registry); err != nil {
		return nil, err
	}

	ledger := contributions.NewContributionLedger(grm, registry, l, clock)
	records := rewardRecords.NewRewardRecordStore(grm, l)

	cg := coingecko.NewClient(cfg.CoingeckoConfig.ApiKey, cfg.CoingeckoConfig.BaseUrl, l)
	prices := pricing.NewPriceCache(cg, pricing.DefaultTTL, clock, l)

	lock := leaderLock.NewAdvisoryLock(db, cfg.AccrualConfig.LockKey, l)

	scheduler := accrual.NewAccrualScheduler(
		&accrual.AccrualSchedulerConfig{Concurrency: cfg.AccrualConfig.Concurrency},
		grm,
		registry,
		ledger,
		records,
		accrual.NewCalculator(cfg.AccrualConfig.NegligibleThreshold, l),
		prices,
		lock,
		sink,
		clock,
		l,
	)

	// a nil *paymentExecutor.Client must not end up inside the interface
	var verifier claims.SettlementVerifier
	if cfg.PaymentExecutorConfig.Url != "" {
		verifier = paymentExecutor.NewClient(cfg.PaymentExecutorConfig.Url, cfg.PaymentExecutorConfig.ApiKey, l)
	} else {
		l.Sugar().Warnw("No payment executor configured; settlement references will not be verified")
	}

	claimProcessor := claims.NewClaimProcessor(
		&claims.ClaimProcessorConfig{AllowCrossUserBatch: cfg.ClaimsConfig.AllowCrossUserBatch},
		records,
		verifier,
		sink,
		clock,
		l,
	)

	distributor := distribution.NewDistributor(
		&distribution.DistributorConfig{PoolPercentage: cfg.DistributionConfig.PoolPercentage},
		grm,
		registry,
		records,
		prices,
		sink,
		clock,
		l,
	)

	return &engine{
		db:          db,
		grm:         grm,
		sink:        sink,
		clock:       clock,
		registry:    registry,
		ledger:      ledger,
		records:     records,
		prices:      prices,
		scheduler:   scheduler,
		claims:      claimProcessor,
		distributor: distributor,
	}, nil
}
