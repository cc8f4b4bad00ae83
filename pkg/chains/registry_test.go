package chains

import (
	"context"
	"strings"
	"testing"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/Layr-Labs/rewards-engine/internal/tests"
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

func Test_ChainRegistry(t *testing.T) {
	tests.SkipWithoutDatabase(t)

	dbName, grm, l, cfg, err := setup()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	registry := NewChainRegistry(grm, l, clockwork.NewFakeClock())

	inserted, err := registry.SeedChains(ctx, []*ChainSeed{
		{Chain: "ethereum", NativeAsset: "ETH", Apy: "5"},
		{Chain: "solana", NativeAsset: "SOL", Apy: "7"},
	})
	assert.Nil(t, err)
	assert.Equal(t, int64(2), inserted)

	t.Run("Should not overwrite existing chains when seeding again", func(t *testing.T) {
		inserted, err := registry.SeedChains(ctx, []*ChainSeed{{Chain: "ethereum", NativeAsset: "ETH", Apy: "50"}})
		assert.Nil(t, err)
		assert.Equal(t, int64(0), inserted)

		eth, err := registry.GetChain(ctx, "ethereum")
		assert.Nil(t, err)
		assert.True(t, eth.Apy.Equal(decimal.NewFromInt(5)))
	})

	t.Run("Should list chains without a bank wallet as unconfigured", func(t *testing.T) {
		unconfigured, err := registry.ListUnconfiguredChains(ctx)
		assert.Nil(t, err)
		assert.Len(t, unconfigured, 2)
	})

	t.Run("Should reject a short EVM bank wallet and leave the chain inactive", func(t *testing.T) {
		_, err := registry.SetBankWallet(ctx, "ethereum", "0x"+strings.Repeat("a", 39))
		assert.True(t, validation.IsValidationError(err))

		eth, err := registry.GetChain(ctx, "ethereum")
		assert.Nil(t, err)
		assert.False(t, eth.Active)
		assert.Nil(t, eth.BankWalletAddress)
	})

	t.Run("Should refuse to activate a chain without a bank wallet", func(t *testing.T) {
		_, _, err := registry.SetActive(grm, "solana", true)
		assert.ErrorIs(t, err, ErrBankWalletRequired)
	})

	t.Run("Should store a valid bank wallet and activate the chain", func(t *testing.T) {
		eth, err := registry.SetBankWallet(ctx, "ethereum", "0x7750d328b314effa365a0402ccfd489b80b0adda")
		assert.Nil(t, err)
		assert.True(t, eth.Active)

		unconfigured, err := registry.ListUnconfiguredChains(ctx)
		assert.Nil(t, err)
		assert.Len(t, unconfigured, 1)
		assert.Equal(t, "solana", unconfigured[0].Chain)
	})

	t.Run("Should report whether the active flag changed", func(t *testing.T) {
		cfg, changed, err := registry.SetActive(grm, "ethereum", true)
		assert.Nil(t, err)
		assert.False(t, changed)
		assert.True(t, cfg.Active)

		cfg, changed, err = registry.SetActive(grm, "ethereum", false)
		assert.Nil(t, err)
		assert.True(t, changed)
		assert.False(t, cfg.Active)

		eth, err := registry.SetBankWallet(ctx, "ethereum", "0x7750d328b314effa365a0402ccfd489b80b0adda")
		assert.Nil(t, err)
		assert.True(t, eth.Active)
	})

	t.Run("Should validate apy bounds", func(t *testing.T) {
		_, err := registry.UpdateApy(ctx, "ethereum", decimal.NewFromInt(101))
		assert.True(t, validation.IsValidationError(err))

		_, err = registry.UpdateApy(ctx, "ethereum", decimal.NewFromInt(-1))
		assert.True(t, validation.IsValidationError(err))

		updated, err := registry.UpdateApyForAll(ctx, decimal.NewFromInt(12))
		assert.Nil(t, err)
		assert.Equal(t, int64(2), updated)

		_, err = registry.UpdateApy(ctx, "cardano", decimal.NewFromInt(3))
		assert.ErrorIs(t, err, ErrChainNotFound)
	})

	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
