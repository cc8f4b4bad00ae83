package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func Test_Config(t *testing.T) {
	t.Run("Should convert kebab case flag names to viper keys", func(t *testing.T) {
		assert.Equal(t, "rpc.http_port", KebabToSnakeCase(RpcHttpPort))
		assert.Equal(t, "claims.allow_cross_user_batch", KebabToSnakeCase(ClaimsAllowCrossUserBatch))
	})

	t.Run("Should apply defaults for accrual and distribution settings", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)

		cfg := NewConfig()
		assert.Equal(t, "0 * * * *", cfg.AccrualConfig.CronSchedule)
		assert.Equal(t, 1, cfg.AccrualConfig.Concurrency)
		assert.Equal(t, DefaultAccrualLockKey, cfg.AccrualConfig.LockKey)
		assert.True(t, cfg.AccrualConfig.NegligibleThreshold.Equal(DefaultNegligibleThreshold))
		assert.True(t, cfg.DistributionConfig.PoolPercentage.Equal(decimal.RequireFromString("0.25")))
	})

	t.Run("Should read values set through viper", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)

		viper.Set(KebabToSnakeCase(DistributionPoolPercentage), "0.5")
		viper.Set(KebabToSnakeCase(RpcAllowedOrigins), "https://a.example, https://b.example,")
		viper.Set(KebabToSnakeCase(AccrualConcurrency), 8)

		cfg := NewConfig()
		assert.True(t, cfg.DistributionConfig.PoolPercentage.Equal(decimal.RequireFromString("0.5")))
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.RpcConfig.AllowedOrigins)
		assert.Equal(t, 8, cfg.AccrualConfig.Concurrency)
	})

	t.Run("Should reject a pool percentage above one", func(t *testing.T) {
		cfg := &Config{
			DatabaseConfig:     DatabaseConfig{Host: "localhost"},
			DistributionConfig: DistributionConfig{PoolPercentage: decimal.NewFromInt(2)},
		}
		assert.Error(t, cfg.Validate())
	})
}
