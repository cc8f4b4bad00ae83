package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "REWARDS_ENGINE"

const (
	Debug = "debug"

	DatabaseHost        = "database.host"
	DatabasePort        = "database.port"
	DatabaseUser        = "database.user"
	DatabasePassword    = "database.password"
	DatabaseDbName      = "database.db_name"
	DatabaseSchemaName  = "database.schema_name"
	DatabaseSSLMode     = "database.ssl_mode"
	DatabaseSSLCert     = "database.ssl_cert"
	DatabaseSSLKey      = "database.ssl_key"
	DatabaseSSLRootCert = "database.ssl_root_cert"

	RpcHttpPort       = "rpc.http-port"
	RpcAdminToken     = "rpc.admin-token"
	RpcAllowedOrigins = "rpc.allowed-origins"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	DataDogStatsdEnabled = "datadog.statsd.enabled"
	DataDogStatsdUrl     = "datadog.statsd.url"
	DataDogApmEnabled    = "datadog.apm.enabled"

	AccrualCronSchedule        = "accrual.cron-schedule"
	AccrualNegligibleThreshold = "accrual.negligible-threshold"
	AccrualConcurrency         = "accrual.concurrency"
	AccrualLockKey             = "accrual.lock-key"

	DistributionPoolPercentage = "distribution.pool-percentage"

	ClaimsAllowCrossUserBatch = "claims.allow-cross-user-batch"

	PaymentExecutorUrl    = "payment-executor.url"
	PaymentExecutorApiKey = "payment-executor.api-key"

	CoingeckoApiKey  = "coingecko.api-key"
	CoingeckoBaseUrl = "coingecko.base-url"

	ChainsSeedFile = "chains.seed-file"
)

// DefaultAccrualLockKey is the advisory lock id that guards accrual runs. Every
// instance pointing at the same database must use the same value.
const DefaultAccrualLockKey int64 = 0x52574453 // "RWDS"

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DbName      string
	SchemaName  string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
}

type RpcConfig struct {
	HttpPort       int
	AdminToken     string
	AllowedOrigins []string
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type DataDogConfig struct {
	StatsdConfig struct {
		Enabled bool
		Url     string
	}
	EnableApm bool
}

type AccrualConfig struct {
	CronSchedule        string
	NegligibleThreshold decimal.Decimal
	Concurrency         int
	LockKey             int64
}

type DistributionConfig struct {
	PoolPercentage decimal.Decimal
}

type ClaimsConfig struct {
	AllowCrossUserBatch bool
}

type PaymentExecutorConfig struct {
	Url    string
	ApiKey string
}

type CoingeckoConfig struct {
	ApiKey  string
	BaseUrl string
}

type ChainsConfig struct {
	SeedFile string
}

type Config struct {
	Debug                 bool
	DatabaseConfig        DatabaseConfig
	RpcConfig             RpcConfig
	PrometheusConfig      PrometheusConfig
	DataDogConfig         DataDogConfig
	AccrualConfig         AccrualConfig
	DistributionConfig    DistributionConfig
	ClaimsConfig          ClaimsConfig
	PaymentExecutorConfig PaymentExecutorConfig
	CoingeckoConfig       CoingeckoConfig
	ChainsConfig          ChainsConfig
}

// KebabToSnakeCase converts a flag name like "rpc.http-port" into the key viper
// stores it under ("rpc.http_port").
func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}

func parseListAsString(s string) []string {
	if s == "" {
		return []string{}
	}
	values := make([]string, 0)
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

func parseDecimalOrDefault(s string, def decimal.Decimal) decimal.Decimal {
	if s == "" {
		return def
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return def
	}
	return d
}

var (
	DefaultNegligibleThreshold = decimal.New(1, -12)
	DefaultPoolPercentage      = decimal.NewFromFloat(0.25)
)

func NewConfig() *Config {
	cfg := &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		DatabaseConfig: DatabaseConfig{
			Host:        viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:        viper.GetInt(normalizeFlagName(DatabasePort)),
			User:        viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:    viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:      viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName:  viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:     viper.GetString(normalizeFlagName(DatabaseSSLMode)),
			SSLCert:     viper.GetString(normalizeFlagName(DatabaseSSLCert)),
			SSLKey:      viper.GetString(normalizeFlagName(DatabaseSSLKey)),
			SSLRootCert: viper.GetString(normalizeFlagName(DatabaseSSLRootCert)),
		},

		RpcConfig: RpcConfig{
			HttpPort:       viper.GetInt(normalizeFlagName(RpcHttpPort)),
			AdminToken:     viper.GetString(normalizeFlagName(RpcAdminToken)),
			AllowedOrigins: parseListAsString(viper.GetString(normalizeFlagName(RpcAllowedOrigins))),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},

		AccrualConfig: AccrualConfig{
			CronSchedule:        viper.GetString(normalizeFlagName(AccrualCronSchedule)),
			NegligibleThreshold: parseDecimalOrDefault(viper.GetString(normalizeFlagName(AccrualNegligibleThreshold)), DefaultNegligibleThreshold),
			Concurrency:         viper.GetInt(normalizeFlagName(AccrualConcurrency)),
			LockKey:             viper.GetInt64(normalizeFlagName(AccrualLockKey)),
		},

		DistributionConfig: DistributionConfig{
			PoolPercentage: parseDecimalOrDefault(viper.GetString(normalizeFlagName(DistributionPoolPercentage)), DefaultPoolPercentage),
		},

		ClaimsConfig: ClaimsConfig{
			AllowCrossUserBatch: viper.GetBool(normalizeFlagName(ClaimsAllowCrossUserBatch)),
		},

		PaymentExecutorConfig: PaymentExecutorConfig{
			Url:    viper.GetString(normalizeFlagName(PaymentExecutorUrl)),
			ApiKey: viper.GetString(normalizeFlagName(PaymentExecutorApiKey)),
		},

		CoingeckoConfig: CoingeckoConfig{
			ApiKey:  viper.GetString(normalizeFlagName(CoingeckoApiKey)),
			BaseUrl: viper.GetString(normalizeFlagName(CoingeckoBaseUrl)),
		},

		ChainsConfig: ChainsConfig{
			SeedFile: viper.GetString(normalizeFlagName(ChainsSeedFile)),
		},
	}
	cfg.DataDogConfig.StatsdConfig.Enabled = viper.GetBool(normalizeFlagName(DataDogStatsdEnabled))
	cfg.DataDogConfig.StatsdConfig.Url = viper.GetString(normalizeFlagName(DataDogStatsdUrl))
	cfg.DataDogConfig.EnableApm = viper.GetBool(normalizeFlagName(DataDogApmEnabled))

	if cfg.AccrualConfig.CronSchedule == "" {
		cfg.AccrualConfig.CronSchedule = "0 * * * *"
	}
	if cfg.AccrualConfig.Concurrency <= 0 {
		cfg.AccrualConfig.Concurrency = 1
	}
	if cfg.AccrualConfig.LockKey == 0 {
		cfg.AccrualConfig.LockKey = DefaultAccrualLockKey
	}
	return cfg
}

// Validate checks the values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.DatabaseConfig.Host == "" {
		return errors.New("database host is required")
	}
	if c.AccrualConfig.NegligibleThreshold.IsNegative() {
		return fmt.Errorf("%s must not be negative", AccrualNegligibleThreshold)
	}
	pct := c.DistributionConfig.PoolPercentage
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be a fraction in [0, 1], got %s", DistributionPoolPercentage, pct.String())
	}
	return nil
}
