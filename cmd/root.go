package cmd

import (
	"os"
	"strings"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/pkg/clients/coingecko"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "rewards-engine",
	Short: "Accrues, distributes and settles contribution rewards across chains",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool("debug", false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "rewards", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "rewards", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLMode, "disable", `PostgreSQL sslmode`)

	rootCmd.PersistentFlags().Int(config.RpcHttpPort, 7101, `http rpc port`)
	rootCmd.PersistentFlags().String(config.RpcAdminToken, "", `Bearer token required by the /v1/admin routes`)
	rootCmd.PersistentFlags().String(config.RpcAllowedOrigins, "", `Comma separated list of CORS origins (default "*")`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Bool(config.DataDogApmEnabled, false, `Enable DataDog APM tracing`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.PersistentFlags().String(config.AccrualCronSchedule, "0 * * * *", `Cron expression for scheduled accrual runs`)
	rootCmd.PersistentFlags().String(config.AccrualNegligibleThreshold, config.DefaultNegligibleThreshold.String(), `Rewards below this amount are not recorded and do not advance the checkpoint`)
	rootCmd.PersistentFlags().Int(config.AccrualConcurrency, 4, `Number of contributions accrued in parallel`)
	rootCmd.PersistentFlags().Int64(config.AccrualLockKey, config.DefaultAccrualLockKey, `PostgreSQL advisory lock id guarding accrual runs`)

	rootCmd.PersistentFlags().String(config.DistributionPoolPercentage, config.DefaultPoolPercentage.String(), `Share of period revenue placed in the distribution pool`)

	rootCmd.PersistentFlags().Bool(config.ClaimsAllowCrossUserBatch, false, `Allow one settlement reference to cover rewards of several users`)

	rootCmd.PersistentFlags().String(config.PaymentExecutorUrl, "", `Base URL of the payment executor used to verify settlements`)
	rootCmd.PersistentFlags().String(config.PaymentExecutorApiKey, "", `API key for the payment executor`)

	rootCmd.PersistentFlags().String(config.CoingeckoApiKey, "", `CoinGecko API key`)
	rootCmd.PersistentFlags().String(config.CoingeckoBaseUrl, coingecko.DefaultBaseUrl, `CoinGecko API base URL`)

	rootCmd.PersistentFlags().String(config.ChainsSeedFile, "", `Path to a YAML file of chain configs to seed on startup`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(accrueCmd)
	rootCmd.AddCommand(distributeCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(databaseCmd)
	rootCmd.AddCommand(versionCmd)

	// bind any subcommand flags
	distributeCmd.PersistentFlags().String(distributePeriodFlag, "", `Period key of a captured snapshot (required)`)
	distributeCmd.PersistentFlags().String(distributeChainFlag, "", `Chain the revenue was earned on (required)`)
	distributeCmd.PersistentFlags().String(distributeRevenueFlag, "", `Revenue for the period in the chain's native asset (required)`)

	estimateCmd.PersistentFlags().Float64(estimatePrincipalFlag, 0, `Principal in the chain's native asset`)
	estimateCmd.PersistentFlags().Float64(estimateApyFlag, 0, `APY percentage, e.g. 5 for 5%`)
	estimateCmd.PersistentFlags().Float64(estimateHoursFlag, 24, `Hours of compounding`)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	// a missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()

	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
