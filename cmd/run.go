package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/Layr-Labs/rewards-engine/internal/tracer"
	"github.com/Layr-Labs/rewards-engine/internal/version"
	"github.com/Layr-Labs/rewards-engine/pkg/accrual"
	"github.com/Layr-Labs/rewards-engine/pkg/admin"
	"github.com/Layr-Labs/rewards-engine/pkg/metrics/prometheus"
	"github.com/Layr-Labs/rewards-engine/pkg/rpcServer"
	"github.com/Layr-Labs/rewards-engine/pkg/service/analyticsDataService"
	"github.com/Layr-Labs/rewards-engine/pkg/service/rewardsDataService"
	"github.com/Layr-Labs/rewards-engine/pkg/shutdown"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the accrual scheduler and the HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		l.Sugar().Infow("rewards engine run",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
		)

		tracer.StartTracer(cfg.DataDogConfig.EnableApm)
		defer tracer.StopTracer()

		e, err := newEngine(ctx, cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup rewards engine", zap.Error(err))
		}

		queue := accrual.NewAccrualRunQueue(e.scheduler, l)
		go queue.Process(ctx)

		accrualCron, err := accrual.NewAccrualCron(cfg.AccrualConfig.CronSchedule, queue, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup accrual schedule", zap.Error(err))
		}
		accrualCron.Start()

		adminService := admin.NewAdminService(e.grm, e.registry, e.ledger, e.claims, queue, e.clock, l)
		rds := rewardsDataService.NewRewardsDataService(e.grm, e.records, l)
		ads := analyticsDataService.NewAnalyticsDataService(e.grm, l)

		if cfg.RpcConfig.AdminToken == "" {
			l.Sugar().Warnw("No admin token configured; admin routes are unauthenticated")
		}

		rpc := rpcServer.NewRpcServer(&rpcServer.RpcServerConfig{
			HttpPort:       cfg.RpcConfig.HttpPort,
			AdminToken:     cfg.RpcConfig.AdminToken,
			AllowedOrigins: cfg.RpcConfig.AllowedOrigins,
		}, adminService, e.ledger, e.claims, e.distributor, e.scheduler, rds, ads, e.sink, l)

		// RPC channel to notify the RPC server to shutdown gracefully
		rpcChannel := make(chan bool)
		if err := rpc.Start(ctx, rpcChannel); err != nil {
			l.Sugar().Fatalw("Failed to start RPC server", zap.Error(err))
		}

		promChan := make(chan bool)
		if cfg.PrometheusConfig.Enabled {
			pServer := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			if err := pServer.Start(promChan); err != nil {
				l.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
			}
		}

		l.Sugar().Infow("Started rewards engine",
			zap.Int("httpPort", cfg.RpcConfig.HttpPort),
			zap.String("accrualSchedule", cfg.AccrualConfig.CronSchedule),
		)

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer stopCancel()
			accrualCron.Stop(stopCtx)

			rpcChannel <- true
			if cfg.PrometheusConfig.Enabled {
				promChan <- true
			}
			queue.Close()
			cancel()
		}, time.Second*5, l)
	},
}

func initRunCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
