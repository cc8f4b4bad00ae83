package cmd

import (
	"context"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/Layr-Labs/rewards-engine/pkg/chains"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var databaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Apply pending migrations and seed chain configs, then exit",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()

		ctx := context.Background()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		if err := cfg.Validate(); err != nil {
			l.Sugar().Fatalw("Invalid configuration", zap.Error(err))
		}

		_, grm, err := openDatabase(ctx, cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to prepare database", zap.Error(err))
		}

		registry := chains.NewChainRegistry(grm, l, nil)
		if err := seedChains(ctx, cfg, registry); err != nil {
			l.Sugar().Fatalw("Failed to seed chains", zap.Error(err))
		}

		unconfigured, err := registry.ListUnconfiguredChains(ctx)
		if err != nil {
			l.Sugar().Fatalw("Failed to list chains", zap.Error(err))
		}
		for _, c := range unconfigured {
			l.Sugar().Warnw("Chain has no bank wallet and will not accrue", zap.String("chain", c.Chain))
		}

		l.Sugar().Infow("Database is up to date")
	},
}
