package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/Layr-Labs/rewards-engine/pkg/numbers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	distributePeriodFlag  = "period"
	distributeChainFlag   = "chain"
	distributeRevenueFlag = "revenue"
)

var distributeCmd = &cobra.Command{
	Use:   "distribute",
	Short: "Distribute a period's revenue pool across its captured holdings snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()

		ctx := context.Background()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		periodKey, _ := cmd.Flags().GetString(distributePeriodFlag)
		chain, _ := cmd.Flags().GetString(distributeChainFlag)
		revenueStr, _ := cmd.Flags().GetString(distributeRevenueFlag)
		if periodKey == "" || chain == "" || revenueStr == "" {
			l.Sugar().Fatalw("--period, --chain and --revenue are all required")
		}
		revenue, err := numbers.ParseAmount(revenueStr)
		if err != nil {
			l.Sugar().Fatalw("Invalid revenue", zap.String("revenue", revenueStr), zap.Error(err))
		}

		e, err := newEngine(ctx, cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup rewards engine", zap.Error(err))
		}

		result, err := e.distributor.Distribute(ctx, periodKey, chain, revenue)
		if err != nil {
			l.Sugar().Fatalw("Distribution failed",
				zap.String("periodKey", periodKey),
				zap.String("chain", chain),
				zap.Error(err),
			)
		}
		if result.AlreadyDistributed {
			l.Sugar().Infow("Period was already distributed", zap.String("periodKey", periodKey))
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			l.Sugar().Fatalw("Failed to encode distribution result", zap.Error(err))
		}
		fmt.Fprintln(os.Stdout, string(out))
	},
}
