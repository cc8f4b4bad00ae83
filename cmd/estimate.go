package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/Layr-Labs/rewards-engine/pkg/accrual"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	estimatePrincipalFlag = "principal"
	estimateApyFlag       = "apy"
	estimateHoursFlag     = "hours"
)

type estimateResult struct {
	Principal  decimal.Decimal `json:"principal"`
	Apy        decimal.Decimal `json:"apy"`
	Hours      decimal.Decimal `json:"hours"`
	Reward     decimal.Decimal `json:"reward"`
	Negligible bool            `json:"negligible"`
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Quote the compound reward a principal would earn over a number of hours",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		principal, _ := cmd.Flags().GetFloat64(estimatePrincipalFlag)
		apy, _ := cmd.Flags().GetFloat64(estimateApyFlag)
		hours, _ := cmd.Flags().GetFloat64(estimateHoursFlag)

		calculator := accrual.NewCalculator(cfg.AccrualConfig.NegligibleThreshold, l)
		reward := calculator.RewardFromFloat(principal, apy, hours)

		out, err := json.MarshalIndent(&estimateResult{
			Principal:  decimal.NewFromFloat(principal),
			Apy:        decimal.NewFromFloat(apy),
			Hours:      decimal.NewFromFloat(hours),
			Reward:     reward,
			Negligible: calculator.IsNegligible(reward),
		}, "", "  ")
		if err != nil {
			l.Sugar().Fatalw("Failed to encode estimate", zap.Error(err))
		}
		fmt.Fprintln(os.Stdout, string(out))
	},
}
