package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Layr-Labs/rewards-engine/internal/config"
	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/Layr-Labs/rewards-engine/internal/tracer"
	"github.com/Layr-Labs/rewards-engine/pkg/accrual"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var accrueCmd = &cobra.Command{
	Use:   "accrue",
	Short: "Run a single accrual pass over every verified contribution and exit",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()

		ctx := context.Background()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		tracer.StartTracer(cfg.DataDogConfig.EnableApm)
		defer tracer.StopTracer()

		e, err := newEngine(ctx, cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup rewards engine", zap.Error(err))
		}

		var bar *progressbar.ProgressBar
		summary, err := e.scheduler.RunWithProgress(ctx, accrual.RunTrigger_Cli, func(done int, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total), "accruing")
			}
			_ = bar.Set(done)
		})
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			l.Sugar().Fatalw("Accrual run failed", zap.Error(err))
		}

		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			l.Sugar().Fatalw("Failed to encode run summary", zap.Error(err))
		}
		fmt.Fprintln(os.Stdout, string(out))
	},
}
