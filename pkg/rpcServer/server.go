package rpcServer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Layr-Labs/rewards-engine/pkg/accrual"
	"github.com/Layr-Labs/rewards-engine/pkg/admin"
	"github.com/Layr-Labs/rewards-engine/pkg/claims"
	"github.com/Layr-Labs/rewards-engine/pkg/contributions"
	"github.com/Layr-Labs/rewards-engine/pkg/distribution"
	"github.com/Layr-Labs/rewards-engine/pkg/metrics"
	"github.com/Layr-Labs/rewards-engine/pkg/service/analyticsDataService"
	"github.com/Layr-Labs/rewards-engine/pkg/service/rewardsDataService"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type RpcServerConfig struct {
	HttpPort int

	// AdminToken guards the /v1/admin routes. Empty disables the check.
	AdminToken     string
	AllowedOrigins []string
}

type RpcServer struct {
	config               *RpcServerConfig
	adminService         *admin.AdminService
	ledger               *contributions.ContributionLedger
	claimProcessor       *claims.ClaimProcessor
	distributor          *distribution.Distributor
	scheduler            *accrual.AccrualScheduler
	rewardsDataService   *rewardsDataService.RewardsDataService
	analyticsDataService *analyticsDataService.AnalyticsDataService
	metricsSink          *metrics.MetricsSink
	logger               *zap.Logger

	httpServer *http.Server
}

func NewRpcServer(
	config *RpcServerConfig,
	adminService *admin.AdminService,
	ledger *contributions.ContributionLedger,
	claimProcessor *claims.ClaimProcessor,
	distributor *distribution.Distributor,
	scheduler *accrual.AccrualScheduler,
	rds *rewardsDataService.RewardsDataService,
	ads *analyticsDataService.AnalyticsDataService,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *RpcServer {
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &RpcServer{
		config:               config,
		adminService:         adminService,
		ledger:               ledger,
		claimProcessor:       claimProcessor,
		distributor:          distributor,
		scheduler:            scheduler,
		rewardsDataService:   rds,
		analyticsDataService: ads,
		metricsSink:          ms,
		logger:               l,
	}
}

// Handler builds the full route tree wrapped in CORS handling.
func (rpc *RpcServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rpc.metricsMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/about", rpc.About)

		r.Get("/rewards", rpc.ListRewards)
		r.Get("/rewards/{rewardId}", rpc.GetReward)
		r.Post("/rewards/{rewardId}/claim", rpc.ClaimReward)

		r.Get("/contributions/{contributionId}", rpc.GetContribution)
		r.Get("/contributions/{contributionId}/rewards", rpc.ListContributionRewards)

		r.Get("/analytics/chains", rpc.GetTotalsByChain)
		r.Get("/analytics/wallet-categories", rpc.GetTotalsByWalletCategory)
		r.Get("/analytics/top-contributors", rpc.GetTopContributors)

		r.Get("/distributions", rpc.ListDistributions)
		r.Get("/distributions/{periodKey}", rpc.GetDistribution)

		r.Route("/admin", func(r chi.Router) {
			r.Use(rpc.adminAuth)

			r.Get("/chains", rpc.ListChains)
			r.Get("/chains/unconfigured", rpc.ListUnconfiguredChains)
			r.Put("/chains/{chain}/apy", rpc.UpdateApy)
			r.Post("/chains/{chain}/enable", rpc.EnableChain)
			r.Post("/chains/{chain}/disable", rpc.DisableChain)
			r.Put("/chains/{chain}/bank-wallet", rpc.SetBankWallet)
			r.Put("/bank-wallets", rpc.BatchSetBankWallets)

			r.Post("/accrual/run", rpc.TriggerRecalculation)
			r.Get("/accrual/runs", rpc.ListAccrualRuns)

			r.Post("/rewards/settle", rpc.SettleRewards)
			r.Get("/rewards/export", rpc.ExportRewards)

			r.Post("/contributions", rpc.RecordContribution)
			r.Post("/contributions/{contributionId}/verify", rpc.VerifyContribution)
			r.Post("/contributions/{contributionId}/reject", rpc.RejectContribution)

			r.Post("/snapshots", rpc.CaptureSnapshot)
			r.Post("/distributions", rpc.Distribute)
		})
	})

	return cors.New(cors.Options{
		AllowedOrigins: rpc.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(r)
}

// Start serves HTTP in the background until a value arrives on stop.
func (rpc *RpcServer) Start(ctx context.Context, stop <-chan bool) error {
	rpc.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", rpc.config.HttpPort),
		Handler:           rpc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		rpc.logger.Sugar().Infow("Starting HTTP server", zap.Int("port", rpc.config.HttpPort))
		if err := rpc.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rpc.logger.Sugar().Errorw("HTTP server failed", zap.Error(err))
		}
	}()
	go func() {
		<-stop
		rpc.logger.Sugar().Infow("Stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := rpc.httpServer.Shutdown(shutdownCtx); err != nil {
			rpc.logger.Sugar().Errorw("Failed to shut down HTTP server", zap.Error(err))
		}
	}()
	return nil
}
