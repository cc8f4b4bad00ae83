// Package admin is the administrative control surface. It is the only writer of
// chain configuration and the entry point for manual recalculation and settlement.
package admin

import (
	"context"
	"strings"

	"github.com/Layr-Labs/rewards-engine/pkg/accrual"
	"github.com/Layr-Labs/rewards-engine/pkg/chains"
	"github.com/Layr-Labs/rewards-engine/pkg/claims"
	"github.com/Layr-Labs/rewards-engine/pkg/contributions"
	"github.com/Layr-Labs/rewards-engine/pkg/validation"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AllChains selects every chain in UpdateApy.
const AllChains = "all"

// RecalculationTrigger runs an accrual pass and waits for its summary.
type RecalculationTrigger interface {
	EnqueueAndWait(ctx context.Context, trigger accrual.RunTrigger) (*accrual.RunSummary, error)
}

type ApyUpdate struct {
	Apy     decimal.Decimal `json:"apy"`
	Updated int64           `json:"updated"`
	Chain   string          `json:"chain"`
}

type BankWalletAssignment struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
}

type BankWalletResult struct {
	Chain   string                  `json:"chain"`
	Success bool                    `json:"success"`
	Reason  string                  `json:"reason,omitempty"`
	Config  *chains.ChainRateConfig `json:"config,omitempty"`
}

type AdminService struct {
	db       *gorm.DB
	registry *chains.ChainRegistry
	ledger   *contributions.ContributionLedger
	claims   *claims.ClaimProcessor
	recalc   RecalculationTrigger
	clock    clockwork.Clock
	logger   *zap.Logger
}

func NewAdminService(
	db *gorm.DB,
	registry *chains.ChainRegistry,
	ledger *contributions.ContributionLedger,
	claimProcessor *claims.ClaimProcessor,
	recalc RecalculationTrigger,
	clock clockwork.Clock,
	l *zap.Logger,
) *AdminService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AdminService{
		db:       db,
		registry: registry,
		ledger:   ledger,
		claims:   claimProcessor,
		recalc:   recalc,
		clock:    clock,
		logger:   l,
	}
}

func (as *AdminService) ListChains(ctx context.Context) ([]*chains.ChainRateConfig, error) {
	return as.registry.ListChains(ctx)
}

func (as *AdminService) ListUnconfiguredChains(ctx context.Context) ([]*chains.ChainRateConfig, error) {
	return as.registry.ListUnconfiguredChains(ctx)
}

// UpdateApy changes the rate of one chain, or of every chain when chain is AllChains.
// Existing reward records keep the rate they were computed with.
func (as *AdminService) UpdateApy(ctx context.Context, chain string, apy decimal.Decimal) (*ApyUpdate, error) {
	chain = strings.ToLower(strings.TrimSpace(chain))
	if chain == "" {
		return nil, validation.New("chain", "is required")
	}

	result := &ApyUpdate{Apy: apy, Chain: chain}
	if chain == AllChains {
		updated, err := as.registry.UpdateApyForAll(ctx, apy)
		if err != nil {
			return nil, err
		}
		result.Updated = updated
	} else {
		if _, err := as.registry.UpdateApy(ctx, chain, apy); err != nil {
			return nil, err
		}
		result.Updated = 1
	}
	as.logger.Sugar().Infow("Updated apy",
		zap.String("chain", chain),
		zap.String("apy", apy.String()),
		zap.Int64("updated", result.Updated),
	)
	return result, nil
}

// SetChainActive enables or disables accrual for chain. Disabling keeps every
// contribution and reward. Re-enabling moves checkpoints of the chain's verified
// contributions to now in the same transaction.
func (as *AdminService) SetChainActive(ctx context.Context, chain string, active bool) (*chains.ChainRateConfig, error) {
	var cfg *chains.ChainRateConfig
	var reset int64
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, changed, err := as.registry.SetActive(tx, chain, active)
		if err != nil {
			return err
		}
		cfg = c
		if changed && active {
			reset, err = as.ledger.ResetCheckpointsForChain(tx, c.Chain, as.clock.Now().UTC())
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	as.logger.Sugar().Infow("Set chain active flag",
		zap.String("chain", cfg.Chain),
		zap.Bool("active", active),
		zap.Int64("checkpointsReset", reset),
	)
	return cfg, nil
}

// SetBankWallet validates and assigns the payout address of chain, which activates it.
func (as *AdminService) SetBankWallet(ctx context.Context, chain string, address string) (*chains.ChainRateConfig, error) {
	var cfg *chains.ChainRateConfig
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, activated, err := as.registry.SetBankWalletTx(tx, chain, address)
		if err != nil {
			return err
		}
		cfg = c
		if activated {
			_, err = as.ledger.ResetCheckpointsForChain(tx, c.Chain, as.clock.Now().UTC())
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// BatchSetBankWallets applies each assignment on its own. A rejected address only
// fails its own entry.
func (as *AdminService) BatchSetBankWallets(ctx context.Context, assignments []*BankWalletAssignment) ([]*BankWalletResult, error) {
	if len(assignments) == 0 {
		return nil, validation.New("assignments", "at least one assignment is required")
	}
	results := make([]*BankWalletResult, 0, len(assignments))
	for _, a := range assignments {
		cfg, err := as.SetBankWallet(ctx, a.Chain, a.Address)
		if err != nil {
			as.logger.Sugar().Warnw("Failed to assign bank wallet",
				zap.String("chain", a.Chain),
				zap.Error(err),
			)
			results = append(results, &BankWalletResult{Chain: a.Chain, Reason: err.Error()})
			continue
		}
		results = append(results, &BankWalletResult{Chain: cfg.Chain, Success: true, Config: cfg})
	}
	return results, nil
}

// TriggerRecalculation runs the accrual procedure now and returns its counts.
func (as *AdminService) TriggerRecalculation(ctx context.Context) (*accrual.RunSummary, error) {
	as.logger.Sugar().Infow("Manual recalculation requested")
	return as.recalc.EnqueueAndWait(ctx, accrual.RunTrigger_Manual)
}

func (as *AdminService) SettleRewards(ctx context.Context, batch *claims.BatchSettlement) (*claims.BatchResult, error) {
	return as.claims.SettleBatch(ctx, batch)
}
