package chains

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Layr-Labs/rewards-engine/pkg/validation"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChainRegistry struct {
	db     *gorm.DB
	logger *zap.Logger
	clock  clockwork.Clock
}

func NewChainRegistry(db *gorm.DB, l *zap.Logger, clock clockwork.Clock) *ChainRegistry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ChainRegistry{
		db:     db,
		logger: l,
		clock:  clock,
	}
}

func normalizeChain(chain string) string {
	return strings.ToLower(strings.TrimSpace(chain))
}

func (cr *ChainRegistry) GetChain(ctx context.Context, chain string) (*ChainRateConfig, error) {
	return cr.getChain(cr.db.WithContext(ctx), chain)
}

func (cr *ChainRegistry) getChain(tx *gorm.DB, chain string) (*ChainRateConfig, error) {
	var cfg ChainRateConfig
	res := tx.Model(&ChainRateConfig{}).Where("chain = ?", normalizeChain(chain)).First(&cfg)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrChainNotFound, chain)
		}
		return nil, res.Error
	}
	return &cfg, nil
}

func (cr *ChainRegistry) ListChains(ctx context.Context) ([]*ChainRateConfig, error) {
	chains := make([]*ChainRateConfig, 0)
	res := cr.db.WithContext(ctx).Model(&ChainRateConfig{}).Order("chain asc").Find(&chains)
	if res.Error != nil {
		return nil, res.Error
	}
	return chains, nil
}

// ListChainsByName returns every chain keyed by name; the scheduler loads this once
// per run.
func (cr *ChainRegistry) ListChainsByName(ctx context.Context) (map[string]*ChainRateConfig, error) {
	chains, err := cr.ListChains(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*ChainRateConfig, len(chains))
	for _, c := range chains {
		byName[c.Chain] = c
	}
	return byName, nil
}

// ListUnconfiguredChains returns chains that still lack a bank wallet address.
func (cr *ChainRegistry) ListUnconfiguredChains(ctx context.Context) ([]*ChainRateConfig, error) {
	chains := make([]*ChainRateConfig, 0)
	res := cr.db.WithContext(ctx).Model(&ChainRateConfig{}).
		Where("bank_wallet_address is null or bank_wallet_address = ''").
		Order("chain asc").
		Find(&chains)
	if res.Error != nil {
		return nil, res.Error
	}
	return chains, nil
}

func ValidateApy(apy decimal.Decimal) error {
	if apy.LessThan(MinApy) || apy.GreaterThan(MaxApy) {
		return validation.Newf("apy", "must be between %s and %s, got %s", MinApy.String(), MaxApy.String(), apy.String())
	}
	return nil
}

// UpdateApy sets the APY of one chain. Already computed reward records are untouched;
// the new rate applies from the next accrual run.
func (cr *ChainRegistry) UpdateApy(ctx context.Context, chain string, apy decimal.Decimal) (*ChainRateConfig, error) {
	if err := ValidateApy(apy); err != nil {
		return nil, err
	}
	res := cr.db.WithContext(ctx).Model(&ChainRateConfig{}).
		Where("chain = ?", normalizeChain(chain)).
		Updates(map[string]interface{}{
			"apy":        apy,
			"updated_at": cr.clock.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: '%s'", ErrChainNotFound, chain)
	}
	return cr.GetChain(ctx, chain)
}

// UpdateApyForAll sets the same APY on every chain and returns how many were updated.
func (cr *ChainRegistry) UpdateApyForAll(ctx context.Context, apy decimal.Decimal) (int64, error) {
	if err := ValidateApy(apy); err != nil {
		return 0, err
	}
	res := cr.db.WithContext(ctx).Model(&ChainRateConfig{}).
		Where("1 = 1").
		Updates(map[string]interface{}{
			"apy":        apy,
			"updated_at": cr.clock.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// SetActive toggles the active flag inside tx. Activation requires a bank wallet.
// changed reports whether the flag actually flipped.
func (cr *ChainRegistry) SetActive(tx *gorm.DB, chain string, active bool) (cfg *ChainRateConfig, changed bool, err error) {
	cfg, err = cr.getChain(tx.Clauses(clause.Locking{Strength: "UPDATE"}), chain)
	if err != nil {
		return nil, false, err
	}
	if active && !cfg.HasBankWallet() {
		return nil, false, ErrBankWalletRequired
	}
	if cfg.Active == active {
		return cfg, false, nil
	}
	now := cr.clock.Now().UTC()
	res := tx.Model(&ChainRateConfig{}).
		Where("chain = ?", cfg.Chain).
		Updates(map[string]interface{}{
			"active":     active,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	cfg.Active = active
	cfg.UpdatedAt = now
	return cfg, true, nil
}

// SetBankWallet validates address against the chain's address family, stores it and
// activates the chain. Nothing is written when validation fails.
func (cr *ChainRegistry) SetBankWallet(ctx context.Context, chain string, address string) (*ChainRateConfig, error) {
	var cfg *ChainRateConfig
	err := cr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, _, err := cr.SetBankWalletTx(tx, chain, address)
		cfg = c
		return err
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetBankWalletTx is SetBankWallet inside tx. activated reports whether the chain
// was inactive before.
func (cr *ChainRegistry) SetBankWalletTx(tx *gorm.DB, chain string, address string) (cfg *ChainRateConfig, activated bool, err error) {
	address = strings.TrimSpace(address)
	cfg, err = cr.getChain(tx.Clauses(clause.Locking{Strength: "UPDATE"}), chain)
	if err != nil {
		return nil, false, err
	}
	if err := cfg.ValidateBankWallet(address); err != nil {
		return nil, false, validation.New("bankWalletAddress", err.Error())
	}

	now := cr.clock.Now().UTC()
	res := tx.Model(&ChainRateConfig{}).
		Where("chain = ?", cfg.Chain).
		Updates(map[string]interface{}{
			"bank_wallet_address": address,
			"active":              true,
			"updated_at":          now,
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	activated = !cfg.Active
	cfg.BankWalletAddress = &address
	cfg.Active = true
	cfg.UpdatedAt = now

	cr.logger.Sugar().Infow("Assigned bank wallet",
		zap.String("chain", cfg.Chain),
		zap.String("address", address),
		zap.Bool("activated", activated),
	)
	return cfg, activated, nil
}

// SeedChains inserts chains that do not exist yet. Existing rows are never modified
// so administrative changes survive restarts.
func (cr *ChainRegistry) SeedChains(ctx context.Context, seeds []*ChainSeed) (int64, error) {
	rows := make([]*ChainRateConfig, 0, len(seeds))
	now := cr.clock.Now().UTC()
	for _, seed := range seeds {
		cfg, err := seed.toChainRateConfig()
		if err != nil {
			return 0, err
		}
		cfg.CreatedAt = now
		cfg.UpdatedAt = now
		rows = append(rows, cfg)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	res := cr.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	cr.logger.Sugar().Infow("Seeded chains",
		zap.Int("requested", len(rows)),
		zap.Int64("inserted", res.RowsAffected),
	)
	return res.RowsAffected, nil
}
