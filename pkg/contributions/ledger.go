package contributions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Layr-Labs/rewards-engine/pkg/chains"
	"github.com/Layr-Labs/rewards-engine/pkg/postgres"
	"github.com/Layr-Labs/rewards-engine/pkg/validation"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ContributionLedger struct {
	db       *gorm.DB
	registry *chains.ChainRegistry
	logger   *zap.Logger
	clock    clockwork.Clock
}

func NewContributionLedger(db *gorm.DB, registry *chains.ChainRegistry, l *zap.Logger, clock clockwork.Clock) *ContributionLedger {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ContributionLedger{
		db:       db,
		registry: registry,
		logger:   l,
		clock:    clock,
	}
}

func validateNewContribution(nc *NewContribution) error {
	if strings.TrimSpace(nc.UserHandle) == "" {
		return validation.New("userHandle", "is required")
	}
	if strings.TrimSpace(nc.WalletAddress) == "" {
		return validation.New("walletAddress", "is required")
	}
	if !nc.WalletCategory.IsValid() {
		return validation.Newf("walletCategory", "must be '%s' or '%s'", WalletCategory_Custodial, WalletCategory_External)
	}
	if strings.TrimSpace(nc.DepositTxHash) == "" {
		return validation.New("depositTxHash", "is required")
	}
	if !nc.Principal.IsPositive() {
		return validation.New("principal", "must be greater than zero")
	}
	return nil
}

// RecordContribution stores a pending contribution. Recording the same deposit
// transaction twice returns the existing row.
func (cl *ContributionLedger) RecordContribution(ctx context.Context, nc *NewContribution) (*Contribution, bool, error) {
	if err := validateNewContribution(nc); err != nil {
		return nil, false, err
	}
	chain, err := cl.registry.GetChain(ctx, nc.Chain)
	if err != nil {
		return nil, false, err
	}

	now := cl.clock.Now().UTC()
	c := &Contribution{
		Id:             uuid.NewString(),
		UserHandle:     nc.UserHandle,
		WalletAddress:  nc.WalletAddress,
		WalletCategory: nc.WalletCategory,
		Chain:          chain.Chain,
		NativeAsset:    chain.NativeAsset,
		DepositTxHash:  nc.DepositTxHash,
		Principal:      nc.Principal,
		Status:         ContributionStatus_Pending,
		RewardsEarned:  decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	res := cl.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if res.Error != nil {
		if !postgres.IsDuplicateKeyError(res.Error) {
			return nil, false, res.Error
		}
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return c, true, nil
	}

	existing, err := cl.getByDeposit(ctx, chain.Chain, nc.DepositTxHash)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (cl *ContributionLedger) getByDeposit(ctx context.Context, chain string, txHash string) (*Contribution, error) {
	var c Contribution
	res := cl.db.WithContext(ctx).Model(&Contribution{}).
		Where("chain = ? and deposit_tx_hash = ?", chain, txHash).
		First(&c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrContributionNotFound
		}
		return nil, res.Error
	}
	return &c, nil
}

func (cl *ContributionLedger) GetContribution(ctx context.Context, id string) (*Contribution, error) {
	return cl.getContribution(cl.db.WithContext(ctx), id)
}

func (cl *ContributionLedger) getContribution(tx *gorm.DB, id string) (*Contribution, error) {
	var c Contribution
	res := tx.Model(&Contribution{}).Where("id = ?", id).First(&c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrContributionNotFound, id)
		}
		return nil, res.Error
	}
	return &c, nil
}

// LockContribution re-reads a contribution with a row lock inside tx so the checkpoint
// it returns cannot change until tx ends.
func (cl *ContributionLedger) LockContribution(tx *gorm.DB, id string) (*Contribution, error) {
	return cl.getContribution(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// VerifyContribution moves a pending contribution to verified, which makes it
// eligible for accrual from verifiedAt onward.
func (cl *ContributionLedger) VerifyContribution(ctx context.Context, id string) (*Contribution, error) {
	var verified *Contribution
	err := cl.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := cl.LockContribution(tx, id)
		if err != nil {
			return err
		}
		if c.Status != ContributionStatus_Pending {
			return fmt.Errorf("%w: '%s' is %s", ErrContributionNotPending, id, c.Status)
		}
		chain, err := cl.registry.GetChain(ctx, c.Chain)
		if err != nil {
			return err
		}
		if c.Principal.LessThan(chain.MinDeposit) {
			return fmt.Errorf("%w: %s < %s %s", ErrBelowMinimumDeposit, c.Principal.String(), chain.MinDeposit.String(), chain.NativeAsset)
		}

		now := cl.clock.Now().UTC()
		res := tx.Model(&Contribution{}).Where("id = ?", id).Updates(map[string]interface{}{
			"status":      ContributionStatus_Verified,
			"verified_at": now,
			"updated_at":  now,
		})
		if res.Error != nil {
			return res.Error
		}
		c.Status = ContributionStatus_Verified
		c.VerifiedAt = &now
		c.UpdatedAt = now
		verified = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	cl.logger.Sugar().Infow("Verified contribution",
		zap.String("contributionId", id),
		zap.String("chain", verified.Chain),
		zap.String("principal", verified.Principal.String()),
	)
	return verified, nil
}

// RejectContribution is terminal; rejected contributions never accrue.
func (cl *ContributionLedger) RejectContribution(ctx context.Context, id string, reason string) (*Contribution, error) {
	now := cl.clock.Now().UTC()
	res := cl.db.WithContext(ctx).Model(&Contribution{}).
		Where("id = ? and status = ?", id, ContributionStatus_Pending).
		Updates(map[string]interface{}{
			"status":           ContributionStatus_Rejected,
			"rejection_reason": reason,
			"updated_at":       now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	c, err := cl.GetContribution(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: '%s' is %s", ErrContributionNotPending, id, c.Status)
	}
	return c, nil
}

// ListVerifiedContributionIds returns the ids of every contribution eligible for
// accrual, in a stable order.
func (cl *ContributionLedger) ListVerifiedContributionIds(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	res := cl.db.WithContext(ctx).Model(&Contribution{}).
		Where("status = ?", ContributionStatus_Verified).
		Order("created_at asc, id asc").
		Pluck("id", &ids)
	if res.Error != nil {
		return nil, res.Error
	}
	return ids, nil
}

// AdvanceCheckpoint adds reward to the cumulative total and moves the checkpoint to
// checkpoint, both inside tx. The update is conditional on the checkpoint the caller
// read so a concurrent writer makes it fail instead of double counting.
func (cl *ContributionLedger) AdvanceCheckpoint(tx *gorm.DB, c *Contribution, previous *time.Time, checkpoint time.Time, reward decimal.Decimal) error {
	if reward.IsNegative() {
		return fmt.Errorf("refusing to add negative reward %s to contribution '%s'", reward.String(), c.Id)
	}
	if previous != nil && checkpoint.Before(*previous) {
		return fmt.Errorf("%w: '%s' %s -> %s", ErrCheckpointRegression, c.Id, previous.String(), checkpoint.String())
	}

	query := tx.Model(&Contribution{}).Where("id = ?", c.Id)
	if previous == nil {
		query = query.Where("last_accrual_at is null")
	} else {
		query = query.Where("last_accrual_at = ?", *previous)
	}
	res := query.Updates(map[string]interface{}{
		"rewards_earned":  gorm.Expr("rewards_earned + ?", reward),
		"last_accrual_at": checkpoint,
		"updated_at":      cl.clock.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("checkpoint for contribution '%s' changed during accrual", c.Id)
	}
	c.RewardsEarned = c.RewardsEarned.Add(reward)
	c.LastAccrualAt = &checkpoint
	return nil
}

// ResetCheckpointsForChain moves every verified contribution of chain forward to at,
// so time spent while the chain was disabled never accrues. Checkpoints already past
// at are left alone.
func (cl *ContributionLedger) ResetCheckpointsForChain(tx *gorm.DB, chain string, at time.Time) (int64, error) {
	res := tx.Model(&Contribution{}).
		Where("chain = ? and status = ?", chain, ContributionStatus_Verified).
		Where("coalesce(last_accrual_at, verified_at) < ?", at).
		Updates(map[string]interface{}{
			"last_accrual_at": at,
			"updated_at":      cl.clock.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
