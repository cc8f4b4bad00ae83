package rewardRecords

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Layr-Labs/rewards-engine/pkg/postgres/helpers"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RewardRecordStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewRewardRecordStore(db *gorm.DB, l *zap.Logger) *RewardRecordStore {
	return &RewardRecordStore{
		db:     db,
		logger: l,
	}
}

func (rrs *RewardRecordStore) DB() *gorm.DB {
	return rrs.db
}

// InsertRecords appends records inside tx, or in a transaction of its own when tx
// is nil. Only the accrual scheduler and the distribution calculator call this.
func (rrs *RewardRecordStore) InsertRecords(tx *gorm.DB, records []*RewardRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.Status == "" {
			r.Status = ClaimStatus_Pending
		}
		if r.Status != ClaimStatus_Pending {
			return fmt.Errorf("reward record '%s' must be created as pending", r.Id)
		}
		if r.Amount.IsNegative() {
			return fmt.Errorf("reward record '%s' has a negative amount", r.Id)
		}
	}
	_, err := helpers.WrapTxAndCommit(func(tx *gorm.DB) (int64, error) {
		res := tx.CreateInBatches(records, 500)
		return res.RowsAffected, res.Error
	}, rrs.db, tx)
	return err
}

func (rrs *RewardRecordStore) GetRecord(ctx context.Context, id string) (*RewardRecord, error) {
	return getRecord(rrs.db.WithContext(ctx), id)
}

func getRecord(tx *gorm.DB, id string) (*RewardRecord, error) {
	var r RewardRecord
	res := tx.Model(&RewardRecord{}).Where("id = ?", id).First(&r)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrRewardNotFound, id)
		}
		return nil, res.Error
	}
	return &r, nil
}

// LockRecords loads the given ids with row locks, ordered by id to keep lock
// acquisition order consistent across concurrent batches.
func (rrs *RewardRecordStore) LockRecords(tx *gorm.DB, ids []string) ([]*RewardRecord, error) {
	records := make([]*RewardRecord, 0, len(ids))
	res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&RewardRecord{}).
		Where("id in ?", ids).
		Order("id asc").
		Find(&records)
	if res.Error != nil {
		return nil, res.Error
	}
	return records, nil
}

// MarkWithdrawn applies the pending -> withdrawn transition to ids. The update only
// matches rows that are still pending, so of two racing callers exactly one sees
// the row change. Returns the number of rows transitioned.
func (rrs *RewardRecordStore) MarkWithdrawn(tx *gorm.DB, ids []string, userHandle string, settlement *Settlement) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := tx.Model(&RewardRecord{}).
		Where("id in ?", ids).
		Where("status = ?", ClaimStatus_Pending)
	if userHandle != "" {
		query = query.Where("user_handle = ?", userHandle)
	}

	updates := map[string]interface{}{
		"status":                ClaimStatus_Withdrawn,
		"claim_transaction_ref": settlement.TransactionRef,
		"claimed_at":            settlement.SettledAt,
	}
	if settlement.WalletAddress != "" {
		updates["claim_wallet_address"] = settlement.WalletAddress
	}
	if settlement.WalletCategory != "" {
		updates["claim_wallet_category"] = settlement.WalletCategory
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// RecordSettlement claims settlement.TransactionRef for the rewards being withdrawn
// in tx. A reference that already settled anything fails with ErrSettlementReused.
func (rrs *RewardRecordStore) RecordSettlement(tx *gorm.DB, settlement *Settlement, userHandle string, count int, amount decimal.Decimal) error {
	row := &SettlementRecord{
		TransactionRef: settlement.TransactionRef,
		RewardCount:    count,
		Amount:         amount,
		SettledAt:      settlement.SettledAt,
	}
	if userHandle != "" {
		row.UserHandle = &userHandle
	}
	if settlement.WalletAddress != "" {
		row.WalletAddress = &settlement.WalletAddress
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: '%s'", ErrSettlementReused, settlement.TransactionRef)
	}
	return nil
}

// GetSettlement returns the settlement recorded for transactionRef, if any.
func (rrs *RewardRecordStore) GetSettlement(ctx context.Context, transactionRef string) (*SettlementRecord, error) {
	row := &SettlementRecord{}
	res := rrs.db.WithContext(ctx).Where("transaction_ref = ?", transactionRef).First(row)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return row, nil
}

func applyFilters(query *gorm.DB, filters *RewardFilters) *gorm.DB {
	if filters == nil {
		return query
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Chain != "" {
		query = query.Where("chain = ?", strings.ToLower(filters.Chain))
	}
	if filters.UserHandle != "" {
		query = query.Where("user_handle = ?", filters.UserHandle)
	}
	return query
}

// ListRecords returns records matching filters, newest first.
func (rrs *RewardRecordStore) ListRecords(ctx context.Context, filters *RewardFilters) ([]*RewardRecord, error) {
	query := applyFilters(rrs.db.WithContext(ctx).Model(&RewardRecord{}), filters)
	if filters != nil && filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters != nil && filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	records := make([]*RewardRecord, 0)
	res := query.Order("computed_at desc, id asc").Find(&records)
	if res.Error != nil {
		return nil, res.Error
	}
	return records, nil
}

// SummarizeByStatus aggregates the records matching filters per claim status. Limit
// and offset are ignored.
func (rrs *RewardRecordStore) SummarizeByStatus(ctx context.Context, filters *RewardFilters) ([]*StatusSummary, error) {
	query := applyFilters(rrs.db.WithContext(ctx).Model(&RewardRecord{}), filters)

	summaries := make([]*StatusSummary, 0)
	res := query.
		Select("status, count(*) as count, coalesce(sum(amount), 0) as amount, coalesce(sum(stable_amount), 0) as stable_amount").
		Group("status").
		Order("status asc").
		Scan(&summaries)
	if res.Error != nil {
		return nil, res.Error
	}
	return summaries, nil
}

// ListRecordsForPeriod returns the distribution records emitted for periodKey.
func (rrs *RewardRecordStore) ListRecordsForPeriod(ctx context.Context, periodKey string) ([]*RewardRecord, error) {
	records := make([]*RewardRecord, 0)
	res := rrs.db.WithContext(ctx).Model(&RewardRecord{}).
		Where("source = ? and period_key = ?", RewardSource_Distribution, periodKey).
		Order("wallet_address asc").
		Find(&records)
	if res.Error != nil {
		return nil, res.Error
	}
	return records, nil
}

// ListRecordsForContribution returns the accrual periods of a contribution in order.
func (rrs *RewardRecordStore) ListRecordsForContribution(ctx context.Context, contributionId string) ([]*RewardRecord, error) {
	records := make([]*RewardRecord, 0)
	res := rrs.db.WithContext(ctx).Model(&RewardRecord{}).
		Where("contribution_id = ?", contributionId).
		Order("period_start asc").
		Find(&records)
	if res.Error != nil {
		return nil, res.Error
	}
	return records, nil
}

// SumWithdrawnForContribution totals the accrual rewards of a contribution that have
// already been paid out.
func (rrs *RewardRecordStore) SumWithdrawnForContribution(tx *gorm.DB, contributionId string) (decimal.Decimal, error) {
	var total decimal.Decimal
	res := tx.Model(&RewardRecord{}).
		Where("contribution_id = ? and status = ?", contributionId, ClaimStatus_Withdrawn).
		Select("coalesce(sum(amount), 0)").
		Scan(&total)
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	return total, nil
}
