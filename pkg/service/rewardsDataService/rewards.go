package rewardsDataService

import (
	"context"
	"io"
	"strings"

	"github.com/Layr-Labs/rewards-engine/pkg/rewardRecords"
	"github.com/Layr-Labs/rewards-engine/pkg/service/baseDataService"
	"github.com/Layr-Labs/rewards-engine/pkg/validation"
	"github.com/gocarina/gocsv"
	errors2 "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RewardsDataService struct {
	baseDataService.BaseDataService
	db     *gorm.DB
	store  *rewardRecords.RewardRecordStore
	logger *zap.Logger
}

func NewRewardsDataService(
	db *gorm.DB,
	store *rewardRecords.RewardRecordStore,
	logger *zap.Logger,
) *RewardsDataService {
	return &RewardsDataService{
		BaseDataService: baseDataService.BaseDataService{
			DB: db,
		},
		db:     db,
		store:  store,
		logger: logger,
	}
}

type RewardQuery struct {
	Status     string
	Chain      string
	UserHandle string
	Pagination *baseDataService.Pagination
}

func (q *RewardQuery) toFilters(paginate bool) (*rewardRecords.RewardFilters, error) {
	if q == nil {
		q = &RewardQuery{}
	}
	status := rewardRecords.ClaimStatus(strings.ToLower(strings.TrimSpace(q.Status)))
	if status != "" && !status.IsValid() {
		return nil, validation.Newf("status", "unknown claim status '%s'", q.Status)
	}
	filters := &rewardRecords.RewardFilters{
		Status:     status,
		Chain:      q.Chain,
		UserHandle: strings.TrimSpace(q.UserHandle),
	}
	if paginate {
		p := q.Pagination.Normalize()
		filters.Limit = p.PageSize
		filters.Offset = p.Offset()
	}
	return filters, nil
}

type RewardSummary struct {
	ByStatus     []*rewardRecords.StatusSummary `json:"byStatus"`
	Count        int64                          `json:"count"`
	Amount       decimal.Decimal                `json:"amount"`
	StableAmount decimal.Decimal                `json:"stableAmount"`
}

type RewardList struct {
	Rewards []*rewardRecords.RewardRecord `json:"rewards"`
	Summary *RewardSummary                `json:"summary"`
}

// ListRewards returns a page of reward records matching q together with aggregate
// sums per claim status across every matching record.
func (rds *RewardsDataService) ListRewards(ctx context.Context, q *RewardQuery) (*RewardList, error) {
	filters, err := q.toFilters(true)
	if err != nil {
		return nil, err
	}
	records, err := rds.store.ListRecords(ctx, filters)
	if err != nil {
		return nil, errors2.Wrap(err, "failed to list rewards")
	}
	summary, err := rds.GetRewardSummary(ctx, q)
	if err != nil {
		return nil, err
	}
	return &RewardList{
		Rewards: records,
		Summary: summary,
	}, nil
}

func (rds *RewardsDataService) GetRewardSummary(ctx context.Context, q *RewardQuery) (*RewardSummary, error) {
	filters, err := q.toFilters(false)
	if err != nil {
		return nil, err
	}
	byStatus, err := rds.store.SummarizeByStatus(ctx, filters)
	if err != nil {
		return nil, errors2.Wrap(err, "failed to summarize rewards")
	}
	summary := &RewardSummary{
		ByStatus:     byStatus,
		Amount:       decimal.Zero,
		StableAmount: decimal.Zero,
	}
	for _, s := range byStatus {
		summary.Count += s.Count
		summary.Amount = summary.Amount.Add(s.Amount)
		summary.StableAmount = summary.StableAmount.Add(s.StableAmount)
	}
	return summary, nil
}

func (rds *RewardsDataService) GetReward(ctx context.Context, id string) (*rewardRecords.RewardRecord, error) {
	return rds.store.GetRecord(ctx, id)
}

func (rds *RewardsDataService) ListRewardsForContribution(ctx context.Context, contributionId string) ([]*rewardRecords.RewardRecord, error) {
	return rds.store.ListRecordsForContribution(ctx, contributionId)
}

// ExportRewardsCsv writes every reward matching q to w as CSV with a header row.
func (rds *RewardsDataService) ExportRewardsCsv(ctx context.Context, q *RewardQuery, w io.Writer) error {
	filters, err := q.toFilters(false)
	if err != nil {
		return err
	}
	records, err := rds.store.ListRecords(ctx, filters)
	if err != nil {
		return errors2.Wrap(err, "failed to list rewards for export")
	}
	if err := gocsv.Marshal(records, w); err != nil {
		return errors2.Wrap(err, "failed to encode rewards csv")
	}
	rds.logger.Sugar().Infow("Exported rewards", zap.Int("count", len(records)))
	return nil
}
