package analyticsDataService

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Layr-Labs/rewards-engine/pkg/service/baseDataService"
	errors2 "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultTopContributors = 10
	MaxTopContributors     = 100
)

type AnalyticsDataService struct {
	baseDataService.BaseDataService
	db     *gorm.DB
	logger *zap.Logger
}

func NewAnalyticsDataService(db *gorm.DB, logger *zap.Logger) *AnalyticsDataService {
	return &AnalyticsDataService{
		BaseDataService: baseDataService.BaseDataService{
			DB: db,
		},
		db:     db,
		logger: logger,
	}
}

// AnalyticsFilter narrows every aggregate to one user, one wallet and/or one chain.
// Empty fields match everything.
type AnalyticsFilter struct {
	UserHandle    string
	WalletAddress string
	Chain         string
}

func (f *AnalyticsFilter) args() []interface{} {
	if f == nil {
		f = &AnalyticsFilter{}
	}
	return []interface{}{
		sql.Named("userHandle", strings.TrimSpace(f.UserHandle)),
		sql.Named("walletAddress", strings.TrimSpace(f.WalletAddress)),
		sql.Named("chain", strings.ToLower(strings.TrimSpace(f.Chain))),
	}
}

type ChainTotals struct {
	Chain              string          `json:"chain"`
	Contributions      int64           `json:"contributions"`
	Principal          decimal.Decimal `json:"principal"`
	RewardsEarned      decimal.Decimal `json:"rewardsEarned"`
	PendingRewards     decimal.Decimal `json:"pendingRewards"`
	WithdrawnRewards   decimal.Decimal `json:"withdrawnRewards"`
	StableRewardsTotal decimal.Decimal `json:"stableRewardsTotal"`
}

type WalletCategoryTotals struct {
	WalletCategory string          `json:"walletCategory"`
	Contributions  int64           `json:"contributions"`
	Wallets        int64           `json:"wallets"`
	RewardsEarned  decimal.Decimal `json:"rewardsEarned"`
}

type TopContributor struct {
	Rank               int64           `json:"rank"`
	UserHandle         string          `json:"userHandle"`
	Contributions      int64           `json:"contributions"`
	Chains             int64           `json:"chains"`
	Rewards            decimal.Decimal `json:"rewards"`
	StableRewardsTotal decimal.Decimal `json:"stableRewardsTotal"`
}

const contributionFilter = `
	c.status = 'verified'
	and (@userHandle = '' or c.user_handle = @userHandle)
	and (@walletAddress = '' or c.wallet_address = @walletAddress)
	and (@chain = '' or c.chain = @chain)
`

const rewardFilter = `
	(@userHandle = '' or rr.user_handle = @userHandle)
	and (@walletAddress = '' or rr.wallet_address = @walletAddress)
	and (@chain = '' or rr.chain = @chain)
`

// TotalsByChain aggregates verified principal and reward records per chain.
// Principal is summed in each chain's native asset.
func (ads *AnalyticsDataService) TotalsByChain(ctx context.Context, filter *AnalyticsFilter) ([]*ChainTotals, error) {
	query := `
		with contribution_totals as (
			select
				c.chain,
				count(*) as contributions,
				coalesce(sum(c.principal), 0) as principal,
				coalesce(sum(c.rewards_earned), 0) as rewards_earned
			from contributions as c
			where ` + contributionFilter + `
			group by c.chain
		),
		reward_totals as (
			select
				rr.chain,
				coalesce(sum(rr.amount) filter (where rr.status = 'pending'), 0) as pending_rewards,
				coalesce(sum(rr.amount) filter (where rr.status = 'withdrawn'), 0) as withdrawn_rewards,
				coalesce(sum(rr.stable_amount), 0) as stable_rewards_total
			from reward_records as rr
			where ` + rewardFilter + `
			group by rr.chain
		)
		select
			coalesce(ct.chain, rt.chain) as chain,
			coalesce(ct.contributions, 0) as contributions,
			coalesce(ct.principal, 0) as principal,
			coalesce(ct.rewards_earned, 0) as rewards_earned,
			coalesce(rt.pending_rewards, 0) as pending_rewards,
			coalesce(rt.withdrawn_rewards, 0) as withdrawn_rewards,
			coalesce(rt.stable_rewards_total, 0) as stable_rewards_total
		from contribution_totals as ct
		full outer join reward_totals as rt on rt.chain = ct.chain
		order by 1 asc
	`
	totals := make([]*ChainTotals, 0)
	res := ads.db.WithContext(ctx).Raw(query, filter.args()...).Scan(&totals)
	if res.Error != nil {
		return nil, errors2.Wrap(res.Error, "failed to aggregate totals by chain")
	}
	return totals, nil
}

// TotalsByWalletCategory aggregates verified contributions per wallet category.
func (ads *AnalyticsDataService) TotalsByWalletCategory(ctx context.Context, filter *AnalyticsFilter) ([]*WalletCategoryTotals, error) {
	query := `
		select
			c.wallet_category,
			count(*) as contributions,
			count(distinct c.wallet_address) as wallets,
			coalesce(sum(c.rewards_earned), 0) as rewards_earned
		from contributions as c
		where ` + contributionFilter + `
		group by c.wallet_category
		order by c.wallet_category asc
	`
	totals := make([]*WalletCategoryTotals, 0)
	res := ads.db.WithContext(ctx).Raw(query, filter.args()...).Scan(&totals)
	if res.Error != nil {
		return nil, errors2.Wrap(res.Error, "failed to aggregate totals by wallet category")
	}
	return totals, nil
}

// TopContributors ranks users by the stable value of every reward they have been
// credited, then by raw reward amount and handle.
func (ads *AnalyticsDataService) TopContributors(ctx context.Context, filter *AnalyticsFilter, limit int) ([]*TopContributor, error) {
	if limit <= 0 {
		limit = DefaultTopContributors
	}
	if limit > MaxTopContributors {
		limit = MaxTopContributors
	}
	query := `
		with contributor_deposits as (
			select
				c.user_handle,
				count(*) as contributions,
				count(distinct c.chain) as chains
			from contributions as c
			where ` + contributionFilter + `
			group by c.user_handle
		),
		contributor_rewards as (
			select
				rr.user_handle,
				coalesce(sum(rr.amount), 0) as rewards,
				coalesce(sum(rr.stable_amount), 0) as stable_rewards_total
			from reward_records as rr
			where ` + rewardFilter + `
			group by rr.user_handle
		),
		ranked as (
			select
				cd.user_handle,
				cd.contributions,
				cd.chains,
				coalesce(cr.rewards, 0) as rewards,
				coalesce(cr.stable_rewards_total, 0) as stable_rewards_total
			from contributor_deposits as cd
			left join contributor_rewards as cr on cr.user_handle = cd.user_handle
		)
		select
			row_number() over (order by stable_rewards_total desc, rewards desc, user_handle asc) as rank,
			user_handle,
			contributions,
			chains,
			rewards,
			stable_rewards_total
		from ranked
		order by rank asc
		limit @limit
	`
	args := append(filter.args(), sql.Named("limit", limit))
	contributors := make([]*TopContributor, 0)
	res := ads.db.WithContext(ctx).Raw(query, args...).Scan(&contributors)
	if res.Error != nil {
		return nil, errors2.Wrap(res.Error, "failed to rank contributors")
	}
	return contributors, nil
}
