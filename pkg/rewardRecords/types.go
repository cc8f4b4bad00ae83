package rewardRecords

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type ClaimStatus string

const (
	ClaimStatus_Pending   ClaimStatus = "pending"
	ClaimStatus_Withdrawn ClaimStatus = "withdrawn"
)

func (s ClaimStatus) IsValid() bool {
	return s == ClaimStatus_Pending || s == ClaimStatus_Withdrawn
}

type RewardSource string

const (
	RewardSource_Accrual      RewardSource = "accrual"
	RewardSource_Distribution RewardSource = "distribution"
)

var (
	ErrRewardNotFound   = errors.New("reward record not found")
	ErrRewardNotPending = errors.New("reward record is not pending")
	ErrRewardNotOwned   = errors.New("reward record belongs to another user")

	ErrSettlementReused = errors.New("settlement reference has already been used")
)

// RewardRecord is one computed reward period. Records are append-only apart from the
// single pending -> withdrawn transition.
type RewardRecord struct {
	Id                  string          `gorm:"primaryKey" json:"id" csv:"id"`
	ContributionId      *string         `json:"contributionId" csv:"contribution_id"`
	Source              RewardSource    `json:"source" csv:"source"`
	PeriodKey           *string         `json:"periodKey" csv:"period_key"`
	UserHandle          string          `json:"userHandle" csv:"user_handle"`
	WalletAddress       string          `json:"walletAddress" csv:"wallet_address"`
	Chain               string          `json:"chain" csv:"chain"`
	Amount              decimal.Decimal `gorm:"type:numeric" json:"amount" csv:"amount"`
	StableAmount        decimal.Decimal `gorm:"type:numeric" json:"stableAmount" csv:"stable_amount"`
	PeriodStart         time.Time       `json:"periodStart" csv:"period_start"`
	PeriodEnd           time.Time       `json:"periodEnd" csv:"period_end"`
	Apy                 decimal.Decimal `gorm:"type:numeric" json:"apy" csv:"apy"`
	Status              ClaimStatus     `json:"status" csv:"status"`
	ComputedAt          time.Time       `json:"computedAt" csv:"computed_at"`
	ClaimTransactionRef *string         `json:"claimTransactionRef" csv:"claim_transaction_ref"`
	ClaimWalletAddress  *string         `json:"claimWalletAddress" csv:"claim_wallet_address"`
	ClaimWalletCategory *string         `json:"claimWalletCategory" csv:"claim_wallet_category"`
	ClaimedAt           *time.Time      `json:"claimedAt" csv:"claimed_at"`
}

func (RewardRecord) TableName() string {
	return "reward_records"
}

// Settlement is what the payment executor reports back for a payout.
type Settlement struct {
	TransactionRef string
	WalletAddress  string
	WalletCategory string
	SettledAt      time.Time
}

// SettlementRecord is the single row a payout reference may ever produce. A
// reference settles one claim or one batch, never more.
type SettlementRecord struct {
	TransactionRef string          `gorm:"primaryKey" json:"transactionRef"`
	UserHandle     *string         `json:"userHandle"`
	RewardCount    int             `json:"rewardCount"`
	Amount         decimal.Decimal `gorm:"type:numeric" json:"amount"`
	WalletAddress  *string         `json:"walletAddress"`
	SettledAt      time.Time       `json:"settledAt"`
}

func (SettlementRecord) TableName() string {
	return "settlements"
}

type RewardFilters struct {
	Status     ClaimStatus
	Chain      string
	UserHandle string
	Limit      int
	Offset     int
}

type StatusSummary struct {
	Status       ClaimStatus     `json:"status"`
	Count        int64           `json:"count"`
	Amount       decimal.Decimal `json:"amount"`
	StableAmount decimal.Decimal `json:"stableAmount"`
}
