package contributions

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type ContributionStatus string

const (
	ContributionStatus_Pending  ContributionStatus = "pending"
	ContributionStatus_Verified ContributionStatus = "verified"
	ContributionStatus_Rejected ContributionStatus = "rejected"
)

type WalletCategory string

const (
	WalletCategory_Custodial WalletCategory = "custodial"
	WalletCategory_External  WalletCategory = "external"
)

func (w WalletCategory) IsValid() bool {
	return w == WalletCategory_Custodial || w == WalletCategory_External
}

var (
	ErrContributionNotFound   = errors.New("contribution not found")
	ErrContributionNotPending = errors.New("contribution is not pending")
	ErrBelowMinimumDeposit    = errors.New("principal is below the chain minimum deposit")
	ErrCheckpointRegression   = errors.New("accrual checkpoint cannot move backward")
)

// Contribution is a user deposit. Principal and the accrual checkpoint are owned by
// the ledger; the scheduler only advances LastAccrualAt and RewardsEarned.
type Contribution struct {
	Id              string             `gorm:"primaryKey" json:"id"`
	UserHandle      string             `json:"userHandle"`
	WalletAddress   string             `json:"walletAddress"`
	WalletCategory  WalletCategory     `json:"walletCategory"`
	Chain           string             `json:"chain"`
	NativeAsset     string             `json:"nativeAsset"`
	DepositTxHash   string             `json:"depositTxHash"`
	Principal       decimal.Decimal    `gorm:"type:numeric" json:"principal"`
	Status          ContributionStatus `json:"status"`
	RejectionReason *string            `json:"rejectionReason,omitempty"`
	RewardsEarned   decimal.Decimal    `gorm:"type:numeric" json:"rewardsEarned"`
	LastAccrualAt   *time.Time         `json:"lastAccrualAt"`
	VerifiedAt      *time.Time         `json:"verifiedAt"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func (Contribution) TableName() string {
	return "contributions"
}

// NewContribution is what the deposit verification collaborator submits.
type NewContribution struct {
	UserHandle     string
	WalletAddress  string
	WalletCategory WalletCategory
	Chain          string
	DepositTxHash  string
	Principal      decimal.Decimal
}
