package distribution

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrPoolNotFound      = errors.New("distribution pool not found")
	ErrDuplicateHolding  = errors.New("wallet appears more than once in snapshot")
	ErrNegativeHoldings  = errors.New("holdings cannot be negative")
	ErrNegativeRevenue   = errors.New("revenue cannot be negative")
	ErrInvalidPercentage = errors.New("pool percentage must be within [0, 1]")
)

// Snapshot is an immutable capture of wallet holdings for one period.
type Snapshot struct {
	PeriodKey   string          `gorm:"primaryKey" json:"periodKey"`
	TotalSupply decimal.Decimal `gorm:"type:numeric" json:"totalSupply"`
	CapturedAt  time.Time       `json:"capturedAt"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func (Snapshot) TableName() string {
	return "snapshots"
}

type SnapshotHolding struct {
	PeriodKey     string          `gorm:"primaryKey" json:"periodKey"`
	WalletAddress string          `gorm:"primaryKey" json:"walletAddress"`
	UserHandle    string          `json:"userHandle"`
	Holdings      decimal.Decimal `gorm:"type:numeric" json:"holdings"`
}

func (SnapshotHolding) TableName() string {
	return "snapshot_holdings"
}

type PoolStatus string

const (
	PoolStatus_Computed    PoolStatus = "computed"
	PoolStatus_Distributed PoolStatus = "distributed"
)

// DistributionPool is the per-period revenue pool and the outcome of splitting it.
type DistributionPool struct {
	PeriodKey         string          `gorm:"primaryKey" json:"periodKey"`
	Chain             string          `json:"chain"`
	Revenue           decimal.Decimal `gorm:"type:numeric" json:"revenue"`
	PoolPercentage    decimal.Decimal `gorm:"type:numeric" json:"poolPercentage"`
	PoolAmount        decimal.Decimal `gorm:"type:numeric" json:"poolAmount"`
	DistributedAmount decimal.Decimal `gorm:"type:numeric" json:"distributedAmount"`
	Dust              decimal.Decimal `gorm:"type:numeric" json:"dust"`
	Recipients        int             `json:"recipients"`
	DistributionRoot  string          `json:"distributionRoot"`
	Status            PoolStatus      `json:"status"`
	CreatedAt         time.Time       `json:"createdAt"`
	DistributedAt     *time.Time      `json:"distributedAt"`
}

func (DistributionPool) TableName() string {
	return "distribution_pools"
}

type Allocation struct {
	WalletAddress string          `json:"walletAddress"`
	UserHandle    string          `json:"userHandle"`
	Holdings      decimal.Decimal `json:"holdings"`
	Amount        decimal.Decimal `json:"amount"`
}

type DistributionResult struct {
	Pool *DistributionPool `json:"pool"`

	// AlreadyDistributed is true when the period had been distributed by an earlier
	// call and nothing new was written.
	AlreadyDistributed bool `json:"alreadyDistributed"`
}

// PriceSource supplies the stable-unit price of a chain's native asset.
type PriceSource interface {
	UsdPrice(ctx context.Context, priceFeedId string) (decimal.Decimal, error)
}
