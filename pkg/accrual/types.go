package accrual

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type RunTrigger string

const (
	RunTrigger_Cron   RunTrigger = "cron"
	RunTrigger_Manual RunTrigger = "manual"
	RunTrigger_Cli    RunTrigger = "cli"
)

type skipReason string

const (
	skipReason_NotVerified   skipReason = "not_verified"
	skipReason_ChainMissing  skipReason = "chain_missing"
	skipReason_ChainInactive skipReason = "chain_inactive"
	skipReason_NoCheckpoint  skipReason = "no_checkpoint"
	skipReason_NotElapsed    skipReason = "not_elapsed"
	skipReason_Negligible    skipReason = "negligible"
	skipReason_ZeroReward    skipReason = "zero_reward"
)

var ErrRunInProgress = errors.New("an accrual run is already in progress")

// PriceSource supplies the stable-unit price of a chain's native asset.
type PriceSource interface {
	UsdPrice(ctx context.Context, priceFeedId string) (decimal.Decimal, error)
}

// Locker provides mutual exclusion across every process running the scheduler.
type Locker interface {
	WithLock(ctx context.Context, fn func(ctx context.Context) error) (bool, error)
}

// ProgressFunc is called after each contribution with the number processed so far.
type ProgressFunc func(done int, total int)

type ContributionError struct {
	ContributionId string `json:"contributionId"`
	Error          string `json:"error"`
}

type RunSummary struct {
	RunId      int                  `json:"runId"`
	Trigger    RunTrigger           `json:"trigger"`
	StartedAt  time.Time            `json:"startedAt"`
	FinishedAt time.Time            `json:"finishedAt"`
	Processed  int                  `json:"processed"`
	Accrued    int                  `json:"accrued"`
	Skipped    int                  `json:"skipped"`
	Failed     int                  `json:"failed"`
	Errors     []*ContributionError `json:"errors"`
	// AccruedByChain totals the native amounts recorded in this run. Amounts on
	// different chains are different assets and are never summed together.
	AccruedByChain      map[string]decimal.Decimal `json:"accruedByChain"`
	NegligibleThreshold decimal.Decimal            `json:"negligibleThreshold"`
}

type accrualOutcome struct {
	accrued bool
	reason  skipReason
	chain   string
	reward  decimal.Decimal
}

// AccrualRun is the persisted history of a scheduler run.
type AccrualRun struct {
	Id         int        `gorm:"primaryKey" json:"id"`
	Trigger    RunTrigger `json:"trigger"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
	Processed  int        `json:"processed"`
	Accrued    int        `json:"accrued"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Error      *string    `json:"error,omitempty"`
}

func (AccrualRun) TableName() string {
	return "accrual_runs"
}
