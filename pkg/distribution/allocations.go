package distribution

import (
	"github.com/Layr-Labs/rewards-engine/pkg/numbers"
	"github.com/shopspring/decimal"
)

// PoolAmount is revenue × percentage, truncated to the amount scale.
func PoolAmount(revenue decimal.Decimal, percentage decimal.Decimal) (decimal.Decimal, error) {
	if revenue.IsNegative() {
		return decimal.Zero, ErrNegativeRevenue
	}
	if percentage.IsNegative() || percentage.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, ErrInvalidPercentage
	}
	return numbers.TruncateAmount(revenue.Mul(percentage)), nil
}

// ComputeAllocations splits pool across holdings in proportion to each wallet's share
// of supply. Every amount is truncated to the amount scale, so the allocations never
// sum to more than pool; the remainder is returned as dust.
//
// Shares are taken against the larger of totalSupply and the sum of holdings, which
// keeps an inconsistent snapshot from over-distributing. Wallets with no holdings get
// nothing.
func ComputeAllocations(pool decimal.Decimal, totalSupply decimal.Decimal, holdings []*SnapshotHolding) ([]*Allocation, decimal.Decimal, error) {
	allocations := make([]*Allocation, 0, len(holdings))
	if !pool.IsPositive() {
		return allocations, decimal.Zero, nil
	}

	held := decimal.Zero
	seen := make(map[string]struct{}, len(holdings))
	for _, h := range holdings {
		if h.Holdings.IsNegative() {
			return nil, decimal.Zero, ErrNegativeHoldings
		}
		if _, ok := seen[h.WalletAddress]; ok {
			return nil, decimal.Zero, ErrDuplicateHolding
		}
		seen[h.WalletAddress] = struct{}{}
		held = held.Add(h.Holdings)
	}

	denominator := decimal.Max(totalSupply, held)
	if !denominator.IsPositive() {
		return allocations, pool, nil
	}

	distributed := decimal.Zero
	for _, h := range holdings {
		if !h.Holdings.IsPositive() {
			continue
		}
		amount, _ := pool.Mul(h.Holdings).QuoRem(denominator, numbers.AmountScale)
		if !amount.IsPositive() {
			continue
		}
		userHandle := h.UserHandle
		if userHandle == "" {
			userHandle = h.WalletAddress
		}
		allocations = append(allocations, &Allocation{
			WalletAddress: h.WalletAddress,
			UserHandle:    userHandle,
			Holdings:      h.Holdings,
			Amount:        amount,
		})
		distributed = distributed.Add(amount)
	}
	return allocations, pool.Sub(distributed), nil
}
