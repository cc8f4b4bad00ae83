package accrual

import (
	"github.com/Layr-Labs/rewards-engine/pkg/numbers"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	hundred     = decimal.NewFromInt(100)
	hoursInYear = decimal.NewFromInt(365 * 24)
	one         = decimal.NewFromInt(1)
)

// Calculator computes compound interest on a principal. It holds no state besides
// its logger and threshold and is safe for concurrent use.
type Calculator struct {
	logger              *zap.Logger
	negligibleThreshold decimal.Decimal
}

func NewCalculator(negligibleThreshold decimal.Decimal, l *zap.Logger) *Calculator {
	if negligibleThreshold.IsNegative() {
		negligibleThreshold = decimal.Zero
	}
	return &Calculator{
		logger:              l,
		negligibleThreshold: negligibleThreshold,
	}
}

// HourlyRate converts an APY percentage into the per-hour compounding rate.
func HourlyRate(apyPercent decimal.Decimal) decimal.Decimal {
	return apyPercent.DivRound(hundred, numbers.CalculationPrecision).DivRound(hoursInYear, numbers.CalculationPrecision)
}

// growthFactor returns (1 + rate)^hours. Whole hours are raised by repeated squaring;
// a fractional remainder goes through exp(f * ln(1 + rate)).
func growthFactor(rate decimal.Decimal, hours decimal.Decimal) (decimal.Decimal, error) {
	base := one.Add(rate)
	whole := hours.Floor()
	frac := hours.Sub(whole)

	factor := one
	sq := base
	n := whole.BigInt()
	for n.Sign() > 0 {
		if n.Bit(0) == 1 {
			factor = factor.Mul(sq).Truncate(numbers.CalculationPrecision)
		}
		sq = sq.Mul(sq).Truncate(numbers.CalculationPrecision)
		n.Rsh(n, 1)
	}

	if frac.IsPositive() {
		ln, err := base.Ln(numbers.CalculationPrecision)
		if err != nil {
			return decimal.Zero, err
		}
		fracFactor, err := ln.Mul(frac).ExpTaylor(numbers.CalculationPrecision)
		if err != nil {
			return decimal.Zero, err
		}
		factor = factor.Mul(fracFactor).Truncate(numbers.CalculationPrecision)
	}
	return factor, nil
}

// Reward returns principal × ((1 + apy/100/8760)^hoursElapsed − 1), truncated to the
// amount scale. Negative inputs yield zero.
func (c *Calculator) Reward(principal, apyPercent, hoursElapsed decimal.Decimal) decimal.Decimal {
	if principal.IsNegative() || apyPercent.IsNegative() || hoursElapsed.IsNegative() {
		c.logger.Sugar().Warnw("Rejected negative accrual input",
			zap.String("principal", principal.String()),
			zap.String("apy", apyPercent.String()),
			zap.String("hoursElapsed", hoursElapsed.String()),
		)
		return decimal.Zero
	}
	if principal.IsZero() || apyPercent.IsZero() || hoursElapsed.IsZero() {
		return decimal.Zero
	}

	factor, err := growthFactor(HourlyRate(apyPercent), hoursElapsed)
	if err != nil {
		c.logger.Sugar().Errorw("Failed to compute growth factor",
			zap.String("apy", apyPercent.String()),
			zap.String("hoursElapsed", hoursElapsed.String()),
			zap.Error(err),
		)
		return decimal.Zero
	}
	reward := numbers.TruncateAmount(principal.Mul(factor.Sub(one)))
	if reward.IsNegative() {
		return decimal.Zero
	}
	return reward
}

// RewardFromFloat is the float entry point behind the estimate command; NaN and infinities
// yield zero.
func (c *Calculator) RewardFromFloat(principal, apyPercent, hoursElapsed float64) decimal.Decimal {
	p, pErr := numbers.FromFloat(principal)
	a, aErr := numbers.FromFloat(apyPercent)
	h, hErr := numbers.FromFloat(hoursElapsed)
	if pErr != nil || aErr != nil || hErr != nil {
		c.logger.Sugar().Warnw("Rejected non-finite accrual input",
			zap.Float64("principal", principal),
			zap.Float64("apy", apyPercent),
			zap.Float64("hoursElapsed", hoursElapsed),
		)
		return decimal.Zero
	}
	return c.Reward(p, a, h)
}

// IsNegligible reports whether reward is too small to be worth a ledger row.
func (c *Calculator) IsNegligible(reward decimal.Decimal) bool {
	return !reward.IsPositive() || reward.LessThan(c.negligibleThreshold)
}

func (c *Calculator) NegligibleThreshold() decimal.Decimal {
	return c.negligibleThreshold
}
