package accrual

import (
	"math"
	"testing"

	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestCalculator(t *testing.T) *Calculator {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)
	return NewCalculator(decimal.New(1, -12), l)
}

func Test_Calculator(t *testing.T) {
	calc := newTestCalculator(t)
	d := decimal.RequireFromString

	t.Run("Should compute the hourly rate from an apy percentage", func(t *testing.T) {
		rate := HourlyRate(d("10"))
		expected := 0.10 / 8760
		f, _ := rate.Float64()
		assert.InDelta(t, expected, f, 1e-18)
	})

	t.Run("Should return zero for zero hours", func(t *testing.T) {
		assert.True(t, calc.Reward(d("1000"), d("10"), decimal.Zero).IsZero())
	})

	t.Run("Should never return a negative reward for non-negative inputs", func(t *testing.T) {
		principals := []string{"0", "0.000001", "1", "1000", "123456789.123456789"}
		apys := []string{"0", "0.5", "10", "100"}
		hours := []string{"0", "0.25", "1", "48", "8760", "87600"}
		for _, p := range principals {
			for _, a := range apys {
				for _, h := range hours {
					r := calc.Reward(d(p), d(a), d(h))
					assert.False(t, r.IsNegative(), "p=%s apy=%s h=%s", p, a, h)
				}
			}
		}
	})

	t.Run("Should return zero for negative inputs", func(t *testing.T) {
		assert.True(t, calc.Reward(d("-1000"), d("10"), d("48")).IsZero())
		assert.True(t, calc.Reward(d("1000"), d("-10"), d("48")).IsZero())
		assert.True(t, calc.Reward(d("1000"), d("10"), d("-48")).IsZero())
	})

	t.Run("Should return zero for non-finite float inputs", func(t *testing.T) {
		assert.True(t, calc.RewardFromFloat(math.NaN(), 10, 48).IsZero())
		assert.True(t, calc.RewardFromFloat(1000, math.Inf(1), 48).IsZero())
		assert.True(t, calc.RewardFromFloat(1000, 10, math.Inf(-1)).IsZero())
		assert.True(t, calc.RewardFromFloat(-1000, 10, 48).IsZero())
		assert.True(t, calc.RewardFromFloat(1000, 10, 48).IsPositive())
	})

	t.Run("Should compute 1000 at 10% for 48 hours", func(t *testing.T) {
		reward := calc.Reward(d("1000"), d("10"), d("48"))
		expected := 1000 * (math.Pow(1+0.10/8760, 48) - 1)
		f, _ := reward.Float64()
		assert.InDelta(t, expected, f, 1e-9)
		assert.InDelta(t, 0.548, f, 0.001)
	})

	t.Run("Should compound consistently when a period is split", func(t *testing.T) {
		splits := [][2]string{{"1", "47"}, {"24", "24"}, {"12.5", "35.5"}, {"0.25", "0.75"}}
		principal := d("1000")
		apy := d("10")
		for _, split := range splits {
			h1, h2 := d(split[0]), d(split[1])
			oneStep := calc.Reward(principal, apy, h1.Add(h2))

			first := calc.Reward(principal, apy, h1)
			second := calc.Reward(principal.Add(first), apy, h2)
			twoSteps := first.Add(second)

			diff := oneStep.Sub(twoSteps).Abs()
			assert.True(t, diff.LessThan(d("0.000000000001")), "split %v diff %s", split, diff.String())
		}
	})

	t.Run("Should truncate rewards to the amount scale", func(t *testing.T) {
		reward := calc.Reward(d("1000"), d("10"), d("48"))
		assert.True(t, reward.Exponent() >= -18)
	})

	t.Run("Should flag rewards below the negligible threshold", func(t *testing.T) {
		assert.True(t, calc.IsNegligible(decimal.Zero))
		assert.True(t, calc.IsNegligible(d("0.0000000000001")))
		assert.False(t, calc.IsNegligible(d("0.001")))
	})
}
