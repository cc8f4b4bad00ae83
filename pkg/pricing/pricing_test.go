package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Layr-Labs/rewards-engine/internal/logger"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type countingFetcher struct {
	calls int
	price decimal.Decimal
	err   error
}

func (f *countingFetcher) GetSimplePrice(ctx context.Context, coinID string, currency string) (decimal.Decimal, error) {
	f.calls++
	return f.price, f.err
}

func Test_PriceCache(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	assert.Nil(t, err)
	ctx := context.Background()

	t.Run("Should serve cached prices until the ttl passes", func(t *testing.T) {
		clock := clockwork.NewFakeClock()
		fetcher := &countingFetcher{price: decimal.NewFromInt(100)}
		cache := NewPriceCache(fetcher, time.Minute, clock, l)

		for i := 0; i < 3; i++ {
			price, err := cache.UsdPrice(ctx, "ethereum")
			assert.Nil(t, err)
			assert.True(t, price.Equal(decimal.NewFromInt(100)))
		}
		assert.Equal(t, 1, fetcher.calls)

		clock.Advance(2 * time.Minute)
		_, err := cache.UsdPrice(ctx, "ethereum")
		assert.Nil(t, err)
		assert.Equal(t, 2, fetcher.calls)
	})

	t.Run("Should not cache failures", func(t *testing.T) {
		fetcher := &countingFetcher{err: errors.New("unavailable")}
		cache := NewPriceCache(fetcher, time.Minute, clockwork.NewFakeClock(), l)

		_, err := cache.UsdPrice(ctx, "ethereum")
		assert.NotNil(t, err)
		_, err = cache.UsdPrice(ctx, "ethereum")
		assert.NotNil(t, err)
		assert.Equal(t, 2, fetcher.calls)
	})
}
