// Package pricing converts native asset amounts into stable (USD) units.
package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultTTL = 5 * time.Minute

// PriceFetcher is satisfied by the coingecko client.
type PriceFetcher interface {
	GetSimplePrice(ctx context.Context, coinID string, currency string) (decimal.Decimal, error)
}

type cachedPrice struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// PriceCache memoizes USD prices per feed id for a fixed TTL.
type PriceCache struct {
	fetcher PriceFetcher
	ttl     time.Duration
	clock   clockwork.Clock
	logger  *zap.Logger

	mu     sync.Mutex
	prices map[string]*cachedPrice
}

func NewPriceCache(fetcher PriceFetcher, ttl time.Duration, clock clockwork.Clock, l *zap.Logger) *PriceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PriceCache{
		fetcher: fetcher,
		ttl:     ttl,
		clock:   clock,
		logger:  l,
		prices:  make(map[string]*cachedPrice),
	}
}

func (pc *PriceCache) UsdPrice(ctx context.Context, priceFeedId string) (decimal.Decimal, error) {
	now := pc.clock.Now()

	pc.mu.Lock()
	cached, ok := pc.prices[priceFeedId]
	pc.mu.Unlock()
	if ok && now.Sub(cached.fetchedAt) < pc.ttl {
		return cached.price, nil
	}

	price, err := pc.fetcher.GetSimplePrice(ctx, priceFeedId, "usd")
	if err != nil {
		return decimal.Zero, err
	}

	pc.mu.Lock()
	pc.prices[priceFeedId] = &cachedPrice{price: price, fetchedAt: now}
	pc.mu.Unlock()

	pc.logger.Sugar().Debugw("Refreshed price",
		zap.String("priceFeedId", priceFeedId),
		zap.String("usd", price.String()),
	)
	return price, nil
}
