package oracle

import (
	"context"

	"web3-balance/internal/worker/cache"

	"github.com/shopspring/decimal"
)

// CachedOracle 在任意 Oracle 前加一层价格缓存
type CachedOracle struct {
	next  Oracle
	cache *cache.PriceCache
}

func NewCachedOracle(next Oracle, priceCache *cache.PriceCache) *CachedOracle {
	return &CachedOracle{next: next, cache: priceCache}
}

func (o *CachedOracle) UnitPriceUsd(ctx context.Context, chainID uint64, tokenAddress string) (decimal.Decimal, error) {
	if price, ok := o.cache.Get(ctx, chainID, tokenAddress); ok {
		return price, nil
	}
	price, err := o.next.UnitPriceUsd(ctx, chainID, tokenAddress)
	if err != nil {
		return decimal.Zero, err
	}
	o.cache.Set(ctx, chainID, tokenAddress, price)
	return price, nil
}
