package cache

import (
	"context"
	"time"

	"web3-balance/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type cachedPrice struct {
	Price     decimal.Decimal `json:"price"`
	UpdatedAt int64           `json:"updatedAt"`
}

// PriceCache 两级价格缓存：进程内 go-cache + 可选 redis（多实例共享）
// 只缓存成功的报价，失败不缓存
type PriceCache struct {
	tl         *zap.Logger
	ttl        time.Duration
	localCache *cache.Cache
	redis      *redis.Client
}

// NewPriceCache rdb 可以为 nil
func NewPriceCache(tl *zap.Logger, rdb *redis.Client, ttl time.Duration) *PriceCache {
	return &PriceCache{
		tl:         tl,
		ttl:        ttl,
		localCache: cache.New(ttl, time.Minute),
		redis:      rdb,
	}
}

func (c *PriceCache) Get(ctx context.Context, chainID uint64, tokenAddress string) (decimal.Decimal, bool) {
	key := utils.PriceKey(chainID, tokenAddress)

	// 先查本地缓存
	if cached, found := c.localCache.Get(key); found {
		if price, ok := cached.(decimal.Decimal); ok {
			return price, true
		}
	}
	if c.redis == nil {
		return decimal.Zero, false
	}

	// 再查Redis缓存
	raw, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.tl.Debug("redis get price failed", zap.String("key", key), zap.Error(err))
		}
		return decimal.Zero, false
	}
	var cp cachedPrice
	if err := sonic.UnmarshalString(raw, &cp); err != nil {
		return decimal.Zero, false
	}
	c.localCache.Set(key, cp.Price, cache.DefaultExpiration)
	return cp.Price, true
}

func (c *PriceCache) Set(ctx context.Context, chainID uint64, tokenAddress string, price decimal.Decimal) {
	key := utils.PriceKey(chainID, tokenAddress)
	c.localCache.Set(key, price, cache.DefaultExpiration)
	if c.redis == nil {
		return
	}
	data, err := sonic.MarshalString(cachedPrice{Price: price, UpdatedAt: time.Now().Unix()})
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.tl.Debug("redis set price failed", zap.String("key", key), zap.Error(err))
	}
}
