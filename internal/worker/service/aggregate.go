package service

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"time"

	"web3-balance/internal/worker/config"
	"web3-balance/internal/worker/gateway"
	"web3-balance/internal/worker/model"
	"web3-balance/internal/worker/monitor"
	"web3-balance/internal/worker/oracle"
	"web3-balance/pkg/logger"
	"web3-balance/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var errResultMismatch = errors.New("batch result length mismatch")

// Aggregator 余额聚合引擎：批量 erc20 余额 + 原生币余额 + 美元单价 => BalanceMap
type Aggregator struct {
	gateway          gateway.Gateway
	oracle           oracle.Oracle
	tl               *zap.Logger
	priceConcurrency int
	runTimeout       time.Duration
}

func NewAggregator(gw gateway.Gateway, priceOracle oracle.Oracle, cfg config.AggregatorConfig, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		gateway:          gw,
		oracle:           priceOracle,
		tl:               logger,
		priceConcurrency: cfg.PriceConcurrency,
		runTimeout:       time.Duration(cfg.RunTimeout) * time.Second,
	}
}

// GetBalances 可重入；总是返回与 tokens 等长的完整结果，任何失败都降级为 {"0", null}
func (a *Aggregator) GetBalances(ctx context.Context, chainID uint64, owner string, tokens []model.TokenRef) model.Aggregation {
	chain := strconv.FormatUint(chainID, 10)
	start := time.Now()
	monitor.AggregationRuns.WithLabelValues(chain).Inc()
	defer func() {
		monitor.AggregationDuration.WithLabelValues(chain).Observe(time.Since(start).Seconds())
	}()

	ctx, span := logger.StartSpan(ctx, "aggregator", "get_balances",
		attribute.Int64("chain_id", int64(chainID)),
		attribute.Int("tokens", len(tokens)),
	)
	defer span.End()
	tl := logger.NewLoggerWithTrace(ctx, a.tl).With(zap.Uint64("chain_id", chainID), zap.String("owner", owner))

	if a.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.runTimeout)
		defer cancel()
	}

	erc20 := make([]model.TokenRef, 0, len(tokens))
	hasNative := false
	for _, token := range tokens {
		if token.Native() {
			hasNative = true
			continue
		}
		erc20 = append(erc20, token)
	}

	// 批量余额和原生币余额并发
	var (
		calls  []model.CallResult
		native *big.Int
	)
	wg := conc.NewWaitGroup()
	wg.Go(func() {
		calls = a.FetchTokenBalances(ctx, tl, chainID, owner, erc20)
	})
	if hasNative {
		wg.Go(func() {
			native = a.FetchNativeBalance(ctx, tl, chainID, owner)
		})
	}
	wg.Wait()

	candidates := PricingCandidates(tokens, calls, native)
	prices := a.ResolvePrices(ctx, tl, chainID, candidates)

	result := Merge(tokens, calls, native, prices)
	if !hasNative {
		result.NativeStatus = model.NativeAbsent
	}
	tl.Debug("aggregation done",
		zap.Int("tokens", len(tokens)),
		zap.Int("priced", len(candidates)),
		zap.Float64("cost", time.Since(start).Seconds()),
	)
	return result
}

// Merge 确定性合并，每个请求的 token 恰好一条记录：
//  1. 原生币：余额已知则按精度格式化，否则 "0"
//  2. 其他 token：按位置取 CallResult，成功则格式化，失败则 "0"
//  3. 余额 > 0 且报价成功才计算 usdValue = balance * price（两位小数），否则为 null
func Merge(tokens []model.TokenRef, calls []model.CallResult, native *big.Int, prices map[string]model.PriceResult) model.Aggregation {
	balances := make(model.BalanceMap, len(tokens))
	j := 0
	for _, token := range tokens {
		var amount decimal.Decimal
		if token.Native() {
			amount = utils.AdjustDecimals(native, token.Decimals)
		} else {
			if call := callAt(calls, j); call.OK() {
				amount = utils.AdjustDecimals(call.Value, token.Decimals)
			}
			j++
		}

		entry := model.BalanceEntry{Balance: amount.String()}
		if amount.IsPositive() {
			if price, ok := prices[token.Key()]; ok && price.Fulfilled() {
				usd := utils.FormatUsd(amount.Mul(price.UsdUnitPrice))
				entry.UsdValue = &usd
			}
		}
		balances[token.Key()] = entry
	}
	return model.Aggregation{Balances: balances, NativeStatus: model.NativeStatusOf(native)}
}

func callAt(calls []model.CallResult, i int) model.CallResult {
	if i < 0 || i >= len(calls) {
		return model.CallResult{Status: model.CallFailure}
	}
	return calls[i]
}
