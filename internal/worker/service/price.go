package service

import (
	"context"
	"math/big"
	"strconv"

	"web3-balance/internal/worker/model"
	"web3-balance/internal/worker/monitor"
	"web3-balance/pkg/settle"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PricingCandidates 只有链上余额 > 0 的 token 才需要查价；
// 原生币要求余额已知且 > 0。calls 与 tokens 中的非原生 token 按位置对应
func PricingCandidates(tokens []model.TokenRef, calls []model.CallResult, native *big.Int) []model.TokenRef {
	candidates := make([]model.TokenRef, 0, len(tokens))
	j := 0
	for _, token := range tokens {
		if token.Native() {
			if native != nil && native.Sign() > 0 {
				candidates = append(candidates, token)
			}
			continue
		}
		call := callAt(calls, j)
		j++
		if call.OK() && call.Value.Sign() > 0 {
			candidates = append(candidates, token)
		}
	}
	return candidates
}

// ResolvePrices 每个候选 token 一次查价，全部并发，逐个结算：
// 一个失败不会取消或阻塞其他查询
func (a *Aggregator) ResolvePrices(ctx context.Context, tl *zap.Logger, chainID uint64, candidates []model.TokenRef) map[string]model.PriceResult {
	tasks := make([]settle.Task[decimal.Decimal], len(candidates))
	for i, token := range candidates {
		address := token.Address
		tasks[i] = func(ctx context.Context) (decimal.Decimal, error) {
			return a.oracle.UnitPriceUsd(ctx, chainID, address)
		}
	}

	chain := strconv.FormatUint(chainID, 10)
	prices := make(map[string]model.PriceResult, len(candidates))
	for i, res := range settle.All(ctx, a.priceConcurrency, tasks) {
		token := candidates[i]
		if !res.Fulfilled() {
			monitor.PriceLookups.WithLabelValues(chain, "rejected").Inc()
			tl.Debug("price lookup failed", zap.String("token", token.Address), zap.Error(res.Err))
			prices[token.Key()] = model.PriceResult{Status: model.PriceRejected, Err: res.Err}
			continue
		}
		monitor.PriceLookups.WithLabelValues(chain, "fulfilled").Inc()
		prices[token.Key()] = model.PriceResult{Status: model.PriceFulfilled, UsdUnitPrice: res.Value}
	}
	return prices
}
