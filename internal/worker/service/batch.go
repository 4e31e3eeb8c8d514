package service

import (
	"context"
	"strconv"

	"web3-balance/internal/worker/model"
	"web3-balance/internal/worker/monitor"

	"go.uber.org/zap"
)

// BuildBalanceCalls 为每个本链的非原生 token 构建一个 balanceOf(owner)。
// index[i] 是 calls[i] 在 tokens 中的下标
func BuildBalanceCalls(chainID uint64, owner string, tokens []model.TokenRef) (calls []model.ContractCall, index []int) {
	calls = make([]model.ContractCall, 0, len(tokens))
	index = make([]int, 0, len(tokens))
	for i, token := range tokens {
		if token.Native() {
			continue
		}
		if token.ChainID != 0 && token.ChainID != chainID {
			continue
		}
		calls = append(calls, model.ContractCall{
			Target:   token.Address,
			Function: model.FuncBalanceOf,
			Args:     []string{owner},
		})
		index = append(index, i)
	}
	return calls, index
}

// FetchTokenBalances 一次批量请求拿到全部 erc20 余额，结果与 tokens 按位置对应。
// 不重试；整批失败时每一项都是 CallFailure，不返回错误
func (a *Aggregator) FetchTokenBalances(ctx context.Context, tl *zap.Logger, chainID uint64, owner string, tokens []model.TokenRef) []model.CallResult {
	results := model.FailedCalls(len(tokens))
	calls, index := BuildBalanceCalls(chainID, owner, tokens)
	if len(calls) == 0 {
		return results
	}

	got, err := a.gateway.BatchCall(ctx, chainID, calls)
	if err == nil && len(got) != len(calls) {
		tl.Warn("batch call result length mismatch", zap.Int("calls", len(calls)), zap.Int("results", len(got)))
		err = errResultMismatch
	}
	if err != nil {
		monitor.BatchCallFailures.WithLabelValues(strconv.FormatUint(chainID, 10)).Inc()
		tl.Warn("batch balanceOf failed, degrade to zero balances", zap.Uint64("chain_id", chainID), zap.Int("calls", len(calls)), zap.Error(err))
		return results
	}

	for i, r := range got {
		results[index[i]] = r
	}
	return results
}
