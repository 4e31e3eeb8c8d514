package service

import (
	"context"
	"math/big"
	"strconv"
	"strings"

	"web3-balance/internal/worker/monitor"

	"go.uber.org/zap"
)

// FetchNativeBalance 原生币余额，nil 表示未知（无地址或查询失败），不会让本次聚合失败
func (a *Aggregator) FetchNativeBalance(ctx context.Context, tl *zap.Logger, chainID uint64, owner string) *big.Int {
	if strings.TrimSpace(owner) == "" {
		return nil
	}
	balance, err := a.gateway.NativeBalance(ctx, chainID, owner)
	if err != nil || balance == nil {
		monitor.NativeBalanceFailures.WithLabelValues(strconv.FormatUint(chainID, 10)).Inc()
		tl.Warn("native balance unavailable", zap.Uint64("chain_id", chainID), zap.String("owner", owner), zap.Error(err))
		return nil
	}
	return balance
}
