package oracle

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrPriceNotFound = errors.New("price not found")

// Oracle 美元单价查询，每次调用可独立失败；超时由实现方负责
type Oracle interface {
	UnitPriceUsd(ctx context.Context, chainID uint64, tokenAddress string) (decimal.Decimal, error)
}

// Func 便于测试和适配
type Func func(ctx context.Context, chainID uint64, tokenAddress string) (decimal.Decimal, error)

func (f Func) UnitPriceUsd(ctx context.Context, chainID uint64, tokenAddress string) (decimal.Decimal, error) {
	return f(ctx, chainID, tokenAddress)
}
