package utils

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeAddress 地址归一化：EVM 地址统一小写，非 EVM（如 solana base58）大小写敏感，原样返回
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if strings.HasPrefix(addr, "0x") || strings.HasPrefix(addr, "0X") {
		return "0x" + strings.ToLower(addr[2:])
	}
	return addr
}

// AdjustDecimals 调整精度显示，按 10^decimals 精确移位，不走除法避免截断
func AdjustDecimals(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// FormatUsd 美元金额只在展示边界保留两位小数
func FormatUsd(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
