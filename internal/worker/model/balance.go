package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ContractCall 批量只读调用中的一项
type ContractCall struct {
	Target   string   `json:"target"`   // token 合约（solana 为 mint）
	Function string   `json:"function"` // 目前只有 balanceOf
	Args     []string `json:"args"`
}

const FuncBalanceOf = "balanceOf"

type CallStatus int

const (
	CallFailure CallStatus = iota
	CallSuccess
)

// CallResult 与请求列表按位置一一对应
type CallResult struct {
	Status CallStatus
	Value  *big.Int
}

func FailedCalls(n int) []CallResult {
	return make([]CallResult, n)
}

func (r CallResult) OK() bool {
	return r.Status == CallSuccess && r.Value != nil
}

type PriceStatus int

const (
	PriceRejected PriceStatus = iota
	PriceFulfilled
)

type PriceResult struct {
	Status       PriceStatus
	UsdUnitPrice decimal.Decimal
	Err          error
}

func (r PriceResult) Fulfilled() bool {
	return r.Status == PriceFulfilled
}

// BalanceEntry 对外可见的单元，UsdValue 为 nil 时序列化为 null
type BalanceEntry struct {
	Balance  string  `json:"balance"`
	UsdValue *string `json:"usdValue"`
}

// BalanceMap token key => BalanceEntry，发布后只读
type BalanceMap map[string]BalanceEntry

// NativeStatus 原生币余额三态：查询失败(unknown) / 为零 / 为正
type NativeStatus string

const (
	NativeUnknown  NativeStatus = "unknown"
	NativeZero     NativeStatus = "zero"
	NativePositive NativeStatus = "positive"
	NativeAbsent   NativeStatus = "" // token 列表中没有原生币
)

func NativeStatusOf(balance *big.Int) NativeStatus {
	switch {
	case balance == nil:
		return NativeUnknown
	case balance.Sign() > 0:
		return NativePositive
	default:
		return NativeZero
	}
}

// Aggregation 一次聚合的完整结果
type Aggregation struct {
	Balances     BalanceMap   `json:"balances"`
	NativeStatus NativeStatus `json:"nativeStatus,omitempty"`
}

// Snapshot 控制器发布的不可变快照
type Snapshot struct {
	SessionID    string       `json:"sessionId"`
	RunID        uint64       `json:"runId"`
	Address      string       `json:"address"`
	ChainID      uint64       `json:"chainId"`
	Balances     BalanceMap   `json:"balances"`
	NativeStatus NativeStatus `json:"nativeStatus,omitempty"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
