package model

import (
	"fmt"
	"strings"

	"web3-balance/pkg/utils"
)

const (
	// NativeTokenAddress 原生币哨兵地址（EVM 通用约定）
	NativeTokenAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	// ZeroAddress 部分 token list 用零地址表示原生币
	ZeroAddress = "0x0000000000000000000000000000000000000000"
)

// TokenRef 一条链上的 token 引用，构造后不可变
type TokenRef struct {
	Address  string `json:"address"`
	ChainID  uint64 `json:"chainId"`
	Decimals uint8  `json:"decimals"`
	IsNative bool   `json:"isNative,omitempty"`
}

func NewTokenRef(chainID uint64, address string, decimals uint8) TokenRef {
	t := TokenRef{
		Address:  strings.TrimSpace(address),
		ChainID:  chainID,
		Decimals: decimals,
	}
	t.IsNative = IsNativeAddress(t.Address)
	return t
}

func NewNativeToken(chainID uint64, decimals uint8) TokenRef {
	return TokenRef{Address: NativeTokenAddress, ChainID: chainID, Decimals: decimals, IsNative: true}
}

// Key 链内唯一标识，EVM 地址小写
func (t TokenRef) Key() string {
	return utils.NormalizeAddress(t.Address)
}

// ID 跨链唯一标识 (chainId, address)
func (t TokenRef) ID() string {
	return fmt.Sprintf("%d:%s", t.ChainID, t.Key())
}

func (t TokenRef) Native() bool {
	return t.IsNative || IsNativeAddress(t.Address)
}

func IsNativeAddress(addr string) bool {
	key := utils.NormalizeAddress(addr)
	return key == NativeTokenAddress || key == ZeroAddress
}

// Fingerprint token 列表身份，顺序敏感
func Fingerprint(tokens []TokenRef) string {
	var sb strings.Builder
	for _, t := range tokens {
		fmt.Fprintf(&sb, "%s/%d/%t;", t.ID(), t.Decimals, t.Native())
	}
	return sb.String()
}
