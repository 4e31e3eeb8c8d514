package oracle

import (
	"context"
	"fmt"

	"web3-balance/internal/worker/config"
	"web3-balance/internal/worker/model"
	"web3-balance/pkg/moralis"

	"github.com/shopspring/decimal"
)

// MoralisPriceClient moralis.MoralisClient
type MoralisPriceClient interface {
	GetEvmTokenPrice(ctx context.Context, chainID uint64, tokenAddr string) (*moralis.TokenPrice, error)
	GetSolanaTokenPrice(ctx context.Context, mint string) (*moralis.TokenPrice, error)
}

// MoralisOracle 按链类型路由到 moralis evm / solana 报价接口
// 原生币没有合约地址，按 chains[].wrapped_native 的包装币报价
type MoralisOracle struct {
	client        MoralisPriceClient
	solanaChains  map[uint64]bool
	wrappedNative map[uint64]string
}

func NewMoralisOracle(client MoralisPriceClient, chains []config.ChainConfig) *MoralisOracle {
	o := &MoralisOracle{
		client:        client,
		solanaChains:  make(map[uint64]bool),
		wrappedNative: make(map[uint64]string),
	}
	for _, chain := range chains {
		if chain.Type == config.ChainTypeSolana {
			o.solanaChains[chain.ChainID] = true
		}
		if chain.WrappedNative != "" {
			o.wrappedNative[chain.ChainID] = chain.WrappedNative
		}
	}
	return o
}

func (o *MoralisOracle) UnitPriceUsd(ctx context.Context, chainID uint64, tokenAddress string) (decimal.Decimal, error) {
	if model.IsNativeAddress(tokenAddress) {
		wrapped, ok := o.wrappedNative[chainID]
		if !ok {
			return decimal.Zero, fmt.Errorf("%d: native without wrapped token: %w", chainID, ErrPriceNotFound)
		}
		tokenAddress = wrapped
	}

	var (
		price *moralis.TokenPrice
		err   error
	)
	if o.solanaChains[chainID] {
		price, err = o.client.GetSolanaTokenPrice(ctx, tokenAddress)
	} else {
		price, err = o.client.GetEvmTokenPrice(ctx, chainID, tokenAddress)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if price == nil || price.UsdPrice == nil || price.UsdPrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("%d:%s: %w", chainID, tokenAddress, ErrPriceNotFound)
	}
	return *price.UsdPrice, nil
}
