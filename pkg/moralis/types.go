package moralis

import "github.com/shopspring/decimal"

// TokenPrice erc20/price 与 solana token price 的公共字段
type TokenPrice struct {
	TokenAddress      string           `json:"tokenAddress"`
	TokenSymbol       string           `json:"tokenSymbol"`
	TokenDecimals     string           `json:"tokenDecimals"`
	UsdPrice          *decimal.Decimal `json:"usdPrice"`          // 数字，按原始文本精确解析
	UsdPriceFormatted string           `json:"usdPriceFormatted"` // evm 才有
	ExchangeName      string           `json:"exchangeName"`
	ExchangeAddress   string           `json:"exchangeAddress"`
	PossibleSpam      bool             `json:"possibleSpam"`
}
