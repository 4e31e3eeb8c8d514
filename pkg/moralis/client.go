package moralis

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"web3-balance/internal/worker/config"
	"web3-balance/pkg/httpclient"

	"go.uber.org/zap"
)

type MoralisClient struct {
	baseURL    string
	gatewayURL string
	httpClient *httpclient.HTTPClient
	logger     *zap.Logger
}

func NewMoralisClient(cfg config.MoralisConfig, logger *zap.Logger) *MoralisClient {
	// 创建HTTP客户端配置
	httpCfg := httpclient.HTTPClientConfig{
		Timeout:    time.Duration(cfg.Timeout) * time.Second,
		RateLimit:  cfg.RateLimit,
		MaxRetries: 1,
		XApiKey:    cfg.APIKey,
	}

	return &MoralisClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
		httpClient: httpclient.NewHTTPClient(httpCfg, logger),
		logger:     logger,
	}
}

// GetEvmTokenPrice erc20 报价，chain 使用十六进制 chain id（0x1、0x38）
func (m *MoralisClient) GetEvmTokenPrice(ctx context.Context, chainID uint64, tokenAddr string) (*TokenPrice, error) {
	u := fmt.Sprintf("%s/api/v2.2/erc20/%s/price", m.baseURL, url.PathEscape(tokenAddr))
	query := map[string]string{"chain": fmt.Sprintf("0x%x", chainID)}

	var resp TokenPrice
	if err := m.httpClient.Get(ctx, u, query, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch evm token price failed, token: %s, error: %w", tokenAddr, err)
	}
	return &resp, nil
}

// GetSolanaTokenPrice spl token 报价
func (m *MoralisClient) GetSolanaTokenPrice(ctx context.Context, mint string) (*TokenPrice, error) {
	u := fmt.Sprintf("%s/token/mainnet/%s/price", m.gatewayURL, url.PathEscape(mint))

	var resp TokenPrice
	if err := m.httpClient.Get(ctx, u, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch solana token price failed, mint: %s, error: %w", mint, err)
	}
	return &resp, nil
}
