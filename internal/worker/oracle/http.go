package oracle

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"web3-balance/internal/worker/config"
	"web3-balance/pkg/httpclient"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PriceResp struct {
	UsdPrice *decimal.Decimal `json:"usdPrice"`
}

// HTTPOracle 外部价格服务：GET {base}/v1/tokens/{chainId}/{address}/price
type HTTPOracle struct {
	baseURL    string
	httpClient *httpclient.HTTPClient
	logger     *zap.Logger
}

func NewHTTPOracle(cfg config.OracleConfig, logger *zap.Logger) *HTTPOracle {
	httpCfg := httpclient.HTTPClientConfig{
		Timeout:    time.Duration(cfg.Timeout) * time.Second,
		RateLimit:  cfg.RateLimit,
		MaxRetries: 1,
		XApiKey:    cfg.APIKey,
	}
	return &HTTPOracle{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpclient.NewHTTPClient(httpCfg, logger),
		logger:     logger,
	}
}

func (o *HTTPOracle) UnitPriceUsd(ctx context.Context, chainID uint64, tokenAddress string) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/v1/tokens/%d/%s/price", o.baseURL, chainID, url.PathEscape(tokenAddress))

	var resp PriceResp
	if err := o.httpClient.Get(ctx, u, nil, nil, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("fetch price %d:%s: %w", chainID, tokenAddress, err)
	}
	if resp.UsdPrice == nil || resp.UsdPrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("%d:%s: %w", chainID, tokenAddress, ErrPriceNotFound)
	}
	return *resp.UsdPrice, nil
}
