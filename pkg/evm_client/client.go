package evm_client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client 同一条连接上的原始 rpc（批量调用）和 ethclient（类型化查询）
type Client struct {
	RPC *rpc.Client
	Eth *ethclient.Client
}

// Dial 建立 evm rpc 连接，timeout 作用于每个 http 请求
func Dial(ctx context.Context, rawurl string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rpcClient, err := rpc.DialOptions(ctx, rawurl, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc %s: %w", rawurl, err)
	}
	return &Client{RPC: rpcClient, Eth: ethclient.NewClient(rpcClient)}, nil
}

// Init evm client
func Init(rawurl string) *Client {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, rawurl, 0)
	if err != nil {
		panic(fmt.Sprintf("Init evm client error: %v", err))
	}
	return client
}

func (c *Client) Close() {
	c.RPC.Close()
}
