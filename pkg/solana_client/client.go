package solana_client

import (
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// Init solana client
func Init(rawUrl string) *rpc.Client {
	return rpc.New(rawUrl)
}

// InitWithTimeout 带超时的 solana client
func InitWithTimeout(rawUrl string, timeout time.Duration) *rpc.Client {
	if timeout <= 0 {
		return Init(rawUrl)
	}
	rpcClient := jsonrpc.NewClientWithOpts(rawUrl, &jsonrpc.RPCClientOpts{
		HTTPClient: &http.Client{Timeout: timeout},
	})
	return rpc.NewWithCustomRPCClient(rpcClient)
}
