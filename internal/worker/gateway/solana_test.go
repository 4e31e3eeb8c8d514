package gateway

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"web3-balance/internal/worker/model"
	"web3-balance/pkg/solana_client"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSolanaChainID = 501

// spl token 账户布局：mint(32) owner(32) amount(u64 LE) ... 共 165 字节
func tokenAccountData(mint, owner solana.PublicKey, amount uint64) string {
	data := make([]byte, 165)
	copy(data[0:32], mint.Bytes())
	copy(data[32:64], owner.Bytes())
	binary.LittleEndian.PutUint64(data[64:72], amount)
	data[108] = 1 // initialized
	return base64.StdEncoding.EncodeToString(data)
}

// tokenHolding owner 名下的一个 token 账户
type tokenHolding struct {
	program solana.PublicKey
	data    string // base64
}

type fakeSolana struct {
	holdings map[string][]tokenHolding // owner => 账户
	lamports uint64
	failFor  string // 该程序的查询返回错误

	mu       sync.Mutex
	requests []string
}

func (f *fakeSolana) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeSolana) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	rpcCtx := map[string]interface{}{"slot": 1}
	f.mu.Lock()
	f.requests = append(f.requests, req.Method)
	f.mu.Unlock()

	switch req.Method {
	case "getBalance":
		resp.Result = map[string]interface{}{"context": rpcCtx, "value": f.lamports}
	case "getTokenAccountsByOwner":
		var owner string
		var filter struct {
			ProgramID string `json:"programId"`
		}
		_ = json.Unmarshal(req.Params[0], &owner)
		_ = json.Unmarshal(req.Params[1], &filter)
		if filter.ProgramID == f.failFor {
			resp.Error = &rpcError{Code: -32005, Message: "node is behind"}
			break
		}
		values := make([]interface{}, 0)
		for _, h := range f.holdings[owner] {
			if h.program.String() != filter.ProgramID {
				continue
			}
			values = append(values, map[string]interface{}{
				"pubkey": solana.NewWallet().PublicKey().String(),
				"account": map[string]interface{}{
					"data":       []string{h.data, "base64"},
					"executable": false,
					"lamports":   2039280,
					"owner":      filter.ProgramID,
					"rentEpoch":  0,
				},
			})
		}
		resp.Result = map[string]interface{}{"context": rpcCtx, "value": values}
	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found"}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// token2022AccountData 基础布局后追加 AccountType 和一段扩展
func token2022AccountData(mint, owner solana.PublicKey, amount uint64) string {
	base, _ := base64.StdEncoding.DecodeString(tokenAccountData(mint, owner, amount))
	data := append(base, 2, 0x07, 0x00, 0x02, 0x00, 0xaa, 0xbb)
	return base64.StdEncoding.EncodeToString(data)
}

func TestSolanaGateway(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	held := solana.NewWallet().PublicKey()
	split := solana.NewWallet().PublicKey()
	t22 := solana.NewWallet().PublicKey()
	empty := solana.NewWallet().PublicKey()

	fake := &fakeSolana{
		holdings: map[string][]tokenHolding{
			owner.String(): {
				{program: solana.TokenProgramID, data: tokenAccountData(held, owner, 1500000)},
				// 同一 mint 分散在关联账户和普通账户
				{program: solana.TokenProgramID, data: tokenAccountData(split, owner, 700)},
				{program: solana.TokenProgramID, data: tokenAccountData(split, owner, 300)},
				{program: Token2022ProgramID, data: token2022AccountData(t22, owner, 42_000_000)},
			},
		},
		lamports: 2_500_000_000,
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	gw := NewSolanaGateway(testSolanaChainID, solana_client.Init(srv.URL), zaptest.NewLogger(t))
	calls := []model.ContractCall{
		{Target: held.String(), Function: model.FuncBalanceOf, Args: []string{owner.String()}},
		{Target: empty.String(), Function: model.FuncBalanceOf, Args: []string{owner.String()}},
		{Target: "not-base58-0OIl", Function: model.FuncBalanceOf, Args: []string{owner.String()}},
		{Target: split.String(), Function: model.FuncBalanceOf, Args: []string{owner.String()}},
		{Target: t22.String(), Function: model.FuncBalanceOf, Args: []string{owner.String()}},
	}

	results, err := gw.BatchCall(context.Background(), testSolanaChainID, calls)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.True(t, results[0].OK())
	assert.Equal(t, uint64(1500000), results[0].Value.Uint64())
	assert.True(t, results[1].OK(), "no account under either program means zero balance")
	assert.Zero(t, results[1].Value.Sign())
	assert.False(t, results[2].OK())
	assert.Equal(t, uint64(1000), results[3].Value.Uint64())
	require.True(t, results[4].OK())
	assert.Equal(t, uint64(42_000_000), results[4].Value.Uint64())
	// 一个 owner 两次请求：token 和 token-2022
	assert.Equal(t, []string{"getTokenAccountsByOwner", "getTokenAccountsByOwner"}, fake.methods())

	lamports, err := gw.NativeBalance(context.Background(), testSolanaChainID, owner.String())
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), lamports.Uint64())

	_, err = gw.BatchCall(context.Background(), 1, calls)
	assert.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestSolanaGatewayProgramFailure(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	fake := &fakeSolana{
		holdings: map[string][]tokenHolding{
			owner.String(): {{program: solana.TokenProgramID, data: tokenAccountData(mint, owner, 5)}},
		},
		failFor: Token2022ProgramID.String(),
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	gw := NewSolanaGateway(testSolanaChainID, solana_client.Init(srv.URL), zaptest.NewLogger(t))
	results, err := gw.BatchCall(context.Background(), testSolanaChainID, []model.ContractCall{
		{Target: mint.String(), Function: model.FuncBalanceOf, Args: []string{owner.String()}},
	})
	// token-2022 查询失败时余额未知，不能当成确定值
	assert.Error(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].OK())
}
