package gateway

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"web3-balance/internal/worker/model"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testOwner = "0x1111111111111111111111111111111111111111"
	testUSDC  = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	testDAI   = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	testBad   = "0x2222222222222222222222222222222222222222"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// fakeEVM 最小 json-rpc 节点：balances 中没有的合约按 revert 处理
type fakeEVM struct {
	balances  map[string]*big.Int
	native    *big.Int
	multicall string
	requests  atomic.Int32
	down      bool
}

func (f *fakeEVM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	if f.down {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	var raw json.RawMessage
	_ = json.NewDecoder(r.Body).Decode(&raw)
	w.Header().Set("Content-Type", "application/json")
	if strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		var reqs []rpcRequest
		_ = json.Unmarshal(raw, &reqs)
		resps := make([]rpcResponse, len(reqs))
		for i, req := range reqs {
			resps[i] = f.handle(req)
		}
		_ = json.NewEncoder(w).Encode(resps)
		return
	}
	var req rpcRequest
	_ = json.Unmarshal(raw, &req)
	_ = json.NewEncoder(w).Encode(f.handle(req))
}

func (f *fakeEVM) handle(req rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "eth_getBalance":
		if f.native == nil {
			resp.Error = &rpcError{Code: -32000, Message: "header not found"}
			return resp
		}
		resp.Result = hexutil.EncodeBig(f.native)
	case "eth_call":
		var msg struct {
			To   common.Address `json:"to"`
			Data hexutil.Bytes  `json:"data"`
		}
		_ = json.Unmarshal(req.Params[0], &msg)
		if f.multicall != "" && msg.To == common.HexToAddress(f.multicall) {
			resp.Result = hexutil.Bytes(f.aggregate3(msg.Data))
			return resp
		}
		out, ok := f.balanceOf(msg.To)
		if !ok {
			resp.Error = &rpcError{Code: 3, Message: "execution reverted"}
			return resp
		}
		resp.Result = hexutil.Bytes(out)
	default:
		resp.Error = &rpcError{Code: -32601, Message: "method not found"}
	}
	return resp
}

func (f *fakeEVM) balanceOf(token common.Address) ([]byte, bool) {
	balance, ok := f.balances[strings.ToLower(token.Hex())]
	if !ok {
		return nil, false
	}
	return common.LeftPadBytes(balance.Bytes(), 32), true
}

func (f *fakeEVM) aggregate3(data []byte) []byte {
	method := multicallABI.Methods["aggregate3"]
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		panic(err)
	}
	calls := *abi.ConvertType(values[0], new([]multicallCall)).(*[]multicallCall)
	results := make([]multicallResult, len(calls))
	for i, call := range calls {
		out, ok := f.balanceOf(call.Target)
		results[i] = multicallResult{Success: ok, ReturnData: out}
	}
	packed, err := method.Outputs.Pack(results)
	if err != nil {
		panic(err)
	}
	return packed
}

func newTestEVMGateway(t *testing.T, fake *fakeEVM, multicall string) *EVMGateway {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client, err := rpc.DialHTTP(srv.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return NewEVMGateway(1, client, ethclient.NewClient(client), multicall, zaptest.NewLogger(t))
}

func balanceCalls(tokens ...string) []model.ContractCall {
	calls := make([]model.ContractCall, len(tokens))
	for i, token := range tokens {
		calls[i] = model.ContractCall{Target: token, Function: model.FuncBalanceOf, Args: []string{testOwner}}
	}
	return calls
}

func TestEVMGatewayBatchCall(t *testing.T) {
	for _, mode := range []struct {
		name      string
		multicall string
	}{
		{"json-rpc batch", ""},
		{"multicall3", DefaultMulticall3Address},
	} {
		t.Run(mode.name, func(t *testing.T) {
			fake := &fakeEVM{
				balances: map[string]*big.Int{
					strings.ToLower(testUSDC): big.NewInt(1500000),
					strings.ToLower(testDAI):  big.NewInt(0),
				},
				multicall: mode.multicall,
			}
			gw := newTestEVMGateway(t, fake, mode.multicall)

			calls := balanceCalls(testUSDC, testBad, testDAI, "not-an-address")
			results, err := gw.BatchCall(context.Background(), 1, calls)
			require.NoError(t, err)
			require.Len(t, results, 4)

			assert.True(t, results[0].OK())
			assert.Equal(t, int64(1500000), results[0].Value.Int64())
			assert.False(t, results[1].OK(), "reverted call")
			assert.True(t, results[2].OK())
			assert.Zero(t, results[2].Value.Sign())
			assert.False(t, results[3].OK(), "invalid target never sent")
			assert.Equal(t, int32(1), fake.requests.Load(), "one round trip")
		})
	}
}

func TestEVMGatewayWholeBatchFailure(t *testing.T) {
	gw := newTestEVMGateway(t, &fakeEVM{down: true}, "")

	results, err := gw.BatchCall(context.Background(), 1, balanceCalls(testUSDC, testDAI))
	require.Error(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.OK())
	}
}

func TestEVMGatewayWrongChain(t *testing.T) {
	gw := newTestEVMGateway(t, &fakeEVM{}, "")
	_, err := gw.BatchCall(context.Background(), 56, balanceCalls(testUSDC))
	assert.ErrorIs(t, err, ErrUnsupportedChain)
	_, err = gw.NativeBalance(context.Background(), 56, testOwner)
	assert.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestEVMGatewayNativeBalance(t *testing.T) {
	wei, _ := new(big.Int).SetString("2500000000000000000", 10)
	gw := newTestEVMGateway(t, &fakeEVM{native: wei}, "")

	balance, err := gw.NativeBalance(context.Background(), 1, testOwner)
	require.NoError(t, err)
	assert.Equal(t, 0, wei.Cmp(balance))

	_, err = gw.NativeBalance(context.Background(), 1, "nope")
	assert.Error(t, err)

	failing := newTestEVMGateway(t, &fakeEVM{}, "")
	_, err = failing.NativeBalance(context.Background(), 1, testOwner)
	assert.Error(t, err)
}

func TestParseBalanceResult(t *testing.T) {
	_, err := ParseBalanceResult([]byte{0x01})
	assert.Error(t, err)

	v, err := ParseBalanceResult(common.LeftPadBytes(big.NewInt(42).Bytes(), 32))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	data := BalanceOfCallData(common.HexToAddress(testOwner))
	assert.Equal(t, "0x70a082310000000000000000000000001111111111111111111111111111111111111111", hexutil.Encode(data))
}
