package gateway

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"web3-balance/internal/worker/model"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Multicall3 在绝大多数 evm 链上的统一部署地址
const DefaultMulticall3Address = "0xcA11bde05977b3631167028862bE2a173976CA11"

const multicall3ABI = `[{"inputs":[{"components":[{"internalType":"address","name":"target","type":"address"},{"internalType":"bool","name":"allowFailure","type":"bool"},{"internalType":"bytes","name":"callData","type":"bytes"}],"internalType":"struct Multicall3.Call3[]","name":"calls","type":"tuple[]"}],"name":"aggregate3","outputs":[{"components":[{"internalType":"bool","name":"success","type":"bool"},{"internalType":"bytes","name":"returnData","type":"bytes"}],"internalType":"struct Multicall3.Result[]","name":"returnData","type":"tuple[]"}],"stateMutability":"payable","type":"function"}]`

var multicallABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(multicall3ABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

type multicallCall struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type multicallResult struct {
	Success    bool   `json:"success"`
	ReturnData []byte `json:"returnData"`
}

// RPCCaller go-ethereum rpc.Client 的子集
type RPCCaller interface {
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// BalanceReader ethclient.Client 的子集
type BalanceReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// EVMGateway 一次 http 往返完成整批 balanceOf：
// 配置了 multicall 地址时走 aggregate3(allowFailure)，否则走 json-rpc batch
type EVMGateway struct {
	chainID   uint64
	rpc       RPCCaller
	eth       BalanceReader
	multicall *common.Address
	tl        *zap.Logger
}

func NewEVMGateway(chainID uint64, caller RPCCaller, eth BalanceReader, multicallAddress string, logger *zap.Logger) *EVMGateway {
	g := &EVMGateway{chainID: chainID, rpc: caller, eth: eth, tl: logger}
	if common.IsHexAddress(multicallAddress) {
		addr := common.HexToAddress(multicallAddress)
		g.multicall = &addr
	}
	return g
}

// BalanceOfCallData 构建balanceOf函数调用数据
func BalanceOfCallData(walletAddress common.Address) []byte {
	// ERC20的balanceOf函数签名
	methodID := []byte{0x70, 0xa0, 0x82, 0x31}
	// 填充地址参数(32字节)
	return append(methodID, common.LeftPadBytes(walletAddress.Bytes(), 32)...)
}

// ParseBalanceResult 解析合约调用的余额结果
func ParseBalanceResult(data []byte) (*big.Int, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("invalid balance data length: %d", len(data))
	}
	// 取最后32字节作为余额值
	return new(big.Int).SetBytes(data[len(data)-32:]), nil
}

type encodedCall struct {
	index  int
	target common.Address
	data   []byte
}

func (g *EVMGateway) encode(calls []model.ContractCall) []encodedCall {
	encoded := make([]encodedCall, 0, len(calls))
	for i, call := range calls {
		if call.Function != model.FuncBalanceOf || len(call.Args) != 1 ||
			!common.IsHexAddress(call.Target) || !common.IsHexAddress(call.Args[0]) {
			g.tl.Debug("skip invalid call", zap.Uint64("chain_id", g.chainID), zap.Any("call", call), zap.Error(ErrUnsupportedCall))
			continue
		}
		encoded = append(encoded, encodedCall{
			index:  i,
			target: common.HexToAddress(call.Target),
			data:   BalanceOfCallData(common.HexToAddress(call.Args[0])),
		})
	}
	return encoded
}

func (g *EVMGateway) BatchCall(ctx context.Context, chainID uint64, calls []model.ContractCall) ([]model.CallResult, error) {
	if err := checkChain(g.chainID, chainID); err != nil {
		return nil, err
	}
	results := model.FailedCalls(len(calls))
	encoded := g.encode(calls)
	if len(encoded) == 0 {
		return results, nil
	}
	if g.multicall != nil {
		return results, g.aggregate3(ctx, encoded, results)
	}
	return results, g.batch(ctx, encoded, results)
}

func (g *EVMGateway) batch(ctx context.Context, encoded []encodedCall, results []model.CallResult) error {
	outs := make([]hexutil.Bytes, len(encoded))
	elems := make([]rpc.BatchElem, len(encoded))
	for i, call := range encoded {
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{
				map[string]interface{}{"to": call.target, "data": hexutil.Bytes(call.data)},
				"latest",
			},
			Result: &outs[i],
		}
	}
	if err := g.rpc.BatchCallContext(ctx, elems); err != nil {
		return fmt.Errorf("eth_call batch on chain %d: %w", g.chainID, err)
	}

	for i, elem := range elems {
		if elem.Error != nil {
			continue
		}
		balance, err := ParseBalanceResult(outs[i])
		if err != nil {
			continue
		}
		results[encoded[i].index] = model.CallResult{Status: model.CallSuccess, Value: balance}
	}
	return nil
}

func (g *EVMGateway) aggregate3(ctx context.Context, encoded []encodedCall, results []model.CallResult) error {
	mcalls := make([]multicallCall, len(encoded))
	for i, call := range encoded {
		mcalls[i] = multicallCall{Target: call.target, AllowFailure: true, CallData: call.data}
	}
	input, err := multicallABI.Pack("aggregate3", mcalls)
	if err != nil {
		return fmt.Errorf("pack aggregate3: %w", err)
	}

	var out hexutil.Bytes
	msg := map[string]interface{}{"to": *g.multicall, "data": hexutil.Bytes(input)}
	if err := g.rpc.CallContext(ctx, &out, "eth_call", msg, "latest"); err != nil {
		return fmt.Errorf("aggregate3 on chain %d: %w", g.chainID, err)
	}

	values, err := multicallABI.Unpack("aggregate3", out)
	if err != nil || len(values) != 1 {
		return fmt.Errorf("unpack aggregate3 on chain %d: %w", g.chainID, err)
	}
	decoded := *abi.ConvertType(values[0], new([]multicallResult)).(*[]multicallResult)
	if len(decoded) != len(encoded) {
		return fmt.Errorf("aggregate3 on chain %d: got %d results for %d calls", g.chainID, len(decoded), len(encoded))
	}

	for i, r := range decoded {
		if !r.Success {
			continue
		}
		balance, err := ParseBalanceResult(r.ReturnData)
		if err != nil {
			continue
		}
		results[encoded[i].index] = model.CallResult{Status: model.CallSuccess, Value: balance}
	}
	return nil
}

func (g *EVMGateway) NativeBalance(ctx context.Context, chainID uint64, owner string) (*big.Int, error) {
	if err := checkChain(g.chainID, chainID); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(owner) {
		return nil, fmt.Errorf("invalid evm address %q", owner)
	}
	balance, err := g.eth.BalanceAt(ctx, common.HexToAddress(owner), nil)
	if err != nil {
		return nil, fmt.Errorf("eth_getBalance on chain %d: %w", g.chainID, err)
	}
	return balance, nil
}
