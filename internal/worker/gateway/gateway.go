package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"web3-balance/internal/worker/model"
)

var (
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrUnsupportedCall  = errors.New("unsupported call")
)

// Gateway 链 RPC 网关：批量只读调用 + 原生币余额
//
// BatchCall 返回的结果与 calls 按位置一一对应；error 只表示整批不可用。
type Gateway interface {
	BatchCall(ctx context.Context, chainID uint64, calls []model.ContractCall) ([]model.CallResult, error)
	NativeBalance(ctx context.Context, chainID uint64, owner string) (*big.Int, error)
}

// Registry 按 chainId 路由到具体链的网关
type Registry struct {
	mu       sync.RWMutex
	gateways map[uint64]Gateway
}

func NewRegistry() *Registry {
	return &Registry{gateways: make(map[uint64]Gateway)}
}

func (r *Registry) Register(chainID uint64, gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[chainID] = gw
}

func (r *Registry) Get(chainID uint64) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gw, ok := r.gateways[chainID]
	if !ok {
		return nil, fmt.Errorf("chain %d: %w", chainID, ErrUnsupportedChain)
	}
	return gw, nil
}

func (r *Registry) Chains() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint64, 0, len(r.gateways))
	for id := range r.gateways {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) BatchCall(ctx context.Context, chainID uint64, calls []model.ContractCall) ([]model.CallResult, error) {
	gw, err := r.Get(chainID)
	if err != nil {
		return nil, err
	}
	return gw.BatchCall(ctx, chainID, calls)
}

func (r *Registry) NativeBalance(ctx context.Context, chainID uint64, owner string) (*big.Int, error) {
	gw, err := r.Get(chainID)
	if err != nil {
		return nil, err
	}
	return gw.NativeBalance(ctx, chainID, owner)
}

func checkChain(expected, got uint64) error {
	if expected != got {
		return fmt.Errorf("chain %d: %w", got, ErrUnsupportedChain)
	}
	return nil
}
