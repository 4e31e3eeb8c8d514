package gateway

import (
	"context"
	"fmt"
	"math/big"

	"web3-balance/internal/worker/model"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// spl token 账户基础布局长度，token-2022 账户在其后追加扩展
const tokenAccountBaseSize = 165

// Token2022ProgramID spl token-2022 程序
var Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PNnBxnxjPtqW3ZKu")

// tokenPrograms 余额按 owner 在这些程序下的全部 token 账户汇总
var tokenPrograms = []solana.PublicKey{solana.TokenProgramID, Token2022ProgramID}

// SolanaGateway balanceOf(owner) 映射为 owner 名下该 mint 所有 token 账户余额之和，
// 包括非关联账户和 token-2022 账户。每个 owner 每个程序一次 getTokenAccountsByOwner
type SolanaGateway struct {
	chainID uint64
	client  *rpc.Client
	tl      *zap.Logger
}

func NewSolanaGateway(chainID uint64, client *rpc.Client, logger *zap.Logger) *SolanaGateway {
	return &SolanaGateway{chainID: chainID, client: client, tl: logger}
}

type balanceCall struct {
	index int
	mint  solana.PublicKey
}

func (g *SolanaGateway) BatchCall(ctx context.Context, chainID uint64, calls []model.ContractCall) ([]model.CallResult, error) {
	if err := checkChain(g.chainID, chainID); err != nil {
		return nil, err
	}
	results := model.FailedCalls(len(calls))

	// 按 owner 分组，通常只有一个 owner
	owners := make([]solana.PublicKey, 0, 1)
	byOwner := make(map[solana.PublicKey][]balanceCall)
	for i, call := range calls {
		owner, mint, err := parseBalanceCall(call)
		if err != nil {
			g.tl.Debug("skip invalid call", zap.Uint64("chain_id", g.chainID), zap.Any("call", call), zap.Error(err))
			continue
		}
		if _, ok := byOwner[owner]; !ok {
			owners = append(owners, owner)
		}
		byOwner[owner] = append(byOwner[owner], balanceCall{index: i, mint: mint})
	}

	for _, owner := range owners {
		holdings, err := g.ownerHoldings(ctx, owner)
		if err != nil {
			return model.FailedCalls(len(calls)), err
		}
		for _, c := range byOwner[owner] {
			amount, ok := holdings[c.mint]
			if !ok {
				// 两个程序下都没有该 mint 的账户
				amount = big.NewInt(0)
			}
			results[c.index] = model.CallResult{Status: model.CallSuccess, Value: amount}
		}
	}
	return results, nil
}

// ownerHoldings owner 在 token / token-2022 程序下按 mint 汇总的余额
func (g *SolanaGateway) ownerHoldings(ctx context.Context, owner solana.PublicKey) (map[solana.PublicKey]*big.Int, error) {
	holdings := make(map[solana.PublicKey]*big.Int)
	for _, programID := range tokenPrograms {
		resp, err := g.client.GetTokenAccountsByOwner(ctx, owner,
			&rpc.GetTokenAccountsConfig{ProgramId: programID.ToPointer()},
			&rpc.GetTokenAccountsOpts{
				Encoding:   solana.EncodingBase64,
				Commitment: rpc.CommitmentConfirmed,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("getTokenAccountsByOwner(%s) on chain %d: %w", programID, g.chainID, err)
		}
		for _, account := range resp.Value {
			if account == nil {
				continue
			}
			decoded, err := decodeTokenAccount(&account.Account)
			if err != nil {
				g.tl.Debug("skip undecodable token account", zap.Stringer("account", account.Pubkey), zap.Error(err))
				continue
			}
			amount := new(big.Int).SetUint64(decoded.Amount)
			if sum, ok := holdings[decoded.Mint]; ok {
				sum.Add(sum, amount)
				continue
			}
			holdings[decoded.Mint] = amount
		}
	}
	return holdings, nil
}

func parseBalanceCall(call model.ContractCall) (owner, mint solana.PublicKey, err error) {
	if call.Function != model.FuncBalanceOf || len(call.Args) != 1 {
		return owner, mint, ErrUnsupportedCall
	}
	mint, err = solana.PublicKeyFromBase58(call.Target)
	if err != nil {
		return owner, mint, fmt.Errorf("invalid mint: %w", err)
	}
	owner, err = solana.PublicKeyFromBase58(call.Args[0])
	if err != nil {
		return owner, mint, fmt.Errorf("invalid owner: %w", err)
	}
	return owner, mint, nil
}

// decodeTokenAccount 只解析前 165 字节，token-2022 的扩展部分忽略
func decodeTokenAccount(account *rpc.Account) (*token.Account, error) {
	if account == nil || account.Data == nil {
		return nil, fmt.Errorf("empty account data")
	}
	data := account.Data.GetBinary()
	if len(data) < tokenAccountBaseSize {
		return nil, fmt.Errorf("token account too short: %d bytes", len(data))
	}
	var tokenAccount token.Account
	if err := bin.NewBinDecoder(data[:tokenAccountBaseSize]).Decode(&tokenAccount); err != nil {
		return nil, fmt.Errorf("decode token account: %w", err)
	}
	return &tokenAccount, nil
}

func (g *SolanaGateway) NativeBalance(ctx context.Context, chainID uint64, owner string) (*big.Int, error) {
	if err := checkChain(g.chainID, chainID); err != nil {
		return nil, err
	}
	pubKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid solana address %q: %w", owner, err)
	}
	resp, err := g.client.GetBalance(ctx, pubKey, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("getBalance on chain %d: %w", g.chainID, err)
	}
	return new(big.Int).SetUint64(resp.Value), nil
}
