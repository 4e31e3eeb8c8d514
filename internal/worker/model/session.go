package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"web3-balance/pkg/utils"
)

// Session 当前连接的钱包状态 (address, chainId, tokenList)
type Session struct {
	ID      string     `json:"id"`
	Address string     `json:"address"`
	ChainID uint64     `json:"chainId"`
	Tokens  []TokenRef `json:"tokens"`
}

// Bound 地址存在且 token 列表非空
func (s Session) Bound() bool {
	return strings.TrimSpace(s.Address) != "" && len(s.Tokens) > 0
}

// Identity 地址 / 链 / token 列表任一变化都视为新 session
func (s Session) Identity() string {
	return fmt.Sprintf("%d|%s|%s", s.ChainID, utils.NormalizeAddress(s.Address), Fingerprint(s.Tokens))
}

// ErrForeignChainToken BalanceMap 按地址作 key，session 内不允许混入其他链的 token
var ErrForeignChainToken = errors.New("token chainId differs from session chainId")

// NormalizeTokens 未带 chainId 的 token 继承 session 的链，其他链的 token 直接拒绝
func (s *Session) NormalizeTokens() error {
	for i := range s.Tokens {
		switch s.Tokens[i].ChainID {
		case 0:
			s.Tokens[i].ChainID = s.ChainID
		case s.ChainID:
		default:
			return fmt.Errorf("%w: token %s on chain %d, session on chain %d",
				ErrForeignChainToken, s.Tokens[i].Address, s.Tokens[i].ChainID, s.ChainID)
		}
	}
	return nil
}

type SessionEventType string

const (
	SessionConnect    SessionEventType = "connect"
	SessionUpdate     SessionEventType = "update"
	SessionDisconnect SessionEventType = "disconnect"
	SessionRefetch    SessionEventType = "refetch"
)

// SessionEvent 账户状态变化事件（kafka / http）
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	Session   Session          `json:"session"`
	EventTime int64            `json:"eventTime"`
}

// SnapshotEvent 快照发布后写入 kafka 的事件
type SnapshotEvent struct {
	SessionID    string       `json:"sessionId"`
	RunID        uint64       `json:"runId"`
	Address      string       `json:"address"`
	ChainID      uint64       `json:"chainId"`
	Balances     BalanceMap   `json:"balances"`
	NativeStatus NativeStatus `json:"nativeStatus,omitempty"`
	Cleared      bool         `json:"cleared"`
	EventTime    int64        `json:"eventTime"`
}

func NewSnapshotEvent(s *Snapshot) SnapshotEvent {
	return SnapshotEvent{
		SessionID:    s.SessionID,
		RunID:        s.RunID,
		Address:      s.Address,
		ChainID:      s.ChainID,
		Balances:     s.Balances,
		NativeStatus: s.NativeStatus,
		EventTime:    s.UpdatedAt.UnixMilli(),
	}
}

func NewClearedEvent(sessionID string) SnapshotEvent {
	return SnapshotEvent{SessionID: sessionID, Cleared: true, EventTime: time.Now().UnixMilli()}
}
