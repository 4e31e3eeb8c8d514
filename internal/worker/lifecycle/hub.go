package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"web3-balance/internal/worker/model"
	"web3-balance/internal/worker/monitor"

	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownEvent    = errors.New("unknown session event")
)

// Hub 每个 session 一个 Controller
type Hub struct {
	ctx       context.Context
	source    BalanceSource
	tl        *zap.Logger
	onPublish PublishFunc

	mu          sync.RWMutex
	controllers map[string]*Controller
}

func NewHub(ctx context.Context, source BalanceSource, logger *zap.Logger, onPublish PublishFunc) *Hub {
	return &Hub{
		ctx:         ctx,
		source:      source,
		tl:          logger,
		onPublish:   onPublish,
		controllers: make(map[string]*Controller),
	}
}

// Apply 处理一条 session 事件
func (h *Hub) Apply(ev model.SessionEvent) error {
	id := ev.Session.ID
	if id == "" {
		return fmt.Errorf("%w: empty session id", ErrUnknownEvent)
	}

	switch ev.Type {
	case model.SessionConnect, model.SessionUpdate:
		// kafka 事件同样要校验，拒绝时 session 保持原状
		if err := ev.Session.NormalizeTokens(); err != nil {
			return err
		}
		if !ev.Session.Bound() {
			h.Disconnect(id)
			return nil
		}
		h.upsert(id, ev.Session)
		return nil
	case model.SessionDisconnect:
		h.Disconnect(id)
		return nil
	case model.SessionRefetch:
		return h.Refetch(id)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
}

// Refetch 手动刷新；session 不存在或未绑定地址时返回 ErrSessionNotFound
func (h *Hub) Refetch(id string) error {
	c, ok := h.Controller(id)
	if !ok || !c.Refetch() {
		return ErrSessionNotFound
	}
	return nil
}

// Disconnect 清空并移除 session
// 移除与清空在同一把锁内完成，之后的 connect 只会落到新的 Controller 上
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	c, ok := h.controllers[id]
	if ok {
		delete(h.controllers, id)
		monitor.ActiveSessions.Dec()
		c.Clear()
	}
	h.mu.Unlock()

	if ok {
		// 在途聚合已作废，取消网络请求即可，不等待
		c.cancel()
		h.tl.Info("session disconnected", zap.String("session", id))
	}
}

// Snapshot 当前快照；ok=false 表示 session 不存在
func (h *Hub) Snapshot(id string) (*model.Snapshot, State, bool) {
	c, ok := h.Controller(id)
	if !ok {
		return nil, Idle, false
	}
	return c.Snapshot(), c.State(), true
}

func (h *Hub) Controller(id string) (*Controller, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.controllers[id]
	return c, ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.controllers)
}

// Wait 等待所有 session 的在途聚合
func (h *Hub) Wait() {
	h.mu.RLock()
	list := make([]*Controller, 0, len(h.controllers))
	for _, c := range h.controllers {
		list = append(list, c)
	}
	h.mu.RUnlock()
	for _, c := range list {
		c.Wait()
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	list := h.controllers
	h.controllers = make(map[string]*Controller)
	monitor.ActiveSessions.Sub(float64(len(list)))
	h.mu.Unlock()

	for _, c := range list {
		c.Close()
	}
}

// upsert 查找或创建 Controller 并应用新 session，整个过程持有 hub 锁，
// 避免与 Disconnect 交错产生不在 map 里的 Controller
func (h *Hub) upsert(id string, s model.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.controllers[id]
	if !ok {
		c = NewController(h.ctx, id, h.source, h.tl, h.onPublish)
		h.controllers[id] = c
		monitor.ActiveSessions.Inc()
		h.tl.Info("session connected", zap.String("session", id))
	}
	c.Update(s)
}
