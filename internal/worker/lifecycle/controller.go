package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"web3-balance/internal/worker/model"
	"web3-balance/internal/worker/monitor"

	"go.uber.org/zap"
)

type State int

const (
	Idle      State = iota // 没有绑定地址，快照为空
	Populated              // 已绑定 (address, chainId, tokenList)，快照为当前三元组的结果
)

func (s State) String() string {
	if s == Populated {
		return "populated"
	}
	return "idle"
}

// BalanceSource 聚合引擎
type BalanceSource interface {
	GetBalances(ctx context.Context, chainID uint64, owner string, tokens []model.TokenRef) model.Aggregation
}

// PublishFunc 快照发布回调，snapshot 为 nil 表示已清空。
// 在控制器锁内调用以保证顺序，不能阻塞也不能回调控制器
type PublishFunc func(sessionID string, snapshot *model.Snapshot)

// Controller 单个 session 的生命周期：
// 地址/链/token 列表变化触发新一轮聚合，地址消失立即清空；
// 每轮有单调递增的 runID，只有仍是最新一轮的结果才会发布
type Controller struct {
	id        string
	source    BalanceSource
	tl        *zap.Logger
	onPublish PublishFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	session model.Session
	bound   bool
	runID   uint64

	snapshot atomic.Pointer[model.Snapshot]
}

func NewController(ctx context.Context, id string, source BalanceSource, logger *zap.Logger, onPublish PublishFunc) *Controller {
	ctx, cancel := context.WithCancel(ctx)
	return &Controller{
		id:        id,
		source:    source,
		tl:        logger.With(zap.String("session", id)),
		onPublish: onPublish,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *Controller) ID() string {
	return c.id
}

// Snapshot 当前发布的快照，Idle 或首轮聚合未完成时为 nil
func (c *Controller) Snapshot() *model.Snapshot {
	return c.snapshot.Load()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		return Populated
	}
	return Idle
}

// Update 应用新的 session 状态；三元组未变化时不做任何事
func (c *Controller) Update(s model.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !s.Bound() {
		c.clearLocked()
		return
	}
	if c.bound && c.session.Identity() == s.Identity() {
		return
	}

	s.ID = c.id
	s.Tokens = append([]model.TokenRef(nil), s.Tokens...)
	c.session = s
	c.bound = true
	// 旧三元组的结果立即作废，不与新结果混合展示
	if c.snapshot.Swap(nil) != nil {
		c.publishLocked(nil)
	}
	c.startLocked()
}

// Refetch 对当前三元组重新聚合，旧快照保留到新结果发布为止
func (c *Controller) Refetch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.bound {
		return false
	}
	c.startLocked()
	return true
}

// Clear 地址断开：立即清空，不发起任何网络请求，在途结果全部丢弃
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Wait 等待所有在途聚合结束
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) Close() {
	c.Clear()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) clearLocked() {
	c.runID++
	wasBound := c.bound
	c.bound = false
	c.session = model.Session{ID: c.id}
	if c.snapshot.Swap(nil) != nil || wasBound {
		c.publishLocked(nil)
	}
}

func (c *Controller) startLocked() {
	c.runID++
	runID := c.runID
	session := c.session
	c.wg.Add(1)
	go c.run(runID, session)
}

func (c *Controller) run(runID uint64, s model.Session) {
	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.tl.Error("aggregation panicked", zap.Uint64("run_id", runID), zap.Any("panic", r))
		}
	}()

	agg := c.source.GetBalances(c.ctx, s.ChainID, s.Address, s.Tokens)
	snap := &model.Snapshot{
		SessionID:    c.id,
		RunID:        runID,
		Address:      s.Address,
		ChainID:      s.ChainID,
		Balances:     agg.Balances,
		NativeStatus: agg.NativeStatus,
		UpdatedAt:    time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if runID != c.runID || !c.bound {
		monitor.SupersededRuns.Inc()
		c.tl.Debug("drop superseded aggregation", zap.Uint64("run_id", runID), zap.Uint64("current", c.runID))
		return
	}
	c.snapshot.Store(snap)
	monitor.PublishedSnapshots.Inc()
	c.publishLocked(snap)
}

func (c *Controller) publishLocked(snap *model.Snapshot) {
	if c.onPublish != nil {
		c.onPublish(c.id, snap)
	}
}
