package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"web3-balance/internal/worker/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
	usdc  = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
)

// fakeSource 每个地址可挂一个 gate，gate 关闭前聚合阻塞
type fakeSource struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{gates: make(map[string]chan struct{})}
}

func (f *fakeSource) block(addr string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[addr] = ch
	return ch
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSource) GetBalances(ctx context.Context, chainID uint64, owner string, tokens []model.TokenRef) model.Aggregation {
	f.mu.Lock()
	f.calls = append(f.calls, owner)
	gate := f.gates[owner]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	balances := make(model.BalanceMap, len(tokens))
	for _, t := range tokens {
		// 余额写成地址，便于断言结果来自哪个地址
		balances[t.Key()] = model.BalanceEntry{Balance: owner}
	}
	return model.Aggregation{Balances: balances, NativeStatus: model.NativeAbsent}
}

type publishLog struct {
	mu    sync.Mutex
	snaps []*model.Snapshot
}

func (p *publishLog) publish(_ string, s *model.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, s)
}

func (p *publishLog) all() []*model.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.Snapshot(nil), p.snaps...)
}

func session(addr string) model.Session {
	return model.Session{
		ID:      "s1",
		Address: addr,
		ChainID: 1,
		Tokens:  []model.TokenRef{model.NewTokenRef(1, usdc, 6)},
	}
}

func newTestController(t *testing.T, src BalanceSource, log *publishLog) *Controller {
	c := NewController(context.Background(), "s1", src, zaptest.NewLogger(t), log.publish)
	t.Cleanup(c.Close)
	return c
}

func TestController_PublishesResult(t *testing.T) {
	src := newFakeSource()
	log := &publishLog{}
	c := newTestController(t, src, log)

	assert.Equal(t, Idle, c.State())
	assert.Nil(t, c.Snapshot())

	c.Update(session(addrA))
	c.Wait()

	snap := c.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, Populated, c.State())
	assert.Equal(t, addrA, snap.Address)
	assert.Equal(t, uint64(1), snap.ChainID)
	assert.Len(t, snap.Balances, 1)
	assert.Equal(t, addrA, snap.Balances[usdc].Balance)
	assert.Equal(t, []*model.Snapshot{snap}, log.all())
}

func TestController_AddressSwitchMidFlight(t *testing.T) {
	src := newFakeSource()
	gateA := src.block(addrA)
	log := &publishLog{}
	c := newTestController(t, src, log)

	c.Update(session(addrA))
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, 5*time.Millisecond)

	c.Update(session(addrB))
	require.Eventually(t, func() bool { return c.Snapshot() != nil }, time.Second, 5*time.Millisecond)

	// A 的结果晚于 B 到达，必须被丢弃
	close(gateA)
	c.Wait()

	snap := c.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, addrB, snap.Address)
	assert.Equal(t, addrB, snap.Balances[usdc].Balance)

	published := log.all()
	require.Len(t, published, 1)
	assert.Equal(t, addrB, published[0].Address)
}

func TestController_ClearDropsInFlight(t *testing.T) {
	src := newFakeSource()
	gate := src.block(addrA)
	log := &publishLog{}
	c := newTestController(t, src, log)

	c.Update(session(addrA))
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, 5*time.Millisecond)
	c.Clear()
	close(gate)
	c.Wait()

	assert.Nil(t, c.Snapshot())
	assert.Equal(t, Idle, c.State())
	for _, s := range log.all() {
		assert.Nil(t, s)
	}
}

func TestController_DisconnectNoNetwork(t *testing.T) {
	src := newFakeSource()
	log := &publishLog{}
	c := newTestController(t, src, log)

	c.Update(session(addrA))
	c.Wait()
	require.NotNil(t, c.Snapshot())
	require.Equal(t, 1, src.callCount())

	c.Update(model.Session{ID: "s1"})
	c.Wait()

	assert.Nil(t, c.Snapshot())
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, 1, src.callCount())

	published := log.all()
	require.Len(t, published, 2)
	assert.Nil(t, published[1])
}

func TestController_Refetch(t *testing.T) {
	src := newFakeSource()
	log := &publishLog{}
	c := newTestController(t, src, log)

	assert.False(t, c.Refetch())
	assert.Equal(t, 0, src.callCount())

	c.Update(session(addrA))
	c.Wait()
	first := c.Snapshot()
	require.NotNil(t, first)

	require.True(t, c.Refetch())
	c.Wait()
	second := c.Snapshot()
	require.NotNil(t, second)

	assert.Equal(t, 2, src.callCount())
	assert.Greater(t, second.RunID, first.RunID)
	assert.Equal(t, first.Balances, second.Balances)
	assert.Equal(t, Populated, c.State())
}

func TestController_SameIdentityNoRerun(t *testing.T) {
	src := newFakeSource()
	c := newTestController(t, src, &publishLog{})

	c.Update(session("0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"))
	c.Wait()
	// 大小写不同的同一地址
	s := session("0xABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD")
	c.Update(s)
	c.Wait()
	assert.Equal(t, 1, src.callCount())

	s.Tokens = append(s.Tokens, model.NewNativeToken(1, 18))
	c.Update(s)
	c.Wait()
	assert.Equal(t, 2, src.callCount())
	assert.Len(t, c.Snapshot().Balances, 2)
}

func TestController_EmptyTokenListIsIdle(t *testing.T) {
	src := newFakeSource()
	c := newTestController(t, src, &publishLog{})

	s := session(addrA)
	s.Tokens = nil
	c.Update(s)
	c.Wait()

	assert.Equal(t, Idle, c.State())
	assert.Nil(t, c.Snapshot())
	assert.Equal(t, 0, src.callCount())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "populated", Populated.String())
}
