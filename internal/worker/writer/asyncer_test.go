package writer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memWriter struct {
	mu      sync.Mutex
	items   []int
	batches int
	closed  bool
}

func (m *memWriter) BWrite(ctx context.Context, batch []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, batch...)
	m.batches++
	return nil
}

func (m *memWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func TestAsyncBatchWriter_FlushBySize(t *testing.T) {
	mem := &memWriter{}
	w := NewAsyncBatchWriter[int](zaptest.NewLogger(t), mem, 2, time.Hour, "test_size", 1)
	w.Start(context.Background())

	for i := 0; i < 4; i++ {
		require.True(t, w.Submit(i))
	}
	require.Eventually(t, func() bool { return mem.count() == 4 }, time.Second, 5*time.Millisecond)

	w.Close()
	assert.Equal(t, []int{0, 1, 2, 3}, mem.items)
	assert.Equal(t, 2, mem.batches)
	assert.True(t, mem.closed)
}

func TestAsyncBatchWriter_FlushByInterval(t *testing.T) {
	mem := &memWriter{}
	w := NewAsyncBatchWriter[int](zaptest.NewLogger(t), mem, 100, 10*time.Millisecond, "test_interval", 1)
	w.Start(context.Background())
	defer w.Close()

	w.Submit(7)
	require.Eventually(t, func() bool { return mem.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAsyncBatchWriter_CloseFlushesPending(t *testing.T) {
	mem := &memWriter{}
	w := NewAsyncBatchWriter[int](zaptest.NewLogger(t), mem, 100, time.Hour, "test_close", 1)
	w.Start(context.Background())

	w.Submit(1)
	w.Submit(2)
	w.Close()
	assert.Equal(t, []int{1, 2}, mem.items)
}
