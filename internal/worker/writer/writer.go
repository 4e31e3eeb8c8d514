package writer

import (
	"context"
)

// BatchWriter 批量写入目标（kafka 等）
type BatchWriter[T any] interface {
	BWrite(ctx context.Context, batch []T) error
	Close() error
}
