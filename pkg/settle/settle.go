// Package settle 提供 "全部等待、逐个检查" 的并发组合器：
// 任意一个任务失败（error 或 panic）都不会取消或阻塞其他任务。
package settle

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// Result 单个任务的结算结果，Err 为 nil 表示 fulfilled
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) Fulfilled() bool {
	return r.Err == nil
}

// Task 可独立失败的异步任务
type Task[T any] func(ctx context.Context) (T, error)

// All 并发执行全部任务并等待全部结束，结果与 tasks 按下标一一对应。
// limit <= 0 时每个任务一个 goroutine。
func All[T any](ctx context.Context, limit int, tasks []Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))
	if len(tasks) == 0 {
		return results
	}

	p := pool.New()
	if limit > 0 {
		p = p.WithMaxGoroutines(limit)
	}
	for i, task := range tasks {
		i, task := i, task
		p.Go(func() {
			results[i] = run(ctx, task)
		})
	}
	p.Wait()

	return results
}

func run[T any](ctx context.Context, task Task[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[T]{Err: fmt.Errorf("task panicked: %v", r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		return Result[T]{Err: err}
	}
	v, err := task(ctx)
	return Result[T]{Value: v, Err: err}
}
