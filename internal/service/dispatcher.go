package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dispatcher 在独立 goroutine 中执行分配任务，不阻塞触发方的请求
// 同一进程内同一轮次同时至多一个任务；Wait 用于优雅关闭
type Dispatcher struct {
	runner  AllocationRunner
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewDispatcher 创建 Dispatcher
func NewDispatcher(runner AllocationRunner, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		runner:   runner,
		timeout:  timeout,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// Dispatch 派发分配任务，返回 false 表示该轮次已有任务在执行
// 任务上下文脱离调用方的取消信号，仅受 timeout 约束
func (d *Dispatcher) Dispatch(ctx context.Context, cycleID string) bool {
	d.mu.Lock()
	if _, busy := d.inflight[cycleID]; busy {
		d.mu.Unlock()
		d.logger.Info("分配任务已在执行，忽略重复派发", zap.String("cycle_id", cycleID))
		return false
	}
	d.inflight[cycleID] = struct{}{}
	d.wg.Add(1)
	d.mu.Unlock()

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	go func() {
		defer d.wg.Done()
		defer cancel()
		defer func() {
			d.mu.Lock()
			delete(d.inflight, cycleID)
			d.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				// 事务已回滚，轮次停留在 FINALIZING，由巡检恢复
				d.logger.Error("分配任务 panic", zap.String("cycle_id", cycleID), zap.Any("panic", r))
			}
		}()

		if err := d.runner.Finalize(runCtx, cycleID); err != nil {
			d.logger.Error("分配任务失败", zap.String("cycle_id", cycleID), zap.Error(err))
		}
	}()

	return true
}

// InFlight 该轮次当前是否有任务在执行
func (d *Dispatcher) InFlight(cycleID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inflight[cycleID]
	return ok
}

// Wait 等待所有已派发任务结束，或 ctx 到期
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
