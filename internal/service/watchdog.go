package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"acadcore/cbcs/internal/repository"
	"acadcore/cbcs/pkg/metrics"
)

// Watchdog 巡检长时间停留在 FINALIZING 的轮次（进程在提交前崩溃等情况）并重新派发
// 执行方在事务内复查状态，重复派发是安全的
type Watchdog struct {
	repo       *repository.Repository
	dispatcher FinalizeDispatcher
	interval   time.Duration
	stuckAfter time.Duration
	logger     *zap.Logger
}

// NewWatchdog 创建 Watchdog；interval <= 0 时 Run 直接返回
func NewWatchdog(repo *repository.Repository, dispatcher FinalizeDispatcher, interval, stuckAfter time.Duration, logger *zap.Logger) *Watchdog {
	return &Watchdog{
		repo:       repo,
		dispatcher: dispatcher,
		interval:   interval,
		stuckAfter: stuckAfter,
		logger:     logger,
	}
}

// WithStuckAfter 返回使用新卡死阈值的副本，供命令行一次性巡检
func (w *Watchdog) WithStuckAfter(d time.Duration) *Watchdog {
	cp := *w
	cp.stuckAfter = d
	return &cp
}

// Run 按固定间隔执行巡检，直到 ctx 取消
func (w *Watchdog) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("分配巡检已启动",
		zap.Duration("interval", w.interval),
		zap.Duration("stuck_after", w.stuckAfter))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				w.logger.Error("分配巡检失败", zap.Error(err))
			}
		}
	}
}

// Sweep 执行一次巡检，返回重新派发的轮次数
func (w *Watchdog) Sweep(ctx context.Context) (int, error) {
	before := time.Now().Add(-w.stuckAfter)

	cycles, err := w.repo.Cycle.ListStuckFinalizing(ctx, before)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, c := range cycles {
		// 认领成功才派发，多实例同时巡检时只有一个实例会处理
		won, err := w.repo.Cycle.ClaimStuck(ctx, c.CycleID, before)
		if err != nil {
			metrics.TriggersTotal.WithLabelValues("watchdog", "error").Inc()
			w.logger.Error("认领卡死轮次失败", zap.String("cycle_id", c.CycleID), zap.Error(err))
			continue
		}
		if !won {
			metrics.TriggersTotal.WithLabelValues("watchdog", "skipped").Inc()
			continue
		}

		w.logger.Warn("轮次停留在 FINALIZING 过久，重新派发",
			zap.String("cycle_id", c.CycleID),
			zap.Timep("finalizing_at", c.FinalizingAt))

		if w.dispatcher.Dispatch(ctx, c.CycleID) {
			metrics.TriggersTotal.WithLabelValues("watchdog", "won").Inc()
			dispatched++
		}
	}

	return dispatched, nil
}
