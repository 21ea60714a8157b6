package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"acadcore/cbcs/internal/dto"
	"acadcore/cbcs/internal/model"
	"acadcore/cbcs/internal/repository"
	"acadcore/cbcs/pkg/metrics"
)

// CycleCoordinator 负责 OPEN → FINALIZING 的触发
//
// 状态迁移由数据库中的单条条件 UPDATE 完成，只有迁移成功的调用方
// 才会派发分配任务，因此每次进入 FINALIZING 至多派发一次。
type CycleCoordinator interface {
	// CheckAndMaybeTrigger 提交人数达到 expected_total 时触发，返回是否由本次调用触发
	CheckAndMaybeTrigger(ctx context.Context, cycleID string) (bool, error)
	// TriggerManually 忽略人数直接触发；FINALIZING / COMPLETE 时为 no-op
	TriggerManually(ctx context.Context, cycleID string) (*dto.FinalizeResponse, error)
}

// FinalizeDispatcher 异步执行分配任务
type FinalizeDispatcher interface {
	Dispatch(ctx context.Context, cycleID string) bool
}

type cycleCoordinator struct {
	repo       *repository.Repository
	dispatcher FinalizeDispatcher
	logger     *zap.Logger
}

// NewCycleCoordinator 创建 CycleCoordinator 实例
func NewCycleCoordinator(repo *repository.Repository, dispatcher FinalizeDispatcher, logger *zap.Logger) CycleCoordinator {
	return &cycleCoordinator{repo: repo, dispatcher: dispatcher, logger: logger}
}

func (c *cycleCoordinator) CheckAndMaybeTrigger(ctx context.Context, cycleID string) (bool, error) {
	won, err := c.repo.Cycle.TryBeginFinalize(ctx, cycleID)
	if err != nil {
		metrics.TriggersTotal.WithLabelValues("submit", "error").Inc()
		return false, err
	}
	if !won {
		metrics.TriggersTotal.WithLabelValues("submit", "skipped").Inc()
		return false, nil
	}

	metrics.TriggersTotal.WithLabelValues("submit", "won").Inc()
	c.logger.Info("提交人数已满，开始分配", zap.String("cycle_id", cycleID))
	c.dispatcher.Dispatch(ctx, cycleID)
	return true, nil
}

func (c *cycleCoordinator) TriggerManually(ctx context.Context, cycleID string) (*dto.FinalizeResponse, error) {
	won, err := c.repo.Cycle.ForceBeginFinalize(ctx, cycleID)
	if err != nil {
		metrics.TriggersTotal.WithLabelValues("manual", "error").Inc()
		c.logger.Error("手动触发分配失败", zap.String("cycle_id", cycleID), zap.Error(err))
		return nil, err
	}

	if won {
		metrics.TriggersTotal.WithLabelValues("manual", "won").Inc()
		c.logger.Info("管理员手动触发分配", zap.String("cycle_id", cycleID))
		c.dispatcher.Dispatch(ctx, cycleID)
		return &dto.FinalizeResponse{Triggered: true, State: model.CycleStateFinalizing}, nil
	}

	cycle, err := c.repo.Cycle.GetByID(ctx, cycleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCycleNotFound
		}
		c.logger.Error("查询分配轮次失败", zap.String("cycle_id", cycleID), zap.Error(err))
		return nil, err
	}

	metrics.TriggersTotal.WithLabelValues("manual", "skipped").Inc()
	return &dto.FinalizeResponse{Triggered: false, State: cycle.State}, nil
}
