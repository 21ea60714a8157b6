package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"acadcore/cbcs/internal/model"
	pkgerrors "acadcore/cbcs/pkg/errors"
)

// CycleRepository 分配轮次数据访问接口
//
// 状态迁移全部是带条件的单条 UPDATE：只有 RowsAffected == 1 的调用方
// 真正完成了迁移，跨进程同样成立。
type CycleRepository interface {
	Create(ctx context.Context, cycle *model.AllocationCycle) error
	GetByID(ctx context.Context, id string) (*model.AllocationCycle, error)
	GetDetail(ctx context.Context, id string) (*model.AllocationCycle, error)
	GetForUpdate(ctx context.Context, id string) (*model.AllocationCycle, error)

	TryBeginFinalize(ctx context.Context, id string) (bool, error)
	ForceBeginFinalize(ctx context.Context, id string) (bool, error)
	MarkComplete(ctx context.Context, id string, lastError string) error
	RevertToOpen(ctx context.Context, id string, lastError string) error

	ListStuckFinalizing(ctx context.Context, before time.Time) ([]model.AllocationCycle, error)
	ClaimStuck(ctx context.Context, id string, before time.Time) (bool, error)
}

type cycleRepo struct {
	db *gorm.DB
}

// NewCycleRepo 创建 CycleRepository 实例
func NewCycleRepo(db *gorm.DB) CycleRepository {
	return &cycleRepo{db: db}
}

// Create 连同课程与班级容量一并写入（GORM 关联创建，单事务）
func (r *cycleRepo) Create(ctx context.Context, cycle *model.AllocationCycle) error {
	return r.db.WithContext(ctx).Create(cycle).Error
}

func (r *cycleRepo) GetByID(ctx context.Context, id string) (*model.AllocationCycle, error) {
	var cycle model.AllocationCycle
	err := r.db.WithContext(ctx).
		Where("cycle_id = ?", id).
		First(&cycle).Error
	if err != nil {
		return nil, err
	}
	return &cycle, nil
}

// GetDetail 预加载课程与班级，按定义顺序排列
func (r *cycleRepo) GetDetail(ctx context.Context, id string) (*model.AllocationCycle, error) {
	var cycle model.AllocationCycle
	err := r.db.WithContext(ctx).
		Preload("Subjects", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, course_code ASC")
		}).
		Preload("Subjects.Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("cycle_id = ?", id).
		First(&cycle).Error
	if err != nil {
		return nil, err
	}
	return &cycle, nil
}

// GetForUpdate 行锁读取，必须在事务连接上调用
func (r *cycleRepo) GetForUpdate(ctx context.Context, id string) (*model.AllocationCycle, error) {
	var cycle model.AllocationCycle
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("cycle_id = ?", id).
		First(&cycle).Error
	if err != nil {
		return nil, err
	}
	return &cycle, nil
}

// TryBeginFinalize 提交人数达到 expected_total 时 OPEN → FINALIZING
// 计数与状态判断在同一条语句中完成
func (r *cycleRepo) TryBeginFinalize(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.AllocationCycle{}).
		Where("cycle_id = ? AND state = ?", id, model.CycleStateOpen).
		Where("(SELECT COUNT(DISTINCT sp.student_id) FROM student_preferences sp WHERE sp.cycle_id = ?) >= expected_total", id).
		Updates(beginFinalizeColumns())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ForceBeginFinalize 管理员手动触发：仅要求当前为 OPEN
func (r *cycleRepo) ForceBeginFinalize(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.AllocationCycle{}).
		Where("cycle_id = ? AND state = ?", id, model.CycleStateOpen).
		Updates(beginFinalizeColumns())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func beginFinalizeColumns() map[string]interface{} {
	return map[string]interface{}{
		"state":         model.CycleStateFinalizing,
		"finalizing_at": time.Now().UTC(),
		"run_count":     gorm.Expr("run_count + 1"),
	}
}

// MarkComplete FINALIZING → COMPLETE
func (r *cycleRepo) MarkComplete(ctx context.Context, id string, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&model.AllocationCycle{}).
		Where("cycle_id = ? AND state = ?", id, model.CycleStateFinalizing).
		Updates(map[string]interface{}{
			"state":        model.CycleStateComplete,
			"completed_at": time.Now().UTC(),
			"last_error":   lastError,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

// RevertToOpen 分配失败后 FINALIZING → OPEN，保留失败原因
func (r *cycleRepo) RevertToOpen(ctx context.Context, id string, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&model.AllocationCycle{}).
		Where("cycle_id = ? AND state = ?", id, model.CycleStateFinalizing).
		Updates(map[string]interface{}{
			"state":         model.CycleStateOpen,
			"finalizing_at": nil,
			"last_error":    lastError,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

// ListStuckFinalizing 查询 FINALIZING 持续到 before 之前仍未结束的轮次
func (r *cycleRepo) ListStuckFinalizing(ctx context.Context, before time.Time) ([]model.AllocationCycle, error) {
	var cycles []model.AllocationCycle
	err := r.db.WithContext(ctx).
		Where("state = ? AND finalizing_at < ?", model.CycleStateFinalizing, before.UTC()).
		Order("finalizing_at ASC").
		Find(&cycles).Error
	return cycles, err
}

// ClaimStuck 刷新 finalizing_at 认领卡死轮次，多实例巡检时只有一个能认领成功
func (r *cycleRepo) ClaimStuck(ctx context.Context, id string, before time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.AllocationCycle{}).
		Where("cycle_id = ? AND state = ? AND finalizing_at < ?", id, model.CycleStateFinalizing, before.UTC()).
		Update("finalizing_at", time.Now().UTC())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
