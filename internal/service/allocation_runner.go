package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"acadcore/cbcs/internal/allocator"
	"acadcore/cbcs/internal/model"
	"acadcore/cbcs/internal/repository"
	pkgerrors "acadcore/cbcs/pkg/errors"
	"acadcore/cbcs/pkg/metrics"
)

// AllocationRunner 对一个 FINALIZING 轮次执行完整分配
type AllocationRunner interface {
	// Finalize 在单个事务内重建全部课程的分配结果并置为 COMPLETE
	// 轮次不处于 FINALIZING 时静默返回 nil；失败时整体回滚并回退为 OPEN
	Finalize(ctx context.Context, cycleID string) error
}

// 运行结果标签
const (
	runComplete = "complete"
	runStale    = "stale"
	runFailed   = "failed"
)

type allocationRunner struct {
	repo   *repository.Repository
	tracer trace.Tracer
	logger *zap.Logger
}

// NewAllocationRunner 创建 AllocationRunner 实例
func NewAllocationRunner(repo *repository.Repository, logger *zap.Logger) AllocationRunner {
	return &allocationRunner{
		repo:   repo,
		tracer: otel.Tracer("acadcore/cbcs/allocation"),
		logger: logger,
	}
}

// subjectPlan 单门课程的分配输入与结果
type subjectPlan struct {
	subject     *model.SubjectOffering
	prefs       []model.StudentPreference
	result      *allocator.Result
	unallocated []string
}

func (r *allocationRunner) Finalize(ctx context.Context, cycleID string) error {
	ctx, span := r.tracer.Start(ctx, "allocation.finalize",
		trace.WithAttributes(attribute.String("cycle.id", cycleID)))
	defer span.End()

	metrics.InflightRuns.Inc()
	defer metrics.InflightRuns.Dec()

	start := time.Now()
	outcome, err := r.run(ctx, cycleID)
	metrics.FinalizeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.FinalizeRunsTotal.WithLabelValues(runFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.revert(ctx, cycleID, err)
		return &AllocationFailure{CycleID: cycleID, Err: err}
	}

	metrics.FinalizeRunsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("allocation.outcome", outcome))
	return nil
}

func (r *allocationRunner) run(ctx context.Context, cycleID string) (string, error) {
	tx, err := r.repo.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("开启事务失败: %w", err)
	}
	committed := false
	defer func() {
		if !committed && tx != nil {
			tx.Rollback()
		}
	}()

	txRepo := r.repo.WithTx(tx)

	// ── 1. 复查状态 ──
	cycle, err := txRepo.Cycle.GetForUpdate(ctx, cycleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCycleNotFound
		}
		return "", fmt.Errorf("锁定轮次失败: %w", err)
	}
	if cycle.State != model.CycleStateFinalizing {
		r.logger.Info("轮次已不在 FINALIZING，跳过分配",
			zap.String("cycle_id", cycleID), zap.String("state", cycle.State))
		return runStale, nil
	}

	policy, err := allocator.ParsePolicy(cycle.Policy)
	if err != nil {
		return "", err
	}

	// ── 2. 读取快照 ──
	subjects, err := txRepo.Subject.ListByCycle(ctx, cycleID)
	if err != nil {
		return "", fmt.Errorf("读取课程失败: %w", err)
	}
	plans := make([]subjectPlan, len(subjects))
	for i := range subjects {
		prefs, err := txRepo.Preference.ListBySubject(ctx, subjects[i].SubjectOfferingID)
		if err != nil {
			return "", fmt.Errorf("读取课程 %s 的志愿失败: %w", subjects[i].CourseCode, err)
		}
		plans[i] = subjectPlan{subject: &subjects[i], prefs: prefs}
	}

	// ── 3. 各课程独立计算（纯函数，可并行）──
	var g errgroup.Group
	for i := range plans {
		p := &plans[i]
		g.Go(func() error { return p.compute(policy) })
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	// ── 4. 事务内顺序写入 ──
	var (
		unallocated []string
		counts      = map[string]int{}
	)
	for i := range plans {
		p := &plans[i]
		if err := txRepo.Assignment.DeleteBySubject(ctx, p.subject.SubjectOfferingID); err != nil {
			return "", fmt.Errorf("清除课程 %s 的旧结果失败: %w", p.subject.CourseCode, err)
		}
		rows := p.rows(cycleID)
		if err := txRepo.Assignment.BatchCreate(ctx, rows); err != nil {
			return "", fmt.Errorf("写入课程 %s 的分配结果失败: %w", p.subject.CourseCode, err)
		}

		for _, row := range rows {
			switch {
			case row.IsOverfilled:
				counts["overfilled"]++
			case row.IsFallback:
				counts["fallback"]++
			default:
				counts["preferred"]++
			}
		}
		if len(p.unallocated) > 0 {
			r.logger.Warn("部分学生无可用班级，未分配",
				zap.String("cycle_id", cycleID),
				zap.String("course_code", p.subject.CourseCode),
				zap.Strings("student_ids", p.unallocated))
			unallocated = append(unallocated, p.unallocated...)
		}
	}
	counts["unallocated"] = len(unallocated)

	// ── 5. FINALIZING → COMPLETE ──
	lastError := ""
	if len(unallocated) > 0 {
		lastError = (&allocator.UnallocatableStudentError{StudentIDs: unallocated}).Error()
	}
	if err := txRepo.Cycle.MarkComplete(ctx, cycleID, lastError); err != nil {
		return "", fmt.Errorf("更新轮次状态失败: %w", err)
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			return "", fmt.Errorf("提交事务失败: %w", err)
		}
	}
	committed = true

	for kind, n := range counts {
		metrics.AssignmentsTotal.WithLabelValues(kind).Add(float64(n))
	}
	if counts["overfilled"] > 0 {
		r.logger.Warn("存在超额分配（所有班级均已满）",
			zap.String("cycle_id", cycleID), zap.Int("overfilled", counts["overfilled"]))
	}
	r.logger.Info("分配完成",
		zap.String("cycle_id", cycleID),
		zap.Int("subjects", len(plans)),
		zap.Int("preferred", counts["preferred"]),
		zap.Int("fallback", counts["fallback"]),
		zap.Int("unallocated", counts["unallocated"]))

	return runComplete, nil
}

// revert 事务回滚后将轮次退回 OPEN，以便之后的提交或手动触发重试
func (r *allocationRunner) revert(ctx context.Context, cycleID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := r.repo.Cycle.RevertToOpen(ctx, cycleID, cause.Error()); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			r.logger.Warn("轮次状态已变化，跳过回退", zap.String("cycle_id", cycleID))
			return
		}
		r.logger.Error("回退轮次状态失败，等待巡检恢复", zap.String("cycle_id", cycleID), zap.Error(err))
		return
	}
	r.logger.Warn("分配失败，轮次已回退为 OPEN", zap.String("cycle_id", cycleID), zap.Error(cause))
}

func (p *subjectPlan) compute(policy allocator.Policy) error {
	sections := make([]allocator.Section, 0, len(p.subject.Sections))
	for _, sec := range p.subject.Sections {
		sections = append(sections, allocator.Section{ID: sec.SectionID, Capacity: sec.MaxCapacity})
	}

	prefs := make([]allocator.Preference, 0, len(p.prefs))
	for _, sp := range p.prefs {
		prefs = append(prefs, allocator.Preference{
			StudentID: sp.StudentID,
			SectionID: sp.PreferredSectionID,
			Order:     sp.PreferenceOrder,
		})
	}

	res, err := allocator.Allocate(prefs, sections, policy)
	var unalloc *allocator.UnallocatableStudentError
	if errors.As(err, &unalloc) {
		p.unallocated = unalloc.StudentIDs
		err = nil
	}
	if err != nil {
		return fmt.Errorf("课程 %s 分配失败: %w", p.subject.CourseCode, err)
	}
	p.result = res
	return nil
}

func (p *subjectPlan) rows(cycleID string) []model.FinalAssignment {
	bySection := make(map[string]*model.SectionCapacity, len(p.subject.Sections))
	for i := range p.subject.Sections {
		bySection[p.subject.Sections[i].SectionID] = &p.subject.Sections[i]
	}

	rows := make([]model.FinalAssignment, 0, len(p.result.Assignments))
	for _, a := range p.result.Assignments {
		sec := bySection[a.SectionID]
		rows = append(rows, model.FinalAssignment{
			CycleID:           cycleID,
			SubjectOfferingID: p.subject.SubjectOfferingID,
			StudentID:         a.StudentID,
			SectionCapacityID: sec.SectionCapacityID,
			SectionID:         a.SectionID,
			StaffID:           sec.StaffID,
			PreferenceOrder:   a.Order,
			IsFallback:        a.Fallback,
			IsOverfilled:      a.Overfilled,
		})
	}
	return rows
}
