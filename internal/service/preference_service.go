package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"acadcore/cbcs/internal/dto"
	"acadcore/cbcs/internal/model"
	"acadcore/cbcs/internal/repository"
	"acadcore/cbcs/pkg/metrics"
)

// PreferenceService 学生志愿业务接口
type PreferenceService interface {
	Submit(ctx context.Context, cycleID, studentID string, req *dto.SubmitPreferencesRequest) (*dto.SubmitPreferencesResponse, error)
	GetMyChoices(ctx context.Context, cycleID, studentID string) (*dto.MyChoicesResponse, error)
}

type preferenceService struct {
	repo        *repository.Repository
	coordinator CycleCoordinator
	logger      *zap.Logger
}

// NewPreferenceService 创建 PreferenceService 实例
func NewPreferenceService(repo *repository.Repository, coordinator CycleCoordinator, logger *zap.Logger) PreferenceService {
	return &preferenceService{repo: repo, coordinator: coordinator, logger: logger}
}

// ────────────────────── Submit ──────────────────────

// Submit 校验并在单个事务内写入学生的全部志愿，成功后检查是否达到触发条件
// 本方法不执行分配
func (s *preferenceService) Submit(ctx context.Context, cycleID, studentID string, req *dto.SubmitPreferencesRequest) (*dto.SubmitPreferencesResponse, error) {
	cycle, err := s.repo.Cycle.GetByID(ctx, cycleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCycleNotFound
		}
		s.logger.Error("查询分配轮次失败", zap.String("cycle_id", cycleID), zap.Error(err))
		return nil, err
	}
	if err := stateAcceptsSubmission(cycle.State); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("closed").Inc()
		return nil, err
	}

	subjects, err := s.repo.Subject.ListByCycle(ctx, cycleID)
	if err != nil {
		s.logger.Error("查询轮次课程失败", zap.String("cycle_id", cycleID), zap.Error(err))
		return nil, err
	}

	prefs, err := buildPreferences(cycleID, studentID, req.Selections, subjects)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if err := s.persist(ctx, cycleID, studentID, prefs); err != nil {
		switch {
		case errors.Is(err, ErrAlreadySubmitted):
			metrics.SubmissionsTotal.WithLabelValues("duplicate").Inc()
		case errors.Is(err, ErrCycleAlreadyFinalized), errors.Is(err, ErrCycleFinalizing):
			metrics.SubmissionsTotal.WithLabelValues("closed").Inc()
		default:
			metrics.SubmissionsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	metrics.SubmissionsTotal.WithLabelValues("ok").Inc()

	s.logger.Info("志愿已提交",
		zap.String("cycle_id", cycleID),
		zap.String("student_id", studentID),
		zap.Int("count", len(prefs)))

	// 触发检查失败不影响已提交的志愿；请求取消也不应中断检查
	if _, err := s.coordinator.CheckAndMaybeTrigger(context.WithoutCancel(ctx), cycleID); err != nil {
		s.logger.Error("提交后触发检查失败", zap.String("cycle_id", cycleID), zap.Error(err))
	}

	return &dto.SubmitPreferencesResponse{
		CycleID:   cycleID,
		StudentID: studentID,
		Count:     len(prefs),
	}, nil
}

// persist 锁定轮次行后复查状态与重复提交，再批量写入
func (s *preferenceService) persist(ctx context.Context, cycleID, studentID string, prefs []model.StudentPreference) error {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return err
	}
	committed := false
	defer func() {
		if !committed && tx != nil {
			tx.Rollback()
		}
	}()

	txRepo := s.repo.WithTx(tx)

	locked, err := txRepo.Cycle.GetForUpdate(ctx, cycleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCycleNotFound
		}
		s.logger.Error("锁定分配轮次失败", zap.String("cycle_id", cycleID), zap.Error(err))
		return err
	}
	if err := stateAcceptsSubmission(locked.State); err != nil {
		return err
	}

	existing, err := txRepo.Preference.CountByStudent(ctx, cycleID, studentID)
	if err != nil {
		s.logger.Error("查询已有志愿失败", zap.String("student_id", studentID), zap.Error(err))
		return err
	}
	if existing > 0 {
		return ErrAlreadySubmitted
	}

	if err := txRepo.Preference.BatchCreate(ctx, prefs); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadySubmitted
		}
		s.logger.Error("写入志愿失败", zap.String("student_id", studentID), zap.Error(err))
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return err
		}
	}
	committed = true
	return nil
}

func stateAcceptsSubmission(state string) error {
	switch state {
	case model.CycleStateComplete:
		return ErrCycleAlreadyFinalized
	case model.CycleStateFinalizing:
		return ErrCycleFinalizing
	}
	return nil
}

// buildPreferences 校验选择并生成志愿行，preference_order 为数组下标 + 1
func buildPreferences(cycleID, studentID string, selections []dto.SelectionRequest, subjects []model.SubjectOffering) ([]model.StudentPreference, error) {
	if len(selections) == 0 {
		return nil, validationError("至少选择一门课程")
	}

	byID := make(map[string]*model.SubjectOffering, len(subjects))
	for i := range subjects {
		byID[subjects[i].SubjectOfferingID] = &subjects[i]
	}

	now := time.Now()
	seen := make(map[string]struct{}, len(selections))
	prefs := make([]model.StudentPreference, 0, len(selections))

	for i, sel := range selections {
		subject, ok := byID[sel.SubjectOfferingID]
		if !ok {
			return nil, validationError("课程 %s 不属于该轮次", sel.SubjectOfferingID)
		}
		if _, dup := seen[sel.SubjectOfferingID]; dup {
			return nil, validationError("课程 %s 重复选择", subject.CourseCode)
		}
		seen[sel.SubjectOfferingID] = struct{}{}

		var section *model.SectionCapacity
		for j := range subject.Sections {
			if subject.Sections[j].SectionID == sel.PreferredSectionID {
				section = &subject.Sections[j]
				break
			}
		}
		if section == nil {
			return nil, validationError("班级 %s 不属于课程 %s", sel.PreferredSectionID, subject.CourseCode)
		}

		staffID := sel.PreferredStaffID
		if staffID == "" {
			staffID = section.StaffID
		} else if staffID != section.StaffID {
			return nil, validationError("教师 %s 不是课程 %s 班级 %s 的任课教师", staffID, subject.CourseCode, sel.PreferredSectionID)
		}

		prefs = append(prefs, model.StudentPreference{
			CycleID:            cycleID,
			StudentID:          studentID,
			SubjectOfferingID:  sel.SubjectOfferingID,
			PreferredSectionID: sel.PreferredSectionID,
			PreferredStaffID:   staffID,
			PreferenceOrder:    i + 1,
			SubmittedAt:        now,
		})
	}

	return prefs, nil
}

// ────────────────────── GetMyChoices ──────────────────────

func (s *preferenceService) GetMyChoices(ctx context.Context, cycleID, studentID string) (*dto.MyChoicesResponse, error) {
	cycle, err := s.repo.Cycle.GetByID(ctx, cycleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCycleNotFound
		}
		s.logger.Error("查询分配轮次失败", zap.String("cycle_id", cycleID), zap.Error(err))
		return nil, err
	}

	prefs, err := s.repo.Preference.ListByStudent(ctx, cycleID, studentID)
	if err != nil {
		s.logger.Error("查询学生志愿失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	resp := &dto.MyChoicesResponse{
		CycleID: cycleID,
		State:   cycle.State,
		Choices: make([]dto.ChoiceResponse, 0, len(prefs)),
	}
	for _, p := range prefs {
		resp.Choices = append(resp.Choices, dto.ChoiceResponse{
			SubjectOfferingID:  p.SubjectOfferingID,
			PreferredSectionID: p.PreferredSectionID,
			PreferredStaffID:   p.PreferredStaffID,
			PreferenceOrder:    p.PreferenceOrder,
			SubmittedAt:        p.SubmittedAt.Format(time.RFC3339),
		})
	}

	if cycle.State == model.CycleStateComplete {
		assignments, err := s.repo.Assignment.ListByStudent(ctx, cycleID, studentID)
		if err != nil {
			s.logger.Error("查询学生分配结果失败", zap.String("student_id", studentID), zap.Error(err))
			return nil, err
		}
		resp.Assignments = toAssignmentResponses(assignments)
	}

	return resp, nil
}
