package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"acadcore/cbcs/internal/allocator"
	"acadcore/cbcs/internal/dto"
	"acadcore/cbcs/internal/model"
	"acadcore/cbcs/internal/repository"
)

// CycleService 分配轮次业务接口
type CycleService interface {
	Create(ctx context.Context, req *dto.CreateCycleRequest, callerID string) (*dto.CycleResponse, error)
	Get(ctx context.Context, id string) (*dto.CycleResponse, error)
	Progress(ctx context.Context, id string) (*dto.CycleProgressResponse, error)
	Finalize(ctx context.Context, id string) (*dto.FinalizeResponse, error)
}

type cycleService struct {
	repo          *repository.Repository
	coordinator   CycleCoordinator
	defaultPolicy string
	logger        *zap.Logger
}

// NewCycleService 创建 CycleService 实例
func NewCycleService(repo *repository.Repository, coordinator CycleCoordinator, defaultPolicy string, logger *zap.Logger) CycleService {
	return &cycleService{repo: repo, coordinator: coordinator, defaultPolicy: defaultPolicy, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *cycleService) Create(ctx context.Context, req *dto.CreateCycleRequest, callerID string) (*dto.CycleResponse, error) {
	policyName := req.Policy
	if policyName == "" {
		policyName = s.defaultPolicy
	}
	policy, err := allocator.ParsePolicy(policyName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycleInvalid, err)
	}
	if req.ExpectedTotal <= 0 {
		return nil, fmt.Errorf("%w: expected_total 必须大于 0", ErrCycleInvalid)
	}
	if len(req.Subjects) == 0 {
		return nil, fmt.Errorf("%w: 至少包含一门课程", ErrCycleInvalid)
	}

	cycle := &model.AllocationCycle{
		Name:          req.Name,
		BatchID:       req.BatchID,
		DepartmentID:  req.DepartmentID,
		SemesterID:    req.SemesterID,
		ExpectedTotal: req.ExpectedTotal,
		State:         model.CycleStateOpen,
		Policy:        string(policy),
	}
	cycle.SetAudit(callerID)

	codes := make(map[string]struct{}, len(req.Subjects))
	for i, sr := range req.Subjects {
		if _, dup := codes[sr.CourseCode]; dup {
			return nil, fmt.Errorf("%w: 课程 %s 重复", ErrCycleInvalid, sr.CourseCode)
		}
		codes[sr.CourseCode] = struct{}{}
		if len(sr.Sections) == 0 {
			return nil, fmt.Errorf("%w: 课程 %s 没有班级", ErrCycleInvalid, sr.CourseCode)
		}

		subject := model.SubjectOffering{
			CourseCode: sr.CourseCode,
			Title:      sr.Title,
			Credits:    sr.Credits,
			Bucket:     sr.Bucket,
			SortOrder:  i,
		}
		subject.SetAudit(callerID)

		sectionIDs := make(map[string]struct{}, len(sr.Sections))
		for j, sec := range sr.Sections {
			if _, dup := sectionIDs[sec.SectionID]; dup {
				return nil, fmt.Errorf("%w: 课程 %s 的班级 %s 重复", ErrCycleInvalid, sr.CourseCode, sec.SectionID)
			}
			sectionIDs[sec.SectionID] = struct{}{}
			if sec.MaxCapacity <= 0 {
				return nil, fmt.Errorf("%w: 班级 %s 容量必须大于 0", ErrCycleInvalid, sec.SectionID)
			}

			capacity := model.SectionCapacity{
				SectionID:   sec.SectionID,
				SectionName: sec.SectionName,
				StaffID:     sec.StaffID,
				StaffName:   sec.StaffName,
				MaxCapacity: sec.MaxCapacity,
				SortOrder:   j,
			}
			capacity.SetAudit(callerID)
			subject.Sections = append(subject.Sections, capacity)
		}
		cycle.Subjects = append(cycle.Subjects, subject)
	}

	if err := s.repo.Cycle.Create(ctx, cycle); err != nil {
		s.logger.Error("创建分配轮次失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("分配轮次已创建",
		zap.String("cycle_id", cycle.CycleID),
		zap.Int("subjects", len(cycle.Subjects)),
		zap.Int("expected_total", cycle.ExpectedTotal),
		zap.String("policy", cycle.Policy))

	return toCycleResponse(cycle, nil), nil
}

// ────────────────────── Get ──────────────────────

func (s *cycleService) Get(ctx context.Context, id string) (*dto.CycleResponse, error) {
	cycle, err := s.repo.Cycle.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCycleNotFound
		}
		s.logger.Error("查询分配轮次失败", zap.String("cycle_id", id), zap.Error(err))
		return nil, err
	}

	// 分配结果只在 COMPLETE 后可见
	var assignments []model.FinalAssignment
	if cycle.State == model.CycleStateComplete {
		assignments, err = s.repo.Assignment.ListByCycle(ctx, id)
		if err != nil {
			s.logger.Error("查询分配结果失败", zap.String("cycle_id", id), zap.Error(err))
			return nil, err
		}
	}

	return toCycleResponse(cycle, assignments), nil
}

// ────────────────────── Progress ──────────────────────

func (s *cycleService) Progress(ctx context.Context, id string) (*dto.CycleProgressResponse, error) {
	cycle, err := s.repo.Cycle.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCycleNotFound
		}
		s.logger.Error("查询分配轮次失败", zap.String("cycle_id", id), zap.Error(err))
		return nil, err
	}

	submitted, err := s.repo.Preference.CountDistinctSubmitters(ctx, id)
	if err != nil {
		s.logger.Error("统计提交人数失败", zap.String("cycle_id", id), zap.Error(err))
		return nil, err
	}

	return &dto.CycleProgressResponse{
		ID:            cycle.CycleID,
		State:         cycle.State,
		Submitted:     submitted,
		ExpectedTotal: cycle.ExpectedTotal,
	}, nil
}

// ────────────────────── Finalize ──────────────────────

// Finalize 管理员手动触发，幂等
func (s *cycleService) Finalize(ctx context.Context, id string) (*dto.FinalizeResponse, error) {
	return s.coordinator.TriggerManually(ctx, id)
}

// ── 转换 ──

func toCycleResponse(cycle *model.AllocationCycle, assignments []model.FinalAssignment) *dto.CycleResponse {
	assigned := make(map[string]int, len(assignments))
	for _, a := range assignments {
		assigned[a.SectionCapacityID]++
	}

	resp := &dto.CycleResponse{
		ID:            cycle.CycleID,
		Name:          cycle.Name,
		BatchID:       cycle.BatchID,
		DepartmentID:  cycle.DepartmentID,
		SemesterID:    cycle.SemesterID,
		ExpectedTotal: cycle.ExpectedTotal,
		State:         cycle.State,
		Policy:        cycle.Policy,
		RunCount:      cycle.RunCount,
		LastError:     cycle.LastError,
		FinalizingAt:  formatTime(cycle.FinalizingAt),
		CompletedAt:   formatTime(cycle.CompletedAt),
		CreatedAt:     cycle.CreatedAt.Format(time.RFC3339),
		Subjects:      make([]dto.SubjectResponse, 0, len(cycle.Subjects)),
	}

	for _, subj := range cycle.Subjects {
		sr := dto.SubjectResponse{
			ID:         subj.SubjectOfferingID,
			CourseCode: subj.CourseCode,
			Title:      subj.Title,
			Credits:    subj.Credits,
			Bucket:     subj.Bucket,
			Sections:   make([]dto.SectionResponse, 0, len(subj.Sections)),
		}
		for _, sec := range subj.Sections {
			sr.Sections = append(sr.Sections, dto.SectionResponse{
				ID:          sec.SectionCapacityID,
				SectionID:   sec.SectionID,
				SectionName: sec.SectionName,
				StaffID:     sec.StaffID,
				StaffName:   sec.StaffName,
				MaxCapacity: sec.MaxCapacity,
				Assigned:    assigned[sec.SectionCapacityID],
			})
		}
		resp.Subjects = append(resp.Subjects, sr)
	}

	if len(assignments) > 0 {
		resp.Assignments = toAssignmentResponses(assignments)
	}
	return resp
}

func toAssignmentResponses(assignments []model.FinalAssignment) []dto.AssignmentResponse {
	out := make([]dto.AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, dto.AssignmentResponse{
			SubjectOfferingID: a.SubjectOfferingID,
			StudentID:         a.StudentID,
			SectionID:         a.SectionID,
			StaffID:           a.StaffID,
			PreferenceOrder:   a.PreferenceOrder,
			IsFallback:        a.IsFallback,
			IsOverfilled:      a.IsOverfilled,
		})
	}
	return out
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
