package repository

import (
	"context"

	"gorm.io/gorm"

	"acadcore/cbcs/internal/model"
)

// AssignmentRepository 最终分班结果数据访问接口
type AssignmentRepository interface {
	DeleteBySubject(ctx context.Context, subjectOfferingID string) error
	BatchCreate(ctx context.Context, assignments []model.FinalAssignment) error
	ListByCycle(ctx context.Context, cycleID string) ([]model.FinalAssignment, error)
	ListByStudent(ctx context.Context, cycleID, studentID string) ([]model.FinalAssignment, error)
}

type assignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo 创建 AssignmentRepository 实例
func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) DeleteBySubject(ctx context.Context, subjectOfferingID string) error {
	return r.db.WithContext(ctx).
		Where("subject_offering_id = ?", subjectOfferingID).
		Delete(&model.FinalAssignment{}).Error
}

func (r *assignmentRepo) BatchCreate(ctx context.Context, assignments []model.FinalAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&assignments, 500).Error
}

func (r *assignmentRepo) ListByCycle(ctx context.Context, cycleID string) ([]model.FinalAssignment, error) {
	var assignments []model.FinalAssignment
	err := r.db.WithContext(ctx).
		Where("cycle_id = ?", cycleID).
		Order("subject_offering_id ASC, preference_order ASC, student_id ASC").
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepo) ListByStudent(ctx context.Context, cycleID, studentID string) ([]model.FinalAssignment, error) {
	var assignments []model.FinalAssignment
	err := r.db.WithContext(ctx).
		Where("cycle_id = ? AND student_id = ?", cycleID, studentID).
		Find(&assignments).Error
	return assignments, err
}
