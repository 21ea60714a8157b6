package repository

import (
	"context"

	"gorm.io/gorm"

	"acadcore/cbcs/internal/model"
)

// PreferenceRepository 学生志愿数据访问接口
type PreferenceRepository interface {
	BatchCreate(ctx context.Context, prefs []model.StudentPreference) error
	CountByStudent(ctx context.Context, cycleID, studentID string) (int64, error)
	CountDistinctSubmitters(ctx context.Context, cycleID string) (int64, error)
	ListBySubject(ctx context.Context, subjectOfferingID string) ([]model.StudentPreference, error)
	ListByStudent(ctx context.Context, cycleID, studentID string) ([]model.StudentPreference, error)
}

type preferenceRepo struct {
	db *gorm.DB
}

// NewPreferenceRepo 创建 PreferenceRepository 实例
func NewPreferenceRepo(db *gorm.DB) PreferenceRepository {
	return &preferenceRepo{db: db}
}

// BatchCreate 一次写入学生的全部志愿
// 唯一键冲突以 gorm.ErrDuplicatedKey 返回（需开启 TranslateError）
func (r *preferenceRepo) BatchCreate(ctx context.Context, prefs []model.StudentPreference) error {
	if len(prefs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&prefs).Error
}

func (r *preferenceRepo) CountByStudent(ctx context.Context, cycleID, studentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.StudentPreference{}).
		Where("cycle_id = ? AND student_id = ?", cycleID, studentID).
		Count(&count).Error
	return count, err
}

// CountDistinctSubmitters 已提交志愿的学生人数
func (r *preferenceRepo) CountDistinctSubmitters(ctx context.Context, cycleID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.StudentPreference{}).
		Where("cycle_id = ?", cycleID).
		Distinct("student_id").
		Count(&count).Error
	return count, err
}

// ListBySubject 按处理顺序返回某课程的全部志愿
// preference_order 相同时以提交时间、主键保证顺序稳定
func (r *preferenceRepo) ListBySubject(ctx context.Context, subjectOfferingID string) ([]model.StudentPreference, error) {
	var prefs []model.StudentPreference
	err := r.db.WithContext(ctx).
		Where("subject_offering_id = ?", subjectOfferingID).
		Order("preference_order ASC, submitted_at ASC, preference_id ASC").
		Find(&prefs).Error
	return prefs, err
}

func (r *preferenceRepo) ListByStudent(ctx context.Context, cycleID, studentID string) ([]model.StudentPreference, error) {
	var prefs []model.StudentPreference
	err := r.db.WithContext(ctx).
		Where("cycle_id = ? AND student_id = ?", cycleID, studentID).
		Order("preference_order ASC").
		Find(&prefs).Error
	return prefs, err
}
