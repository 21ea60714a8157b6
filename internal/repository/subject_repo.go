package repository

import (
	"context"

	"gorm.io/gorm"

	"acadcore/cbcs/internal/model"
)

// SubjectRepository 课程与班级容量数据访问接口（分配期间只读）
type SubjectRepository interface {
	ListByCycle(ctx context.Context, cycleID string) ([]model.SubjectOffering, error)
}

type subjectRepo struct {
	db *gorm.DB
}

// NewSubjectRepo 创建 SubjectRepository 实例
func NewSubjectRepo(db *gorm.DB) SubjectRepository {
	return &subjectRepo{db: db}
}

// ListByCycle 查询轮次下全部课程，班级按定义顺序预加载
func (r *subjectRepo) ListByCycle(ctx context.Context, cycleID string) ([]model.SubjectOffering, error) {
	var subjects []model.SubjectOffering
	err := r.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("cycle_id = ?", cycleID).
		Order("sort_order ASC, course_code ASC").
		Find(&subjects).Error
	return subjects, err
}
