package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Cycle      CycleRepository
	Subject    SubjectRepository
	Preference PreferenceRepository
	Assignment AssignmentRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		Cycle:      NewCycleRepo(db),
		Subject:    NewSubjectRepo(db),
		Preference: NewPreferenceRepo(db),
		Assignment: NewAssignmentRepo(db),
	}
}

// BeginTx 开启事务
// 聚合未绑定数据库连接时（单元测试中的 mock 聚合）返回 nil 事务
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务连接的 Repository 聚合
// 事务内只能使用返回的聚合，否则在单连接池下会相互等待
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}
