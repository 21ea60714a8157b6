package model

import (
	"time"

	"gorm.io/gorm"
)

// StudentPreference 学生志愿 — 对应 student_preferences
// 每个 (cycle, student, subject) 仅一行；PreferenceOrder 为提交列表中的下标+1，
// 分配时同时作为跨学生的处理优先级
type StudentPreference struct {
	PreferenceID       string    `gorm:"type:uuid;primaryKey"                                                   json:"preference_id"`
	CycleID            string    `gorm:"type:uuid;not null;uniqueIndex:idx_pref_unique,priority:1;index:idx_pref_cycle_student,priority:1" json:"cycle_id"`
	StudentID          string    `gorm:"type:uuid;not null;uniqueIndex:idx_pref_unique,priority:2;index:idx_pref_cycle_student,priority:2" json:"student_id"`
	SubjectOfferingID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_pref_unique,priority:3;index:idx_pref_subject_order,priority:1" json:"subject_offering_id"`
	PreferredSectionID string    `gorm:"type:uuid;not null"                                                     json:"preferred_section_id"`
	PreferredStaffID   string    `gorm:"type:uuid;not null"                                                     json:"preferred_staff_id"`
	PreferenceOrder    int       `gorm:"not null;index:idx_pref_subject_order,priority:2"                       json:"preference_order"`
	SubmittedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                                     json:"submitted_at"`
}

// TableName 指定表名
func (StudentPreference) TableName() string { return "student_preferences" }

func (p *StudentPreference) BeforeCreate(_ *gorm.DB) error {
	newID(&p.PreferenceID)
	return nil
}
