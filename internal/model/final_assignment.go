package model

import (
	"time"

	"gorm.io/gorm"
)

// FinalAssignment 最终分班结果 — 对应 final_assignments
// 每次分配按课程整体删除后重建
type FinalAssignment struct {
	FinalAssignmentID string    `gorm:"type:uuid;primaryKey"                                       json:"final_assignment_id"`
	CycleID           string    `gorm:"type:uuid;not null;index"                                   json:"cycle_id"`
	SubjectOfferingID string    `gorm:"type:uuid;not null;uniqueIndex:idx_final_assignment_unique" json:"subject_offering_id"`
	StudentID         string    `gorm:"type:uuid;not null;uniqueIndex:idx_final_assignment_unique" json:"student_id"`
	SectionCapacityID string    `gorm:"type:uuid;not null"                                         json:"section_capacity_id"`
	SectionID         string    `gorm:"type:uuid;not null"                                         json:"section_id"`
	StaffID           string    `gorm:"type:uuid;not null"                                         json:"staff_id"`
	PreferenceOrder   int       `gorm:"not null"                                                   json:"preference_order"`
	IsFallback        bool      `gorm:"not null;default:false"                                     json:"is_fallback"`
	IsOverfilled      bool      `gorm:"not null;default:false"                                     json:"is_overfilled"`
	CreatedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                         json:"created_at"`
}

// TableName 指定表名
func (FinalAssignment) TableName() string { return "final_assignments" }

func (a *FinalAssignment) BeforeCreate(_ *gorm.DB) error {
	newID(&a.FinalAssignmentID)
	return nil
}
