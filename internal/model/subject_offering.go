package model

import "gorm.io/gorm"

// SubjectOffering 轮次内的一门选修课 — 对应 subject_offerings
type SubjectOffering struct {
	SubjectOfferingID string `gorm:"type:uuid;primaryKey"            json:"subject_offering_id"`
	CycleID           string `gorm:"type:uuid;not null;index"        json:"cycle_id"`
	CourseCode        string `gorm:"type:varchar(50);not null"       json:"course_code"`
	Title             string `gorm:"type:varchar(200);not null"      json:"title"`
	Credits           int    `gorm:"not null;default:0"              json:"credits"`
	Bucket            string `gorm:"type:varchar(50);not null;default:''" json:"bucket"` // 选修组，如 "PE-1"
	SortOrder         int    `gorm:"not null;default:0"              json:"sort_order"`
	BaseModel

	// 关联
	Sections []SectionCapacity `gorm:"foreignKey:SubjectOfferingID" json:"sections,omitempty"`
}

// TableName 指定表名
func (SubjectOffering) TableName() string { return "subject_offerings" }

func (s *SubjectOffering) BeforeCreate(_ *gorm.DB) error {
	newID(&s.SubjectOfferingID)
	return nil
}

// SectionCapacity 课程班级容量（班级 × 任课教师）— 对应 section_capacities
type SectionCapacity struct {
	SectionCapacityID string `gorm:"type:uuid;primaryKey"                                   json:"section_capacity_id"`
	SubjectOfferingID string `gorm:"type:uuid;not null;uniqueIndex:idx_section_capacity_unique" json:"subject_offering_id"`
	SectionID         string `gorm:"type:uuid;not null;uniqueIndex:idx_section_capacity_unique" json:"section_id"`
	SectionName       string `gorm:"type:varchar(100);not null;default:''"                  json:"section_name"`
	StaffID           string `gorm:"type:uuid;not null"                                     json:"staff_id"`
	StaffName         string `gorm:"type:varchar(100);not null;default:''"                  json:"staff_name"`
	MaxCapacity       int    `gorm:"not null"                                               json:"max_capacity"`
	SortOrder         int    `gorm:"not null;default:0"                                     json:"sort_order"` // 定义顺序，兜底分配并列时靠前者优先
	BaseModel
}

// TableName 指定表名
func (SectionCapacity) TableName() string { return "section_capacities" }

func (s *SectionCapacity) BeforeCreate(_ *gorm.DB) error {
	newID(&s.SectionCapacityID)
	return nil
}
