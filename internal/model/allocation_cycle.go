package model

import (
	"time"

	"gorm.io/gorm"
)

// 分配轮次状态
const (
	CycleStateOpen       = "OPEN"
	CycleStateFinalizing = "FINALIZING"
	CycleStateComplete   = "COMPLETE"
)

// AllocationCycle 选课分配轮次 — 对应 allocation_cycles
// 一个 (batch, department, semester) 的一轮选修课分配
type AllocationCycle struct {
	CycleID       string     `gorm:"type:uuid;primaryKey"                         json:"cycle_id"`
	Name          string     `gorm:"type:varchar(200);not null"                   json:"name"`
	BatchID       string     `gorm:"type:uuid;not null"                           json:"batch_id"`
	DepartmentID  string     `gorm:"type:uuid;not null"                           json:"department_id"`
	SemesterID    string     `gorm:"type:uuid;not null"                           json:"semester_id"`
	ExpectedTotal int        `gorm:"not null"                                     json:"expected_total"`
	State         string     `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"state"` // OPEN | FINALIZING | COMPLETE
	Policy        string     `gorm:"type:varchar(20);not null;default:'first_come'" json:"policy"` // first_come | strict
	FinalizingAt  *time.Time `json:"finalizing_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	RunCount      int        `gorm:"not null;default:0"                           json:"run_count"`
	LastError     string     `gorm:"type:text;not null;default:''"                json:"last_error,omitempty"`
	BaseModel

	// 关联
	Subjects []SubjectOffering `gorm:"foreignKey:CycleID" json:"subjects,omitempty"`
}

// TableName 指定表名
func (AllocationCycle) TableName() string { return "allocation_cycles" }

func (c *AllocationCycle) BeforeCreate(_ *gorm.DB) error {
	newID(&c.CycleID)
	return nil
}
