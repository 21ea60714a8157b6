package dto

// ── 分配轮次模块 DTO ──

// CreateCycleRequest 创建分配轮次请求（课程与班级容量一并提交）
type CreateCycleRequest struct {
	Name          string                 `json:"name"           binding:"required,min=2,max=200"`
	BatchID       string                 `json:"batch_id"       binding:"required,uuid"`
	DepartmentID  string                 `json:"department_id"  binding:"required,uuid"`
	SemesterID    string                 `json:"semester_id"    binding:"required,uuid"`
	ExpectedTotal int                    `json:"expected_total" binding:"required,min=1"`
	Policy        string                 `json:"policy"         binding:"omitempty,oneof=first_come strict"`
	Subjects      []CreateSubjectRequest `json:"subjects"       binding:"required,min=1,dive"`
}

// CreateSubjectRequest 轮次内的一门选修课
type CreateSubjectRequest struct {
	CourseCode string                 `json:"course_code" binding:"required,max=50"`
	Title      string                 `json:"title"       binding:"required,max=200"`
	Credits    int                    `json:"credits"     binding:"omitempty,min=0"`
	Bucket     string                 `json:"bucket"      binding:"omitempty,max=50"`
	Sections   []CreateSectionRequest `json:"sections"    binding:"required,min=1,dive"`
}

// CreateSectionRequest 班级容量定义，数组顺序即兜底分配的并列顺序
type CreateSectionRequest struct {
	SectionID   string `json:"section_id"   binding:"required,uuid"`
	SectionName string `json:"section_name" binding:"omitempty,max=100"`
	StaffID     string `json:"staff_id"     binding:"required,uuid"`
	StaffName   string `json:"staff_name"   binding:"omitempty,max=100"`
	MaxCapacity int    `json:"max_capacity" binding:"required,min=1"`
}

// CycleResponse 轮次信息响应
type CycleResponse struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	BatchID       string            `json:"batch_id"`
	DepartmentID  string            `json:"department_id"`
	SemesterID    string            `json:"semester_id"`
	ExpectedTotal int               `json:"expected_total"`
	State         string            `json:"state"`
	Policy        string            `json:"policy"`
	RunCount      int               `json:"run_count"`
	LastError     string            `json:"last_error,omitempty"`
	FinalizingAt  string            `json:"finalizing_at,omitempty"`
	CompletedAt   string            `json:"completed_at,omitempty"`
	CreatedAt     string            `json:"created_at"`
	Subjects      []SubjectResponse `json:"subjects"`
	// 仅 COMPLETE 后返回
	Assignments []AssignmentResponse `json:"assignments,omitempty"`
}

// SubjectResponse 课程信息
type SubjectResponse struct {
	ID         string            `json:"id"`
	CourseCode string            `json:"course_code"`
	Title      string            `json:"title"`
	Credits    int               `json:"credits"`
	Bucket     string            `json:"bucket,omitempty"`
	Sections   []SectionResponse `json:"sections"`
}

// SectionResponse 班级容量信息；Assigned 仅在 COMPLETE 后有意义
type SectionResponse struct {
	ID          string `json:"id"`
	SectionID   string `json:"section_id"`
	SectionName string `json:"section_name,omitempty"`
	StaffID     string `json:"staff_id"`
	StaffName   string `json:"staff_name,omitempty"`
	MaxCapacity int    `json:"max_capacity"`
	Assigned    int    `json:"assigned"`
}

// AssignmentResponse 单条分配结果
type AssignmentResponse struct {
	SubjectOfferingID string `json:"subject_offering_id"`
	StudentID         string `json:"student_id"`
	SectionID         string `json:"section_id"`
	StaffID           string `json:"staff_id"`
	PreferenceOrder   int    `json:"preference_order"`
	IsFallback        bool   `json:"is_fallback"`
	IsOverfilled      bool   `json:"is_overfilled"`
}

// CycleProgressResponse 提交进度
type CycleProgressResponse struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	Submitted     int64  `json:"submitted"`
	ExpectedTotal int    `json:"expected_total"`
}

// FinalizeResponse 手动触发结果；triggered=false 表示已在分配中或已完成
type FinalizeResponse struct {
	Triggered bool   `json:"triggered"`
	State     string `json:"state"`
}
