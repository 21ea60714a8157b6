package dto

// ── 志愿提交模块 DTO ──

// SubmitPreferencesRequest 学生提交志愿请求
// 数组顺序决定 preference_order（下标 + 1）
type SubmitPreferencesRequest struct {
	Selections []SelectionRequest `json:"selections" binding:"required,dive"`
}

// SelectionRequest 单门课程的志愿
type SelectionRequest struct {
	SubjectOfferingID  string `json:"subject_offering_id"  binding:"required,uuid"`
	PreferredSectionID string `json:"preferred_section_id" binding:"required,uuid"`
	PreferredStaffID   string `json:"preferred_staff_id"   binding:"omitempty,uuid"` // 为空时取班级任课教师
}

// SubmitPreferencesResponse 提交结果
type SubmitPreferencesResponse struct {
	CycleID   string `json:"cycle_id"`
	StudentID string `json:"student_id"`
	Count     int    `json:"count"`
}

// MyChoicesResponse 当前学生的志愿与（完成后的）分配结果
type MyChoicesResponse struct {
	CycleID     string               `json:"cycle_id"`
	State       string               `json:"state"`
	Choices     []ChoiceResponse     `json:"choices"`
	Assignments []AssignmentResponse `json:"assignments,omitempty"`
}

// ChoiceResponse 已提交的单条志愿
type ChoiceResponse struct {
	SubjectOfferingID  string `json:"subject_offering_id"`
	PreferredSectionID string `json:"preferred_section_id"`
	PreferredStaffID   string `json:"preferred_staff_id"`
	PreferenceOrder    int    `json:"preference_order"`
	SubmittedAt        string `json:"submitted_at"`
}
