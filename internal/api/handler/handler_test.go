package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"acadcore/cbcs/internal/dto"
	"acadcore/cbcs/internal/service"
	"acadcore/cbcs/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock CycleService ──

type mockCycleService struct {
	createResult   *dto.CycleResponse
	createErr      error
	getResult      *dto.CycleResponse
	getErr         error
	progressResult *dto.CycleProgressResponse
	progressErr    error
	finalizeResult *dto.FinalizeResponse
	finalizeErr    error

	lastCallerID string
}

func (m *mockCycleService) Create(_ context.Context, _ *dto.CreateCycleRequest, callerID string) (*dto.CycleResponse, error) {
	m.lastCallerID = callerID
	return m.createResult, m.createErr
}
func (m *mockCycleService) Get(_ context.Context, _ string) (*dto.CycleResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockCycleService) Progress(_ context.Context, _ string) (*dto.CycleProgressResponse, error) {
	return m.progressResult, m.progressErr
}
func (m *mockCycleService) Finalize(_ context.Context, _ string) (*dto.FinalizeResponse, error) {
	return m.finalizeResult, m.finalizeErr
}

// ── Mock PreferenceService ──

type mockPreferenceService struct {
	submitResult  *dto.SubmitPreferencesResponse
	submitErr     error
	choicesResult *dto.MyChoicesResponse
	choicesErr    error

	lastStudentID string
	lastCycleID   string
	lastReq       *dto.SubmitPreferencesRequest
}

func (m *mockPreferenceService) Submit(_ context.Context, cycleID, studentID string, req *dto.SubmitPreferencesRequest) (*dto.SubmitPreferencesResponse, error) {
	m.lastCycleID, m.lastStudentID, m.lastReq = cycleID, studentID, req
	return m.submitResult, m.submitErr
}
func (m *mockPreferenceService) GetMyChoices(_ context.Context, _, studentID string) (*dto.MyChoicesResponse, error) {
	m.lastStudentID = studentID
	return m.choicesResult, m.choicesErr
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

const (
	testCycleID   = "6f1c2b1e-0d6a-4a53-9a59-2a8f3d1c9b10"
	testSubjectID = "0b8c6f5e-3c1f-4f0a-8a3e-6c2d9e7b1a24"
	testSectionID = "9d3e1a7c-5b2f-4c8e-b1d0-7e6f5a4b3c21"
	testStudentID = "c2a9e7b3-1f4d-4a6c-8e5b-0d9f3a2b1c47"
)

// withAuth 模拟 JWT 中间件注入身份
func withAuth(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Next()
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func newCycleRouter(h *CycleHandler, userID string) *gin.Engine {
	r := gin.New()
	g := r.Group("/cycles", withAuth(userID, "student"))
	g.POST("", h.CreateCycle)
	g.GET("/:id", h.GetCycle)
	g.GET("/:id/progress", h.GetProgress)
	g.POST("/:id/submit", h.SubmitPreferences)
	g.GET("/:id/choices/me", h.GetMyChoices)
	g.POST("/:id/finalize", h.Finalize)
	return r
}

func validSubmitBody() dto.SubmitPreferencesRequest {
	return dto.SubmitPreferencesRequest{Selections: []dto.SelectionRequest{{
		SubjectOfferingID:  testSubjectID,
		PreferredSectionID: testSectionID,
	}}}
}

// ═══════════════════════════════════════════════════════════
// SubmitPreferences
// ═══════════════════════════════════════════════════════════

func TestCycleHandler_Submit_Success(t *testing.T) {
	prefSvc := &mockPreferenceService{submitResult: &dto.SubmitPreferencesResponse{CycleID: testCycleID, StudentID: testStudentID, Count: 1}}
	h := NewCycleHandler(&mockCycleService{}, prefSvc)
	r := newCycleRouter(h, testStudentID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/cycles/"+testCycleID+"/submit", jsonBody(validSubmitBody()))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if prefSvc.lastStudentID != testStudentID {
		t.Errorf("学生ID应取自 Token，实际 %s", prefSvc.lastStudentID)
	}
	if prefSvc.lastCycleID != testCycleID {
		t.Errorf("轮次ID应取自路径，实际 %s", prefSvc.lastCycleID)
	}
	if len(prefSvc.lastReq.Selections) != 1 {
		t.Errorf("期望 1 条选择，实际 %d", len(prefSvc.lastReq.Selections))
	}
}

func TestCycleHandler_Submit_BadJSON(t *testing.T) {
	h := NewCycleHandler(&mockCycleService{}, &mockPreferenceService{})
	r := newCycleRouter(h, testStudentID)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/cycles/"+testCycleID+"/submit", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 10001 {
		t.Errorf("expected code 10001, got %d", resp.Code)
	}
}

func TestCycleHandler_Submit_NonUUIDSection(t *testing.T) {
	h := NewCycleHandler(&mockCycleService{}, &mockPreferenceService{})
	r := newCycleRouter(h, testStudentID)

	body := validSubmitBody()
	body.Selections[0].PreferredSectionID = "section-a"

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/cycles/"+testCycleID+"/submit", jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestCycleHandler_Submit_Unauthenticated(t *testing.T) {
	h := NewCycleHandler(&mockCycleService{}, &mockPreferenceService{})
	r := gin.New()
	r.POST("/cycles/:id/submit", h.SubmitPreferences)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/cycles/"+testCycleID+"/submit", jsonBody(validSubmitBody()))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestCycleHandler_Submit_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"Validation", fmt.Errorf("%w: 课程重复", service.ErrValidation), 400, 14001},
		{"Duplicate", service.ErrAlreadySubmitted, 400, 14002},
		{"Finalized", service.ErrCycleAlreadyFinalized, 400, 14003},
		{"Finalizing", service.ErrCycleFinalizing, 400, 14004},
		{"NotFound", service.ErrCycleNotFound, 404, 14005},
		{"InternalError", errors.New("unknown"), 500, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCycleHandler(&mockCycleService{}, &mockPreferenceService{submitErr: tt.err})
			r := newCycleRouter(h, testStudentID)

			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/cycles/"+testCycleID+"/submit", jsonBody(validSubmitBody()))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			resp := parseResponse(w)
			if resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// Finalize / Get / Progress / Create
// ═══════════════════════════════════════════════════════════

func TestCycleHandler_Finalize_IdempotentResponse(t *testing.T) {
	for _, triggered := range []bool{true, false} {
		cycleSvc := &mockCycleService{finalizeResult: &dto.FinalizeResponse{Triggered: triggered, State: "FINALIZING"}}
		h := NewCycleHandler(cycleSvc, &mockPreferenceService{})
		r := newCycleRouter(h, "admin-1")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/cycles/"+testCycleID+"/finalize", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var body struct {
			Data dto.FinalizeResponse `json:"data"`
		}
		json.Unmarshal(w.Body.Bytes(), &body)
		if body.Data.Triggered != triggered {
			t.Errorf("expected triggered=%v, got %v", triggered, body.Data.Triggered)
		}
	}
}

func TestCycleHandler_Finalize_NotFound(t *testing.T) {
	h := NewCycleHandler(&mockCycleService{finalizeErr: service.ErrCycleNotFound}, &mockPreferenceService{})
	r := newCycleRouter(h, "admin-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/cycles/"+testCycleID+"/finalize", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestCycleHandler_GetCycle(t *testing.T) {
	cycleSvc := &mockCycleService{getResult: &dto.CycleResponse{ID: testCycleID, State: "COMPLETE"}}
	h := NewCycleHandler(cycleSvc, &mockPreferenceService{})
	r := newCycleRouter(h, testStudentID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/cycles/"+testCycleID, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}

	cycleSvc.getErr = service.ErrCycleNotFound
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/cycles/"+testCycleID, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestCycleHandler_GetProgress(t *testing.T) {
	cycleSvc := &mockCycleService{progressResult: &dto.CycleProgressResponse{ID: testCycleID, Submitted: 3, ExpectedTotal: 60}}
	h := NewCycleHandler(cycleSvc, &mockPreferenceService{})
	r := newCycleRouter(h, "admin-1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/cycles/"+testCycleID+"/progress", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestCycleHandler_GetMyChoices(t *testing.T) {
	prefSvc := &mockPreferenceService{choicesResult: &dto.MyChoicesResponse{CycleID: testCycleID, State: "OPEN"}}
	h := NewCycleHandler(&mockCycleService{}, prefSvc)
	r := newCycleRouter(h, testStudentID)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/cycles/"+testCycleID+"/choices/me", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if prefSvc.lastStudentID != testStudentID {
		t.Errorf("学生ID应取自 Token，实际 %s", prefSvc.lastStudentID)
	}
}

func TestCycleHandler_CreateCycle(t *testing.T) {
	cycleSvc := &mockCycleService{createResult: &dto.CycleResponse{ID: testCycleID, State: "OPEN"}}
	h := NewCycleHandler(cycleSvc, &mockPreferenceService{})
	r := newCycleRouter(h, "admin-1")

	body := dto.CreateCycleRequest{
		Name:          "CSE 2026 Sem 5",
		BatchID:       testCycleID,
		DepartmentID:  testCycleID,
		SemesterID:    testCycleID,
		ExpectedTotal: 60,
		Subjects: []dto.CreateSubjectRequest{{
			CourseCode: "CS-E1",
			Title:      "Elective I",
			Sections: []dto.CreateSectionRequest{
				{SectionID: testSectionID, StaffID: testStudentID, MaxCapacity: 60},
			},
		}},
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/cycles", jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if cycleSvc.lastCallerID != "admin-1" {
		t.Errorf("创建人应取自 Token，实际 %s", cycleSvc.lastCallerID)
	}

	// 业务校验失败
	cycleSvc.createErr = fmt.Errorf("%w: 课程重复", service.ErrCycleInvalid)
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/cycles", jsonBody(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if resp := parseResponse(w); w.Code != http.StatusBadRequest || resp.Code != 14006 {
		t.Errorf("expected 400/14006, got %d/%d", w.Code, resp.Code)
	}
}
