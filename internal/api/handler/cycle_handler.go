package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"acadcore/cbcs/internal/dto"
	"acadcore/cbcs/internal/service"
	"acadcore/cbcs/pkg/response"
)

// CycleHandler 选修课分配轮次 HTTP 处理器
type CycleHandler struct {
	cycleSvc service.CycleService
	prefSvc  service.PreferenceService
}

// NewCycleHandler 创建 CycleHandler
func NewCycleHandler(cycleSvc service.CycleService, prefSvc service.PreferenceService) *CycleHandler {
	return &CycleHandler{cycleSvc: cycleSvc, prefSvc: prefSvc}
}

// CreateCycle 创建分配轮次（含课程与班级容量）
// POST /api/v1/cycles
func (h *CycleHandler) CreateCycle(c *gin.Context) {
	var req dto.CreateCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	cycle, err := h.cycleSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleCycleError(c, err)
		return
	}

	response.Created(c, cycle)
}

// GetCycle 获取轮次详情；COMPLETE 后附带分配结果
// GET /api/v1/cycles/:id
func (h *CycleHandler) GetCycle(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "轮次ID不能为空")
		return
	}

	cycle, err := h.cycleSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.handleCycleError(c, err)
		return
	}

	response.OK(c, cycle)
}

// GetProgress 获取提交进度
// GET /api/v1/cycles/:id/progress
func (h *CycleHandler) GetProgress(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "轮次ID不能为空")
		return
	}

	progress, err := h.cycleSvc.Progress(c.Request.Context(), id)
	if err != nil {
		h.handleCycleError(c, err)
		return
	}

	response.OK(c, progress)
}

// SubmitPreferences 学生提交志愿
// POST /api/v1/cycles/:id/submit
func (h *CycleHandler) SubmitPreferences(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "轮次ID不能为空")
		return
	}

	var req dto.SubmitPreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
		return
	}

	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.prefSvc.Submit(c.Request.Context(), id, studentID, &req)
	if err != nil {
		h.handleCycleError(c, err)
		return
	}

	response.Created(c, result)
}

// GetMyChoices 获取当前学生的志愿与分配结果
// GET /api/v1/cycles/:id/choices/me
func (h *CycleHandler) GetMyChoices(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "轮次ID不能为空")
		return
	}

	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.prefSvc.GetMyChoices(c.Request.Context(), id, studentID)
	if err != nil {
		h.handleCycleError(c, err)
		return
	}

	response.OK(c, result)
}

// Finalize 管理员手动触发分配，幂等
// POST /api/v1/cycles/:id/finalize
func (h *CycleHandler) Finalize(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "轮次ID不能为空")
		return
	}

	result, err := h.cycleSvc.Finalize(c.Request.Context(), id)
	if err != nil {
		h.handleCycleError(c, err)
		return
	}

	response.OK(c, result)
}

// handleCycleError 统一处理分配轮次模块业务错误
func (h *CycleHandler) handleCycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.ErrorWithDetails(c, http.StatusBadRequest, 14001, "志愿校验失败", err.Error())
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.BadRequest(c, 14002, "已提交过志愿，不允许重复提交")
	case errors.Is(err, service.ErrCycleAlreadyFinalized):
		response.BadRequest(c, 14003, "分配已完成，不再接受提交")
	case errors.Is(err, service.ErrCycleFinalizing):
		response.BadRequest(c, 14004, "正在分配中，暂不接受提交")
	case errors.Is(err, service.ErrCycleNotFound):
		response.NotFound(c, 14005, "分配轮次不存在")
	case errors.Is(err, service.ErrCycleInvalid):
		response.ErrorWithDetails(c, http.StatusBadRequest, 14006, "分配轮次定义无效", err.Error())
	default:
		response.InternalError(c)
	}
}
