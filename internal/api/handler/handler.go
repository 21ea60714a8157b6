package handler

import "acadcore/cbcs/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Cycle *CycleHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Cycle: NewCycleHandler(svc.Cycle, svc.Preference),
	}
}
