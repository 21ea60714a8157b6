package service

import (
	"errors"
	"fmt"
)

// ── 分配轮次模块业务错误 ──

var (
	ErrValidation            = errors.New("志愿校验失败")
	ErrAlreadySubmitted      = errors.New("已提交过志愿，不允许重复提交")
	ErrCycleAlreadyFinalized = errors.New("分配轮次已完成，不再接受提交")
	ErrCycleFinalizing       = errors.New("分配轮次正在分配中，暂不接受提交")
	ErrCycleNotFound         = errors.New("分配轮次不存在")
	ErrCycleInvalid          = errors.New("分配轮次定义无效")
)

// validationError 携带具体原因的校验错误，errors.Is(err, ErrValidation) 为真
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// AllocationFailure 一次分配事务失败，事务已整体回滚
type AllocationFailure struct {
	CycleID string
	Err     error
}

func (e *AllocationFailure) Error() string {
	return fmt.Sprintf("轮次 %s 分配失败: %v", e.CycleID, e.Err)
}

func (e *AllocationFailure) Unwrap() error { return e.Err }
