package errors

import "errors"

// ErrOptimisticLock 条件更新未命中：记录状态已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")
