package handler

import (
	"github.com/gin-gonic/gin"

	"acadcore/cbcs/pkg/response"
)

// MustGetUserID 从 Gin 上下文中提取 JWT 中间件注入的 user_id（学生即学号对应的用户ID）。
// 未注入时写入 401 响应并返回 false，调用方应直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}
