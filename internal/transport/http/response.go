package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope 统一响应结构
//
// 失败时只有 success 与 message；成功时按接口携带 id、count 或 data。
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"` // 提示信息
	ID      string      `json:"id,omitempty"`      // 新建记录的 ID
	Count   *int        `json:"count,omitempty"`   // 列表条数
	Data    interface{} `json:"data,omitempty"`    // 数据载荷
}

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    data,
	})
}

// SuccessWithMsg 成功响应（自定义消息）
func SuccessWithMsg(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Message: msg,
	})
}

// SuccessList 列表响应，count 始终输出（包括 0）
func SuccessList(c *gin.Context, count int, data interface{}) {
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Count:   &count,
		Data:    data,
	})
}

// Created 创建成功响应（201）
func Created(c *gin.Context, msg string, id string) {
	c.JSON(http.StatusCreated, Envelope{
		Success: true,
		Message: msg,
		ID:      id,
	})
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, msg)
}

// NotFound 资源不存在错误（404）
func NotFound(c *gin.Context, msg string) {
	Error(c, http.StatusNotFound, msg)
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context, msg string) {
	Error(c, http.StatusInternalServerError, msg)
}

// Error 通用错误响应
func Error(c *gin.Context, httpCode int, msg string) {
	c.JSON(httpCode, Envelope{
		Success: false,
		Message: msg,
	})
}
