package ginx

import (
	"github.com/gin-gonic/gin"
)

// contextKey 用于在 gin.Context 中存储值的类型安全 key
type contextKey string

const (
	// responseFormatKey 用于存储响应格式（"json" 或 "xml"）
	responseFormatKey contextKey = "ginx.response_format"
	// requestIDKey 用于存储请求 ID
	requestIDKey contextKey = "ginx.request_id"
)

// setResponseFormat 设置响应格式
func setResponseFormat(ctx *gin.Context, format string) {
	ctx.Set(responseFormatKey, format)
}

// getResponseFormat 获取响应格式，如果不存在则返回默认值
func getResponseFormat(ctx *gin.Context) string {
	if format, ok := ctx.Get(responseFormatKey); ok {
		if str, ok := format.(string); ok {
			return str
		}
	}
	return "json"
}

// SetRequestID 保存请求 ID，错误响应会带上它
func SetRequestID(ctx *gin.Context, requestID string) {
	ctx.Set(requestIDKey, requestID)
}

// RequestID 返回当前请求的 ID，未设置时为空
func RequestID(ctx *gin.Context) string {
	id, ok := ctx.Get(requestIDKey)
	if !ok {
		return ""
	}
	str, _ := id.(string)
	return str
}
