package middleware

import (
	"strings"

	"storefront_checkout/internal/pkg/storefront"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceHeader  = "X-Trace-ID"
	maxTraceLen  = 64
	traceIDField = "traceID"
)

// TraceMiddleware 确定本次请求的链路 ID，写回响应头，并放进 ctx 由 storefront 客户端带给商城后端
// 来源优先级：X-Trace-ID > W3C traceparent 的 trace-id > 新生成
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := sanitizeTraceID(c.GetHeader(traceHeader))
		if traceID == "" {
			traceID = traceparentID(c.GetHeader("traceparent"))
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(traceIDField, traceID)
		c.Header(traceHeader, traceID)
		c.Request = c.Request.WithContext(storefront.WithTraceID(c.Request.Context(), traceID))

		c.Next()
	}
}

// sanitizeTraceID 客户端传入的值会进日志和下游请求头，只接受短的安全字符
func sanitizeTraceID(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxTraceLen {
		return ""
	}
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return ""
		}
	}
	return v
}

// traceparentID version-traceid-parentid-flags，取 32 位 trace-id
func traceparentID(v string) string {
	parts := strings.Split(strings.TrimSpace(v), "-")
	if len(parts) != 4 || len(parts[1]) != 32 || strings.Trim(parts[1], "0") == "" {
		return ""
	}
	return sanitizeTraceID(parts[1])
}
