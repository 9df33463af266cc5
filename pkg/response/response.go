package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构，traceId 便于前端反馈问题时对照日志
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	TraceID string      `json:"traceId,omitempty"`
}

func write(c *gin.Context, httpCode, code int, msg string, data interface{}) {
	c.JSON(httpCode, Response{
		Code:    code,
		Message: msg,
		Data:    data,
		TraceID: c.GetString("traceID"),
	})
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, CodeSuccess, "success", data)
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	write(c, httpCode, errCode, msg, nil)
}

// ErrorWithData 错误响应，同时携带数据 (如新的幂等令牌、失败的订单号)
func ErrorWithData(c *gin.Context, httpCode int, errCode int, msg string, data interface{}) {
	write(c, httpCode, errCode, msg, data)
}

// Fail 业务失败 (HTTP 200, 业务码非 0)
func Fail(c *gin.Context, errCode int, msg string) {
	write(c, http.StatusOK, errCode, msg, nil)
}
