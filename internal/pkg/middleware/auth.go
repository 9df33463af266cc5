package middleware

import (
	"net/http"
	"strings"

	"storefront_checkout/internal/pkg/storefront"
	"storefront_checkout/pkg/response"
	"storefront_checkout/pkg/utils"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// AuthMiddleware JWT认证中间件，校验通过后把原始 token 放进请求上下文，调用商城后端时透传
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Authorization header is required")
			c.Abort()
			return
		}

		// 检查格式 "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(parts[1])
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set("role", claims.Role)
		ctx := storefront.WithAuthToken(c.Request.Context(), parts[1])
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// CurrentUserID 由 AuthMiddleware 写入的用户 ID
func CurrentUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	uid, ok := v.(string)
	return uid, ok && uid != ""
}
