package handler

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"storefront_checkout/pkg/response"

	"github.com/gin-gonic/gin"
)

// Check 单个依赖的健康检查
type Check func(ctx context.Context) error

// Health 并发执行所有检查，任一失败返回 503
// @Summary 健康检查
// @Tags Common
// @Produce json
// @Router /healthz [get]
func Health(checks map[string]Check, timeout time.Duration) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		results := make(map[string]string, len(names))
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, name := range names {
			wg.Add(1)
			go func(name string, check Check) {
				defer wg.Done()
				status := "ok"
				if err := check(ctx); err != nil {
					status = err.Error()
				}
				mu.Lock()
				results[name] = status
				mu.Unlock()
			}(name, checks[name])
		}
		wg.Wait()

		for _, status := range results {
			if status != "ok" {
				response.ErrorWithData(c, http.StatusServiceUnavailable, response.ErrServerInternal, "unhealthy", results)
				return
			}
		}
		response.Success(c, results)
	}
}
