package common

import (
	"context"
	"time"

	commonHandler "storefront_checkout/internal/pkg/common"
	"storefront_checkout/internal/pkg/registry"
	"storefront_checkout/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// CommonModule 健康检查和指标
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	checks := map[string]commonHandler.Check{}
	if ctx.Redis != nil {
		rdb := ctx.Redis
		checks["redis"] = func(c context.Context) error { return rdb.Ping(c).Err() }
	}
	if ctx.DB != nil {
		sqlDB, err := ctx.DB.DB()
		if err != nil {
			return err
		}
		checks["database"] = sqlDB.PingContext
	}

	setupRoutes(ctx.Router, checks)
	return nil
}

func setupRoutes(r *gin.Engine, checks map[string]commonHandler.Check) {
	r.GET("/healthz", commonHandler.Health(checks, 2*time.Second))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}
