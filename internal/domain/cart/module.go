package cart

import (
	"time"

	"storefront_checkout/internal/domain/cart/handler"
	"storefront_checkout/internal/domain/cart/repository"
	"storefront_checkout/internal/domain/cart/service"
	"storefront_checkout/internal/pkg/config"
	"storefront_checkout/internal/pkg/middleware"
	"storefront_checkout/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// ServiceName 其他模块通过 ModuleContext.Lookup 获取购物车服务
const ServiceName = "cart"

// CartModule 购物车模块
type CartModule struct{}

func init() {
	registry.Register(&CartModule{})
}

func (m *CartModule) Name() string {
	return "cart"
}

func (m *CartModule) Priority() int {
	return 10
}

func (m *CartModule) Init(ctx *registry.ModuleContext) error {
	cfg := config.GlobalConfig.Checkout

	// 1. 依赖注入
	repo := repository.NewCartRepository(ctx.Cache, cfg.CartTTL)
	svc := service.NewCartService(repo, ctx.Storefront, service.Options{
		Workers:  cfg.CartWorkers,
		Queue:    cfg.CartQueue,
		MaxRetry: 3,
		Backoff:  time.Second,
	})
	svc.Start()
	ctx.OnShutdown(svc.Stop)
	ctx.Provide(ServiceName, svc)

	// 2. 路由注册
	setupRoutes(ctx.Router, handler.NewCartHandler(svc))

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.CartHandler) {
	g := r.Group("/checkout/cart")
	g.Use(middleware.AuthMiddleware())
	{
		g.GET("", h.GetCart)
		g.PUT("/items/:id", h.UpdateItem)
		g.DELETE("/items/:id", h.RemoveItem)
		g.POST("/merge", h.MergeGuest)
	}
}
