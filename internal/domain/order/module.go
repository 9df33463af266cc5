package order

import (
	"fmt"

	"storefront_checkout/internal/domain/cart"
	"storefront_checkout/internal/domain/order/handler"
	"storefront_checkout/internal/domain/order/service"
	"storefront_checkout/internal/pkg/config"
	"storefront_checkout/internal/pkg/middleware"
	"storefront_checkout/internal/pkg/poller"
	"storefront_checkout/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// OrderModule 下单模块
type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	return 30
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	v, err := ctx.Lookup(cart.ServiceName)
	if err != nil {
		return err
	}
	cartSvc, ok := v.(service.CartInvalidator)
	if !ok {
		return fmt.Errorf("cart service has unexpected type %T", v)
	}

	cfg := config.GlobalConfig.Checkout
	tokens := service.NewTokenManager(ctx.Redis, ctx.Storefront, cfg.TokenTTL)
	// 每次查询前先等待
	policy := poller.FromConfig(cfg.OrderPoll, false)
	svc := service.NewOrderService(ctx.Storefront, tokens, cartSvc, ctx.Events, policy)

	setupRoutes(ctx.Router, handler.NewOrderHandler(svc))
	return nil
}

func setupRoutes(r *gin.Engine, h *handler.OrderHandler) {
	submitLimiter := middleware.NewKeyedRateLimiter(2, 5)

	g := r.Group("/checkout")
	g.Use(middleware.AuthMiddleware())
	{
		g.POST("/token", h.PrepareCheckout)
		g.POST("/orders", middleware.UserRateLimitMiddleware(submitLimiter), h.Submit)
		g.GET("/orders/:sn", h.Detail)
		g.POST("/orders/:sn/cancel", h.Cancel)
	}
}
