package pricing

import (
	"fmt"

	"storefront_checkout/internal/domain/cart"
	"storefront_checkout/internal/domain/pricing/handler"
	"storefront_checkout/internal/domain/pricing/repository"
	"storefront_checkout/internal/domain/pricing/service"
	"storefront_checkout/internal/pkg/config"
	"storefront_checkout/internal/pkg/middleware"
	"storefront_checkout/internal/pkg/registry"
)

// PricingModule 结账报价模块
type PricingModule struct{}

func init() {
	registry.Register(&PricingModule{})
}

func (m *PricingModule) Name() string {
	return "pricing"
}

func (m *PricingModule) Priority() int {
	return 20
}

func (m *PricingModule) Init(ctx *registry.ModuleContext) error {
	v, err := ctx.Lookup(cart.ServiceName)
	if err != nil {
		return err
	}
	cartReader, ok := v.(service.CartReader)
	if !ok {
		return fmt.Errorf("cart service has unexpected type %T", v)
	}

	cfg := config.GlobalConfig.Checkout
	flash := repository.NewFlashSaleRepository(ctx.Storefront, ctx.Cache, cfg.FlashSaleTTL)
	svc := service.NewPricingService(cartReader, flash, ctx.Storefront, ctx.Storefront,
		service.NewShippingRule(cfg.FreeShippingThreshold, cfg.ShippingFee))
	h := handler.NewPricingHandler(svc)

	g := ctx.Router.Group("/checkout")
	g.Use(middleware.AuthMiddleware())
	g.GET("/quote", h.GetQuote)

	return nil
}
