package payment

import (
	"storefront_checkout/internal/domain/payment/handler"
	"storefront_checkout/internal/domain/payment/model"
	"storefront_checkout/internal/domain/payment/repository"
	"storefront_checkout/internal/domain/payment/service"
	"storefront_checkout/internal/domain/payment/strategy"
	"storefront_checkout/internal/pkg/config"
	"storefront_checkout/internal/pkg/middleware"
	"storefront_checkout/internal/pkg/registry"
	"storefront_checkout/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PaymentModule 支付模块
type PaymentModule struct{}

func init() {
	registry.Register(&PaymentModule{})
}

func (m *PaymentModule) Name() string {
	return "payment"
}

func (m *PaymentModule) Priority() int {
	return 40
}

func (m *PaymentModule) Init(ctx *registry.ModuleContext) error {
	cfg := config.GlobalConfig

	// 1. 直连网关 (需要账本数据库)
	var direct *service.DirectGateway
	if ctx.DB != nil {
		direct = service.NewDirectGateway(repository.NewLedgerRepository(ctx.DB), ctx.Storefront)
		registerChannels(direct, cfg)
	}

	// 2. 发起支付 + 结果轮询
	svc := service.NewPaymentService(ctx.Storefront, ctx.Storefront, direct, cfg.Routes.Processing, ctx.Events)
	poller := service.NewStatusPoller(svc, service.OptionsFromConfig(cfg.Checkout, cfg.Routes), ctx.Events, ctx.Notifier)
	tracker := service.NewTracker(poller, service.TrackerOptions{Lease: cfg.Checkout.SessionLease})
	ctx.OnShutdown(tracker.Close)

	// 3. 路由注册
	setupRoutes(ctx.Router, handler.NewPaymentHandler(svc, tracker))
	return nil
}

func registerChannels(direct *service.DirectGateway, cfg config.Config) {
	if cfg.Alipay.AppID != "" {
		alipayStrategy, err := strategy.NewAlipayStrategy(cfg.Alipay)
		if err != nil {
			logger.Log.Error("Failed to init Alipay strategy", zap.Error(err))
		} else {
			direct.Register(model.GatewayAlipayPage, alipayStrategy)
		}
	}

	if cfg.Wechat.MchID != "" {
		wechatStrategy, err := strategy.NewWechatStrategy(cfg.Wechat)
		if err != nil {
			logger.Log.Error("Failed to init Wechat strategy", zap.Error(err))
		} else {
			direct.Register(model.GatewayWechatH5, wechatStrategy)
		}
	}
}

func setupRoutes(r *gin.Engine, h *handler.PaymentHandler) {
	g := r.Group("/payment")

	// 支付回调 (无需鉴权，但需验签)
	g.POST("/notify/alipay", h.AlipayNotify)
	g.POST("/notify/wechat", h.WechatNotify)

	auth := g.Group("")
	auth.Use(middleware.AuthMiddleware())
	{
		auth.POST("/initiate", h.Initiate)
		auth.GET("/processing", h.Processing)
		auth.GET("/callback", h.Callback)
		auth.GET("/sessions/:id", h.Session)
		auth.DELETE("/sessions/:id", h.StopSession)
	}
}
