package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "storefront_checkout/internal/domain/cart"
	_ "storefront_checkout/internal/domain/common"
	_ "storefront_checkout/internal/domain/order"
	_ "storefront_checkout/internal/domain/payment"
	_ "storefront_checkout/internal/domain/pricing"
	"storefront_checkout/internal/pkg/config"
	"storefront_checkout/internal/pkg/events"
	"storefront_checkout/internal/pkg/middleware"
	"storefront_checkout/internal/pkg/push"
	"storefront_checkout/internal/pkg/registry"
	"storefront_checkout/internal/pkg/storefront"
	"storefront_checkout/pkg/cache"
	"storefront_checkout/pkg/database"
	"storefront_checkout/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// 1. 配置与日志
	config.LoadConfig()
	cfg := config.GlobalConfig

	if err := logger.InitLogger(cfg.App.Env, cfg.App.Debug); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. 基础设施
	rdb, err := database.InitRedis(cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to connect redis", zap.Error(err))
	}

	// 账本数据库仅在启用直连网关时需要
	var db *gorm.DB
	if cfg.Alipay.AppID != "" || cfg.Wechat.MchID != "" {
		db, err = database.InitDatabase(cfg.Database, cfg.App.Debug)
		if err != nil {
			logger.Log.Fatal("Failed to connect database", zap.Error(err))
		}
		if err := database.RegisterPoolMetrics(db, prometheus.DefaultRegisterer); err != nil {
			logger.Log.Warn("Failed to register db pool metrics", zap.Error(err))
		}
	}

	publisher := events.NewPublisher(cfg.Kafka)

	// 3. 路由与全局中间件
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Trace-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RateLimitMiddleware(middleware.NewKeyedRateLimiter(50, 100)))

	// 4. 模块初始化
	moduleCtx := &registry.ModuleContext{
		DB:         db,
		Redis:      rdb,
		Router:     r,
		Storefront: storefront.NewClient(cfg.Storefront),
		Cache:      cache.NewRedisCache(rdb),
		Events:     publisher,
		Notifier:   push.NewNotifier(cfg.Push),
	}
	if err := registry.InitModules(moduleCtx); err != nil {
		logger.Log.Fatal("Failed to init modules", zap.Error(err))
	}

	// 5. 启动与优雅退出
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server starting", zap.String("port", cfg.Server.Port), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 先停轮询会话和后台任务，再关闭连接
	moduleCtx.Shutdown()
	if err := publisher.Close(); err != nil {
		logger.Log.Warn("Failed to close event publisher", zap.Error(err))
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = rdb.Close()

	logger.Log.Info("Server exited")
}
