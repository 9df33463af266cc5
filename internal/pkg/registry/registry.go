package registry

import (
	"fmt"
	"sort"

	"storefront_checkout/internal/pkg/events"
	"storefront_checkout/internal/pkg/push"
	"storefront_checkout/internal/pkg/storefront"
	"storefront_checkout/pkg/cache"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	DB         *gorm.DB // 未启用直连网关时为 nil
	Redis      *redis.Client
	Router     *gin.Engine
	Storefront *storefront.Client
	Cache      cache.CacheService
	Events     events.Publisher
	Notifier   push.Notifier

	services map[string]interface{}
	closers  []func()
}

// Provide 注册供后续模块使用的服务
func (c *ModuleContext) Provide(name string, svc interface{}) {
	if c.services == nil {
		c.services = make(map[string]interface{})
	}
	c.services[name] = svc
}

// Lookup 获取先初始化的模块提供的服务
func (c *ModuleContext) Lookup(name string) (interface{}, error) {
	svc, ok := c.services[name]
	if !ok {
		return nil, fmt.Errorf("service %q not provided, check module priorities", name)
	}
	return svc, nil
}

// OnShutdown 注册关闭钩子，按注册的逆序执行
func (c *ModuleContext) OnShutdown(fn func()) {
	c.closers = append(c.closers, fn)
}

func (c *ModuleContext) Shutdown() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	// cart 先于 pricing/order，order 先于 payment
	Priority() int
}

// moduleRegistry 全局模块注册表
var moduleRegistry = make(map[string]Module)

// Register 注册模块
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// GetModules 获取所有已注册的模块
func GetModules() map[string]Module {
	return moduleRegistry
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Priority() == modules[j].Priority() {
			return modules[i].Name() < modules[j].Name()
		}
		return modules[i].Priority() < modules[j].Priority()
	})

	for _, module := range modules {
		if err := module.Init(ctx); err != nil {
			return fmt.Errorf("init module %s: %w", module.Name(), err)
		}
	}

	return nil
}
