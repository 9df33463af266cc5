package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	App        AppConfig        `mapstructure:"app"`
	Storefront StorefrontConfig `mapstructure:"storefront"`
	Checkout   CheckoutConfig   `mapstructure:"checkout"`
	Routes     RoutesConfig     `mapstructure:"routes"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Push       PushConfig       `mapstructure:"push"`
	Alipay     AlipayConfig     `mapstructure:"alipay"`
	Wechat     WechatPayConfig  `mapstructure:"wechat"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

// StorefrontConfig 后端商城服务 (购物车/订单/支付等协作方)
type StorefrontConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// 熔断器：连续失败次数达到阈值后打开，OpenTimeout 后半开
	BreakerFailures    uint32        `mapstructure:"breaker_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`
}

// PollConfig 单个轮询点的节奏，MaxAttempts 为 0 表示不限次数
type PollConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	ErrorInterval time.Duration `mapstructure:"error_interval"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
}

type CheckoutConfig struct {
	// 订单异步创建轮询 (1s x 30)
	OrderPoll PollConfig `mapstructure:"order_poll"`
	// 支付处理页轮询 (2s x 150)
	ProcessingPoll PollConfig `mapstructure:"processing_poll"`
	// 支付网关回跳页轮询 (2s / 出错 3s，不限次数)
	CallbackPoll PollConfig `mapstructure:"callback_poll"`

	// 终态提示展示多久后再跳转
	DisplayDelay time.Duration `mapstructure:"display_delay"`
	// 客户端多久不读取会话即视为页面已关闭
	SessionLease time.Duration `mapstructure:"session_lease"`

	FreeShippingThreshold int64 `mapstructure:"free_shipping_threshold"`
	ShippingFee           int64 `mapstructure:"shipping_fee"`

	CartTTL      time.Duration `mapstructure:"cart_ttl"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	FlashSaleTTL time.Duration `mapstructure:"flash_sale_ttl"`

	CartWorkers int `mapstructure:"cart_workers"`
	CartQueue   int `mapstructure:"cart_queue"`
}

// RoutesConfig 前端跳转路由模板，%s 为订单号
type RoutesConfig struct {
	Confirmation string `mapstructure:"confirmation"`
	Failure      string `mapstructure:"failure"`
	OrderDetail  string `mapstructure:"order_detail"`
	Processing   string `mapstructure:"processing"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"` // 逗号分隔，为空则不发布事件
	Topic   string `mapstructure:"topic"`
}

type PushConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	AppKey          int64  `mapstructure:"app_key"`
	RegionID        string `mapstructure:"region_id"` // e.g., "cn-hangzhou"
}

type AlipayConfig struct {
	AppID        string `mapstructure:"app_id"`
	PrivateKey   string `mapstructure:"private_key"`   // 应用私钥
	PublicKey    string `mapstructure:"public_key"`    // 支付宝公钥 (不是应用公钥)
	NotifyURL    string `mapstructure:"notify_url"`    // 异步通知地址
	ReturnURL    string `mapstructure:"return_url"`    // 同步跳转地址 (回跳页)
	IsProduction bool   `mapstructure:"is_production"` // 是否生产环境
}

type WechatPayConfig struct {
	AppID                string `mapstructure:"app_id"`
	MchID                string `mapstructure:"mch_id"`
	MchCertificateSerial string `mapstructure:"mch_cert_serial"`
	MchPrivateKey        string `mapstructure:"mch_private_key"`
	APIv3Key             string `mapstructure:"apiv3_key"`
	NotifyURL            string `mapstructure:"notify_url"`
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Storefront.BaseURL == "" {
		return errors.New("storefront base_url is required")
	}

	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if c.Checkout.OrderPoll.MaxAttempts <= 0 {
		return errors.New("checkout.order_poll.max_attempts must be positive")
	}
	if c.Checkout.ProcessingPoll.MaxAttempts <= 0 {
		return errors.New("checkout.processing_poll.max_attempts must be positive")
	}
	if c.Checkout.CallbackPoll.MaxAttempts < 0 {
		return errors.New("checkout.callback_poll.max_attempts must not be negative")
	}

	// 直连网关需要账本数据库
	if (c.Alipay.AppID != "" || c.Wechat.MchID != "") && (c.Database.Host == "" || c.Database.DBName == "") {
		return errors.New("database configuration is required when a direct payment gateway is enabled")
	}

	if c.App.Env == "prod" && len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	return nil
}

// SetDefaults 注册默认值，测试中也可单独调用
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.debug", true)

	v.SetDefault("storefront.timeout", 10*time.Second)
	v.SetDefault("storefront.breaker_failures", 5)
	v.SetDefault("storefront.breaker_open_timeout", 30*time.Second)

	v.SetDefault("checkout.order_poll.interval", time.Second)
	v.SetDefault("checkout.order_poll.max_attempts", 30)
	v.SetDefault("checkout.processing_poll.interval", 2*time.Second)
	v.SetDefault("checkout.processing_poll.max_attempts", 150)
	v.SetDefault("checkout.callback_poll.interval", 2*time.Second)
	v.SetDefault("checkout.callback_poll.error_interval", 3*time.Second)
	v.SetDefault("checkout.callback_poll.max_attempts", 0)
	v.SetDefault("checkout.display_delay", 1500*time.Millisecond)
	v.SetDefault("checkout.session_lease", 30*time.Second)
	v.SetDefault("checkout.free_shipping_threshold", 1500)
	v.SetDefault("checkout.shipping_fee", 100)
	v.SetDefault("checkout.cart_ttl", 24*time.Hour)
	v.SetDefault("checkout.token_ttl", 30*time.Minute)
	v.SetDefault("checkout.flash_sale_ttl", 10*time.Second)
	v.SetDefault("checkout.cart_workers", 4)
	v.SetDefault("checkout.cart_queue", 500)

	v.SetDefault("routes.confirmation", "/checkout/success?orderSn=%s")
	v.SetDefault("routes.failure", "/checkout/failed?orderSn=%s")
	v.SetDefault("routes.order_detail", "/orders/%s")
	v.SetDefault("routes.processing", "/payment/processing")

	v.SetDefault("kafka.topic", "checkout-events")
}

// LoadConfig 加载配置
func LoadConfig() {
	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	// 绑定环境变量
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if base := os.Getenv("STOREFRONT_BASE_URL"); base != "" {
		GlobalConfig.Storefront.BaseURL = base
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		GlobalConfig.Database.Host = host
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		GlobalConfig.JWT.Secret = jwtSecret
	}

	// 验证配置
	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
