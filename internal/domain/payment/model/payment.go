package model

import (
	"net/url"
	"time"

	baseModel "storefront_checkout/pkg/model"

	"github.com/shopspring/decimal"
)

// RedirectType 网关声明的跳转方式
type RedirectType string

const (
	RedirectURL      RedirectType = "URL_REDIRECT"
	RedirectFormPost RedirectType = "FORM_POST"
)

// RedirectInstruction 跳转指令：URLRedirect | FormPost
type RedirectInstruction interface {
	Type() RedirectType
	isRedirect()
}

// URLRedirect 直接打开网关页面
type URLRedirect struct {
	URL string `json:"url"`
}

func (URLRedirect) Type() RedirectType { return RedirectURL }
func (URLRedirect) isRedirect()        {}

// FormPost 向网关提交表单，字段对本服务不透明
type FormPost struct {
	ActionURL string            `json:"actionUrl"`
	Method    string            `json:"method"`
	Fields    map[string]string `json:"fields"`
}

func (FormPost) Type() RedirectType { return RedirectFormPost }
func (FormPost) isRedirect()        {}

// PaymentSession 一次支付尝试，签发后不可变，失败后不复用
type PaymentSession struct {
	PaymentSn string              `json:"paymentSn"`
	OrderSn   string              `json:"orderSn"`
	Gateway   string              `json:"gateway"`
	Redirect  RedirectInstruction `json:"-"`
}

// PaymentStatus 支付状态
type PaymentStatus string

const (
	StatusWaitPay  PaymentStatus = "WAIT_PAY"
	StatusSuccess  PaymentStatus = "SUCCESS"
	StatusClosed   PaymentStatus = "CLOSED"
	StatusRefunded PaymentStatus = "REFUNDED"
)

// Terminal SUCCESS/CLOSED/REFUNDED 为终态
func (s PaymentStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusClosed || s == StatusRefunded
}

// PaymentRecord 支付记录 (轮询对象)
type PaymentRecord struct {
	PaymentSn     string          `json:"paymentSn"`
	OrderSn       string          `json:"orderSn"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Amount        decimal.Decimal `json:"amount"`
	Gateway       string          `json:"gateway,omitempty"`
}

// 用户侧支付方式 -> 网关标识
const (
	MethodCreditCard = "credit_card"
	MethodATM        = "atm"
	MethodLinePay    = "line_pay"
	MethodAlipay     = "alipay"
	MethodWechat     = "wechat"

	GatewayECPayCredit = "ECPAY_CREDIT"
	GatewayECPayATM    = "ECPAY_ATM"
	GatewayLinePay     = "LINE_PAY"
	GatewayAlipayPage  = "ALIPAY_PAGE"
	GatewayWechatH5    = "WECHAT_H5"
)

var methodGateways = map[string]string{
	MethodCreditCard: GatewayECPayCredit,
	MethodATM:        GatewayECPayATM,
	MethodLinePay:    GatewayLinePay,
	MethodAlipay:     GatewayAlipayPage,
	MethodWechat:     GatewayWechatH5,
}

// GatewayFor 支付方式映射到网关标识
func GatewayFor(method string) (string, bool) {
	g, ok := methodGateways[method]
	return g, ok
}

// CallbackParams 网关回跳页携带的参数
type CallbackParams struct {
	TransactionID   string     `form:"transactionId"`
	PaymentSn       string     `form:"paymentSn"`
	MerchantTradeNo string     `form:"MerchantTradeNo"`
	RtnCode         string     `form:"RtnCode"`
	OrderSn         string     `form:"orderSn"`
	Cancelled       bool       `form:"cancelled"`
	Raw             url.Values `form:"-"`
	// 网关回跳签名已校验 (支付宝同步返回)
	GatewayConfirmed bool `form:"-"`
}

// HasConfirmation 回跳参数是否已经带有网关的确认信息
func (p CallbackParams) HasConfirmation() bool {
	return p.TransactionID != "" || p.RtnCode != "" || p.GatewayConfirmed
}

// PaymentKey 回跳参数中的支付单号 (paymentSn 优先，其次 MerchantTradeNo，再次支付宝 out_trade_no)
func (p CallbackParams) PaymentKey() string {
	if p.PaymentSn != "" {
		return p.PaymentSn
	}
	if p.MerchantTradeNo != "" {
		return p.MerchantTradeNo
	}
	return p.Raw.Get("out_trade_no")
}

// PaymentLedger 直连网关 (支付宝/微信) 的本地支付流水
type PaymentLedger struct {
	baseModel.BaseModel
	PaymentSn string          `gorm:"uniqueIndex;not null" json:"paymentSn"`
	OrderSn   string          `gorm:"index;not null" json:"orderSn"`
	Gateway   string          `gorm:"not null" json:"gateway"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status    string          `gorm:"default:'WAIT_PAY'" json:"status"`
	Notify    []byte          `gorm:"type:jsonb" json:"-"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
}

func (PaymentLedger) TableName() string { return "payment_ledgers" }

// Record 转换为轮询使用的支付记录
func (l *PaymentLedger) Record() *PaymentRecord {
	return &PaymentRecord{
		PaymentSn:     l.PaymentSn,
		OrderSn:       l.OrderSn,
		PaymentStatus: PaymentStatus(l.Status),
		Amount:        l.Amount,
		Gateway:       l.Gateway,
	}
}
