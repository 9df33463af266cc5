package strategy

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"storefront_checkout/internal/domain/payment/model"

	"github.com/shopspring/decimal"
)

// ErrNotifyRejected 通知验签失败或内容不完整
var ErrNotifyRejected = errors.New("payment notification rejected")

// PayRequest 发起一次直连网关支付
type PayRequest struct {
	PaymentSn string
	OrderSn   string
	Subject   string
	Amount    decimal.Decimal
	ClientIP  string
}

// NotifyResult 网关异步通知解析结果。
// Status 为 WAIT_PAY 表示交易尚未结束，不需要更新流水。
type NotifyResult struct {
	PaymentSn string
	Amount    decimal.Decimal
	Status    model.PaymentStatus
	Raw       []byte
}

// Channel 直连支付渠道
type Channel interface {
	// Pay 生成跳转指令
	Pay(ctx context.Context, req PayRequest) (model.RedirectInstruction, error)

	// Notify 验签并解析异步通知
	Notify(ctx context.Context, r *http.Request) (*NotifyResult, error)
}

// ReturnVerifier 可校验同步回跳参数的渠道 (支付宝)
type ReturnVerifier interface {
	VerifyReturn(values url.Values) error
}
