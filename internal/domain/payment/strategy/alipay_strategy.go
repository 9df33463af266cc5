package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"storefront_checkout/internal/domain/payment/model"
	"storefront_checkout/internal/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/smartwalle/alipay/v3"
)

// alipayAPI 用到的支付宝客户端方法
type alipayAPI interface {
	TradePagePay(param alipay.TradePagePay) (*url.URL, error)
	DecodeNotification(values url.Values) (*alipay.Notification, error)
	VerifySign(values url.Values) error
}

type AlipayStrategy struct {
	client alipayAPI
	config config.AlipayConfig
}

func NewAlipayStrategy(cfg config.AlipayConfig) (*AlipayStrategy, error) {
	if cfg.AppID == "" {
		return nil, errors.New("alipay config missing")
	}

	client, err := alipay.New(cfg.AppID, cfg.PrivateKey, cfg.IsProduction)
	if err != nil {
		return nil, err
	}

	// 加载支付宝公钥 (用于验证签名)
	if err = client.LoadAliPayPublicKey(cfg.PublicKey); err != nil {
		return nil, err
	}

	return &AlipayStrategy{client: client, config: cfg}, nil
}

// Pay 电脑网站支付，返回带签名的收银台地址
func (s *AlipayStrategy) Pay(ctx context.Context, req PayRequest) (model.RedirectInstruction, error) {
	p := alipay.TradePagePay{}
	p.NotifyURL = s.config.NotifyURL
	p.ReturnURL = s.config.ReturnURL
	p.Subject = req.Subject
	p.OutTradeNo = req.PaymentSn
	p.TotalAmount = req.Amount.StringFixed(2)
	p.ProductCode = "FAST_INSTANT_TRADE_PAY"

	u, err := s.client.TradePagePay(p)
	if err != nil {
		return nil, fmt.Errorf("alipay page pay: %w", err)
	}
	return model.URLRedirect{URL: u.String()}, nil
}

// Notify 异步通知为 POST 表单
func (s *AlipayStrategy) Notify(ctx context.Context, r *http.Request) (*NotifyResult, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotifyRejected, err)
	}

	noti, err := s.client.DecodeNotification(r.Form)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotifyRejected, err)
	}
	if noti.OutTradeNo == "" {
		return nil, fmt.Errorf("%w: missing out_trade_no", ErrNotifyRejected)
	}

	amount, err := decimal.NewFromString(noti.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: total_amount %q", ErrNotifyRejected, noti.TotalAmount)
	}

	raw, _ := json.Marshal(r.Form)
	return &NotifyResult{
		PaymentSn: noti.OutTradeNo,
		Amount:    amount,
		Status:    alipayStatus(noti.TradeStatus),
		Raw:       raw,
	}, nil
}

// VerifyReturn 校验同步回跳参数的签名
func (s *AlipayStrategy) VerifyReturn(values url.Values) error {
	if values.Get("sign") == "" {
		return fmt.Errorf("%w: unsigned return", ErrNotifyRejected)
	}
	if err := s.client.VerifySign(values); err != nil {
		return fmt.Errorf("%w: %v", ErrNotifyRejected, err)
	}
	return nil
}

// TRADE_SUCCESS 或 TRADE_FINISHED 表示成功
func alipayStatus(status alipay.TradeStatus) model.PaymentStatus {
	switch status {
	case alipay.TradeStatusSuccess, alipay.TradeStatusFinished:
		return model.StatusSuccess
	case alipay.TradeStatusClosed:
		return model.StatusClosed
	default:
		return model.StatusWaitPay
	}
}

var (
	_ Channel        = (*AlipayStrategy)(nil)
	_ ReturnVerifier = (*AlipayStrategy)(nil)
)
