package strategy

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"storefront_checkout/internal/domain/payment/model"
	"storefront_checkout/internal/pkg/config"

	"github.com/shopspring/decimal"
	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/core/downloader"
	"github.com/wechatpay-apiv3/wechatpay-go/core/notify"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/h5"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

type h5Prepayer interface {
	Prepay(ctx context.Context, req h5.PrepayRequest) (*h5.PrepayResponse, *core.APIResult, error)
}

type notifyParser interface {
	ParseNotifyRequest(ctx context.Context, request *http.Request, content interface{}) (*notify.Request, error)
}

type WechatStrategy struct {
	h5      h5Prepayer
	handler notifyParser
	config  config.WechatPayConfig
}

func NewWechatStrategy(cfg config.WechatPayConfig) (*WechatStrategy, error) {
	if cfg.MchID == "" {
		return nil, errors.New("wechat pay config missing")
	}

	// 1. 加载商户私钥
	mchPrivateKey, err := utils.LoadPrivateKey(cfg.MchPrivateKey)
	if err != nil {
		return nil, err
	}

	// 2. 初始化 Client，自动下载平台证书
	ctx := context.Background()
	client, err := core.NewClient(ctx,
		option.WithWechatPayAutoAuthCipher(cfg.MchID, cfg.MchCertificateSerial, mchPrivateKey, cfg.APIv3Key),
	)
	if err != nil {
		return nil, err
	}

	// 3. 通知验签使用下载器维护的平台证书
	certVisitor := downloader.MgrInstance().GetCertificateVisitor(cfg.MchID)
	handler := notify.NewNotifyHandler(cfg.APIv3Key, verifiers.NewSHA256WithRSAVerifier(certVisitor))

	return &WechatStrategy{
		h5:      &h5.H5ApiService{Client: client},
		handler: handler,
		config:  cfg,
	}, nil
}

// Pay H5 下单，返回 h5_url
func (s *WechatStrategy) Pay(ctx context.Context, req PayRequest) (model.RedirectInstruction, error) {
	if req.ClientIP == "" {
		return nil, errors.New("wechat h5 pay requires the payer ip")
	}

	// 转换为分
	fen := req.Amount.Shift(2).Round(0).IntPart()

	resp, _, err := s.h5.Prepay(ctx, h5.PrepayRequest{
		Appid:       core.String(s.config.AppID),
		Mchid:       core.String(s.config.MchID),
		Description: core.String(req.Subject),
		OutTradeNo:  core.String(req.PaymentSn),
		Attach:      core.String(req.OrderSn),
		NotifyUrl:   core.String(s.config.NotifyURL),
		Amount: &h5.Amount{
			Total: core.Int64(fen),
		},
		SceneInfo: &h5.SceneInfo{
			PayerClientIp: core.String(req.ClientIP),
			H5Info: &h5.H5Info{
				Type: core.String("Wap"),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wechat h5 prepay: %w", err)
	}
	if resp == nil || resp.H5Url == nil || *resp.H5Url == "" {
		return nil, errors.New("wechat h5 prepay returned no h5_url")
	}
	return model.URLRedirect{URL: *resp.H5Url}, nil
}

// Notify 微信支付回调是 JSON 格式，签名信息在 Header 中
func (s *WechatStrategy) Notify(ctx context.Context, r *http.Request) (*NotifyResult, error) {
	transaction := new(payments.Transaction)
	notifyReq, err := s.handler.ParseNotifyRequest(ctx, r, transaction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotifyRejected, err)
	}
	if transaction.OutTradeNo == nil || transaction.Amount == nil || transaction.Amount.Total == nil {
		return nil, fmt.Errorf("%w: incomplete transaction", ErrNotifyRejected)
	}

	var raw []byte
	if notifyReq != nil && notifyReq.Resource != nil {
		raw = []byte(notifyReq.Resource.Plaintext)
	}
	return &NotifyResult{
		PaymentSn: *transaction.OutTradeNo,
		Amount:    decimal.New(*transaction.Amount.Total, -2),
		Status:    wechatStatus(transaction.TradeState),
		Raw:       raw,
	}, nil
}

func wechatStatus(state *string) model.PaymentStatus {
	if state == nil {
		return model.StatusWaitPay
	}
	switch *state {
	case "SUCCESS":
		return model.StatusSuccess
	case "CLOSED", "REVOKED", "PAYERROR":
		return model.StatusClosed
	case "REFUND":
		return model.StatusRefunded
	default:
		return model.StatusWaitPay
	}
}

var _ Channel = (*WechatStrategy)(nil)
