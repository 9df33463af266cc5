package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	orderModel "storefront_checkout/internal/domain/order/model"
	"storefront_checkout/internal/domain/payment/model"
	"storefront_checkout/internal/pkg/events"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/metrics"

	"go.uber.org/zap"
)

// ErrUnsupportedMethod 未知的支付方式
var ErrUnsupportedMethod = errors.New("unsupported payment method")

// InitiateRequest 发起支付
type InitiateRequest struct {
	OrderSn  string `json:"orderSn" binding:"required"`
	Method   string `json:"method" binding:"required"`
	ClientIP string `json:"-"`
}

// Initiation 发起支付的结果：会话、跳转计划、处理中页面地址
type Initiation struct {
	Session         *model.PaymentSession `json:"session"`
	Plan            RedirectPlan          `json:"plan"`
	ProcessingRoute string                `json:"processingRoute"`
}

type PaymentService interface {
	Initiate(ctx context.Context, req InitiateRequest) (*Initiation, error)
	Detail(ctx context.Context, paymentSn string) (*model.PaymentRecord, error)
	OrderDetail(ctx context.Context, orderSn string) (*orderModel.Order, error)
	// PrepareCallback 校验回跳签名，标记网关是否已确认
	PrepareCallback(params model.CallbackParams) model.CallbackParams
	HandleNotify(ctx context.Context, gatewayID string, r *http.Request) error
}

type paymentService struct {
	remote     Gateway
	orders     OrderReader
	direct     *DirectGateway
	processing string
	events     events.Publisher
}

// NewPaymentService direct 为 nil 时所有网关都走后端
func NewPaymentService(remote Gateway, orders OrderReader, direct *DirectGateway, processingRoute string, publisher events.Publisher) PaymentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &paymentService{
		remote:     remote,
		orders:     orders,
		direct:     direct,
		processing: processingRoute,
		events:     publisher,
	}
}

func (s *paymentService) gateway(gatewayID string) Gateway {
	if s.direct != nil && s.direct.Supports(gatewayID) {
		return s.direct
	}
	return s.remote
}

// Initiate 每次调用都会创建新的支付会话
func (s *paymentService) Initiate(ctx context.Context, req InitiateRequest) (*Initiation, error) {
	gatewayID, ok := model.GatewayFor(req.Method)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}

	if req.ClientIP != "" {
		ctx = WithClientIP(ctx, req.ClientIP)
	}
	session, err := s.gateway(gatewayID).CreatePayment(ctx, req.OrderSn, gatewayID)
	if err != nil {
		return nil, fmt.Errorf("create payment for %s: %w", req.OrderSn, err)
	}

	plan, err := Plan(session)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("payment session created",
		zap.String("order_sn", session.OrderSn),
		zap.String("payment_sn", session.PaymentSn),
		zap.String("gateway", gatewayID),
		zap.String("redirect", string(session.Redirect.Type())),
	)
	return &Initiation{
		Session:         session,
		Plan:            plan,
		ProcessingRoute: ProcessingRoute(s.processing, session.PaymentSn, session.OrderSn),
	}, nil
}

// ProcessingRoute 处理中页面地址，不论跳转是否成功都返回
func ProcessingRoute(base, paymentSn, orderSn string) string {
	q := url.Values{}
	q.Set("paymentSn", paymentSn)
	q.Set("orderSn", orderSn)
	return base + "?" + q.Encode()
}

func (s *paymentService) Detail(ctx context.Context, paymentSn string) (*model.PaymentRecord, error) {
	if s.direct != nil && s.direct.Owns(paymentSn) {
		return s.direct.GetPaymentDetail(ctx, paymentSn)
	}
	return s.remote.GetPaymentDetail(ctx, paymentSn)
}

func (s *paymentService) OrderDetail(ctx context.Context, orderSn string) (*orderModel.Order, error) {
	return s.orders.GetOrderDetail(ctx, orderSn)
}

func (s *paymentService) PrepareCallback(params model.CallbackParams) model.CallbackParams {
	if s.direct != nil && params.Raw.Get("sign") != "" && s.direct.VerifyReturn(params.Raw) {
		params.GatewayConfirmed = true
	}
	return params
}

func (s *paymentService) HandleNotify(ctx context.Context, gatewayID string, r *http.Request) error {
	if s.direct == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedGateway, gatewayID)
	}

	rec, changed, err := s.direct.HandleNotify(ctx, gatewayID, r)
	if err != nil {
		logger.Log.Warn("payment notify rejected", zap.String("gateway", gatewayID), zap.Error(err))
		return err
	}
	if !changed {
		return nil
	}

	metrics.IncPaymentOutcome("notify", string(rec.PaymentStatus))
	events.PublishOrLog(ctx, s.events, events.Event{
		Type:      events.TypePaymentOutcome,
		OrderSn:   rec.OrderSn,
		PaymentSn: rec.PaymentSn,
		Payload:   map[string]interface{}{"status": rec.PaymentStatus, "gateway": gatewayID, "source": "notify"},
	})
	logger.Log.Info("payment settled by notify",
		zap.String("payment_sn", rec.PaymentSn),
		zap.String("order_sn", rec.OrderSn),
		zap.String("status", string(rec.PaymentStatus)),
	)
	return nil
}
