package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	orderModel "storefront_checkout/internal/domain/order/model"
	"storefront_checkout/internal/domain/payment/model"
	"storefront_checkout/internal/domain/payment/repository"
	"storefront_checkout/internal/domain/payment/strategy"
	"storefront_checkout/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedGateway = errors.New("payment gateway is not enabled")
	ErrOrderNotPayable    = errors.New("order is not awaiting payment")
	ErrAmountMismatch     = errors.New("notified amount does not match the payment")
)

// directPrefix 直连网关支付单号前缀，用于区分后端签发的支付单
const directPrefix = "DP"

// Gateway 创建支付会话并查询支付结果
type Gateway interface {
	CreatePayment(ctx context.Context, orderSn, gateway string) (*model.PaymentSession, error)
	GetPaymentDetail(ctx context.Context, paymentSn string) (*model.PaymentRecord, error)
}

// OrderReader 读取订单应付金额和状态
type OrderReader interface {
	GetOrderDetail(ctx context.Context, orderSn string) (*orderModel.Order, error)
}

// DirectGateway 本服务直接对接支付宝/微信，流水记在本地账本
type DirectGateway struct {
	ledger repository.LedgerRepository
	orders OrderReader

	mu       sync.RWMutex
	channels map[string]strategy.Channel

	newSn func() string
	now   func() time.Time
}

func NewDirectGateway(ledger repository.LedgerRepository, orders OrderReader) *DirectGateway {
	return &DirectGateway{
		ledger:   ledger,
		orders:   orders,
		channels: make(map[string]strategy.Channel),
		newSn:    newPaymentSn,
		now:      time.Now,
	}
}

func newPaymentSn() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return directPrefix + time.Now().Format("20060102150405") + id[:8]
}

// Register 注册渠道
func (g *DirectGateway) Register(gatewayID string, ch strategy.Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[gatewayID] = ch
}

func (g *DirectGateway) channel(gatewayID string) (strategy.Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ch, ok := g.channels[gatewayID]
	return ch, ok
}

func (g *DirectGateway) Supports(gatewayID string) bool {
	_, ok := g.channel(gatewayID)
	return ok
}

// Owns 支付单是否由直连网关签发
func (g *DirectGateway) Owns(paymentSn string) bool {
	return strings.HasPrefix(paymentSn, directPrefix)
}

// CreatePayment 读取订单金额，写入 WAIT_PAY 流水后向渠道下单
func (g *DirectGateway) CreatePayment(ctx context.Context, orderSn, gatewayID string) (*model.PaymentSession, error) {
	ch, ok := g.channel(gatewayID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGateway, gatewayID)
	}

	order, err := g.orders.GetOrderDetail(ctx, orderSn)
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderSn, err)
	}
	if order.Status != orderModel.StatusPendingPayment {
		return nil, fmt.Errorf("%w: %s is %s", ErrOrderNotPayable, orderSn, order.Status)
	}
	if !order.PayAmount.IsPositive() {
		return nil, fmt.Errorf("%w: %s has no amount due", ErrOrderNotPayable, orderSn)
	}

	ledger := &model.PaymentLedger{
		PaymentSn: g.newSn(),
		OrderSn:   orderSn,
		Gateway:   gatewayID,
		Amount:    order.PayAmount,
		Status:    string(model.StatusWaitPay),
	}
	if err := g.ledger.Create(ctx, ledger); err != nil {
		return nil, fmt.Errorf("create payment ledger: %w", err)
	}

	redirect, err := ch.Pay(ctx, strategy.PayRequest{
		PaymentSn: ledger.PaymentSn,
		OrderSn:   orderSn,
		Subject:   "Order " + orderSn,
		Amount:    order.PayAmount,
		ClientIP:  ClientIP(ctx),
	})
	if err != nil {
		// 会话不会被复用，直接关闭这条流水
		if _, cerr := g.ledger.UpdateStatus(ctx, ledger.PaymentSn, model.StatusClosed, nil, nil); cerr != nil {
			logger.Log.Warn("close failed payment ledger", zap.String("payment_sn", ledger.PaymentSn), zap.Error(cerr))
		}
		return nil, err
	}

	return &model.PaymentSession{
		PaymentSn: ledger.PaymentSn,
		OrderSn:   orderSn,
		Gateway:   gatewayID,
		Redirect:  redirect,
	}, nil
}

// GetPaymentDetail 流水不存在时返回 nil (与后端空数据一致)
func (g *DirectGateway) GetPaymentDetail(ctx context.Context, paymentSn string) (*model.PaymentRecord, error) {
	ledger, err := g.ledger.GetByPaymentSn(ctx, paymentSn)
	if errors.Is(err, repository.ErrLedgerNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ledger.Record(), nil
}

// HandleNotify 处理异步通知，changed 表示本次通知让流水进入了终态
func (g *DirectGateway) HandleNotify(ctx context.Context, gatewayID string, r *http.Request) (rec *model.PaymentRecord, changed bool, err error) {
	ch, ok := g.channel(gatewayID)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedGateway, gatewayID)
	}

	res, err := ch.Notify(ctx, r)
	if err != nil {
		return nil, false, err
	}

	ledger, err := g.ledger.GetByPaymentSn(ctx, res.PaymentSn)
	if err != nil {
		return nil, false, fmt.Errorf("notify for %s: %w", res.PaymentSn, err)
	}
	if ledger.Gateway != gatewayID {
		return nil, false, fmt.Errorf("notify for %s: gateway %s, want %s", res.PaymentSn, gatewayID, ledger.Gateway)
	}
	if !res.Amount.Equal(ledger.Amount) {
		return nil, false, fmt.Errorf("%w: %s notified %s, expected %s", ErrAmountMismatch, res.PaymentSn, res.Amount, ledger.Amount)
	}

	// 交易未结束或重复通知
	if res.Status == model.StatusWaitPay || model.PaymentStatus(ledger.Status).Terminal() {
		return ledger.Record(), false, nil
	}

	var paidAt *time.Time
	if res.Status == model.StatusSuccess {
		t := g.now()
		paidAt = &t
	}
	updated, err := g.ledger.UpdateStatus(ctx, res.PaymentSn, res.Status, paidAt, res.Raw)
	if err != nil {
		return nil, false, fmt.Errorf("update payment ledger %s: %w", res.PaymentSn, err)
	}
	if updated {
		ledger.Status = string(res.Status)
		ledger.PaidAt = paidAt
	}
	return ledger.Record(), updated, nil
}

// VerifyReturn 用支持同步回跳验签的渠道校验回跳参数
func (g *DirectGateway) VerifyReturn(values url.Values) bool {
	if !g.Owns(values.Get("out_trade_no")) {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, ch := range g.channels {
		v, ok := ch.(strategy.ReturnVerifier)
		if !ok {
			continue
		}
		if err := v.VerifyReturn(values); err == nil {
			return true
		}
	}
	return false
}

type clientIPKey struct{}

// WithClientIP 微信 H5 下单需要付款人 IP
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}
