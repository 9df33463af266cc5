package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"storefront_checkout/internal/domain/payment/model"
	"storefront_checkout/internal/domain/payment/strategy"
	"storefront_checkout/internal/pkg/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGateway struct{ mock.Mock }

func (m *MockGateway) CreatePayment(ctx context.Context, orderSn, gateway string) (*model.PaymentSession, error) {
	args := m.Called(ctx, orderSn, gateway)
	s, _ := args.Get(0).(*model.PaymentSession)
	return s, args.Error(1)
}

func (m *MockGateway) GetPaymentDetail(ctx context.Context, paymentSn string) (*model.PaymentRecord, error) {
	args := m.Called(ctx, paymentSn)
	r, _ := args.Get(0).(*model.PaymentRecord)
	return r, args.Error(1)
}

func TestInitiateRemoteGateway(t *testing.T) {
	remote := new(MockGateway)
	remote.On("CreatePayment", mock.Anything, "SN1", model.GatewayECPayCredit).Return(&model.PaymentSession{
		PaymentSn: "EC1", OrderSn: "SN1", Gateway: model.GatewayECPayCredit,
		Redirect: model.FormPost{ActionURL: "https://ecpay/Cashier", Method: "POST", Fields: map[string]string{"k": "v"}},
	}, nil)
	svc := NewPaymentService(remote, new(MockOrders), nil, "/payment/processing", nil)

	got, err := svc.Initiate(context.Background(), InitiateRequest{OrderSn: "SN1", Method: model.MethodCreditCard})

	require.NoError(t, err)
	assert.Equal(t, ActionOpenBlankAndPost, got.Plan.Primary.Action)
	assert.Equal(t, ActionWarnPopupBlocked, got.Plan.OnBlocked.Action)
	assert.Equal(t, "/payment/processing?orderSn=SN1&paymentSn=EC1", got.ProcessingRoute)
}

func TestInitiateEachAttemptCreatesSession(t *testing.T) {
	remote := new(MockGateway)
	remote.On("CreatePayment", mock.Anything, "SN1", model.GatewayLinePay).
		Return(&model.PaymentSession{PaymentSn: "LP1", OrderSn: "SN1", Redirect: model.URLRedirect{URL: "https://line/pay"}}, nil).Once()
	remote.On("CreatePayment", mock.Anything, "SN1", model.GatewayLinePay).
		Return(&model.PaymentSession{PaymentSn: "LP2", OrderSn: "SN1", Redirect: model.URLRedirect{URL: "https://line/pay"}}, nil).Once()
	svc := NewPaymentService(remote, new(MockOrders), nil, "/payment/processing", nil)

	first, err := svc.Initiate(context.Background(), InitiateRequest{OrderSn: "SN1", Method: model.MethodLinePay})
	require.NoError(t, err)
	second, err := svc.Initiate(context.Background(), InitiateRequest{OrderSn: "SN1", Method: model.MethodLinePay})
	require.NoError(t, err)

	assert.NotEqual(t, first.Session.PaymentSn, second.Session.PaymentSn)
	remote.AssertNumberOfCalls(t, "CreatePayment", 2)
}

func TestInitiateUnknownMethod(t *testing.T) {
	remote := new(MockGateway)
	svc := NewPaymentService(remote, new(MockOrders), nil, "/payment/processing", nil)

	_, err := svc.Initiate(context.Background(), InitiateRequest{OrderSn: "SN1", Method: "bitcoin"})

	assert.ErrorIs(t, err, ErrUnsupportedMethod)
	remote.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiateDirectGateway(t *testing.T) {
	orders := new(MockOrders)
	orders.On("GetOrderDetail", mock.Anything, "SN1").Return(pendingOrder("10"), nil)
	ch := new(MockChannel)
	ch.On("Pay", mock.Anything, mock.Anything).Return(model.URLRedirect{URL: "https://alipay/pay"}, nil)
	direct, _ := newTestGateway(orders, ch)
	remote := new(MockGateway)
	svc := NewPaymentService(remote, orders, direct, "/payment/processing", nil)

	got, err := svc.Initiate(context.Background(), InitiateRequest{OrderSn: "SN1", Method: model.MethodAlipay})

	require.NoError(t, err)
	assert.Equal(t, "DP0001", got.Session.PaymentSn)
	assert.Equal(t, Step{Action: ActionOpenWindow, URL: "https://alipay/pay"}, got.Plan.Primary)
	remote.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestDetailRouting(t *testing.T) {
	remote := new(MockGateway)
	remote.On("GetPaymentDetail", mock.Anything, "EC1").Return(&model.PaymentRecord{PaymentSn: "EC1", PaymentStatus: model.StatusSuccess}, nil)
	direct, ledger := newTestGateway(new(MockOrders), new(MockChannel))
	require.NoError(t, ledger.Create(context.Background(), &model.PaymentLedger{PaymentSn: "DP0001", Status: "WAIT_PAY"}))
	svc := NewPaymentService(remote, new(MockOrders), direct, "/payment/processing", nil)

	rec, err := svc.Detail(context.Background(), "EC1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccess, rec.PaymentStatus)

	rec, err = svc.Detail(context.Background(), "DP0001")
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitPay, rec.PaymentStatus)
	remote.AssertNumberOfCalls(t, "GetPaymentDetail", 1)
}

func TestPrepareCallback(t *testing.T) {
	direct, _ := newTestGateway(new(MockOrders), &verifyingChannel{})
	svc := NewPaymentService(new(MockGateway), new(MockOrders), direct, "/payment/processing", nil)

	signed := svc.PrepareCallback(model.CallbackParams{Raw: url.Values{"out_trade_no": {"DP0001"}, "sign": {"s"}}})
	assert.True(t, signed.HasConfirmation())
	assert.Equal(t, "DP0001", signed.PaymentKey())

	unsigned := svc.PrepareCallback(model.CallbackParams{PaymentSn: "EC1"})
	assert.False(t, unsigned.HasConfirmation())
}

func TestHandleNotifyPublishesOutcome(t *testing.T) {
	ch := new(MockChannel)
	ch.On("Notify", mock.Anything, mock.Anything).Return(&strategy.NotifyResult{
		PaymentSn: "DP0001", Amount: decimal.NewFromInt(10), Status: model.StatusSuccess,
	}, nil)
	direct, ledger := newTestGateway(new(MockOrders), ch)
	require.NoError(t, ledger.Create(context.Background(), &model.PaymentLedger{
		PaymentSn: "DP0001", OrderSn: "SN1", Gateway: model.GatewayAlipayPage, Amount: decimal.NewFromInt(10), Status: "WAIT_PAY",
	}))
	pub := &recordingPublisher{}
	svc := NewPaymentService(new(MockGateway), new(MockOrders), direct, "/payment/processing", pub)

	req := httptest.NewRequest(http.MethodPost, "/payment/notify/alipay", nil)
	require.NoError(t, svc.HandleNotify(context.Background(), model.GatewayAlipayPage, req))
	require.NoError(t, svc.HandleNotify(context.Background(), model.GatewayAlipayPage, req))

	require.Equal(t, 1, pub.count(), "duplicate notify publishes nothing")
	assert.Equal(t, events.TypePaymentOutcome, pub.events[0].Type)
	assert.Equal(t, "SN1", pub.events[0].OrderSn)
}

func TestHandleNotifyWithoutDirectGateway(t *testing.T) {
	svc := NewPaymentService(new(MockGateway), new(MockOrders), nil, "/payment/processing", nil)

	err := svc.HandleNotify(context.Background(), model.GatewayWechatH5, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.ErrorIs(t, err, ErrUnsupportedGateway)
}
