package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront_checkout/internal/domain/order/model"
	"storefront_checkout/internal/domain/order/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOrderService struct{ mock.Mock }

func (m *MockOrderService) PrepareCheckout(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockOrderService) Submit(ctx context.Context, userID string, req model.SubmitRequest) (*model.Order, error) {
	args := m.Called(ctx, userID, req)
	o, _ := args.Get(0).(*model.Order)
	return o, args.Error(1)
}

func (m *MockOrderService) Detail(ctx context.Context, orderSn string) (*model.Order, error) {
	args := m.Called(ctx, orderSn)
	o, _ := args.Get(0).(*model.Order)
	return o, args.Error(1)
}

func (m *MockOrderService) Cancel(ctx context.Context, orderSn string) error {
	return m.Called(ctx, orderSn).Error(0)
}

type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func submit(t *testing.T, svc *MockOrderService) (*httptest.ResponseRecorder, envelope) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", "u1") })
	r.POST("/checkout/orders", NewOrderHandler(svc).Submit)

	body := `{"shipping":{"receiverName":"Lin","receiverPhone":"09","address":"Taipei"},"cartItemIds":["c1"]}`
	req := httptest.NewRequest(http.MethodPost, "/checkout/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestSubmitErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"validation", &service.ValidationError{Fields: map[string]string{"address": "is required"}}, http.StatusBadRequest, 30001},
		{"conflict", &service.ConflictError{Token: "tok-2"}, http.StatusConflict, 30002},
		{"in progress", service.ErrSubmitInProgress, http.StatusConflict, 30003},
		{"locked", service.ErrSubmitLocked, http.StatusConflict, 30003},
		{"create failed", &service.CreateFailedError{OrderSn: "SN1", Reason: "stock"}, http.StatusUnprocessableEntity, 30004},
		{"timeout", &service.PollTimeoutError{OrderSn: "SN1", Attempts: 30}, http.StatusGatewayTimeout, 30005},
		{"upstream", errors.New("boom"), http.StatusBadGateway, 50004},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockOrderService)
			svc.On("Submit", mock.Anything, "u1", mock.Anything).Return(nil, tc.err)

			w, env := submit(t, svc)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, env.Code)
		})
	}
}

func TestSubmitConflictReturnsFreshToken(t *testing.T) {
	svc := new(MockOrderService)
	svc.On("Submit", mock.Anything, "u1", mock.Anything).Return(nil, &service.ConflictError{Token: "tok-2"})

	_, env := submit(t, svc)

	assert.Equal(t, "tok-2", env.Data["token"])
}

func TestSubmitTimeoutCarriesOrderSn(t *testing.T) {
	svc := new(MockOrderService)
	svc.On("Submit", mock.Anything, "u1", mock.Anything).Return(nil, &service.PollTimeoutError{OrderSn: "SN9", Attempts: 30})

	_, env := submit(t, svc)

	assert.Equal(t, "SN9", env.Data["orderSn"])
	assert.Equal(t, service.ErrOrderPollTimeout.Error(), env.Message)
}

func TestSubmitSuccess(t *testing.T) {
	svc := new(MockOrderService)
	svc.On("Submit", mock.Anything, "u1", mock.MatchedBy(func(r model.SubmitRequest) bool {
		return r.Shipping.Address == "Taipei" && len(r.CartItemIDs) == 1
	})).Return(&model.Order{OrderSn: "SN1"}, nil)

	w, env := submit(t, svc)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "SN1", env.Data["orderSn"])
}
