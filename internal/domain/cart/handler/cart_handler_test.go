package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront_checkout/internal/domain/cart/model"
	"storefront_checkout/internal/domain/cart/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCartService struct{ mock.Mock }

func (m *MockCartService) Get(ctx context.Context, userID string) ([]model.Line, error) {
	args := m.Called(ctx, userID)
	lines, _ := args.Get(0).([]model.Line)
	return lines, args.Error(1)
}

func (m *MockCartService) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) ([]model.Line, error) {
	args := m.Called(ctx, userID, itemID, quantity)
	lines, _ := args.Get(0).([]model.Line)
	return lines, args.Error(1)
}

func (m *MockCartService) Remove(ctx context.Context, userID, itemID string) ([]model.Line, error) {
	args := m.Called(ctx, userID, itemID)
	lines, _ := args.Get(0).([]model.Line)
	return lines, args.Error(1)
}

func (m *MockCartService) MergeGuest(ctx context.Context, userID string, items []model.GuestItem) ([]model.Line, error) {
	args := m.Called(ctx, userID, items)
	lines, _ := args.Get(0).([]model.Line)
	return lines, args.Error(1)
}

func (m *MockCartService) Invalidate(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockCartService) Start() {}
func (m *MockCartService) Stop()  {}

func newRouter(svc service.CartService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewCartHandler(svc)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", "u1") })
	r.GET("/checkout/cart", h.GetCart)
	r.PUT("/checkout/cart/items/:id", h.UpdateItem)
	r.DELETE("/checkout/cart/items/:id", h.RemoveItem)
	return r
}

func TestCartHandler(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		svc := new(MockCartService)
		svc.On("Get", mock.Anything, "u1").Return([]model.Line{{ID: "c1", Quantity: 2}}, nil)

		w := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkout/cart", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id":"c1"`)
	})

	t.Run("update rejects zero quantity before the service", func(t *testing.T) {
		svc := new(MockCartService)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/checkout/cart/items/c1", strings.NewReader(`{"quantity":0}`))
		req.Header.Set("Content-Type", "application/json")
		newRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "UpdateQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("remove unknown item", func(t *testing.T) {
		svc := new(MockCartService)
		svc.On("Remove", mock.Anything, "u1", "nope").Return(nil, service.ErrItemNotFound)

		w := httptest.NewRecorder()
		newRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/checkout/cart/items/nope", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "20001")
	})
}
