package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	orderModel "storefront_checkout/internal/domain/order/model"
)

var errEmptyOrder = errors.New("storefront: empty order payload")

// GenerateOrderToken order.generateToken
func (c *Client) GenerateOrderToken(ctx context.Context) (string, error) {
	data, err := c.do(ctx, "order.token", http.MethodPost, "/orders/token", nil, nil)
	if err != nil {
		return "", err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := decode(data, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("storefront: empty order token")
	}
	return out.Token, nil
}

// CreateOrder order.create
func (c *Client) CreateOrder(ctx context.Context, req orderModel.CreateOrderRequest) (*orderModel.Order, error) {
	data, err := c.do(ctx, "order.create", http.MethodPost, "/orders", nil, req)
	if err != nil {
		return nil, err
	}
	return decodeOrder(data)
}

// GetOrderStatus order.getStatus (异步创建期间使用)
func (c *Client) GetOrderStatus(ctx context.Context, orderSn string) (*orderModel.Order, error) {
	path := fmt.Sprintf("/orders/%s/status", url.PathEscape(orderSn))
	data, err := c.do(ctx, "order.status", http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeOrder(data)
}

// GetOrderDetail order.getDetail
func (c *Client) GetOrderDetail(ctx context.Context, orderSn string) (*orderModel.Order, error) {
	path := fmt.Sprintf("/orders/%s", url.PathEscape(orderSn))
	data, err := c.do(ctx, "order.detail", http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeOrder(data)
}

// CancelOrder order.cancel
func (c *Client) CancelOrder(ctx context.Context, orderSn string) error {
	path := fmt.Sprintf("/orders/%s/cancel", url.PathEscape(orderSn))
	_, err := c.do(ctx, "order.cancel", http.MethodPost, path, nil, nil)
	return err
}

func decodeOrder(data []byte) (*orderModel.Order, error) {
	if data == nil {
		return nil, errEmptyOrder
	}
	var o orderModel.Order
	if err := decode(data, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
