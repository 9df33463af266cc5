package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	paymentModel "storefront_checkout/internal/domain/payment/model"
)

// ErrUnknownRedirect 后端返回了无法识别的跳转方式
var ErrUnknownRedirect = errors.New("storefront: unknown redirect type")

type paymentSessionPayload struct {
	PaymentSn    string `json:"paymentSn"`
	OrderSn      string `json:"orderSn"`
	RedirectType string `json:"redirectType"`
	RedirectURL  string `json:"redirectUrl"`
	FormPayload  *struct {
		Action string            `json:"action"`
		Method string            `json:"method"`
		Fields map[string]string `json:"fields"`
	} `json:"formPayload"`
}

func (p paymentSessionPayload) session(gateway string) (*paymentModel.PaymentSession, error) {
	s := &paymentModel.PaymentSession{PaymentSn: p.PaymentSn, OrderSn: p.OrderSn, Gateway: gateway}
	switch paymentModel.RedirectType(p.RedirectType) {
	case paymentModel.RedirectURL:
		if p.RedirectURL == "" {
			return nil, fmt.Errorf("%w: URL_REDIRECT without redirectUrl", ErrUnknownRedirect)
		}
		s.Redirect = paymentModel.URLRedirect{URL: p.RedirectURL}
	case paymentModel.RedirectFormPost:
		if p.FormPayload == nil || p.FormPayload.Action == "" {
			return nil, fmt.Errorf("%w: FORM_POST without formPayload", ErrUnknownRedirect)
		}
		method := p.FormPayload.Method
		if method == "" {
			method = http.MethodPost
		}
		s.Redirect = paymentModel.FormPost{ActionURL: p.FormPayload.Action, Method: method, Fields: p.FormPayload.Fields}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRedirect, p.RedirectType)
	}
	return s, nil
}

// CreatePayment payment.create
func (c *Client) CreatePayment(ctx context.Context, orderSn, gateway string) (*paymentModel.PaymentSession, error) {
	body := map[string]string{"orderSn": orderSn, "paymentMethod": gateway}
	data, err := c.do(ctx, "payment.create", http.MethodPost, "/payments", nil, body)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("storefront: empty payment session")
	}
	var p paymentSessionPayload
	if err := decode(data, &p); err != nil {
		return nil, err
	}
	if p.OrderSn == "" {
		p.OrderSn = orderSn
	}
	return p.session(gateway)
}

// GetPaymentDetail payment.getDetail，后端返回空数据时记录为 nil
func (c *Client) GetPaymentDetail(ctx context.Context, paymentSn string) (*paymentModel.PaymentRecord, error) {
	path := fmt.Sprintf("/payments/%s", url.PathEscape(paymentSn))
	data, err := c.do(ctx, "payment.detail", http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var rec paymentModel.PaymentRecord
	if err := decode(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
