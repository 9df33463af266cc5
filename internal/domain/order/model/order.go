package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Status 订单生命周期
// CREATING -> {PENDING_PAYMENT, CREATE_FAILED}; PENDING_PAYMENT -> {PAID, CANCELLED}; PAID -> SHIPPED -> COMPLETED
type Status int

const (
	StatusPendingPayment Status = 0
	StatusPaid           Status = 1
	StatusShipped        Status = 2
	StatusCompleted      Status = 3
	StatusCancelled      Status = 4
	StatusCreating       Status = 5
	StatusCreateFailed   Status = 6
)

var statusNames = map[Status]string{
	StatusPendingPayment: "PENDING_PAYMENT",
	StatusPaid:           "PAID",
	StatusShipped:        "SHIPPED",
	StatusCompleted:      "COMPLETED",
	StatusCancelled:      "CANCELLED",
	StatusCreating:       "CREATING",
	StatusCreateFailed:   "CREATE_FAILED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// OrderItem 订单明细
type OrderItem struct {
	ProductID int64           `json:"productId"`
	VariantID int64           `json:"variantId"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order 订单，状态只由后端修改
type Order struct {
	OrderSn        string          `json:"orderSn"`
	Status         Status          `json:"status"`
	PayAmount      decimal.Decimal `json:"payAmount"`
	Items          []OrderItem     `json:"items"`
	ShippingFee    decimal.Decimal `json:"shippingFee"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FailReason     string          `json:"failReason,omitempty"`
}

// ShippingForm 收货信息
type ShippingForm struct {
	ReceiverName  string `json:"receiverName" validate:"required"`
	ReceiverPhone string `json:"receiverPhone" validate:"required"`
	Address       string `json:"address" validate:"required"`
	City          string `json:"city,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	Note          string `json:"note,omitempty" validate:"max=200"`
}

// Normalize 去除首尾空白，纯空白视为未填写
func (f ShippingForm) Normalize() ShippingForm {
	f.ReceiverName = strings.TrimSpace(f.ReceiverName)
	f.ReceiverPhone = strings.TrimSpace(f.ReceiverPhone)
	f.Address = strings.TrimSpace(f.Address)
	f.City = strings.TrimSpace(f.City)
	f.PostalCode = strings.TrimSpace(f.PostalCode)
	f.Note = strings.TrimSpace(f.Note)
	return f
}

// SubmitRequest 结账提交
type SubmitRequest struct {
	Shipping    ShippingForm `json:"shipping"`
	CartItemIDs []string     `json:"cartItemIds" validate:"required,min=1,dive,required"`
	CouponID    *int64       `json:"couponId,omitempty"`
}

// CreateOrderRequest 下单请求，携带幂等令牌
type CreateOrderRequest struct {
	OrderToken  string       `json:"orderToken"`
	CartItemIDs []string     `json:"cartItemIds"`
	CouponID    *int64       `json:"couponId,omitempty"`
	Shipping    ShippingForm `json:"shipping"`
}
