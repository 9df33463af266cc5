package service

import (
	"github.com/shopspring/decimal"
)

// ShippingRule 运费规则：小计达到门槛免运费，空购物车不收运费
type ShippingRule struct {
	FreeThreshold decimal.Decimal
	Fee           decimal.Decimal
}

// DefaultShippingRule 满 1500 免运，否则 100
var DefaultShippingRule = ShippingRule{
	FreeThreshold: decimal.NewFromInt(1500),
	Fee:           decimal.NewFromInt(100),
}

func NewShippingRule(threshold, fee int64) ShippingRule {
	return ShippingRule{FreeThreshold: decimal.NewFromInt(threshold), Fee: decimal.NewFromInt(fee)}
}

// ShippingFee 按小计计算运费
func (r ShippingRule) ShippingFee(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || subtotal.GreaterThanOrEqual(r.FreeThreshold) {
		return decimal.Zero
	}
	return r.Fee
}

// FinalTotal 应付金额 = max(0, 小计 + 运费 - 优惠券)
func FinalTotal(subtotal, shippingFee, couponDiscount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(shippingFee).Sub(couponDiscount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
