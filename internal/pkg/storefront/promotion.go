package storefront

import (
	"context"
	"net/http"
	"net/url"

	pricingModel "storefront_checkout/internal/domain/pricing/model"

	"github.com/shopspring/decimal"
)

// CurrentFlashSale flashSale.getCurrentSession，没有进行中的场次时返回 nil
func (c *Client) CurrentFlashSale(ctx context.Context) (*pricingModel.FlashSaleFeed, error) {
	data, err := c.do(ctx, "flashSale.current", http.MethodGet, "/flash-sales/current", nil, nil)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var feed pricingModel.FlashSaleFeed
	if err := decode(data, &feed); err != nil {
		return nil, err
	}
	return &feed, nil
}

// CalculatePrices promotion.calculatePrices
func (c *Client) CalculatePrices(ctx context.Context, queries []pricingModel.PriceQuery) (pricingModel.DynamicPromotionFeed, error) {
	data, err := c.do(ctx, "promotion.calculate", http.MethodPost, "/promotions/calculate", nil, map[string]interface{}{"items": queries})
	if err != nil {
		return nil, err
	}
	var prices []pricingModel.DynamicPrice
	if err := decode(data, &prices); err != nil {
		return nil, err
	}
	feed := make(pricingModel.DynamicPromotionFeed, len(prices))
	for _, p := range prices {
		feed[p.VariantID] = p
	}
	return feed, nil
}

// ApplicableCoupons coupon.getApplicable
func (c *Client) ApplicableCoupons(ctx context.Context, orderAmount decimal.Decimal) ([]pricingModel.ApplicableCoupon, error) {
	query := url.Values{"orderAmount": {orderAmount.String()}}
	data, err := c.do(ctx, "coupon.applicable", http.MethodGet, "/coupons/applicable", query, nil)
	if err != nil {
		return nil, err
	}
	var coupons []pricingModel.ApplicableCoupon
	if err := decode(data, &coupons); err != nil {
		return nil, err
	}
	return coupons, nil
}
