package service

import (
	"context"
	"fmt"
	"time"

	"storefront_checkout/internal/domain/pricing/model"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/metrics"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartReader 读取用户购物车 (本地视图 + 后端对账)
type CartReader interface {
	Get(ctx context.Context, userID string) ([]model.CartLine, error)
}

type FlashSaleSource interface {
	CurrentFlashSale(ctx context.Context) (*model.FlashSaleFeed, error)
}

type PromotionSource interface {
	CalculatePrices(ctx context.Context, queries []model.PriceQuery) (model.DynamicPromotionFeed, error)
}

type CouponSource interface {
	ApplicableCoupons(ctx context.Context, orderAmount decimal.Decimal) ([]model.ApplicableCoupon, error)
}

// QuoteRequest 报价请求；ItemIDs 为空表示整个购物车
type QuoteRequest struct {
	UserID   string
	CouponID *int64
	ItemIDs  []string
}

// PricingService 结账报价
type PricingService interface {
	Quote(ctx context.Context, req QuoteRequest) (*model.Quote, error)
}

type pricingService struct {
	cart      CartReader
	flash     FlashSaleSource
	promotion PromotionSource
	coupons   CouponSource
	shipping  ShippingRule
	now       func() time.Time
}

func NewPricingService(cart CartReader, flash FlashSaleSource, promotion PromotionSource, coupons CouponSource, shipping ShippingRule) PricingService {
	return &pricingService{
		cart:      cart,
		flash:     flash,
		promotion: promotion,
		coupons:   coupons,
		shipping:  shipping,
		now:       time.Now,
	}
}

// Quote 促销数据源失败时静默降级到下一优先级，只有购物车读取失败才返回错误
func (s *pricingService) Quote(ctx context.Context, req QuoteRequest) (*model.Quote, error) {
	lines, err := s.cart.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	lines = selectLines(lines, req.ItemIDs)

	var (
		flash   *model.FlashSaleFeed
		dynamic model.DynamicPromotionFeed
	)
	if len(lines) > 0 {
		flash = s.currentFlashSale(ctx)
		dynamic = s.dynamicPrices(ctx, lines)
	}

	result := Resolve(lines, flash, dynamic)
	shippingFee := s.shipping.ShippingFee(result.Subtotal)

	quote := &model.Quote{
		Result:         result,
		ShippingFee:    shippingFee,
		CouponDiscount: decimal.Zero,
	}
	if flash != nil && usesFlashSale(result.Lines) {
		quote.FlashSale = flash.Name
	}
	if req.CouponID != nil {
		quote.Coupon = s.applyCoupon(ctx, *req.CouponID, result.Subtotal)
		if quote.Coupon.Usable {
			quote.CouponDiscount = quote.Coupon.Discount
		}
	}
	quote.Total = FinalTotal(result.Subtotal, shippingFee, quote.CouponDiscount)
	return quote, nil
}

func (s *pricingService) currentFlashSale(ctx context.Context) *model.FlashSaleFeed {
	feed, err := s.flash.CurrentFlashSale(ctx)
	if err != nil {
		logger.Log.Warn("flash sale feed unavailable", zap.Error(err))
		metrics.IncFeedDegraded("flash_sale")
		return nil
	}
	// 缓存中的场次可能已结束
	if feed != nil && !feed.ActiveAt(s.now()) {
		return nil
	}
	return feed
}

func (s *pricingService) dynamicPrices(ctx context.Context, lines []model.CartLine) model.DynamicPromotionFeed {
	queries := make([]model.PriceQuery, 0, len(lines))
	for _, l := range lines {
		queries = append(queries, model.PriceQuery{
			ProductID:     l.ProductID,
			CategoryID:    l.CategoryID,
			VariantID:     l.VariantID,
			OriginalPrice: l.SnapshotOriginalPrice,
		})
	}
	feed, err := s.promotion.CalculatePrices(ctx, queries)
	if err != nil {
		logger.Log.Warn("dynamic promotion feed unavailable", zap.Error(err))
		metrics.IncFeedDegraded("dynamic_promotion")
		return nil
	}
	return feed
}

func (s *pricingService) applyCoupon(ctx context.Context, couponID int64, subtotal decimal.Decimal) *model.AppliedCoupon {
	applied := &model.AppliedCoupon{ID: couponID, Discount: decimal.Zero}

	coupons, err := s.coupons.ApplicableCoupons(ctx, subtotal)
	if err != nil {
		logger.Log.Warn("applicable coupons unavailable", zap.Int64("coupon_id", couponID), zap.Error(err))
		metrics.IncFeedDegraded("coupon")
		applied.Reason = "coupon service unavailable"
		return applied
	}
	for _, c := range coupons {
		if c.ID != couponID {
			continue
		}
		applied.Usable = c.Usable
		applied.Reason = c.Reason
		if c.Usable && c.EstimatedDiscount.IsPositive() {
			applied.Discount = c.EstimatedDiscount
		}
		return applied
	}
	applied.Reason = "coupon not applicable"
	return applied
}

func selectLines(lines []model.CartLine, ids []string) []model.CartLine {
	if len(ids) == 0 {
		return lines
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make([]model.CartLine, 0, len(ids))
	for _, l := range lines {
		if _, ok := wanted[l.ID]; ok {
			out = append(out, l)
		}
	}
	return out
}

func usesFlashSale(lines []model.PricedLine) bool {
	for _, l := range lines {
		if l.Source == model.SourceFlashSale {
			return true
		}
	}
	return false
}
