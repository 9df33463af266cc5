package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 促销类型
const (
	PromotionFlashSale = "FLASH_SALE"
	PromotionCampaign  = "CAMPAIGN"
)

// 价格来源 (按优先级从高到低)
const (
	SourceFlashSale        = "FlashSale"
	SourceDynamicPromotion = "DynamicPromotion"
	SourceSnapshot         = "Snapshot"
)

const StockSoldOut = "SOLD_OUT"

// CartLine 购物车行，快照价格由购物车服务在加入时写入
type CartLine struct {
	ID                    string          `json:"id"`
	ProductID             int64           `json:"productId"`
	VariantID             int64           `json:"variantId"`
	CategoryID            int64           `json:"categoryId"`
	Quantity              int             `json:"quantity"`
	SnapshotPrice         decimal.Decimal `json:"snapshotPrice"`
	SnapshotOriginalPrice decimal.Decimal `json:"snapshotOriginalPrice"`
	PromotionName         string          `json:"promotionName,omitempty"`
	PromotionType         string          `json:"promotionType,omitempty"`
}

// HasPromotion 是否已带有促销归因信息
func (l CartLine) HasPromotion() bool {
	return l.PromotionName != "" || l.PromotionType != ""
}

// PricedLine 解析后的价格行，每次渲染重新计算，不持久化
type PricedLine struct {
	CartLine
	ResolvedPrice         decimal.Decimal `json:"resolvedPrice"`
	ResolvedOriginalPrice decimal.Decimal `json:"resolvedOriginalPrice"`
	DiscountAmount        decimal.Decimal `json:"discountAmount"`
	Source                string          `json:"source"`
}

// FlashSaleProduct 秒杀场次内的单个规格
type FlashSaleProduct struct {
	ProductID     int64               `json:"productId"`
	VariantID     int64               `json:"variantId"`
	FlashPrice    decimal.Decimal     `json:"flashPrice"`
	OriginalPrice decimal.NullDecimal `json:"originalPrice"`
	StockStatus   string              `json:"stockStatus"`
}

// FlashSaleFeed 当前秒杀场次
type FlashSaleFeed struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	StartTime time.Time          `json:"startTime"`
	EndTime   time.Time          `json:"endTime"`
	Products  []FlashSaleProduct `json:"products"`
}

// ActiveAt 场次在 t 时刻是否有效
func (f *FlashSaleFeed) ActiveAt(t time.Time) bool {
	if f == nil {
		return false
	}
	if !f.StartTime.IsZero() && t.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && !t.Before(f.EndTime) {
		return false
	}
	return true
}

// DynamicPrice 促销引擎对单个规格的计算结果
type DynamicPrice struct {
	VariantID     int64               `json:"variantId"`
	FinalPrice    decimal.NullDecimal `json:"finalPrice"`
	OriginalPrice decimal.NullDecimal `json:"originalPrice"`
	PromotionName string              `json:"promotionName,omitempty"`
	PromotionType string              `json:"promotionType,omitempty"`
}

// DynamicPromotionFeed variantId -> 计算结果
type DynamicPromotionFeed map[int64]DynamicPrice

// PriceQuery 促销价计算请求行
type PriceQuery struct {
	ProductID     int64           `json:"productId"`
	CategoryID    int64           `json:"categoryId"`
	VariantID     int64           `json:"variantId"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
}

// ApplicableCoupon 当前订单金额可用的优惠券
type ApplicableCoupon struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name,omitempty"`
	Usable            bool            `json:"usable"`
	EstimatedDiscount decimal.Decimal `json:"estimatedDiscount"`
	Reason            string          `json:"reason,omitempty"`
}

// Result 价格解析输出
type Result struct {
	Lines         []PricedLine    `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
}

// AppliedCoupon 报价中使用的优惠券
type AppliedCoupon struct {
	ID       int64           `json:"id"`
	Usable   bool            `json:"usable"`
	Discount decimal.Decimal `json:"discount"`
	Reason   string          `json:"reason,omitempty"`
}

// Quote 结账页展示的报价
type Quote struct {
	Result
	ShippingFee    decimal.Decimal `json:"shippingFee"`
	CouponDiscount decimal.Decimal `json:"couponDiscount"`
	Total          decimal.Decimal `json:"total"`
	Coupon         *AppliedCoupon  `json:"coupon,omitempty"`
	FlashSale      string          `json:"flashSale,omitempty"`
}
