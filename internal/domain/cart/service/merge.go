package service

import (
	"storefront_checkout/internal/domain/cart/model"
)

type variantKey struct {
	productID, variantID int64
}

// Merge 后端购物车决定行、数量和价格；后端行缺少促销归因时沿用本地同规格行的促销名称和类型
func Merge(local, server []model.Line) []model.Line {
	byID := make(map[string]model.Line, len(local))
	byVariant := make(map[variantKey]model.Line, len(local))
	for _, l := range local {
		if !l.HasPromotion() {
			continue
		}
		byID[l.ID] = l
		byVariant[variantKey{l.ProductID, l.VariantID}] = l
	}

	merged := make([]model.Line, 0, len(server))
	for _, s := range server {
		if !s.HasPromotion() {
			prev, ok := byID[s.ID]
			if !ok || prev.ProductID != s.ProductID || prev.VariantID != s.VariantID {
				prev, ok = byVariant[variantKey{s.ProductID, s.VariantID}]
			}
			if ok {
				s.PromotionName = prev.PromotionName
				s.PromotionType = prev.PromotionType
			}
		}
		merged = append(merged, s)
	}
	return merged
}
