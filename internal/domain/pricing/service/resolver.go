package service

import (
	"storefront_checkout/internal/domain/pricing/model"

	"github.com/shopspring/decimal"
)

type variantKey struct {
	productID int64
	variantID int64
}

// Resolve 为每一行计算唯一的展示价格，优先级：秒杀 > 动态促销 > 快照。
// 纯函数，feed 缺失时自动降级到下一层。
func Resolve(lines []model.CartLine, flash *model.FlashSaleFeed, dynamic model.DynamicPromotionFeed) model.Result {
	flashIndex := indexFlash(flash)

	result := model.Result{
		Lines:         make([]model.PricedLine, 0, len(lines)),
		Subtotal:      decimal.Zero,
		TotalDiscount: decimal.Zero,
	}
	for _, line := range lines {
		priced := resolveLine(line, flash, flashIndex, dynamic)
		qty := decimal.NewFromInt(int64(priced.Quantity))
		result.Subtotal = result.Subtotal.Add(priced.ResolvedPrice.Mul(qty))
		result.TotalDiscount = result.TotalDiscount.Add(priced.DiscountAmount.Mul(qty))
		result.Lines = append(result.Lines, priced)
	}
	return result
}

func indexFlash(flash *model.FlashSaleFeed) map[variantKey]model.FlashSaleProduct {
	if flash == nil || len(flash.Products) == 0 {
		return nil
	}
	idx := make(map[variantKey]model.FlashSaleProduct, len(flash.Products))
	for _, p := range flash.Products {
		if p.StockStatus == model.StockSoldOut {
			continue
		}
		idx[variantKey{p.ProductID, p.VariantID}] = p
	}
	return idx
}

func resolveLine(line model.CartLine, flash *model.FlashSaleFeed, flashIndex map[variantKey]model.FlashSaleProduct, dynamic model.DynamicPromotionFeed) model.PricedLine {
	if p, ok := flashIndex[variantKey{line.ProductID, line.VariantID}]; ok {
		original := line.SnapshotOriginalPrice
		if p.OriginalPrice.Valid {
			original = p.OriginalPrice.Decimal
		}
		name := flash.Name
		if line.PromotionType == model.PromotionFlashSale && line.PromotionName != "" {
			name = line.PromotionName
		}
		out := line
		out.PromotionName = name
		out.PromotionType = model.PromotionFlashSale
		return priced(out, p.FlashPrice, original, model.SourceFlashSale)
	}

	if d, ok := dynamic[line.VariantID]; ok && d.FinalPrice.Valid {
		// 请求时以快照原价作为种子，结果缺原价时回落到快照原价
		original := line.SnapshotOriginalPrice
		if d.OriginalPrice.Valid {
			original = d.OriginalPrice.Decimal
		}
		out := line
		out.PromotionName = d.PromotionName
		out.PromotionType = d.PromotionType
		return priced(out, d.FinalPrice.Decimal, original, model.SourceDynamicPromotion)
	}

	return priced(line, line.SnapshotPrice, line.SnapshotOriginalPrice, model.SourceSnapshot)
}

// priced 原价低于成交价 (或缺失) 时以成交价作为原价，保证折扣非负
func priced(line model.CartLine, price, original decimal.Decimal, source string) model.PricedLine {
	if original.LessThan(price) {
		original = price
	}
	return model.PricedLine{
		CartLine:              line,
		ResolvedPrice:         price,
		ResolvedOriginalPrice: original,
		DiscountAmount:        original.Sub(price),
		Source:                source,
	}
}
