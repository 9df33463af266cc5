package service

import (
	"testing"

	"storefront_checkout/internal/domain/pricing/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func nullDec(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func assertDec(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %d got %s", want, got.String()}, msgAndArgs...)...)
}

func line(id string, productID, variantID int64, qty int, price, original int64) model.CartLine {
	return model.CartLine{
		ID:                    id,
		ProductID:             productID,
		VariantID:             variantID,
		CategoryID:            1,
		Quantity:              qty,
		SnapshotPrice:         dec(price),
		SnapshotOriginalPrice: dec(original),
	}
}

func TestResolveDynamicPromotionExample(t *testing.T) {
	lines := []model.CartLine{line("c1", 1, 10, 2, 500, 500)}
	dynamic := model.DynamicPromotionFeed{
		10: {VariantID: 10, FinalPrice: nullDec(450), OriginalPrice: nullDec(500), PromotionName: "Spring Sale", PromotionType: model.PromotionCampaign},
	}

	result := Resolve(lines, nil, dynamic)

	require.Len(t, result.Lines, 1)
	got := result.Lines[0]
	assertDec(t, 450, got.ResolvedPrice)
	assertDec(t, 50, got.DiscountAmount)
	assert.Equal(t, "Spring Sale", got.PromotionName)
	assert.Equal(t, model.SourceDynamicPromotion, got.Source)
	assertDec(t, 900, result.Subtotal)
	assertDec(t, 100, result.TotalDiscount)
}

func TestResolvePrecedence(t *testing.T) {
	flash := &model.FlashSaleFeed{
		ID:   7,
		Name: "Midnight Flash",
		Products: []model.FlashSaleProduct{
			{ProductID: 1, VariantID: 10, FlashPrice: dec(300), OriginalPrice: nullDec(520), StockStatus: "IN_STOCK"},
			{ProductID: 2, VariantID: 20, FlashPrice: dec(100), OriginalPrice: nullDec(200), StockStatus: model.StockSoldOut},
			{ProductID: 3, VariantID: 30, FlashPrice: dec(80), StockStatus: "LOW_STOCK"},
		},
	}
	dynamic := model.DynamicPromotionFeed{
		10: {VariantID: 10, FinalPrice: nullDec(450), OriginalPrice: nullDec(500), PromotionName: "Spring Sale", PromotionType: model.PromotionCampaign},
		20: {VariantID: 20, FinalPrice: nullDec(180), OriginalPrice: nullDec(200), PromotionName: "Spring Sale", PromotionType: model.PromotionCampaign},
	}

	t.Run("flash wins over dynamic", func(t *testing.T) {
		result := Resolve([]model.CartLine{line("a", 1, 10, 1, 500, 500)}, flash, dynamic)

		got := result.Lines[0]
		assertDec(t, 300, got.ResolvedPrice)
		assertDec(t, 520, got.ResolvedOriginalPrice)
		assert.Equal(t, model.PromotionFlashSale, got.PromotionType)
		assert.Equal(t, "Midnight Flash", got.PromotionName)
		assert.Equal(t, model.SourceFlashSale, got.Source)
	})

	t.Run("sold out flash falls through to dynamic", func(t *testing.T) {
		result := Resolve([]model.CartLine{line("b", 2, 20, 1, 200, 200)}, flash, dynamic)

		got := result.Lines[0]
		assertDec(t, 180, got.ResolvedPrice)
		assert.Equal(t, model.SourceDynamicPromotion, got.Source)
	})

	t.Run("sold out flash falls through to snapshot", func(t *testing.T) {
		result := Resolve([]model.CartLine{line("b", 2, 20, 1, 190, 200)}, flash, nil)

		got := result.Lines[0]
		assertDec(t, 190, got.ResolvedPrice)
		assertDec(t, 200, got.ResolvedOriginalPrice)
		assert.Equal(t, model.SourceSnapshot, got.Source)
	})

	t.Run("flash original falls back to snapshot original", func(t *testing.T) {
		result := Resolve([]model.CartLine{line("c", 3, 30, 1, 95, 120)}, flash, nil)

		assertDec(t, 80, result.Lines[0].ResolvedPrice)
		assertDec(t, 120, result.Lines[0].ResolvedOriginalPrice)
	})

	t.Run("flash match requires product and variant", func(t *testing.T) {
		result := Resolve([]model.CartLine{line("d", 99, 10, 1, 500, 500)}, flash, nil)

		assert.Equal(t, model.SourceSnapshot, result.Lines[0].Source)
	})

	t.Run("existing flash label is preferred", func(t *testing.T) {
		l := line("e", 1, 10, 1, 500, 500)
		l.PromotionType = model.PromotionFlashSale
		l.PromotionName = "Members Flash"

		result := Resolve([]model.CartLine{l}, flash, nil)

		assert.Equal(t, "Members Flash", result.Lines[0].PromotionName)
	})

	t.Run("campaign label is replaced by session name", func(t *testing.T) {
		l := line("f", 1, 10, 1, 500, 500)
		l.PromotionType = model.PromotionCampaign
		l.PromotionName = "Spring Sale"

		result := Resolve([]model.CartLine{l}, flash, nil)

		assert.Equal(t, "Midnight Flash", result.Lines[0].PromotionName)
	})
}

func TestResolveDegradation(t *testing.T) {
	t.Run("dynamic entry without final price is skipped", func(t *testing.T) {
		l := line("a", 1, 10, 1, 480, 500)
		l.PromotionName = "Server Promo"
		l.PromotionType = model.PromotionCampaign
		dynamic := model.DynamicPromotionFeed{10: {VariantID: 10, PromotionName: "ignored"}}

		got := Resolve([]model.CartLine{l}, nil, dynamic).Lines[0]

		assertDec(t, 480, got.ResolvedPrice)
		assert.Equal(t, "Server Promo", got.PromotionName)
		assert.Equal(t, model.SourceSnapshot, got.Source)
	})

	t.Run("empty cart", func(t *testing.T) {
		result := Resolve(nil, nil, nil)

		assert.Empty(t, result.Lines)
		assert.True(t, result.Subtotal.IsZero())
		assert.True(t, result.TotalDiscount.IsZero())
	})

	t.Run("original below price is clamped", func(t *testing.T) {
		dynamic := model.DynamicPromotionFeed{10: {VariantID: 10, FinalPrice: nullDec(600), OriginalPrice: nullDec(550)}}

		got := Resolve([]model.CartLine{line("a", 1, 10, 1, 500, 0)}, nil, dynamic).Lines[0]

		assertDec(t, 600, got.ResolvedOriginalPrice)
		assert.True(t, got.DiscountAmount.IsZero())
	})
}

func TestResolveInvariants(t *testing.T) {
	flash := &model.FlashSaleFeed{
		Name: "Flash",
		Products: []model.FlashSaleProduct{
			{ProductID: 1, VariantID: 11, FlashPrice: dec(99), OriginalPrice: nullDec(150)},
			{ProductID: 2, VariantID: 21, FlashPrice: dec(300), OriginalPrice: nullDec(250)},
		},
	}
	dynamic := model.DynamicPromotionFeed{
		31: {VariantID: 31, FinalPrice: nullDec(70), OriginalPrice: nullDec(100)},
		41: {VariantID: 41, FinalPrice: nullDec(90)},
	}
	lines := []model.CartLine{
		line("1", 1, 11, 3, 150, 150),
		line("2", 2, 21, 1, 280, 0),
		line("3", 3, 31, 2, 100, 100),
		line("4", 4, 41, 5, 95, 110),
		line("5", 5, 51, 1, 60, 40),
	}

	first := Resolve(lines, flash, dynamic)
	second := Resolve(lines, flash, dynamic)
	assert.Equal(t, first, second, "resolve must be deterministic")

	originalSum := decimal.Zero
	for _, l := range first.Lines {
		assert.True(t, l.ResolvedPrice.LessThanOrEqual(l.ResolvedOriginalPrice), "line %s", l.ID)
		assert.False(t, l.DiscountAmount.IsNegative(), "line %s", l.ID)
		originalSum = originalSum.Add(l.ResolvedOriginalPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	assert.True(t, first.Subtotal.Add(first.TotalDiscount).Equal(originalSum))
}

func TestShippingFee(t *testing.T) {
	rule := DefaultShippingRule
	tests := []struct {
		name     string
		subtotal int64
		want     int64
	}{
		{"empty cart", 0, 0},
		{"below threshold", 1, 100},
		{"just below threshold", 1499, 100},
		{"at threshold", 1500, 0},
		{"above threshold", 4200, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDec(t, tt.want, rule.ShippingFee(dec(tt.subtotal)))
		})
	}
}

func TestFinalTotal(t *testing.T) {
	assertDec(t, 1000, FinalTotal(dec(900), dec(100), dec(0)))
	assertDec(t, 850, FinalTotal(dec(900), dec(100), dec(150)))
	assertDec(t, 0, FinalTotal(dec(300), dec(100), dec(1000)), "coupon larger than subtotal")
}
