package model

import (
	pricingModel "storefront_checkout/internal/domain/pricing/model"
)

// Line 购物车行，与价格解析共用同一结构
type Line = pricingModel.CartLine

// GuestItem 游客购物车合并项
type GuestItem struct {
	ProductID int64 `json:"productId" binding:"required"`
	VariantID int64 `json:"variantId" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// SyncOp 需要同步到后端的购物车变更
type SyncOp string

const (
	OpUpdate SyncOp = "update"
	OpRemove SyncOp = "remove"
)

// SyncTask 乐观更新后异步对账的任务
type SyncTask struct {
	UserID    string `json:"userId"`
	AuthToken string `json:"-"`
	TraceID   string `json:"traceId,omitempty"`
	Op        SyncOp `json:"op"`
	ItemID    string `json:"itemId"`
	Quantity  int    `json:"quantity,omitempty"`
}

// Find 按购物车行 ID 查找
func Find(lines []Line, itemID string) int {
	for i, l := range lines {
		if l.ID == itemID {
			return i
		}
	}
	return -1
}
