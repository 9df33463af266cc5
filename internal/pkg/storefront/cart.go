package storefront

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	cartModel "storefront_checkout/internal/domain/cart/model"
	pricingModel "storefront_checkout/internal/domain/pricing/model"
)

type cartPayload struct {
	Items []pricingModel.CartLine `json:"items"`
}

// GetCart cart.get
func (c *Client) GetCart(ctx context.Context) ([]pricingModel.CartLine, error) {
	data, err := c.do(ctx, "cart.get", http.MethodGet, "/cart", nil, nil)
	if err != nil {
		return nil, err
	}
	var out cartPayload
	if err := decode(data, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// UpdateCartItem cart.update
func (c *Client) UpdateCartItem(ctx context.Context, itemID string, quantity int) error {
	path := fmt.Sprintf("/cart/items/%s", url.PathEscape(itemID))
	_, err := c.do(ctx, "cart.update", http.MethodPut, path, nil, map[string]int{"quantity": quantity})
	return err
}

// RemoveCartItem cart.remove
func (c *Client) RemoveCartItem(ctx context.Context, itemID string) error {
	path := fmt.Sprintf("/cart/items/%s", url.PathEscape(itemID))
	_, err := c.do(ctx, "cart.remove", http.MethodDelete, path, nil, nil)
	return err
}

// MergeCart cart.merge 登录后合并游客购物车
func (c *Client) MergeCart(ctx context.Context, items []cartModel.GuestItem) error {
	_, err := c.do(ctx, "cart.merge", http.MethodPost, "/cart/merge", nil, map[string]interface{}{"items": items})
	return err
}
