package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront_checkout/internal/domain/cart/model"
	"storefront_checkout/pkg/cache"
)

// ErrNoLocalView 本地没有该用户的购物车视图
var ErrNoLocalView = errors.New("no local cart view")

// CartRepository 购物车本地视图 (Redis)
type CartRepository interface {
	Get(ctx context.Context, userID string) ([]model.Line, error)
	Save(ctx context.Context, userID string, lines []model.Line) error
	Invalidate(ctx context.Context, userID string) error
}

type cartRepository struct {
	cache cache.CacheService
	ttl   time.Duration
}

func NewCartRepository(c cache.CacheService, ttl time.Duration) CartRepository {
	return &cartRepository{cache: c, ttl: ttl}
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func (r *cartRepository) Get(ctx context.Context, userID string) ([]model.Line, error) {
	var lines []model.Line
	if err := r.cache.Get(ctx, cartKey(userID), &lines); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrNoLocalView
		}
		return nil, err
	}
	if lines == nil {
		lines = []model.Line{}
	}
	return lines, nil
}

func (r *cartRepository) Save(ctx context.Context, userID string, lines []model.Line) error {
	if lines == nil {
		lines = []model.Line{}
	}
	return r.cache.Set(ctx, cartKey(userID), lines, r.ttl)
}

func (r *cartRepository) Invalidate(ctx context.Context, userID string) error {
	return r.cache.Delete(ctx, cartKey(userID))
}
