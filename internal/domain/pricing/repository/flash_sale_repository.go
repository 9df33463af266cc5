package repository

import (
	"context"
	"errors"
	"time"

	"storefront_checkout/internal/domain/pricing/model"
	"storefront_checkout/pkg/cache"
	"storefront_checkout/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const flashSaleKey = "flash-sale:current"

// FlashSaleSource 秒杀场次数据源 (商城后端)
type FlashSaleSource interface {
	CurrentFlashSale(ctx context.Context) (*model.FlashSaleFeed, error)
}

// cachedFeed 没有场次时也缓存，避免每次结账都打到后端
type cachedFeed struct {
	Feed *model.FlashSaleFeed `json:"feed"`
}

// FlashSaleRepository 带短 TTL 缓存的秒杀场次读取
type FlashSaleRepository struct {
	source FlashSaleSource
	cache  cache.CacheService
	ttl    time.Duration
	group  singleflight.Group
}

func NewFlashSaleRepository(source FlashSaleSource, c cache.CacheService, ttl time.Duration) *FlashSaleRepository {
	return &FlashSaleRepository{source: source, cache: c, ttl: ttl}
}

// CurrentFlashSale 先读缓存，未命中时合并并发请求回源
func (r *FlashSaleRepository) CurrentFlashSale(ctx context.Context) (*model.FlashSaleFeed, error) {
	var cached cachedFeed
	err := r.cache.Get(ctx, flashSaleKey, &cached)
	if err == nil {
		return cached.Feed, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Log.Warn("flash sale cache read failed", zap.Error(err))
	}

	v, err, _ := r.group.Do(flashSaleKey, func() (interface{}, error) {
		feed, err := r.source.CurrentFlashSale(ctx)
		if err != nil {
			return nil, err
		}
		if r.ttl > 0 {
			if err := r.cache.Set(ctx, flashSaleKey, cachedFeed{Feed: feed}, r.ttl); err != nil {
				logger.Log.Warn("flash sale cache write failed", zap.Error(err))
			}
		}
		return feed, nil
	})
	if err != nil {
		return nil, err
	}
	feed, _ := v.(*model.FlashSaleFeed)
	return feed, nil
}
