package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront_checkout/internal/domain/cart/model"
	"storefront_checkout/internal/domain/cart/repository"
	"storefront_checkout/internal/pkg/storefront"
	"storefront_checkout/internal/pkg/worker"
	"storefront_checkout/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrCartBusy        = errors.New("cart sync queue is full, try again later")
)

// RemoteCart 商城后端购物车接口
type RemoteCart interface {
	GetCart(ctx context.Context) ([]model.Line, error)
	UpdateCartItem(ctx context.Context, itemID string, quantity int) error
	RemoveCartItem(ctx context.Context, itemID string) error
	MergeCart(ctx context.Context, items []model.GuestItem) error
}

// CartService 购物车：本地视图乐观更新，后台与后端对账
type CartService interface {
	Get(ctx context.Context, userID string) ([]model.Line, error)
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) ([]model.Line, error)
	Remove(ctx context.Context, userID, itemID string) ([]model.Line, error)
	MergeGuest(ctx context.Context, userID string, items []model.GuestItem) ([]model.Line, error)
	Invalidate(ctx context.Context, userID string) error
	Start()
	Stop()
}

// Options 对账 worker 池参数
type Options struct {
	Workers  int
	Queue    int
	MaxRetry int
	Backoff  time.Duration
}

type taskQueue interface {
	AddTask(task model.SyncTask) bool
}

type cartService struct {
	repo   repository.CartRepository
	remote RemoteCart
	pool   *worker.WorkerPool[model.SyncTask]
	queue  taskQueue
	group  singleflight.Group
	locks  sync.Map // userID -> *sync.Mutex
}

func NewCartService(repo repository.CartRepository, remote RemoteCart, opts Options) CartService {
	s := &cartService{repo: repo, remote: remote}
	s.pool = worker.NewWorkerPool("cart-sync", s.reconcile, opts.Workers, opts.Queue)
	if opts.MaxRetry > 0 {
		s.pool.WithRetry(opts.MaxRetry, opts.Backoff)
	}
	s.pool.OnDrop = s.discard
	s.queue = s.pool
	return s
}

func (s *cartService) Start() { s.pool.Start() }
func (s *cartService) Stop()  { s.pool.Stop() }

func (s *cartService) lock(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Get 拉取后端购物车并与本地视图合并；后端不可用时返回本地旧视图
func (s *cartService) Get(ctx context.Context, userID string) ([]model.Line, error) {
	v, err, _ := s.group.Do(userID, func() (interface{}, error) {
		return s.refresh(ctx, userID)
	})
	if err != nil {
		local, lerr := s.repo.Get(ctx, userID)
		if lerr != nil {
			return nil, err
		}
		logger.Log.Warn("cart refetch failed, serving local view", zap.String("user_id", userID), zap.Error(err))
		return local, nil
	}
	lines := v.([]model.Line)
	return append([]model.Line(nil), lines...), nil
}

func (s *cartService) refresh(ctx context.Context, userID string) ([]model.Line, error) {
	server, err := s.remote.GetCart(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}

	unlock := s.lock(userID)
	defer unlock()

	local, err := s.repo.Get(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNoLocalView) {
		logger.Log.Warn("read local cart view failed", zap.String("user_id", userID), zap.Error(err))
	}
	merged := Merge(local, server)
	if err := s.repo.Save(ctx, userID, merged); err != nil {
		logger.Log.Warn("save local cart view failed", zap.String("user_id", userID), zap.Error(err))
	}
	return merged, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) ([]model.Line, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	return s.mutate(ctx, userID, itemID, model.SyncTask{Op: model.OpUpdate, Quantity: quantity}, func(lines []model.Line, i int) []model.Line {
		lines[i].Quantity = quantity
		return lines
	})
}

func (s *cartService) Remove(ctx context.Context, userID, itemID string) ([]model.Line, error) {
	return s.mutate(ctx, userID, itemID, model.SyncTask{Op: model.OpRemove}, func(lines []model.Line, i int) []model.Line {
		return append(lines[:i], lines[i+1:]...)
	})
}

// mutate 先改本地视图并立即返回，再把远端变更交给 worker 池
func (s *cartService) mutate(ctx context.Context, userID, itemID string, task model.SyncTask, apply func([]model.Line, int) []model.Line) ([]model.Line, error) {
	unlock := s.lock(userID)
	defer unlock()

	lines, err := s.repo.Get(ctx, userID)
	if errors.Is(err, repository.ErrNoLocalView) {
		lines, err = s.remote.GetCart(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	i := model.Find(lines, itemID)
	if i < 0 {
		return nil, ErrItemNotFound
	}
	lines = apply(lines, i)
	if err := s.repo.Save(ctx, userID, lines); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	task.UserID = userID
	task.ItemID = itemID
	task.AuthToken = storefront.AuthToken(ctx)
	task.TraceID = storefront.TraceID(ctx)
	if !s.queue.AddTask(task) {
		return nil, ErrCartBusy
	}
	return lines, nil
}

func (s *cartService) MergeGuest(ctx context.Context, userID string, items []model.GuestItem) ([]model.Line, error) {
	if len(items) > 0 {
		if err := s.remote.MergeCart(ctx, items); err != nil {
			return nil, fmt.Errorf("merge guest cart: %w", err)
		}
	}
	return s.refresh(ctx, userID)
}

func (s *cartService) Invalidate(ctx context.Context, userID string) error {
	return s.repo.Invalidate(ctx, userID)
}

// reconcile worker 执行：同步远端变更，再用后端结果重建本地视图
func (s *cartService) reconcile(ctx context.Context, task model.SyncTask) error {
	ctx = storefront.WithTraceID(storefront.WithAuthToken(ctx, task.AuthToken), task.TraceID)

	var err error
	switch task.Op {
	case model.OpUpdate:
		err = s.remote.UpdateCartItem(ctx, task.ItemID, task.Quantity)
	case model.OpRemove:
		err = s.remote.RemoveCartItem(ctx, task.ItemID)
	default:
		return worker.Permanent(fmt.Errorf("unknown cart op %q", task.Op))
	}
	if err != nil {
		if storefront.IsClientError(err) {
			return worker.Permanent(err)
		}
		return err
	}

	// 变更已生效，刷新失败不重试变更，清掉本地视图让下次读取走后端
	if _, err := s.refresh(ctx, task.UserID); err != nil {
		logger.Log.Warn("cart refetch after sync failed", zap.String("user_id", task.UserID), zap.Error(err))
		s.invalidateQuietly(task.UserID)
	}
	return nil
}

// discard 对账最终失败，本地视图不可信
func (s *cartService) discard(task model.SyncTask, err error) {
	logger.Log.Warn("cart sync dropped, invalidating local view",
		zap.String("user_id", task.UserID),
		zap.String("op", string(task.Op)),
		zap.String("item_id", task.ItemID),
		zap.Error(err),
	)
	s.invalidateQuietly(task.UserID)
}

func (s *cartService) invalidateQuietly(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.repo.Invalidate(ctx, userID); err != nil {
		logger.Log.Error("invalidate cart view failed", zap.String("user_id", userID), zap.Error(err))
	}
}
