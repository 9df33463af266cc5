package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefront_checkout/internal/domain/payment/model"
	"storefront_checkout/internal/pkg/storefront"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound    = errors.New("poll session not found")
	ErrMissingCallbackKey = errors.New("callback carries neither a payment number nor an order number")
	ErrTrackerClosed      = errors.New("poll tracker is closed")
)

// SessionKind 轮询会话所在页面
type SessionKind string

const (
	KindProcessing SessionKind = "processing"
	KindCallback   SessionKind = "callback"
)

// Snapshot 会话当前状态
type Snapshot struct {
	ID        string              `json:"id"`
	Kind      SessionKind         `json:"kind"`
	PaymentSn string              `json:"paymentSn,omitempty"`
	OrderSn   string              `json:"orderSn,omitempty"`
	Attempt   int                 `json:"attempt"`
	Status    model.PaymentStatus `json:"status,omitempty"`
	Message   string              `json:"message,omitempty"`
	Outcome   *Outcome            `json:"outcome,omitempty"`
	Done      bool                `json:"done"`
}

// session 一个页面实例对应的轮询，stop 之后不再接受任何更新
type session struct {
	id        string
	key       string
	kind      SessionKind
	paymentSn string
	orderSn   string
	cancel    context.CancelFunc

	mu       sync.Mutex
	progress Progress
	outcome  *Outcome
	done     bool
	stopped  bool
	lastSeen time.Time
	endedAt  time.Time
}

func (s *session) OnProgress(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.done {
		return
	}
	s.progress = p
}

func (s *session) OnOutcome(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.done {
		return
	}
	s.outcome = &o
	s.done = true
}

func (s *session) snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:        s.id,
		Kind:      s.kind,
		PaymentSn: s.paymentSn,
		OrderSn:   s.orderSn,
		Attempt:   s.progress.Attempt,
		Status:    s.progress.Status,
		Message:   s.progress.Message,
		Done:      s.done || s.stopped,
	}
	if s.outcome != nil {
		o := *s.outcome
		snap.Outcome = &o
	}
	return snap
}

// stop 标记停止并取消轮询，返回是否是第一次停止
func (s *session) stop(now time.Time) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.stopped = true
	if s.endedAt.IsZero() {
		s.endedAt = now
	}
	s.mu.Unlock()
	s.cancel()
	return true
}

// TrackerOptions 会话租约和保留时间
type TrackerOptions struct {
	// 客户端超过 Lease 未读取即视为页面关闭
	Lease time.Duration
	// 结束的会话保留多久供客户端读取结果
	Retention time.Duration
	// janitor 扫描间隔，默认 Lease/2
	SweepInterval time.Duration
	Now           func() time.Time
}

// Tracker 管理轮询会话；同一用户的同一页面 (kind + 支付单号) 只有一个轮询在跑
type Tracker struct {
	poller *StatusPoller
	opts   TrackerOptions
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	byKey    map[string]*session
	closed   bool

	wg        sync.WaitGroup
	stopSweep chan struct{}
	sweepDone chan struct{}
}

func NewTracker(p *StatusPoller, opts TrackerOptions) *Tracker {
	if opts.Lease <= 0 {
		opts.Lease = 30 * time.Second
	}
	if opts.Retention <= 0 {
		opts.Retention = 2 * opts.Lease
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = opts.Lease / 2
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	t := &Tracker{
		poller:    p,
		opts:      opts,
		now:       opts.Now,
		sessions:  make(map[string]*session),
		byKey:     make(map[string]*session),
		stopSweep: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	go t.janitor()
	return t
}

// StartProcessing ctx 只用于携带调用方的认证信息，轮询不随请求结束而取消
func (t *Tracker) StartProcessing(ctx context.Context, req ProcessingRequest) (Snapshot, error) {
	key := sessionKey(KindProcessing, req.UserID, req.PaymentSn)
	return t.start(ctx, key, KindProcessing, req.PaymentSn, req.OrderSn, func(ctx context.Context, s *session) {
		t.poller.RunProcessing(ctx, req, s)
	})
}

func (t *Tracker) StartCallback(ctx context.Context, req CallbackRequest) (Snapshot, error) {
	paymentSn := req.Params.PaymentKey()
	ref := paymentSn
	if ref == "" {
		ref = "order:" + req.Params.OrderSn
	}
	if paymentSn == "" && req.Params.OrderSn == "" && !req.Params.Cancelled {
		return Snapshot{}, ErrMissingCallbackKey
	}
	key := sessionKey(KindCallback, req.UserID, ref)
	return t.start(ctx, key, KindCallback, paymentSn, req.Params.OrderSn, func(ctx context.Context, s *session) {
		t.poller.RunCallback(ctx, req, s)
	})
}

// sessionKey 会话按用户隔离，不同用户带同一个支付单号也各自轮询
func sessionKey(kind SessionKind, userID, ref string) string {
	return string(kind) + ":" + userID + ":" + ref
}

func (t *Tracker) start(parent context.Context, key string, kind SessionKind, paymentSn, orderSn string, run func(context.Context, *session)) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Snapshot{}, ErrTrackerClosed
	}

	now := t.now()
	if existing, ok := t.byKey[key]; ok {
		existing.mu.Lock()
		stopped := existing.stopped
		if !stopped {
			existing.lastSeen = now
		}
		existing.mu.Unlock()
		if !stopped {
			return existing.snapshot(), nil
		}
	}

	ctx, cancel := context.WithCancel(storefront.Detach(parent))
	s := &session{
		id:        uuid.NewString(),
		key:       key,
		kind:      kind,
		paymentSn: paymentSn,
		orderSn:   orderSn,
		cancel:    cancel,
		lastSeen:  now,
	}
	t.sessions[s.id] = s
	t.byKey[key] = s

	metrics.PollSessionStarted()
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer metrics.PollSessionStopped()
		defer cancel()
		run(ctx, s)
		s.mu.Lock()
		if s.endedAt.IsZero() {
			s.endedAt = t.now()
		}
		s.mu.Unlock()
	}()

	logger.Log.Debug("poll session started",
		zap.String("session_id", s.id),
		zap.String("kind", string(kind)),
		zap.String("payment_sn", paymentSn),
	)
	return s.snapshot(), nil
}

// Get 读取会话并续租
func (t *Tracker) Get(id string) (Snapshot, error) {
	t.mu.Lock()
	s, ok := t.sessions[id]
	t.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrSessionNotFound
	}
	s.mu.Lock()
	s.lastSeen = t.now()
	s.mu.Unlock()
	return s.snapshot(), nil
}

// Stop 页面卸载：取消等待中的轮询，之后不再有状态变化
func (t *Tracker) Stop(id string) error {
	t.mu.Lock()
	s, ok := t.sessions[id]
	t.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	if s.stop(t.now()) {
		logger.Log.Debug("poll session stopped", zap.String("session_id", id))
	}
	return nil
}

func (t *Tracker) janitor() {
	defer close(t.sweepDone)
	ticker := time.NewTicker(t.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopSweep:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

// sweep 停掉租约过期的会话，清理保留期已过的会话
func (t *Tracker) sweep() {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, s := range t.sessions {
		s.mu.Lock()
		expired := !s.done && !s.stopped && now.Sub(s.lastSeen) > t.opts.Lease
		ended := (s.done || s.stopped) && !s.endedAt.IsZero() && now.Sub(s.endedAt) > t.opts.Retention
		s.mu.Unlock()

		if expired {
			s.stop(now)
			logger.Log.Debug("poll session lease expired", zap.String("session_id", id))
			continue
		}
		if ended {
			delete(t.sessions, id)
			if t.byKey[s.key] == s {
				delete(t.byKey, s.key)
			}
		}
	}
}

// Close 停止所有会话并等待轮询协程退出
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	now := t.now()
	for _, s := range t.sessions {
		s.stop(now)
	}
	t.mu.Unlock()

	close(t.stopSweep)
	<-t.sweepDone
	t.wg.Wait()
}

// Len 当前跟踪的会话数
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
