package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront_checkout/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrSubmitInProgress 同一用户已有一次提交在进行中
	ErrSubmitInProgress = errors.New("order submission already in progress")
	// ErrSubmitLocked 令牌已使用 (下单成功或结果未知)，需要重新进入结账流程
	ErrSubmitLocked = errors.New("checkout already submitted, start a new checkout")
)

// TokenState 提交令牌状态 ready -> submitting -> consumed
type TokenState string

const (
	TokenMissing    TokenState = ""
	TokenReady      TokenState = "ready"
	TokenSubmitting TokenState = "submitting"
	TokenConsumed   TokenState = "consumed"
)

// TokenGenerator 后端签发一次性下单令牌
type TokenGenerator interface {
	GenerateOrderToken(ctx context.Context) (string, error)
}

// TokenManager 每个用户一份下单令牌，保证同一时刻最多一个进行中的提交
type TokenManager interface {
	// Prepare 返回可用令牌；没有或已使用时向后端申请新令牌
	Prepare(ctx context.Context, userID string) (string, error)
	// Acquire ready -> submitting，返回令牌
	Acquire(ctx context.Context, userID string) (string, error)
	// Complete submitting -> consumed
	Complete(ctx context.Context, userID string) error
	// Release submitting -> ready，令牌可安全重用 (请求未到达后端或后端暂时故障)
	Release(ctx context.Context, userID string) error
	// Renew 丢弃当前令牌并申请新令牌
	Renew(ctx context.Context, userID string) (string, error)
	State(ctx context.Context, userID string) (TokenState, error)
}

// acquireScript 原子地检查并切换状态
var acquireScript = redis.NewScript(`
	local key = KEYS[1]
	local ttl = tonumber(ARGV[1])

	local state = redis.call("HGET", key, "state")
	if not state then
		return {-1, ""} -- 没有令牌
	end
	if state == "submitting" then
		return {-2, ""} -- 提交中
	end
	if state == "consumed" then
		return {-3, ""} -- 已使用
	end

	redis.call("HSET", key, "state", "submitting")
	redis.call("PEXPIRE", key, ttl)
	return {1, redis.call("HGET", key, "token")}
`)

// transitionScript from -> to，状态不符时不修改
var transitionScript = redis.NewScript(`
	local key = KEYS[1]
	if redis.call("HGET", key, "state") ~= ARGV[1] then
		return 0
	end
	redis.call("HSET", key, "state", ARGV[2])
	redis.call("PEXPIRE", key, tonumber(ARGV[3]))
	return 1
`)

// storeScript 写入新令牌，提交中的令牌不会被覆盖
var storeScript = redis.NewScript(`
	local key = KEYS[1]
	if redis.call("HGET", key, "state") == "submitting" then
		return 0
	end
	redis.call("HSET", key, "token", ARGV[1], "state", "ready")
	redis.call("PEXPIRE", key, tonumber(ARGV[2]))
	return 1
`)

type tokenManager struct {
	rdb       *redis.Client
	generator TokenGenerator
	ttl       time.Duration
}

func NewTokenManager(rdb *redis.Client, generator TokenGenerator, ttl time.Duration) TokenManager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &tokenManager{rdb: rdb, generator: generator, ttl: ttl}
}

func tokenKey(userID string) string {
	return fmt.Sprintf("checkout:token:%s", userID)
}

func (m *tokenManager) State(ctx context.Context, userID string) (TokenState, error) {
	state, err := m.rdb.HGet(ctx, tokenKey(userID), "state").Result()
	if errors.Is(err, redis.Nil) {
		return TokenMissing, nil
	}
	if err != nil {
		return TokenMissing, fmt.Errorf("redis error: %w", err)
	}
	return TokenState(state), nil
}

func (m *tokenManager) Prepare(ctx context.Context, userID string) (string, error) {
	vals, err := m.rdb.HMGet(ctx, tokenKey(userID), "state", "token").Result()
	if err != nil {
		return "", fmt.Errorf("redis error: %w", err)
	}
	state, _ := vals[0].(string)
	token, _ := vals[1].(string)

	switch TokenState(state) {
	case TokenReady:
		if token != "" {
			return token, nil
		}
	case TokenSubmitting:
		return "", ErrSubmitInProgress
	}
	return m.fetch(ctx, userID)
}

func (m *tokenManager) fetch(ctx context.Context, userID string) (string, error) {
	token, err := m.generator.GenerateOrderToken(ctx)
	if err != nil {
		return "", fmt.Errorf("generate order token: %w", err)
	}
	stored, err := storeScript.Run(ctx, m.rdb, []string{tokenKey(userID)}, token, m.ttl.Milliseconds()).Int()
	if err != nil {
		return "", fmt.Errorf("redis error: %w", err)
	}
	if stored == 0 {
		return "", ErrSubmitInProgress
	}
	return token, nil
}

func (m *tokenManager) Acquire(ctx context.Context, userID string) (string, error) {
	for i := 0; i < 2; i++ {
		res, err := acquireScript.Run(ctx, m.rdb, []string{tokenKey(userID)}, m.ttl.Milliseconds()).Slice()
		if err != nil {
			return "", fmt.Errorf("redis error: %w", err)
		}
		code, _ := res[0].(int64)
		switch code {
		case 1:
			token, _ := res[1].(string)
			return token, nil
		case -2:
			return "", ErrSubmitInProgress
		case -3:
			return "", ErrSubmitLocked
		}
		// 没有令牌：申请一个再试一次
		if _, err := m.fetch(ctx, userID); err != nil {
			return "", err
		}
	}
	return "", ErrSubmitInProgress
}

func (m *tokenManager) Complete(ctx context.Context, userID string) error {
	return m.transition(ctx, userID, TokenSubmitting, TokenConsumed)
}

func (m *tokenManager) Release(ctx context.Context, userID string) error {
	return m.transition(ctx, userID, TokenSubmitting, TokenReady)
}

func (m *tokenManager) transition(ctx context.Context, userID string, from, to TokenState) error {
	ok, err := transitionScript.Run(ctx, m.rdb, []string{tokenKey(userID)}, string(from), string(to), m.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if ok == 0 {
		logger.Log.Warn("token transition skipped",
			zap.String("user_id", userID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
	}
	return nil
}

// Renew 申请失败时清掉状态，下次 Acquire 会重新申请
func (m *tokenManager) Renew(ctx context.Context, userID string) (string, error) {
	key := tokenKey(userID)
	if err := m.rdb.Del(ctx, key).Err(); err != nil {
		return "", fmt.Errorf("redis error: %w", err)
	}
	token, err := m.fetch(ctx, userID)
	if err != nil {
		logger.Log.Warn("renew order token failed", zap.String("user_id", userID), zap.Error(err))
		return "", err
	}
	return token, nil
}
