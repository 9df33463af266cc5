package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrTokenConflict 令牌失效或已被使用，新令牌已经就绪
	ErrTokenConflict = errors.New("order token conflict, please retry")
	// ErrOrderPollTimeout 订单仍在创建中，需要用户稍后自行查看
	ErrOrderPollTimeout = errors.New("order is still being created, please check your orders later")
)

// ValidationError 收货信息或提交内容不完整，未发出任何网络请求
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, e.Fields[k]))
	}
	return "invalid checkout: " + strings.Join(parts, ", ")
}

// ConflictError 携带重新申请到的令牌 (可能为空)
type ConflictError struct {
	Token string
	Err   error
}

func (e *ConflictError) Error() string { return ErrTokenConflict.Error() }
func (e *ConflictError) Unwrap() error { return e.Err }
func (e *ConflictError) Is(target error) bool {
	return target == ErrTokenConflict
}

// CreateFailedError 后端确认订单创建失败
type CreateFailedError struct {
	OrderSn string
	Reason  string
}

func (e *CreateFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("order %s creation failed", e.OrderSn)
	}
	return fmt.Sprintf("order %s creation failed: %s", e.OrderSn, e.Reason)
}

// PollTimeoutError 轮询次数用尽，订单状态未知
type PollTimeoutError struct {
	OrderSn  string
	Attempts int
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("%s (order %s, %d attempts)", ErrOrderPollTimeout.Error(), e.OrderSn, e.Attempts)
}

func (e *PollTimeoutError) Is(target error) bool {
	return target == ErrOrderPollTimeout
}
