package poller

import (
	"context"
	"errors"
	"time"

	"storefront_checkout/internal/pkg/config"
)

// ErrExhausted 轮询次数用尽仍未到达终态
var ErrExhausted = errors.New("poller: attempts exhausted")

// Policy 轮询策略
type Policy struct {
	Interval time.Duration
	// 上一次 tick 返回错误后的等待时间，为 0 时沿用 Interval
	ErrorInterval time.Duration
	// 0 表示不限次数，只能通过 ctx 取消
	MaxAttempts int
	// 第一次 tick 是否立即执行 (否则先等待一个 Interval)
	Immediate bool
}

// FromConfig 由配置生成策略
func FromConfig(c config.PollConfig, immediate bool) Policy {
	return Policy{
		Interval:      c.Interval,
		ErrorInterval: c.ErrorInterval,
		MaxAttempts:   c.MaxAttempts,
		Immediate:     immediate,
	}
}

func (p Policy) Bounded() bool {
	return p.MaxAttempts > 0
}

// Tick 单次轮询，attempt 从 1 开始
//
//	done=true,  err=nil  终态，Run 返回 nil
//	done=true,  err!=nil 致命错误，Run 立即返回 err
//	done=false, err!=nil 暂时性错误，按 ErrorInterval 重试，计入次数
//	done=false, err=nil  非终态，按 Interval 继续
type Tick func(ctx context.Context, attempt int) (done bool, err error)

// Run 按策略执行 tick 直到终态、次数用尽或 ctx 取消。
// 每次等待都可被 ctx 打断，取消后不再调用 tick。
func Run(ctx context.Context, p Policy, tick Tick) error {
	var lastErr error
	for attempt := 1; !p.Bounded() || attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 || !p.Immediate {
			if err := sleep(ctx, p.wait(lastErr)); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		done, err := tick(ctx, attempt)
		if done {
			return err
		}
		lastErr = err
	}
	return ErrExhausted
}

func (p Policy) wait(lastErr error) time.Duration {
	if lastErr != nil && p.ErrorInterval > 0 {
		return p.ErrorInterval
	}
	return p.Interval
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sleep 可取消的等待，供终态展示延迟等场景使用
func Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}
