package storefront

import "context"

type ctxKey int

const (
	authTokenKey ctxKey = iota
	traceIDKey
)

// WithAuthToken 把调用方的 bearer token 放入 ctx，转发给后端
func WithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authTokenKey, token)
}

func AuthToken(ctx context.Context) string {
	v, _ := ctx.Value(authTokenKey).(string)
	return v
}

// WithTraceID 透传链路 ID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceIDKey).(string)
	return v
}

// Detach 保留认证和链路信息，但不继承取消信号 (用于后台任务)
func Detach(ctx context.Context) context.Context {
	out := context.Background()
	if token := AuthToken(ctx); token != "" {
		out = WithAuthToken(out, token)
	}
	if traceID := TraceID(ctx); traceID != "" {
		out = WithTraceID(out, traceID)
	}
	return out
}
