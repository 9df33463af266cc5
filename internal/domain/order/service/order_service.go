package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"storefront_checkout/internal/domain/order/model"
	"storefront_checkout/internal/pkg/events"
	"storefront_checkout/internal/pkg/poller"
	"storefront_checkout/internal/pkg/storefront"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// OrderBackend 商城后端订单接口
type OrderBackend interface {
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error)
	GetOrderStatus(ctx context.Context, orderSn string) (*model.Order, error)
	GetOrderDetail(ctx context.Context, orderSn string) (*model.Order, error)
	CancelOrder(ctx context.Context, orderSn string) error
}

// CartInvalidator 下单成功后清掉本地购物车视图
type CartInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// OrderService 结账提交
type OrderService interface {
	PrepareCheckout(ctx context.Context, userID string) (string, error)
	Submit(ctx context.Context, userID string, req model.SubmitRequest) (*model.Order, error)
	Detail(ctx context.Context, orderSn string) (*model.Order, error)
	Cancel(ctx context.Context, orderSn string) error
}

type orderService struct {
	backend  OrderBackend
	tokens   TokenManager
	cart     CartInvalidator
	events   events.Publisher
	policy   poller.Policy
	validate *validator.Validate
}

func NewOrderService(backend OrderBackend, tokens TokenManager, cart CartInvalidator, publisher events.Publisher, policy poller.Policy) OrderService {
	v := validator.New()
	// 错误信息使用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &orderService{
		backend:  backend,
		tokens:   tokens,
		cart:     cart,
		events:   publisher,
		policy:   policy,
		validate: v,
	}
}

func (s *orderService) PrepareCheckout(ctx context.Context, userID string) (string, error) {
	return s.tokens.Prepare(ctx, userID)
}

// Submit 校验 -> 占用令牌 -> 下单 -> (异步创建时) 轮询状态
func (s *orderService) Submit(ctx context.Context, userID string, req model.SubmitRequest) (*model.Order, error) {
	req.Shipping = req.Shipping.Normalize()
	if err := s.check(req); err != nil {
		metrics.IncSubmission("invalid")
		return nil, err
	}

	token, err := s.tokens.Acquire(ctx, userID)
	if err != nil {
		metrics.IncSubmission("rejected")
		return nil, err
	}

	log := logger.Log.With(zap.String("user_id", userID))
	order, err := s.backend.CreateOrder(ctx, model.CreateOrderRequest{
		OrderToken:  token,
		CartItemIDs: req.CartItemIDs,
		CouponID:    req.CouponID,
		Shipping:    req.Shipping,
	})
	if err != nil {
		return nil, s.createError(ctx, userID, err)
	}
	log = log.With(zap.String("order_sn", order.OrderSn))

	switch order.Status {
	case model.StatusCreateFailed:
		return nil, s.failed(ctx, userID, &CreateFailedError{OrderSn: order.OrderSn, Reason: order.FailReason})
	case model.StatusPendingPayment:
	default:
		// CREATING 以及其他非终态都继续轮询，只有 PENDING_PAYMENT 算下单成功
		if order.Status != model.StatusCreating {
			log.Warn("unexpected order status from create, polling", zap.String("status", order.Status.String()))
		}
		order, err = s.awaitCreation(ctx, order.OrderSn)
		if err != nil {
			var failed *CreateFailedError
			if errors.As(err, &failed) {
				return nil, s.failed(ctx, userID, failed)
			}
			// 超时或取消：结果未知，保持提交锁定
			s.complete(ctx, userID)
			metrics.IncSubmission("timeout")
			log.Warn("order creation outcome unknown", zap.Error(err))
			return nil, err
		}
	}

	s.complete(ctx, userID)
	if err := s.cart.Invalidate(ctx, userID); err != nil {
		log.Warn("invalidate cart view failed", zap.Error(err))
	}
	metrics.IncSubmission("success")
	events.PublishOrLog(ctx, s.events, events.Event{
		Type:    events.TypeOrderCreated,
		OrderSn: order.OrderSn,
		Payload: map[string]interface{}{"userId": userID, "payAmount": order.PayAmount},
	})
	log.Info("order placed", zap.String("status", order.Status.String()))
	return order, nil
}

func (s *orderService) check(req model.SubmitRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Fields: map[string]string{"request": err.Error()}}
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[name] = "is required"
		case "min":
			fields[name] = "must not be empty"
		case "max":
			fields[name] = fmt.Sprintf("must be at most %s characters", fe.Param())
		default:
			fields[name] = "is invalid"
		}
	}
	return &ValidationError{Fields: fields}
}

// createError 区分令牌冲突、确认失败和结果不确定三种情况
func (s *orderService) createError(ctx context.Context, userID string, err error) error {
	if storefront.IsConflict(err) {
		metrics.IncSubmission("conflict")
		token, rerr := s.tokens.Renew(ctx, userID)
		if rerr != nil {
			token = ""
		}
		return &ConflictError{Token: token, Err: err}
	}
	if storefront.IsClientError(err) {
		metrics.IncSubmission("failed")
		if _, rerr := s.tokens.Renew(ctx, userID); rerr != nil {
			logger.Log.Warn("renew token after failed create", zap.String("user_id", userID), zap.Error(rerr))
		}
		return fmt.Errorf("create order: %w", err)
	}

	// 请求可能没有到达后端，同一令牌重试由后端去重
	metrics.IncSubmission("error")
	if rerr := s.tokens.Release(ctx, userID); rerr != nil {
		logger.Log.Warn("release token failed", zap.String("user_id", userID), zap.Error(rerr))
	}
	return fmt.Errorf("create order: %w", err)
}

func (s *orderService) failed(ctx context.Context, userID string, err *CreateFailedError) error {
	metrics.IncSubmission("failed")
	if _, rerr := s.tokens.Renew(ctx, userID); rerr != nil {
		logger.Log.Warn("renew token after create failure", zap.String("user_id", userID), zap.Error(rerr))
	}
	return err
}

func (s *orderService) complete(ctx context.Context, userID string) {
	if err := s.tokens.Complete(ctx, userID); err != nil {
		logger.Log.Error("complete order token failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// awaitCreation 每次查询前先等待一个间隔
func (s *orderService) awaitCreation(ctx context.Context, orderSn string) (*model.Order, error) {
	var created *model.Order
	err := poller.Run(ctx, s.policy, func(ctx context.Context, attempt int) (bool, error) {
		o, err := s.backend.GetOrderStatus(ctx, orderSn)
		if err != nil {
			metrics.IncPollAttempt("order", "error")
			logger.Log.Warn("poll order status failed",
				zap.String("order_sn", orderSn),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return false, err
		}
		switch o.Status {
		case model.StatusCreating:
			metrics.IncPollAttempt("order", "pending")
			return false, nil
		case model.StatusCreateFailed:
			metrics.IncPollAttempt("order", "failed")
			return true, &CreateFailedError{OrderSn: orderSn, Reason: o.FailReason}
		case model.StatusPendingPayment:
			metrics.IncPollAttempt("order", "created")
			if o.OrderSn == "" {
				o.OrderSn = orderSn
			}
			created = o
			return true, nil
		default:
			metrics.IncPollAttempt("order", "unexpected")
			logger.Log.Warn("unexpected order status while creating",
				zap.String("order_sn", orderSn),
				zap.Int("attempt", attempt),
				zap.String("status", o.Status.String()),
			)
			return false, nil
		}
	})
	if errors.Is(err, poller.ErrExhausted) {
		return nil, &PollTimeoutError{OrderSn: orderSn, Attempts: s.policy.MaxAttempts}
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *orderService) Detail(ctx context.Context, orderSn string) (*model.Order, error) {
	return s.backend.GetOrderDetail(ctx, orderSn)
}

func (s *orderService) Cancel(ctx context.Context, orderSn string) error {
	if err := s.backend.CancelOrder(ctx, orderSn); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderSn, err)
	}
	logger.Log.Info("order cancelled", zap.String("order_sn", orderSn))
	return nil
}
