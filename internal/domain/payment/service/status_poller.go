package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	orderModel "storefront_checkout/internal/domain/order/model"
	"storefront_checkout/internal/domain/payment/model"
	"storefront_checkout/internal/pkg/config"
	"storefront_checkout/internal/pkg/events"
	"storefront_checkout/internal/pkg/poller"
	"storefront_checkout/internal/pkg/push"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/metrics"

	"go.uber.org/zap"
)

// 空的支付详情按错误处理 (回跳页使用较长的重试间隔)
var errEmptyDetail = errors.New("payment detail is empty")

// OutcomeKind 轮询结束后的去向
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "SUCCESS"
	OutcomeFailure   OutcomeKind = "FAILURE"
	OutcomeTimeout   OutcomeKind = "TIMEOUT"
	OutcomeCancelled OutcomeKind = "CANCELLED"
	// OutcomePending 结果未定，交给订单详情页
	OutcomePending OutcomeKind = "PENDING"
)

// Outcome 轮询终态及跳转地址
type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	Route     string      `json:"route"`
	OrderSn   string      `json:"orderSn,omitempty"`
	PaymentSn string      `json:"paymentSn,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// Progress 轮询进度
type Progress struct {
	Attempt int                 `json:"attempt"`
	Status  model.PaymentStatus `json:"status,omitempty"`
	Message string              `json:"message"`
}

// Observer 接收轮询进度和终态
type Observer interface {
	OnProgress(p Progress)
	OnOutcome(o Outcome)
}

// DetailSource 轮询数据来源
type DetailSource interface {
	Detail(ctx context.Context, paymentSn string) (*model.PaymentRecord, error)
	OrderDetail(ctx context.Context, orderSn string) (*orderModel.Order, error)
}

// Routes 前端跳转地址模板，%s 为订单号
type Routes struct {
	Confirmation string
	Failure      string
	OrderDetail  string
}

func RoutesFromConfig(c config.RoutesConfig) Routes {
	return Routes{Confirmation: c.Confirmation, Failure: c.Failure, OrderDetail: c.OrderDetail}
}

// fill 占位符在 ? 之后按查询参数转义，否则按路径段转义
func fill(tmpl, orderSn string) string {
	at := strings.Index(tmpl, "%s")
	if at < 0 {
		return tmpl
	}
	if q := strings.Index(tmpl, "?"); q >= 0 && q < at {
		return fmt.Sprintf(tmpl, url.QueryEscape(orderSn))
	}
	return fmt.Sprintf(tmpl, url.PathEscape(orderSn))
}

// PollerOptions 两个轮询点的节奏
type PollerOptions struct {
	Processing   poller.Policy
	Callback     poller.Policy
	DisplayDelay time.Duration
	Routes       Routes
}

// OptionsFromConfig 处理中页面第一次查询立即执行，回跳页同样立即查询
func OptionsFromConfig(c config.CheckoutConfig, r config.RoutesConfig) PollerOptions {
	return PollerOptions{
		Processing:   poller.FromConfig(c.ProcessingPoll, true),
		Callback:     poller.FromConfig(c.CallbackPoll, true),
		DisplayDelay: c.DisplayDelay,
		Routes:       RoutesFromConfig(r),
	}
}

// ProcessingRequest 处理中页面
type ProcessingRequest struct {
	UserID    string
	PaymentSn string
	OrderSn   string
}

// CallbackRequest 网关回跳页
type CallbackRequest struct {
	UserID string
	Params model.CallbackParams
}

var progressMessages = []string{
	"Confirming your payment…",
	"Waiting for the payment provider…",
	"Still working on it, please keep this page open…",
	"This is taking longer than usual…",
}

// progressMessage 每 5 次轮询换一条提示
func progressMessage(attempt int) string {
	if attempt < 1 {
		attempt = 1
	}
	return progressMessages[((attempt-1)/5)%len(progressMessages)]
}

// StatusPoller 支付结果轮询
type StatusPoller struct {
	source   DetailSource
	opts     PollerOptions
	events   events.Publisher
	notifier push.Notifier
}

func NewStatusPoller(source DetailSource, opts PollerOptions, publisher events.Publisher, notifier push.Notifier) *StatusPoller {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if notifier == nil {
		notifier = push.NopNotifier{}
	}
	return &StatusPoller{source: source, opts: opts, events: publisher, notifier: notifier}
}

// guard ctx 取消后不再产生任何效果
type guard struct {
	ctx context.Context
	obs Observer
}

func (g guard) progress(p Progress) {
	if g.ctx.Err() == nil {
		g.obs.OnProgress(p)
	}
}

func (g guard) outcome(o Outcome) bool {
	if g.ctx.Err() != nil {
		return false
	}
	g.obs.OnOutcome(o)
	return true
}

// RunProcessing 处理中页面：固定次数轮询，超时后交给订单详情页
func (p *StatusPoller) RunProcessing(ctx context.Context, req ProcessingRequest, obs Observer) {
	g := guard{ctx: ctx, obs: obs}
	log := logger.Log.With(zap.String("payment_sn", req.PaymentSn), zap.String("order_sn", req.OrderSn))

	var final *Outcome
	err := poller.Run(ctx, p.opts.Processing, func(ctx context.Context, attempt int) (bool, error) {
		rec, err := p.source.Detail(ctx, req.PaymentSn)
		if err == nil && rec == nil {
			err = errEmptyDetail
		}
		if err != nil {
			metrics.IncPollAttempt("processing", "error")
			log.Debug("poll payment detail failed", zap.Int("attempt", attempt), zap.Error(err))
			g.progress(Progress{Attempt: attempt, Message: progressMessage(attempt)})
			return false, err
		}

		orderSn := orderSnOf(rec, req.OrderSn)
		switch rec.PaymentStatus {
		case model.StatusSuccess:
			metrics.IncPollAttempt("processing", "success")
			g.progress(Progress{Attempt: attempt, Status: rec.PaymentStatus, Message: "Payment successful"})
			final = p.success(orderSn, rec.PaymentSn)
			return true, nil
		case model.StatusClosed, model.StatusRefunded:
			metrics.IncPollAttempt("processing", "failed")
			g.progress(Progress{Attempt: attempt, Status: rec.PaymentStatus, Message: "Payment failed"})
			final = p.failure(orderSn, rec.PaymentSn, rec.PaymentStatus)
			return true, nil
		default:
			metrics.IncPollAttempt("processing", "pending")
			g.progress(Progress{Attempt: attempt, Status: rec.PaymentStatus, Message: progressMessage(attempt)})
			return false, nil
		}
	})

	switch {
	case final != nil:
		p.finish(ctx, g, "processing", req.UserID, *final, p.opts.DisplayDelay)
	case errors.Is(err, poller.ErrExhausted):
		log.Warn("payment still pending after polling budget", zap.Int("attempts", p.opts.Processing.MaxAttempts))
		p.finish(ctx, g, "processing", req.UserID, Outcome{
			Kind:      OutcomeTimeout,
			Route:     fill(p.opts.Routes.OrderDetail, req.OrderSn),
			OrderSn:   req.OrderSn,
			PaymentSn: req.PaymentSn,
			Message:   "We have not received the payment result yet. Please check your order later.",
		}, 0)
	}
}

// RunCallback 网关回跳页
//
//	cancelled:     直接去订单详情页，不轮询
//	已带确认参数:   查询一次后跳转
//	其他:          不限次数轮询，直到终态或页面关闭
func (p *StatusPoller) RunCallback(ctx context.Context, req CallbackRequest, obs Observer) {
	g := guard{ctx: ctx, obs: obs}
	params := req.Params
	paymentSn := params.PaymentKey()

	if params.Cancelled {
		p.finish(ctx, g, "callback", req.UserID, Outcome{
			Kind:      OutcomeCancelled,
			Route:     fill(p.opts.Routes.OrderDetail, params.OrderSn),
			OrderSn:   params.OrderSn,
			PaymentSn: paymentSn,
			Message:   "Payment was cancelled.",
		}, 0)
		return
	}

	if params.HasConfirmation() {
		o := p.resolveOnce(ctx, paymentSn, params.OrderSn)
		g.progress(Progress{Attempt: 1, Message: "Payment result received"})
		p.finish(ctx, g, "callback", req.UserID, o, 0)
		return
	}

	var final *Outcome
	_ = poller.Run(ctx, p.opts.Callback, func(ctx context.Context, attempt int) (bool, error) {
		if paymentSn != "" {
			rec, err := p.source.Detail(ctx, paymentSn)
			if err == nil && rec == nil {
				err = errEmptyDetail
			}
			if err != nil {
				metrics.IncPollAttempt("callback", "error")
				g.progress(Progress{Attempt: attempt, Message: progressMessage(attempt)})
				return false, err
			}
			g.progress(Progress{Attempt: attempt, Status: rec.PaymentStatus, Message: progressMessage(attempt)})
			if o, ok := p.paymentOutcome(rec, params.OrderSn); ok {
				metrics.IncPollAttempt("callback", "terminal")
				final = &o
				return true, nil
			}
			metrics.IncPollAttempt("callback", "pending")
			return false, nil
		}

		order, err := p.source.OrderDetail(ctx, params.OrderSn)
		if err != nil {
			metrics.IncPollAttempt("callback", "error")
			g.progress(Progress{Attempt: attempt, Message: progressMessage(attempt)})
			return false, err
		}
		g.progress(Progress{Attempt: attempt, Message: progressMessage(attempt)})
		if o, ok := p.orderOutcome(order, params.OrderSn); ok {
			metrics.IncPollAttempt("callback", "terminal")
			final = &o
			return true, nil
		}
		metrics.IncPollAttempt("callback", "pending")
		return false, nil
	})

	if final != nil {
		p.finish(ctx, g, "callback", req.UserID, *final, 0)
	}
}

// resolveOnce 网关已经确认，只查询一次
func (p *StatusPoller) resolveOnce(ctx context.Context, paymentSn, orderSn string) Outcome {
	pending := Outcome{Kind: OutcomePending, Route: fill(p.opts.Routes.OrderDetail, orderSn), OrderSn: orderSn, PaymentSn: paymentSn}

	if paymentSn != "" {
		rec, err := p.source.Detail(ctx, paymentSn)
		if err != nil || rec == nil {
			logger.Log.Warn("confirm payment detail failed", zap.String("payment_sn", paymentSn), zap.Error(err))
			return pending
		}
		if o, ok := p.paymentOutcome(rec, orderSn); ok {
			return o
		}
		pending.OrderSn = orderSnOf(rec, orderSn)
		pending.Route = fill(p.opts.Routes.OrderDetail, pending.OrderSn)
		return pending
	}

	order, err := p.source.OrderDetail(ctx, orderSn)
	if err != nil {
		logger.Log.Warn("confirm order detail failed", zap.String("order_sn", orderSn), zap.Error(err))
		return pending
	}
	if o, ok := p.orderOutcome(order, orderSn); ok {
		return o
	}
	return pending
}

func (p *StatusPoller) paymentOutcome(rec *model.PaymentRecord, orderSn string) (Outcome, bool) {
	orderSn = orderSnOf(rec, orderSn)
	switch rec.PaymentStatus {
	case model.StatusSuccess:
		return *p.success(orderSn, rec.PaymentSn), true
	case model.StatusClosed, model.StatusRefunded:
		return *p.failure(orderSn, rec.PaymentSn, rec.PaymentStatus), true
	}
	return Outcome{}, false
}

func (p *StatusPoller) orderOutcome(order *orderModel.Order, orderSn string) (Outcome, bool) {
	if order.OrderSn != "" {
		orderSn = order.OrderSn
	}
	switch order.Status {
	case orderModel.StatusPaid, orderModel.StatusShipped, orderModel.StatusCompleted:
		return *p.success(orderSn, ""), true
	case orderModel.StatusCancelled:
		return Outcome{
			Kind:    OutcomeFailure,
			Route:   fill(p.opts.Routes.Failure, orderSn),
			OrderSn: orderSn,
			Message: "The order was cancelled.",
		}, true
	}
	return Outcome{}, false
}

func (p *StatusPoller) success(orderSn, paymentSn string) *Outcome {
	return &Outcome{
		Kind:      OutcomeSuccess,
		Route:     fill(p.opts.Routes.Confirmation, orderSn),
		OrderSn:   orderSn,
		PaymentSn: paymentSn,
		Message:   "Payment successful",
	}
}

func (p *StatusPoller) failure(orderSn, paymentSn string, status model.PaymentStatus) *Outcome {
	return &Outcome{
		Kind:      OutcomeFailure,
		Route:     fill(p.opts.Routes.Failure, orderSn),
		OrderSn:   orderSn,
		PaymentSn: paymentSn,
		Message:   fmt.Sprintf("Payment %s", strings.ToLower(string(status))),
	}
}

// finish 展示延迟后提交终态，ctx 已取消则什么都不做
func (p *StatusPoller) finish(ctx context.Context, g guard, source, userID string, o Outcome, delay time.Duration) {
	if delay > 0 {
		if err := poller.Sleep(ctx, delay); err != nil {
			return
		}
	}
	if !g.outcome(o) {
		return
	}
	p.report(ctx, source, userID, o)
}

// report 终态事件和推送，失败只记日志
func (p *StatusPoller) report(ctx context.Context, source, userID string, o Outcome) {
	metrics.IncPaymentOutcome(source, string(o.Kind))
	events.PublishOrLog(ctx, p.events, events.Event{
		Type:      events.TypePaymentOutcome,
		OrderSn:   o.OrderSn,
		PaymentSn: o.PaymentSn,
		Payload:   map[string]interface{}{"outcome": o.Kind, "route": o.Route, "source": source},
	})

	if userID == "" || (o.Kind != OutcomeSuccess && o.Kind != OutcomeFailure) {
		return
	}
	title := "Payment successful"
	if o.Kind == OutcomeFailure {
		title = "Payment failed"
	}
	ext := map[string]string{"orderSn": o.OrderSn, "route": o.Route}
	if err := p.notifier.NotifyAccount(userID, title, fmt.Sprintf("Order %s", o.OrderSn), ext); err != nil {
		logger.Log.Warn("push payment outcome failed", zap.String("order_sn", o.OrderSn), zap.Error(err))
	}
}

func orderSnOf(rec *model.PaymentRecord, fallback string) string {
	if rec != nil && rec.OrderSn != "" {
		return rec.OrderSn
	}
	return fallback
}
