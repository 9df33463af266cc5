package handler

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"

	"storefront_checkout/internal/domain/payment/model"
	"storefront_checkout/internal/domain/payment/service"
	"storefront_checkout/internal/pkg/middleware"
	"storefront_checkout/internal/pkg/storefront"
	"storefront_checkout/pkg/logger"
	"storefront_checkout/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionTracker 轮询会话
type SessionTracker interface {
	StartProcessing(ctx context.Context, req service.ProcessingRequest) (service.Snapshot, error)
	StartCallback(ctx context.Context, req service.CallbackRequest) (service.Snapshot, error)
	Get(id string) (service.Snapshot, error)
	Stop(id string) error
}

type PaymentHandler struct {
	service service.PaymentService
	tracker SessionTracker
}

func NewPaymentHandler(s service.PaymentService, t SessionTracker) *PaymentHandler {
	return &PaymentHandler{service: s, tracker: t}
}

// Initiate 发起支付，返回支付会话和跳转计划
// ?mode=redirect 时直接在本次响应中执行跳转 (303 或自动提交的表单页)
// @Summary 发起支付
// @Tags Payment
// @Accept json
// @Produce json
// @Param input body service.InitiateRequest true "Order and method"
// @Success 200 {object} response.Response{data=service.Initiation}
// @Router /payment/initiate [post]
func (h *PaymentHandler) Initiate(c *gin.Context) {
	var input service.InitiateRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	input.ClientIP = c.ClientIP()

	result, err := h.service.Initiate(c.Request.Context(), input)
	if err != nil {
		h.initiateError(c, err)
		return
	}

	if c.Query("mode") == "redirect" {
		if _, err := service.Execute(result.Plan, &responseBrowser{c: c}); err != nil {
			logger.Log.Error("execute redirect plan", zap.String("payment_sn", result.Session.PaymentSn), zap.Error(err))
			response.Error(c, http.StatusInternalServerError, response.ErrPaymentInitFailed, "Failed to redirect to the payment page")
		}
		return
	}
	response.Success(c, result)
}

func (h *PaymentHandler) initiateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedMethod), errors.Is(err, service.ErrUnsupportedGateway):
		response.Error(c, http.StatusBadRequest, response.ErrPaymentMethod, err.Error())
	case errors.Is(err, service.ErrOrderNotPayable):
		response.Error(c, http.StatusConflict, response.ErrPaymentInitFailed, err.Error())
	case storefront.IsClientError(err):
		response.Error(c, http.StatusUnprocessableEntity, response.ErrPaymentInitFailed, err.Error())
	default:
		logger.Log.Error("initiate payment failed", zap.Error(err))
		response.Error(c, http.StatusBadGateway, response.ErrUpstream, "Failed to create payment")
	}
}

// Processing 处理中页面开始轮询
func (h *PaymentHandler) Processing(c *gin.Context) {
	paymentSn := c.Query("paymentSn")
	if paymentSn == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "paymentSn is required")
		return
	}
	uid, _ := middleware.CurrentUserID(c)

	snap, err := h.tracker.StartProcessing(c.Request.Context(), service.ProcessingRequest{
		UserID:    uid,
		PaymentSn: paymentSn,
		OrderSn:   c.Query("orderSn"),
	})
	if err != nil {
		h.sessionError(c, err)
		return
	}
	response.Success(c, snap)
}

// Callback 网关回跳页开始轮询
func (h *PaymentHandler) Callback(c *gin.Context) {
	var params model.CallbackParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	params.Raw = c.Request.URL.Query()
	params = h.service.PrepareCallback(params)
	uid, _ := middleware.CurrentUserID(c)

	snap, err := h.tracker.StartCallback(c.Request.Context(), service.CallbackRequest{UserID: uid, Params: params})
	if err != nil {
		h.sessionError(c, err)
		return
	}
	response.Success(c, snap)
}

// Session 客户端读取轮询状态 (同时续租)
func (h *PaymentHandler) Session(c *gin.Context) {
	snap, err := h.tracker.Get(c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	response.Success(c, snap)
}

// StopSession 页面卸载
func (h *PaymentHandler) StopSession(c *gin.Context) {
	if err := h.tracker.Stop(c.Param("id")); err != nil {
		h.sessionError(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *PaymentHandler) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.ErrPaymentSessionGone, err.Error())
	case errors.Is(err, service.ErrMissingCallbackKey):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	case errors.Is(err, service.ErrTrackerClosed):
		response.Error(c, http.StatusServiceUnavailable, response.ErrServerInternal, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
	}
}

// AlipayNotify 支付宝异步通知，返回 success 之外的内容支付宝会重试
// @Summary 支付宝回调
// @Tags Payment
// @Router /payment/notify/alipay [post]
func (h *PaymentHandler) AlipayNotify(c *gin.Context) {
	if err := h.service.HandleNotify(c.Request.Context(), model.GatewayAlipayPage, c.Request); err != nil {
		c.String(http.StatusOK, "fail")
		return
	}
	c.String(http.StatusOK, "success")
}

// WechatNotify 微信支付通知，4xx/5xx 表示失败
// @Summary 微信支付回调
// @Tags Payment
// @Router /payment/notify/wechat [post]
func (h *PaymentHandler) WechatNotify(c *gin.Context) {
	if err := h.service.HandleNotify(c.Request.Context(), model.GatewayWechatH5, c.Request); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "FAIL", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": "SUCCESS", "message": "OK"})
}

var autoSubmit = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Redirecting to payment</title></head>
<body onload="document.forms[0].submit()">
<form action="{{.ActionURL}}" method="{{.Method}}">
{{range $k, $v := .Fields}}<input type="hidden" name="{{$k}}" value="{{$v}}">
{{end}}<noscript><button type="submit">Continue to payment</button></noscript>
</form>
</body></html>`))

// responseBrowser 服务端响应无法打开新窗口：URL 跳转走当前页，表单在本页自动提交
type responseBrowser struct {
	c *gin.Context
}

func (b *responseBrowser) OpenWindow(string) bool { return false }

func (b *responseBrowser) NavigateCurrent(url string) {
	b.c.Redirect(http.StatusSeeOther, url)
}

func (b *responseBrowser) OpenBlank() service.Window { return b }

func (b *responseBrowser) Warn(message string) {
	response.Error(b.c, http.StatusConflict, response.ErrPaymentInitFailed, message)
}

func (b *responseBrowser) Submit(form model.FormPost) error {
	var buf bytes.Buffer
	if err := autoSubmit.Execute(&buf, form); err != nil {
		return err
	}
	b.c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	return nil
}
