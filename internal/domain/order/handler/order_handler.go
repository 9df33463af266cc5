package handler

import (
	"errors"
	"net/http"

	"storefront_checkout/internal/domain/order/model"
	"storefront_checkout/internal/domain/order/service"
	"storefront_checkout/internal/pkg/middleware"
	"storefront_checkout/internal/pkg/storefront"
	"storefront_checkout/pkg/response"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(service service.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// PrepareCheckout 进入结账页时获取下单令牌
func (h *OrderHandler) PrepareCheckout(c *gin.Context) {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}

	token, err := h.service.PrepareCheckout(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, service.ErrSubmitInProgress) {
			response.Error(c, http.StatusConflict, response.ErrSubmitInProgress, err.Error())
			return
		}
		response.Error(c, http.StatusBadGateway, response.ErrUpstream, "Failed to prepare checkout")
		return
	}
	response.Success(c, gin.H{"token": token})
}

// Submit 提交订单
func (h *OrderHandler) Submit(c *gin.Context) {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}

	var input model.SubmitRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	order, err := h.service.Submit(c.Request.Context(), uid, input)
	if err != nil {
		h.submitError(c, err)
		return
	}
	response.Success(c, order)
}

func (h *OrderHandler) submitError(c *gin.Context, err error) {
	var (
		verr     *service.ValidationError
		conflict *service.ConflictError
		failed   *service.CreateFailedError
		timeout  *service.PollTimeoutError
	)
	switch {
	case errors.As(err, &verr):
		response.ErrorWithData(c, http.StatusBadRequest, response.ErrCheckoutInvalid, verr.Error(), gin.H{"fields": verr.Fields})
	case errors.As(err, &conflict):
		response.ErrorWithData(c, http.StatusConflict, response.ErrTokenConflict, err.Error(), gin.H{"token": conflict.Token})
	case errors.Is(err, service.ErrSubmitInProgress), errors.Is(err, service.ErrSubmitLocked):
		response.Error(c, http.StatusConflict, response.ErrSubmitInProgress, err.Error())
	case errors.As(err, &failed):
		response.ErrorWithData(c, http.StatusUnprocessableEntity, response.ErrOrderCreateFailed, err.Error(),
			gin.H{"orderSn": failed.OrderSn, "reason": failed.Reason})
	case errors.As(err, &timeout):
		response.ErrorWithData(c, http.StatusGatewayTimeout, response.ErrOrderPollTimeout, service.ErrOrderPollTimeout.Error(),
			gin.H{"orderSn": timeout.OrderSn})
	case storefront.IsClientError(err):
		response.Error(c, http.StatusUnprocessableEntity, response.ErrOrderCreateFailed, err.Error())
	default:
		response.Error(c, http.StatusBadGateway, response.ErrUpstream, "Failed to place order, please retry")
	}
}

func (h *OrderHandler) Detail(c *gin.Context) {
	order, err := h.service.Detail(c.Request.Context(), c.Param("sn"))
	if err != nil {
		if storefront.IsNotFound(err) {
			response.Error(c, http.StatusNotFound, response.ErrInvalidParam, "Order not found")
			return
		}
		response.Error(c, http.StatusBadGateway, response.ErrUpstream, "Failed to load order")
		return
	}
	response.Success(c, order)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), c.Param("sn")); err != nil {
		if storefront.IsClientError(err) {
			response.Fail(c, response.ErrInvalidParam, err.Error())
			return
		}
		response.Error(c, http.StatusBadGateway, response.ErrUpstream, "Failed to cancel order")
		return
	}
	response.Success(c, "Order cancelled")
}
