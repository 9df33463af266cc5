package handler

import (
	"errors"
	"net/http"

	"storefront_checkout/internal/domain/cart/model"
	"storefront_checkout/internal/domain/cart/service"
	"storefront_checkout/internal/pkg/middleware"
	"storefront_checkout/pkg/response"

	"github.com/gin-gonic/gin"
)

type CartHandler struct {
	service service.CartService
}

func NewCartHandler(service service.CartService) *CartHandler {
	return &CartHandler{service: service}
}

type UpdateItemInput struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

type MergeInput struct {
	Items []model.GuestItem `json:"items" binding:"dive"`
}

func (h *CartHandler) GetCart(c *gin.Context) {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}

	lines, err := h.service.Get(c.Request.Context(), uid)
	if err != nil {
		response.Error(c, http.StatusBadGateway, response.ErrCartUnavailable, "Cart is unavailable")
		return
	}
	response.Success(c, gin.H{"items": lines})
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}

	var input UpdateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	lines, err := h.service.UpdateQuantity(c.Request.Context(), uid, c.Param("id"), input.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"items": lines})
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}

	lines, err := h.service.Remove(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"items": lines})
}

// MergeGuest 登录后把游客购物车并入用户购物车
func (h *CartHandler) MergeGuest(c *gin.Context) {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}

	var input MergeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	lines, err := h.service.MergeGuest(c.Request.Context(), uid, input.Items)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"items": lines})
}

func (h *CartHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		response.Error(c, http.StatusNotFound, response.ErrCartItemNotFound, "Cart item not found")
	case errors.Is(err, service.ErrInvalidQuantity):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	case errors.Is(err, service.ErrCartBusy):
		response.Error(c, http.StatusServiceUnavailable, response.ErrCartUnavailable, err.Error())
	default:
		response.Error(c, http.StatusBadGateway, response.ErrCartUnavailable, "Cart is unavailable")
	}
}
