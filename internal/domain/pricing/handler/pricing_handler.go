package handler

import (
	"net/http"
	"strconv"
	"strings"

	"storefront_checkout/internal/domain/pricing/service"
	"storefront_checkout/internal/pkg/middleware"
	"storefront_checkout/pkg/response"

	"github.com/gin-gonic/gin"
)

type PricingHandler struct {
	service service.PricingService
}

func NewPricingHandler(service service.PricingService) *PricingHandler {
	return &PricingHandler{service: service}
}

// GetQuote GET /checkout/quote?couponId=&items=c1,c2
func (h *PricingHandler) GetQuote(c *gin.Context) {
	uid, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "User not authenticated")
		return
	}

	req := service.QuoteRequest{UserID: uid}
	if raw := c.Query("couponId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid couponId")
			return
		}
		req.CouponID = &id
	}
	if raw := c.Query("items"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				req.ItemIDs = append(req.ItemIDs, id)
			}
		}
	}

	quote, err := h.service.Quote(c.Request.Context(), req)
	if err != nil {
		response.Error(c, http.StatusBadGateway, response.ErrCartUnavailable, "Cart is unavailable")
		return
	}
	response.Success(c, quote)
}
