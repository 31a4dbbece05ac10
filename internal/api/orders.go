package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// createOrder places an order without a checkout. A repeated Idempotency-Key
// returns the original order with 200.
func (h *Handler) createOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid order request")
		return
	}
	items, err := req.items()
	if err != nil {
		respondError(c, err)
		return
	}

	order, replayed, err := h.orders.CreateDirect(c.Request.Context(), currentUser(c), service.CreateOrderInput{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		TotalPrice:      req.TotalPrice,
		IdempotencyKey:  c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if replayed {
		c.JSON(http.StatusOK, order)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) myOrders(c *gin.Context) {
	orders, err := h.orders.ListMine(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrOrderNotFound)
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
