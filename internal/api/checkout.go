package api

import (
	"encoding/json"
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type itemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type orderRequest struct {
	Items           []itemRequest          `json:"checkoutItems"`
	OrderItems      []itemRequest          `json:"orderItems"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	TotalPrice      float64                `json:"totalPrice"`
}

// items accepts either checkoutItems or orderItems
func (r orderRequest) items() ([]service.ItemInput, error) {
	raw := r.Items
	if len(raw) == 0 {
		raw = r.OrderItems
	}
	out := make([]service.ItemInput, 0, len(raw))
	for _, it := range raw {
		id, err := primitive.ObjectIDFromHex(it.ProductID)
		if err != nil {
			return nil, service.ErrProductNotFound
		}
		out = append(out, service.ItemInput{ProductID: id, Quantity: it.Quantity, Size: it.Size, Color: it.Color})
	}
	return out, nil
}

type payRequest struct {
	PaymentStatus  string          `json:"paymentStatus"`
	PaymentDetails json.RawMessage `json:"paymentDetails"`
	Signature      string          `json:"signature"`
}

func (h *Handler) createCheckout(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid checkout request")
		return
	}
	items, err := req.items()
	if err != nil {
		respondError(c, err)
		return
	}

	checkout, err := h.checkouts.Create(c.Request.Context(), currentUser(c), service.CreateCheckoutInput{
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		TotalPrice:      req.TotalPrice,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, checkout)
}

func (h *Handler) getCheckout(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrCheckoutNotFound)
	if !ok {
		return
	}
	checkout, err := h.checkouts.Get(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout)
}

func (h *Handler) payCheckout(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrCheckoutNotFound)
	if !ok {
		return
	}
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid payment request")
		return
	}
	if req.Signature == "" {
		req.Signature = c.GetHeader("X-Payment-Signature")
	}

	checkout, err := h.checkouts.Pay(c.Request.Context(), currentUser(c), id, service.PayInput{
		PaymentStatus:  req.PaymentStatus,
		PaymentDetails: req.PaymentDetails,
		Signature:      req.Signature,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout)
}

func (h *Handler) finalizeCheckout(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrCheckoutNotFound)
	if !ok {
		return
	}
	order, err := h.checkouts.Finalize(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}
