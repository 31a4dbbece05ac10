package api

import (
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type cartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	GuestID   string `json:"guestId"`
}

func (r cartRequest) line() (service.CartLine, bool) {
	id, err := primitive.ObjectIDFromHex(r.ProductID)
	if err != nil {
		return service.CartLine{}, false
	}
	return service.CartLine{ProductID: id, Quantity: r.Quantity, Size: r.Size, Color: r.Color}, true
}

// cartOwner prefers the authenticated user over a guest id
func cartOwner(c *gin.Context, guestID string) (models.CartOwner, bool) {
	if user := currentUser(c); user != nil {
		id := user.ID
		return models.CartOwner{UserID: &id}, true
	}
	if guestID == "" {
		guestID = c.Query("guestId")
	}
	if guestID == "" {
		badRequest(c, "Guest ID or login is required")
		return models.CartOwner{}, false
	}
	return models.CartOwner{GuestID: guestID}, true
}

func (h *Handler) bindCart(c *gin.Context) (models.CartOwner, service.CartLine, bool) {
	var req cartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid cart request")
		return models.CartOwner{}, service.CartLine{}, false
	}
	line, ok := req.line()
	if !ok {
		respondError(c, service.ErrProductNotFound)
		return models.CartOwner{}, service.CartLine{}, false
	}
	owner, ok := cartOwner(c, req.GuestID)
	return owner, line, ok
}

func (h *Handler) getCart(c *gin.Context) {
	owner, ok := cartOwner(c, "")
	if !ok {
		return
	}
	cart, err := h.carts.Get(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) addToCart(c *gin.Context) {
	owner, line, ok := h.bindCart(c)
	if !ok {
		return
	}
	cart, err := h.carts.AddItem(c.Request.Context(), owner, line)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cart)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	owner, line, ok := h.bindCart(c)
	if !ok {
		return
	}
	cart, err := h.carts.UpdateItem(c.Request.Context(), owner, line)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) removeFromCart(c *gin.Context) {
	owner, line, ok := h.bindCart(c)
	if !ok {
		return
	}
	cart, err := h.carts.RemoveItem(c.Request.Context(), owner, line)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) mergeCart(c *gin.Context) {
	var req struct {
		GuestID string `json:"guestId"`
	}
	_ = c.ShouldBindJSON(&req)

	cart, err := h.carts.Merge(c.Request.Context(), currentUser(c).ID, req.GuestID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}
