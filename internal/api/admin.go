package api

import (
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
)

func (h *Handler) setupAdminRoutes(admin *gin.RouterGroup) {
	users := admin.Group("/users", Require(models.CapManageUsers))
	{
		users.GET("", h.adminListUsers)
		users.POST("", h.adminCreateUser)
		users.PUT("/:id", h.adminUpdateUser)
		users.DELETE("/:id", h.adminDeleteUser)
	}

	products := admin.Group("/products", Require(models.CapManageCatalog))
	{
		products.GET("", h.adminListProducts)
		products.POST("", h.adminCreateProduct)
		products.PUT("/:id", h.adminUpdateProduct)
		products.DELETE("/:id", h.adminDeleteProduct)
	}

	orders := admin.Group("/orders", Require(models.CapManageOrders))
	{
		orders.GET("", h.adminListOrders)
		orders.PUT("/:id", h.adminUpdateOrder)
		orders.DELETE("/:id", h.adminDeleteOrder)
	}
}

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r userRequest) input() service.UserInput {
	return service.UserInput{Name: r.Name, Email: r.Email, Password: r.Password, Role: r.Role}
}

func (h *Handler) adminListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) adminCreateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid user request")
		return
	}
	user, err := h.users.Create(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "user": user})
}

func (h *Handler) adminUpdateUser(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrUserNotFound)
	if !ok {
		return
	}
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid user request")
		return
	}
	user, err := h.users.Update(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully", "user": user})
}

func (h *Handler) adminDeleteUser(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrUserNotFound)
	if !ok {
		return
	}
	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (h *Handler) adminListProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context(), store.ProductFilter{Sort: store.SortNewest})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) adminCreateProduct(c *gin.Context) {
	var p models.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "Invalid product request")
		return
	}
	p.Sold = 0
	created, err := h.catalog.Create(c.Request.Context(), &p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) adminUpdateProduct(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrProductNotFound)
	if !ok {
		return
	}
	var p models.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "Invalid product request")
		return
	}
	updated, err := h.catalog.Update(c.Request.Context(), id, &p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) adminDeleteProduct(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrProductNotFound)
	if !ok {
		return
	}
	if err := h.catalog.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product removed"})
}

func (h *Handler) adminListOrders(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) adminUpdateOrder(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrOrderNotFound)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid order request")
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) adminDeleteOrder(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrOrderNotFound)
	if !ok {
		return
	}
	if err := h.orders.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order removed"})
}
