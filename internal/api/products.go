package api

import (
	"net/http"

	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
)

var sortOptions = map[string]store.ProductSort{
	"priceAsc":   store.SortPriceAsc,
	"priceDesc":  store.SortPriceDesc,
	"popularity": store.SortPopularity,
	"newest":     store.SortNewest,
}

// productFilter reads catalog query parameters. Unknown sorts fall back to newest.
func productFilter(c *gin.Context) store.ProductFilter {
	f := store.ProductFilter{
		Category:   c.Query("category"),
		Gender:     c.Query("gender"),
		Color:      c.Query("color"),
		Size:       c.Query("size"),
		Brand:      c.Query("brand"),
		Collection: c.Query("collection"),
		Material:   c.Query("material"),
		Search:     c.Query("search"),
		MinPrice:   floatQuery(c, "minPrice"),
		MaxPrice:   floatQuery(c, "maxPrice"),
		Sort:       sortOptions[c.Query("sortBy")],
		Limit:      intQuery(c, "limit"),
	}
	if f.Sort == "" {
		f.Sort = store.SortNewest
	}
	return f
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context(), productFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) bestSellers(c *gin.Context) {
	products, err := h.catalog.BestSellers(c.Request.Context(), intQuery(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) newArrivals(c *gin.Context) {
	products, err := h.catalog.NewArrivals(c.Request.Context(), intQuery(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) similarProducts(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrProductNotFound)
	if !ok {
		return
	}
	products, err := h.catalog.Similar(c.Request.Context(), id, intQuery(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := objectIDParam(c, "id", service.ErrProductNotFound)
	if !ok {
		return
	}
	product, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) subscribe(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email is required")
		return
	}

	sub, err := h.subscribers.Subscribe(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Successfully subscribed to the newsletter!", "subscriber": sub})
}
