package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/service"
)

// ProductHandler expone el catálogo público.
type ProductHandler struct {
	logger  *zap.Logger
	catalog *service.ProductService
}

func NewProductHandler(logger *zap.Logger, catalog *service.ProductService) *ProductHandler {
	return &ProductHandler{logger: logger, catalog: catalog}
}

// List maneja GET /products?keyword&category&page&limit.
func (h *ProductHandler) List(c *gin.Context) {
	page, limit, ok := parsePagination(c)
	if !ok {
		return
	}
	result, err := h.catalog.List(c.Request.Context(), service.ListProductsInput{
		Keyword:  c.Query("keyword"),
		Category: c.Query("category"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		h.logger.Error("list products failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list products"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Categories maneja GET /products/categories/list.
func (h *ProductHandler) Categories(c *gin.Context) {
	categories, err := h.catalog.Categories(c.Request.Context())
	if err != nil {
		h.logger.Error("list categories failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list categories"})
		return
	}
	c.JSON(http.StatusOK, categories)
}

// Get maneja GET /products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.logger.Error("get product failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load product"})
		return
	}
	c.JSON(http.StatusOK, product)
}
