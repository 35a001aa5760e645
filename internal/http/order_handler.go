package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/service"
)

// OrderHandler mantiene dependencias para endpoints de pedidos.
type OrderHandler struct {
	logger *zap.Logger
	orders *service.OrderService
}

func NewOrderHandler(logger *zap.Logger, orders *service.OrderService) *OrderHandler {
	return &OrderHandler{logger: logger, orders: orders}
}

type orderItemRequest struct {
	Product string `json:"product" binding:"required"`
	Qty     int    `json:"qty" binding:"required,min=1,max=10000"`
}

type shippingAddressRequest struct {
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country" binding:"required"`
}

// Place maneja POST /orders. Los precios del cliente no se leen.
func (h *OrderHandler) Place(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
		return
	}
	var req struct {
		OrderItems      []orderItemRequest     `json:"orderItems" binding:"required,dive"`
		ShippingAddress shippingAddressRequest `json:"shippingAddress"`
		PaymentMethod   string                 `json:"paymentMethod"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}

	items := make([]service.OrderItemInput, 0, len(req.OrderItems))
	for _, it := range req.OrderItems {
		items = append(items, service.OrderItemInput{ProductID: it.Product, Qty: it.Qty})
	}
	order, err := h.orders.Place(c.Request.Context(), caller.UserID, service.PlaceOrderInput{
		Items: items,
		ShippingAddress: domain.ShippingAddress{
			Line1:      req.ShippingAddress.Line1,
			Line2:      req.ShippingAddress.Line2,
			City:       req.ShippingAddress.City,
			State:      req.ShippingAddress.State,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCart),
			errors.Is(err, service.ErrInvalidQuantity),
			errors.Is(err, service.ErrProductNotFound),
			errors.Is(err, service.ErrInsufficientStock),
			errors.Is(err, service.ErrPaymentMethodUnavailable):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("place order failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not place order"})
		}
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ListMine maneja GET /orders/my.
func (h *OrderHandler) ListMine(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
		return
	}
	orders, err := h.orders.ListMine(c.Request.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("list my orders failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// Get maneja GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
		return
	}
	order, err := h.orders.Get(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.writeOrderError(c, "get order failed", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListAll maneja GET /orders (admin).
func (h *OrderHandler) ListAll(c *gin.Context) {
	page, limit, ok := parsePagination(c)
	if !ok {
		return
	}
	result, err := h.orders.ListAll(c.Request.Context(), page, limit)
	if err != nil {
		h.logger.Error("list orders failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list orders"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// MarkPaid maneja PUT /orders/:id/pay (admin). El body es opcional.
func (h *OrderHandler) MarkPaid(c *gin.Context) {
	var result *domain.PaymentResult
	if c.Request.ContentLength > 0 {
		var req domain.PaymentResult
		if !bindJSON(c, h.logger, &req) {
			return
		}
		result = &req
	}
	order, err := h.orders.MarkPaid(c.Request.Context(), c.Param("id"), result)
	if err != nil {
		h.writeOrderError(c, "mark paid failed", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// MarkDelivered maneja PUT /orders/:id/deliver (admin).
func (h *OrderHandler) MarkDelivered(c *gin.Context) {
	order, err := h.orders.MarkDelivered(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeOrderError(c, "mark delivered failed", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) writeOrderError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized to view this order"})
	default:
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process order"})
	}
}
