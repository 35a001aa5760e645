package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	// MaxLineQty acota la cantidad por producto, también tras unir líneas repetidas.
	MaxLineQty = 10000
)

var (
	ErrEmptyCart                = errors.New("no order items")
	ErrInvalidQuantity          = errors.New("quantity must be between 1 and 10000")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrPaymentMethodUnavailable = errors.New("payment method not available")
	ErrOrderNotFound            = errors.New("order not found")
	ErrForbidden                = errors.New("not authorized")
)

// Caller identifica a quien hace el request.
type Caller struct {
	UserID  string
	IsAdmin bool
}

type OrderItemInput struct {
	ProductID string
	Qty       int
}

type PlaceOrderInput struct {
	Items           []OrderItemInput
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
}

type OrderPage struct {
	Items []domain.Order `json:"items"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
	Total int64          `json:"total"`
}

// OrderService valida carritos contra stock vivo, calcula precios y persiste pedidos.
type OrderService struct {
	logger   *zap.Logger
	products repository.ProductRepository
	orders   repository.OrderRepository
	pricing  Pricing
}

func NewOrderService(logger *zap.Logger, products repository.ProductRepository, orders repository.OrderRepository, pricing Pricing) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		logger:   logger,
		products: products,
		orders:   orders,
		pricing:  pricing,
	}
}

// Place crea un pedido. El precio del cliente se ignora: nombre, precio e
// imagen se copian del producto vivo y el stock se descuenta de forma
// condicional en el repositorio.
func (s *OrderService) Place(ctx context.Context, userID string, input PlaceOrderInput) (domain.Order, error) {
	if len(input.Items) == 0 {
		return domain.Order{}, ErrEmptyCart
	}
	method, err := normalizePaymentMethod(input.PaymentMethod)
	if err != nil {
		return domain.Order{}, err
	}
	lines, err := mergeLines(input.Items)
	if err != nil {
		return domain.Order{}, err
	}

	itemsPrice := decimal.Zero
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		p, err := s.products.GetByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.Order{}, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			}
			return domain.Order{}, err
		}
		if p.CountInStock < line.Qty {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
		}
		itemsPrice = itemsPrice.Add(s.pricing.LineTotal(p.Price, line.Qty))
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Qty:       line.Qty,
			Price:     p.Price,
			Image:     p.Image,
		})
	}

	now := time.Now().UTC()
	order := domain.Order{
		UserID:          userID,
		OrderItems:      items,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   method,
		PriceBreakdown:  s.pricing.Breakdown(itemsPrice),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	created, err := s.orders.Place(ctx, order)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientStock):
			return domain.Order{}, fmt.Errorf("%w: %v", ErrInsufficientStock, err)
		case errors.Is(err, repository.ErrNotFound):
			return domain.Order{}, fmt.Errorf("%w: %v", ErrProductNotFound, err)
		default:
			return domain.Order{}, err
		}
	}

	s.logger.Info("order placed",
		zap.String("order_id", created.ID),
		zap.String("user_id", userID),
		zap.Int("lines", len(created.OrderItems)),
		zap.Float64("total", created.TotalPrice),
	)
	return created, nil
}

// ListMine devuelve los pedidos del usuario, más nuevos primero.
func (s *OrderService) ListMine(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// Get devuelve el pedido si el caller es dueño o admin.
func (s *OrderService) Get(ctx context.Context, id string, caller Caller) (domain.Order, error) {
	order, err := s.orders.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	if !order.OwnedBy(caller.UserID) && !caller.IsAdmin {
		return domain.Order{}, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListAll(ctx context.Context, page, limit int) (OrderPage, error) {
	p := NewPagination(page, limit, defaultOrderPageSize, maxOrderPageSize)
	orders, total, err := s.orders.List(ctx, p.Limit, p.Offset)
	if err != nil {
		return OrderPage{}, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return OrderPage{Items: orders, Page: p.Page, Pages: p.Pages(total), Total: total}, nil
}

func (s *OrderService) MarkPaid(ctx context.Context, id string, result *domain.PaymentResult) (domain.Order, error) {
	order, err := s.orders.MarkPaid(ctx, strings.TrimSpace(id), time.Now().UTC(), result)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	return order, nil
}

func (s *OrderService) MarkDelivered(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.orders.MarkDelivered(ctx, strings.TrimSpace(id), time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Order{}, ErrOrderNotFound
		}
		return domain.Order{}, err
	}
	return order, nil
}

// mergeLines suma cantidades de líneas repetidas conservando el orden original.
func mergeLines(items []OrderItemInput) ([]OrderItemInput, error) {
	merged := make([]OrderItemInput, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.ProductID)
		if it.Qty < 1 || it.Qty > MaxLineQty {
			return nil, ErrInvalidQuantity
		}
		if id == "" {
			return nil, ErrProductNotFound
		}
		if i, ok := index[id]; ok {
			if merged[i].Qty > MaxLineQty-it.Qty {
				return nil, ErrInvalidQuantity
			}
			merged[i].Qty += it.Qty
			continue
		}
		index[id] = len(merged)
		merged = append(merged, OrderItemInput{ProductID: id, Qty: it.Qty})
	}
	return merged, nil
}

// Solo contra entrega está habilitado; el resto son placeholders del checkout.
func normalizePaymentMethod(method string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case "", domain.PaymentMethodCOD:
		return domain.PaymentMethodCOD, nil
	default:
		return "", ErrPaymentMethodUnavailable
	}
}
