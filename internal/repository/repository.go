package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/domain"
)

var (
	// ErrNotFound se devuelve cuando la fila o documento no existe.
	ErrNotFound = errors.New("not found")
	// ErrConflict se devuelve ante violaciones de unicidad.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock se devuelve cuando el decremento condicional no aplica.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// ProductRepository define el contrato de persistencia del catálogo.
type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
	GetByID(ctx context.Context, id string) (domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int64, error)
	Categories(ctx context.Context) ([]string, error)
}

// OrderRepository define el contrato de persistencia de pedidos.
//
// Place reserva el stock de cada línea con un decremento condicional y
// persiste el pedido; si alguna línea no alcanza, no queda ningún cambio.
type OrderRepository interface {
	Place(ctx context.Context, order domain.Order) (domain.Order, error)
	GetByID(ctx context.Context, id string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	List(ctx context.Context, limit, offset int) ([]domain.Order, int64, error)
	MarkPaid(ctx context.Context, id string, paidAt time.Time, result *domain.PaymentResult) (domain.Order, error)
	MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (domain.Order, error)
}
