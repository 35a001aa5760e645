package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

// MemoryStore guarda usuarios, productos y pedidos en memoria. Sirve para
// desarrollo local (STORE_DRIVER=memory) y para tests.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	emails   map[string]string
	products map[string]domain.Product
	orders   map[string]domain.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		emails:   make(map[string]string),
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
	}
}

// Users, Products y Orders exponen el store con cada interfaz de repositorio.
func (s *MemoryStore) Users() UserRepository       { return memoryUsers{s} }
func (s *MemoryStore) Products() ProductRepository { return memoryProducts{s} }
func (s *MemoryStore) Orders() OrderRepository     { return memoryOrders{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.emails[user.Email]; ok {
		return domain.User{}, ErrConflict
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.s.users[user.ID] = user
	r.s.emails[user.Email] = user.ID
	return user, nil
}

func (r memoryUsers) GetByID(_ context.Context, id string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.emails[email]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return r.s.users[id], nil
}

type memoryProducts struct{ s *MemoryStore }

func (r memoryProducts) Create(_ context.Context, p domain.Product) (domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.s.products[p.ID] = p
	return p, nil
}

func (r memoryProducts) GetByID(_ context.Context, id string) (domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return domain.Product{}, ErrNotFound
	}
	return p, nil
}

func (r memoryProducts) List(_ context.Context, filter domain.ProductFilter) ([]domain.Product, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	keyword := strings.ToLower(strings.TrimSpace(filter.Keyword))
	matched := make([]domain.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		if keyword != "" && !strings.Contains(strings.ToLower(p.Name), keyword) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	total := int64(len(matched))
	return paginate(matched, filter.Limit, filter.Offset), total, nil
}

func (r memoryProducts) Categories(_ context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]struct{})
	categories := []string{}
	for _, p := range r.s.products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

type memoryOrders struct{ s *MemoryStore }

// Place verifica y descuenta todo el stock bajo el mismo lock.
func (r memoryOrders) Place(_ context.Context, order domain.Order) (domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, item := range order.OrderItems {
		p, ok := r.s.products[item.ProductID]
		if !ok {
			return domain.Order{}, fmt.Errorf("product %s: %w", item.ProductID, ErrNotFound)
		}
		if p.CountInStock < item.Qty {
			return domain.Order{}, fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
		}
	}
	for _, item := range order.OrderItems {
		p := r.s.products[item.ProductID]
		p.CountInStock -= item.Qty
		r.s.products[item.ProductID] = p
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.OrderItems = append([]domain.OrderItem(nil), order.OrderItems...)
	r.s.orders[order.ID] = order
	return order, nil
}

func (r memoryOrders) GetByID(_ context.Context, id string) (domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return domain.Order{}, ErrNotFound
	}
	return o, nil
}

func (r memoryOrders) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	orders := []domain.Order{}
	for _, o := range r.s.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sortOrdersNewestFirst(orders)
	return orders, nil
}

func (r memoryOrders) List(_ context.Context, limit, offset int) ([]domain.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	orders := make([]domain.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		orders = append(orders, o)
	}
	sortOrdersNewestFirst(orders)
	return paginate(orders, limit, offset), int64(len(orders)), nil
}

func (r memoryOrders) MarkPaid(_ context.Context, id string, paidAt time.Time, result *domain.PaymentResult) (domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return domain.Order{}, ErrNotFound
	}
	o.IsPaid = true
	if o.PaidAt == nil {
		at := paidAt
		o.PaidAt = &at
	}
	if result != nil {
		o.PaymentResult = result
	}
	o.UpdatedAt = paidAt
	r.s.orders[id] = o
	return o, nil
}

func (r memoryOrders) MarkDelivered(_ context.Context, id string, deliveredAt time.Time) (domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return domain.Order{}, ErrNotFound
	}
	o.IsDelivered = true
	if o.DeliveredAt == nil {
		at := deliveredAt
		o.DeliveredAt = &at
	}
	o.UpdatedAt = deliveredAt
	r.s.orders[id] = o
	return o, nil
}

func sortOrdersNewestFirst(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
