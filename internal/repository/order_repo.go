package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

// PgOrderRepository implementa OrderRepository usando pgxpool.
type PgOrderRepository struct {
	pool *pgxpool.Pool
}

func NewPgOrderRepository(pool *pgxpool.Pool) *PgOrderRepository {
	return &PgOrderRepository{pool: pool}
}

const orderColumns = `id, user_id, shipping_address, payment_method, payment_result,
	items_price, tax_price, shipping_price, total_price,
	is_paid, paid_at, is_delivered, delivered_at, created_at, updated_at`

// Place descuenta stock y crea el pedido en una sola transacción.
// lockOrder devuelve una copia ordenada por producto; todas las transacciones
// bloquean filas de products en el mismo orden y no se cruzan.
func lockOrder(items []domain.OrderItem) []domain.OrderItem {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b domain.OrderItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return sorted
}

func (r *PgOrderRepository) Place(ctx context.Context, order domain.Order) (domain.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	defer tx.Rollback(ctx)

	const decrement = `
		UPDATE products
		SET count_in_stock = count_in_stock - $2
		WHERE id = $1 AND count_in_stock >= $2
	`
	for _, item := range lockOrder(order.OrderItems) {
		if item.Qty < 1 {
			return domain.Order{}, fmt.Errorf("product %s: invalid quantity %d", item.ProductID, item.Qty)
		}
		if !validUUID(item.ProductID) {
			return domain.Order{}, fmt.Errorf("product %s: %w", item.ProductID, ErrNotFound)
		}
		tag, err := tx.Exec(ctx, decrement, item.ProductID, item.Qty)
		if err != nil {
			return domain.Order{}, err
		}
		if tag.RowsAffected() == 0 {
			return domain.Order{}, fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
		}
	}

	const insertOrder = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.Exec(ctx, insertOrder,
		order.ID,
		order.UserID,
		order.ShippingAddress,
		order.PaymentMethod,
		order.PaymentResult,
		order.ItemsPrice,
		order.TaxPrice,
		order.ShippingPrice,
		order.TotalPrice,
		order.IsPaid,
		order.PaidAt,
		order.IsDelivered,
		order.DeliveredAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, translatePgError(err)
	}

	const insertItem = `
		INSERT INTO order_items (order_id, position, product_id, name, qty, price, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	batch := &pgx.Batch{}
	for i, item := range order.OrderItems {
		batch.Queue(insertItem, order.ID, i, item.ProductID, item.Name, item.Qty, item.Price, item.Image)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return domain.Order{}, translatePgError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *PgOrderRepository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	if !validUUID(id) {
		return domain.Order{}, ErrNotFound
	}
	orders, err := r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return domain.Order{}, err
	}
	if len(orders) == 0 {
		return domain.Order{}, ErrNotFound
	}
	return orders[0], nil
}

func (r *PgOrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if !validUUID(userID) {
		return []domain.Order{}, nil
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryOrders(ctx, query, userID)
}

func (r *PgOrderRepository) List(ctx context.Context, limit, offset int) ([]domain.Order, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	orders, err := r.queryOrders(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// MarkPaid marca el pedido como pagado; paid_at solo se fija la primera vez.
func (r *PgOrderRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time, result *domain.PaymentResult) (domain.Order, error) {
	if !validUUID(id) {
		return domain.Order{}, ErrNotFound
	}
	const query = `
		UPDATE orders
		SET is_paid = TRUE,
		    paid_at = COALESCE(paid_at, $2),
		    payment_result = COALESCE($3, payment_result),
		    updated_at = $2
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, paidAt, result)
	if err != nil {
		return domain.Order{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Order{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// MarkDelivered marca el pedido como entregado; delivered_at solo se fija la primera vez.
func (r *PgOrderRepository) MarkDelivered(ctx context.Context, id string, deliveredAt time.Time) (domain.Order, error) {
	if !validUUID(id) {
		return domain.Order{}, ErrNotFound
	}
	const query = `
		UPDATE orders
		SET is_delivered = TRUE,
		    delivered_at = COALESCE(delivered_at, $2),
		    updated_at = $2
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, deliveredAt)
	if err != nil {
		return domain.Order{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Order{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PgOrderRepository) queryOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	index := make(map[string]int)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.ShippingAddress,
			&o.PaymentMethod,
			&o.PaymentResult,
			&o.ItemsPrice,
			&o.TaxPrice,
			&o.ShippingPrice,
			&o.TotalPrice,
			&o.IsPaid,
			&o.PaidAt,
			&o.IsDelivered,
			&o.DeliveredAt,
			&o.CreatedAt,
			&o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		o.OrderItems = []domain.OrderItem{}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	itemRows, err := r.pool.Query(ctx, `
		SELECT order_id, product_id, name, qty, price, image
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.Name, &item.Qty, &item.Price, &item.Image); err != nil {
			return nil, err
		}
		if i, ok := index[orderID]; ok {
			orders[i].OrderItems = append(orders[i].OrderItems, item)
		}
	}
	return orders, itemRows.Err()
}
