package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

// PgProductRepository implementa ProductRepository usando pgxpool.
type PgProductRepository struct {
	pool *pgxpool.Pool
}

func NewPgProductRepository(pool *pgxpool.Pool) *PgProductRepository {
	return &PgProductRepository{pool: pool}
}

const productColumns = `id, name, description, brand, category, image, price, count_in_stock, created_at`

func (r *PgProductRepository) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	const query = `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Brand,
		p.Category,
		p.Image,
		p.Price,
		p.CountInStock,
		p.CreatedAt,
	)
	if err != nil {
		return domain.Product{}, translatePgError(err)
	}
	return p, nil
}

func (r *PgProductRepository) GetByID(ctx context.Context, id string) (domain.Product, error) {
	if !validUUID(id) {
		return domain.Product{}, ErrNotFound
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	var p domain.Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Brand,
		&p.Category,
		&p.Image,
		&p.Price,
		&p.CountInStock,
		&p.CreatedAt,
	)
	if err != nil {
		return domain.Product{}, translatePgError(err)
	}
	return p, nil
}

func (r *PgProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int64, error) {
	const where = `
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' ESCAPE '\')
		  AND ($2 = '' OR category = $2)
	`
	keyword := escapeLike(filter.Keyword)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, keyword, filter.Category).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + `
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, keyword, filter.Category, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, filter.Limit)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Brand,
			&p.Category,
			&p.Image,
			&p.Price,
			&p.CountInStock,
			&p.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *PgProductRepository) Categories(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT category
		FROM products
		WHERE category <> ''
		ORDER BY category
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(strings.TrimSpace(s))
}
