package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

const (
	defaultProductPageSize = 12
	maxProductPageSize     = 100
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

// ProductService expone el catálogo en modo lectura y el alta usada por el seed.
type ProductService struct {
	logger   *zap.Logger
	products repository.ProductRepository
}

func NewProductService(logger *zap.Logger, products repository.ProductRepository) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{logger: logger, products: products}
}

type ListProductsInput struct {
	Keyword  string
	Category string
	Page     int
	Limit    int
}

func (s *ProductService) List(ctx context.Context, input ListProductsInput) (domain.ProductPage, error) {
	page := NewPagination(input.Page, input.Limit, defaultProductPageSize, maxProductPageSize)
	items, total, err := s.products.List(ctx, domain.ProductFilter{
		Keyword:  strings.TrimSpace(input.Keyword),
		Category: strings.TrimSpace(input.Category),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	if err != nil {
		return domain.ProductPage{}, err
	}
	if items == nil {
		items = []domain.Product{}
	}
	return domain.ProductPage{
		Items: items,
		Page:  page.Page,
		Pages: page.Pages(total),
		Total: total,
	}, nil
}

func (s *ProductService) Categories(ctx context.Context) ([]string, error) {
	return s.products.Categories(ctx)
}

func (s *ProductService) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.products.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Product{}, ErrProductNotFound
		}
		return domain.Product{}, err
	}
	return p, nil
}

func (s *ProductService) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	if p.Name == "" || p.Price < 0 || p.CountInStock < 0 {
		return domain.Product{}, ErrInvalidProduct
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return s.products.Create(ctx, p)
}
