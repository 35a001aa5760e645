package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

type orderFixture struct {
	svc   *OrderService
	store *repository.MemoryStore
}

func newOrderFixture() orderFixture {
	store := repository.NewMemoryStore()
	svc := NewOrderService(zap.NewNop(), store.Products(), store.Orders(), DefaultPricing())
	return orderFixture{svc: svc, store: store}
}

func (f orderFixture) product(t *testing.T, name string, price float64, stock int) domain.Product {
	t.Helper()
	p, err := f.store.Products().Create(context.Background(), domain.Product{
		Name:         name,
		Category:     "misc",
		Image:        "/img/" + name + ".png",
		Price:        price,
		CountInStock: stock,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func (f orderFixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	return p.CountInStock
}

func TestOrderServicePlace_Scenario(t *testing.T) {
	f := newOrderFixture()
	p := f.product(t, "lamp", 300, 5)

	order, err := f.svc.Place(context.Background(), "u1", PlaceOrderInput{
		Items:           []OrderItemInput{{ProductID: p.ID, Qty: 2}},
		ShippingAddress: domain.ShippingAddress{Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	want := domain.PriceBreakdown{ItemsPrice: 600, TaxPrice: 60, ShippingPrice: 100, TotalPrice: 760}
	if order.PriceBreakdown != want {
		t.Fatalf("expected %+v, got %+v", want, order.PriceBreakdown)
	}
	if order.PaymentMethod != domain.PaymentMethodCOD || order.IsPaid || order.IsDelivered {
		t.Fatalf("unexpected status fields: %+v", order)
	}
	if len(order.OrderItems) != 1 {
		t.Fatalf("expected one line, got %d", len(order.OrderItems))
	}
	line := order.OrderItems[0]
	if line.Name != "lamp" || line.Price != 300 || line.Qty != 2 || line.Image != "/img/lamp.png" {
		t.Fatalf("unexpected snapshot: %+v", line)
	}
	if got := f.stock(t, p.ID); got != 3 {
		t.Fatalf("expected stock 3, got %d", got)
	}
}

func TestOrderServicePlace_SnapshotSurvivesPriceChange(t *testing.T) {
	f := newOrderFixture()
	p := f.product(t, "mug", 10, 5)

	order, err := f.svc.Place(context.Background(), "u1", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID, Qty: 1}}})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	p.Price = 99
	p.Name = "renamed"
	if _, err := f.store.Products().Create(context.Background(), p); err != nil {
		t.Fatalf("update product: %v", err)
	}

	got, err := f.svc.Get(context.Background(), order.ID, Caller{UserID: "u1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OrderItems[0].Price != 10 || got.OrderItems[0].Name != "mug" {
		t.Fatalf("expected snapshot to be stable, got %+v", got.OrderItems[0])
	}
}

func TestOrderServicePlace_FreeShipping(t *testing.T) {
	f := newOrderFixture()
	p := f.product(t, "tv", 600, 5)

	order, err := f.svc.Place(context.Background(), "u1", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID, Qty: 2}}})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	want := domain.PriceBreakdown{ItemsPrice: 1200, TaxPrice: 120, ShippingPrice: 0, TotalPrice: 1320}
	if order.PriceBreakdown != want {
		t.Fatalf("expected %+v, got %+v", want, order.PriceBreakdown)
	}
}

func TestOrderServicePlace_MergesDuplicateLines(t *testing.T) {
	f := newOrderFixture()
	p := f.product(t, "pen", 5, 10)

	order, err := f.svc.Place(context.Background(), "u1", PlaceOrderInput{Items: []OrderItemInput{
		{ProductID: p.ID, Qty: 2},
		{ProductID: p.ID, Qty: 3},
	}})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(order.OrderItems) != 1 || order.OrderItems[0].Qty != 5 {
		t.Fatalf("expected merged line of qty 5, got %+v", order.OrderItems)
	}
	if got := f.stock(t, p.ID); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}
}

func TestOrderServicePlace_Rejections(t *testing.T) {
	f := newOrderFixture()
	scarce := f.product(t, "scarce", 50, 1)
	plenty := f.product(t, "plenty", 50, 10)

	cases := []struct {
		name  string
		input PlaceOrderInput
		want  error
	}{
		{name: "empty cart", input: PlaceOrderInput{}, want: ErrEmptyCart},
		{name: "missing product", input: PlaceOrderInput{Items: []OrderItemInput{{ProductID: "nope", Qty: 1}}}, want: ErrProductNotFound},
		{name: "zero quantity", input: PlaceOrderInput{Items: []OrderItemInput{{ProductID: plenty.ID, Qty: 0}}}, want: ErrInvalidQuantity},
		{name: "quantity above cap", input: PlaceOrderInput{Items: []OrderItemInput{{ProductID: plenty.ID, Qty: MaxLineQty + 1}}}, want: ErrInvalidQuantity},
		{
			name: "merged quantity overflows",
			input: PlaceOrderInput{Items: []OrderItemInput{
				{ProductID: scarce.ID, Qty: 1 << 62},
				{ProductID: scarce.ID, Qty: 1 << 62},
			}},
			want: ErrInvalidQuantity,
		},
		{
			name: "merged quantity above cap",
			input: PlaceOrderInput{Items: []OrderItemInput{
				{ProductID: plenty.ID, Qty: MaxLineQty},
				{ProductID: plenty.ID, Qty: 1},
			}},
			want: ErrInvalidQuantity,
		},
		{name: "payment placeholder", input: PlaceOrderInput{Items: []OrderItemInput{{ProductID: plenty.ID, Qty: 1}}, PaymentMethod: "card"}, want: ErrPaymentMethodUnavailable},
		{
			name: "insufficient stock on second line",
			input: PlaceOrderInput{Items: []OrderItemInput{
				{ProductID: plenty.ID, Qty: 2},
				{ProductID: scarce.ID, Qty: 2},
			}},
			want: ErrInsufficientStock,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Place(context.Background(), "u1", tc.input); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if got := f.stock(t, plenty.ID); got != 10 {
		t.Fatalf("expected untouched stock 10, got %d", got)
	}
	if got := f.stock(t, scarce.ID); got != 1 {
		t.Fatalf("expected untouched stock 1, got %d", got)
	}
	mine, err := f.svc.ListMine(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("expected no orders created, got %d", len(mine))
	}
}

func TestOrderServicePlace_NoOversellUnderConcurrency(t *testing.T) {
	f := newOrderFixture()
	p := f.product(t, "limited", 10, 5)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Place(context.Background(), "u1", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID, Qty: 1}}})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 {
		t.Fatalf("expected exactly 5 orders, got %d", succeeded)
	}
	if got := f.stock(t, p.ID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

// staleProductRepo simula que el stock cambió entre la lectura y la reserva.
type staleProductRepo struct {
	repository.ProductRepository
	stock int
}

func (r staleProductRepo) GetByID(ctx context.Context, id string) (domain.Product, error) {
	p, err := r.ProductRepository.GetByID(ctx, id)
	p.CountInStock = r.stock
	return p, err
}

func TestOrderServicePlace_ConditionalDecrementWins(t *testing.T) {
	store := repository.NewMemoryStore()
	p, _ := store.Products().Create(context.Background(), domain.Product{Name: "x", Price: 1, CountInStock: 1})
	svc := NewOrderService(zap.NewNop(), staleProductRepo{ProductRepository: store.Products(), stock: 10}, store.Orders(), DefaultPricing())

	_, err := svc.Place(context.Background(), "u1", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID, Qty: 3}}})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock from repository, got %v", err)
	}
}

func TestOrderServiceGet_Authorization(t *testing.T) {
	f := newOrderFixture()
	p := f.product(t, "book", 20, 5)
	order, err := f.svc.Place(context.Background(), "owner", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID, Qty: 1}}})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if _, err := f.svc.Get(context.Background(), order.ID, Caller{UserID: "owner"}); err != nil {
		t.Fatalf("expected owner access, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), order.ID, Caller{UserID: "admin", IsAdmin: true}); err != nil {
		t.Fatalf("expected admin access, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), order.ID, Caller{UserID: "intruder"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), "missing", Caller{UserID: "owner"}); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderServiceListMine_NewestFirst(t *testing.T) {
	f := newOrderFixture()
	p := f.product(t, "sock", 3, 10)

	first, err := f.svc.Place(context.Background(), "u1", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID, Qty: 1}}})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := f.svc.Place(context.Background(), "u1", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID, Qty: 1}}})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := f.svc.Place(context.Background(), "u2", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID, Qty: 1}}}); err != nil {
		t.Fatalf("place: %v", err)
	}

	mine, err := f.svc.ListMine(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != second.ID || mine[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", mine)
	}
}

func TestOrderServiceStatusFlips(t *testing.T) {
	f := newOrderFixture()
	p := f.product(t, "chair", 40, 5)
	order, err := f.svc.Place(context.Background(), "u1", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID, Qty: 1}}})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	paid, err := f.svc.MarkPaid(context.Background(), order.ID, &domain.PaymentResult{ID: "tx-1", Status: "COMPLETED"})
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !paid.IsPaid || paid.PaidAt == nil || paid.PaymentResult == nil || paid.PaymentResult.ID != "tx-1" {
		t.Fatalf("unexpected paid order: %+v", paid)
	}
	firstPaidAt := *paid.PaidAt

	again, err := f.svc.MarkPaid(context.Background(), order.ID, nil)
	if err != nil {
		t.Fatalf("mark paid again: %v", err)
	}
	if !again.PaidAt.Equal(firstPaidAt) {
		t.Fatalf("expected paidAt to be set once")
	}

	delivered, err := f.svc.MarkDelivered(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if !delivered.IsDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("unexpected delivered order: %+v", delivered)
	}
	if delivered.TotalPrice != order.TotalPrice || len(delivered.OrderItems) != 1 {
		t.Fatalf("expected price and items unchanged")
	}

	if _, err := f.svc.MarkDelivered(context.Background(), "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderServiceListAll(t *testing.T) {
	f := newOrderFixture()
	p := f.product(t, "cup", 2, 50)
	for i := 0; i < 5; i++ {
		if _, err := f.svc.Place(context.Background(), "u1", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID, Qty: 1}}}); err != nil {
			t.Fatalf("place: %v", err)
		}
	}

	page, err := f.svc.ListAll(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if page.Total != 5 || page.Pages != 3 || page.Page != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page: total=%d pages=%d page=%d items=%d", page.Total, page.Pages, page.Page, len(page.Items))
	}
}

func TestOrderServiceListAll_HugePage(t *testing.T) {
	f := newOrderFixture()
	p := f.product(t, "cup", 2, 50)
	if _, err := f.svc.Place(context.Background(), "u1", PlaceOrderInput{Items: []OrderItemInput{{ProductID: p.ID, Qty: 1}}}); err != nil {
		t.Fatalf("place: %v", err)
	}

	page, err := f.svc.ListAll(context.Background(), math.MaxInt, 100)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 0 {
		t.Fatalf("expected an empty page past the end, got total=%d items=%d", page.Total, len(page.Items))
	}
}
