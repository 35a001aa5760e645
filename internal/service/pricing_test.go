package service

import (
	"testing"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

func TestPricingBreakdown(t *testing.T) {
	p := DefaultPricing()
	cases := []struct {
		name  string
		items decimal.Decimal
		want  domain.PriceBreakdown
	}{
		{
			name:  "below free shipping threshold",
			items: decimal.NewFromInt(900),
			want:  domain.PriceBreakdown{ItemsPrice: 900, TaxPrice: 90, ShippingPrice: 100, TotalPrice: 1090},
		},
		{
			name:  "above free shipping threshold",
			items: decimal.NewFromInt(1200),
			want:  domain.PriceBreakdown{ItemsPrice: 1200, TaxPrice: 120, ShippingPrice: 0, TotalPrice: 1320},
		},
		{
			name:  "exactly at threshold pays shipping",
			items: decimal.NewFromInt(1000),
			want:  domain.PriceBreakdown{ItemsPrice: 1000, TaxPrice: 100, ShippingPrice: 100, TotalPrice: 1200},
		},
		{
			name:  "two units of 300",
			items: p.LineTotal(300, 2),
			want:  domain.PriceBreakdown{ItemsPrice: 600, TaxPrice: 60, ShippingPrice: 100, TotalPrice: 760},
		},
		{
			name:  "tax rounds to cents",
			items: p.LineTotal(19.99, 3),
			want:  domain.PriceBreakdown{ItemsPrice: 59.97, TaxPrice: 6, ShippingPrice: 100, TotalPrice: 165.97},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Breakdown(tc.items)
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestNewPricing(t *testing.T) {
	p := NewPricing(0.2, 50, 500)
	got := p.Breakdown(decimal.NewFromInt(400))
	want := domain.PriceBreakdown{ItemsPrice: 400, TaxPrice: 80, ShippingPrice: 50, TotalPrice: 530}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}
