package service

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// Pricing calcula el desglose de precios de un pedido.
type Pricing struct {
	TaxRate          decimal.Decimal
	ShippingFlatFee  decimal.Decimal
	FreeShippingOver decimal.Decimal
}

// DefaultPricing: 10% de impuesto, envío 100 salvo que el subtotal supere 1000.
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:          decimal.NewFromFloat(0.10),
		ShippingFlatFee:  decimal.NewFromInt(100),
		FreeShippingOver: decimal.NewFromInt(1000),
	}
}

func NewPricing(taxRate, shippingFlatFee, freeShippingOver float64) Pricing {
	return Pricing{
		TaxRate:          decimal.NewFromFloat(taxRate),
		ShippingFlatFee:  decimal.NewFromFloat(shippingFlatFee),
		FreeShippingOver: decimal.NewFromFloat(freeShippingOver),
	}
}

// LineTotal multiplica precio unitario por cantidad sin error de coma flotante.
func (p Pricing) LineTotal(unitPrice float64, qty int) decimal.Decimal {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(qty)))
}

// Breakdown aplica impuesto y envío sobre el subtotal.
func (p Pricing) Breakdown(itemsPrice decimal.Decimal) domain.PriceBreakdown {
	items := itemsPrice.Round(2)
	tax := p.TaxRate.Mul(items).Round(2)
	shipping := p.ShippingFlatFee
	if items.GreaterThan(p.FreeShippingOver) {
		shipping = decimal.Zero
	}
	total := items.Add(tax).Add(shipping).Round(2)
	return domain.PriceBreakdown{
		ItemsPrice:    items.InexactFloat64(),
		TaxPrice:      tax.InexactFloat64(),
		ShippingPrice: shipping.Round(2).InexactFloat64(),
		TotalPrice:    total.InexactFloat64(),
	}
}
