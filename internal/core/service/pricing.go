package service

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/shoe-store/internal/core/domain"
)

type Pricing struct {
	ShippingFee decimal.Decimal
	// Coupons maps an upper-case code to the fraction taken off the subtotal.
	Coupons map[string]decimal.Decimal
}

func DefaultPricing() Pricing {
	return Pricing{
		ShippingFee: decimal.NewFromInt(10),
		Coupons: map[string]decimal.Decimal{
			"WELCOME10": decimal.RequireFromString("0.10"),
		},
	}
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// moneyPlaces is the scale of every stored amount.
const moneyPlaces = 2

func wholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(moneyPlaces))
}

func (p Pricing) totals(lines []domain.OrderLine, coupon string) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, nil
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	discount := decimal.Zero
	if code := strings.ToUpper(strings.TrimSpace(coupon)); code != "" {
		rate, ok := p.Coupons[code]
		if !ok {
			return Totals{}, invalid("unknown coupon %q", coupon)
		}
		discount = subtotal.Mul(rate).Round(2)
	}

	return Totals{
		Subtotal: subtotal,
		Shipping: p.ShippingFee,
		Discount: discount,
		Total:    subtotal.Add(p.ShippingFee).Sub(discount),
	}, nil
}
