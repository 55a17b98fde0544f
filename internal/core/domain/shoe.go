package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrDuplicateSize = errors.New("duplicate size")
	ErrNegativeStock = errors.New("negative stock")
)

type SizeStock struct {
	Size  float64 `json:"size"`
	Stock int     `json:"stock"`
}

type Shoe struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Brand         string           `json:"brand"`
	Category      string           `json:"category"`
	Description   string           `json:"description"`
	Alt           string           `json:"alt"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	Sizes         []SizeStock      `json:"sizes"`
	ImageID       string           `json:"image_id,omitempty"`
	DefaultImage  string           `json:"default_image"`
	Version       int              `json:"version"` // optimistic locking
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// EffectivePrice is what a shopper pays today.
func (s Shoe) EffectivePrice() decimal.Decimal {
	if s.DiscountPrice != nil {
		return *s.DiscountPrice
	}
	return s.Price
}

// ValidateSizes checks that sizes are unique and no stock is negative.
func ValidateSizes(sizes []SizeStock) error {
	seen := make(map[float64]struct{}, len(sizes))
	for _, s := range sizes {
		if _, ok := seen[s.Size]; ok {
			return fmt.Errorf("%w: %v", ErrDuplicateSize, s.Size)
		}
		seen[s.Size] = struct{}{}
		if s.Stock < 0 {
			return fmt.Errorf("%w: size %v has %d", ErrNegativeStock, s.Size, s.Stock)
		}
	}
	return nil
}

func CloneSizes(sizes []SizeStock) []SizeStock {
	out := make([]SizeStock, len(sizes))
	copy(out, sizes)
	return out
}

type ShoeField string

const (
	ShoeFieldBrand    ShoeField = "brand"
	ShoeFieldCategory ShoeField = "category"
)

func (f ShoeField) Valid() bool {
	return f == ShoeFieldBrand || f == ShoeFieldCategory
}

// ShoeQuery filters by exact field equality. Empty slices match everything.
type ShoeQuery struct {
	IDs        []string
	Brands     []string
	Categories []string
	Take       int
}

type StockUpdate struct {
	ProductID string      `json:"product_id"`
	Sizes     []SizeStock `json:"sizes"`
	At        time.Time   `json:"at"`
}
