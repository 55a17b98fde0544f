package storerpc

import (
	"github.com/shopspring/decimal"
)

type OrderLine struct {
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Size      float64         `json:"size"`
	Quantity  int32           `json:"quantity"`
}

type Contact struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

type SubmitOrderRequest struct {
	RequestId     string      `json:"request_id"`
	Contact       Contact     `json:"contact"`
	PaymentMethod string      `json:"payment_method"`
	CouponCode    string      `json:"coupon_code"`
	Lines         []OrderLine `json:"lines"`
}

type Shortage struct {
	ProductID string  `json:"product_id"`
	Size      float64 `json:"size"`
	Requested int32   `json:"requested"`
	Available int32   `json:"available"`
}

type SubmitOrderResponse struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	OrderId   string     `json:"order_id,omitempty"`
	Shortages []Shortage `json:"shortages,omitempty"`
}

func (r *SubmitOrderResponse) GetSuccess() bool {
	if r == nil {
		return false
	}
	return r.Success
}

func (r *SubmitOrderResponse) GetOrderId() string {
	if r == nil {
		return ""
	}
	return r.OrderId
}

type Order struct {
	Id            string          `json:"id"`
	Email         string          `json:"email"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	PaymentStatus string          `json:"payment_status"`
	Total         decimal.Decimal `json:"total"`
	OrderedAtUnix int64           `json:"ordered_at_unix"`
	Lines         []OrderLine     `json:"lines"`
}

type ListOrdersRequest struct{}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

type DeleteOrderRequest struct {
	OrderId string `json:"order_id"`
}

type DeleteOrderResponse struct {
	Success bool `json:"success"`
}

type SizeStock struct {
	Size  float64 `json:"size"`
	Stock int32   `json:"stock"`
}

type GetStockRequest struct {
	ProductId string `json:"product_id"`
}

type GetStockResponse struct {
	ProductId string      `json:"product_id"`
	Sizes     []SizeStock `json:"sizes"`
}
