package domain

type CartEntry struct {
	ProductID string  `json:"product_id"`
	Size      float64 `json:"size"`
	Count     int     `json:"count"`
}
