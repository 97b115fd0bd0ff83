package domain

import "github.com/shopspring/decimal"

type ProductRef string

type Product struct {
	Ref      ProductRef      `json:"ref"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url,omitempty"`
}
