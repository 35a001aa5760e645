package domain

import "time"

type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Brand        string    `json:"brand,omitempty"`
	Category     string    `json:"category"`
	Image        string    `json:"image,omitempty"`
	Price        float64   `json:"price"`
	CountInStock int       `json:"countInStock"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ProductFilter agrupa los criterios de búsqueda del catálogo.
type ProductFilter struct {
	Keyword  string
	Category string
	Limit    int
	Offset   int
}

type ProductPage struct {
	Items []Product `json:"items"`
	Page  int       `json:"page"`
	Pages int       `json:"pages"`
	Total int64     `json:"total"`
}
