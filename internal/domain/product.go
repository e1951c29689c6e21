package domain

import (
	"time"
)

// DefaultCategory is assigned to products created without an explicit category.
const DefaultCategory = "uncategorized"

// Product represents a catalog product.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	ImageURL    string    `json:"image_url,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CategoryCount is one bucket of the category aggregation: a category name and
// the number of active products in it.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// SearchResult is a product row returned from full-text search together with
// its relevance rank.
type SearchResult struct {
	Product
	Rank float64 `json:"rank"`
}
