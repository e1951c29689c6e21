package repository

import (
	"context"

	"github.com/pystore/catalog/internal/domain"
)

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	Category *string
	Search   *string
	PriceMin *float64
	PriceMax *float64
	Tags     []string
	Limit    int
	Skip     int
}

// ListResult holds one page of products. Total is only computed for the first
// page (Skip == 0) and is nil otherwise; HasMore reports whether the page was
// filled to its limit.
type ListResult struct {
	Items   []domain.Product
	Total   *int
	HasMore bool
}

// UpdateFields holds the optional fields of a partial product update. Nil
// fields are left unchanged in the store.
type UpdateFields struct {
	Name        *string
	Description *string
	Image       *string
	Price       *float64
	Category    *string
	Tags        []string
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product into the store.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves an active product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetByIDAny retrieves a product by its identifier regardless of its
	// active flag. Used by administrative reads and the seed tool.
	GetByIDAny(ctx context.Context, id string) (*domain.Product, error)

	// List returns active products matching the given filter, newest first.
	List(ctx context.Context, filter ProductFilter) (*ListResult, error)

	// Update applies a partial update to an active product and returns the
	// updated row.
	Update(ctx context.Context, id string, fields UpdateFields) (*domain.Product, error)

	// Delete removes a product. A soft delete clears the active flag; a hard
	// delete removes the row entirely.
	Delete(ctx context.Context, id string, hard bool) error

	// Search runs a full-text search over name and description of active
	// products, ranked by relevance.
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)

	// CategoryCounts aggregates active products per category, largest first.
	CategoryCounts(ctx context.Context, limit int) ([]domain.CategoryCount, error)

	// EnsureIndexes creates the supporting indexes if they do not exist.
	EnsureIndexes(ctx context.Context) error
}
