package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pystore/catalog/internal/cache"
	"github.com/pystore/catalog/internal/domain"
	"github.com/pystore/catalog/internal/event"
	"github.com/pystore/catalog/internal/image"
	"github.com/pystore/catalog/internal/repository"
	apperrors "github.com/pystore/catalog/pkg/errors"
)

// Listing bounds.
const (
	MaxListLimit       = 100
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
	CategoryLimit      = 20
)

// ProductService implements the business logic for catalog operations.
type ProductService struct {
	repo     repository.ProductRepository
	producer *event.Producer
	resolver *image.Resolver
	cache    *cache.Cache
	logger   *slog.Logger
}

// NewProductService creates a new product service. The producer and cache may
// be nil when eventing or caching is disabled.
func NewProductService(
	repo repository.ProductRepository,
	producer *event.Producer,
	resolver *image.Resolver,
	c *cache.Cache,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		repo:     repo,
		producer: producer,
		resolver: resolver,
		cache:    c,
		logger:   logger,
	}
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name        string
	Description string
	Image       string
	Price       *float64
	Category    string
	Tags        []string
}

// UpdateProductInput holds the parameters for a partial product update.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Image       *string
	Price       *float64
	Category    *string
	Tags        []string
}

// CreateProduct creates a new product with the given input.
func (s *ProductService) CreateProduct(ctx context.Context, input *CreateProductInput) (*domain.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.InvalidInput("product name is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.InvalidInput("product description is required")
	}
	if input.Price != nil && *input.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}

	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = domain.DefaultCategory
	}

	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Image:       input.Image,
		Price:       input.Price,
		Category:    category,
		Tags:        tags,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.cache.InvalidateCategoryCounts(ctx)

	if err := s.producer.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("category", product.Category),
	)

	s.resolve(product)
	return product, nil
}

// GetProduct retrieves an active product by its ID. A malformed ID is
// rejected before the store is asked.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.InvalidID(id)
	}

	if p, ok := s.cache.GetProduct(ctx, id); ok {
		s.resolve(p)
		return p, nil
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	s.cache.SetProduct(ctx, product)

	s.resolve(product)
	return product, nil
}

// ListProducts returns a filtered, paginated list of active products.
func (s *ProductService) ListProducts(ctx context.Context, filter repository.ProductFilter) (*repository.ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}

	result, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	for i := range result.Items {
		s.resolve(&result.Items[i])
	}

	return result, nil
}

// SearchProducts runs a ranked full-text search over active products.
func (s *ProductService) SearchProducts(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.InvalidInput("search query is required")
	}

	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	results, err := s.repo.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}

	for i := range results {
		s.resolve(&results[i].Product)
	}

	return results, nil
}

// CategoryCounts aggregates active products per category.
func (s *ProductService) CategoryCounts(ctx context.Context) ([]domain.CategoryCount, error) {
	if counts, ok := s.cache.GetCategoryCounts(ctx); ok {
		return counts, nil
	}

	counts, err := s.repo.CategoryCounts(ctx, CategoryLimit)
	if err != nil {
		return nil, fmt.Errorf("aggregate categories: %w", err)
	}

	s.cache.SetCategoryCounts(ctx, counts)

	return counts, nil
}

// UpdateProduct applies partial updates to an active product.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, input *UpdateProductInput) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.InvalidID(id)
	}

	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, apperrors.InvalidInput("product name must not be empty")
	}
	if input.Price != nil && *input.Price < 0 {
		return nil, apperrors.InvalidInput("price must not be negative")
	}
	if input.Category != nil && strings.TrimSpace(*input.Category) == "" {
		return nil, apperrors.InvalidInput("category must not be empty")
	}

	product, err := s.repo.Update(ctx, id, repository.UpdateFields{
		Name:        input.Name,
		Description: input.Description,
		Image:       input.Image,
		Price:       input.Price,
		Category:    input.Category,
		Tags:        input.Tags,
	})
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.cache.InvalidateProduct(ctx, id)
	s.cache.InvalidateCategoryCounts(ctx)

	if err := s.producer.PublishProductUpdated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.updated event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", product.ID),
	)

	s.resolve(product)
	return product, nil
}

// DeleteProduct removes a product by its ID. The default is a soft delete
// that hides the product from reads; hard removes the row permanently.
func (s *ProductService) DeleteProduct(ctx context.Context, id string, hard bool) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.InvalidID(id)
	}

	if err := s.repo.Delete(ctx, id, hard); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.cache.InvalidateProduct(ctx, id)
	s.cache.InvalidateCategoryCounts(ctx)

	if err := s.producer.PublishProductDeleted(ctx, id, hard); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.deleted event",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", id),
		slog.Bool("hard", hard),
	)

	return nil
}

// EnsureIndexes creates the supporting store indexes.
func (s *ProductService) EnsureIndexes(ctx context.Context) error {
	return s.repo.EnsureIndexes(ctx)
}

// resolve fills the product's ImageURL from its stored image token.
func (s *ProductService) resolve(p *domain.Product) {
	p.ImageURL = s.resolver.Resolve(p.Image, p.Name)
}
