package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pystore/catalog/internal/domain"
	"github.com/pystore/catalog/internal/repository"
	"github.com/pystore/catalog/pkg/database"
	apperrors "github.com/pystore/catalog/pkg/errors"
)

// queryTimeout bounds every single store operation so a stalled connection
// cannot hold a request open indefinitely.
const queryTimeout = 5 * time.Second

const productColumns = "id, name, description, image, price, category, tags, active, created_at, updated_at"

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db *database.Manager
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db *database.Manager) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a new product into the database.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	db, err := r.db.Handle(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO products (id, name, description, image, price, category, tags, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	ctx, end := database.TraceQuery(ctx, "CreateProduct", query)
	defer func() { end(err) }()

	_, err = db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Image,
		p.Price,
		p.Category,
		p.Tags,
		p.Active,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return classify("insert product", err)
	}

	return nil
}

// GetByID retrieves an active product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1 AND active = TRUE`, productColumns)
	return r.scanProduct(ctx, "GetProduct", query, id)
}

// GetByIDAny retrieves a product by its ID regardless of the active flag.
func (r *ProductRepository) GetByIDAny(ctx context.Context, id string) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	return r.scanProduct(ctx, "GetProductAny", query, id)
}

// List returns active products matching the given filter, newest first.
// The total count is only computed for the first page (Skip == 0).
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (_ *repository.ListResult, err error) {
	db, err := r.db.Handle(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	conditions := []string{"active = TRUE"}
	var args []any
	argIndex := 1

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, *filter.Category)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf(
			"to_tsvector('simple', name || ' ' || description) @@ plainto_tsquery('simple', $%d)", argIndex))
		args = append(args, *filter.Search)
		argIndex++
	}

	if filter.PriceMin != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIndex))
		args = append(args, *filter.PriceMin)
		argIndex++
	}

	if filter.PriceMax != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIndex))
		args = append(args, *filter.PriceMax)
		argIndex++
	}

	if len(filter.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags && $%d", argIndex))
		args = append(args, filter.Tags)
		argIndex++
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, argIndex, argIndex+1,
	)

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := db.Query(ctx, query, append(args, limit, skip)...)
	if err != nil {
		return nil, classify("list products", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err = scanRow(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, classify("iterate product rows", err)
	}

	result := &repository.ListResult{
		Items:   products,
		HasMore: len(products) == limit,
	}

	// Counting every page doubles the query load for no benefit; clients get
	// the total with their first page and carry it forward.
	if skip == 0 {
		countQuery := "SELECT count(*) FROM products " + whereClause
		var total int
		if err = db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
			return nil, classify("count products", err)
		}
		result.Total = &total
	}

	return result, nil
}

// Update applies a partial update to an active product and returns the
// updated row. Nil fields keep their current value.
func (r *ProductRepository) Update(ctx context.Context, id string, fields repository.UpdateFields) (_ *domain.Product, err error) {
	db, err := r.db.Handle(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		UPDATE products
		SET name        = COALESCE($2, name),
		    description = COALESCE($3, description),
		    image       = COALESCE($4, image),
		    price       = COALESCE($5, price),
		    category    = COALESCE($6, category),
		    tags        = COALESCE($7, tags),
		    updated_at  = $8
		WHERE id = $1 AND active = TRUE
		RETURNING %s`, productColumns)

	ctx, end := database.TraceQuery(ctx, "UpdateProduct", query)
	defer func() { end(err) }()

	var p domain.Product
	row := db.QueryRow(ctx, query,
		id,
		fields.Name,
		fields.Description,
		fields.Image,
		fields.Price,
		fields.Category,
		fields.Tags,
		time.Now().UTC(),
	)
	if err = scanRow(row, &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, classify("update product", err)
	}

	return &p, nil
}

// Delete removes a product. A soft delete clears the active flag so the row
// disappears from reads but stays recoverable; a hard delete drops the row.
func (r *ProductRepository) Delete(ctx context.Context, id string, hard bool) (err error) {
	db, err := r.db.Handle(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `UPDATE products SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active = TRUE`
	if hard {
		query = `DELETE FROM products WHERE id = $1`
	}

	ctx, end := database.TraceQuery(ctx, "DeleteProduct", query)
	defer func() { end(err) }()

	ct, err := db.Exec(ctx, query, id)
	if err != nil {
		return classify("delete product", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// Search runs a ranked full-text search over name and description of active
// products.
func (r *ProductRepository) Search(ctx context.Context, query string, limit int) (_ []domain.SearchResult, err error) {
	db, err := r.db.Handle(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sql := fmt.Sprintf(`
		SELECT %s,
		       ts_rank(to_tsvector('simple', name || ' ' || description), plainto_tsquery('simple', $1)) AS rank
		FROM products
		WHERE active = TRUE
		  AND to_tsvector('simple', name || ' ' || description) @@ plainto_tsquery('simple', $1)
		ORDER BY rank DESC, created_at DESC
		LIMIT $2`, productColumns)

	ctx, end := database.TraceQuery(ctx, "SearchProducts", sql)
	defer func() { end(err) }()

	rows, err := db.Query(ctx, sql, query, limit)
	if err != nil {
		return nil, classify("search products", err)
	}
	defer rows.Close()

	results := []domain.SearchResult{}
	for rows.Next() {
		var res domain.SearchResult
		if err = rows.Scan(
			&res.ID,
			&res.Name,
			&res.Description,
			&res.Image,
			&res.Price,
			&res.Category,
			&res.Tags,
			&res.Active,
			&res.CreatedAt,
			&res.UpdatedAt,
			&res.Rank,
		); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		results = append(results, res)
	}
	if err = rows.Err(); err != nil {
		return nil, classify("iterate search rows", err)
	}

	return results, nil
}

// CategoryCounts aggregates active products per category, largest first.
func (r *ProductRepository) CategoryCounts(ctx context.Context, limit int) (_ []domain.CategoryCount, err error) {
	db, err := r.db.Handle(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT COALESCE(NULLIF(category, ''), 'uncategorized') AS category, count(*) AS total
		FROM products
		WHERE active = TRUE
		GROUP BY 1
		ORDER BY total DESC, category ASC
		LIMIT $1`

	ctx, end := database.TraceQuery(ctx, "CategoryCounts", query)
	defer func() { end(err) }()

	rows, err := db.Query(ctx, query, limit)
	if err != nil {
		return nil, classify("aggregate categories", err)
	}
	defer rows.Close()

	counts := []domain.CategoryCount{}
	for rows.Next() {
		var c domain.CategoryCount
		if err = rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		counts = append(counts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, classify("iterate category rows", err)
	}

	return counts, nil
}

// EnsureIndexes creates the supporting indexes if they do not exist. It is
// safe to call repeatedly.
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	db, err := r.db.Handle(ctx)
	if err != nil {
		return err
	}

	statements := []string{
		`CREATE INDEX IF NOT EXISTS products_fts_idx
			ON products USING GIN (to_tsvector('simple', name || ' ' || description))`,
		`CREATE INDEX IF NOT EXISTS products_created_at_idx
			ON products (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS products_category_created_at_idx
			ON products (category, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS products_active_idx
			ON products (active)`,
	}

	for _, stmt := range statements {
		stmtCtx, end := database.TraceQuery(ctx, "EnsureIndexes", stmt)
		_, err := db.Exec(stmtCtx, stmt)
		end(err)
		if err != nil {
			return classify("create index", err)
		}
	}

	return nil
}

// scanProduct executes a query expected to return a single product row.
func (r *ProductRepository) scanProduct(ctx context.Context, op, query, id string) (_ *domain.Product, err error) {
	db, err := r.db.Handle(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var p domain.Product
	if err = scanRow(db.QueryRow(ctx, query, id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, classify("scan product", err)
	}

	return &p, nil
}

// scanRow scans one product row from either a pgx.Row or pgx.Rows.
func scanRow(row pgx.Row, p *domain.Product) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Image,
		&p.Price,
		&p.Category,
		&p.Tags,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

// classify wraps store errors, mapping connection-level failures to the
// unavailable sentinel so callers can answer with 503 instead of 500.
func classify(op string, err error) error {
	if database.IsConnectionError(err) {
		return apperrors.Unavailable(fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
