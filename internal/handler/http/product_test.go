package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pystore/catalog/internal/domain"
	"github.com/pystore/catalog/internal/image"
	"github.com/pystore/catalog/internal/repository"
	"github.com/pystore/catalog/internal/service"
	apperrors "github.com/pystore/catalog/pkg/errors"
	"github.com/pystore/catalog/pkg/httputil"
)

// =============================================================================
// Mock ProductRepository
// =============================================================================

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) GetByIDAny(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, filter repository.ProductFilter) (*repository.ListResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ListResult), args.Error(1)
}

func (m *mockProductRepo) Update(ctx context.Context, id string, fields repository.UpdateFields) (*domain.Product, error) {
	args := m.Called(ctx, id, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) Delete(ctx context.Context, id string, hard bool) error {
	args := m.Called(ctx, id, hard)
	return args.Error(0)
}

func (m *mockProductRepo) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

func (m *mockProductRepo) CategoryCounts(ctx context.Context, limit int) ([]domain.CategoryCount, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CategoryCount), args.Error(1)
}

func (m *mockProductRepo) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// =============================================================================
// Test helpers
// =============================================================================

const productID = "550e8400-e29b-41d4-a716-446655440001"

func productTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func productTestHandler(repo *mockProductRepo) *ProductHandler {
	logger := productTestLogger()
	resolver := image.NewResolver(image.ModeLocal, "http://localhost:8000")
	svc := service.NewProductService(repo, nil, resolver, nil, logger)
	return NewProductHandler(svc, logger)
}

func productRouter(handler *ProductHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Get("/", handler.ListProducts)
		r.Get("/search", handler.SearchProducts)
		r.Get("/{id}", handler.GetProduct)
		r.Post("/", handler.CreateProduct)
		r.Put("/{id}", handler.UpdateProduct)
		r.Delete("/{id}", handler.DeleteProduct)
	})
	r.Get("/api/v1/categories", handler.ListCategories)
	return r
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

func sampleProduct() *domain.Product {
	now := time.Now().UTC()
	price := 249.90
	return &domain.Product{
		ID:          productID,
		Name:        "Tênis de Corrida",
		Description: "Tênis esportivo",
		Image:       "tenis.jpg",
		Price:       &price,
		Category:    "calcados",
		Tags:        []string{"esporte"},
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// =============================================================================
// GET /api/v1/products - ListProducts
// =============================================================================

func TestListProducts_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	total := 1
	repo.On("List", mock.Anything, mock.AnythingOfType("repository.ProductFilter")).
		Return(&repository.ListResult{Items: []domain.Product{*sampleProduct()}, Total: &total}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data    []domain.Product `json:"data"`
		Total   *int             `json:"total"`
		Limit   int              `json:"limit"`
		Skip    int              `json:"skip"`
		HasMore bool             `json:"has_more"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	require.NotNil(t, resp.Total)
	assert.Equal(t, 1, *resp.Total)
	assert.Equal(t, 20, resp.Limit)
	assert.Equal(t, "http://localhost:8000/uploads/produtos/tenis.jpg", resp.Data[0].ImageURL)
	repo.AssertExpectations(t)
}

func TestListProducts_PassesQueryFilters(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	repo.On("List", mock.Anything, mock.MatchedBy(func(f repository.ProductFilter) bool {
		return f.Category != nil && *f.Category == "calcados" &&
			f.Limit == 5 && f.Skip == 10
	})).Return(&repository.ListResult{Items: []domain.Product{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=calcados&limit=5&skip=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestListProducts_StoreUnavailable(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	repo.On("List", mock.Anything, mock.AnythingOfType("repository.ProductFilter")).
		Return(nil, apperrors.Unavailable(assert.AnError))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "STORE_UNAVAILABLE", resp.Error.Code)
	repo.AssertExpectations(t)
}

// =============================================================================
// GET /api/v1/products/{id} - GetProduct
// =============================================================================

func TestGetProduct_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	repo.On("GetByID", mock.Anything, productID).Return(sampleProduct(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+productID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	repo.AssertExpectations(t)
}

func TestGetProduct_InvalidID(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_ID", resp.Error.Code)
	repo.AssertNotCalled(t, "GetByID")
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	repo.On("GetByID", mock.Anything, productID).Return(nil, apperrors.NotFound("product", productID))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+productID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	repo.AssertExpectations(t)
}

// =============================================================================
// POST /api/v1/products - CreateProduct
// =============================================================================

func TestCreateProduct_Created(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	b, _ := json.Marshal(CreateProductRequest{Name: "Caneca", Description: "Caneca de cerâmica", Category: "casa"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	repo.AssertExpectations(t)
}

func TestCreateProduct_InvalidJSON(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader([]byte(`{invalid`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "invalid request body")
	repo.AssertNotCalled(t, "Create")
}

func TestCreateProduct_ValidationError(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	// Missing required name.
	b, _ := json.Marshal(CreateProductRequest{Description: "Caneca de cerâmica", Category: "casa"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	repo.AssertNotCalled(t, "Create")
}

func TestCreateProduct_MissingContentType(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	b, _ := json.Marshal(CreateProductRequest{Name: "Caneca", Description: "Caneca de cerâmica"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	repo.AssertNotCalled(t, "Create")
}

// =============================================================================
// PUT /api/v1/products/{id} - UpdateProduct
// =============================================================================

func TestUpdateProduct_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	updated := sampleProduct()
	updated.Name = "Tênis de Corrida Pro"
	repo.On("Update", mock.Anything, productID, mock.AnythingOfType("repository.UpdateFields")).
		Return(updated, nil)

	b, _ := json.Marshal(map[string]any{"name": "Tênis de Corrida Pro"})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/"+productID, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	repo.AssertExpectations(t)
}

func TestUpdateProduct_NotFound(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	repo.On("Update", mock.Anything, productID, mock.AnythingOfType("repository.UpdateFields")).
		Return(nil, apperrors.NotFound("product", productID))

	b, _ := json.Marshal(map[string]any{"name": "anything"})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/"+productID, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	repo.AssertExpectations(t)
}

func TestUpdateProduct_ValidationError(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	// Negative price fails validation before the service is reached.
	b, _ := json.Marshal(map[string]any{"price": -10})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/"+productID, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	repo.AssertNotCalled(t, "Update")
}

func TestUpdateProduct_InvalidID(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	b, _ := json.Marshal(map[string]any{"name": "anything"})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/products/not-a-uuid", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_ID", resp.Error.Code)
	repo.AssertNotCalled(t, "Update")
}

// =============================================================================
// DELETE /api/v1/products/{id} - DeleteProduct
// =============================================================================

func TestDeleteProduct_Soft(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	repo.On("Delete", mock.Anything, productID, false).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+productID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Data)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "deleted", data["status"])
	assert.Equal(t, productID, data["id"])
	repo.AssertExpectations(t)
}

func TestDeleteProduct_Hard(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	repo.On("Delete", mock.Anything, productID, true).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+productID+"?hard=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestDeleteProduct_NotFound(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	repo.On("Delete", mock.Anything, productID, false).
		Return(apperrors.NotFound("product", productID))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/"+productID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	repo.AssertExpectations(t)
}

func TestDeleteProduct_InvalidID(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/products/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_ID", resp.Error.Code)
	repo.AssertNotCalled(t, "Delete")
}

// =============================================================================
// GET /api/v1/products/search - SearchProducts
// =============================================================================

func TestSearchProducts_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	results := []domain.SearchResult{{Product: *sampleProduct(), Rank: 0.42}}
	repo.On("Search", mock.Anything, "tenis", 10).Return(results, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/search?q=tenis&limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Data)
	repo.AssertExpectations(t)
}

func TestSearchProducts_MissingQuery(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	repo.AssertNotCalled(t, "Search")
}

func TestSearchProducts_MalformedLimitUsesDefault(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	repo.On("Search", mock.Anything, "tenis", service.DefaultSearchLimit).
		Return([]domain.SearchResult{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/search?q=tenis&limit=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

// =============================================================================
// GET /api/v1/categories - ListCategories
// =============================================================================

func TestListCategories_Success(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	counts := []domain.CategoryCount{
		{Category: "calcados", Count: 12},
		{Category: "vestuario", Count: 7},
	}
	repo.On("CategoryCounts", mock.Anything, service.CategoryLimit).Return(counts, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	require.NotNil(t, resp.Data)
	items := resp.Data.([]any)
	assert.Len(t, items, 2)
	repo.AssertExpectations(t)
}

func TestListCategories_StoreUnavailable(t *testing.T) {
	repo := new(mockProductRepo)
	router := productRouter(productTestHandler(repo))

	repo.On("CategoryCounts", mock.Anything, service.CategoryLimit).
		Return(nil, apperrors.Unavailable(assert.AnError))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	repo.AssertExpectations(t)
}
