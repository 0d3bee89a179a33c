package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type stubRepository struct {
	products []*Product
	prices   map[string]float64
	err      error
	gotIDs   []string
}

func (s *stubRepository) ListProducts(ctx context.Context) ([]*Product, error) {
	return s.products, s.err
}

func (s *stubRepository) Prices(ctx context.Context, productIDs []string) (map[string]float64, error) {
	s.gotIDs = productIDs
	return s.prices, s.err
}

func newTestRouter(repository Repository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewCatalogHandler(repository, noop.NewTracerProvider().Tracer("test"))

	router := gin.New()
	router.GET("/health", handler.HealthCheck)
	router.GET("/api/products", handler.ListProducts)
	router.POST("/api/products/prices", handler.LookupPrices)
	return router
}

func TestListProducts(t *testing.T) {
	repo := &stubRepository{
		products: []*Product{
			{ID: "1", Name: "Elegant Evening Dress", Price: 120, Category: "women", InStock: true},
			{ID: "9", Name: "Silk Scarf", Price: 40, Category: "accessories", InStock: true},
		},
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Products []Product `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Products, 2)
	assert.Equal(t, "Elegant Evening Dress", resp.Products[0].Name)
	assert.Equal(t, float64(120), resp.Products[0].Price)
}

func TestListProducts_RepositoryError(t *testing.T) {
	router := newTestRouter(&stubRepository{err: errors.New("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLookupPrices(t *testing.T) {
	repo := &stubRepository{
		prices: map[string]float64{"1": 120, "9": 40},
	}
	router := newTestRouter(repo)

	body := `{"product_ids":["1","9"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/products/prices", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"1", "9"}, repo.gotIDs)

	var resp struct {
		Prices map[string]float64 `json:"prices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(120), resp.Prices["1"])
	assert.Equal(t, float64(40), resp.Prices["9"])
}

func TestLookupPrices_BindingRejects(t *testing.T) {
	router := newTestRouter(&stubRepository{})

	cases := []struct {
		name string
		body string
	}{
		{"not json", "not-json"},
		{"missing ids", `{}`},
		{"empty ids", `{"product_ids":[]}`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/products/prices", bytes.NewBufferString(c.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&stubRepository{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "catalog-service")
}
