package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CatalogHandler exposes the product store over HTTP.
type CatalogHandler struct {
	repository Repository
	tracer     trace.Tracer
}

func NewCatalogHandler(repository Repository, tracer trace.Tracer) *CatalogHandler {
	return &CatalogHandler{
		repository: repository,
		tracer:     tracer,
	}
}

// ListProducts handles GET /api/products.
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "list_products")
	defer span.End()

	products, err := h.repository.ListProducts(ctx)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

type priceLookupPayload struct {
	ProductIDs []string `json:"product_ids" binding:"required,min=1"`
}

// LookupPrices handles POST /api/products/prices, the bulk price check the
// checkout service runs before trusting a cart snapshot.
func (h *CatalogHandler) LookupPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "lookup_prices")
	defer span.End()

	var payload priceLookupPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.Int("catalog.requested_ids", len(payload.ProductIDs)))

	prices, err := h.repository.Prices(ctx, payload.ProductIDs)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": prices})
}

// HealthCheck reports service liveness.
func (h *CatalogHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "catalog-service",
	})
}
