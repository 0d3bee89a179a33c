package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ProductStore supplies the authoritative unit prices the orchestrator
// checks a cart against. The client-sent total is never trusted on its own.
type ProductStore interface {
	Prices(ctx context.Context, productIDs []string) (map[string]float64, error)
}

// CatalogClient implements ProductStore against the catalog service.
type CatalogClient struct {
	client *resty.Client
}

func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

type priceLookupRequest struct {
	ProductIDs []string `json:"product_ids"`
}

type priceLookupResponse struct {
	Prices map[string]float64 `json:"prices"`
}

func (c *CatalogClient) Prices(ctx context.Context, productIDs []string) (map[string]float64, error) {
	var out priceLookupResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(priceLookupRequest{ProductIDs: productIDs}).
		SetResult(&out).
		Post("/api/products/prices")
	if err != nil {
		return nil, fmt.Errorf("catalog unreachable: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("catalog price lookup failed with HTTP %d", resp.StatusCode())
	}
	return out.Prices, nil
}
