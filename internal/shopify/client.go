// Package shopify implements the Shopify Admin REST API client used to read
// and mutate store resources.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// APIVersion is the pinned Admin REST API version.
const APIVersion = "2024-10"

const defaultListLimit = 50

// Shopify's REST bucket refills at 2 requests per second per shop.
const requestsPerSecond = 2

// StoreClient is the store-API surface the pipeline consumes. The executor
// and the replay engine depend on this interface, not on the HTTP client.
type StoreClient interface {
	ListProducts(ctx context.Context) ([]Record, error)
	ListPages(ctx context.Context) ([]Record, error)
	ListCollections(ctx context.Context) ([]Record, error)
	ListThemes(ctx context.Context) ([]Record, error)
	GetShopInfo(ctx context.Context) (Record, error)
	CreateProduct(ctx context.Context, input ProductInput) (Record, error)
	UpdateProduct(ctx context.Context, id int64, input ProductInput) (Record, error)
	CreatePage(ctx context.Context, input PageInput) (Record, error)
	UpdatePage(ctx context.Context, id int64, input PageInput) (Record, error)
	CreateCollection(ctx context.Context, input CollectionInput) (Record, error)
	UpdateProductSEO(ctx context.Context, id int64, input SEOInput) (Record, error)
	SetActiveTheme(ctx context.Context, id int64) (Record, error)
}

// APIError is a non-2xx response from the Admin API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify API error %d: %s", e.Status, e.Body)
}

// Client calls the Shopify Admin REST API for one store using a session
// access token. It rate-limits itself and retries exactly once on 429,
// honoring the server-supplied Retry-After.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// NewClient builds a client for the given store domain and access token.
func NewClient(log *slog.Logger, storeDomain, accessToken string) *Client {
	domain := NormalizeDomain(storeDomain)
	return &Client{
		baseURL: "https://" + domain + "/admin/api/" + APIVersion,
		token:   accessToken,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		sleep:   sleepCtx,
		logger:  log.With(slog.String("client", "shopify"), slog.String("store", domain)),
	}
}

// NormalizeDomain strips the scheme and any trailing slash from a store
// domain, and expands a bare shop name to its myshopify.com form.
func NormalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimRight(domain, "/")
	if domain != "" && !strings.Contains(domain, ".") {
		domain += ".myshopify.com"
	}
	return domain
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, method, path, body, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, retryOnLimit bool) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("close response body failed", slog.Any("error", err))
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests && retryOnLimit {
		backoff := retryAfter(resp.Header.Get("Retry-After"))
		c.logger.Warn("rate limited, retrying once", slog.Duration("backoff", backoff), slog.String("path", path))
		if err := c.sleep(ctx, backoff); err != nil {
			return err
		}
		return c.do(ctx, method, path, body, out, false)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func retryAfter(header string) time.Duration {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(header), 64)
	if err != nil || seconds <= 0 {
		seconds = 2
	}
	return time.Duration(seconds * float64(time.Second))
}

// ListProducts returns up to 50 products.
func (c *Client) ListProducts(ctx context.Context) ([]Record, error) {
	var out struct {
		Products []Record `json:"products"`
	}
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("/products.json?limit=%d", defaultListLimit), nil, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

// ListPages returns up to 50 pages.
func (c *Client) ListPages(ctx context.Context) ([]Record, error) {
	var out struct {
		Pages []Record `json:"pages"`
	}
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("/pages.json?limit=%d", defaultListLimit), nil, &out); err != nil {
		return nil, err
	}
	return out.Pages, nil
}

// ListCollections returns up to 50 custom collections.
func (c *Client) ListCollections(ctx context.Context) ([]Record, error) {
	var out struct {
		Collections []Record `json:"custom_collections"`
	}
	if err := c.request(ctx, http.MethodGet, fmt.Sprintf("/custom_collections.json?limit=%d", defaultListLimit), nil, &out); err != nil {
		return nil, err
	}
	return out.Collections, nil
}

// ListThemes returns the store's themes.
func (c *Client) ListThemes(ctx context.Context) ([]Record, error) {
	var out struct {
		Themes []Record `json:"themes"`
	}
	if err := c.request(ctx, http.MethodGet, "/themes.json", nil, &out); err != nil {
		return nil, err
	}
	return out.Themes, nil
}

// GetShopInfo returns the shop resource.
func (c *Client) GetShopInfo(ctx context.Context) (Record, error) {
	var out struct {
		Shop Record `json:"shop"`
	}
	if err := c.request(ctx, http.MethodGet, "/shop.json", nil, &out); err != nil {
		return Record{}, err
	}
	return out.Shop, nil
}

// CreateProduct creates a product. The price, when given, becomes the first
// variant's price.
func (c *Client) CreateProduct(ctx context.Context, input ProductInput) (Record, error) {
	product := map[string]any{"title": input.Title}
	if input.Description != "" {
		product["body_html"] = input.Description
	}
	if input.Vendor != "" {
		product["vendor"] = input.Vendor
	}
	if input.ProductType != "" {
		product["product_type"] = input.ProductType
	}
	if input.Tags != "" {
		product["tags"] = input.Tags
	}
	variant := Variant{InventoryManagement: "shopify"}
	if input.Price != nil {
		variant.Price = formatPrice(*input.Price)
	}
	product["variants"] = []Variant{variant}
	if len(input.Images) > 0 {
		product["images"] = input.Images
	}

	var out struct {
		Product Record `json:"product"`
	}
	if err := c.request(ctx, http.MethodPost, "/products.json", map[string]any{"product": product}, &out); err != nil {
		return Record{}, err
	}
	return out.Product, nil
}

// UpdateProduct applies the given fields to an existing product. A price
// change goes through a second call updating the first variant.
func (c *Client) UpdateProduct(ctx context.Context, id int64, input ProductInput) (Record, error) {
	product := map[string]any{"id": id}
	if input.Title != "" {
		product["title"] = input.Title
	}
	if input.Description != "" {
		product["body_html"] = input.Description
	}
	if input.Vendor != "" {
		product["vendor"] = input.Vendor
	}
	if input.ProductType != "" {
		product["product_type"] = input.ProductType
	}
	if input.Tags != "" {
		product["tags"] = input.Tags
	}

	var out struct {
		Product Record `json:"product"`
	}
	if err := c.request(ctx, http.MethodPut, fmt.Sprintf("/products/%d.json", id), map[string]any{"product": product}, &out); err != nil {
		return Record{}, err
	}

	if input.Price != nil && len(out.Product.Variants) > 0 {
		variantID := out.Product.Variants[0].ID
		payload := map[string]any{"variant": Variant{ID: variantID, Price: formatPrice(*input.Price)}}
		if err := c.request(ctx, http.MethodPut, fmt.Sprintf("/variants/%d.json", variantID), payload, nil); err != nil {
			return out.Product, err
		}
		out.Product.Variants[0].Price = formatPrice(*input.Price)
	}
	return out.Product, nil
}

// CreatePage creates a page.
func (c *Client) CreatePage(ctx context.Context, input PageInput) (Record, error) {
	payload := map[string]any{"page": map[string]any{"title": input.Title, "body_html": input.Content}}
	var out struct {
		Page Record `json:"page"`
	}
	if err := c.request(ctx, http.MethodPost, "/pages.json", payload, &out); err != nil {
		return Record{}, err
	}
	return out.Page, nil
}

// UpdatePage applies the given fields to an existing page.
func (c *Client) UpdatePage(ctx context.Context, id int64, input PageInput) (Record, error) {
	page := map[string]any{"id": id}
	if input.Title != "" {
		page["title"] = input.Title
	}
	if input.Content != "" {
		page["body_html"] = input.Content
	}
	var out struct {
		Page Record `json:"page"`
	}
	if err := c.request(ctx, http.MethodPut, fmt.Sprintf("/pages/%d.json", id), map[string]any{"page": page}, &out); err != nil {
		return Record{}, err
	}
	return out.Page, nil
}

// CreateCollection creates a custom collection.
func (c *Client) CreateCollection(ctx context.Context, input CollectionInput) (Record, error) {
	collection := map[string]any{"title": input.Title}
	if input.Description != "" {
		collection["body_html"] = input.Description
	}
	if input.SortOrder != "" {
		collection["sort_order"] = input.SortOrder
	}
	var out struct {
		Collection Record `json:"custom_collection"`
	}
	if err := c.request(ctx, http.MethodPost, "/custom_collections.json", map[string]any{"custom_collection": collection}, &out); err != nil {
		return Record{}, err
	}
	return out.Collection, nil
}

// UpdateProductSEO sets the product's global title and description metafields.
func (c *Client) UpdateProductSEO(ctx context.Context, id int64, input SEOInput) (Record, error) {
	product := map[string]any{
		"id":                                id,
		"metafields_global_title_tag":       input.MetaTitle,
		"metafields_global_description_tag": input.MetaDescription,
	}
	var out struct {
		Product Record `json:"product"`
	}
	if err := c.request(ctx, http.MethodPut, fmt.Sprintf("/products/%d.json", id), map[string]any{"product": product}, &out); err != nil {
		return Record{}, err
	}
	return out.Product, nil
}

// SetActiveTheme publishes the given theme by assigning it the main role.
func (c *Client) SetActiveTheme(ctx context.Context, id int64) (Record, error) {
	payload := map[string]any{"theme": map[string]any{"id": id, "role": "main"}}
	var out struct {
		Theme Record `json:"theme"`
	}
	if err := c.request(ctx, http.MethodPut, fmt.Sprintf("/themes/%d.json", id), payload, &out); err != nil {
		return Record{}, err
	}
	return out.Theme, nil
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}
