package shopify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &Client{
		baseURL: server.URL,
		token:   "test-token",
		http:    server.Client(),
		limiter: rate.NewLimiter(rate.Inf, 1),
		sleep:   func(context.Context, time.Duration) error { return nil },
		logger:  slog.Default(),
	}
}

func TestNormalizeDomain(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"https://demo.myshopify.com/": "demo.myshopify.com",
		"http://demo.myshopify.com":   "demo.myshopify.com",
		"demo.myshopify.com":          "demo.myshopify.com",
		"demo":                        "demo.myshopify.com",
		"  demo  ":                    "demo.myshopify.com",
	}
	for in, want := range cases {
		if got := NormalizeDomain(in); got != want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestListProducts(t *testing.T) {
	t.Parallel()
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Shopify-Access-Token") != "test-token" {
			t.Errorf("missing access token header")
		}
		if r.URL.Path != "/products.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"products":[{"id":1,"title":"Mug","variants":[{"id":11,"price":"9.99"}]}]}`))
	}))

	products, err := client.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 1 || products[0].Title != "Mug" || products[0].Price() != "9.99" {
		t.Fatalf("unexpected products: %+v", products)
	}
}

func TestRateLimitRetriesOnce(t *testing.T) {
	t.Parallel()
	calls := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0.5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"shop":{"id":1,"name":"Demo"}}`))
	}))

	var slept time.Duration
	client.sleep = func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	shop, err := client.GetShopInfo(context.Background())
	if err != nil {
		t.Fatalf("GetShopInfo: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry, got %d calls", calls)
	}
	if slept != 500*time.Millisecond {
		t.Errorf("slept %v, want server-supplied 500ms", slept)
	}
	if shop.Name != "Demo" {
		t.Errorf("shop = %+v", shop)
	}
}

func TestRateLimitPropagatesAfterSecond429(t *testing.T) {
	t.Parallel()
	calls := 0
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.GetShopInfo(context.Background())
	if err == nil {
		t.Fatal("expected error after retry budget exhausted")
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", calls)
	}
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusTooManyRequests {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCreateProductPayload(t *testing.T) {
	t.Parallel()
	var captured map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_, _ = w.Write([]byte(`{"product":{"id":5,"title":"Mug"}}`))
	}))

	price := 12.5
	record, err := client.CreateProduct(context.Background(), ProductInput{
		Title:  "Mug",
		Price:  &price,
		Images: []Image{{Src: "https://picsum.photos/seed/mug/800/800"}},
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if record.ID != 5 {
		t.Errorf("record id = %d", record.ID)
	}
	product, _ := captured["product"].(map[string]any)
	variants, _ := product["variants"].([]any)
	if len(variants) != 1 {
		t.Fatalf("expected one variant, got %v", product["variants"])
	}
	variant, _ := variants[0].(map[string]any)
	if variant["price"] != "12.50" {
		t.Errorf("variant price = %v, want \"12.50\"", variant["price"])
	}
	if variant["inventory_management"] != "shopify" {
		t.Errorf("inventory management = %v", variant["inventory_management"])
	}
}

func TestUpdateProductPriceGoesThroughVariant(t *testing.T) {
	t.Parallel()
	var paths []string
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/products/5.json" {
			_, _ = w.Write([]byte(`{"product":{"id":5,"title":"Mug","variants":[{"id":11,"price":"9.99"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))

	price := 19.99
	record, err := client.UpdateProduct(context.Background(), 5, ProductInput{Title: "Mug", Price: &price})
	if err != nil {
		t.Fatalf("UpdateProduct: %v", err)
	}
	if len(paths) != 2 || paths[1] != "PUT /variants/11.json" {
		t.Fatalf("expected variant update call, got %v", paths)
	}
	if record.Price() != "19.99" {
		t.Errorf("returned price = %q", record.Price())
	}
}

func TestAPIError(t *testing.T) {
	t.Parallel()
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":{"title":["can't be blank"]}}`))
	}))

	_, err := client.CreatePage(context.Background(), PageInput{Title: "", Content: "x"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", apiErr.Status)
	}
}
