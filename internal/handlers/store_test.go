package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/storepilotai/storepilot/internal/session"
	"github.com/storepilotai/storepilot/internal/shopify"
)

func newStoreHandler(t *testing.T, client *stubClient) (*StoreHandler, session.Session) {
	t.Helper()
	sessions, sess := connectedSession(t)
	handler := NewStoreHandler(slog.Default(), sessions, func(session.Session) shopify.StoreClient {
		return client
	})
	return handler, sess
}

func listProducts(ctx context.Context, client shopify.StoreClient) ([]shopify.Record, error) {
	return client.ListProducts(ctx)
}

func TestStoreProductsPassThrough(t *testing.T) {
	client := &stubClient{products: []shopify.Record{{ID: 1, Title: "Mug"}}}
	handler, sess := newStoreHandler(t, client)

	c, rec := request(t, http.MethodGet, "/api/store/products", "", sess.ID)
	if err := handler.list("products", listProducts)(c); err != nil {
		t.Fatalf("products: %v", err)
	}
	var resp struct {
		Products []shopify.Record `json:"products"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].Title != "Mug" {
		t.Errorf("unexpected products: %+v", resp.Products)
	}
}

func TestStoreProductsEmptyIsArray(t *testing.T) {
	handler, sess := newStoreHandler(t, &stubClient{})

	c, rec := request(t, http.MethodGet, "/api/store/products", "", sess.ID)
	if err := handler.list("products", listProducts)(c); err != nil {
		t.Fatalf("products: %v", err)
	}
	if got := rec.Body.String(); !json.Valid([]byte(got)) || got == "" {
		t.Fatalf("bad body: %q", got)
	}
	var resp map[string]json.RawMessage
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if string(resp["products"]) != "[]" {
		t.Errorf("products = %s, want []", resp["products"])
	}
}

func TestStoreReadFailureIsBadGateway(t *testing.T) {
	client := &stubClient{listErr: errors.New("shopify API error 500")}
	handler, sess := newStoreHandler(t, client)

	c, _ := request(t, http.MethodGet, "/api/store/products", "", sess.ID)
	err := handler.list("products", listProducts)(c)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadGateway {
		t.Fatalf("got %v, want 502", err)
	}
}

func TestStoreInfo(t *testing.T) {
	handler, sess := newStoreHandler(t, &stubClient{})

	c, rec := request(t, http.MethodGet, "/api/store/info", "", sess.ID)
	if err := handler.Info(c); err != nil {
		t.Fatalf("Info: %v", err)
	}
	var resp struct {
		Shop shopify.Record `json:"shop"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Shop.Domain != "demo.myshopify.com" {
		t.Errorf("shop = %+v", resp.Shop)
	}
}
