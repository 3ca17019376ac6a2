package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storepilotai/storepilot/internal/session"
	"github.com/storepilotai/storepilot/internal/shopify"
)

// StoreHandler serves read-only pass-throughs to the connected store.
type StoreHandler struct {
	sessions *session.Service
	clients  StoreClientFactory
	logger   *slog.Logger
}

// NewStoreHandler creates the store read handler.
func NewStoreHandler(log *slog.Logger, sessions *session.Service, clients StoreClientFactory) *StoreHandler {
	return &StoreHandler{
		sessions: sessions,
		clients:  clients,
		logger:   log.With(slog.String("handler", "store")),
	}
}

// Register mounts the store read routes on the Echo instance.
func (h *StoreHandler) Register(e *echo.Echo) {
	group := e.Group("/api/store")
	group.GET("/products", h.list("products", func(ctx context.Context, client shopify.StoreClient) ([]shopify.Record, error) {
		return client.ListProducts(ctx)
	}))
	group.GET("/pages", h.list("pages", func(ctx context.Context, client shopify.StoreClient) ([]shopify.Record, error) {
		return client.ListPages(ctx)
	}))
	group.GET("/collections", h.list("collections", func(ctx context.Context, client shopify.StoreClient) ([]shopify.Record, error) {
		return client.ListCollections(ctx)
	}))
	group.GET("/themes", h.list("themes", func(ctx context.Context, client shopify.StoreClient) ([]shopify.Record, error) {
		return client.ListThemes(ctx)
	}))
	group.GET("/info", h.Info)
}

func (h *StoreHandler) list(name string, read func(context.Context, shopify.StoreClient) ([]shopify.Record, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := RequireConnectedSession(c, h.sessions)
		if err != nil {
			return err
		}
		records, err := read(c.Request().Context(), h.clients(sess))
		if err != nil {
			h.logger.Error("store read failed", slog.String("collection", name), slog.Any("error", err))
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		if records == nil {
			records = []shopify.Record{}
		}
		return c.JSON(http.StatusOK, map[string]any{name: records})
	}
}

// Info returns the shop record for the connected store.
func (h *StoreHandler) Info(c echo.Context) error {
	sess, err := RequireConnectedSession(c, h.sessions)
	if err != nil {
		return err
	}
	shop, err := h.clients(sess).GetShopInfo(c.Request().Context())
	if err != nil {
		h.logger.Error("store read failed", slog.String("collection", "shop"), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"shop": shop})
}
