package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/storepilotai/storepilot/internal/auth"
	"github.com/storepilotai/storepilot/internal/session"
)

// AuthHandler serves the store OAuth flow and issues session JWTs.
type AuthHandler struct {
	sessions  *session.Service
	jwtSecret string
	expiresIn time.Duration
	logger    *slog.Logger
}

// ConnectResponse is the body for GET /auth/shopify: where to send the
// merchant, and the token the client uses for everything after.
type ConnectResponse struct {
	AuthURL     string `json:"auth_url"`
	SessionID   string `json:"session_id"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   string `json:"expires_at"`
}

// CallbackResponse is the body for GET /auth/shopify/callback.
type CallbackResponse struct {
	Connected bool   `json:"connected"`
	Shop      string `json:"shop"`
	Scopes    string `json:"scopes,omitempty"`
}

// StatusResponse is the body for GET /auth/status.
type StatusResponse struct {
	Connected   bool   `json:"connected"`
	Shop        string `json:"shop"`
	Scopes      string `json:"scopes,omitempty"`
	ConnectedAt string `json:"connected_at,omitempty"`
}

// NewAuthHandler creates an auth handler with the session service and JWT config.
func NewAuthHandler(log *slog.Logger, sessions *session.Service, jwtSecret string, expiresIn time.Duration) *AuthHandler {
	return &AuthHandler{
		sessions:  sessions,
		jwtSecret: jwtSecret,
		expiresIn: expiresIn,
		logger:    log.With(slog.String("handler", "auth")),
	}
}

// Register mounts the auth routes on the Echo instance.
func (h *AuthHandler) Register(e *echo.Echo) {
	e.GET("/auth/shopify", h.Connect)
	e.GET("/auth/shopify/callback", h.Callback)
	e.GET("/auth/status", h.Status)
	e.POST("/auth/disconnect", h.Disconnect)
}

// Connect starts a connect session for the shop in the query and returns the
// authorize URL plus the session JWT.
func (h *AuthHandler) Connect(c echo.Context) error {
	if strings.TrimSpace(h.jwtSecret) == "" {
		return echo.NewHTTPError(http.StatusInternalServerError, "jwt secret not configured")
	}
	shop := strings.TrimSpace(c.QueryParam("shop"))
	if shop == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "shop is required")
	}

	sess, authURL, err := h.sessions.Begin(shop)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token, expiresAt, err := auth.GenerateToken(sess.ID, h.jwtSecret, h.expiresIn)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, ConnectResponse{
		AuthURL:     authURL,
		SessionID:   sess.ID,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	})
}

// Callback finishes the OAuth exchange for the state/shop/code in the query.
func (h *AuthHandler) Callback(c echo.Context) error {
	state := c.QueryParam("state")
	shop := c.QueryParam("shop")
	code := c.QueryParam("code")
	if state == "" || shop == "" || code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "state, shop and code are required")
	}

	sess, err := h.sessions.Complete(c.Request().Context(), state, shop, code)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrStateMismatch) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid oauth state")
		}
		h.logger.Error("oauth exchange failed", slog.String("shop", shop), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadGateway, "token exchange failed")
	}

	return c.JSON(http.StatusOK, CallbackResponse{
		Connected: true,
		Shop:      sess.Shop,
		Scopes:    sess.Scopes,
	})
}

// Status reports whether the session behind the JWT has a connected store.
func (h *AuthHandler) Status(c echo.Context) error {
	sessionID, err := auth.SessionIDFromContext(c)
	if err != nil {
		return err
	}
	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired, reconnect the store")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := StatusResponse{
		Connected: sess.Connected(),
		Shop:      sess.Shop,
		Scopes:    sess.Scopes,
	}
	if !sess.ConnectedAt.IsZero() {
		resp.ConnectedAt = sess.ConnectedAt.Format(time.RFC3339)
	}
	return c.JSON(http.StatusOK, resp)
}

// Disconnect drops the session and its store credentials.
func (h *AuthHandler) Disconnect(c echo.Context) error {
	sessionID, err := auth.SessionIDFromContext(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Disconnect(sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "session expired")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
