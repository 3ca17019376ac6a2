// Package handlers provides HTTP API handlers for the store copilot server.
package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storepilotai/storepilot/internal/auth"
	"github.com/storepilotai/storepilot/internal/session"
	"github.com/storepilotai/storepilot/internal/shopify"
)

// StoreClientFactory builds an API client for a connected session.
type StoreClientFactory func(sess session.Session) shopify.StoreClient

// RequireConnectedSession resolves the session behind the request JWT and
// requires a completed store connection.
func RequireConnectedSession(c echo.Context, sessions *session.Service) (session.Session, error) {
	sessionID, err := auth.SessionIDFromContext(c)
	if err != nil {
		return session.Session{}, err
	}
	sess, err := sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.Session{}, echo.NewHTTPError(http.StatusUnauthorized, "session expired, reconnect the store")
		}
		return session.Session{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !sess.Connected() {
		return session.Session{}, echo.NewHTTPError(http.StatusBadRequest, "store not connected")
	}
	return sess, nil
}
