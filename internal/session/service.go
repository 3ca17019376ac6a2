// Package session tracks store connect sessions and drives the OAuth code exchange.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/storepilotai/storepilot/internal/shopify"
)

var (
	// ErrNotFound means no session exists for the given ID.
	ErrNotFound = errors.New("session not found")
	// ErrStateMismatch means the OAuth state did not match the pending session.
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrNotConnected means the session exists but holds no access token yet.
	ErrNotConnected = errors.New("store not connected")
)

// Session is one store connection attempt and, once completed, its credentials.
type Session struct {
	ID          string    `json:"id"`
	Shop        string    `json:"shop"`
	AccessToken string    `json:"-"`
	Scopes      string    `json:"scopes,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitzero"`

	nonce string
}

// Connected reports whether the OAuth exchange has completed.
func (s Session) Connected() bool {
	return s.AccessToken != ""
}

// Service holds pending and connected sessions in memory. Sessions die with the
// process; reconnecting a store is a single OAuth round trip.
type Service struct {
	clientID     string
	clientSecret string
	scopes       []string
	redirectURL  string

	// EndpointFor builds the OAuth endpoints for a shop. Tests point it at a
	// local server.
	EndpointFor func(shop string) oauth2.Endpoint

	mu       sync.Mutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewService creates the session service with the app OAuth credentials.
func NewService(log *slog.Logger, clientID, clientSecret string, scopes []string, redirectURL string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		scopes:       scopes,
		redirectURL:  redirectURL,
		EndpointFor:  shopEndpoint,
		sessions:     make(map[string]*Session),
		logger:       log.With(slog.String("service", "session")),
	}
}

func shopEndpoint(shop string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  fmt.Sprintf("https://%s/admin/oauth/authorize", shop),
		TokenURL: fmt.Sprintf("https://%s/admin/oauth/access_token", shop),
	}
}

// Begin registers a new session for the shop and returns the authorize URL the
// merchant must visit. The OAuth state carries the session ID and a nonce.
func (s *Service) Begin(shop string) (Session, string, error) {
	shop = shopify.NormalizeDomain(shop)
	if shop == "" {
		return Session{}, "", errors.New("shop domain is required")
	}

	sess := &Session{
		ID:    uuid.NewString(),
		Shop:  shop,
		nonce: uuid.NewString(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	authURL := s.oauthConfig(shop).AuthCodeURL(sess.ID + ":" + sess.nonce)
	s.logger.Info("session started", slog.String("session_id", sess.ID), slog.String("shop", shop))
	return *sess, authURL, nil
}

// Complete exchanges the authorization code for an access token and marks the
// session connected. The state must match the one issued by Begin.
func (s *Service) Complete(ctx context.Context, state, shop, code string) (Session, error) {
	id, nonce, ok := splitState(state)
	if !ok {
		return Session{}, ErrStateMismatch
	}
	shop = shopify.NormalizeDomain(shop)

	s.mu.Lock()
	sess, found := s.sessions[id]
	s.mu.Unlock()
	if !found {
		return Session{}, ErrNotFound
	}
	if sess.nonce != nonce || sess.Shop != shop {
		return Session{}, ErrStateMismatch
	}

	token, err := s.oauthConfig(shop).Exchange(ctx, code)
	if err != nil {
		return Session{}, fmt.Errorf("exchange code: %w", err)
	}
	scope, _ := token.Extra("scope").(string)

	s.mu.Lock()
	sess.AccessToken = token.AccessToken
	sess.Scopes = scope
	sess.ConnectedAt = time.Now().UTC()
	completed := *sess
	s.mu.Unlock()

	s.logger.Info("store connected", slog.String("session_id", id), slog.String("shop", shop))
	return completed, nil
}

// Get returns the session for id.
func (s *Service) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, found := s.sessions[id]
	if !found {
		return Session{}, ErrNotFound
	}
	return *sess, nil
}

// Disconnect drops the session and its credentials.
func (s *Service) Disconnect(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.sessions[id]; !found {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *Service) oauthConfig(shop string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Scopes:       s.scopes,
		RedirectURL:  s.redirectURL,
		Endpoint:     s.EndpointFor(shop),
	}
}

func splitState(state string) (id, nonce string, ok bool) {
	id, nonce, found := strings.Cut(state, ":")
	if !found || id == "" || nonce == "" {
		return "", "", false
	}
	return id, nonce, true
}
