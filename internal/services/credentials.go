package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/relsort/internal/shared"
	"golang.org/x/oauth2"
)

// OAuthCredentials holds the current Spotify access token and refreshes it on demand.
//
// Safe for concurrent use; bulk sorts share one instance across workers.
type OAuthCredentials struct {
	mu        sync.RWMutex
	config    *oauth2.Config
	token     *oauth2.Token
	onRefresh func(*oauth2.Token) error
	logger    *log.Logger
}

// NewOAuthCredentials creates credentials for config. token may be nil until the user authenticates.
func NewOAuthCredentials(config *oauth2.Config, token *oauth2.Token) *OAuthCredentials {
	return &OAuthCredentials{config: config, token: token, logger: shared.NewLogger(nil)}
}

// OnRefresh registers fn to receive every refreshed token, typically to persist it.
// A failing fn is logged and does not fail the refresh.
func (c *OAuthCredentials) OnRefresh(fn func(*oauth2.Token) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRefresh = fn
}

// SetLogger replaces the logger.
func (c *OAuthCredentials) SetLogger(l *log.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
}

// SetToken replaces the current token.
func (c *OAuthCredentials) SetToken(token *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns a copy of the current token, or nil.
func (c *OAuthCredentials) Token() *oauth2.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return nil
	}
	t := *c.token
	return &t
}

// AccessToken returns the bearer token for the next request.
func (c *OAuthCredentials) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return ""
	}
	return c.token.AccessToken
}

// IsValid reports whether an unexpired access token is held.
func (c *OAuthCredentials) IsValid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != nil && c.token.Valid()
}

// Refresh exchanges the refresh token for a new access token.
func (c *OAuthCredentials) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil || c.token.RefreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	// A token carrying only the refresh token is treated as expired, which forces the exchange.
	src := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: c.token.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = c.token.RefreshToken
	}
	c.token = token
	c.logger.Info("access token refreshed", "expiry", token.Expiry)

	if c.onRefresh != nil {
		if err := c.onRefresh(token); err != nil {
			c.logger.Warn("failed to persist refreshed token", "error", err)
		}
	}
	return nil
}
