package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/relsort/internal/server"
	"github.com/desertthunder/relsort/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Auth performs the OAuth2 authorization code flow for Spotify and saves the tokens to the config file.
//
// Starts a local HTTP server on the redirect URI, opens the browser for user authorization and waits for the callback.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	if r.auth == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	token, err := r.doOAuth(ctx, cmd.Duration("timeout"), !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	if err := r.auth.OAuthenticate(ctx, token); err != nil {
		return err
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveTokens(r.configPath, token); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: relsort playlists\n")
	return nil
}

// doOAuth serves the callback, sends the user to the authorization page and waits up to timeout for the token.
func (r *Runner) doOAuth(ctx context.Context, timeout time.Duration, openBrowser bool) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	config := r.auth.GetOAuthConfig()
	handler := server.NewOAuthHandler(config, state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	addr, shutdown, err := server.Listen(callbackAddr(config.RedirectURL, r.config.Server), router, r.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down callback server", "error", err)
		}
	}()
	r.logger.Info("callback server listening", "addr", addr)

	authURL := r.auth.GetAuthURL(state)
	if openBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := server.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser automatically", "error", err)
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	}

	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return handler.Wait(waitCtx)
}

// callbackAddr is the listen address for the redirect URI. A redirect URI without an explicit port
// uses the [server] host and port.
func callbackAddr(redirectURI string, srv shared.ServerConfig) string {
	if u, err := url.Parse(redirectURI); err == nil && u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(srv.Host, strconv.Itoa(srv.Port))
}
