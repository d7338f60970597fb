package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/relsort/internal/releasedate"
	"github.com/desertthunder/relsort/internal/repositories"
	"github.com/desertthunder/relsort/internal/services"
	"github.com/desertthunder/relsort/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := shared.NewLogger(nil)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	configPath := cmp.Or(os.Getenv("RELSORT_CONFIG"), "config.toml")
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loaded, err := shared.LoadConfig(configPath); err != nil {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		} else {
			config = loaded
		}
	}
	if err := shared.ApplyEnv(config, ".env"); err != nil {
		logger.Warn("failed to apply environment", "error", err)
	}

	opts := RunnerOpts{Config: config, ConfigPath: configPath, Logger: logger}

	if svc, err := newSpotify(ctx, config, configPath, logger); err == nil {
		opts.Catalog = svc
		opts.Auth = svc
		opts.Credentials = svc.Credentials()
	} else {
		logger.Debug("spotify not configured", "error", err)
	}

	if config.Sort.RecordHistory {
		if db, err := shared.OpenDatabase(config.Database); err != nil {
			logger.Warn("run history disabled", "error", err)
		} else {
			defer db.Close()
			opts.History = repositories.NewSortRunRepository(db)
		}
	}

	runner := NewRunner(opts)

	app := &cli.Command{
		Name:     "relsort",
		Usage:    "Sort Spotify playlists by album release date",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Error(describeError(err))
		return 1
	}
	return 0
}

// newSpotify builds the Spotify client from config, installs any stored token and persists refreshed
// tokens back to configPath.
func newSpotify(ctx context.Context, config *shared.Config, configPath string, logger *log.Logger) (*services.SpotifyService, error) {
	svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map(),
		services.WithLogger(logger),
		services.WithRateLimit(config.Sort.RateLimit),
	)
	if err != nil {
		return nil, err
	}

	if token := config.Credentials.Spotify.Token(); token != nil {
		if err := svc.OAuthenticate(ctx, token); err != nil {
			logger.Warn("ignoring stored token", "error", err)
		}
	}

	svc.Credentials().OnRefresh(func(token *oauth2.Token) error {
		if err := config.Credentials.Spotify.Update(token); err != nil {
			return err
		}
		return shared.SaveTokens(configPath, token)
	})
	return svc, nil
}

// describeError renders err as the message shown to the user, one wording per kind of failure.
func describeError(err error) string {
	var partial *shared.PartialReconciliationError
	var malformed *releasedate.MalformedDateError

	switch {
	case errors.As(err, &partial):
		return fmt.Sprintf(
			"playlist partially reordered: %d of %d batches were written before the failure (%v). "+
				"The remote playlist has changed and may now hold only part of its tracks; run the sort again to restore the full order",
			partial.Applied, partial.Total, partial.Err)
	case errors.Is(err, shared.ErrEmptyPlaylist):
		return fmt.Sprintf("nothing to sort: %v. The playlist was not changed", err)
	case errors.As(err, &malformed):
		return fmt.Sprintf("a track has an unreadable release date: %v", err)
	case errors.Is(err, shared.ErrRefreshFailed), errors.Is(err, shared.ErrNoRefreshToken):
		return fmt.Sprintf("Spotify authorization could not be renewed (%v). Run 'relsort auth' to sign in again", err)
	case errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrNotAuthenticated):
		return fmt.Sprintf("Spotify authorization expired or missing (%v). Run 'relsort auth' to sign in", err)
	case errors.Is(err, shared.ErrMissingCredentials):
		return fmt.Sprintf("%v. Set client_id and client_secret in config.toml or SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET", err)
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return fmt.Sprintf("playlist not found: %v. Check the ID with 'relsort playlists'", err)
	case errors.Is(err, shared.ErrForbidden):
		return fmt.Sprintf("not allowed to modify this playlist: %v. Only playlists you own or collaborate on can be sorted", err)
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		return fmt.Sprintf("Spotify is unavailable right now: %v. Nothing was written; try again later", err)
	case errors.Is(err, shared.ErrMissingArgument), errors.Is(err, shared.ErrInvalidArgument):
		return fmt.Sprintf("invalid usage: %v", err)
	default:
		return fmt.Sprintf("application error: %v", err)
	}
}
