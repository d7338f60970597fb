package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/reconcile"
	"github.com/desertthunder/relsort/internal/shared"
	"github.com/urfave/cli/v3"
)

// Playlists lists Spotify playlists with optional limit.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if r.catalog == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Info("listing spotify playlists", "limit", limit)

	var playlists []models.Playlist
	err := reconcile.RetryExpired(ctx, r.credentials, func() error {
		var err error
		playlists, err = r.catalog.GetPlaylists(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		if p.Description != "" {
			r.writePlain("   Description: %s\n", p.Description)
		}
		r.writePlain("   ID: %s\n", p.ID)
		r.writePlain("   Tracks: %d\n", p.TrackCount)
		if p.Owner != "" {
			r.writePlain("   Owner: %s\n", p.Owner)
		}
		r.writePlain("\n")
	}

	return nil
}
