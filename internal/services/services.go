// package services defines interface Service for interacting with music catalog HTTP APIs
package services

import (
	"context"

	"github.com/desertthunder/relsort/internal/models"
	"golang.org/x/oauth2"
)

// Service defines the catalog operations the sorter needs from a music service.
type Service interface {
	// Authenticate performs OAuth or API key authentication with the service.
	// Returns an error if authentication fails.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// GetPlaylists retrieves all playlists for the authenticated user.
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)

	// PlaylistMeta retrieves name and track count for a playlist.
	PlaylistMeta(ctx context.Context, playlistID string) (*models.Playlist, error)

	// PlaylistTracks retrieves every track of a playlist in playlist order, following pagination.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)

	// ReplaceAll replaces the playlist contents with uris.
	ReplaceAll(ctx context.Context, playlistID string, uris []string) error

	// Append adds uris to the end of the playlist.
	Append(ctx context.Context, playlistID string, uris []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService extends [Service] for providers using the OAuth2 authorization code flow.
type OAuthService interface {
	Service

	// GetAuthURL returns the URL the user visits to grant access.
	GetAuthURL(state string) string

	// GetOAuthConfig returns the client configuration used for code exchange and refresh.
	GetOAuthConfig() *oauth2.Config

	// OAuthenticate installs a previously obtained token.
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}
