// Package services defines the [Service] interface for music catalogs and implements it for Spotify.
//
// # Service Interface
//
// A Service lists the user's playlists, reads a playlist's tracks in order and rewrites a playlist
// through bounded replace and append calls.
//
// # Spotify Implementation
//
// [SpotifyService] talks to the Spotify Web API with a bearer token held by [OAuthCredentials].
// Requests are paced by a [rate.Limiter]. Playlist items are read 100 at a time by following the
// "next" cursor, so the returned order is the playlist order.
//
// The service does not refresh tokens on its own. [OAuthCredentials] exposes IsValid and Refresh so
// the sorter can refresh exactly once when a request fails with an expired token.
//
// # OAuth Service Extension
//
// The [OAuthService] interface extends Service for OAuth providers.
// [SpotifyService] implements it for the CLI authorization code flow.
//
// # Error Handling
//
// HTTP failures map onto sentinel errors from the shared package:
//   - 401 : [shared.ErrTokenExpired]
//   - 403 : [shared.ErrForbidden]
//   - 404 : [shared.ErrPlaylistNotFound]
//   - 429 and 5xx : [shared.ErrUpstreamUnavailable]
//   - anything else : [shared.ErrAPIRequest]
package services
