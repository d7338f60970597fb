// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/relsort/internal/models"
	"github.com/desertthunder/relsort/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultRedirectURI must match a redirect URI registered for the Spotify app.
	DefaultRedirectURI = "http://127.0.0.1:3000/callback"

	// MaxItemsPerRequest is the Spotify cap on tracks read or written in one request.
	MaxItemsPerRequest = 100

	playlistTrackFields = "items(track(id,name,artists(name),album(name,release_date,release_date_precision))),next"
	playlistMetaFields  = "id,name,description,public,owner(id,display_name),tracks(total)"
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      *string         `json:"id"` // null for local files
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
	URI     string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	ReleaseDate          string `json:"release_date"`
	ReleaseDatePrecision string `json:"release_date_precision"` // year, month or day
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type trackTotal struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a simplified playlist object, as returned by playlist listings and
// by playlist lookups restricted to metadata fields.
type SpotifyPlaylist struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Owner       Owner      `json:"owner"`
	Public      bool       `json:"public"`
	Tracks      trackTotal `json:"tracks"`
}

func (p SpotifyPlaylist) toModel() models.Playlist {
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Owner:       p.Owner.DisplayName,
		TrackCount:  p.Tracks.Total,
		Public:      p.Public,
	}
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is null for removed items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylistTracks is one page of playlist items.
type SpotifyPaginatedPlaylistTracks struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Next  *string                `json:"next"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifyPlaylist `json:"items"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyService implements [OAuthService] against the Spotify Web API.
//
// Tokens are held by an [OAuthCredentials]; the service never refreshes on its own, so an expired
// token surfaces as [shared.ErrTokenExpired] for the caller to handle.
type SpotifyService struct {
	config      *oauth2.Config
	credentials *OAuthCredentials
	httpClient  *http.Client
	baseURL     string
	limiter     *rate.Limiter
	logger      *log.Logger
}

// Option configures a [SpotifyService].
type Option func(*SpotifyService)

// WithHTTPClient sets the client used for API requests.
func WithHTTPClient(c *http.Client) Option { return func(s *SpotifyService) { s.httpClient = c } }

// WithBaseURL points the service at another API root, such as an httptest server.
func WithBaseURL(u string) Option {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithTokenURL overrides the OAuth2 token endpoint.
func WithTokenURL(u string) Option { return func(s *SpotifyService) { s.config.Endpoint.TokenURL = u } }

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(rps float64) Option {
	return func(s *SpotifyService) {
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(s *SpotifyService) { s.logger = l } }

// NewSpotifyService creates a new Spotify service with the given OAuth2 client credentials.
func NewSpotifyService(credentials map[string]string, opts ...Option) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-private",
			"playlist-modify-public",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = shared.NewLogger(nil)
	}

	s.credentials = NewOAuthCredentials(s.config, nil)
	s.credentials.SetLogger(s.logger)
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Credentials returns the token holder, which doubles as the refresh capability for reconciliation.
func (s *SpotifyService) Credentials() *OAuthCredentials {
	return s.credentials
}

// Authenticate installs tokens from credentials. Expects either an "access_token" (with optional
// "refresh_token" and RFC 3339 "expiry") or an "auth_code" to exchange.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		token := &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		}
		if exp, ok := credentials["expiry"]; ok && exp != "" {
			t, err := time.Parse(time.RFC3339, exp)
			if err != nil {
				return fmt.Errorf("%w: invalid expiry %q", shared.ErrInvalidCredentials, exp)
			}
			token.Expiry = t
		}
		return s.OAuthenticate(ctx, token)
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate installs token as the current credential.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidCredentials)
	}
	s.credentials.SetToken(token)
	return nil
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 client configuration.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// doRequest performs an authenticated request. endpoint is either a path below the API root or an
// absolute URL taken from a pagination cursor.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	accessToken := s.credentials.AccessToken()
	if accessToken == "" {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := statusError(resp)
		s.logger.Debug("spotify request failed", "method", method, "url", apiURL, "status", resp.StatusCode)
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

// statusError maps a non-2xx response to the error taxonomy.
func statusError(resp *http.Response) error {
	msg := http.StatusText(resp.StatusCode)
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body spotifyErrorBody
	if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
		msg = body.Error.Message
	}

	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, msg)
	case code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", shared.ErrForbidden, msg)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, msg)
	case code == http.StatusTooManyRequests:
		if after := resp.Header.Get("Retry-After"); after != "" {
			return fmt.Errorf("%w: rate limited, retry after %ss", shared.ErrUpstreamUnavailable, after)
		}
		return fmt.Errorf("%w: rate limited", shared.ErrUpstreamUnavailable)
	case code >= 500:
		return fmt.Errorf("%w: status %d: %s", shared.ErrUpstreamUnavailable, code, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, code, msg)
	}
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UserPlaylists retrieves the current user's playlists with pagination.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var allPlaylists []models.Playlist
	limit := 50
	offset := 0

	for {
		response, err := s.UserPlaylists(ctx, limit, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			allPlaylists = append(allPlaylists, sp.toModel())
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += limit
	}

	return allPlaylists, nil
}

// PlaylistMeta retrieves playlist metadata without its items.
func (s *SpotifyService) PlaylistMeta(ctx context.Context, playlistID string) (*models.Playlist, error) {
	endpoint := fmt.Sprintf("/playlists/%s?fields=%s", url.PathEscape(playlistID), url.QueryEscape(playlistMetaFields))

	var sp SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &sp); err != nil {
		return nil, err
	}

	p := sp.toModel()
	return &p, nil
}

// PlaylistTracks retrieves all tracks of a playlist, following the next cursor and keeping page order.
// Removed items and local files, which have no track ID, are skipped.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	next := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=0&fields=%s",
		url.PathEscape(playlistID), MaxItemsPerRequest, url.QueryEscape(playlistTrackFields))

	var tracks []models.Track
	for pages := 0; next != ""; pages++ {
		var page SpotifyPaginatedPlaylistTracks
		if err := s.doRequest(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if t, ok := item.toModel(); ok {
				tracks = append(tracks, t)
			}
		}

		next = ""
		if page.Next != nil {
			next = *page.Next
		}
		s.logger.Debug("fetched playlist page", "playlist", playlistID, "page", pages+1, "tracks", len(tracks))
	}

	return tracks, nil
}

func (item SpotifyPlaylistTrack) toModel() (models.Track, bool) {
	if item.Track == nil || item.Track.ID == nil || *item.Track.ID == "" {
		return models.Track{}, false
	}

	artists := make([]string, len(item.Track.Artists))
	for i, a := range item.Track.Artists {
		artists[i] = a.Name
	}

	return models.Track{
		ID:      *item.Track.ID,
		Name:    item.Track.Name,
		Artists: artists,
		Album: models.Album{
			Name:        item.Track.Album.Name,
			ReleaseDate: item.Track.Album.ReleaseDate,
			Precision:   models.Precision(item.Track.Album.ReleaseDatePrecision),
		},
	}, true
}

type urisBody struct {
	URIs []string `json:"uris"`
}

// ReplaceAll replaces every item of the playlist with uris (at most [MaxItemsPerRequest]).
func (s *SpotifyService) ReplaceAll(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) > MaxItemsPerRequest {
		return fmt.Errorf("%w: %d uris exceeds limit of %d", shared.ErrInvalidArgument, len(uris), MaxItemsPerRequest)
	}
	if uris == nil {
		uris = []string{}
	}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPut, endpoint, urisBody{URIs: uris}, nil)
}

// Append adds uris (at most [MaxItemsPerRequest]) to the end of the playlist.
func (s *SpotifyService) Append(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > MaxItemsPerRequest {
		return fmt.Errorf("%w: %d uris exceeds limit of %d", shared.ErrInvalidArgument, len(uris), MaxItemsPerRequest)
	}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, http.MethodPost, endpoint, urisBody{URIs: uris}, nil)
}
