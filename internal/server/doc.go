// Package server runs the short-lived local HTTP server that completes Spotify authorization.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] logs each request without its query string.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback.
//
// # Usage
//
// "relsort auth" registers an OAuthHandler on a BasicRouter, starts it with [Listen] on the host and port of the
// configured redirect URI, opens the authorization URL with [OpenBrowser] and waits with [OAuthHandler.Wait].
// The server shuts down once the token has been received.
package server
