// Package server provides HTTP routing, middleware, handlers and OAuth callback handling for the bridge.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Routes
//
// [NewApp] registers:
//   - [DeviceHandler] : POST /api/devices/register, /api/devices/verify, /api/devices/link
//   - [SpotifyHandler] : GET /api/spotify/login, callback, status, logout, current-track
//   - [NowPlayingHandler] : GET /api/nowplaying and /api/nowplaying/art
//   - GET /healthz and GET /metrics
//
// Device routes are rate limited per device identifier with [RateLimiter]. Request metrics are labelled
// with the matched route pattern, or "unmatched" for 404s.
//
// # Sessions
//
// [SessionManager] stores the credential ID of a logged in browser in a signed HS256 JWT cookie. The OAuth
// state for the login redirect lives in its own short lived cookie.
//
// # Errors
//
// Handlers write `{"error": {"kind": ..., "message": ...}}` where kind comes from [shared.KindOf] and the
// message from [shared.SafeMessage]. Upstream response bodies are logged, never returned.
//
// # CLI OAuth Callback Handler
//
// [OAuthHandler] serves a single callback for `spotify auth`. It validates the state parameter, exchanges the
// code and sends the grant through a channel. It only processes one callback to prevent replay attacks.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
