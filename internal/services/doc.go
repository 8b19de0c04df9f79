// Package services implements the Spotify clients behind the device bridge.
//
// # Accounts API
//
// [SpotifyService] wraps an [oauth2.Config] built from [shared.SpotifyConfig]. It implements [Authorizer]
// for the browser and CLI login flows and [Refresher] for the token lifecycle manager. Client credentials
// are sent with HTTP basic auth on every token request.
//
// Tokens are never cached here: every [SpotifyService.Refresh] performs exactly one upstream exchange and
// the caller decides what to persist.
//
// # Web API
//
// [SpotifyService.CurrentlyPlaying] reads the player state of the account owning the access token and
// normalizes it into a [models.NowPlaying] plus the album image variants. A 204 response means nothing is
// playing and is not an error.
//
// # Error Handling
//
// Failures map onto the sentinels in the shared package:
//   - [shared.ErrUpstreamAuth] : token endpoint rejected the request or answered with a malformed grant
//   - [shared.ErrUpstreamTransient] : network failure or timeout
//   - [shared.UpstreamError] : Web API or image CDN answered non-2xx or non-JSON (wraps [shared.ErrAPIRequest])
//
// Upstream response bodies are kept on [shared.UpstreamError] for logs only.
package services
