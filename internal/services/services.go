// package services defines the upstream clients used by the bridge
//
// Spotify Accounts + Web API, image CDN
package services

import (
	"context"
	"errors"
	"net"
	"net/url"
)

// TokenGrant is the token triple returned by a code exchange or refresh.
//
// RefreshToken is empty when the upstream did not rotate it.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds
}

// Authorizer performs the OAuth authorization code flow.
type Authorizer interface {
	// AuthURL returns the consent page URL for the given state.
	AuthURL(state string) string

	// Exchange trades an authorization code for a [TokenGrant].
	Exchange(ctx context.Context, code string) (*TokenGrant, error)
}

// Refresher exchanges a refresh token for a new [TokenGrant].
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error)
}

// PlaybackFetcher retrieves the playback state of an account and its cover art.
type PlaybackFetcher interface {
	CurrentlyPlaying(ctx context.Context, accessToken string) (*Playback, error)
	DownloadImage(ctx context.Context, imageURL string) ([]byte, error)
}

// isTransportError reports whether err came from the network or a deadline rather than an upstream response.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
