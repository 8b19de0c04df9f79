// Spotify Accounts and Web API client
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/get-the-users-currently-playing-track
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/spotibridge/internal/metrics"
	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	maxPlaybackBytes     = 1 << 20
	defaultMaxImageBytes = 5 << 20
	defaultTimeout       = 10 * time.Second
)

// Upstream endpoint labels used for metrics.
const (
	endpointToken    = "token"
	endpointPlayback = "currently_playing"
	endpointImage    = "image"
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifyCurrentlyPlaying is the payload of GET /me/player/currently-playing.
//
// Item is nil for ads and when the player is idle; ProgressMS is nil when the upstream omits it.
type SpotifyCurrentlyPlaying struct {
	IsPlaying            bool          `json:"is_playing"`
	ProgressMS           *int          `json:"progress_ms"`
	CurrentlyPlayingType string        `json:"currently_playing_type"`
	Item                 *SpotifyTrack `json:"item"`
}

// Playback is the normalized result of [SpotifyService.CurrentlyPlaying].
type Playback struct {
	State  models.NowPlaying
	Images []SpotifyImage
}

// SpotifyService talks to the Spotify Accounts API through [oauth2] and to the Web API with bearer tokens.
type SpotifyService struct {
	config        *oauth2.Config
	apiURL        string
	httpClient    *http.Client
	maxImageBytes int64
	metrics       *metrics.Metrics
}

// NewSpotifyService creates a new Spotify service from the configured client credentials and upstream limits.
func NewSpotifyService(cfg shared.SpotifyConfig, upstream shared.UpstreamConfig) (*SpotifyService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingConfig)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingConfig)
	}

	authURL := withDefault(cfg.AuthURL, spotifyAuthURL)
	tokenURL := withDefault(cfg.TokenURL, spotifyTokenURL)

	timeout := upstream.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxImage := upstream.MaxImageBytes
	if maxImage <= 0 {
		maxImage = defaultMaxImageBytes
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return &SpotifyService{
		config:        config,
		apiURL:        strings.TrimRight(withDefault(cfg.APIURL, spotifyBaseURL), "/"),
		httpClient:    &http.Client{Timeout: timeout},
		maxImageBytes: maxImage,
	}, nil
}

// WithHTTPClient replaces the client used for both token and API requests.
func (s *SpotifyService) WithHTTPClient(c *http.Client) *SpotifyService {
	s.httpClient = c
	return s
}

// WithMetrics records upstream outcomes on m.
func (s *SpotifyService) WithMetrics(m *metrics.Metrics) *SpotifyService {
	s.metrics = m
	return s
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token grant.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*TokenGrant, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: missing authorization code", shared.ErrValidation)
	}

	start := time.Now()
	tok, err := s.config.Exchange(s.oauthContext(ctx), code)
	grant, err := grantFromToken("code exchange", tok, err)
	s.observe(endpointToken, start, err)
	return grant, err
}

// Refresh exchanges refreshToken for a new access token. Exactly one upstream request is made.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*TokenGrant, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, fmt.Errorf("%w: missing refresh token", shared.ErrValidation)
	}

	// An expired token without an access token forces the source to hit the token endpoint.
	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}

	start := time.Now()
	tok, err := s.config.TokenSource(s.oauthContext(ctx), expired).Token()
	grant, err := grantFromToken("refresh", tok, err)
	s.observe(endpointToken, start, err)
	return grant, err
}

// CurrentlyPlaying retrieves the playback state of the account owning accessToken.
//
// A 204 response yields a non-playing [Playback] and no error.
func (s *SpotifyService) CurrentlyPlaying(ctx context.Context, accessToken string) (*Playback, error) {
	start := time.Now()
	playback, err := s.currentlyPlaying(ctx, accessToken)
	s.observe(endpointPlayback, start, err)
	return playback, err
}

func (s *SpotifyService) currentlyPlaying(ctx context.Context, accessToken string) (*Playback, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/me/player/currently-playing", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: currently playing: %v", shared.ErrUpstreamTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaybackBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading currently playing: %v", shared.ErrUpstreamTransient, err)
	}

	if resp.StatusCode == http.StatusNoContent {
		return &Playback{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &shared.UpstreamError{Status: resp.StatusCode, Body: body}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &Playback{}, nil
	}

	var payload SpotifyCurrentlyPlaying
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &shared.UpstreamError{Status: resp.StatusCode, Body: body}
	}

	return payload.Playback(), nil
}

// Playback normalizes the payload, applying defaults for omitted fields.
func (p *SpotifyCurrentlyPlaying) Playback() *Playback {
	playback := &Playback{State: models.NowPlaying{IsPlaying: p.IsPlaying}}
	if p.Item == nil {
		return playback
	}

	artists := make([]string, 0, len(p.Item.Artists))
	for _, a := range p.Item.Artists {
		artists = append(artists, a.Name)
	}

	progress := 0
	if p.ProgressMS != nil {
		progress = *p.ProgressMS
	}

	playback.State.Track = &models.Track{
		Name:       p.Item.Name,
		Artists:    artists,
		Album:      p.Item.Album.Name,
		ProgressMs: progress,
		DurationMs: p.Item.DurationMS,
	}
	playback.Images = p.Item.Album.Images
	return playback
}

// SelectImage returns the image whose width is exactly width.
func SelectImage(images []SpotifyImage, width int) (*SpotifyImage, bool) {
	for i := range images {
		if images[i].Width == width {
			return &images[i], true
		}
	}
	return nil, false
}

// DownloadImage fetches an image body, rejecting bodies larger than the configured limit.
func (s *SpotifyService) DownloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	start := time.Now()
	data, err := s.downloadImage(ctx, imageURL)
	s.observe(endpointImage, start, err)
	return data, err
}

func (s *SpotifyService) downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: image url: %v", shared.ErrValidation, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: image download: %v", shared.ErrUpstreamTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &shared.UpstreamError{Status: resp.StatusCode, Body: body}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading image: %v", shared.ErrUpstreamTransient, err)
	}
	if int64(len(data)) > s.maxImageBytes {
		return nil, fmt.Errorf("%w: image larger than %d bytes", shared.ErrTranscode, s.maxImageBytes)
	}

	return data, nil
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func (s *SpotifyService) observe(endpoint string, start time.Time, err error) {
	s.metrics.ObserveUpstream(endpoint, outcomeOf(err), time.Since(start))
}

// grantFromToken converts an oauth2 result into a [TokenGrant] and classifies failures.
func grantFromToken(op string, tok *oauth2.Token, err error) (*TokenGrant, error) {
	if err != nil {
		var rErr *oauth2.RetrieveError
		switch {
		case errors.As(err, &rErr):
			status := 0
			if rErr.Response != nil {
				status = rErr.Response.StatusCode
			}
			return nil, fmt.Errorf("%w: %s rejected: status %d %s", shared.ErrUpstreamAuth, op, status, rErr.ErrorCode)
		case isTransportError(err):
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrUpstreamTransient, op, err)
		default:
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrUpstreamAuth, op, err)
		}
	}

	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s: response missing access_token", shared.ErrUpstreamAuth, op)
	}

	expiresIn := tok.ExpiresIn
	if expiresIn == 0 && !tok.Expiry.IsZero() {
		expiresIn = int64(time.Until(tok.Expiry).Round(time.Second) / time.Second)
	}
	if expiresIn <= 0 {
		return nil, fmt.Errorf("%w: %s: response missing expires_in", shared.ErrUpstreamAuth, op)
	}

	return &TokenGrant{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, ExpiresIn: expiresIn}, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, shared.ErrUpstreamAuth):
		return metrics.OutcomeAuth
	case errors.Is(err, shared.ErrUpstreamTransient):
		return metrics.OutcomeTransient
	default:
		return metrics.OutcomeError
	}
}

func withDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
