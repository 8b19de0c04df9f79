// package nowplaying composes device resolution, token freshness, playback lookup and cover art
//
// A request for device D resolves D to its credential, makes sure the credential has a usable access
// token, asks Spotify what is playing and, when art is requested, downloads and transcodes the album
// cover for the display. Art failures never hide the track metadata: they are reported through
// [models.NowPlaying.ArtStatus].
package nowplaying

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/services"
	"github.com/desertthunder/spotibridge/internal/shared"
)

// Resolver maps a device identifier to a credential ID.
type Resolver interface {
	Resolve(ctx context.Context, deviceID string) (string, error)
}

// Credentials loads stored credentials.
type Credentials interface {
	Get(ctx context.Context, id string) (*models.Credential, error)
}

// Freshener returns a credential with a usable access token.
type Freshener interface {
	EnsureFresh(ctx context.Context, cred *models.Credential) (*models.Credential, error)
}

// Transcoder converts downloaded cover art for the display.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte) (*models.TranscodedImage, error)
}

// Options controls a single lookup.
type Options struct {
	Art bool
}

// Service answers "what is playing" for devices and browser sessions.
type Service struct {
	resolver   Resolver
	creds      Credentials
	tokens     Freshener
	playback   services.PlaybackFetcher
	transcoder Transcoder
	artWidth   int
	logger     *log.Logger
}

// Deps groups the collaborators of a [Service].
type Deps struct {
	Resolver   Resolver
	Creds      Credentials
	Tokens     Freshener
	Playback   services.PlaybackFetcher
	Transcoder Transcoder
	// ArtWidth is the preferred upstream image width.
	ArtWidth int
	Logger   *log.Logger
}

// New creates a [Service].
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Service{
		resolver:   d.Resolver,
		creds:      d.Creds,
		tokens:     d.Tokens,
		playback:   d.Playback,
		transcoder: d.Transcoder,
		artWidth:   d.ArtWidth,
		logger:     logger,
	}
}

// ForDevice returns the playback state of the account linked to deviceID.
func (s *Service) ForDevice(ctx context.Context, deviceID string, opts Options) (*models.NowPlaying, error) {
	credentialID, err := s.resolver.Resolve(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return s.ForCredential(ctx, credentialID, opts)
}

// ForCredential returns the playback state of the account behind credentialID.
func (s *Service) ForCredential(ctx context.Context, credentialID string, opts Options) (*models.NowPlaying, error) {
	cred, err := s.creds.Get(ctx, credentialID)
	if errors.Is(err, shared.ErrNotFound) {
		// The device pointed at a credential that no longer exists.
		return nil, fmt.Errorf("%w: credential missing", shared.ErrNotLinked)
	}
	if err != nil {
		return nil, err
	}

	cred, err = s.tokens.EnsureFresh(ctx, cred)
	if err != nil {
		return nil, err
	}

	// Upstream bodies ride along in the error and are logged once by the caller.
	playback, err := s.playback.CurrentlyPlaying(ctx, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	state := playback.State
	if opts.Art && state.Track != nil {
		s.attachArt(ctx, &state, playback.Images)
	}
	return &state, nil
}

func (s *Service) attachArt(ctx context.Context, state *models.NowPlaying, images []services.SpotifyImage) {
	img, ok := PickImage(images, s.artWidth)
	if !ok {
		state.ArtStatus = models.ArtUnavailable
		return
	}

	data, err := s.playback.DownloadImage(ctx, img.URL)
	if err != nil {
		s.logger.Error("cover art download failed", "url", img.URL, "error", err)
		state.ArtStatus = models.ArtFailed
		return
	}

	art, err := s.transcoder.Transcode(ctx, data)
	if err != nil {
		s.logger.Error("cover art transcode failed", "url", img.URL, "error", err)
		state.ArtStatus = models.ArtFailed
		return
	}

	state.Art = art
	state.ArtStatus = models.ArtIncluded
}

// PickImage chooses the variant to download for a display preferring width: an exact match, else the
// smallest variant wider than width, else the widest available.
func PickImage(images []services.SpotifyImage, width int) (*services.SpotifyImage, bool) {
	candidates := slices.DeleteFunc(slices.Clone(images), func(img services.SpotifyImage) bool {
		return img.URL == ""
	})
	if len(candidates) == 0 {
		return nil, false
	}

	if img, ok := services.SelectImage(candidates, width); ok {
		return img, true
	}

	slices.SortFunc(candidates, func(a, b services.SpotifyImage) int { return a.Width - b.Width })
	for i := range candidates {
		if candidates[i].Width > width {
			return &candidates[i], true
		}
	}
	return &candidates[len(candidates)-1], true
}
