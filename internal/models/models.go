// package models defines the data model for the device bridge
package models

import (
	"errors"
	"strings"
	"time"
)

const (
	PixelFormatRGB565 = "rgb565"
	ContainerBMP      = "bmp-like"
)

// Credential is the stored OAuth token triple for one linked account.
//
// ExpiresAt is an absolute timestamp in milliseconds since the Unix epoch.
type Credential struct {
	ID           string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Stale reports whether the access token can no longer be used at now.
// A credential is stale at exactly its expiry instant.
func (c *Credential) Stale(now time.Time) bool {
	return now.UnixMilli() >= c.ExpiresAt
}

// Validate checks that all token fields are populated.
func (c *Credential) Validate() error {
	switch {
	case strings.TrimSpace(c.AccessToken) == "":
		return errors.New("access token is required")
	case strings.TrimSpace(c.RefreshToken) == "":
		return errors.New("refresh token is required")
	case c.ExpiresAt <= 0:
		return errors.New("expiry is required")
	}
	return nil
}

// Device is a registered hardware unit.
//
// CredentialID is a weak reference: it becomes nil when the credential row is deleted.
type Device struct {
	ID           int64
	DeviceID     string
	CredentialID *string
	CreatedAt    time.Time
}

// Linked reports whether the device points at a credential.
func (d *Device) Linked() bool {
	return d.CredentialID != nil && *d.CredentialID != ""
}

// Track is the normalized metadata of the item currently playing.
type Track struct {
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	ProgressMs int      `json:"progressMs"`
	DurationMs int      `json:"durationMs"`
}

// ArtStatus explains why [NowPlaying.Art] is empty when art was requested.
type ArtStatus string

const (
	ArtIncluded    ArtStatus = "included"
	ArtUnavailable ArtStatus = "unavailable"
	ArtFailed      ArtStatus = "error"
)

// NowPlaying is the composed playback state for one request.
type NowPlaying struct {
	IsPlaying bool             `json:"isPlaying"`
	Track     *Track           `json:"track,omitempty"`
	Art       *TranscodedImage `json:"art,omitempty"`
	ArtStatus ArtStatus        `json:"artStatus,omitempty"`
}

// TranscodedImage is cover art converted for the target display. Bytes holds the complete container.
type TranscodedImage struct {
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	PixelFormat     string `json:"pixelFormat"`
	ContainerFormat string `json:"containerFormat"`
	Bytes           []byte `json:"bytes"`
}
