package server

import (
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotibridge/internal/directory"
	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/nowplaying"
)

// NowPlayingHandler serves playback state to devices.
//
//   - GET /api/nowplaying?deviceId=D&art=1 returns [models.NowPlaying] as JSON; art bytes are base64
//   - GET /api/nowplaying/art?deviceId=D returns the raw bitmap, or 204 when there is nothing to show
type NowPlayingHandler struct {
	nowPlaying NowPlaying
	limiter    *RateLimiter
	logger     *log.Logger
}

// Routes returns the HTTP routes this handler serves.
func (h *NowPlayingHandler) Routes() []string {
	return []string{"/api/nowplaying", "/api/nowplaying/art"}
}

func (h *NowPlayingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeErrorBody(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	q := r.URL.Query()
	raw := q.Get("deviceId")
	if raw == "" {
		raw = q.Get("uuid")
	}
	deviceID, err := directory.NormalizeID(raw)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !h.limiter.Allow(deviceID) {
		writeRateLimited(w)
		return
	}

	switch r.URL.Path {
	case "/api/nowplaying/art":
		h.art(w, r, deviceID)
	default:
		h.state(w, r, deviceID, wantsArt(q.Get("art")))
	}
}

func (h *NowPlayingHandler) state(w http.ResponseWriter, r *http.Request, deviceID string, art bool) {
	np, err := h.nowPlaying.ForDevice(r.Context(), deviceID, nowplaying.Options{Art: art})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, np)
}

func (h *NowPlayingHandler) art(w http.ResponseWriter, r *http.Request, deviceID string) {
	np, err := h.nowPlaying.ForDevice(r.Context(), deviceID, nowplaying.Options{Art: true})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeBitmap(w, np)
}

// writeBitmap writes the raw container with its dimensions in headers, or 204 when there is no art.
func writeBitmap(w http.ResponseWriter, np *models.NowPlaying) {
	if np.Art == nil {
		if np.ArtStatus != "" {
			w.Header().Set("X-Art-Status", string(np.ArtStatus))
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "image/bmp")
	h.Set("Content-Length", strconv.Itoa(len(np.Art.Bytes)))
	h.Set("X-Image-Width", strconv.Itoa(np.Art.Width))
	h.Set("X-Image-Height", strconv.Itoa(np.Art.Height))
	h.Set("X-Pixel-Format", np.Art.PixelFormat)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(np.Art.Bytes)
}

func wantsArt(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
