package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/nowplaying"
	"github.com/desertthunder/spotibridge/internal/services"
	"github.com/desertthunder/spotibridge/internal/shared"
)

// SpotifyHandler serves the browser login flow and the session based playback route.
type SpotifyHandler struct {
	auth        services.Authorizer
	credentials CredentialStore
	sessions    *SessionManager
	nowPlaying  NowPlaying
	appURL      string
	logger      *log.Logger
	now         func() time.Time
}

// Routes returns the HTTP routes this handler serves.
func (h *SpotifyHandler) Routes() []string {
	return []string{
		"/api/spotify/login",
		"/api/spotify/callback",
		"/api/spotify/status",
		"/api/spotify/logout",
		"/api/spotify/current-track",
	}
}

func (h *SpotifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeErrorBody(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	switch r.URL.Path {
	case "/api/spotify/login":
		h.login(w, r)
	case "/api/spotify/callback":
		h.callback(w, r)
	case "/api/spotify/status":
		h.status(w, r)
	case "/api/spotify/logout":
		h.sessions.Clear(w)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case "/api/spotify/current-track":
		h.currentTrack(w, r)
	default:
		notFound(w, r)
	}
}

func (h *SpotifyHandler) login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.sessions.SetState(w, state)
	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusFound)
}

// callback validates the state, exchanges the code, stores a new credential and starts a session.
func (h *SpotifyHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if !h.sessions.CheckState(w, r, q.Get("state")) {
		writeError(w, h.logger, fmt.Errorf("%w: invalid state parameter", shared.ErrValidation))
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, h.logger, fmt.Errorf("%w: authorization failed: %s", shared.ErrValidation, q.Get("error")))
		return
	}

	grant, err := h.auth.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	cred, err := CredentialFromGrant(grant, h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.credentials.Create(r.Context(), cred); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.sessions.Issue(w, cred.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("spotify account linked", "credential", cred.ID)

	target := h.appURL
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *SpotifyHandler) status(w http.ResponseWriter, r *http.Request) {
	loggedIn := false
	if id, err := h.sessions.CredentialID(r); err == nil {
		_, err := h.credentials.Get(r.Context(), id)
		loggedIn = err == nil
	}
	writeJSON(w, http.StatusOK, map[string]bool{"loggedIn": loggedIn})
}

func (h *SpotifyHandler) currentTrack(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessions.CredentialID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	np, err := h.nowPlaying.ForCredential(r.Context(), id, nowplaying.Options{Art: wantsArt(r.URL.Query().Get("art"))})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, np)
}

// CredentialFromGrant builds the credential persisted after a code exchange.
func CredentialFromGrant(grant *services.TokenGrant, now time.Time) (*models.Credential, error) {
	if grant.RefreshToken == "" {
		return nil, fmt.Errorf("%w: code exchange returned no refresh token", shared.ErrUpstreamAuth)
	}
	cred := &models.Credential{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    shared.ExpiresAt(now, grant.ExpiresIn),
	}
	if err := cred.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamAuth, err)
	}
	return cred, nil
}
