package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotibridge/internal/directory"
	"github.com/desertthunder/spotibridge/internal/metrics"
	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/nowplaying"
	"github.com/desertthunder/spotibridge/internal/repositories"
	"github.com/desertthunder/spotibridge/internal/services"
	"github.com/desertthunder/spotibridge/internal/shared"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	grant *services.TokenGrant
	err   error
	codes []string
}

func (f *fakeAuth) AuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeAuth) Exchange(_ context.Context, code string) (*services.TokenGrant, error) {
	f.codes = append(f.codes, code)
	return f.grant, f.err
}

type fakeNowPlaying struct {
	np           *models.NowPlaying
	err          error
	deviceID     string
	credentialID string
	opts         nowplaying.Options
}

func (f *fakeNowPlaying) ForDevice(_ context.Context, deviceID string, opts nowplaying.Options) (*models.NowPlaying, error) {
	f.deviceID, f.opts = deviceID, opts
	return f.np, f.err
}

func (f *fakeNowPlaying) ForCredential(_ context.Context, credentialID string, opts nowplaying.Options) (*models.NowPlaying, error) {
	f.credentialID, f.opts = credentialID, opts
	return f.np, f.err
}

type testApp struct {
	handler  http.Handler
	creds    *repositories.CredentialRepository
	dir      *directory.Directory
	sessions *SessionManager
	auth     *fakeAuth
	np       *fakeNowPlaying
	metrics  *metrics.Metrics
}

func newTestApp(t *testing.T, mutate ...func(*shared.Config)) *testApp {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, shared.RunMigrations(db))
	t.Cleanup(func() { db.Close() })

	cfg := shared.DefaultConfig()
	cfg.Session.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Server.AppURL = "/status"
	cfg.Server.AllowedOrigin = "https://status.example.com"
	cfg.Server.DeviceRateLimit = 0
	for _, m := range mutate {
		m(cfg)
	}

	sessions, err := NewSessionManager(cfg.Session)
	require.NoError(t, err)

	logger := shared.NewLogger(io.Discard)
	app := &testApp{
		creds:    repositories.NewCredentialRepository(db),
		dir:      directory.New(repositories.NewDeviceRepository(db), logger),
		sessions: sessions,
		auth:     &fakeAuth{grant: &services.TokenGrant{AccessToken: "A1", RefreshToken: "R1", ExpiresIn: 3600}},
		np:       &fakeNowPlaying{np: &models.NowPlaying{}},
		metrics:  metrics.New(),
	}
	app.handler = NewApp(Deps{
		Config:      cfg,
		Devices:     app.dir,
		NowPlaying:  app.np,
		Credentials: app.creds,
		Authorizer:  app.auth,
		Sessions:    sessions,
		Metrics:     app.metrics,
		Logger:      logger,
	})
	return app
}

func (a *testApp) do(t *testing.T, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) post(t *testing.T, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return a.do(t, req, cookies...)
}

func (a *testApp) get(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

// session creates a stored credential and returns a cookie bound to it.
func (a *testApp) session(t *testing.T) (*http.Cookie, string) {
	t.Helper()

	cred := &models.Credential{AccessToken: "A", RefreshToken: "R", ExpiresAt: time.Now().Add(time.Hour).UnixMilli()}
	require.NoError(t, a.creds.Create(context.Background(), cred))

	rec := httptest.NewRecorder()
	require.NoError(t, a.sessions.Issue(rec, cred.ID))
	return cookieNamed(t, rec, "spotify.sid"), cred.ID
}

func cookieNamed(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorResponse](t, rec).Error.Kind
}

func TestRouter(t *testing.T) {
	app := newTestApp(t)

	t.Run("health", func(t *testing.T) {
		rec := app.get(t, "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := app.post(t, "/healthz", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, "method_not_allowed", errorKind(t, rec))
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := app.get(t, "/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", errorKind(t, rec))
	})

	t.Run("metrics", func(t *testing.T) {
		app.get(t, "/healthz")
		rec := app.get(t, "/metrics")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "spotibridge_http_requests_total")
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/devices/register", nil)
		req.Header.Set("Origin", "https://status.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := app.do(t, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://status.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("cors ignores other origins", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := app.do(t, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	router := NewBasicRouter()
	router.Use(RecoveryMiddleware(shared.NewLogger(io.Discard)))
	router.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal", errorKind(t, rec))
}

func TestLoggingMiddleware(t *testing.T) {
	t.Run("unknown paths share one series", func(t *testing.T) {
		app := newTestApp(t)
		for _, path := range []string{"/scan/0", "/scan/1", "/wp-admin", "/scan/2?x=1"} {
			assert.Equal(t, http.StatusNotFound, app.get(t, path).Code)
		}

		assert.Equal(t, 1, testutil.CollectAndCount(app.metrics.RequestsTotal))
		assert.Equal(t, 4.0, testutil.ToFloat64(app.metrics.RequestsTotal.WithLabelValues(unmatchedRoute, "404")))
	})

	t.Run("matched routes use the registered pattern", func(t *testing.T) {
		app := newTestApp(t)
		app.get(t, "/healthz")
		app.get(t, "/healthz?probe=1")
		app.get(t, "/api/nowplaying/art?deviceId=D1")

		assert.Equal(t, 2, testutil.CollectAndCount(app.metrics.RequestsTotal))
		assert.Equal(t, 2.0, testutil.ToFloat64(app.metrics.RequestsTotal.WithLabelValues("/healthz", "200")))
	})
}

func TestDeviceRoutes(t *testing.T) {
	t.Run("register", func(t *testing.T) {
		app := newTestApp(t)

		rec := app.post(t, "/api/devices/register", `{"deviceId":"A"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"linkedToAccount":false}`, rec.Body.String())

		rec = app.post(t, "/api/devices/register", `{"uuid":"A"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "constraint_violation", errorKind(t, rec))

		rec = app.post(t, "/api/devices/register", `{"deviceId":"B"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("register validates input", func(t *testing.T) {
		app := newTestApp(t)

		rec := app.post(t, "/api/devices/register", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation", errorKind(t, rec))

		rec = app.post(t, "/api/devices/register", `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = app.get(t, "/api/devices/register")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("register with session links", func(t *testing.T) {
		app := newTestApp(t)
		cookie, credID := app.session(t)

		rec := app.post(t, "/api/devices/register", `{"deviceId":"D"}`, cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"linkedToAccount":true}`, rec.Body.String())

		got, err := app.dir.Resolve(context.Background(), "D")
		require.NoError(t, err)
		assert.Equal(t, credID, got)
	})

	t.Run("verify", func(t *testing.T) {
		app := newTestApp(t)
		app.post(t, "/api/devices/register", `{"deviceId":"U"}`)

		rec := app.post(t, "/api/devices/verify", `{"uuid":"ghost"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"valid":false,"linkedToAccount":false}`, rec.Body.String())

		rec = app.post(t, "/api/devices/verify", `{"uuid":"U"}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"valid":true,"linkedToAccount":false}`, rec.Body.String())
	})

	t.Run("link", func(t *testing.T) {
		app := newTestApp(t)
		app.post(t, "/api/devices/register", `{"deviceId":"D"}`)

		rec := app.post(t, "/api/devices/link", `{"deviceId":"D"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "not_authenticated", errorKind(t, rec))

		cookie, _ := app.session(t)
		rec = app.post(t, "/api/devices/link", `{"deviceId":"D"}`, cookie)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = app.post(t, "/api/devices/verify", `{"deviceId":"D"}`)
		assert.JSONEq(t, `{"valid":true,"linkedToAccount":true}`, rec.Body.String())

		other, _ := app.session(t)
		rec = app.post(t, "/api/devices/link", `{"deviceId":"D"}`, other)
		assert.Equal(t, http.StatusConflict, rec.Code)

		rec = app.post(t, "/api/devices/link", `{"deviceId":"ghost"}`, cookie)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rate limited per device", func(t *testing.T) {
		app := newTestApp(t, func(c *shared.Config) {
			c.Server.DeviceRateLimit = 0.001
			c.Server.DeviceBurst = 1
		})

		assert.Equal(t, http.StatusUnauthorized, app.post(t, "/api/devices/verify", `{"uuid":"X"}`).Code)
		rec := app.post(t, "/api/devices/verify", `{"uuid":"X"}`)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))

		assert.Equal(t, http.StatusUnauthorized, app.post(t, "/api/devices/verify", `{"uuid":"Y"}`).Code)
	})
}

func TestSpotifyRoutes(t *testing.T) {
	t.Run("login sets state and redirects", func(t *testing.T) {
		app := newTestApp(t)

		rec := app.get(t, "/api/spotify/login")
		require.Equal(t, http.StatusFound, rec.Code)

		state := cookieNamed(t, rec, "spotify.state")
		assert.NotEmpty(t, state.Value)
		assert.Contains(t, rec.Header().Get("Location"), "state="+url.QueryEscape(state.Value))
	})

	t.Run("callback creates credential and session", func(t *testing.T) {
		app := newTestApp(t)
		state := cookieNamed(t, app.get(t, "/api/spotify/login"), "spotify.state")

		rec := app.get(t, "/api/spotify/callback?code=abc&state="+url.QueryEscape(state.Value), state)
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/status", rec.Header().Get("Location"))
		assert.Equal(t, []string{"abc"}, app.auth.codes)

		session := cookieNamed(t, rec, "spotify.sid")
		assert.True(t, session.HttpOnly)

		creds, err := app.creds.List(context.Background())
		require.NoError(t, err)
		require.Len(t, creds, 1)
		assert.Equal(t, "R1", creds[0].RefreshToken)

		status := app.get(t, "/api/spotify/status", session)
		assert.JSONEq(t, `{"loggedIn":true}`, status.Body.String())
	})

	t.Run("callback rejects bad state", func(t *testing.T) {
		app := newTestApp(t)
		state := cookieNamed(t, app.get(t, "/api/spotify/login"), "spotify.state")

		rec := app.get(t, "/api/spotify/callback?code=abc&state=forged", state)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, app.auth.codes)

		rec = app.get(t, "/api/spotify/callback?code=abc&state=whatever")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("callback exchange failure", func(t *testing.T) {
		app := newTestApp(t)
		app.auth.err = shared.ErrUpstreamAuth
		state := cookieNamed(t, app.get(t, "/api/spotify/login"), "spotify.state")

		rec := app.get(t, "/api/spotify/callback?code=abc&state="+url.QueryEscape(state.Value), state)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "upstream_auth", errorKind(t, rec))
	})

	t.Run("status and logout", func(t *testing.T) {
		app := newTestApp(t)

		assert.JSONEq(t, `{"loggedIn":false}`, app.get(t, "/api/spotify/status").Body.String())

		rec := app.get(t, "/api/spotify/logout")
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
		assert.Equal(t, -1, cookieNamed(t, rec, "spotify.sid").MaxAge)
	})

	t.Run("current track", func(t *testing.T) {
		app := newTestApp(t)

		rec := app.get(t, "/api/spotify/current-track")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		cookie, credID := app.session(t)
		app.np.np = &models.NowPlaying{IsPlaying: true, Track: &models.Track{Name: "S", Artists: []string{"X"}}}

		rec = app.get(t, "/api/spotify/current-track", cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, credID, app.np.credentialID)
		assert.True(t, decode[models.NowPlaying](t, rec).IsPlaying)
	})
}

func TestNowPlayingRoutes(t *testing.T) {
	art := &models.TranscodedImage{
		Width: 2, Height: 2,
		PixelFormat:     models.PixelFormatRGB565,
		ContainerFormat: models.ContainerBMP,
		Bytes:           []byte("BM-fake-bitmap"),
	}

	t.Run("json with art", func(t *testing.T) {
		app := newTestApp(t)
		app.np.np = &models.NowPlaying{IsPlaying: true, Track: &models.Track{Name: "S"}, Art: art, ArtStatus: models.ArtIncluded}

		rec := app.get(t, "/api/nowplaying?deviceId=D1&art=1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "D1", app.np.deviceID)
		assert.True(t, app.np.opts.Art)

		var body struct {
			IsPlaying bool   `json:"isPlaying"`
			ArtStatus string `json:"artStatus"`
			Art       struct {
				Bytes string `json:"bytes"`
			} `json:"art"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.IsPlaying)
		assert.Equal(t, "included", body.ArtStatus)
		assert.Equal(t, base64.StdEncoding.EncodeToString(art.Bytes), body.Art.Bytes)
	})

	t.Run("json without art", func(t *testing.T) {
		app := newTestApp(t)

		rec := app.get(t, "/api/nowplaying?deviceId=D1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, app.np.opts.Art)
		assert.JSONEq(t, `{"isPlaying":false}`, rec.Body.String())
	})

	t.Run("raw bitmap", func(t *testing.T) {
		app := newTestApp(t)
		app.np.np = &models.NowPlaying{IsPlaying: true, Track: &models.Track{}, Art: art, ArtStatus: models.ArtIncluded}

		rec := app.get(t, "/api/nowplaying/art?deviceId=D1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/bmp", rec.Header().Get("Content-Type"))
		assert.Equal(t, "2", rec.Header().Get("X-Image-Width"))
		assert.Equal(t, art.Bytes, rec.Body.Bytes())
	})

	t.Run("raw bitmap without art", func(t *testing.T) {
		app := newTestApp(t)
		app.np.np = &models.NowPlaying{IsPlaying: true, Track: &models.Track{}, ArtStatus: models.ArtUnavailable}

		rec := app.get(t, "/api/nowplaying/art?deviceId=D1")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "unavailable", rec.Header().Get("X-Art-Status"))
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			status int
			kind   string
		}{
			{"unknown device", shared.ErrNotFound, http.StatusUnauthorized, "not_found"},
			{"unlinked device", shared.ErrNotLinked, http.StatusUnauthorized, "not_linked"},
			{"refresh rejected", shared.ErrUpstreamAuth, http.StatusUnauthorized, "upstream_auth"},
			{"spotify down", shared.ErrUpstreamTransient, http.StatusBadGateway, "upstream_transient"},
			{"spotify error", &shared.UpstreamError{Status: 500, Body: []byte("secret detail")}, http.StatusBadGateway, "upstream"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				app := newTestApp(t)
				app.np.err = tt.err

				rec := app.get(t, "/api/nowplaying?deviceId=D1")
				assert.Equal(t, tt.status, rec.Code)
				assert.Equal(t, tt.kind, errorKind(t, rec))
				assert.NotContains(t, rec.Body.String(), "secret detail")
			})
		}
	})

	t.Run("missing device id", func(t *testing.T) {
		app := newTestApp(t)
		rec := app.get(t, "/api/nowplaying")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSessionManager(t *testing.T) {
	cfg := shared.SessionConfig{Secret: "0123456789abcdef", CookieName: "spotify.sid", TTL: time.Hour}

	t.Run("round trip", func(t *testing.T) {
		s, err := NewSessionManager(cfg)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		require.NoError(t, s.Issue(rec, "cred-1"))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookieNamed(t, rec, "spotify.sid"))

		id, err := s.CredentialID(req)
		require.NoError(t, err)
		assert.Equal(t, "cred-1", id)
	})

	t.Run("rejects other secrets", func(t *testing.T) {
		s, _ := NewSessionManager(cfg)
		other, _ := NewSessionManager(shared.SessionConfig{Secret: "another-secret-value", CookieName: "spotify.sid"})

		rec := httptest.NewRecorder()
		require.NoError(t, other.Issue(rec, "cred-1"))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookieNamed(t, rec, "spotify.sid"))

		_, err := s.CredentialID(req)
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("rejects expired sessions", func(t *testing.T) {
		s, _ := NewSessionManager(cfg)
		s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

		rec := httptest.NewRecorder()
		require.NoError(t, s.Issue(rec, "cred-1"))
		s.now = time.Now

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookieNamed(t, rec, "spotify.sid"))

		_, err := s.CredentialID(req)
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("requires secret", func(t *testing.T) {
		_, err := NewSessionManager(shared.SessionConfig{})
		assert.ErrorIs(t, err, shared.ErrInvalidConfig)
	})
}

func TestWriteError(t *testing.T) {
	t.Run("upstream body is logged once and never sent", func(t *testing.T) {
		var logs strings.Builder
		rec := httptest.NewRecorder()
		writeError(rec, shared.NewLogger(&logs), fmt.Errorf("fetch: %w", &shared.UpstreamError{Status: 503, Body: []byte("upstream-body")}))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "upstream-body")
		assert.Equal(t, 1, strings.Count(logs.String(), "upstream-body"))
	})
}

func TestStatusFor(t *testing.T) {
	tests := map[shared.Kind]int{
		shared.KindValidation:          400,
		shared.KindNotFound:            401,
		shared.KindNotLinked:           401,
		shared.KindUpstreamAuth:        401,
		shared.KindUpstreamTransient:   502,
		shared.KindUpstream:            502,
		shared.KindTranscode:           500,
		shared.KindConstraintViolation: 409,
		shared.KindInternal:            500,
	}
	for kind, want := range tests {
		assert.Equal(t, want, statusFor(kind), string(kind))
	}
}

func TestOAuthHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		auth := &fakeAuth{grant: &services.TokenGrant{AccessToken: "A", RefreshToken: "R", ExpiresIn: 60}}
		h := NewOAuthHandler(auth, "s1", "")
		assert.Equal(t, []string{DefaultCallbackPath}, h.Routes())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultCallbackPath+"?state=s1&code=c", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		result := <-h.Result()
		require.NoError(t, result.Error())
		assert.Equal(t, "A", result.Grant.AccessToken)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultCallbackPath+"?state=s1&code=c", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("state mismatch", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuth{}, "s1", "/cb")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=s2&code=c", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		result := <-h.Result()
		assert.Error(t, result.Error())
	})

	t.Run("denied", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuth{}, "s1", "/cb")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=s1&error=access_denied", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		result := <-h.Result()
		assert.ErrorContains(t, result.Error(), "access_denied")
	})
}
