// package server contains middleware & handlers for the device bridge web service
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotibridge/internal/directory"
	"github.com/desertthunder/spotibridge/internal/metrics"
	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/nowplaying"
	"github.com/desertthunder/spotibridge/internal/services"
	"github.com/desertthunder/spotibridge/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the path patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Devices is the device directory used by the HTTP surface.
type Devices interface {
	Register(ctx context.Context, deviceID string, credentialID *string) error
	Verify(ctx context.Context, deviceID string) (directory.Verification, error)
	Link(ctx context.Context, deviceID, credentialID string) error
}

// NowPlaying answers playback lookups for devices and sessions.
type NowPlaying interface {
	ForDevice(ctx context.Context, deviceID string, opts nowplaying.Options) (*models.NowPlaying, error)
	ForCredential(ctx context.Context, credentialID string, opts nowplaying.Options) (*models.NowPlaying, error)
}

// CredentialStore persists credentials created by the login flow.
type CredentialStore interface {
	Create(ctx context.Context, cred *models.Credential) error
	Get(ctx context.Context, id string) (*models.Credential, error)
}

// Deps groups everything [NewApp] wires into routes.
type Deps struct {
	Config      *shared.Config
	Devices     Devices
	NowPlaying  NowPlaying
	Credentials CredentialStore
	Authorizer  services.Authorizer
	Sessions    *SessionManager
	Metrics     *metrics.Metrics
	Logger      *log.Logger
	Now         func() time.Time
}

// NewApp builds the router serving the device, Spotify, now playing, health and metrics routes.
func NewApp(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = shared.NewLogger(nil)
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	cfg := d.Config.Server
	limiter := NewRateLimiter(cfg.DeviceRateLimit, cfg.DeviceBurst)

	var router Router = NewBasicRouter()
	router.Use(
		RecoveryMiddleware(d.Logger),
		LoggingMiddleware(d.Logger, d.Metrics),
		CORSMiddleware(cfg.AllowedOrigin),
	)

	router.Handler(&DeviceHandler{
		devices:  d.Devices,
		sessions: d.Sessions,
		limiter:  limiter,
		logger:   d.Logger,
	})
	router.Handler(&SpotifyHandler{
		auth:        d.Authorizer,
		credentials: d.Credentials,
		sessions:    d.Sessions,
		nowPlaying:  d.NowPlaying,
		appURL:      cfg.AppURL,
		logger:      d.Logger,
		now:         d.Now,
	})
	router.Handler(&NowPlayingHandler{
		nowPlaying: d.NowPlaying,
		limiter:    limiter,
		logger:     d.Logger,
	})

	router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	if d.Metrics != nil {
		router.Handle(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	return router
}

// Serve runs srv until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, logger *log.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
