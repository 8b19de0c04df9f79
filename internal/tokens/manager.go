// package tokens keeps stored Spotify credentials usable
//
// [Manager.EnsureFresh] checks expiry, refreshes against the Accounts API when needed, and persists the
// new token triple with a single conditional write. Refreshes for the same credential are collapsed so
// concurrent callers share one upstream exchange.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotibridge/internal/metrics"
	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/repositories"
	"github.com/desertthunder/spotibridge/internal/services"
	"github.com/desertthunder/spotibridge/internal/shared"
	"golang.org/x/sync/singleflight"
)

const defaultRefreshTimeout = 10 * time.Second

// Store is the persistence the manager needs. Implemented by [repositories.CredentialRepository].
type Store interface {
	Get(ctx context.Context, id string) (*models.Credential, error)
	UpdateTokens(ctx context.Context, previousRefreshToken string, next *models.Credential) error
}

// Manager refreshes stale credentials.
type Manager struct {
	refresher services.Refresher
	creds     Store
	logger    *log.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	timeout   time.Duration
	flights   singleflight.Group
}

// Option configures a [Manager].
type Option func(*Manager)

// WithClock overrides the time source used for staleness checks and new expiries.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTimeout bounds each refresh, independent of the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithMetrics records refresh outcomes on mt.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a [Manager] persisting through creds and refreshing through refresher.
func NewManager(creds Store, refresher services.Refresher, logger *log.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	m := &Manager{
		refresher: refresher,
		creds:     creds,
		logger:    logger,
		now:       time.Now,
		timeout:   defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureFresh returns cred unchanged when its access token is still valid, otherwise refreshes and
// persists it and returns the stored result.
//
// Refresh failures leave the stored row untouched and return [shared.ErrUpstreamAuth] or
// [shared.ErrUpstreamTransient]. No retry is attempted.
func (m *Manager) EnsureFresh(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if cred == nil {
		return nil, fmt.Errorf("%w: nil credential", shared.ErrValidation)
	}
	if !cred.Stale(m.now()) {
		return cred, nil
	}

	// The flight outlives a cancelled first caller so waiters still get a result.
	ch := m.flights.DoChan(cred.ID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return m.refresh(flightCtx, cred.ID)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstreamTransient, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Credential), nil
	}
}

func (m *Manager) refresh(ctx context.Context, id string) (*models.Credential, error) {
	logger := m.logger.With("credential", id)

	current, err := m.creds.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Stale(m.now()) {
		logger.Debug("credential refreshed by an earlier flight")
		return current, nil
	}

	grant, err := m.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		m.metrics.ObserveRefresh(outcomeOf(err))
		logger.Warn("token refresh failed", "error", err)
		return nil, err
	}

	next, err := apply(current, grant, m.now())
	if err != nil {
		m.metrics.ObserveRefresh(metrics.OutcomeAuth)
		logger.Warn("token refresh returned an unusable grant", "error", err)
		return nil, err
	}

	err = m.creds.UpdateTokens(ctx, current.RefreshToken, next)
	switch {
	case err == nil:
		m.metrics.ObserveRefresh(metrics.OutcomeSuccess)
		logger.Info("access token refreshed", "expires_at", next.ExpiresAt)
		return next, nil
	case errors.Is(err, repositories.ErrStaleWrite):
		// Another process persisted a refresh between our read and write.
		stored, getErr := m.creds.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if stored.Stale(m.now()) {
			return nil, fmt.Errorf("%w: credential changed during refresh", shared.ErrUpstreamAuth)
		}
		m.metrics.ObserveRefresh(metrics.OutcomeSuccess)
		logger.Info("using credential refreshed concurrently")
		return stored, nil
	default:
		m.metrics.ObserveRefresh(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}
}

// apply builds the credential that results from grant. A grant without a refresh token keeps the current one.
func apply(current *models.Credential, grant *services.TokenGrant, now time.Time) (*models.Credential, error) {
	if grant == nil || grant.AccessToken == "" {
		return nil, fmt.Errorf("%w: grant missing access token", shared.ErrUpstreamAuth)
	}
	if grant.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: grant has non-positive lifetime %d", shared.ErrUpstreamAuth, grant.ExpiresIn)
	}

	next := *current
	next.AccessToken = grant.AccessToken
	next.ExpiresAt = shared.ExpiresAt(now, grant.ExpiresIn)
	if grant.RefreshToken != "" {
		next.RefreshToken = grant.RefreshToken
	}
	return &next, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, shared.ErrUpstreamAuth):
		return metrics.OutcomeAuth
	case errors.Is(err, shared.ErrUpstreamTransient):
		return metrics.OutcomeTransient
	default:
		return metrics.OutcomeError
	}
}
