package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/spotibridge/internal/directory"
	"github.com/desertthunder/spotibridge/internal/models"
	"github.com/desertthunder/spotibridge/internal/server"
	"github.com/desertthunder/spotibridge/internal/services"
	"github.com/desertthunder/spotibridge/internal/shared"
	"github.com/urfave/cli/v3"
)

const authTimeout = 2 * time.Minute

// SpotifyAuth performs OAuth2 authentication flow for Spotify and stores the resulting credential.
//
// Starts a local HTTP server on the redirect URI, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	spotify, err := r.spotifyService(nil)
	if err != nil {
		return err
	}

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	grant, err := r.doOAuth(ctx, spotify)
	if err != nil {
		return err
	}

	cred, err := server.CredentialFromGrant(grant, time.Now())
	if err != nil {
		return err
	}
	if err := st.creds.Create(ctx, cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	r.writePlainln("%s Authorization successful", styles.Ok("✓"))
	r.writePlain("  Credential: %s\n", cred.ID)

	if deviceID := cmd.String("device"); deviceID != "" {
		if err := r.attachDevice(ctx, st, deviceID, cred); err != nil {
			return err
		}
		r.writePlain("  Device: %s linked\n", deviceID)
	}

	return nil
}

// attachDevice registers deviceID linked to cred, or links it when it is already registered.
func (r *Runner) attachDevice(ctx context.Context, st *store, deviceID string, cred *models.Credential) error {
	dir := directory.New(st.devices, r.logger)

	err := dir.Register(ctx, deviceID, &cred.ID)
	if errors.Is(err, shared.ErrConstraintViolation) {
		err = dir.Link(ctx, deviceID, cred.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to link device %s: %w", deviceID, err)
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, auth services.Authorizer) (*services.TokenGrant, error) {
	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: credentials.spotify.redirect_uri must be an absolute URL", shared.ErrInvalidConfig)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthHandler := server.NewOAuthHandler(auth, state, redirect.Path)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", redirect.Host)
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := auth.AuthURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("%s Could not open browser automatically.", styles.Warn("⚠"))
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Grant == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Grant, nil
}
